package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	lfring "github.com/LENSHOOD/go-lock-free-ring-buffer"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// hubQueueCapacity bounds the backlog of undelivered broadcast messages;
// it must be a power of two for the ring buffer's masking arithmetic.
const hubQueueCapacity = 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards connect cross-origin by design
	},
}

// Hub maintains the set of active websocket clients and fans out
// CycleCreated/VotePlaced/VoteClaimed events pushed onto its internal
// lock-free queue. Grounded on internal/api/websocket.go's Hub, with the
// buffered channel swapped for a lock-free MPMC ring buffer since event
// producers (the Market Controller, under its own mutexes) must never
// block on a slow or stalled fan-out loop.
type Hub struct {
	clients map[*websocket.Conn]bool
	mutex   sync.Mutex
	queue   lfring.RingBuffer[[]byte]
}

// NewHub returns a Hub with no subscribers yet.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		queue:   lfring.New[[]byte](hubQueueCapacity),
	}
}

// Run drains the queue and fans messages out to every connected client.
// Call it once, in its own goroutine, before serving traffic.
func (h *Hub) Run() {
	for {
		msg, ok := h.queue.Poll()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("racer: websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades the request to a websocket and registers the client.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("racer: websocket upgrade failed: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	log.Printf("racer: websocket client connected, total=%d", len(h.clients))

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("racer: websocket client disconnected, total=%d", len(h.clients))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("racer: websocket error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast enqueues data for delivery to every connected client. Drops
// the message and logs if the queue is saturated rather than blocking the
// caller, since callers hold Controller-internal locks.
func (h *Hub) Broadcast(data []byte) {
	if !h.queue.Offer(data) {
		log.Printf("racer: event hub queue full, dropping broadcast")
	}
}

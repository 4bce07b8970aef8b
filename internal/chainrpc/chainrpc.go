// Package chainrpc is a block-height oracle backed by a real Bitcoin Core
// node, implementing chain.Clock for deployments that want the market
// engine's now() tied to actual chain height rather than a manual/test
// clock. Trimmed from internal/bitcoin/client.go's Config/Client shape
// down to the single RPC this engine actually needs.
package chainrpc

import (
	"fmt"
	"log"

	"github.com/btcsuite/btcd/rpcclient"
)

// Config is the RPC endpoint and credentials for the backing node.
type Config struct {
	Host string
	User string
	Pass string
}

// Client is a chain.Clock backed by a live Bitcoin Core RPC connection.
type Client struct {
	rpc    *rpcclient.Client
	config Config
}

// NewClient dials the configured node and verifies the connection with an
// initial GetBlockCount call.
func NewClient(cfg Config) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	log.Printf("racer: connecting to chain RPC at %s", cfg.Host)
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("chainrpc: dial: %w", err)
	}

	height, err := client.GetBlockCount()
	if err != nil {
		client.Shutdown()
		return nil, fmt.Errorf("chainrpc: initial GetBlockCount: %w", err)
	}
	log.Printf("racer: connected to chain RPC, height=%d", height)

	return &Client{rpc: client, config: cfg}, nil
}

// BlockHeight implements chain.Clock.
func (c *Client) BlockHeight() uint64 {
	height, err := c.rpc.GetBlockCount()
	if err != nil {
		log.Printf("racer: chainrpc GetBlockCount failed, returning height 0: %v", err)
		return 0
	}
	return uint64(height)
}

// Shutdown closes the RPC connection.
func (c *Client) Shutdown() {
	c.rpc.Shutdown()
}

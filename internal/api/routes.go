package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/racer-engine/internal/db"
	"github.com/rawblock/racer-engine/internal/errs"
	"github.com/rawblock/racer-engine/internal/market"
	"github.com/rawblock/racer-engine/internal/symbol"
	"github.com/rawblock/racer-engine/pkg/models"
)

// APIHandler holds every dependency the route handlers need. Grounded on
// internal/api/routes.go's APIHandler: one struct of adapters, one method
// per endpoint, no per-handler global state.
type APIHandler struct {
	controller *market.Controller
	dbStore    *db.Store
	wsHub      *Hub
}

// SetupRouter builds the gin engine: public read/stream endpoints, and a
// signature-authenticated group for every operation that mutates state or
// moves value. Grounded on internal/api/routes.go's CORS middleware and
// public/protected group split, with the bearer-token AuthMiddleware
// replaced by CallerMiddleware and the rate limiter applied to the
// protected group exactly as there.
func SetupRouter(controller *market.Controller, dbStore *db.Store, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, X-Racer-Pubkey, X-Racer-Signature, Accept-Encoding, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &APIHandler{controller: controller, dbStore: dbStore, wsHub: wsHub}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", h.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/cycles/:cycleId", h.handleGetCycle)
		pub.GET("/cycles/:cycleId/balance", h.handleCycleBalance)
		pub.GET("/cycles/:cycleId/votes/total", h.handleTotalVoteCount)
		pub.GET("/cycles/:cycleId/symbols/:symbol/votes", h.handleSymbolVoteCount)
		pub.GET("/cycles/:cycleId/top-three", h.handleTopThree)
	}

	limiter := NewRateLimiter(30, 5)
	auth := r.Group("/api/v1")
	auth.Use(CallerMiddleware())
	auth.Use(limiter.Middleware())
	{
		auth.POST("/cycles", h.handleCreateCycle)
		auth.POST("/cycles/:cycleId/votes", h.handlePlaceVote)
		auth.GET("/cycles/:cycleId/votes/:voteId/claimable", h.handleIsClaimAvailable)
		auth.POST("/cycles/:cycleId/votes/:voteId/claim", h.handleClaimReward)
		auth.POST("/cycles/:cycleId/claims", h.handleBatchClaimReward)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"engine":      "racer",
		"dbConnected": h.dbStore != nil,
	})
}

func parseCycleID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("cycleId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cycleId"})
		return 0, false
	}
	return id, true
}

func writeErr(c *gin.Context, err error) {
	switch err.(type) {
	case errs.CycleDoesntExist, errs.VoteDoesntExist:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errs.InvalidVoteFee, errs.CycleVotingUnavailable, errs.CycleDidntEnd:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errs.VoteNotPlacedByCaller:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		switch err {
		case errs.ErrVoteAlreadyClaimed, errs.ErrReentrancy:
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errs.ErrVoteNotInTopThree:
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errs.ErrInvalidVotePrice, errs.ErrArithmeticOverflow:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}

// handleCreateCycle implements POST /api/v1/cycles -> create_cycle.
func (h *APIHandler) handleCreateCycle(c *gin.Context) {
	creator, _ := CallerFromContext(c)

	var req models.CreateCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := h.controller.CreateCycle(creator, req.StartBlock, req.Length, req.VotePrice)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycleId": id})
}

// handlePlaceVote implements POST /api/v1/cycles/:cycleId/votes ->
// place_vote. incomingValue stands in for the value a payable call would
// attach on an actual chain.
func (h *APIHandler) handlePlaceVote(c *gin.Context) {
	cycleID, ok := parseCycleID(c)
	if !ok {
		return
	}
	caller, _ := CallerFromContext(c)

	var req models.PlaceVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Symbol) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	voteID, err := h.controller.PlaceVote(caller, cycleID, symbol.FromString(req.Symbol), req.IncomingValue)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voteId": voteID})
}

// handleIsClaimAvailable implements GET
// /api/v1/cycles/:cycleId/votes/:voteId/claimable -> is_claim_available.
func (h *APIHandler) handleIsClaimAvailable(c *gin.Context) {
	cycleID, ok := parseCycleID(c)
	if !ok {
		return
	}
	voteID, err := strconv.ParseUint(c.Param("voteId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid voteId"})
		return
	}
	caller, _ := CallerFromContext(c)

	available, err := h.controller.IsClaimAvailable(caller, cycleID, voteID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claimable": available})
}

// handleClaimReward implements POST
// /api/v1/cycles/:cycleId/votes/:voteId/claim -> claim_reward.
func (h *APIHandler) handleClaimReward(c *gin.Context) {
	cycleID, ok := parseCycleID(c)
	if !ok {
		return
	}
	voteID, err := strconv.ParseUint(c.Param("voteId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid voteId"})
		return
	}
	caller, _ := CallerFromContext(c)

	amount, err := h.controller.ClaimReward(caller, cycleID, voteID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": amount})
}

// handleBatchClaimReward implements POST /api/v1/cycles/:cycleId/claims
// -> batch_claim_reward.
func (h *APIHandler) handleBatchClaimReward(c *gin.Context) {
	cycleID, ok := parseCycleID(c)
	if !ok {
		return
	}
	caller, _ := CallerFromContext(c)

	var req models.BatchClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	amounts, err := h.controller.BatchClaimReward(caller, cycleID, req.VoteIDs)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amounts": amounts})
}

// handleGetCycle implements GET /api/v1/cycles/:cycleId -> get_cycle.
func (h *APIHandler) handleGetCycle(c *gin.Context) {
	cycleID, ok := parseCycleID(c)
	if !ok {
		return
	}
	cyc, err := h.controller.GetCycle(cycleID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CycleView{
		ID:         cyc.ID,
		StartBlock: cyc.StartBlock,
		EndBlock:   cyc.EndBlock,
		VotePrice:  cyc.VotePrice,
		Creator:    cyc.Creator.String(),
		NextVoteID: cyc.NextVoteID,
		Balance:    cyc.Balance,
	})
}

// handleCycleBalance implements GET /api/v1/cycles/:cycleId/balance ->
// cycle_balance.
func (h *APIHandler) handleCycleBalance(c *gin.Context) {
	cycleID, ok := parseCycleID(c)
	if !ok {
		return
	}
	balance, err := h.controller.CycleBalance(cycleID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// handleTotalVoteCount implements GET
// /api/v1/cycles/:cycleId/votes/total -> total_vote_count.
func (h *APIHandler) handleTotalVoteCount(c *gin.Context) {
	cycleID, ok := parseCycleID(c)
	if !ok {
		return
	}
	count, err := h.controller.TotalVoteCount(cycleID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalVotes": count})
}

// handleSymbolVoteCount implements GET
// /api/v1/cycles/:cycleId/symbols/:symbol/votes -> symbol_vote_count.
func (h *APIHandler) handleSymbolVoteCount(c *gin.Context) {
	cycleID, ok := parseCycleID(c)
	if !ok {
		return
	}
	sym := symbol.FromString(c.Param("symbol"))
	count, err := h.controller.SymbolVoteCount(cycleID, sym)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voteCount": count})
}

// handleTopThree implements GET /api/v1/cycles/:cycleId/top-three ->
// top_three_symbols.
func (h *APIHandler) handleTopThree(c *gin.Context) {
	cycleID, ok := parseCycleID(c)
	if !ok {
		return
	}
	symbols, err := h.controller.TopThreeSymbols(cycleID)
	if err != nil {
		writeErr(c, err)
		return
	}
	view := models.TopThreeView{CycleID: cycleID, Symbols: make([]string, 3)}
	for i, s := range symbols {
		view.Symbols[i] = s.String()
	}
	c.JSON(http.StatusOK, view)
}

package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/marketchat/internal/core"
	"github.com/vovakirdan/marketchat/internal/proto"
	"github.com/vovakirdan/marketchat/internal/store"
)

const maxListLimit = 200

// MarketHandlers serves the market listing and each market's cached chat window.
type MarketHandlers struct {
	store store.MarketStore
	hub   ChatHub
	log   *zerolog.Logger
}

// NewMarketHandlers creates a new market handlers instance.
func NewMarketHandlers(st store.MarketStore, hub ChatHub, logger *zerolog.Logger) *MarketHandlers {
	return &MarketHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// CreateMarketRequest represents the create market request body.
type CreateMarketRequest struct {
	Question    string `json:"question" binding:"required,min=3,max=280"`
	Description string `json:"description" binding:"max=2000"`
}

// MarketResponse represents a market in API responses.
type MarketResponse struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Description string `json:"description,omitempty"`
	CreatorID   *int64 `json:"creator_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// MessagesResponse is the cached chat window of one market.
type MessagesResponse struct {
	RoomID   string               `json:"roomId"`
	Messages []proto.EventMessage `json:"messages"`
}

func marketToResponse(m *store.Market) MarketResponse {
	return MarketResponse{
		ID:          m.ID,
		Question:    m.Question,
		Description: m.Description,
		CreatorID:   m.CreatorID,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
	}
}

// CreateMarket handles market creation.
// POST /api/markets
func (h *MarketHandlers) CreateMarket(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		h.log.Error().Msg("claims not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: core.ErrCodeUnauthorized})
		return
	}

	var req CreateMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create market request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	creator := claims.AccountID
	market, err := h.store.CreateMarket(c.Request.Context(), req.Question, req.Description, &creator)
	if err != nil {
		h.log.Error().Err(err).Int64("account_id", creator).Msg("failed to create market")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("market_id", market.ID).Int64("creator_id", creator).Msg("market created")
	c.JSON(http.StatusCreated, marketToResponse(market))
}

// ListMarkets handles listing markets, newest first.
// GET /api/markets?limit=N
func (h *MarketHandlers) ListMarkets(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		return
	}
	limit = min(limit, maxListLimit)

	markets, err := h.store.ListMarkets(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list markets")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MarketResponse, 0, len(markets))
	for _, m := range markets {
		response = append(response, marketToResponse(m))
	}
	c.JSON(http.StatusOK, response)
}

// GetMarket returns a single market.
// GET /api/markets/:id
func (h *MarketHandlers) GetMarket(c *gin.Context) {
	market, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, marketToResponse(market))
}

// ListMessages returns the market's cached chat history, oldest first.
// A market nobody has chatted in yet has an empty history.
// GET /api/markets/:id/messages
func (h *MarketHandlers) ListMessages(c *gin.Context) {
	market, ok := h.lookup(c)
	if !ok {
		return
	}

	resp := MessagesResponse{RoomID: market.ID, Messages: []proto.EventMessage{}}
	if room, found := h.hub.Rooms().Get(market.ID); found {
		for _, msg := range room.Snapshot() {
			resp.Messages = append(resp.Messages, eventFromMessage(msg))
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MarketHandlers) lookup(c *gin.Context) (*store.Market, bool) {
	id := c.Param("id")
	market, err := h.store.GetMarket(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "market not found", Code: core.ErrCodeMarketNotFound})
			return nil, false
		}
		h.log.Error().Err(err).Str("market_id", id).Msg("failed to load market")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return nil, false
	}
	return market, true
}

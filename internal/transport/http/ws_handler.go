package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/marketchat/internal/auth"
	"github.com/vovakirdan/marketchat/internal/config"
	"github.com/vovakirdan/marketchat/internal/core"
	"github.com/vovakirdan/marketchat/internal/proto"
	"github.com/vovakirdan/marketchat/internal/store"
)

const errorWriteTimeout = 5 * time.Second

var errSubscriptionClosed = errors.New("subscription closed")

// WSHandler upgrades market chat requests and bridges each socket to one hub subscription.
type WSHandler struct {
	hub             ChatHub
	authService     *auth.Service
	markets         store.MarketStore
	originPatterns  []string
	maxMessageBytes int64
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub ChatHub, authService *auth.Service, markets store.MarketStore, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:             hub,
		authService:     authService,
		markets:         markets,
		originPatterns:  cfg.AllowedOrigins,
		maxMessageBytes: cfg.MaxMessageBytes,
		log:             logger,
	}
}

// wsChannel is the core.Channel for one websocket. coder/websocket allows
// concurrent writers, so the hub pump and error replies can share the conn.
type wsChannel struct {
	conn *websocket.Conn
}

func (c *wsChannel) Send(ctx context.Context, msg core.Message) error {
	return wsjson.Write(ctx, c.conn, outboundFromMessage(msg))
}

// ServeHTTP handles GET /ws/markets/{id}.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")

	token, err := bearerToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, core.ErrCodeUnauthorized, err.Error())
		return
	}
	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws invalid token")
		writeError(w, http.StatusUnauthorized, core.ErrCodeUnauthorized, "invalid token")
		return
	}

	if _, err := h.markets.GetMarket(r.Context(), marketID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, core.ErrCodeMarketNotFound, "market not found")
			return
		}
		h.log.Error().Err(err).Str("market_id", marketID).Msg("ws market lookup")
		writeError(w, http.StatusInternalServerError, core.ErrCodeUnavailable, "internal server error")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: len(h.originPatterns) == 0,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	sub, err := h.hub.Join(marketID, claims.Name, &wsChannel{conn: conn})
	if err != nil {
		h.log.Warn().Err(err).Str("market_id", marketID).Msg("ws join failed")
		conn.Close(websocket.StatusTryAgainLater, err.Error())
		return
	}
	defer h.hub.Leave(sub)

	logger := h.log.With().
		Str("room_id", marketID).
		Str("subscription_id", sub.ID).
		Str("user", claims.Name).
		Logger()
	logger.Info().Msg("ws client joined")

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		return h.readLoop(ctx, conn, sub, &logger)
	})
	g.Go(func() error {
		select {
		case <-sub.Done():
			return errSubscriptionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	err = g.Wait()

	status, reason := closeStatus(err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
		logger.Warn().Err(err).Msg("ws connection closed with error")
	} else {
		logger.Info().Msg("ws client left")
	}
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sub *core.Subscription, logger *zerolog.Logger) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		// A frame read after the subscription left must not reach the room.
		select {
		case <-sub.Done():
			return errSubscriptionClosed
		default:
		}

		body, protoErr := bodyFromInbound(inbound)
		if protoErr == nil {
			if _, err := h.hub.Send(sub.Room, sub.Name, body); err != nil {
				protoErr = &proto.Error{Code: core.ErrorCode(err), Msg: err.Error()}
			}
		}
		if protoErr != nil {
			logger.Debug().Str("code", protoErr.Code).Msg("ws inbound rejected")
			writeCtx, cancel := context.WithTimeout(ctx, errorWriteTimeout)
			err := wsjson.Write(writeCtx, conn, outboundFromError(protoErr))
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Code: code})
}

// closeStatus maps the error that ended a connection to a websocket close frame.
func closeStatus(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errSubscriptionClosed):
		return websocket.StatusTryAgainLater, "subscription ended"
	}

	if s := websocket.CloseStatus(err); s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway {
		return s, "closing"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return websocket.StatusGoingAway, "timeout"
	}
	return websocket.StatusInternalError, err.Error()
}

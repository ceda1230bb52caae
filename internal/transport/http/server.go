package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/marketchat/internal/auth"
	"github.com/vovakirdan/marketchat/internal/config"
	"github.com/vovakirdan/marketchat/internal/core"
	"github.com/vovakirdan/marketchat/internal/store"
)

// ChatHub is the part of core.Hub the transport depends on.
type ChatHub interface {
	Join(roomID, name string, ch core.Channel) (*core.Subscription, error)
	Send(roomID, author, body string) (core.Message, error)
	Leave(sub *core.Subscription)
	Rooms() *core.Registry
}

// NewServer builds the HTTP server: websocket upgrades on a plain mux, everything else through gin.
func NewServer(hub ChatHub, authService *auth.Service, markets store.MarketStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, logger)
	marketHandlers := NewMarketHandlers(markets, hub, logger)
	wsHandler := NewWSHandler(hub, authService, markets, cfg, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)
	api.POST("/guest", apiHandlers.Guest)
	api.GET("/markets", marketHandlers.ListMarkets)
	api.GET("/markets/:id", marketHandlers.GetMarket)
	api.GET("/markets/:id/messages", marketHandlers.ListMessages)
	api.POST("/markets", AuthMiddleware(authService, logger), marketHandlers.CreateMarket)

	// Websocket upgrades bypass gin: its response writer refuses to be
	// hijacked once the 101 has been written.
	mux := stdhttp.NewServeMux()
	mux.Handle("GET /ws/markets/{id}", wsHandler)
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

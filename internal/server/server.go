// Package server exposes the masking, classification, and unmasking
// pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/cache"
	"github.com/mailsift/mailsift/internal/classifier"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/logger"
	"github.com/mailsift/mailsift/internal/pii"
	"github.com/mailsift/mailsift/internal/security"
	"github.com/mailsift/mailsift/internal/vault"
	"github.com/mailsift/mailsift/internal/websocket"
)

// Server terminates HTTP requests and wires the pipeline components
// together. Optional components (cache, hub) may be nil.
type Server struct {
	cfg        *config.Config
	logger     *logger.Logger
	masker     *pii.Masker
	classifier classifier.Classifier
	vault      vault.Vault
	unmasker   *vault.Unmasker
	cache      *cache.RecordCache
	hub        *websocket.Hub
	limiter    *security.RateLimiter

	httpServer *http.Server
	startTime  time.Time
}

// Options carries the components the server depends on.
type Options struct {
	Config     *config.Config
	Logger     *logger.Logger
	Masker     *pii.Masker
	Classifier classifier.Classifier
	Vault      vault.Vault
	Cache      *cache.RecordCache
	Hub        *websocket.Hub
}

// New assembles the server and its routes.
func New(opts Options) *Server {
	s := &Server{
		cfg:        opts.Config,
		logger:     opts.Logger.WithComponent("server"),
		masker:     opts.Masker,
		classifier: opts.Classifier,
		vault:      opts.Vault,
		unmasker:   vault.NewUnmasker(opts.Vault),
		cache:      opts.Cache,
		hub:        opts.Hub,
		limiter:    security.NewRateLimiter(opts.Config.Security.RateLimit, opts.Logger.Logger),
		startTime:  time.Now(),
	}

	router := mux.NewRouter()
	router.Use(s.requestIDMiddleware)
	router.Use(s.loggingMiddleware)
	router.Use(s.rateLimitMiddleware)

	router.HandleFunc("/v1/classify", s.handleClassify).Methods(http.MethodPost)
	router.HandleFunc("/v1/unmask", s.handleUnmask).Methods(http.MethodPost)
	router.HandleFunc("/v1/records/{id}", s.handleRecord).Methods(http.MethodGet)
	router.HandleFunc("/v1/records/{id}/original", s.handleRecordOriginal).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	router.HandleFunc("/", s.handleStatus).Methods(http.MethodGet)

	if s.hub != nil && opts.Config.WebSocket.Enabled {
		path := opts.Config.WebSocket.Path
		if path == "" {
			path = "/ws"
		}
		router.HandleFunc(path, s.hub.HandleWebSocket)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  opts.Config.Server.ReadTimeout,
		WriteTimeout: opts.Config.Server.WriteTimeout,
		IdleTimeout:  opts.Config.Server.IdleTimeout,
	}
	return s
}

// Start runs the HTTP listener until it fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.limiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/FrontdeskLabs/reception-voice-service/internal/config"
	"github.com/FrontdeskLabs/reception-voice-service/internal/handler"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Server is the reception voice gateway server.
type Server struct {
	config         *config.Config
	router         *mux.Router
	handlerManager *handler.HandlerManager
}

// NewServer creates a new gateway server.
func NewServer(cfg *config.Config) *Server {
	// Initialize zap logger and redirect stdlib log to it
	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		logger.Base().Error("failed to initialize zap logger, falling back to std log")
	}

	router := mux.NewRouter()

	// Handler manager creates repositories, the provider and all services
	handlerManager, err := handler.NewHandlerManager(cfg)
	if err != nil {
		logger.Base().Error("failed to initialize handler manager", zap.Error(err))
		return nil
	}

	handlerManager.SetupAllRoutes(router)

	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
	}
}

// Start starts the gateway server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.config.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Base().Info("starting server", zap.String("addr", addr))
	return server.ListenAndServe()
}

func main() {
	// Load .env for local development if it exists. It never overrides
	// environment variables set by the deployment.
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: .env file not found or skipped (expected in production): %v", err)
	}

	cfg := config.LoadFromEnv()

	server := NewServer(cfg)
	if server == nil {
		log.Fatal("failed to create server")
	}
	defer server.handlerManager.Shutdown()
	defer logger.Sync()

	logger.L().Infow("server initialized",
		"port", cfg.Port,
		"public_base_url", cfg.PublicBaseURL)

	if err := server.Start(); err != nil {
		log.Fatalf("server failed to start: %v", err)
	}
}

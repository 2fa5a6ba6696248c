package handler

import (
	"os"
	"strconv"

	"github.com/FrontdeskLabs/reception-voice-service/internal/config"
	"github.com/FrontdeskLabs/reception-voice-service/internal/ops"
	"github.com/FrontdeskLabs/reception-voice-service/internal/repository"
	"github.com/FrontdeskLabs/reception-voice-service/internal/services/dispatch"
	"github.com/FrontdeskLabs/reception-voice-service/internal/services/ingest"
	"github.com/FrontdeskLabs/reception-voice-service/internal/services/provision"
	"github.com/FrontdeskLabs/reception-voice-service/internal/services/reminder"
	"github.com/FrontdeskLabs/reception-voice-service/internal/telephony"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/logger"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/redis"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandlerManager wires repositories, the telephony provider and the services,
// and registers every route.
type HandlerManager struct {
	config      *config.Config
	repoManager repository.RepositoryManager
	redisSvc    *redis.Service

	dispatchService  *dispatch.Service
	ingestService    *ingest.Service
	reminderService  *reminder.Service
	provisionService *provision.Service
}

// NewHandlerManager creates and initializes all services and their handlers.
func NewHandlerManager(cfg *config.Config) (*HandlerManager, error) {
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	// Redis backs the cross-process provisioning lock and the ops alert
	// channel. Both degrade gracefully, so a missing Redis is a warning,
	// not a startup failure.
	redisSvc, err := redis.NewService(loadRedisConfigFromEnv())
	if err != nil {
		logger.Base().Warn("failed to initialize redis, running without provisioning lock and ops channel", zap.Error(err))
		redisSvc = nil
	}

	provider := telephony.NewTwilioProvider(
		cfg.TwilioAccountSID,
		cfg.TwilioAuthToken,
		cfg.CountryCode,
		cfg.ProviderTimeout,
	)

	alerter := ops.NewAlerter(redisSvc)

	dispatchService := dispatch.NewService(cfg, provider, repoManager.Calls(), repoManager.Bindings(), alerter)
	ingestService := ingest.NewService(repoManager.Calls(), provider, alerter, cfg.StoreTimeout, cfg.PublicBaseURL)
	reminderService := reminder.NewService(repoManager.Appointments(), dispatchService, cfg.ReminderPacing)
	provisionService := provision.NewService(cfg, repoManager.Bindings(), provider, redisSvc)

	return &HandlerManager{
		config:           cfg,
		repoManager:      repoManager,
		redisSvc:         redisSvc,
		dispatchService:  dispatchService,
		ingestService:    ingestService,
		reminderService:  reminderService,
		provisionService: provisionService,
	}, nil
}

// SetupAllRoutes sets up all routes with middleware.
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.Use(CORSMiddleware)
	router.Use(LoggingMiddleware)

	hm.SetupWebhookRoutes(router)
	hm.SetupAPIRoutes(router)

	healthHandler := NewHealthHandler(hm.repoManager, hm.redisSvc)
	healthHandler.SetupHealthRoutes(router)

	logger.Base().Info("all application routes registered")
}

// SetupWebhookRoutes registers the provider callback routes. These carry no
// API auth; tenant identity rides in the callback URL path.
func (hm *HandlerManager) SetupWebhookRoutes(router *mux.Router) {
	webhookHandler := NewWebhookHandler(hm.ingestService, hm.provisionService, hm.config.PublicBaseURL)
	webhookHandler.SetupWebhookRoutes(router)
}

// SetupAPIRoutes registers the tenant-facing API under /api with validation
// and tenant resolution middleware applied.
func (hm *HandlerManager) SetupAPIRoutes(router *mux.Router) {
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(ValidationMiddleware)
	apiRouter.Use(TenantMiddleware(hm.config.TenantTokenSecret))

	callHandler := NewCallHandler(hm.dispatchService, hm.repoManager.Calls())
	callHandler.SetupCallRoutes(apiRouter)

	reminderHandler := NewReminderHandler(hm.reminderService)
	reminderHandler.SetupReminderRoutes(apiRouter)

	provisionHandler := NewProvisionHandler(hm.provisionService)
	provisionHandler.SetupProvisionRoutes(apiRouter)
}

// Shutdown releases external connections.
func (hm *HandlerManager) Shutdown() {
	if hm.redisSvc != nil {
		if err := hm.redisSvc.Close(); err != nil {
			logger.Base().Warn("failed to close redis", zap.Error(err))
		}
	}
	if err := hm.repoManager.Close(); err != nil {
		logger.Base().Warn("failed to close database", zap.Error(err))
	}
}

func loadRedisConfigFromEnv() *redis.RedisConfig {
	db := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			db = parsed
		}
	}
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	return &redis.RedisConfig{
		Host:     host,
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/wearable-sync/internal/config"
	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/internal/handler"
	"github.com/prperemyshlev/wearable-sync/internal/provider/whoop"
	"github.com/prperemyshlev/wearable-sync/internal/repository"
	"github.com/prperemyshlev/wearable-sync/internal/service"
	"github.com/prperemyshlev/wearable-sync/internal/utils"
	"github.com/prperemyshlev/wearable-sync/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	serviceName     = "wearable-sync"
	shutdownTimeout = 5 * time.Second
)

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	logger := infra.Logger()

	metrics, err := observability.NewSyncMetrics(infra.MeterProvider().Meter(serviceName))
	if err != nil {
		return nil, err
	}

	sealer := utils.NewSealer(cfg.Security.TokenEncryptionKey)
	repos := repository.NewRepositories(infra.Postgres(), infra.Redis(), sealer)

	oauthClient := whoop.NewOAuthClient(whoop.OAuthConfig{
		ClientID:     cfg.Whoop.ClientID,
		ClientSecret: cfg.Whoop.ClientSecret,
		RedirectURI:  cfg.Whoop.RedirectURI,
		AuthURL:      cfg.Whoop.AuthURL,
		TokenURL:     cfg.Whoop.TokenURL,
		Scopes:       cfg.Whoop.Scopes,
	}, nil)

	dataClient := whoop.NewClient(whoop.ClientConfig{
		BaseURL:           cfg.Whoop.APIBaseURL,
		RequestsPerMinute: cfg.Whoop.RequestsPerMinute,
	}, nil, logger)

	events := service.NewEventLogger(repos.Event, domain.ProviderWhoop, logger)
	vault := service.NewTokenVault(repos.Token, oauthClient, events, metrics, logger)
	writer := service.NewMetricWriter(repos.Metric, domain.ProviderWhoop)

	orchestrator := service.NewSyncOrchestrator(dataClient, writer, events, metrics, logger, service.SyncOptions{
		LookbackDays:    cfg.Sync.LookbackDays,
		ExtendedStreams: cfg.Sync.ExtendedStreams,
		MaxParallel:     cfg.Sync.MaxParallel,
	})

	coordinator := service.NewAuthorizationCoordinator(
		repos.State,
		vault,
		oauthClient,
		orchestrator,
		events,
		logger,
		cfg.Whoop.StateTTL.Duration,
	)

	integrations := service.NewIntegrationService(vault, coordinator, orchestrator, dataClient, events, logger)

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret)
	authenticator := service.NewUserAuthenticator(jwtManager, service.NewTokenBlacklistService(infra.Redis()))
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	integrationHandler := handler.NewIntegrationHandler(
		authenticator,
		coordinator,
		integrations,
		rateLimiter,
		handler.IntegrationHandlerConfig{
			AppCallbackURL: cfg.Whoop.AppCallbackURL,
			AppOrigin:      cfg.Whoop.AppOrigin(),
			RateLimit: handler.RateLimit{
				Requests: cfg.Security.RateLimitRequests,
				Window:   cfg.Security.RateLimitWindow.Duration,
			},
		},
		logger,
	)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, integrationHandler, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	integrationHandler *handler.IntegrationHandler,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.MetricsEndpoint(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	api := router.Group("/api/v1")
	{
		integrations := api.Group("/integrations")
		{
			integrations.GET("/whoop", integrationHandler.Handle)
			integrations.POST("/whoop", integrationHandler.Handle)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// in-flight syncs finish before the stores are closed
	if err := a.server.Shutdown(ctx); err != nil {
		a.infra.Logger().Error("Server shutdown failed", zap.Error(err))
		return errors.Join(err, a.infra.Shutdown(ctx))
	}

	if err := a.infra.Shutdown(ctx); err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}

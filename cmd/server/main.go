package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"parley/internal/auth"
	"parley/internal/catalog"
	"parley/internal/config"
	"parley/internal/domain/repositories"
	"parley/internal/domain/services"
	"parley/internal/handler"
	"parley/internal/metrics"
	"parley/internal/middleware"
	"parley/internal/repository/instrumented"
	"parley/internal/repository/memory"
	"parley/internal/repository/postgres"
	serviceAuth "parley/internal/service/auth"
	"parley/internal/service/conversation"
	"parley/internal/service/feedback"
	serviceLLM "parley/internal/service/llm"
	"parley/internal/service/messages"
	"parley/internal/service/settings"
	"parley/internal/storage"
)

// stores is the repository set for the configured driver
type stores struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	feedback      repositories.FeedbackRepository
	aiModels      repositories.AIModelRepository
	userSettings  repositories.UserSettingsRepository
	txManager     repositories.TransactionManager
	close         func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store", cfg.StoreDriver,
		"attachments", cfg.AttachmentsBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsEnabled {
		metrics.Init()
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.close()

	// Model catalog
	providerFactory := serviceLLM.NewProviderFactory(cfg)
	modelCatalog, err := catalog.Load()
	if err != nil {
		log.Fatalf("Failed to load model catalog: %v", err)
	}
	if err := modelCatalog.Sync(ctx, st.aiModels, providerFactory.Available, logger); err != nil {
		log.Fatalf("Failed to sync model catalog: %v", err)
	}
	logger.Info("model catalog synced", "providers", modelCatalog.Providers())

	generator := serviceLLM.NewProviderGenerator(
		serviceLLM.FactorySource(providerFactory),
		cfg.DefaultProvider,
		logger,
		serviceLLM.WithFailureHook(metrics.RecordGenerationFailure),
	)

	var attachments services.AttachmentStore = storage.DisabledStore{}
	if cfg.AttachmentsBackend == config.AttachmentsS3 {
		s3Store, err := storage.NewS3StoreFromConfig(ctx, cfg, logger)
		if err != nil {
			log.Fatalf("Failed to set up attachment storage: %v", err)
		}
		attachments = s3Store
	}

	// Services
	authorizer := serviceAuth.NewRoleAuthorizer(logger)
	conversationService := conversation.NewService(st.conversations, authorizer, logger)
	messageService := messages.NewService(
		st.conversations,
		st.messages,
		st.feedback,
		st.aiModels,
		st.userSettings,
		st.txManager,
		authorizer,
		generator,
		attachments,
		cfg,
		logger,
	)
	feedbackService := feedback.NewService(st.feedback, st.messages, st.conversations, st.txManager, authorizer, logger)
	settingsService := settings.NewService(st.userSettings, st.aiModels, logger)

	logger.Info("services initialized")

	// API routes, behind auth
	apiMux := http.NewServeMux()
	handler.RegisterRoutes(apiMux, handler.Handlers{
		Conversations: handler.NewConversationHandler(conversationService, messageService, logger),
		Messages:      handler.NewMessageHandler(messageService, logger),
		Feedback:      handler.NewFeedbackHandler(feedbackService, logger),
		AIModels:      handler.NewAIModelHandler(st.aiModels, logger),
		Settings:      handler.NewSettingsHandler(settingsService, logger),
	})

	authMiddleware, closeAuth, err := buildAuth(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up auth: %v", err)
	}
	defer closeAuth()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.HealthCheck)
	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	mux.Handle("/api/", authMiddleware(apiMux))

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → RequestLog → Recovery → Metrics → Routes
	var h http.Handler = mux
	if cfg.MetricsEnabled {
		h = metrics.Middleware(h)
	}
	h = middleware.Recovery(logger)(h)
	h = middleware.RequestLog(logger, "/health", "/metrics")(h)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:   []string{"Retry-After", middleware.RequestIDHeader},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // generation can be slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// openStores connects the configured store driver. The message repository is
// wrapped for latency metrics either way.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		mem := memory.NewStore(memory.WithLockTimeout(cfg.LockTimeout))
		return &stores{
			conversations: mem.Conversations(),
			messages:      instrumented.WrapMessages(mem.Messages()),
			feedback:      mem.Feedback(),
			aiModels:      mem.AIModels(),
			userSettings:  mem.UserSettings(),
			txManager:     mem.TransactionManager(),
			close:         func() {},
		}, nil
	}

	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected", "max_conns", pool.Config().MaxConns)

	repoConfig := &postgres.RepositoryConfig{
		Pool:        pool,
		Tables:      postgres.NewTableNames(),
		Logger:      logger,
		LockTimeout: cfg.LockTimeout,
	}
	return &stores{
		conversations: postgres.NewConversationRepository(repoConfig),
		messages:      instrumented.WrapMessages(postgres.NewMessageRepository(repoConfig)),
		feedback:      postgres.NewFeedbackRepository(repoConfig),
		aiModels:      postgres.NewAIModelRepository(repoConfig),
		userSettings:  postgres.NewUserSettingsRepository(repoConfig),
		txManager:     postgres.NewTransactionManager(pool, logger),
		close:         pool.Close,
	}, nil
}

// buildAuth returns the JWT middleware, or a fixed dev identity when auth is
// disabled (config.Load already refuses that in production).
func buildAuth(ctx context.Context, cfg *config.Config, logger *slog.Logger) (func(http.Handler) http.Handler, func(), error) {
	if cfg.AuthDisabled {
		logger.Warn("AUTH DISABLED: every request runs as the dev user", "user_id", cfg.DevUserID)
		return middleware.DevAuth(services.Identity{UserID: cfg.DevUserID}), func() {}, nil
	}

	verifier, err := auth.NewJWTVerifier(ctx, cfg.SupabaseJWKSURL, logger)
	if err != nil {
		return nil, nil, err
	}
	return middleware.Auth(verifier, logger), func() { _ = verifier.Close() }, nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/MalcolmMc23/Alumo/config"
	"github.com/MalcolmMc23/Alumo/internal/api/handlers"
	"github.com/MalcolmMc23/Alumo/internal/api/middleware"
	"github.com/MalcolmMc23/Alumo/internal/api/routes"
	"github.com/MalcolmMc23/Alumo/internal/cache"
	"github.com/MalcolmMc23/Alumo/internal/logger"
	"github.com/MalcolmMc23/Alumo/internal/providers/llm"
	mongorepo "github.com/MalcolmMc23/Alumo/internal/repositories/mongo"
	pgrepo "github.com/MalcolmMc23/Alumo/internal/repositories/postgres"
	"github.com/MalcolmMc23/Alumo/internal/services"
	"github.com/MalcolmMc23/Alumo/internal/storage"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	gin.SetMode(cfg.GinMode)

	// PostgreSQL
	if err := config.InitPostgres(log); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	log.Info("PostgreSQL connected")
	if cfg.AutoMigrate {
		if err := pgrepo.AutoMigrate(config.PostgresDB); err != nil {
			log.WithError(err).Fatal("PostgreSQL migration error")
		}
	}

	// Redis (optional)
	var profileCache cache.Cache
	switch err := config.InitRedis(); {
	case err == nil:
		profileCache = cache.NewRedisCache(config.RedisClient)
		log.Info("Redis connected")
	case errors.Is(err, config.ErrNotConfigured):
		profileCache = cache.NewMemoryCache(cfg.ProfileCacheTTL, 10*time.Minute)
		log.Info("Redis not configured, using in-process profile cache")
	default:
		log.WithError(err).Fatal("Redis init error")
	}

	// MongoDB (optional)
	var audit mongorepo.CallbackRepository
	switch err := config.InitMongo(); {
	case err == nil:
		if err := config.EnsureMongoIndexes(); err != nil {
			log.WithError(err).Warn("MongoDB index setup failed")
		}
		audit = mongorepo.NewCallbackRepo(config.MongoDatabase())
		log.Info("MongoDB connected")
	case errors.Is(err, config.ErrNotConfigured):
		log.Info("MongoDB not configured, document callback audit disabled")
	default:
		log.WithError(err).Fatal("MongoDB init error")
	}

	ctx := context.Background()

	publicStore, privateStore, uploadsDir := mustStores(ctx, cfg, log)
	defer publicStore.Close()
	defer privateStore.Close()

	provider := mustProvider(ctx, cfg, log)
	defer provider.Close()

	// Repositories
	userRepo := pgrepo.NewUserRepo(config.PostgresDB)
	convoRepo := pgrepo.NewConversationRepo(config.PostgresDB)
	docRepo := pgrepo.NewDocumentRepo(config.PostgresDB)

	// Services
	userSvc := services.NewUserService(userRepo, profileCache, privateStore, cfg.ProfileCacheTTL, log)
	authSvc := services.NewAuthService(services.AuthConfig{
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		RedirectURL:        cfg.GoogleRedirectURL,
		SessionSecret:      cfg.SessionSecret,
		SessionTTL:         cfg.SessionTTL,
	}, userSvc)
	convoSvc := services.NewConversationService(convoRepo)
	chatSvc := services.NewChatService(provider, log)
	docSvc := services.NewDocumentService(cfg.DocumentServer, docRepo, audit, publicStore, nil, log)

	if err := cfg.DocumentServer.Validate(); err != nil {
		log.WithError(err).Warn("document server integration is not configured; document routes will fail")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		Auth:         handlers.NewAuthHandler(authSvc, strings.HasPrefix(cfg.PublicBaseURL, "https://")),
		Conversation: handlers.NewConversationHandler(convoSvc),
		Completion:   handlers.NewCompletionHandler(chatSvc),
		Resume:       handlers.NewResumeHandler(),
		User:         handlers.NewUserHandler(userSvc),
		Document:     handlers.NewDocumentHandler(docSvc),
		AuthService:  authSvc,
		UserService:  userSvc,
		CORSOrigins:  cfg.CORSOrigins,
		UploadsDir:   uploadsDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	if config.MongoClient != nil {
		_ = config.MongoClient.Disconnect(shutdownCtx)
	}
	if config.RedisClient != nil {
		_ = config.RedisClient.Close()
	}
}

// mustStores returns the store for publicly served uploads, the store for
// private blobs such as resumes, and the directory to mount at /uploads
// (empty when blobs are not on local disk).
func mustStores(ctx context.Context, cfg *config.Config, log *logrus.Logger) (storage.Store, storage.Store, string) {
	if cfg.StorageBackend == "gcs" {
		gcs, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.SignedURLTTL)
		if err != nil {
			log.WithError(err).Fatal("GCS init error")
		}
		log.WithField("bucket", cfg.GCSBucket).Info("GCS storage ready")
		return gcs, gcs, ""
	}

	public, err := storage.NewLocalStore(cfg.UploadsDir, cfg.PublicBaseURL)
	if err != nil {
		log.WithError(err).Fatal("uploads dir init error")
	}
	private, err := storage.NewLocalStore(cfg.PrivateDir, "")
	if err != nil {
		log.WithError(err).Fatal("private dir init error")
	}
	return public, private, public.Root()
}

func mustProvider(ctx context.Context, cfg *config.Config, log *logrus.Logger) llm.Provider {
	if cfg.LLMProvider == "vertex" {
		p, err := llm.NewVertexGemini(ctx, cfg.VertexProjectID, cfg.VertexLocation, cfg.VertexModel)
		if err != nil {
			log.WithError(err).Fatal("Vertex AI init error")
		}
		return p
	}
	return llm.NewOpenAICompat(llm.OpenAICompatOptions{
		APIKey:   cfg.OpenRouterAPIKey,
		BaseURL:  cfg.OpenRouterBaseURL,
		Model:    cfg.LLMModel,
		AppURL:   cfg.LLMAppURL,
		AppTitle: cfg.LLMAppTitle,
	})
}

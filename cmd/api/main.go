package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"portal-rest-api/internal/cache"
	"portal-rest-api/internal/config"
	"portal-rest-api/internal/handler"
	"portal-rest-api/internal/middleware"
	"portal-rest-api/internal/repository"
	"portal-rest-api/internal/retry"
	"portal-rest-api/internal/router"
	"portal-rest-api/internal/service"
	"portal-rest-api/internal/storage"
	"portal-rest-api/internal/upload"

	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting portal API...")

	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Records backend
	store, err := openBackend(&cfg.Backend)
	if err != nil {
		log.Fatalf("Failed to initialize %s backend: %v", cfg.Backend.Type, err)
	}
	defer store.Close()
	log.Printf("%s backend initialized", store.Dialect())

	reads := retry.New(retry.Config{
		Name:        "Backend",
		MaxAttempts: cfg.Backend.RetryAttempts,
		BaseDelay:   cfg.Backend.RetryBaseDelay,
		MaxDelay:    cfg.Backend.RetryMaxDelay,
	})

	// Caches are owned here and shared by pointer.
	caches := cache.NewPostCaches(cache.PostTTLs{
		Published: cfg.Cache.PublishedTTL,
		Popular:   cfg.Cache.PopularTTL,
		Detail:    cfg.Cache.DetailTTL,
		Related:   cfg.Cache.RelatedTTL,
	}, time.Now)

	// Redis is optional: feedback buffering and token revocation.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed: %v", err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Println("Redis client initialized")
		}
		cancel()
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Services
	postService := service.NewPostService(store, caches, reads, service.DefaultPostConfig())
	galleryService := service.NewGalleryService(store, reads)
	eventService := service.NewEventService(store, reads)
	feedbackService := service.NewFeedbackService(store, reads)

	var feedbackBuffer *cache.RedisFeedbackBuffer
	if redisClient != nil {
		feedbackBuffer, err = cache.NewRedisFeedbackBuffer(redisClient, cache.RedisBufferConfig{
			FlushInterval: cfg.Feedback.FlushInterval,
		}, service.CreateFeedbackFlushFunc(store))
		if err != nil {
			log.Printf("Warning: Redis feedback buffer initialization failed: %v", err)
		} else {
			feedbackService.SetBuffer(feedbackBuffer)
			log.Println("Redis feedback buffer initialized")
		}
	}

	retention := service.NewRetentionScheduler(store, service.RetentionConfig{
		Retention: cfg.Feedback.Retention,
		Interval:  cfg.Feedback.RetentionInterval,
	})
	retention.Start()

	var tokenService *service.TokenService
	if cfg.Auth.JWTSecret != "" {
		tokenService, err = service.NewTokenService(service.TokenConfig{
			Secret: []byte(cfg.Auth.JWTSecret),
			Issuer: cfg.Auth.Issuer,
			TTL:    cfg.Auth.TokenTTL,
		}, redisClient)
		if err != nil {
			log.Fatalf("Failed to initialize token service: %v", err)
		}
	} else {
		log.Println("Warning: JWT_SECRET not set, admin routes are disabled")
	}

	// Upload audit log (optional)
	var uploadLogs repository.UploadLogRepository
	if cfg.Mongo.URI != "" {
		mongoRepo, err := repository.NewMongoDBUploadLogRepository(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			log.Printf("Warning: MongoDB upload log unavailable: %v", err)
		} else {
			defer mongoRepo.Close()
			uploadLogs = mongoRepo
			log.Println("MongoDB upload log initialized")
		}
	}

	// Object store
	var objects storage.ObjectStore
	var mediaDir string
	switch cfg.Storage.Type {
	case "http":
		objects = storage.NewHTTPStore(cfg.Storage.BaseURL, cfg.Storage.APIKey, &http.Client{Timeout: cfg.Upload.Timeout})
		log.Printf("Hosted object store initialized (%s)", cfg.Storage.BaseURL)
	default:
		disk, err := storage.NewDiskStore(cfg.Storage.DiskPath, strings.TrimRight(cfg.App.PublicURL, "/")+cfg.Storage.MediaPath)
		if err != nil {
			log.Fatalf("Failed to initialize disk store: %v", err)
		}
		objects = disk
		mediaDir = disk.Root()
		log.Printf("Disk object store initialized (%s)", disk.Root())
	}

	uploadCfg := upload.Config{
		Bucket:         cfg.Storage.Bucket,
		MaxBytes:       cfg.Upload.MaxBytes,
		AllowedTypes:   cfg.Upload.AllowedTypes,
		Timeout:        cfg.Upload.Timeout,
		VerifyTimeout:  cfg.Upload.VerifyTimeout,
		MaxWidth:       cfg.Upload.MaxWidth,
		MaxHeight:      cfg.Upload.MaxHeight,
		Quality:        cfg.Upload.Quality,
		MaxPixels:      cfg.Upload.MaxPixels,
		MaxInlineBytes: cfg.Upload.MaxInlineBytes,
	}
	var uploadOpts []upload.Option
	if uploadLogs != nil {
		uploadOpts = append(uploadOpts, upload.WithUploadLog(uploadLogs))
	}
	uploads := retry.New(retry.Config{Name: "Upload", MaxAttempts: retry.DefaultMaxAttempts})
	pipeline := upload.NewPipeline(objects, uploads, upload.HEADVerifier{}, uploadCfg, uploadOpts...)

	// Handlers
	imageBody := handler.ImageBodyLimit(uploadCfg)
	var authMiddleware func(http.Handler) http.Handler
	var authHandler *handler.AuthHandler
	if tokenService != nil {
		authMiddleware = middleware.NewAuthMiddleware(tokenService)
		authHandler = handler.NewAuthHandler(tokenService, cfg.Auth.LoginKey)
	}

	r := router.New(router.Config{
		Handler:         handler.New(cfg.App.Name, cfg.App.Version, store),
		PostHandler:     handler.NewPostHandler(postService, imageBody),
		GalleryHandler:  handler.NewGalleryHandler(galleryService, eventService, imageBody),
		FeedbackHandler: handler.NewFeedbackHandler(feedbackService),
		UploadHandler:   handler.NewUploadHandler(pipeline),
		AdminHandler:    handler.NewAdminHandler(caches, feedbackService, store, uploadLogs, string(store.Dialect())),
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MediaDir:        mediaDir,
		MediaPath:       cfg.Storage.MediaPath,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	retention.Stop()
	pipeline.Wait()

	// Close the buffer after the server so in-flight submissions are flushed.
	if feedbackBuffer != nil {
		log.Println("Closing Redis feedback buffer...")
		feedbackBuffer.Close()
	}

	log.Println("Server stopped")
}

// openBackend opens the configured records backend.
func openBackend(cfg *config.BackendConfig) (*repository.SQLStore, error) {
	dialect, err := repository.ParseDialect(cfg.Type)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case repository.DialectPostgres:
		return repository.NewPostgresStore(cfg.PostgresDSN())
	case repository.DialectMySQL:
		return repository.NewMySQLStore(cfg.MySQLDSN())
	default:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, err
			}
		}
		return repository.NewSQLiteStore(cfg.Path)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"openfashion/analysis"
	"openfashion/billing"
	"openfashion/config"
	"openfashion/database"
	"openfashion/database/memdb"
	"openfashion/events"
	"openfashion/googleauth"
	"openfashion/handlers"
	"openfashion/jobs"
	"openfashion/llm"
	"openfashion/logger"
	"openfashion/middleware"
	"openfashion/push"
	"openfashion/removebg"
	"openfashion/routes"
	"openfashion/search"
	"openfashion/storage"
	"openfashion/vision"
	"openfashion/websocket"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := logger.Init(!cfg.IsProduction(), cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	log.Info("Starting OpenFashion API", zap.String("environment", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ===== STORE =====
	var (
		store       *database.Store
		mongoClient *mongo.Client
	)
	if cfg.UseMemoryStore() {
		log.Warn("Using in-memory store; data is lost on restart")
		store = memdb.New()
	} else {
		mongoClient, err = database.Connect(ctx, cfg.MongoURI, 3)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		db := mongoClient.Database(cfg.MongoDB)
		ictx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := database.EnsureIndexes(ictx, db); err != nil {
			log.Warn("Index creation failed", zap.Error(err))
		}
		cancel()
		store = database.NewMongoStore(db)
	}

	// ===== ADAPTERS =====
	var uploader storage.Uploader = storage.Disabled{}
	if cfg.CloudinaryURL != "" {
		cld, err := storage.NewCloudinary(cfg.CloudinaryURL, cfg.StorageFolder)
		if err != nil {
			log.Fatal("Cloudinary configuration invalid", zap.Error(err))
		}
		uploader = cld
	} else {
		log.Warn("CLOUDINARY_URL not set; uploads are disabled")
	}

	var localizer vision.Localizer
	if v, err := vision.New(ctx, cfg.GoogleVisionAPIKey, cfg.GoogleApplicationCredentials); err != nil {
		log.Warn("Vision client unavailable; analysis jobs will fail", zap.Error(err))
		localizer = vision.Disabled{Err: err}
	} else {
		localizer = v
	}

	stylist := llm.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	searcher := search.New(cfg.SerpAPIKey)

	quota := billing.NewQuota(store.Users)
	payments := billing.NewService(billing.Options{
		SecretKey:      cfg.StripeSecretKey,
		WebhookSecret:  cfg.StripeWebhookSecret,
		PremiumPriceID: cfg.StripePremiumPriceID,
		FrontendURL:    cfg.FrontendURL,
	}, store.Users)
	if !payments.Enabled() {
		log.Warn("STRIPE_SECRET_KEY not set; payment routes are disabled")
	}

	// ===== REALTIME =====
	hub := websocket.NewManager()
	go hub.Start(ctx)

	publisher, err := events.Connect(cfg.NatsURL)
	if err != nil {
		log.Warn("NATS unavailable; job events are dropped", zap.Error(err))
		publisher = events.Noop{}
	}

	sender := push.NewSender(store.Push, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
	if !sender.Enabled() {
		log.Warn("VAPID keys not set; push notifications are disabled (run cmd/genvapid)")
	}

	// ===== JOBS =====
	pipeline := &analysis.Pipeline{
		Vision:  localizer,
		Storage: uploader,
		Remover: removebg.New(cfg.RemoveBGAPIKey),
		Search:  searcher,
		Queries: stylist,
		Fetcher: analysis.NewHTTPFetcher(),
		Log:     log,
	}
	pool := jobs.NewPool(jobs.Deps{
		Jobs:     store.Jobs,
		Profiles: store.Profiles,
		Runner:   pipeline,
		Quota:    quota,
		Hub:      hub,
		Push:     sender,
		Events:   publisher,
	}, jobs.Options{
		Workers:   cfg.WorkerCount,
		QueueSize: cfg.JobQueueSize,
		Timeout:   cfg.JobTimeout,
	})
	pool.Start()
	if n, err := pool.RequeuePending(ctx); err != nil {
		log.Error("Failed to requeue pending jobs", zap.Error(err))
	} else if n > 0 {
		log.Info("Requeued pending jobs", zap.Int("count", n))
	}

	// ===== RATE LIMITS =====
	limiter, authLimiter := rateLimiters(ctx, cfg, log)

	// ===== ROUTER =====
	if cfg.GinMode == gin.ReleaseMode || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	h := &handlers.Handler{
		Store:          store,
		Secret:         cfg.SecretKey,
		TokenTTL:       cfg.TokenTTL(),
		Storage:        uploader,
		Stylist:        stylist,
		Search:         searcher,
		Google:         googleauth.New(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI),
		Billing:        payments,
		Quota:          quota,
		Jobs:           pool,
		VAPIDPublicKey: sender.PublicKey(),
	}
	router := routes.SetupRouter(h, routes.Options{
		Secret:         cfg.SecretKey,
		AllowedOrigins: cfg.Origins(),
		Hub:            hub,
		Limiter:        limiter,
		AuthLimiter:    authLimiter,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	// ===== GRACEFUL SHUTDOWN =====
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	pool.Stop()
	publisher.Close()
	if err := database.Disconnect(mongoClient); err != nil {
		log.Error("MongoDB disconnect failed", zap.Error(err))
	}
	log.Info("Server stopped gracefully")
}

// rateLimiters uses Redis when REDIS_URL is set so replicas share budgets,
// otherwise in-process token buckets.
func rateLimiters(ctx context.Context, cfg *config.Config, log *zap.Logger) (middleware.Limiter, middleware.Limiter) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("Invalid REDIS_URL", zap.Error(err))
		}
		client := redis.NewClient(opts)
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			log.Warn("Redis unreachable; falling back to in-process rate limits", zap.Error(err))
			_ = client.Close()
		} else {
			log.Info("Using Redis rate limiter")
			return middleware.NewRedisRateLimiter(client, "rl:api:", cfg.RateLimitPerMinute),
				middleware.NewRedisRateLimiter(client, "rl:auth:", cfg.AuthRateLimitPerMinute)
		}
	}

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitPerMinute)
	authLimiter := middleware.NewIPRateLimiter(cfg.AuthRateLimitPerMinute)
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(10000)
				authLimiter.Cleanup(10000)
			}
		}
	}()
	return limiter, authLimiter
}

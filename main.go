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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/slidecoffee/brew-service/handlers"
	"github.com/slidecoffee/brew-service/internal/ai"
	"github.com/slidecoffee/brew-service/internal/brew/handler"
	"github.com/slidecoffee/brew-service/internal/brew/repository"
	"github.com/slidecoffee/brew-service/internal/brew/service"
	"github.com/slidecoffee/brew-service/internal/config"
	"github.com/slidecoffee/brew-service/internal/database"
	"github.com/slidecoffee/brew-service/internal/events"
	"github.com/slidecoffee/brew-service/internal/oidc"
	"github.com/slidecoffee/brew-service/internal/pipeline"
	"github.com/slidecoffee/brew-service/internal/quota"
	"github.com/slidecoffee/brew-service/internal/research"
	"github.com/slidecoffee/brew-service/internal/runs"
	"github.com/slidecoffee/brew-service/internal/storage"
	"github.com/slidecoffee/brew-service/internal/workspaces"
	"github.com/slidecoffee/brew-service/pkg/logger"
	"github.com/slidecoffee/brew-service/pkg/metrics"
	"github.com/slidecoffee/brew-service/pkg/middleware"
)

var startTime = time.Now()

// store is what both the pipeline and the draft service persist through.
type store interface {
	pipeline.DraftStore
	pipeline.PresentationStore
	service.Store
	quota.UsageReader
}

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal, LOG_FORMAT: text|json
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetFormat(os.Getenv("LOG_FORMAT"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v ai=%v", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.AI.APIKey != "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(cors(), gin.Logger(), gin.Recovery())

	// Redis backs the rate limiters and the run event journal.
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb, err = database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warnf("redis unavailable, falling back to in-process limiters: %v", err)
			rdb = nil
		} else {
			defer func() { _ = rdb.Close() }()
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	var (
		brewStore  store
		runStore   runs.Store
		members    workspaces.Repository
		mongoReady bool
	)
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB, 5, time.Second)
		if err != nil {
			logger.Warnf("%v; using in-memory stores", err)
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
			db := client.Database(cfg.MongoDB.Database)
			brewStore = repository.NewMongoRepo(db)
			runStore = runs.NewMongoStore(db)
			members = workspaces.NewMongoRepository(db)
			mongoReady = true
		}
	}
	if brewStore == nil {
		brewStore = repository.NewMemoryRepo()
		runStore = runs.NewMemoryStore()
		members = workspaces.NewMemoryRepository()
	}

	var objects storage.ObjectStore = storage.NewMemoryStorage()
	if mcfg := storage.LoadMinIOConfig(); mcfg.Endpoint != "" {
		ms, err := storage.NewMinIOStorage(ctx, mcfg)
		if err != nil {
			logger.Warnf("minio unavailable, keeping imports in memory: %v", err)
		} else {
			objects = ms
		}
	}

	// one journal serves both the pipeline writer and the replay endpoint
	var journal *events.Journal
	if rdb != nil {
		journal = events.NewJournal(rdb, "", 0)
	}

	var (
		gen          ai.Generator = ai.Disabled
		orchestrator *pipeline.Orchestrator
	)
	if provider, err := ai.NewOpenAI(cfg.AI); err != nil {
		logger.Warnf("AI provider disabled: %v", err)
	} else {
		gen = provider
		guard := quota.NewGuard(brewStore, cfg.Generation.MaxSlides, cfg.Generation.DefaultEstimate)
		opts := []pipeline.Option{
			pipeline.WithRunStore(runStore),
			pipeline.WithSearcher(research.NewDuckDuckGo(cfg.Search)),
		}
		if journal != nil {
			opts = append(opts, pipeline.WithJournal(journal))
		}
		orchestrator = pipeline.New(gen, brewStore, brewStore, guard, pipeline.SettingsFromConfig(cfg), opts...)
	}

	svc := service.New(brewStore, gen, objects, service.Settings{
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.OutlineTimeout,
		MaxSlides:   cfg.Generation.MaxSlides,
	})

	verifier, err := oidc.NewFromConfig(ctx, cfg.Keycloak)
	if err != nil {
		logger.Warnf("token verification unavailable, /api routes will reject requests: %v", err)
	}

	handlers.RegisterHealth(r, startTime, func() map[string]bool {
		return map[string]bool{
			"auth":    verifier != nil,
			"ai":      orchestrator != nil,
			"storage": cfg.MongoDB.URI == "" || mongoReady,
			"redis":   cfg.Redis.Host == "" || rdb != nil,
		}
	})
	handlers.RegisterSwagger(r)

	api := r.Group("/api")
	if verifier != nil {
		api.Use(middleware.AuthMiddleware(verifier), workspaces.PrincipalMiddleware(workspaces.NewService(members)))
	} else {
		api.Use(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "Authentication is not configured"})
		})
	}
	h := &handler.Handler{Service: svc, Orchestrator: orchestrator, Runs: runStore, Journal: journal}
	h.Register(api, middleware.RedisGenerationRateLimit(rdb, cfg.RateLimit.GenerationMax, cfg.RateLimit.GenerationWindow))

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		// slide streams stay open for minutes
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting brew service on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// cors answers preflight requests and allows any origin.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, X-Run-Id, Retry-After")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

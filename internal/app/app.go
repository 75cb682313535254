package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/medvault/portal/internal/config"
	"github.com/medvault/portal/internal/database"
	"github.com/medvault/portal/internal/middleware"
	"github.com/medvault/portal/internal/modules/processing/ai"
	"github.com/medvault/portal/internal/modules/processing/extract"
	"github.com/medvault/portal/internal/modules/storage/folder"
	"github.com/medvault/portal/internal/modules/summary"
	"github.com/medvault/portal/internal/pkg/blob"
	jwtpkg "github.com/medvault/portal/internal/pkg/jwt"
	pkgredis "github.com/medvault/portal/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	db      *gorm.DB
	redis   *pkgredis.Client
	blobs   blob.Store
	issuer  *jwtpkg.Issuer
	folders *folder.Service
	summary *summary.Service
	metrics *summary.Metrics
	logger  *zap.Logger
	started time.Time
}

// New initializes the application: config → DB → Redis → storage → summaries → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var rc *pkgredis.Client
	if cfg.Redis.Enable {
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	} else {
		logger.Info("redis disabled, summary locks and rate limits are process-local")
	}

	ctx := context.Background()
	blobs, err := blob.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	if cfg.JWTSecret == "" {
		logger.Warn("jwt_secret is empty, using built-in development secret")
	}

	a := &App{
		cfg:     cfg,
		db:      db,
		redis:   rc,
		blobs:   blobs,
		issuer:  jwtpkg.NewIssuer(cfg.JWTSecret, jwtpkg.DefaultTTL),
		folders: folder.NewService(db, blobs, cfg.MaxUploadBytes(), logger.Named("folder")),
		metrics: summary.NewMetrics(nil),
		logger:  logger,
		started: time.Now(),
	}
	a.summary = a.newSummaryService(ctx)
	a.router = a.newRouter()
	a.registerRoutes()
	return a, nil
}

func (a *App) newSummaryService(ctx context.Context) *summary.Service {
	log := a.logger.Named("summary")
	sc := a.cfg.Summary

	model, err := ai.NewModel(ctx, a.cfg.AI)
	if err != nil {
		log.Warn("summary model unavailable", zap.Error(err))
		model = ai.Unavailable{Err: err}
	} else {
		model = ai.NewRetryingModel(model, ai.RetryOptions{
			Attempts:          sc.MaxAttempts,
			Delay:             sc.RetryDelay,
			Timeout:           sc.RequestTimeout,
			RequestsPerMinute: sc.RequestsPerMinute,
		}, log)
	}

	extractor := extract.New(extract.Options{
		MaxPDFImages: sc.MaxPDFImages,
		MaxImageEdge: sc.MaxImageEdge,
		MaxTextChars: sc.MaxTextChars,
		MaxBytes:     a.cfg.MaxUploadBytes(),
	}, log.Named("extract"))

	store := summary.NewGormStore(a.db)
	gen := summary.NewGenerator(store, a.blobs, extractor, model, a.cfg.AI.MaxOutputTokens, log)
	return summary.NewService(a.folders, store, gen, summary.Options{
		Cooldown: sc.Cooldown,
		LockTTL:  sc.LockTTL,
	}, a.redis, a.metrics, log)
}

func (a *App) newRouter() *gin.Engine {
	if a.cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.MaxMultipartMemory = a.cfg.MaxUploadBytes() + 1<<20
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(a.logger.Named("http")))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.IdempotenceHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(a.cfg.AllowedOrigins) > 0 && !a.cfg.IsDev() {
		corsConfig.AllowOriginFunc = allowOrigins(a.cfg.AllowedOrigins)
	} else {
		corsConfig.AllowOriginFunc = func(string) bool { return true }
	}
	router.Use(cors.New(corsConfig))
	return router
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown closes the redis and database connections.
func (a *App) Shutdown() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

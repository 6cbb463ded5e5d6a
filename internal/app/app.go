// Package app wires configuration into the stores and services shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"edupulse/internal/aiclient"
	"edupulse/internal/assistant"
	"edupulse/internal/attendance"
	"edupulse/internal/auth"
	"edupulse/internal/config"
	"edupulse/internal/handler"
	"edupulse/internal/httpmiddleware"
	"edupulse/internal/insights"
	"edupulse/internal/logging"
	"edupulse/internal/notify"
	"edupulse/internal/photostore"
	"edupulse/internal/queue"
	"edupulse/internal/roster"
	"edupulse/internal/store"
	"edupulse/internal/validation"
)

// App holds every long-lived dependency of a process.
type App struct {
	Config config.App
	Log    *zap.Logger

	DB    *store.DB
	Redis *store.Redis // nil unless a Redis backend is configured
	Queue queue.Queue

	Issuer     auth.Issuer
	Auth       *auth.Service
	Teachers   *auth.Repository
	Students   *roster.Repository
	Roster     *roster.Service
	Importer   *roster.Importer
	Records    *attendance.Repository
	Marking    *attendance.Service
	Photos     *attendance.PhotoMarker
	Jobs       *attendance.Jobs
	Insights   *insights.Service
	Assistant  *assistant.Service
	Notify     *notify.Service
	PhotoStore photostore.Store
}

// New opens the database, Redis and photo storage named by cfg and builds the services.
func New(ctx context.Context, cfg config.App, log *zap.Logger) (*App, error) {
	validation.Init()

	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if !cfg.Production() || cfg.DBDriver == store.DriverSQLite {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	a := &App{Config: cfg, Log: log, DB: db}
	if cfg.QueueBackend == "redis" || cfg.RateLimitBackend == "redis" {
		a.Redis = store.NewRedis(store.RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: cfg.RedisNamespace,
		})
		if !a.Redis.Healthy(ctx) {
			log.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr))
		}
	}
	if cfg.QueueBackend == "redis" {
		a.Queue = queue.NewRedisQueue(a.Redis.Client, a.Redis.Key("photo-jobs"), log)
	} else {
		a.Queue = queue.NewInMemory(64)
	}

	a.PhotoStore, err = newPhotoStore(ctx, cfg)
	if err != nil {
		log.Warn("photo storage unavailable", zap.String("backend", cfg.PhotoBackend), zap.Error(err))
	}

	llm := aiclient.New(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewayModel, cfg.GatewayTimeout, cfg.GatewaySkip, log)

	a.Issuer = auth.Issuer{
		Name:       cfg.JWTIssuer,
		Key:        []byte(cfg.JWTSigningKey),
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}
	a.Teachers = auth.NewRepository(db.Client)
	a.Auth = auth.NewService(a.Teachers, a.Issuer, log)

	a.Students = roster.NewRepository(db.Client)
	a.Roster = roster.NewService(a.Students, log)
	a.Importer = roster.NewImporter(a.Students, roster.DefaultBatchSize, log)

	a.Records = attendance.NewRepository(db.Client)
	a.Marking = attendance.NewService(a.Records, a.Roster, log)
	a.Photos = attendance.NewPhotoMarker(a.Records, a.Roster, llm, cfg.MaxImageBytes, log)
	a.Jobs = attendance.NewJobs(a.Records, a.Photos, a.Queue, log)

	a.Insights = insights.NewService(a.Records, a.Roster)
	a.Assistant = assistant.NewService(a.Roster, a.Records, llm, cfg.NarrativeAttendanceLimit, log)
	a.Notify = notify.NewService(notify.NewRepository(db.Client), a.Teachers, a.Students, a.Records, log)
	return a, nil
}

func newPhotoStore(ctx context.Context, cfg config.App) (photostore.Store, error) {
	switch cfg.PhotoBackend {
	case photostore.BackendCloudinary:
		if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
			return nil, photostore.ErrNotConfigured
		}
		return photostore.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder), nil
	case photostore.BackendMinIO:
		m, err := photostore.NewMinIO(ctx, photostore.MinIOConfig{
			Endpoint: cfg.MinIOEndpoint,
			User:     cfg.MinIOUser,
			Password: cfg.MinIOPassword,
			Bucket:   cfg.MinIOBucket,
			UseSSL:   cfg.MinIOUseSSL,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, nil
	}
}

// Router builds the HTTP engine with middleware, metrics and the API routes.
func (a *App) Router() *gin.Engine {
	if a.Config.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinLogger(a.Log, "/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     a.Config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", handler.SecurityHeader},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: !allowsAny(a.Config.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.RateLimit(a.limiter(), httpmiddleware.ClientIP, a.Log))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	deps := handler.Deps{
		Auth:      a.Auth,
		Issuer:    a.Issuer,
		Roster:    a.Roster,
		Importer:  a.Importer,
		Marking:   a.Marking,
		Photos:    a.Photos,
		Jobs:      a.Jobs,
		Insights:  a.Insights,
		Assistant: a.Assistant,
		Notify:    a.Notify,
		DB:        a.DB,
		Log:       a.Log,
	}
	if a.PhotoStore != nil {
		deps.PhotoStore = a.PhotoStore
	}
	if a.Redis != nil {
		deps.Redis = a.Redis
	}
	handler.New(deps).Routes(r)
	return r
}

func (a *App) limiter() httpmiddleware.Limiter {
	if a.Config.RateLimitBackend == "redis" && a.Redis != nil {
		return httpmiddleware.NewRedisWindow(a.Redis.Client, a.Redis.Key("ratelimit"), a.Config.RateLimitPerMin)
	}
	return httpmiddleware.NewSimpleTokenBucket(a.Config.RateLimitPerMin, a.Config.RateLimitPerMin)
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	_ = a.DB.Close()
}

func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// ConsumeJobs processes queued photo jobs until ctx is cancelled.
func (a *App) ConsumeJobs(ctx context.Context) error {
	messages, err := a.Queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	a.Log.Info("photo job consumer started")
	for msg := range messages {
		if msg.Type != queue.TypePhotoMark {
			a.Log.Warn("unknown queue message", zap.String("type", msg.Type))
			continue
		}
		id := string(msg.Body)
		err := a.Jobs.Process(ctx, id)
		switch {
		case errors.Is(err, attendance.ErrJobDone):
			a.Log.Debug("photo job already finished", zap.String("job_id", id))
		case err != nil:
			a.Log.Error("photo job failed", zap.String("job_id", id), zap.Error(err))
		}
	}
	a.Log.Info("photo job consumer stopped")
	return nil
}

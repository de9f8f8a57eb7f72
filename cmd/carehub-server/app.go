package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/carehub/internal/config"
	"github.com/ehr/carehub/internal/domain/activity"
	"github.com/ehr/carehub/internal/domain/agent"
	"github.com/ehr/carehub/internal/domain/clinical"
	"github.com/ehr/carehub/internal/domain/encounter"
	"github.com/ehr/carehub/internal/domain/identity"
	"github.com/ehr/carehub/internal/domain/integration"
	"github.com/ehr/carehub/internal/domain/scheduling"
	"github.com/ehr/carehub/internal/domain/workqueue"
	"github.com/ehr/carehub/internal/platform/auth"
	"github.com/ehr/carehub/internal/platform/blobstore"
	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/internal/platform/db"
	"github.com/ehr/carehub/internal/platform/jobs"
	"github.com/ehr/carehub/internal/platform/middleware"
	"github.com/ehr/carehub/internal/platform/websocket"
)

// app holds the wired server and the resources it must release.
type app struct {
	echo    *echo.Echo
	jobs    *jobs.Manager
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// repoFor returns a Postgres repository when a pool is configured and an
// in-memory one otherwise.
func repoFor[T crud.Entity](pool *pgxpool.Pool, kind *crud.Kind[T]) crud.Repository[T] {
	if pool == nil {
		return crud.NewMemoryRepo(kind)
	}
	return crud.NewPGRepo(pool, kind)
}

// newApp connects the configured backends and builds the routed echo
// server. The job manager is returned unstarted.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	health := map[string]db.Pinger{}

	var pool *pgxpool.Pool
	if cfg.StorageDriver == config.StoragePostgres {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		logger.Info().Msg("connected to database")
	}

	publisher := activity.NopPublisher()
	if cfg.AMQPURL != "" {
		amqpPub, err := activity.NewAMQPPublisher(cfg.AMQPURL, cfg.ActivityExchange)
		if err != nil {
			return nil, err
		}
		publisher = amqpPub
		health["amqp"] = amqpPub
		logger.Info().Str("exchange", cfg.ActivityExchange).Msg("publishing activity to rabbitmq")
	}
	a.closers = append(a.closers, func() { _ = publisher.Close() })

	var jobStore jobs.Store = jobs.NewMemoryStore()
	if cfg.RedisURL != "" {
		rdb, err := jobs.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		redisStore := jobs.NewRedisStore(rdb)
		jobStore = redisStore
		health["redis"] = redisStore
		logger.Info().Msg("storing jobs in redis")
	}

	var blobs blobstore.Store = blobstore.NewMemoryStore(cfg.UploadMaxBytes)
	if cfg.MinioEndpoint != "" {
		minioStore, err := blobstore.NewMinioStore(ctx, blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, cfg.UploadMaxBytes)
		if err != nil {
			return nil, err
		}
		blobs = minioStore
		health["minio"] = minioStore
		logger.Info().Str("bucket", cfg.MinioBucket).Msg("storing uploads in minio")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", db.HealthHandler(pool, health))

	rl := middleware.DefaultRateLimitConfig()
	rl.RequestsPerSecond = cfg.RateLimitRPS
	rl.BurstSize = cfg.RateLimitBurst

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(rl))
	api.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	if cfg.AuthMode == config.AuthModeJWT {
		api.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: cfg.SigningKey(),
		}))
	} else {
		logger.Warn().Msg("authentication disabled")
		api.Use(auth.DevAuthMiddleware())
	}

	activitySvc := crud.Mount(api, activity.Kind, repoFor(pool, activity.Kind))
	recorder := activity.NewRecorder(activitySvc, publisher, logger)

	crud.Mount(api, encounter.Kind, repoFor(pool, encounter.Kind), recorder)
	crud.Mount(api, clinical.ObservationKind, repoFor(pool, clinical.ObservationKind), recorder)
	crud.Mount(api, clinical.ConditionKind, repoFor(pool, clinical.ConditionKind), recorder)
	crud.Mount(api, clinical.AllergyKind, repoFor(pool, clinical.AllergyKind), recorder)
	crud.Mount(api, identity.PatientKind, repoFor(pool, identity.PatientKind), recorder)
	crud.Mount(api, identity.PractitionerKind, repoFor(pool, identity.PractitionerKind), recorder)
	crud.Mount(api, scheduling.AppointmentKind, repoFor(pool, scheduling.AppointmentKind), recorder)
	crud.Mount(api, scheduling.WaitlistKind, repoFor(pool, scheduling.WaitlistKind), recorder)
	crud.Mount(api, integration.Kind, repoFor(pool, integration.Kind), recorder)
	crud.Mount(api, workqueue.Kind, repoFor(pool, workqueue.Kind), recorder)
	agentSvc := crud.Mount(api, agent.Kind, repoFor(pool, agent.Kind), recorder)

	hub := websocket.NewHub(logger)
	mgr := jobs.NewManager(jobStore, hub, logger, cfg.JobWorkers)
	mgr.Register(agent.DeployJobKind, agent.NewDeployer(agentSvc))
	jobs.NewHandler(mgr, hub).RegisterRoutes(api)
	api.GET("/ws", hub.HandleConnect)

	blobstore.NewHandler(blobs, logger).RegisterRoutes(api)

	a.echo = e
	a.jobs = mgr
	return a, nil
}

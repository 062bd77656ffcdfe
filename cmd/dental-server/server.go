package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/dental/internal/config"
	"github.com/dentaldesk/dental/internal/domain/account"
	"github.com/dentaldesk/dental/internal/domain/catalog"
	"github.com/dentaldesk/dental/internal/domain/clinic"
	"github.com/dentaldesk/dental/internal/domain/dentalchart"
	"github.com/dentaldesk/dental/internal/domain/patientfile"
	"github.com/dentaldesk/dental/internal/domain/profile"
	"github.com/dentaldesk/dental/internal/domain/queue"
	"github.com/dentaldesk/dental/internal/domain/treatment"
	"github.com/dentaldesk/dental/internal/platform/auth"
	"github.com/dentaldesk/dental/internal/platform/db"
	"github.com/dentaldesk/dental/internal/platform/events"
	"github.com/dentaldesk/dental/internal/platform/fetch"
	"github.com/dentaldesk/dental/internal/platform/livefeed"
	"github.com/dentaldesk/dental/internal/platform/middleware"
	"github.com/dentaldesk/dental/internal/platform/objectstore"
	"github.com/dentaldesk/dental/internal/platform/previewcache"
)

const (
	apiPrefix    = "/api/v1"
	objectsPath  = "/_objects"
	tokenIssuer  = "dental-server"
	fetchTimeout = 15 * time.Second
)

// publicPaths bypass authentication. Route patterns are matched as
// registered, optionally scoped to a method.
func publicPaths() []string {
	return []string{
		"/health",
		"/health/db",
		objectsPath + "/*",
		apiPrefix + "/auth/login",
		apiPrefix + "/auth/refresh",
		apiPrefix + "/services",
		apiPrefix + "/services/categories",
		apiPrefix + "/services/:id",
		"GET " + apiPrefix + "/clinic",
		apiPrefix + "/dental-chart/legend",
	}
}

// authMiddleware picks token validation for the configured auth mode. The
// issuer is non-nil only when the server signs its own tokens.
func authMiddleware(cfg *config.Config) (echo.MiddlewareFunc, *auth.TokenIssuer) {
	switch cfg.ResolvedAuthMode() {
	case "development":
		return auth.DevAuthMiddleware(), nil
	case "external":
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}), nil
	default:
		key := []byte(cfg.AuthSigningKey)
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     tokenIssuer,
			SigningKey: key,
		}), auth.NewTokenIssuer(key, tokenIssuer, cfg.AuthTokenTTL)
	}
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	return rl
}

// backends holds the optional infrastructure behind the file and queue
// services. Closers run in order on shutdown.
type backends struct {
	store     objectstore.Store
	memStore  *objectstore.MemoryStore
	cache     previewcache.Cache
	publisher events.Publisher
	feed      *livefeed.Hub
	closers   []func() error
}

func (b *backends) close(logger zerolog.Logger) {
	for _, fn := range b.closers {
		if err := fn(); err != nil {
			logger.Warn().Err(err).Msg("closing backend")
		}
	}
}

func openBackends(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backends, error) {
	b := &backends{}

	switch cfg.StorageBackend {
	case "memory":
		mem := objectstore.NewMemoryStore(cfg.StorageBucket)
		mem.BaseURL = strings.TrimRight(localBaseURL(cfg), "/") + objectsPath
		b.store, b.memStore = mem, mem
		logger.Warn().Msg("using in-memory object storage; uploaded files are lost on restart")
	default:
		s3Store, err := objectstore.NewS3Store(ctx, objectstore.S3Config{
			Bucket:        cfg.StorageBucket,
			Endpoint:      cfg.StorageEndpoint,
			Region:        cfg.StorageRegion,
			AccessKeyID:   cfg.StorageAccessKeyID,
			SecretKey:     cfg.StorageSecretKey,
			PublicBaseURL: cfg.StoragePublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
		b.store = s3Store
	}

	if cfg.RedisURL != "" {
		rc, err := previewcache.NewRedisCache(cfg.RedisURL, cfg.PreviewCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("preview cache: %w", err)
		}
		b.cache = rc
		b.closers = append(b.closers, rc.Close)
	} else {
		b.cache = previewcache.NewMemoryCache(cfg.PreviewCacheTTL)
	}

	var sink events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		sink = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.QueueEventsTopic, logger)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.QueueEventsTopic).Msg("publishing queue events to kafka")
	} else {
		sink = events.NewLogPublisher(logger)
	}
	b.feed = livefeed.NewHub(logger)
	b.publisher = events.Fanout{b.feed, sink}
	b.closers = append(b.closers, b.publisher.Close)

	return b, nil
}

func localBaseURL(cfg *config.Config) string {
	scheme := "http"
	if cfg.TLSEnabled {
		scheme = "https"
	}
	return fmt.Sprintf("%s://localhost:%s", scheme, cfg.Port)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	be, err := openBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open backends")
	}
	defer be.close(logger)

	e := newServer(cfg, pool, be, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with every route mounted.
func newServer(cfg *config.Config, pool *pgxpool.Pool, be *backends, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	authMW, issuer := authMiddleware(cfg)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Branch-ID", "X-Dev-User", "X-Dev-Role"},
		ExposeHeaders: []string{
			patientfile.RetrievalMethodHeader, "X-Request-ID",
		},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", cfg.UploadMaxSize))
	e.Use(auth.SkipPaths(authMW, publicPaths()...))
	e.Use(db.BranchMiddleware(cfg.DefaultBranch))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, map[string]db.Pinger{
		"storage": be.store,
		"cache":   be.cache,
	}))
	if be.memStore != nil {
		e.Any(objectsPath+"/*", echo.WrapHandler(http.StripPrefix(objectsPath, be.memStore.Handler())))
	}

	api := e.Group(apiPrefix)
	api.Use(middleware.RateLimit(rateLimitConfig(cfg)))

	loc := cfg.Location()

	profileRepo := profile.NewRepoPG(pool)
	profileSvc := profile.NewService(profileRepo, loc)
	profile.NewHandler(profileSvc).RegisterRoutes(api)

	accountSvc := account.NewService(account.NewRepoPG(pool), profileRepo, issuer, 0)
	account.NewHandler(accountSvc).RegisterRoutes(api, api)

	clinicSvc := clinic.NewService(clinic.NewRepoPG(pool))
	clinic.NewHandler(clinicSvc).RegisterRoutes(api, api)

	catalog.NewHandler(catalog.NewCatalog(catalog.NewRepoPG(pool))).RegisterRoutes(api)

	treatmentSvc := treatment.NewService(treatment.NewRepoPG(pool), loc)
	treatment.NewHandler(treatmentSvc).RegisterRoutes(api)

	chartSvc := dentalchart.NewService(dentalchart.NewRepoPG(pool), profileSvc, clinicSvc, treatmentSvc)
	dentalchart.NewHandler(chartSvc).RegisterRoutes(api)

	fileSvc := patientfile.NewService(
		patientfile.NewRepoPG(pool),
		profileSvc,
		be.store,
		be.cache,
		fetch.New(fetchTimeout, middleware.ParseLimit(cfg.UploadMaxSize)),
		cfg.StorageSignedURLTTL,
		logger,
	)
	patientfile.NewHandler(fileSvc).RegisterRoutes(api)

	queueSvc := queue.NewService(queue.NewRepoPG(pool), be.publisher, cfg.QueueAvgServiceMinutes, logger)
	queue.NewHandler(queueSvc).RegisterRoutes(api)
	livefeed.NewHandler(be.feed, cfg.CORSOrigins).RegisterRoutes(api)

	return e
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/workhours/libs/config"
	"github.com/md-rashed-zaman/workhours/libs/db"
	"github.com/md-rashed-zaman/workhours/libs/httpx"
	"github.com/md-rashed-zaman/workhours/libs/kafkax"
	otelx "github.com/md-rashed-zaman/workhours/libs/otel"
	"github.com/md-rashed-zaman/workhours/libs/runtime"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/catalog"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/cleanup"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/committer"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/conversation"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/grpcserver"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/handlers"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/outbox"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// store is everything the service needs from a storage backend.
type store interface {
	committer.Store
	catalog.Store
	cleanup.Store
	handlers.Calendar
}

func main() {
	service := config.String("SERVICE_NAME", "schedule-service")
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))
	if err := run(service, logger); err != nil {
		logger.Error("schedule-service failed", "err", err)
		os.Exit(1)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8090")
	if err != nil {
		return err
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		return err
	}
	granularity, err := config.Int("SLOT_GRANULARITY_MINUTES", schedule.DefaultGranularityMinutes)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(config.String("BUSINESS_TIMEZONE", "UTC"))
	if err != nil {
		return err
	}
	cfg, err := schedule.NewConfig(granularity, loc)
	if err != nil {
		return err
	}
	sessionTTL, err := config.Duration("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return err
	}
	cleanupEvery, err := config.Duration("CLEANUP_INTERVAL", 10*time.Minute)
	if err != nil {
		return err
	}
	bookLimit, err := config.Int("BOOKING_RATE_LIMIT", 20)
	if err != nil {
		return err
	}
	pageSize, err := config.Int("AVAILABILITY_PAGE_SIZE", 8)
	if err != nil {
		return err
	}
	passwordHash := config.String("OPERATOR_PASSWORD_HASH", "")
	if passwordHash == "" {
		logger.Warn("OPERATOR_PASSWORD_HASH not set; operator login is disabled")
	}
	jwtSecret := config.String("JWT_SECRET", "dev-secret")
	brokers := config.String("KAFKA_BROKERS", "")

	ctx, stop := runtime.ShutdownContext(context.Background(), logger)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var (
		st     store
		source outbox.Source
		checks []runtime.ReadyCheck
	)
	switch driver := config.String("STORAGE_DRIVER", "postgres"); driver {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		mem := storage.NewMemory()
		st, source = mem, mem
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return err
		}
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := storage.Migrate(ctx, pool); err != nil {
			return err
		}
		outboxRepo := outbox.NewRepository()
		st = storage.NewPostgres(pool, outboxRepo)
		source = outbox.NewPostgresSource(pool, outboxRepo)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	default:
		return errors.New("STORAGE_DRIVER must be postgres or memory (got " + driver + ")")
	}
	checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})

	var (
		sessions    conversation.Store
		bookLimiter httpx.Middleware
		trustProxy  = config.Bool("TRUST_PROXY", false)
	)
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		sessions = conversation.NewRedisStore(rdb, config.String("REDIS_SESSION_PREFIX", ""), sessionTTL)
		limiter := httpx.NewRedisRateLimiter(rdb, bookLimit, time.Minute, "workhours:rl:book")
		if trustProxy {
			limiter.TrustProxy()
		}
		bookLimiter = limiter.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: conversation.RedisReadyCheck(rdb)})
	} else {
		logger.Warn("REDIS_URL not set; sessions and rate limits are per process")
		sessions = conversation.NewMemoryStore(sessionTTL)
		limiter := httpx.NewRateLimiter(bookLimit, time.Minute)
		if trustProxy {
			limiter.TrustProxy()
		}
		bookLimiter = limiter.Middleware()
	}

	commit := committer.New(cfg, st, logger)
	cat := catalog.New(cfg, st)
	operator := conversation.NewOperator(cfg, sessions, commit, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.Routes{
		Auth:      handlers.NewAuthHandler(config.String("OPERATOR_ID", "operator"), passwordHash, jwtSecret, 12*time.Hour),
		Operator:  handlers.NewOperatorHandler(cfg, operator, cat, st, logger),
		Public:    handlers.NewPublicHandler(cat, commit, logger, pageSize),
		BookLimit: bookLimiter,
		Secret:    jwtSecret,
	}.Register(mux)

	bodyLimit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return err
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.NewCORS(config.List("CORS_ALLOWED_ORIGINS")).Middleware(),
		httpx.WithBodyLimit(int64(bodyLimit)),
		httpx.WithTimeout(10*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "schedule")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpcserver.New(logger)
	health := grpcserver.RegisterHealth(grpcSrv, service, checks, logger)

	publisher := outbox.NewPublisher(source, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	sweeper := cleanup.NewWorker(st, logger, cleanup.WorkerConfig{Interval: cleanupEvery})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+grpcPort)
		if err != nil {
			return err
		}
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error { health.Run(gctx); return nil })
	g.Go(func() error { publisher.Run(gctx); return nil })
	g.Go(func() error { sweeper.Run(gctx); return nil })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "err", err)
		}
		grpcSrv.GracefulStop()
		logger.Info("servers stopped")
		return nil
	})

	return g.Wait()
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"peerlend-backend/internal/adapter/graph"
	httpadp "peerlend-backend/internal/adapter/http"
	appmw "peerlend-backend/internal/adapter/middleware"
	notifyadp "peerlend-backend/internal/adapter/notify"
	"peerlend-backend/internal/adapter/repository/mysql"
	"peerlend-backend/internal/config"
	notifyDomain "peerlend-backend/internal/domain/notify"
	"peerlend-backend/internal/infrastructure/cache"
	"peerlend-backend/internal/infrastructure/db"
	"peerlend-backend/internal/infrastructure/dispatch"
	"peerlend-backend/internal/infrastructure/logging"
	"peerlend-backend/internal/usecase/accountability"
	"peerlend-backend/internal/usecase/loan"
	"peerlend-backend/internal/usecase/matching"
	"peerlend-backend/internal/usecase/reliability"
	"peerlend-backend/internal/usecase/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logging.Setup(logging.Options{
		Service:    "peerlend-api",
		Env:        cfg.Env,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
	})
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.OpenGorm(cfg.MySQLDSN(), db.DefaultPool())
	if err != nil {
		return err
	}
	if err := mysql.Migrate(gdb); err != nil {
		return err
	}

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	queue := dispatch.NewQueue(dispatch.Options{Workers: cfg.QueueWorkers, Capacity: cfg.QueueCapacity}, log)

	sinks := notifyadp.Fanout{notifyadp.NewLogSink(log)}
	if len(cfg.KafkaBrokers) > 0 {
		ks, err := notifyadp.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer ks.Close()
		sinks = append(sinks, ks)
	}
	var notifier notifyDomain.Notifier = notifyadp.NewAsync(queue, sinks, log)

	repos := mysql.NewRepos(gdb)
	tx := mysql.NewGormUoW(gdb)
	store := settings.NewStore(mysql.NewSettingsRepository(gdb), settings.Defaults(), cfg.SettingsCacheTTL, log)
	tracker := reliability.NewTracker(log)

	accOpts := []accountability.Option{accountability.WithLogger(log)}
	var backers httpadp.BackerGraph
	if cfg.Neo4jURI != "" {
		gc, err := graph.NewNeo4jClient(ctx, graph.Options{
			URI:      cfg.Neo4jURI,
			Database: cfg.Neo4jDatabase,
			Username: cfg.Neo4jUser,
			Password: cfg.Neo4jPass,
		})
		if err != nil {
			return err
		}
		defer gc.Close(context.Background())
		projector := graph.NewProjector(gc, queue, log)
		accOpts = append(accOpts, accountability.WithProjector(projector))
		backers = projector
	}

	cascade := matching.NewEngine(repos, tx, store, tracker, notifier,
		matching.WithLogger(log),
		matching.WithLease(cache.NewLease(rdb, "lease:"), time.Minute),
	)
	acc := accountability.NewEngine(repos, tx, store, notifier, accOpts...)
	loans := loan.NewUsecase(repos, tx, tracker, acc, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.RequestID(), middleware.Recover(), middleware.Logger())

	httpadp.Register(e, httpadp.Routes{
		Health: httpadp.NewHandler(
			httpadp.Check{Name: "mysql", Ping: db.Ping(gdb)},
			httpadp.Check{Name: "redis", Ping: cache.Ping(rdb)},
		),
		Loans:      httpadp.NewLoanHandler(loans, cascade),
		Offers:     httpadp.NewOfferHandler(cascade),
		Backings:   httpadp.NewBackingHandler(acc, backers),
		Internal:   httpadp.NewInternalHandler(cascade, loans),
		Actor:      appmw.JWTActor([]byte(cfg.JWTSecret), cfg.JWTIssuer),
		Service:    appmw.InternalSecret(cfg.InternalSecret),
		Idempotent: appmw.IdempotencyMiddleware(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second),
		Metrics:    promhttp.Handler(),
	})

	if cfg.SweepInterval > 0 {
		go sweepLoop(ctx, cascade, cfg.SweepInterval, log)
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.AppPort
		log.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if err := queue.Close(shutdownCtx); err != nil {
		log.Warn("dispatch queue did not drain", "error", err)
	}
	return nil
}

// sweepLoop runs the cascade sweep in-process. Overlapping sweeps across
// instances are excluded by the redis lease.
func sweepLoop(ctx context.Context, cascade *matching.Engine, every time.Duration, log *slog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res, err := cascade.Sweep(ctx)
			switch {
			case errors.Is(err, matching.ErrSweepInProgress):
				log.Debug("sweep skipped; lease held elsewhere")
			case err != nil:
				log.Error("sweep failed", "error", err)
			case len(res.Errors) > 0:
				log.Warn("sweep finished with errors", "expired", res.OffersExpired, "errors", len(res.Errors))
			}
		}
	}
}

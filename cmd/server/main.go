package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"healthpass/internal/accesscontrol"
	"healthpass/internal/authority/cache"
	authorityservice "healthpass/internal/authority/service"
	authoritystore "healthpass/internal/authority/store"
	"healthpass/internal/events"
	"healthpass/internal/platform/config"
	"healthpass/internal/platform/httpserver"
	"healthpass/internal/platform/logger"
	"healthpass/internal/platform/metrics"
	"healthpass/internal/platform/middleware"
	platformredis "healthpass/internal/platform/redis"
	proofservice "healthpass/internal/proof/service"
	proofstore "healthpass/internal/proof/store"
	transport "healthpass/internal/transport/http"
	"healthpass/pkg/domain"
	"healthpass/pkg/platform/tx"
)

func main() {
	configPath := flag.String("config", os.Getenv("HEALTHPASS_CONFIG"), "path to config file")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.AdminIdentity == "" {
		log.Error("admin_identity must be configured")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New(prometheus.DefaultRegisterer)
	ac := accesscontrol.New(domain.Identity(cfg.AdminIdentity))

	authStore, proofStore, db, closeDB, err := buildStores(cfg)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer closeDB()

	serializer := tx.NewSerializer()
	if db != nil {
		serializer = tx.NewSQLSerializer(db)
	}

	publisher, closePublisher, err := buildPublisher(cfg, log)
	if err != nil {
		log.Error("failed to start publisher", "error", err)
		os.Exit(1)
	}
	defer closePublisher()

	authorityOpts := []authorityservice.Option{
		authorityservice.WithLogger(log),
		authorityservice.WithMetrics(reg),
		authorityservice.WithPublisher(publisher),
	}

	if cfg.Redis.URL != "" {
		redisClient, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		authorityOpts = append(authorityOpts,
			authorityservice.WithCache(cache.New(redisClient.Client, cfg.AuthorityCacheTTL, log)))
	}

	authorities := authorityservice.New(authStore, ac, serializer, authorityOpts...)
	proofs := proofservice.New(proofStore, authorities, ac, serializer,
		proofservice.WithLogger(log),
		proofservice.WithMetrics(reg),
		proofservice.WithPublisher(publisher))

	validator := middleware.NewTokenValidator(cfg.JWTSigningKey)
	handler := transport.NewHandler(authorities, proofs, ac, log)
	router := otelhttp.NewHandler(transport.NewRouter(handler, validator), "healthpass")

	server := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// buildStores picks postgres when a database URL is configured and falls
// back to in-memory stores otherwise. The *sql.DB is returned so the
// serializer can open one transaction per critical section.
func buildStores(cfg *config.Config) (authoritystore.Store, proofstore.Store, *sql.DB, func(), error) {
	if cfg.DatabaseURL == "" {
		return authoritystore.NewMemory(), proofstore.NewMemory(), nil, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, nil, nil, err
	}
	return authoritystore.NewPostgres(db), proofstore.NewPostgres(db), db, func() { _ = db.Close() }, nil
}

// buildPublisher emits to Kafka when brokers are configured, otherwise to
// the structured log.
func buildPublisher(cfg *config.Config, log *slog.Logger) (events.Publisher, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NewLog(log), func() {}, nil
	}

	kafka, err := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	return kafka, kafka.Close, nil
}

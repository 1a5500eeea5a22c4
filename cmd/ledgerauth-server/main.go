// Command ledgerauth-server serves the ledgerAuth HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alicebob/miniredis/v2"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	ledgerAuth "github.com/MrEthical07/ledgerAuth"
	"github.com/MrEthical07/ledgerAuth/httpapi"
	"github.com/MrEthical07/ledgerAuth/internal/envconfig"
	"github.com/MrEthical07/ledgerAuth/internal/logging"
	"github.com/MrEthical07/ledgerAuth/mail"
	"github.com/MrEthical07/ledgerAuth/seal"
	"github.com/MrEthical07/ledgerAuth/store/pgstore"
	"github.com/MrEthical07/ledgerAuth/store/redisstore"
)

func main() {
	cfg, err := envconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// run wires every backend, serves until ctx is cancelled and then drains.
func run(ctx context.Context, cfg envconfig.ServerConfig, logger *zap.Logger) error {
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	rdb, closeRedis, err := openRedis(cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeRedis)

	credentials, closeStore, err := openStore(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeStore)

	mailer, closeMailer, err := openMailer(cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeMailer)

	sealer, err := openSealer(ctx, cfg)
	if err != nil {
		return err
	}

	engine, err := ledgerAuth.New().
		WithConfig(cfg.Engine).
		WithRedis(rdb).
		WithStore(credentials).
		WithMailer(mailer).
		WithSealer(sealer).
		WithAuditSink(ledgerAuth.NewZapSink(logger.Named("audit"))).
		WithLogger(logger.Named("engine")).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	closers = append(closers, engine.Close)

	router := httpapi.NewRouter(engine, logger, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
	})
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server started",
			zap.String("environment", cfg.Env),
			zap.String("address", server.Addr),
			zap.String("store", cfg.StoreBackend),
			zap.String("mailer", cfg.MailerBackend),
			zap.String("sealer", cfg.SealerBackend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown server gracefully", zap.Error(err))
			return err
		}
		logger.Info("Server shutdown completed")
		return nil
	})
	return g.Wait()
}

// openRedis connects to REDIS_ADDR. Outside production an in-process
// miniredis stands in when no address is configured.
func openRedis(cfg envconfig.ServerConfig, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	if cfg.RedisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	logger.Warn("REDIS_ADDR not set; using in-memory redis, data is lost on exit", zap.String("addr", mr.Addr()))
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func openStore(ctx context.Context, cfg envconfig.ServerConfig, rdb redis.UniversalClient, logger *zap.Logger) (ledgerAuth.CredentialStore, func(), error) {
	if cfg.StoreBackend != envconfig.StorePostgres {
		return redisstore.New(rdb, cfg.Engine.Security.RedisPrefix), func() {}, nil
	}

	db, err := pgstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = db.Close() }
	if err := pgstore.Migrate(ctx, db); err != nil {
		closeDB()
		return nil, nil, err
	}
	logger.Info("Postgres store ready")
	return pgstore.New(db), closeDB, nil
}

func openMailer(cfg envconfig.ServerConfig, logger *zap.Logger) (mail.Mailer, func(), error) {
	if cfg.MailerBackend != envconfig.MailerKafka {
		return mail.NewLogMailer(logger.Named("mail")), func() {}, nil
	}
	m, err := mail.NewKafkaMailer(cfg.KafkaBrokers, cfg.KafkaTopic, logger.Named("mail"))
	if err != nil {
		return nil, nil, err
	}
	return m, func() { _ = m.Close() }, nil
}

func openSealer(ctx context.Context, cfg envconfig.ServerConfig) (seal.Sealer, error) {
	switch cfg.SealerBackend {
	case envconfig.SealerAES:
		return seal.NewAESGCM(cfg.SealKey)
	case envconfig.SealerKMS:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return seal.NewKMSEnvelope(kms.NewFromConfig(awsCfg), cfg.KMSKeyID)
	default:
		return seal.Plaintext{}, nil
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"coursehub/internal/archive"
	"coursehub/internal/auth"
	"coursehub/internal/config"
	apphttp "coursehub/internal/http"
	"coursehub/internal/repository"
	"coursehub/internal/repository/postgres"
	"coursehub/internal/repository/sqlite"
	"coursehub/internal/service"
	"coursehub/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatalf("migrate database: %v", err)
	}
	logger.Infof("using %s store", cfg.Database.Driver)

	var archiver service.ContentArchiver
	var manager archive.Manager
	if cfg.Storage.Bucket != "" {
		storageSvc, err := buildStorage(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
		manager = archive.NewManager(archive.Config{
			Bucket:        cfg.Storage.Bucket,
			KeyPrefix:     cfg.Storage.KeyPrefix,
			URLTTL:        cfg.Storage.URLTTL,
			MaxConcurrent: cfg.Storage.MaxConcurrent,
			Logger:        logger,
		}, store, storageSvc)
		if err := manager.Start(ctx); err != nil {
			logger.Fatalf("start archive manager: %v", err)
		}
		if err := manager.Resume(ctx); err != nil {
			logger.Warnf("resume archives: %v", err)
		}
		archiver = manager
	} else {
		logger.Info("storage bucket not set, course archive disabled")
	}

	userService := service.NewUserService(store, cfg.Auth.BcryptCost)
	courseService := service.NewCourseService(store, archiver)
	purchaseService := service.NewPurchaseService(store, service.PurchaseConfig{
		TxTimeout:             cfg.Purchase.TxTimeout,
		InstructorsCanListAny: cfg.Purchase.InstructorsCanListAny,
	}, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		userService,
		courseService,
		purchaseService,
		auth.NewTokens(cfg.Auth.JWTSecret, cfg.TokenTTL()),
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if manager != nil {
		manager.Shutdown()
	}

	logger.Info("bye")
}

func openStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(db, cfg.Purchase.LockTimeout), nil
	case config.DriverSQLite:
		busyTimeout := cfg.Database.BusyTimeout
		if cfg.Purchase.LockTimeout > 0 {
			busyTimeout = cfg.Purchase.LockTimeout
		}
		db, err := sqlite.Open(cfg.Database.Path, busyTimeout)
		if err != nil {
			return nil, err
		}
		return sqlite.NewStore(db), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}

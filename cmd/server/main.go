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

	"go.uber.org/zap"

	"github.com/repohandler/repohandler/internal/api"
	"github.com/repohandler/repohandler/internal/api/handler"
	"github.com/repohandler/repohandler/internal/auth"
	"github.com/repohandler/repohandler/internal/blobstore"
	"github.com/repohandler/repohandler/internal/config"
	"github.com/repohandler/repohandler/internal/docstore"
	"github.com/repohandler/repohandler/internal/logging"
	"github.com/repohandler/repohandler/internal/metrics"
	"github.com/repohandler/repohandler/internal/project"
	"github.com/repohandler/repohandler/internal/review"
	"github.com/repohandler/repohandler/internal/team"
)

const startupTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStart()

	backendStore, err := openStore(startCtx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s document store: %w", cfg.StoreBackend, err)
	}
	store := docstore.NewResilient(backendStore, docstore.ResilientOptions{
		Timeout:    cfg.StoreTimeout,
		MaxRetries: cfg.StoreRetries,
		Logger:     logger,
	})
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close document store", zap.Error(err))
		}
	}()

	backendBlobs, mockBlobs, err := openBlobs(startCtx, cfg)
	if err != nil {
		return fmt.Errorf("setting up %s blob storage: %w", cfg.BlobBackend, err)
	}
	blobs := blobstore.NewResilient(backendBlobs, blobstore.ResilientOptions{
		Timeout:    cfg.StoreTimeout,
		MaxRetries: cfg.StoreRetries,
		Logger:     logger,
	})

	issuer, err := newIssuer(cfg)
	if err != nil {
		return fmt.Errorf("setting up token issuer: %w", err)
	}
	if cfg.TokenMode == config.TokenPlain {
		logger.Warn("plain team tokens are unsigned; set TOKEN_MODE=jwt for signed tokens")
	}

	projects := project.NewRepository(store)

	router := api.NewRouter(api.RouterDeps{
		Logger:         logger,
		Issuer:         issuer,
		Teams:          team.NewRegistry(team.NewRepository(store), logger),
		Projects:       project.NewService(projects, blobs, logger, metrics.BlobCleanupFailures),
		Review:         review.NewService(projects, logger),
		Store:          store,
		StoreBackend:   cfg.StoreBackend,
		MockBlobs:      mockBlobs,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Version:        cfg.Version,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting RepoHandler API",
			zap.Int("port", cfg.Port),
			zap.String("version", cfg.Version),
			zap.String("store", cfg.StoreBackend),
			zap.String("blobs", cfg.BlobBackend),
			zap.String("tokens", cfg.TokenMode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("serving http: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		s, err := docstore.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorePostgres:
		s, err := docstore.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreMongo:
		s, err := docstore.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		for _, idx := range []struct{ collection, field string }{
			{team.Collection, "leaderEmail"},
			{project.Collection, "teamId"},
		} {
			if err := s.EnsureUniqueIndex(ctx, idx.collection, idx.field); err != nil {
				_ = s.Close()
				return nil, err
			}
		}
		return s, nil
	default:
		return docstore.NewMemoryStore(), nil
	}
}

// openBlobs returns the configured blob store. The second value is set only
// for the in-memory backend, whose objects are served under /mock-storage.
func openBlobs(ctx context.Context, cfg *config.Config) (blobstore.Store, handler.BlobOpener, error) {
	if cfg.BlobBackend == config.BlobS3 {
		s, err := blobstore.NewS3Store(ctx, blobstore.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.BlobPublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}

	m := blobstore.NewMemoryStore(cfg.MockStorageBaseURL)
	return m, m, nil
}

func newIssuer(cfg *config.Config) (auth.Issuer, error) {
	admin := auth.AdminCredentials{Password: cfg.AdminPassword, PasswordHash: cfg.AdminPasswordHash}
	if cfg.TokenMode == config.TokenJWT {
		j, err := auth.NewJWTIssuer(cfg.TokenSecret, cfg.TokenTTL, admin)
		if err != nil {
			return nil, err
		}
		return j, nil
	}
	return auth.NewPlainIssuer(admin), nil
}

package contentstore

import (
	"context"
	"fmt"
	"log/slog"

	"eviction_intake_go/config"
)

// NewFromConfig builds the store selected by cfg.StoreBackend.
// Outside production a backend that cannot be reached falls back to the
// local filesystem so the service still boots.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.StoreBackend {
	case config.StoreBackendGitHub:
		store, err := NewGitHubStore(GitHubConfig{
			BaseURL: cfg.GitHubAPIURL,
			WebURL:  cfg.GitHubWebURL,
			Owner:   cfg.GitHubOwner,
			Repo:    cfg.GitHubRepo,
			Branch:  cfg.GitHubBranch,
			Token:   cfg.GitHubToken,
			Private: cfg.GitHubPrivateRepo,
			Timeout: cfg.StoreTimeout,
			Logger:  logger,
		})
		if err != nil {
			return fallback(cfg, logger, err)
		}
		logger.Info("store connection established", "backend", "github", "repo", cfg.GitHubOwner+"/"+cfg.GitHubRepo, "branch", cfg.GitHubBranch)
		return store, nil

	case config.StoreBackendR2:
		store, err := NewS3Store(ctx, S3Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Bucket:          cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
			Timeout:         cfg.StoreTimeout,
			Logger:          logger,
		})
		if err != nil {
			return fallback(cfg, logger, err)
		}

		// Test the connection the same way the bucket is provisioned
		checkCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		defer cancel()
		if _, _, err := store.Exists(checkCtx, "cases/index.json"); err != nil && !IsNotFound(err) {
			return fallback(cfg, logger, err)
		}
		logger.Info("store connection established", "backend", "r2", "bucket", cfg.R2BucketName)
		return store, nil

	case config.StoreBackendLocal:
		logger.Info("store connection established", "backend", "local", "path", cfg.LocalStoreDir)
		return NewLocalStore(cfg.LocalStoreDir, logger), nil

	case config.StoreBackendMemory:
		logger.Warn("using in-memory store; filings are lost on restart")
		return NewMemoryStore(), nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func fallback(cfg *config.Config, logger *slog.Logger, cause error) (Store, error) {
	if cfg.IsProduction() {
		return nil, fmt.Errorf("initializing %s store: %w", cfg.StoreBackend, cause)
	}
	logger.Warn("store initialization failed, falling back to local filesystem",
		"backend", cfg.StoreBackend, "error", cause, "path", cfg.LocalStoreDir)
	return NewLocalStore(cfg.LocalStoreDir, logger), nil
}

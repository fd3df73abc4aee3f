package storage

import (
	"context"
	"fmt"

	registryapp "github.com/faasbill/backend/internal/application/registry"
	infraconfig "github.com/faasbill/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// New builds the artifact store selected by cfg.Driver. For s3 the bucket is
// created when missing.
func New(ctx context.Context, cfg *infraconfig.StorageConfig, logger *zap.Logger) (registryapp.ObjectStorage, error) {
	switch cfg.Driver {
	case "s3":
		s, err := NewS3ObjectStorage(cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info("Artifact storage ready",
			zap.String("driver", "s3"),
			zap.String("bucket", s.Bucket()),
		)
		return s, nil
	case "local", "":
		s, err := NewLocalObjectStorage(cfg.LocalPath, "")
		if err != nil {
			return nil, err
		}
		logger.Info("Artifact storage ready",
			zap.String("driver", "local"),
			zap.String("path", s.root),
		)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

package remote

import (
	"context"
	"fmt"

	"github.com/Mangusthvile/talevox/internal/config"
	"github.com/Mangusthvile/talevox/internal/vox"
)

// NewRemoteStoreFromConfig creates a RemoteStore implementation based on the remote config type.
// Type "none" returns a nil store: the engine treats that as "no remote
// configured" and fails remote operations cleanly.
func NewRemoteStoreFromConfig(ctx context.Context, cfg config.RemoteConfig, logger vox.Logger) (vox.RemoteStore, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryRemote(nil), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 remote requires s3_bucket to be set")
		}
		return NewS3Remote(ctx, S3Config{
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown remote type: %s", cfg.Type)
	}
}

// NewCredentialSourceFromConfig creates the CredentialSource matching the
// remote config. Precedence: an explicit token file wins; S3 falls back
// to a backend-managed marker because AWS credentials ride with the
// client, not with the engine; anything else gets no credential and the
// engine reports auth as required.
func NewCredentialSourceFromConfig(cfg config.RemoteConfig) (vox.CredentialSource, error) {
	if cfg.TokenPath != "" {
		return NewFileCredentials(cfg.TokenPath)
	}
	switch cfg.Type {
	case "s3":
		return NewStaticCredentials(BackendManagedToken), nil
	case "memory":
		return NewStaticCredentials(BackendManagedToken), nil
	default:
		return nil, nil
	}
}

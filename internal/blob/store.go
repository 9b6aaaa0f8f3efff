package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrObjectExists is returned when a key is written twice. Archived
// notifications are immutable.
var ErrObjectExists = errors.New("archive object already exists")

// Store is a write-once object store for raw notifications.
type Store interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

type Config struct {
	Backend           string
	FSRoot            string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3ForcePathStyle  bool
}

// NewFromConfig builds the archive store. The "none" backend (the default)
// returns a nil Store, which disables archiving.
func NewFromConfig(ctx context.Context, cfg Config) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))

	switch backend {
	case "", "none", "off":
		return nil, nil
	case "filesystem", "fs", "local":
		return NewFilesystemStore(cfg.FSRoot)
	case "s3", "r2":
		return NewS3Store(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			ForcePathStyle:  cfg.S3ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", backend)
	}
}

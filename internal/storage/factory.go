package storage

import (
	"fmt"
	"strings"

	"github.com/timmy/hearth/internal/config"
)

// NewStorage creates an ObjectStorage from application configuration.
// Parameters:
//   - cfg: storage section of the config; Type is detected from the endpoint when empty.
//
// Returns:
//   - ObjectStorage: initialized storage client implementation.
//   - error: non-nil if storage is disabled or the client cannot be created.
func NewStorage(cfg config.StorageConfig) (ObjectStorage, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("object storage is disabled")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	storeType := StorageType(cfg.Type)
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	return NewS3Storage(&S3Config{
		Type:      storeType,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		PublicURL: cfg.PublicURL,
		Prefix:    cfg.Prefix,
	})
}

// detectStorageType infers the storage flavour from the endpoint host.
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case endpoint == "", strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}

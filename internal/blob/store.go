// Package blob adapts remote and local object stores to the gallery's
// read-only view of a container: list everything, or describe one object.
package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gallery/internal/config"
	"gallery/internal/models"
)

var (
	ErrNotFound      = errors.New("blob not found")
	ErrNotConfigured = errors.New("blob store not configured")
)

// Store is a read-only view of one container.
type Store interface {
	// List returns every object with its metadata, in no particular order.
	List(ctx context.Context) ([]models.Image, error)
	// Get returns ErrNotFound when the object does not exist.
	Get(ctx context.Context, name string) (*models.Image, error)
}

// NewStore builds the store selected by cfg.Provider. It returns
// ErrNotConfigured when the provider's required settings are missing.
func NewStore(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch cfg.Provider {
	case config.ProviderAzure:
		s, err := NewAzureStore(cfg.AzureConnectionString, cfg.AzureContainer)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.ProviderS3:
		s, err := NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			URLExpiry: cfg.S3URLExpiry,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.ProviderLocal:
		s, err := NewLocalStore(cfg.MediaDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown blob provider %q", cfg.Provider)
}

func newImage(name, url string, contentType *string, createdOn *time.Time, size *int64) models.Image {
	img := models.Image{
		Name: name,
		URL:  url,
	}
	if contentType != nil {
		img.ContentType = *contentType
	}
	if createdOn != nil && !createdOn.IsZero() {
		t := createdOn.UTC()
		img.CreatedOn = &t
	}
	if size != nil {
		img.Size = *size
	}
	return img
}

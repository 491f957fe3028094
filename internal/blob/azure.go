package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gallery/internal/models"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// AzureStore reads an Azure Blob Storage container. Listing returns each
// blob's properties inline, so one flat listing covers the whole container.
type AzureStore struct {
	container *container.Client
}

func NewAzureStore(connectionString, containerName string) (*AzureStore, error) {
	if connectionString == "" || containerName == "" {
		return nil, ErrNotConfigured
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}

	return &AzureStore{
		container: client.ServiceClient().NewContainerClient(containerName),
	}, nil
}

func (s *AzureStore) List(ctx context.Context) ([]models.Image, error) {
	pager := s.container.NewListBlobsFlatPager(nil)

	var images []models.Image
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		if page.Segment == nil {
			continue
		}

		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			images = append(images, s.imageFromItem(item))
		}
	}

	return images, nil
}

func (s *AzureStore) Get(ctx context.Context, name string) (*models.Image, error) {
	client := s.container.NewBlobClient(name)

	props, err := client.GetProperties(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to get blob properties: %w", err)
	}

	img := newImage(name, client.URL(), props.ContentType, props.CreationTime, props.ContentLength)
	return &img, nil
}

func (s *AzureStore) imageFromItem(item *container.BlobItem) models.Image {
	name := *item.Name
	url := s.container.NewBlobClient(name).URL()

	if item.Properties == nil {
		return newImage(name, url, nil, nil, nil)
	}
	return newImage(name, url, item.Properties.ContentType, item.Properties.CreationTime, item.Properties.ContentLength)
}

func isAzureNotFound(err error) bool {
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return true
	}
	if bloberror.HasCode(err, bloberror.ContainerNotFound) {
		return false
	}
	// HEAD responses carry no body, so the error code is not always populated.
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"
)

const reportContentType = "application/json; charset=utf-8"

// blobAPI is the subset of the blob service the archive needs
type blobAPI interface {
	CreateContainer(ctx context.Context, container string) error
	Upload(ctx context.Context, container, name string, data []byte) error
	Download(ctx context.Context, container, name string) ([]byte, error)
	ListNames(ctx context.Context, container, prefix string) ([]string, error)
	DeleteBlob(ctx context.Context, container, name string) error
}

// AzureStorage archives reports in Azure Blob Storage
type AzureStorage struct {
	client        blobAPI
	containerName string
}

// Ensure AzureStorage implements StorageInterface
var _ StorageInterface = (*AzureStorage)(nil)

// NewAzureStorage creates a new Azure Storage client using managed identity
func NewAzureStorage(accountName, containerName string) (*AzureStorage, error) {
	if accountName == "" {
		return nil, fmt.Errorf("storage account name is required")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
	}

	return newAzureStorage(context.Background(), &azblobAPI{client: client}, containerName)
}

func newAzureStorage(ctx context.Context, client blobAPI, containerName string) (*AzureStorage, error) {
	s := &AzureStorage{
		client:        client,
		containerName: containerName,
	}

	if err := s.ensureContainer(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure container exists: %w", err)
	}

	return s, nil
}

func (s *AzureStorage) ensureContainer(ctx context.Context) error {
	err := s.client.CreateContainer(ctx, s.containerName)
	switch {
	case err == nil:
		logrus.Infof("Created container %s", s.containerName)
	case bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
		logrus.Debugf("Container %s already exists", s.containerName)
	default:
		return fmt.Errorf("failed to create container: %w", err)
	}
	return nil
}

// Store uploads a report
func (s *AzureStorage) Store(ctx context.Context, filename string, data []byte) error {
	if err := s.client.Upload(ctx, s.containerName, filename, data); err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", filename, err)
	}

	logrus.Infof("Archived %s in Azure Blob Storage container %s", filename, s.containerName)
	return nil
}

// Retrieve downloads a report
func (s *AzureStorage) Retrieve(ctx context.Context, filename string) ([]byte, error) {
	data, err := s.client.Download(ctx, s.containerName, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to download blob %s: %w", filename, err)
	}
	return data, nil
}

// List returns the names of blobs starting with prefix
func (s *AzureStorage) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.client.ListNames(ctx, s.containerName, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	return names, nil
}

// Delete removes a report. A blob that is already gone counts as deleted so
// retention pruning can be repeated after a partial failure
func (s *AzureStorage) Delete(ctx context.Context, filename string) error {
	err := s.client.DeleteBlob(ctx, s.containerName, filename)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("failed to delete blob %s: %w", filename, err)
	}

	logrus.Debugf("Deleted %s from Azure Blob Storage", filename)
	return nil
}

// azblobAPI adapts *azblob.Client to blobAPI
type azblobAPI struct {
	client *azblob.Client
}

func (a *azblobAPI) CreateContainer(ctx context.Context, container string) error {
	_, err := a.client.CreateContainer(ctx, container, nil)
	return err
}

func (a *azblobAPI) Upload(ctx context.Context, container, name string, data []byte) error {
	contentType := reportContentType
	_, err := a.client.UploadBuffer(ctx, container, name, data, &azblob.UploadBufferOptions{
		BlockSize:   int64(1024 * 1024), // 1MB blocks
		Concurrency: 3,
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	return err
}

func (a *azblobAPI) Download(ctx context.Context, container, name string) ([]byte, error) {
	response, err := a.client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	return io.ReadAll(response.Body)
}

func (a *azblobAPI) ListNames(ctx context.Context, container, prefix string) ([]string, error) {
	var names []string
	pager := a.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}

	return names, nil
}

func (a *azblobAPI) DeleteBlob(ctx context.Context, container, name string) error {
	_, err := a.client.DeleteBlob(ctx, container, name, nil)
	return err
}

// Package blob uploads score arrays and fetches model checkpoints from Azure
// blob storage. Credentials come from the AZURE_STORAGE_ACCOUNT and
// AZURE_STORAGE_KEY environment variables, typically loaded from a .env file.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// Store is a client for one storage account.
type Store struct {
	client  *azblob.Client
	account string
}

// NewStore connects to the storage account given in the environment.
func NewStore() (*Store, error) {
	account := os.Getenv("AZURE_STORAGE_ACCOUNT")
	key := os.Getenv("AZURE_STORAGE_KEY")
	if account == "" || key == "" {
		return nil, fmt.Errorf("blob: AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set")
	}
	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("blob: invalid credentials: %s", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", account), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("blob: error creating client: %s", err)
	}
	return &Store{client: client, account: account}, nil
}

// Upload writes the data to container/name, creating the container if needed.
func (s *Store) Upload(ctx context.Context, container, name string, data []byte) error {
	_, err := s.client.CreateContainer(ctx, container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("blob: error creating container %s: %s", container, err)
	}
	if _, err = s.client.UploadBuffer(ctx, container, name, data, nil); err != nil {
		return fmt.Errorf("blob: error uploading %s/%s: %s", container, name, err)
	}
	return nil
}

// Download reads the blob at container/name.
func (s *Store) Download(ctx context.Context, container, name string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		return nil, fmt.Errorf("blob: error downloading %s/%s: %s", container, name, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("blob: error reading %s/%s: %s", container, name, err)
	}
	return data, nil
}

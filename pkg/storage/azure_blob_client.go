package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"go.uber.org/zap"
)

// Well-known Azurite account used for UseDevelopmentStorage=true.
const (
	devAccountName  = "devstoreaccount1"
	devAccountKey   = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
	devBlobEndpoint = "http://127.0.0.1:10000/devstoreaccount1"
)

// BlobStore stores and retrieves execution result documents.
type BlobStore interface {
	Upload(ctx context.Context, blobPath string, data []byte, metadata map[string]string) (string, error)
	Download(ctx context.Context, reference string) ([]byte, error)
}

// AzureBlobStore implements BlobStore on Azure Blob Storage with a shared key.
// Plain-HTTP endpoints are allowed so local Azurite instances work.
type AzureBlobStore struct {
	client        *azblob.Client
	serviceURL    string
	containerName string
	logger        *zap.Logger

	containerMu   sync.Mutex
	containerInit bool
}

// NewAzureBlobStore creates a store from a standard connection string.
func NewAzureBlobStore(connectionString, containerName string, logger *zap.Logger) (*AzureBlobStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if connectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}
	if containerName == "" {
		return nil, fmt.Errorf("container name is required")
	}

	params := parseConnectionString(connectionString)
	accountName := params["AccountName"]
	accountKey := params["AccountKey"]
	serviceURL := params["BlobEndpoint"]
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("account name and key are required in the connection string")
	}
	if serviceURL == "" {
		protocol := params["DefaultEndpointsProtocol"]
		if protocol == "" {
			protocol = "https"
		}
		suffix := params["EndpointSuffix"]
		if suffix == "" {
			suffix = "core.windows.net"
		}
		serviceURL = fmt.Sprintf("%s://%s.blob.%s", protocol, accountName, suffix)
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	var clientOpts *azblob.ClientOptions
	if strings.HasPrefix(strings.ToLower(serviceURL), "http://") {
		clientOpts = &azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				InsecureAllowCredentialWithHTTP: true,
			},
		}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &AzureBlobStore{
		client:        client,
		serviceURL:    strings.TrimRight(serviceURL, "/"),
		containerName: containerName,
		logger:        logger,
	}, nil
}

// Container returns the container the store writes to.
func (a *AzureBlobStore) Container() string {
	return a.containerName
}

// Upload writes data as a JSON block blob and returns its URL.
func (a *AzureBlobStore) Upload(ctx context.Context, blobPath string, data []byte, metadata map[string]string) (string, error) {
	if err := a.ensureContainer(ctx); err != nil {
		return "", err
	}

	metadataPtr := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		metadataPtr[k] = to.Ptr(v)
	}

	blobClient := a.client.ServiceClient().NewContainerClient(a.containerName).NewBlockBlobClient(blobPath)
	_, err := blobClient.UploadBuffer(ctx, data, &azblob.UploadBufferOptions{
		Metadata: metadataPtr,
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr("application/json"),
		},
	})
	if err != nil {
		a.logger.Error("Failed to upload to blob storage",
			zap.String("blob_path", blobPath),
			zap.Int("size", len(data)),
			zap.Error(err))
		return "", fmt.Errorf("blob upload failed: %w", err)
	}

	a.logger.Info("Uploaded blob",
		zap.String("blob_path", blobPath),
		zap.Int("size_bytes", len(data)))

	return blobClient.URL(), nil
}

// Download reads a blob given its path or URL.
func (a *AzureBlobStore) Download(ctx context.Context, reference string) ([]byte, error) {
	blobPath, err := a.extractBlobPath(reference)
	if err != nil {
		return nil, err
	}

	blobClient := a.client.ServiceClient().NewContainerClient(a.containerName).NewBlobClient(blobPath)
	resp, err := blobClient.DownloadStream(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob data: %w", err)
	}
	return data, nil
}

func (a *AzureBlobStore) ensureContainer(ctx context.Context) error {
	a.containerMu.Lock()
	defer a.containerMu.Unlock()

	if a.containerInit {
		return nil
	}

	_, err := a.client.CreateContainer(ctx, a.containerName, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !errors.As(err, &respErr) || respErr.ErrorCode != "ContainerAlreadyExists" {
			return fmt.Errorf("failed to ensure container: %w", err)
		}
	}

	a.containerInit = true
	return nil
}

// parseConnectionString splits "Key=Value;..." pairs. The development
// storage shortcut expands to the local Azurite account.
func parseConnectionString(connectionString string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(connectionString, ";") {
		part = strings.TrimSpace(part)
		idx := strings.Index(part, "=")
		if idx <= 0 {
			continue
		}
		params[part[:idx]] = part[idx+1:]
	}

	if strings.EqualFold(params["UseDevelopmentStorage"], "true") {
		if params["AccountName"] == "" {
			params["AccountName"] = devAccountName
			params["AccountKey"] = devAccountKey
		}
		if params["BlobEndpoint"] == "" {
			params["BlobEndpoint"] = devBlobEndpoint
		}
	}
	return params
}

// extractBlobPath turns a blob URL or container-relative reference into the
// blob name inside the container.
func (a *AzureBlobStore) extractBlobPath(reference string) (string, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return "", fmt.Errorf("blob reference is required")
	}

	if strings.HasPrefix(strings.ToLower(ref), strings.ToLower(a.serviceURL)) {
		ref = ref[len(a.serviceURL):]
	}
	if idx := strings.Index(ref, "?"); idx != -1 {
		ref = ref[:idx]
	}
	if decoded, err := url.PathUnescape(ref); err == nil && decoded != "" {
		ref = decoded
	}
	if u, err := url.Parse(ref); err == nil && u.Host != "" {
		ref = u.Path
	}

	ref = strings.TrimPrefix(ref, "/")
	ref = strings.TrimPrefix(ref, a.containerName+"/")
	if ref == "" {
		return "", fmt.Errorf("blob path is empty")
	}
	return ref, nil
}

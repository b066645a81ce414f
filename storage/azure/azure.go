// Package azure stores uploads as block blobs in an Azure Storage container.
package azure

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/rs/zerolog"

	"github.com/imrenagi/uploadex/upload"
)

const (
	Prefix = "azure"

	// SignedURLExpiry bounds the lifetime of returned blob URLs.
	SignedURLExpiry = time.Hour
)

// API is the part of the azblob client the backend needs.
type API interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
	DeleteBlob(ctx context.Context, containerName, blobName string, o *azblob.DeleteBlobOptions) (azblob.DeleteBlobResponse, error)
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
}

// Backend uploads blobs and answers with a read-only SAS URL.
type Backend struct {
	client    API
	cred      *azblob.SharedKeyCredential
	container string
	baseURL   string
	now       func() time.Time
	log       zerolog.Logger
}

// New authenticates with the account shared key. A custom endpoint (for
// example Azurite) replaces the public blob service URL.
func New(cfg *upload.AzureConfig, log zerolog.Logger) (*Backend, error) {
	if cfg == nil || cfg.AccountName == "" || cfg.AccountKey == "" || cfg.ContainerName == "" {
		return nil, upload.Errorf(upload.CodeConfiguration, "Azure config is missing accountName, accountKey, or containerName")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, upload.Wrap(upload.CodeConfiguration, err, "invalid Azure shared key")
	}

	client, err := azblob.NewClientWithSharedKeyCredential(ServiceURL(cfg), cred, nil)
	if err != nil {
		return nil, upload.Wrap(upload.CodeConfiguration, err, "failed to create Azure client")
	}
	return NewWithClient(client, cred, cfg, log), nil
}

// NewWithClient wires a Backend around an existing client.
func NewWithClient(client API, cred *azblob.SharedKeyCredential, cfg *upload.AzureConfig, log zerolog.Logger) *Backend {
	return &Backend{
		client:    client,
		cred:      cred,
		container: cfg.ContainerName,
		baseURL:   ServiceURL(cfg),
		now:       time.Now,
		log:       log.With().Str("container", cfg.ContainerName).Logger(),
	}
}

// ServiceURL returns the blob service root for cfg, without a trailing slash.
func ServiceURL(cfg *upload.AzureConfig) string {
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/")
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
}

func (b *Backend) Prefix() string { return Prefix }

func (b *Backend) Put(ctx context.Context, obj upload.Object) (string, error) {
	headers := &blob.HTTPHeaders{BlobContentType: &obj.ContentType}

	if obj.Buffered() {
		_, err := b.client.UploadBuffer(ctx, b.container, obj.Key, obj.Data, &azblob.UploadBufferOptions{
			HTTPHeaders: headers,
		})
		if err != nil {
			return "", fmt.Errorf("upload buffer %q: %w", obj.Key, err)
		}
	} else {
		body, err := obj.Open()
		if err != nil {
			return "", err
		}
		defer body.Close()
		_, err = b.client.UploadStream(ctx, b.container, obj.Key, body, &azblob.UploadStreamOptions{
			HTTPHeaders: headers,
		})
		if err != nil {
			return "", fmt.Errorf("upload stream %q: %w", obj.Key, err)
		}
	}

	return b.SignedURL(obj.Key)
}

// SignedURL returns a read-only URL for blobName valid for SignedURLExpiry.
func (b *Backend) SignedURL(blobName string) (string, error) {
	now := b.now().UTC()
	perms := sas.BlobPermissions{Read: true}
	params, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPSandHTTP,
		StartTime:     now,
		ExpiryTime:    now.Add(SignedURLExpiry),
		Permissions:   perms.String(),
		ContainerName: b.container,
		BlobName:      blobName,
	}.SignWithSharedKey(b.cred)
	if err != nil {
		return "", upload.Wrap(upload.CodeUnknown, err, "failed to sign blob URL")
	}
	return fmt.Sprintf("%s/%s/%s?%s", b.baseURL, b.container, blobName, params.Encode()), nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if _, err := b.client.DeleteBlob(ctx, b.container, key, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil
		}
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	return nil
}

// EnsureBucket creates the container; an existing container is fine.
func (b *Backend) EnsureBucket(ctx context.Context) error {
	_, err := b.client.CreateContainer(ctx, b.container, nil)
	switch {
	case err == nil:
		b.log.Debug().Msg("container created")
		return nil
	case bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
		b.log.Debug().Msg("container exists")
		return nil
	default:
		b.log.Error().Err(err).Msg("failed to check or create container")
		return upload.Wrap(upload.CodeConfiguration, err, "Azure container check or creation failed")
	}
}

var (
	_ upload.Backend     = (*Backend)(nil)
	_ upload.Remover     = (*Backend)(nil)
	_ upload.Provisioner = (*Backend)(nil)
)

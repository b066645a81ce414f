// Package cloudinary stores uploads as Cloudinary assets.
package cloudinary

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"

	"github.com/imrenagi/uploadex/upload"
)

const (
	Prefix = "cloud"

	DefaultFolder = "uploads"
)

// API is the part of the Cloudinary upload API the backend needs.
type API interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// Backend uploads with resource_type=auto and returns the asset secure URL.
type Backend struct {
	api    API
	folder string
	log    zerolog.Logger
}

func New(cfg *upload.CloudinaryConfig, log zerolog.Logger) (*Backend, error) {
	if cfg == nil || cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, upload.Errorf(upload.CodeConfiguration, "missing Cloudinary credentials")
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, upload.Wrap(upload.CodeConfiguration, err, "failed to create Cloudinary client")
	}
	return NewWithAPI(&cld.Upload, cfg, log), nil
}

// NewWithAPI wires a Backend around an existing upload API.
func NewWithAPI(api API, cfg *upload.CloudinaryConfig, log zerolog.Logger) *Backend {
	folder := cfg.Folder
	if folder == "" {
		folder = DefaultFolder
	}
	return &Backend{
		api:    api,
		folder: folder,
		log:    log.With().Str("cloud_name", cfg.CloudName).Logger(),
	}
}

func (b *Backend) Prefix() string { return Prefix }

// publicID strips the extension of image and video keys, whose format
// Cloudinary tracks separately. Raw assets keep it.
func publicID(key string) string {
	if resourceType(key) == "raw" {
		return key
	}
	return strings.TrimSuffix(key, path.Ext(key))
}

func (b *Backend) Put(ctx context.Context, obj upload.Object) (string, error) {
	src, err := obj.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	res, err := b.api.Upload(ctx, src, uploader.UploadParams{
		PublicID:     publicID(obj.Key),
		Folder:       b.folder,
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("upload asset %q: %w", obj.Key, err)
	}
	if res == nil {
		return "", fmt.Errorf("upload asset %q: empty response", obj.Key)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload asset %q: %s", obj.Key, res.Error.Message)
	}

	b.log.Debug().Str("public_id", res.PublicID).Str("resource_type", res.ResourceType).Msg("asset stored")
	return res.SecureURL, nil
}

// resourceType mirrors how resource_type=auto classifies the extensions we
// accept: images and PDFs become images, video containers become videos and
// everything else is raw.
func resourceType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".svg", ".pdf":
		return "image"
	case ".mp4", ".mov", ".webm", ".avi", ".mkv", ".mp3", ".wav":
		return "video"
	default:
		return "raw"
	}
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	id := path.Join(b.folder, publicID(key))
	res, err := b.api.Destroy(ctx, uploader.DestroyParams{
		PublicID:     id,
		ResourceType: resourceType(key),
	})
	if err != nil {
		return fmt.Errorf("destroy asset %q: %w", id, err)
	}
	if res != nil && res.Error.Message != "" {
		return fmt.Errorf("destroy asset %q: %s", id, res.Error.Message)
	}
	return nil
}

var (
	_ upload.Backend = (*Backend)(nil)
	_ upload.Remover = (*Backend)(nil)
)

package provider_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrenagi/uploadex/provider"
	"github.com/imrenagi/uploadex/upload"
)

func TestNew(t *testing.T) {
	t.Run("builds a working local provider", func(t *testing.T) {
		dir := t.TempDir()
		p, err := provider.New(context.Background(), &upload.Config{
			Provider: upload.ProviderLocal,
			Local:    &upload.LocalConfig{UploadPath: dir},
		})
		require.NoError(t, err)

		meta, err := p.HandleSingleFileUpload(context.Background(), &upload.IncomingFile{
			OriginalName: "a.png", MimeType: "image/png", Size: 3, Buffer: []byte("png"),
		})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, meta.StoredName), meta.FilePath)
		assert.FileExists(t, meta.FilePath)
	})

	t.Run("treats an empty provider as local", func(t *testing.T) {
		_, err := provider.New(context.Background(), &upload.Config{
			Local: &upload.LocalConfig{UploadPath: t.TempDir()},
		})
		assert.NoError(t, err)
	})

	t.Run("builds cloud providers without touching the network", func(t *testing.T) {
		cfgs := map[string]*upload.Config{
			"s3": {Provider: upload.ProviderS3, S3: &upload.S3Config{
				Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s", Region: "us-east-1",
			}},
			"azure": {Provider: upload.ProviderAzure, Azure: &upload.AzureConfig{
				AccountName: "devstoreaccount1", ContainerName: "c",
				AccountKey: "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==",
			}},
			"cloudinary": {Provider: upload.ProviderCloudinary, Cloudinary: &upload.CloudinaryConfig{
				CloudName: "demo", APIKey: "k", APISecret: "s",
			}},
		}
		for name, cfg := range cfgs {
			t.Run(name, func(t *testing.T) {
				p, err := provider.New(context.Background(), cfg)
				require.NoError(t, err)
				assert.NotNil(t, p)
			})
		}
	})

	t.Run("rejects an unknown provider", func(t *testing.T) {
		_, err := provider.New(context.Background(), &upload.Config{Provider: "dropbox"})
		assert.Equal(t, upload.CodeProviderNotImplemented, upload.CodeOf(err))
	})

	t.Run("rejects a missing config", func(t *testing.T) {
		_, err := provider.New(context.Background(), nil)
		assert.Equal(t, upload.CodeConfiguration, upload.CodeOf(err))
	})

	t.Run("rejects a provider without its sub-config", func(t *testing.T) {
		_, err := provider.New(context.Background(), &upload.Config{Provider: upload.ProviderS3})
		assert.Equal(t, upload.CodeConfiguration, upload.CodeOf(err))
	})

	t.Run("fails startup when the local path cannot be created", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0o600))

		_, err := provider.New(context.Background(), &upload.Config{
			Provider: upload.ProviderLocal,
			Local:    &upload.LocalConfig{UploadPath: filepath.Join(file, "sub")},
		})
		assert.Equal(t, upload.CodeConfiguration, upload.CodeOf(err))
	})
}

func TestProvisioningRequested(t *testing.T) {
	cases := []struct {
		name string
		cfg  *upload.Config
		want bool
	}{
		{"local never provisions", &upload.Config{Provider: upload.ProviderLocal}, false},
		{"s3 follows its flag", &upload.Config{Provider: upload.ProviderS3, S3: &upload.S3Config{CheckBucket: true}}, true},
		{"s3 is off by default", &upload.Config{Provider: upload.ProviderS3, S3: &upload.S3Config{}}, false},
		{"azure follows its flag", &upload.Config{Provider: upload.ProviderAzure, Azure: &upload.AzureConfig{CheckContainer: true}}, true},
		{"gcs follows its flag", &upload.Config{Provider: upload.ProviderGCS, GCS: &upload.GCSConfig{CheckBucket: true}}, true},
		{"the gcs emulator always provisions", &upload.Config{Provider: upload.ProviderGCS, GCS: &upload.GCSConfig{Endpoint: "http://localhost:4443"}}, true},
		{"cloudinary never provisions", &upload.Config{Provider: upload.ProviderCloudinary}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, provider.ProvisioningRequested(tc.cfg))
		})
	}
}

package upload_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imrenagi/uploadex/upload"
)

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     *upload.Config
		code    upload.Code
		message string
	}{
		{
			name:    "rejects a missing config",
			cfg:     nil,
			code:    upload.CodeConfiguration,
			message: "upload options must be a valid object",
		},
		{
			name:    "rejects a missing provider",
			cfg:     &upload.Config{},
			code:    upload.CodeConfiguration,
			message: "missing required provider in upload config",
		},
		{
			name:    "rejects a provider without its sub-config",
			cfg:     &upload.Config{Provider: upload.ProviderS3},
			code:    upload.CodeConfiguration,
			message: "missing provider configuration",
		},
		{
			name:    "requires an upload path for local",
			cfg:     &upload.Config{Provider: upload.ProviderLocal, Local: &upload.LocalConfig{}},
			code:    upload.CodeConfiguration,
			message: `missing "uploadPath" for local provider`,
		},
		{
			name: "requires every s3 credential",
			cfg: &upload.Config{Provider: upload.ProviderS3, S3: &upload.S3Config{
				Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s",
			}},
			code:    upload.CodeConfiguration,
			message: "missing AWS S3 credentials",
		},
		{
			name: "requires every azure credential",
			cfg: &upload.Config{Provider: upload.ProviderAzure, Azure: &upload.AzureConfig{
				AccountName: "a", AccountKey: "k",
			}},
			code:    upload.CodeConfiguration,
			message: "missing Azure Blob Storage credentials",
		},
		{
			name:    "requires a gcs bucket",
			cfg:     &upload.Config{Provider: upload.ProviderGCS, GCS: &upload.GCSConfig{KeyFilename: "key.json"}},
			code:    upload.CodeConfiguration,
			message: "missing GCS bucket name",
		},
		{
			name:    "requires gcs credentials outside the emulator",
			cfg:     &upload.Config{Provider: upload.ProviderGCS, GCS: &upload.GCSConfig{Bucket: "b"}},
			code:    upload.CodeConfiguration,
			message: "missing GCS credentials: provide either keyFilename or use emulator with endpoint",
		},
		{
			name: "requires every cloudinary credential",
			cfg: &upload.Config{Provider: upload.ProviderCloudinary, Cloudinary: &upload.CloudinaryConfig{
				CloudName: "c", APIKey: "k",
			}},
			code:    upload.CodeConfiguration,
			message: "missing Cloudinary credentials",
		},
		{
			name:    "rejects an unknown provider",
			cfg:     &upload.Config{Provider: "dropbox"},
			code:    upload.CodeProviderNotImplemented,
			message: "unknown provider: dropbox",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := upload.ValidateConfig(tc.cfg)
			assert.Equal(t, tc.code, upload.CodeOf(err))
			assert.EqualError(t, err, tc.message)
		})
	}

	valid := []struct {
		name string
		cfg  *upload.Config
	}{
		{"accepts local", &upload.Config{Provider: upload.ProviderLocal, Local: &upload.LocalConfig{UploadPath: "./uploads"}}},
		{"accepts s3", &upload.Config{Provider: upload.ProviderS3, S3: &upload.S3Config{
			Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s", Region: "us-east-1",
		}}},
		{"accepts azure", &upload.Config{Provider: upload.ProviderAzure, Azure: &upload.AzureConfig{
			AccountName: "a", AccountKey: "k", ContainerName: "c",
		}}},
		{"accepts gcs with a key file", &upload.Config{Provider: upload.ProviderGCS, GCS: &upload.GCSConfig{
			Bucket: "b", KeyFilename: "key.json",
		}}},
		{"accepts the gcs emulator without a key file", &upload.Config{Provider: upload.ProviderGCS, GCS: &upload.GCSConfig{
			Bucket: "b", Endpoint: "http://localhost:4443",
		}}},
		{"accepts the gcs emulator with an ignored key file", &upload.Config{Provider: upload.ProviderGCS, GCS: &upload.GCSConfig{
			Bucket: "b", Endpoint: "http://localhost:4443", KeyFilename: "key.json",
		}}},
		{"accepts cloudinary", &upload.Config{Provider: upload.ProviderCloudinary, Cloudinary: &upload.CloudinaryConfig{
			CloudName: "c", APIKey: "k", APISecret: "s",
		}}},
	}
	for _, tc := range valid {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, upload.ValidateConfig(tc.cfg))
		})
	}
}

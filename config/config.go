// Package config loads the upload and server settings from UPLOADEX_*
// environment variables, an optional .env file and an optional config file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/imrenagi/uploadex/upload"
)

const EnvPrefix = "UPLOADEX"

// Server holds the settings of the HTTP process around the provider.
type Server struct {
	Addr         string
	TempDir      string
	LogLevel     string
	OTLPEndpoint string
}

type Config struct {
	Server Server
	Upload *upload.Config
}

// NewViper returns a viper instance bound to the UPLOADEX_ prefix, so that
// the key s3.bucket is read from UPLOADEX_S3_BUCKET.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("temp_dir", filepath.Join(os.TempDir(), "uploadex"))
	v.SetDefault("log_level", "info")
	v.SetDefault("provider", string(upload.ProviderLocal))
	v.SetDefault("local.upload_path", "./uploads")
	v.SetDefault("max_file_size", upload.DefaultMaxFileSize)
	v.SetDefault("max_files", upload.DefaultMaxFiles)
	v.SetDefault("max_safe_memory_size", upload.DefaultMaxSafeMemorySize)
	return v
}

// LoadDotEnv exports the variables of path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", path).Msg("no .env file found, reading from environment")
			return nil
		}
		return upload.Wrap(upload.CodeConfiguration, err, "failed to load .env file")
	}
	return nil
}

// Load reads configFile when it is set, then builds and validates the
// configuration from v.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, upload.Wrap(upload.CodeConfiguration, err, "failed to read config file")
		}
	}

	cfg := &Config{
		Server: Server{
			Addr:         v.GetString("addr"),
			TempDir:      v.GetString("temp_dir"),
			LogLevel:     v.GetString("log_level"),
			OTLPEndpoint: v.GetString("otlp_endpoint"),
		},
		Upload: uploadConfig(v),
	}

	if err := upload.ValidateConfig(cfg.Upload); err != nil {
		return nil, err
	}
	return cfg, nil
}

// uploadConfig only fills the sub-config of the selected provider.
func uploadConfig(v *viper.Viper) *upload.Config {
	c := &upload.Config{
		Provider:          upload.ProviderType(strings.ToLower(v.GetString("provider"))),
		MaxFileSize:       v.GetInt64("max_file_size"),
		MaxFiles:          v.GetInt("max_files"),
		AllowedMimeTypes:  stringList(v, "allowed_mime_types"),
		AllowedExtensions: stringList(v, "allowed_extensions"),
		MaxSafeMemorySize: v.GetInt64("max_safe_memory_size"),
		UploadTimeout:     time.Duration(v.GetInt64("upload_timeout_ms")) * time.Millisecond,
		UploadRetries:     v.GetInt("upload_retries"),
		Debug:             v.GetBool("debug"),
	}

	switch c.Provider {
	case upload.ProviderLocal:
		c.Local = &upload.LocalConfig{
			UploadPath: v.GetString("local.upload_path"),
		}
	case upload.ProviderS3:
		c.S3 = &upload.S3Config{
			Bucket:          v.GetString("s3.bucket"),
			AccessKeyID:     v.GetString("s3.access_key_id"),
			SecretAccessKey: v.GetString("s3.secret_access_key"),
			Region:          v.GetString("s3.region"),
			Endpoint:        v.GetString("s3.endpoint"),
			CheckBucket:     v.GetBool("s3.check_bucket"),
		}
	case upload.ProviderAzure:
		c.Azure = &upload.AzureConfig{
			AccountName:    v.GetString("azure.account_name"),
			AccountKey:     v.GetString("azure.account_key"),
			ContainerName:  v.GetString("azure.container_name"),
			Endpoint:       v.GetString("azure.endpoint"),
			CheckContainer: v.GetBool("azure.check_container"),
		}
	case upload.ProviderGCS:
		c.GCS = &upload.GCSConfig{
			Bucket:      v.GetString("gcs.bucket"),
			ProjectID:   v.GetString("gcs.project_id"),
			KeyFilename: v.GetString("gcs.key_filename"),
			Endpoint:    v.GetString("gcs.endpoint"),
			CheckBucket: v.GetBool("gcs.check_bucket"),
		}
	case upload.ProviderCloudinary:
		c.Cloudinary = &upload.CloudinaryConfig{
			CloudName: v.GetString("cloudinary.cloud_name"),
			APIKey:    v.GetString("cloudinary.api_key"),
			APISecret: v.GetString("cloudinary.api_secret"),
			Folder:    v.GetString("cloudinary.folder"),
		}
	}
	return c
}

// stringList accepts a YAML list or a comma separated environment value.
func stringList(v *viper.Viper, key string) []string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetStringSlice(key)
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

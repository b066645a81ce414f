package upload

import (
	"time"

	"github.com/rs/zerolog/log"
)

// ProviderType names a storage backend.
type ProviderType string

const (
	ProviderLocal      ProviderType = "local"
	ProviderS3         ProviderType = "s3"
	ProviderAzure      ProviderType = "azure"
	ProviderGCS        ProviderType = "gcs"
	ProviderCloudinary ProviderType = "cloudinary"
)

// DefaultMaxSafeMemorySize is the buffer-vs-stream threshold when none is configured.
const DefaultMaxSafeMemorySize = 10 << 20

type LocalConfig struct {
	UploadPath string
}

type S3Config struct {
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	// Endpoint targets an S3 compatible service such as LocalStack or MinIO.
	Endpoint    string
	CheckBucket bool
}

type AzureConfig struct {
	AccountName    string
	AccountKey     string
	ContainerName  string
	Endpoint       string
	CheckContainer bool
}

type GCSConfig struct {
	Bucket      string
	ProjectID   string
	KeyFilename string
	// Endpoint switches the provider to emulator mode.
	Endpoint    string
	CheckBucket bool
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Config is built once at startup and must not be mutated after
// ValidateConfig accepted it. Only the sub-config matching Provider is read.
type Config struct {
	Provider ProviderType

	Local      *LocalConfig
	S3         *S3Config
	Azure      *AzureConfig
	GCS        *GCSConfig
	Cloudinary *CloudinaryConfig

	MaxFileSize       int64
	MaxFiles          int
	AllowedMimeTypes  []string
	AllowedExtensions []string
	MaxSafeMemorySize int64
	UploadTimeout     time.Duration
	UploadRetries     int
	Debug             bool
}

// ValidationOptions returns the validator policy described by c.
func (c *Config) ValidationOptions() ValidationOptions {
	return ValidationOptions{
		MaxSize:           c.MaxFileSize,
		MaxFiles:          c.MaxFiles,
		AllowedExtensions: c.AllowedExtensions,
		AllowedMimeTypes:  c.AllowedMimeTypes,
	}
}

func (c *Config) memoryThreshold() int64 {
	if c.MaxSafeMemorySize > 0 {
		return c.MaxSafeMemorySize
	}
	return DefaultMaxSafeMemorySize
}

func (c *Config) providerConfigPresent() bool {
	switch c.Provider {
	case ProviderLocal:
		return c.Local != nil
	case ProviderS3:
		return c.S3 != nil
	case ProviderAzure:
		return c.Azure != nil
	case ProviderGCS:
		return c.GCS != nil
	case ProviderCloudinary:
		return c.Cloudinary != nil
	}
	return true
}

// ValidateConfig checks that c has the shape required by its provider. It is
// meant to run once, before any provider is constructed.
func ValidateConfig(c *Config) error {
	if c == nil {
		return Errorf(CodeConfiguration, "upload options must be a valid object")
	}
	if c.Provider == "" {
		return Errorf(CodeConfiguration, "missing required provider in upload config")
	}
	if !c.providerConfigPresent() {
		return Errorf(CodeConfiguration, "missing provider configuration")
	}

	switch c.Provider {
	case ProviderLocal:
		if c.Local.UploadPath == "" {
			return Errorf(CodeConfiguration, `missing "uploadPath" for local provider`)
		}
	case ProviderS3:
		s := c.S3
		if s.Bucket == "" || s.AccessKeyID == "" || s.SecretAccessKey == "" || s.Region == "" {
			return Errorf(CodeConfiguration, "missing AWS S3 credentials")
		}
	case ProviderAzure:
		a := c.Azure
		if a.AccountName == "" || a.AccountKey == "" || a.ContainerName == "" {
			return Errorf(CodeConfiguration, "missing Azure Blob Storage credentials")
		}
	case ProviderGCS:
		g := c.GCS
		if g.Bucket == "" {
			return Errorf(CodeConfiguration, "missing GCS bucket name")
		}
		emulator := g.Endpoint != ""
		if !emulator && g.KeyFilename == "" {
			return Errorf(CodeConfiguration, "missing GCS credentials: provide either keyFilename or use emulator with endpoint")
		}
		if emulator && g.KeyFilename != "" {
			log.Warn().
				Str("endpoint", g.Endpoint).
				Msg("GCS is running in emulator mode, keyFilename will be ignored")
		}
	case ProviderCloudinary:
		cl := c.Cloudinary
		if cl.CloudName == "" || cl.APIKey == "" || cl.APISecret == "" {
			return Errorf(CodeConfiguration, "missing Cloudinary credentials")
		}
	default:
		return Errorf(CodeProviderNotImplemented, "unknown provider: %s", c.Provider).
			WithDetail("provider", string(c.Provider))
	}
	return nil
}

package upload

import (
	"path"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxFileSize = 5 << 20
	DefaultMaxFiles    = 10
)

var (
	DefaultAllowedExtensions = []string{".jpg", ".jpeg", ".png", ".pdf", ".csv"}
	DefaultAllowedMimeTypes  = []string{"image/jpeg", "image/png", "application/pdf", "text/csv"}
)

// ValidationOptions overrides the policy for a single call. Zero values fall
// back to the package defaults.
type ValidationOptions struct {
	MaxSize           int64
	MaxFiles          int
	AllowedExtensions []string
	AllowedMimeTypes  []string
}

func (o ValidationOptions) withDefaults() ValidationOptions {
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxFileSize
	}
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultMaxFiles
	}
	if len(o.AllowedExtensions) == 0 {
		o.AllowedExtensions = DefaultAllowedExtensions
	}
	if len(o.AllowedMimeTypes) == 0 {
		o.AllowedMimeTypes = DefaultAllowedMimeTypes
	}
	return o
}

// ValidateFile checks size, then extension, then MIME type, stopping at the
// first violation.
func ValidateFile(f *IncomingFile, opts ValidationOptions) error {
	if f == nil {
		return Errorf(CodeUnknown, "no file uploaded")
	}
	opts = opts.withDefaults()

	if f.Size > opts.MaxSize {
		return Errorf(CodeFileTooLarge, "max file size is %.2fMB", float64(opts.MaxSize)/1024/1024).
			WithDetail("fileSize", f.Size).
			WithDetail("maxSize", opts.MaxSize)
	}

	ext := strings.ToLower(path.Ext(f.OriginalName))
	if !slices.ContainsFunc(opts.AllowedExtensions, func(allowed string) bool {
		return strings.ToLower(allowed) == ext
	}) {
		return Errorf(CodeInvalidExtension, "invalid file extension: %s", ext).
			WithDetail("extension", ext)
	}

	if !slices.Contains(opts.AllowedMimeTypes, f.MimeType) {
		return Errorf(CodeInvalidMimeType, "invalid MIME type: %s", f.MimeType).
			WithDetail("mimeType", f.MimeType)
	}
	return nil
}

// ValidateFiles rejects an empty batch, then an oversized batch, and only then
// checks every file concurrently. The first failure observed is returned.
func ValidateFiles(files []*IncomingFile, opts ValidationOptions) error {
	if len(files) == 0 {
		return Errorf(CodeUnknown, "no files uploaded")
	}
	opts = opts.withDefaults()

	if len(files) > opts.MaxFiles {
		return Errorf(CodeMaxFilesExceeded, "you can upload a maximum of %d files", opts.MaxFiles).
			WithDetail("count", len(files))
	}

	var g errgroup.Group
	for _, f := range files {
		g.Go(func() error {
			return ValidateFile(f, opts)
		})
	}
	return g.Wait()
}

package upload

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultFilePrefix is used when no prefix is given.
	DefaultFilePrefix = "upload"
	// FallbackFilename is returned for empty names.
	FallbackFilename = "file"

	maxBaseLength      = 100
	maxExtensionLength = 16
)

var (
	unsafeChars    = regexp.MustCompile(`[^a-z0-9\-_.]`)
	repeatedDashes = regexp.MustCompile(`-+`)
	unsafeExtChars = regexp.MustCompile(`[^a-z0-9.]`)
)

// IDSource produces the unique token embedded in every stored name.
type IDSource interface {
	NewID() string
}

// IDSourceFunc adapts a function to IDSource.
type IDSourceFunc func() string

func (f IDSourceFunc) NewID() string { return f() }

type uuidSource struct{}

func (uuidSource) NewID() string { return uuid.NewString() }

// Namer derives storage keys from user supplied names.
type Namer struct {
	ids IDSource
}

// NewNamer returns a Namer drawing ids from src, or from random UUIDs when src is nil.
func NewNamer(src IDSource) Namer {
	if src == nil {
		src = uuidSource{}
	}
	return Namer{ids: src}
}

// Generate returns prefix-<id>-<sanitized base><extension>.
func (n Namer) Generate(originalName, prefix string) string {
	if originalName == "" {
		return FallbackFilename
	}
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	if n.ids == nil {
		n.ids = uuidSource{}
	}

	// drop any directory component, whichever separator the client used
	name := path.Base(strings.ReplaceAll(originalName, `\`, "/"))
	if name == "/" || name == "." {
		name = ""
	}

	ext := strings.ToLower(path.Ext(name))
	base := strings.ToLower(strings.TrimSuffix(name, path.Ext(name)))

	base = unsafeChars.ReplaceAllString(base, "-")
	base = repeatedDashes.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-.")
	if len(base) > maxBaseLength {
		base = strings.Trim(base[:maxBaseLength], "-.")
	}

	ext = unsafeExtChars.ReplaceAllString(ext, "")
	if len(ext) > maxExtensionLength {
		ext = ext[:maxExtensionLength]
	}
	if ext == "." {
		ext = ""
	}

	return prefix + "-" + n.ids.NewID() + "-" + base + ext
}

// GenerateSafeFilename is Generate with a random UUID source.
func GenerateSafeFilename(originalName, prefix string) string {
	return NewNamer(nil).Generate(originalName, prefix)
}

// Package local stores uploads in a directory on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/imrenagi/uploadex/upload"
)

const Prefix = "local"

// Backend writes objects below a base directory. FilePath of every stored
// object is the absolute path of the written file.
type Backend struct {
	fs   billy.Filesystem
	root string
}

// New creates the upload directory if needed and returns a Backend rooted there.
func New(cfg *upload.LocalConfig) (*Backend, error) {
	if cfg == nil || cfg.UploadPath == "" {
		return nil, upload.Errorf(upload.CodeConfiguration, `missing "uploadPath" for local provider`)
	}
	root, err := filepath.Abs(cfg.UploadPath)
	if err != nil {
		return nil, upload.Wrap(upload.CodeConfiguration, err, "invalid upload path")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, upload.Wrap(upload.CodeConfiguration, err, "cannot create upload path")
	}
	return NewWithFilesystem(osfs.New(root), root), nil
}

// NewWithFilesystem returns a Backend writing into fsys. root is only used to
// build the returned locations.
func NewWithFilesystem(fsys billy.Filesystem, root string) *Backend {
	return &Backend{fs: fsys, root: root}
}

func (b *Backend) Prefix() string { return Prefix }

func (b *Backend) Put(ctx context.Context, obj upload.Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := obj.Open()
	if err != nil {
		return "", fmt.Errorf("open source of %q: %w", obj.Key, err)
	}
	defer src.Close()

	dst, err := b.fs.OpenFile(obj.Key, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", obj.Key, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		b.fs.Remove(obj.Key)
		return "", fmt.Errorf("write %q: %w", obj.Key, err)
	}
	if err := dst.Close(); err != nil {
		b.fs.Remove(obj.Key)
		return "", fmt.Errorf("close %q: %w", obj.Key, err)
	}

	return filepath.Join(b.root, obj.Key), nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.fs.Remove(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

var (
	_ upload.Backend = (*Backend)(nil)
	_ upload.Remover = (*Backend)(nil)
)

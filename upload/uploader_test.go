package upload_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrenagi/uploadex/storage/local"
	"github.com/imrenagi/uploadex/upload"
)

type put struct {
	key      string
	buffered bool
	content  []byte
}

// fakeBackend stores objects in memory. Keys containing "fail" always fail;
// failuresLeft makes the next N writes fail regardless of key.
type fakeBackend struct {
	mu           sync.Mutex
	puts         []put
	deleted      []string
	attempts     int
	failuresLeft int
	delay        time.Duration
	// sourceSeen records whether a streamed source still existed on every attempt
	sourceSeen []bool
}

func (b *fakeBackend) Prefix() string { return "fake" }

func (b *fakeBackend) Put(ctx context.Context, obj upload.Object) (string, error) {
	b.mu.Lock()
	b.attempts++
	if obj.Path != "" {
		_, err := os.Stat(obj.Path)
		b.sourceSeen = append(b.sourceSeen, err == nil)
	}
	fail := b.failuresLeft > 0 || strings.Contains(obj.Key, "fail")
	if b.failuresLeft > 0 {
		b.failuresLeft--
	}
	b.mu.Unlock()

	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail {
		return "", errors.New("backend unavailable")
	}

	src, err := obj.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	content, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts = append(b.puts, put{key: obj.Key, buffered: obj.Buffered(), content: content})
	return "mem://" + obj.Key, nil
}

func (b *fakeBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, key)
	return nil
}

func tempFile(t *testing.T, name string, size int) *upload.IncomingFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "part-"+name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o600))

	mime := "image/png"
	switch filepath.Ext(name) {
	case ".pdf":
		mime = "application/pdf"
	case ".csv":
		mime = "text/csv"
	}
	return &upload.IncomingFile{OriginalName: name, MimeType: mime, Size: int64(size), TempPath: path}
}

func localConfig(t *testing.T) *upload.Config {
	return &upload.Config{
		Provider: upload.ProviderLocal,
		Local:    &upload.LocalConfig{UploadPath: t.TempDir()},
	}
}

func TestUploaderWithLocalBackend(t *testing.T) {
	t.Run("stores a file under a sanitized name and removes the artifact", func(t *testing.T) {
		cfg := localConfig(t)
		backend, err := local.New(cfg.Local)
		require.NoError(t, err)
		u := upload.NewUploader(backend, cfg, upload.WithIDSource(fixedID("0001")))

		f := tempFile(t, "My Résumé (final).pdf", 2048)
		meta, err := u.HandleSingleFileUpload(context.Background(), f)
		require.NoError(t, err)

		assert.Equal(t, &upload.UploadedFileMeta{
			FileName:   "My Résumé (final).pdf",
			StoredName: "local-0001-my-r-sum-final.pdf",
			FilePath:   filepath.Join(mustAbs(t, cfg.Local.UploadPath), "local-0001-my-r-sum-final.pdf"),
			MimeType:   "application/pdf",
			Size:       2048,
		}, meta)

		stored, err := os.ReadFile(meta.FilePath)
		require.NoError(t, err)
		assert.Len(t, stored, 2048)
		assert.NoFileExists(t, f.TempPath)
	})

	t.Run("rejects a batch with one oversized file and removes every artifact", func(t *testing.T) {
		cfg := localConfig(t)
		backend, err := local.New(cfg.Local)
		require.NoError(t, err)
		u := upload.NewUploader(backend, cfg)

		files := []*upload.IncomingFile{
			tempFile(t, "a.png", 10),
			tempFile(t, "b.png", 6<<20),
			tempFile(t, "c.png", 10),
		}
		_, err = u.HandleMultipleFileUpload(context.Background(), files)

		assert.Equal(t, upload.CodeFileTooLarge, upload.CodeOf(err))
		for _, f := range files {
			assert.NoFileExists(t, f.TempPath)
		}
		entries, err := os.ReadDir(cfg.Local.UploadPath)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func mustAbs(t *testing.T, p string) string {
	t.Helper()
	abs, err := filepath.Abs(p)
	require.NoError(t, err)
	return abs
}

func TestHandleSingleFileUpload(t *testing.T) {
	fast := upload.WithRetryBaseDelay(time.Millisecond)

	t.Run("buffers files under the memory threshold", func(t *testing.T) {
		backend := &fakeBackend{}
		u := upload.NewUploader(backend, &upload.Config{MaxSafeMemorySize: 100}, fast)

		f := tempFile(t, "a.png", 50)
		meta, err := u.HandleSingleFileUpload(context.Background(), f)
		require.NoError(t, err)

		require.Len(t, backend.puts, 1)
		assert.True(t, backend.puts[0].buffered)
		assert.Len(t, backend.puts[0].content, 50)
		assert.Equal(t, "mem://"+meta.StoredName, meta.FilePath)
		assert.True(t, strings.HasPrefix(meta.StoredName, "fake-"))
		assert.NoFileExists(t, f.TempPath)
	})

	t.Run("streams files over the memory threshold", func(t *testing.T) {
		backend := &fakeBackend{}
		u := upload.NewUploader(backend, &upload.Config{MaxSafeMemorySize: 10}, fast)

		f := tempFile(t, "a.png", 50)
		_, err := u.HandleSingleFileUpload(context.Background(), f)
		require.NoError(t, err)

		require.Len(t, backend.puts, 1)
		assert.False(t, backend.puts[0].buffered)
		assert.Len(t, backend.puts[0].content, 50)
		assert.NoFileExists(t, f.TempPath)
	})

	t.Run("uploads an in-memory file over the threshold from its buffer", func(t *testing.T) {
		backend := &fakeBackend{}
		u := upload.NewUploader(backend, &upload.Config{MaxSafeMemorySize: 1}, fast)

		f := &upload.IncomingFile{OriginalName: "a.png", MimeType: "image/png", Size: 3, Buffer: []byte("abc")}
		_, err := u.HandleSingleFileUpload(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), backend.puts[0].content)
	})

	t.Run("fails when the file has no content source", func(t *testing.T) {
		backend := &fakeBackend{}
		u := upload.NewUploader(backend, &upload.Config{}, fast)

		f := &upload.IncomingFile{OriginalName: "a.png", MimeType: "image/png", Size: 3}
		_, err := u.HandleSingleFileUpload(context.Background(), f)
		assert.Equal(t, upload.CodeUnknown, upload.CodeOf(err))
		assert.Zero(t, backend.attempts)
	})

	t.Run("retries a streamed upload with its artifact still on disk", func(t *testing.T) {
		backend := &fakeBackend{failuresLeft: 2}
		u := upload.NewUploader(backend, &upload.Config{MaxSafeMemorySize: 1, UploadRetries: 2}, fast)

		f := tempFile(t, "a.png", 20)
		_, err := u.HandleSingleFileUpload(context.Background(), f)
		require.NoError(t, err)

		assert.Equal(t, 3, backend.attempts)
		assert.Equal(t, []bool{true, true, true}, backend.sourceSeen)
		assert.NoFileExists(t, f.TempPath)
	})

	t.Run("fails with UPLOAD_FAILED once retries are exhausted", func(t *testing.T) {
		backend := &fakeBackend{failuresLeft: 10}
		u := upload.NewUploader(backend, &upload.Config{UploadRetries: 1}, fast)

		f := tempFile(t, "a.png", 20)
		_, err := u.HandleSingleFileUpload(context.Background(), f)

		var e *upload.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, upload.CodeUploadFailed, e.Code)
		assert.Equal(t, 2, e.Details["attempts"])
		assert.Equal(t, 2, backend.attempts)
		assert.NoFileExists(t, f.TempPath)
	})

	t.Run("reports a timeout inside the final error", func(t *testing.T) {
		backend := &fakeBackend{delay: time.Second}
		u := upload.NewUploader(backend, &upload.Config{UploadTimeout: 20 * time.Millisecond}, fast)

		f := tempFile(t, "a.png", 20)
		_, err := u.HandleSingleFileUpload(context.Background(), f)

		assert.Equal(t, upload.CodeUploadFailed, upload.CodeOf(err))
		assert.True(t, upload.IsCode(err, upload.CodeTimeout))
		assert.NoFileExists(t, f.TempPath)
	})

	t.Run("rejects an invalid file without touching the backend", func(t *testing.T) {
		backend := &fakeBackend{}
		u := upload.NewUploader(backend, &upload.Config{}, fast)

		f := tempFile(t, "a.exe", 20)
		_, err := u.HandleSingleFileUpload(context.Background(), f)

		assert.Equal(t, upload.CodeInvalidExtension, upload.CodeOf(err))
		assert.Zero(t, backend.attempts)
		assert.NoFileExists(t, f.TempPath)
	})

	t.Run("rejects a missing file", func(t *testing.T) {
		u := upload.NewUploader(&fakeBackend{}, &upload.Config{}, fast)
		_, err := u.HandleSingleFileUpload(context.Background(), nil)
		assert.Equal(t, upload.CodeUnknown, upload.CodeOf(err))
	})
}

func TestHandleMultipleFileUpload(t *testing.T) {
	fast := upload.WithRetryBaseDelay(time.Millisecond)

	t.Run("returns metadata in input order", func(t *testing.T) {
		backend := &fakeBackend{}
		u := upload.NewUploader(backend, &upload.Config{}, fast)

		files := []*upload.IncomingFile{
			tempFile(t, "one.png", 10),
			tempFile(t, "two.pdf", 20),
			tempFile(t, "three.csv", 30),
		}
		metas, err := u.HandleMultipleFileUpload(context.Background(), files)
		require.NoError(t, err)

		require.Len(t, metas, 3)
		for i, f := range files {
			assert.Equal(t, f.OriginalName, metas[i].FileName)
			assert.Equal(t, f.Size, metas[i].Size)
			assert.NoFileExists(t, f.TempPath)
		}
	})

	t.Run("rolls back written objects when one file fails", func(t *testing.T) {
		backend := &fakeBackend{}
		u := upload.NewUploader(backend, &upload.Config{}, fast)

		files := []*upload.IncomingFile{
			tempFile(t, "ok.png", 10),
			tempFile(t, "fail.png", 10),
		}
		_, err := u.HandleMultipleFileUpload(context.Background(), files)

		assert.Equal(t, upload.CodeUploadFailed, upload.CodeOf(err))
		for _, f := range files {
			assert.NoFileExists(t, f.TempPath)
		}
		require.Len(t, backend.puts, 1)
		assert.Equal(t, []string{backend.puts[0].key}, backend.deleted)
	})

	t.Run("rejects more files than allowed", func(t *testing.T) {
		backend := &fakeBackend{}
		u := upload.NewUploader(backend, &upload.Config{MaxFiles: 1}, fast)

		files := []*upload.IncomingFile{tempFile(t, "a.png", 1), tempFile(t, "b.png", 1)}
		_, err := u.HandleMultipleFileUpload(context.Background(), files)

		assert.Equal(t, upload.CodeMaxFilesExceeded, upload.CodeOf(err))
		assert.Zero(t, backend.attempts)
		for _, f := range files {
			assert.NoFileExists(t, f.TempPath)
		}
	})

	t.Run("rejects an empty batch", func(t *testing.T) {
		u := upload.NewUploader(&fakeBackend{}, &upload.Config{}, fast)
		_, err := u.HandleMultipleFileUpload(context.Background(), nil)
		assert.Equal(t, upload.CodeUnknown, upload.CodeOf(err))
	})
}

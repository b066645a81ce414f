package upload

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// IncomingFile is one file as handed over by the transport layer. Name, MIME
// type and size are declared by the client and never re-measured.
type IncomingFile struct {
	OriginalName string
	MimeType     string
	Size         int64

	// Buffer holds the content when the transport kept it in memory.
	Buffer []byte
	// TempPath points to a transport-owned artifact on disk.
	TempPath string

	mu      sync.Mutex
	removed bool
}

// RemoveTemp deletes the temp artifact. Only the first successful call
// touches the disk; a file that is already gone counts as removed.
func (f *IncomingFile) RemoveTemp() error {
	if f == nil || f.TempPath == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removed {
		return nil
	}
	if err := os.Remove(f.TempPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	f.removed = true
	return nil
}

// UploadedFileMeta describes where a file ended up.
type UploadedFileMeta struct {
	FileName   string `json:"fileName"`
	StoredName string `json:"storedName"`
	FilePath   string `json:"filePath"`
	MimeType   string `json:"mimeType"`
	Size       int64  `json:"size"`
}

// Object is what a Backend receives for a single write. Exactly one of Data
// or Path is the source of the bytes.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Data        []byte
	Path        string
}

// Buffered reports whether the content is held in memory.
func (o Object) Buffered() bool {
	return o.Data != nil
}

type bytesReadCloser struct {
	*bytes.Reader
}

func (bytesReadCloser) Close() error { return nil }

// Open returns a seekable reader over the object content. The caller closes it.
func (o Object) Open() (io.ReadSeekCloser, error) {
	if o.Data != nil {
		return bytesReadCloser{bytes.NewReader(o.Data)}, nil
	}
	if o.Path == "" {
		return nil, Errorf(CodeUnknown, "no valid file buffer or path")
	}
	return os.Open(o.Path)
}

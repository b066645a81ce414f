package v1

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/imrenagi/uploadex/upload"
)

const (
	FileNameHeader = "X-Api-File-Name"

	SingleFileField   = "file"
	MultipleFileField = "files"

	defaultMaxBodySize = 100 << 20
	defaultContentType = "application/octet-stream"
)

type Options struct {
	TempDir     string
	MaxBodySize int64
}

type Option func(*Options)

// WithTempDir sets the directory incoming parts are spooled to.
func WithTempDir(dir string) Option {
	return func(o *Options) {
		if dir != "" {
			o.TempDir = dir
		}
	}
}

// WithMaxBodySize caps the request body.
func WithMaxBodySize(size int64) Option {
	return func(o *Options) {
		o.MaxBodySize = size
	}
}

func NewController(p upload.Provider, opts ...Option) Controller {
	o := Options{
		TempDir:     filepath.Join(os.TempDir(), "uploadex"),
		MaxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return Controller{
		provider:    p,
		tempDir:     o.TempDir,
		maxBodySize: o.MaxBodySize,
	}
}

// Controller spools request bodies to temp artifacts and hands them to the
// provider, which owns their removal from then on.
type Controller struct {
	provider    upload.Provider
	tempDir     string
	maxBodySize int64
}

func (c *Controller) SingleUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := log.Ctx(r.Context())
		r.Body = http.MaxBytesReader(w, r.Body, c.maxBodySize)

		files, err := c.spoolParts(r, SingleFileField)
		if err != nil {
			log.Error().Err(err).Msg("error reading the multipart body")
			writeError(w, err)
			return
		}
		if len(files) == 0 {
			writeError(w, upload.Errorf(upload.CodeUnknown, "no file uploaded"))
			return
		}
		// only the first part named "file" is uploaded
		for _, extra := range files[1:] {
			extra.RemoveTemp()
		}

		meta, err := c.provider.HandleSingleFileUpload(r.Context(), files[0])
		if err != nil {
			log.Error().Err(err).Str("file_name", files[0].OriginalName).Msg("upload failed")
			writeError(w, err)
			return
		}

		log.Info().Str("file_name", meta.FileName).
			Str("stored_name", meta.StoredName).
			Int64("file_size", meta.Size).
			Msg("File Uploaded")
		writeJSON(w, http.StatusCreated, meta)
	}
}

func (c *Controller) MultipleUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := log.Ctx(r.Context())
		r.Body = http.MaxBytesReader(w, r.Body, c.maxBodySize)

		files, err := c.spoolParts(r, MultipleFileField)
		if err != nil {
			log.Error().Err(err).Msg("error reading the multipart body")
			writeError(w, err)
			return
		}

		metas, err := c.provider.HandleMultipleFileUpload(r.Context(), files)
		if err != nil {
			log.Error().Err(err).Int("file_count", len(files)).Msg("batch upload failed")
			writeError(w, err)
			return
		}

		log.Info().Int("file_count", len(metas)).Msg("Files Uploaded")
		writeJSON(w, http.StatusCreated, metas)
	}
}

// BinaryUpload accepts the raw file as the request body. The original name
// comes from the X-Api-File-Name header and the MIME type from Content-Type.
func (c *Controller) BinaryUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := log.Ctx(r.Context())
		r.Body = http.MaxBytesReader(w, r.Body, c.maxBodySize)
		defer r.Body.Close()

		fileName := r.Header.Get(FileNameHeader)
		contentType := r.Header.Get("Content-Type")
		log.Debug().
			Str("content_type", contentType).
			Str("file_name", fileName).
			Msg("received binary data")

		if fileName == "" {
			writeError(w, upload.Errorf(upload.CodeUnknown, "missing %s header", FileNameHeader))
			return
		}

		f, err := c.spool(r.Body, fileName, contentType)
		if err != nil {
			log.Error().Err(err).Msg("Error Copying the File")
			writeError(w, err)
			return
		}

		meta, err := c.provider.HandleSingleFileUpload(r.Context(), f)
		if err != nil {
			log.Error().Err(err).Str("file_name", fileName).Msg("upload failed")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, meta)
	}
}

// spoolParts streams every file part named field to its own temp artifact.
// On failure the artifacts written so far are removed.
func (c *Controller) spoolParts(r *http.Request, field string) ([]*upload.IncomingFile, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, upload.Wrap(upload.CodeUnknown, err, "invalid multipart request")
	}

	var files []*upload.IncomingFile
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			removeAll(files)
			return nil, upload.Wrap(upload.CodeUnknown, err, "invalid multipart request")
		}
		if part.FormName() != field || part.FileName() == "" {
			part.Close()
			continue
		}

		f, err := c.spoolPart(part)
		if err != nil {
			removeAll(files)
			return nil, err
		}
		files = append(files, f)
	}
}

func (c *Controller) spoolPart(part *multipart.Part) (*upload.IncomingFile, error) {
	defer part.Close()
	return c.spool(part, part.FileName(), part.Header.Get("Content-Type"))
}

func (c *Controller) spool(src io.Reader, name, contentType string) (*upload.IncomingFile, error) {
	if err := os.MkdirAll(c.tempDir, 0o755); err != nil {
		return nil, upload.Wrap(upload.CodeUnknown, err, "failed to create temp directory")
	}
	tmp, err := os.CreateTemp(c.tempDir, "part-")
	if err != nil {
		return nil, upload.Wrap(upload.CodeUnknown, err, "failed to create temp file")
	}
	defer tmp.Close()

	n, err := io.Copy(tmp, src)
	if err != nil {
		os.Remove(tmp.Name())
		return nil, upload.Wrap(upload.CodeUnknown, err, "failed to read file body")
	}

	if contentType == "" {
		contentType = defaultContentType
	}
	return &upload.IncomingFile{
		OriginalName: name,
		MimeType:     contentType,
		Size:         n,
		TempPath:     tmp.Name(),
	}, nil
}

func removeAll(files []*upload.IncomingFile) {
	for _, f := range files {
		f.RemoveTemp()
	}
}

// StatusFor maps an error code to the HTTP status returned to clients.
func StatusFor(code upload.Code) int {
	switch code {
	case upload.CodeInvalidMimeType,
		upload.CodeInvalidExtension,
		upload.CodeFileTooLarge,
		upload.CodeMaxFilesExceeded,
		upload.CodeUnknown:
		return http.StatusBadRequest
	case upload.CodeProviderNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

type cError struct {
	Message string         `json:"message"`
	Code    upload.Code    `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	e := upload.AsError(err, "unexpected error")
	writeJSON(w, StatusFor(e.Code), cError{
		Message: e.Message,
		Code:    e.Code,
		Details: e.Details,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}

package upload

import "context"

// Provider is the contract every storage backend exposes to the transport layer.
type Provider interface {
	HandleSingleFileUpload(ctx context.Context, f *IncomingFile) (*UploadedFileMeta, error)
	HandleMultipleFileUpload(ctx context.Context, files []*IncomingFile) ([]*UploadedFileMeta, error)
}

// Backend performs the raw write for one storage variant.
type Backend interface {
	// Prefix is prepended to every generated storage key.
	Prefix() string
	// Put stores obj and returns a locator that resolves without further state.
	Put(ctx context.Context, obj Object) (string, error)
}

// Provisioner is implemented by backends that can verify or create their
// bucket or container.
type Provisioner interface {
	EnsureBucket(ctx context.Context) error
}

// Remover is implemented by backends able to delete a stored object. It is
// used to roll back the written part of a failed batch.
type Remover interface {
	Delete(ctx context.Context, key string) error
}

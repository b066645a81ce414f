package upload

import "os"

// ShouldUseBuffer reports whether f should be uploaded from memory. Small
// files without a buffer are hydrated from their temp artifact, which is the
// only way this returns an error.
func ShouldUseBuffer(f *IncomingFile, maxSafeMemorySize int64) (bool, error) {
	if f == nil || f.Size < 0 {
		return false, nil
	}
	if f.Size > maxSafeMemorySize {
		return false, nil
	}
	if f.Buffer != nil {
		return true, nil
	}
	if f.TempPath == "" {
		return false, nil
	}

	data, err := os.ReadFile(f.TempPath)
	if err != nil {
		return false, Wrap(CodeUnknown, err, "failed to hydrate buffer from disk")
	}
	f.Buffer = data
	return true, nil
}

package upload_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imrenagi/uploadex/upload"
)

func TestError(t *testing.T) {
	t.Run("wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := upload.Wrap(upload.CodeUploadFailed, cause, "upload failed")

		assert.EqualError(t, err, "upload failed: connection reset")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "connection reset", err.Details["cause"])
	})

	t.Run("as error passes module errors through", func(t *testing.T) {
		orig := upload.Errorf(upload.CodeFileTooLarge, "too large")
		wrapped := fmt.Errorf("ctx: %w", orig)

		assert.Same(t, orig, upload.AsError(wrapped, "ignored"))
	})

	t.Run("as error coerces foreign errors to UNKNOWN", func(t *testing.T) {
		e := upload.AsError(errors.New("boom"), "failed")
		assert.Equal(t, upload.CodeUnknown, e.Code)
		assert.Equal(t, "failed: boom", e.Message)
		assert.Nil(t, upload.AsError(nil, "failed"))
	})

	t.Run("is code looks through nested errors", func(t *testing.T) {
		inner := upload.Errorf(upload.CodeTimeout, "timed out")
		outer := upload.Wrap(upload.CodeUploadFailed, inner, "upload failed")

		assert.Equal(t, upload.CodeUploadFailed, upload.CodeOf(outer))
		assert.True(t, upload.IsCode(outer, upload.CodeTimeout))
		assert.False(t, upload.IsCode(outer, upload.CodeFileTooLarge))
		assert.Equal(t, upload.CodeUnknown, upload.CodeOf(errors.New("plain")))
	})
}

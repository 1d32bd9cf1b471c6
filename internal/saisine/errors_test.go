package saisine

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := WrapError(KindContentUnavailable, "body missing", io.ErrUnexpectedEOF).WithPath("saisine.docx")

	assert.Equal(t, "[CONTENT_UNAVAILABLE] body missing: saisine.docx: unexpected EOF", err.Error())
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestError_IsMatchesKind(t *testing.T) {
	wrapped := fmt.Errorf("extract: %w", NewError(KindUnsupportedFormat, "odt"))

	assert.True(t, errors.Is(wrapped, ErrUnsupportedFormat))
	assert.False(t, errors.Is(wrapped, ErrContentUnavailable))

	var e *Error
	assert.True(t, errors.As(wrapped, &e))
	assert.Equal(t, KindUnsupportedFormat, e.Kind)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "FILE_TOO_LARGE", KindFileTooLarge.String())
	assert.Equal(t, "UNKNOWN", ErrorKind(42).String())
	assert.True(t, KindContentUnavailable.Degradable())
	assert.False(t, KindInvalidDocument.Degradable())
}

func TestError_WithPathCopies(t *testing.T) {
	base := NewError(KindInvalidDocument, "bad zip")
	withPath := base.WithPath("a.docx")

	assert.Empty(t, base.Path)
	assert.Equal(t, "a.docx", withPath.Path)
}

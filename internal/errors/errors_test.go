package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := stderrors.New("disk quota exceeded")

	// When: wrapping with AppError
	appErr := New(ErrCodeStorageWrite, "write durable blob", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, appErr)
	assert.Equal(t, originalErr, stderrors.Unwrap(appErr))
	assert.True(t, stderrors.Is(appErr, originalErr))
}

func TestAppError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigInvalid,
			message:  "capacity must be positive",
			expected: "[ERR_102_CONFIG_INVALID] capacity must be positive",
		},
		{
			name:     "tier error",
			code:     ErrCodeInvalidTier,
			message:  `unknown tier "slow"`,
			expected: `[ERR_402_INVALID_TIER] unknown tier "slow"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestAppError_CategoryAndSeverity_DerivedFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError},
		{ErrCodeStorageOpen, CategoryStorage, SeverityFatal},
		{ErrCodeStorageWrite, CategoryStorage, SeverityWarning},
		{ErrCodeCatalogMalformed, CategoryCatalog, SeverityWarning},
		{ErrCodeInvalidTier, CategoryValidation, SeverityError},
		{ErrCodeInternal, CategoryInternal, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestAppError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeInvalidTier, "first", nil)
	err2 := New(ErrCodeInvalidTier, "second", nil)
	err3 := New(ErrCodeQueryEmpty, "third", nil)

	assert.True(t, stderrors.Is(err1, err2))
	assert.False(t, stderrors.Is(err1, err3))
}

func TestGetCode_FindsWrappedAppError(t *testing.T) {
	inner := New(ErrCodeStorageCorrupt, "bad blob", nil)
	wrapped := fmt.Errorf("load durable tier: %w", inner)

	assert.Equal(t, ErrCodeStorageCorrupt, GetCode(wrapped))
	assert.Equal(t, CategoryStorage, GetCategory(wrapped))
	assert.Equal(t, "", GetCode(stderrors.New("plain")))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeStorageOpen, "open", nil)))
	assert.False(t, IsFatal(New(ErrCodeStorageWrite, "write", nil)))
	assert.False(t, IsFatal(nil))
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := ConfigError("storage.backend must be one of memory, file, sqlite, badger", nil).
		WithSuggestion("edit .autoprice.yaml")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: storage.backend must be one of")
	assert.Contains(t, out, "Hint: edit .autoprice.yaml")
	assert.Contains(t, out, "Code: ERR_102_CONFIG_INVALID")
}

func TestFormatForCLI_WrapsPlainErrors(t *testing.T) {
	out := FormatForCLI(stderrors.New("boom"))
	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, ErrCodeInternal)
	assert.Empty(t, FormatForCLI(nil))
}

func TestLogAttrs(t *testing.T) {
	err := StorageError("write durable blob", stderrors.New("quota")).WithDetail("key", "autoprice:cache:durable")

	attrs := LogAttrs(err)

	keys := make(map[string]string)
	for _, a := range attrs {
		keys[a.Key] = a.Value.String()
	}
	assert.Equal(t, ErrCodeStorageWrite, keys["error_code"])
	assert.Equal(t, "quota", keys["cause"])
	assert.Equal(t, "autoprice:cache:durable", keys["detail_key"])

	plain := LogAttrs(stderrors.New("x"))
	require.Len(t, plain, 1)
	assert.Equal(t, "error", plain[0].Key)
}

package ierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("disk full")

	wrapped := New(StorageIOFailed, "failed to rename shard file", originalErr)

	require.NotNil(t, wrapped)
	assert.Equal(t, originalErr, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, originalErr))
}

func TestIndexError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		message  string
		expected string
	}{
		{"chunking", ChunkingFailed, "file is not valid UTF-8", "[CHUNKING_FAILED] file is not valid UTF-8"},
		{"query", InvalidQueryParameters, "end before start", "[INVALID_QUERY_PARAMETERS] end before start"},
		{"lock", LockUnavailable, "timed out waiting for rebuild lock", "[LOCK_UNAVAILABLE] timed out waiting for rebuild lock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.kind, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestIndexError_Is_MatchesByKind(t *testing.T) {
	a := New(NotFound, "point missing", nil)
	b := New(NotFound, "different message, same kind", nil)
	c := New(Timeout, "deadline exceeded", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestKindOf_UnwrapsWrappedErrors(t *testing.T) {
	base := New(IndexCorrupt, "checksum mismatch", nil)
	wrapped := fmtWrap(base)

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, IndexCorrupt, kind)
}

func TestKindOf_NonIndexError(t *testing.T) {
	_, ok := KindOf(errors.New("plain error"))
	assert.False(t, ok)
}

func TestIs_Helper(t *testing.T) {
	err := New(EmbeddingFailed, "provider returned an error", nil)
	assert.True(t, Is(err, EmbeddingFailed))
	assert.False(t, Is(err, Timeout))
}

func TestWithDetail_ChainsAndAccumulates(t *testing.T) {
	err := New(InvalidQueryParameters, "bad time_range", nil).
		WithDetail("field", "time_range").
		WithDetail("value", "2024-13-01..2024-01-01")

	assert.Equal(t, "time_range", err.Details["field"])
	assert.Equal(t, "2024-13-01..2024-01-01", err.Details["value"])
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(StorageIOFailed, nil))
}

// fmtWrap simulates an intermediate wrapper implementing Unwrap, exercising
// KindOf's chain-walking behavior.
type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }

func fmtWrap(err error) error {
	return &wrapper{err: err}
}

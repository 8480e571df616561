package ioerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndError(t *testing.T) {
	cause := errors.New("disk full")
	err := New(KindIO, "write: append chunk", cause)
	require.EqualError(t, err, "write: append chunk: disk full")
	assert.Equal(t, KindIO, err.Kind())
	assert.ErrorIs(t, err, cause)
}

func TestErrorfNoCause(t *testing.T) {
	err := Errorf(KindInvalidArgument, "bad value %d", 7)
	assert.Equal(t, "bad value 7", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWith(t *testing.T) {
	err := Errorf(KindOutOfBounds, "read: chunk out of range").With("chunk", 3).With("segment", 1)
	assert.Equal(t, 3, err.Details()["chunk"])
	assert.Equal(t, 1, err.Details()["segment"])
}

func TestDetailsNeverNil(t *testing.T) {
	err := Errorf(KindCorruptData, "broken")
	assert.NotNil(t, err.Details())
	assert.Empty(t, err.Details())
}

func TestIsAndKindOf(t *testing.T) {
	err := fmt.Errorf("wrapping: %w", New(KindChecksumMismatch, "table block", nil))
	assert.True(t, Is(err, KindChecksumMismatch))
	assert.False(t, Is(err, KindIO))
	assert.Equal(t, KindChecksumMismatch, KindOf(err))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindCorruptData, KindOf(errors.New("not one of ours")))
}

func TestWrapPreservesCauseChain(t *testing.T) {
	root := errors.New("root cause")
	wrapped := Wrap(KindIO, root, "pool: open segment")
	assert.True(t, errors.Is(wrapped, root))
}

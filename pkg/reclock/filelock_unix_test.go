//go:build unix

package reclock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reclock")
	l := NewFileLock(path)

	acquired, err := l.TryAcquire()
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, l.IsHeld())

	require.NoError(t, l.Release())
	assert.False(t, l.IsHeld())
}

func TestFileLock_SecondInstanceBlocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reclock")
	a := NewFileLock(path)
	b := NewFileLock(path)

	acquired, err := a.TryAcquire()
	require.NoError(t, err)
	require.True(t, acquired)

	acquired2, err := b.TryAcquire()
	require.NoError(t, err)
	assert.False(t, acquired2)

	require.NoError(t, a.Release())

	acquired3, err := b.TryAcquire()
	require.NoError(t, err)
	assert.True(t, acquired3)
}

func TestFileLock_TryAcquireIdempotentWhenAlreadyHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reclock")
	l := NewFileLock(path)

	acquired, err := l.TryAcquire()
	require.NoError(t, err)
	require.True(t, acquired)

	acquired2, err := l.TryAcquire()
	require.NoError(t, err)
	assert.True(t, acquired2)
}

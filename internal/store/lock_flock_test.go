//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestLockFile_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json.lock")

	held, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	defer held.Close()
	other, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, lockFile(held))
	err = unix.Flock(int(other.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	assert.ErrorIs(t, err, unix.EWOULDBLOCK)

	require.NoError(t, unlockFile(held))
	require.NoError(t, unix.Flock(int(other.Fd()), unix.LOCK_EX|unix.LOCK_NB))
	require.NoError(t, unix.Flock(int(other.Fd()), unix.LOCK_UN))
}

package ipc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortDir keeps socket paths under the sun_path limit on macOS.
func shortDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "sh")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func TestSocketPathOverrides(t *testing.T) {
	t.Setenv(EnvSocket, "/run/custom.sock")
	assert.Equal(t, "/run/custom.sock", SocketPath())

	t.Setenv(EnvSocket, "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, filepath.Join("/run/user/1000", "snaphub.sock"), SocketPath())

	t.Setenv("XDG_RUNTIME_DIR", "")
	assert.Equal(t, filepath.Join(os.TempDir(), "snaphub.sock"), SocketPath())
}

func TestListenDialAndInUse(t *testing.T) {
	path := filepath.Join(shortDir(t), "s.sock")
	assert.False(t, IsRunning(path))

	ln, err := Listen(path)
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	assert.True(t, IsRunning(path))
	_, err = Listen(path)
	assert.ErrorIs(t, err, ErrInUse)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := Dialer(path)(ctx, "ignored")
	require.NoError(t, err)
	_ = c.Close()
}

func TestListenRemovesStaleSocket(t *testing.T) {
	path := filepath.Join(shortDir(t), "s.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	// Leave the socket file behind, as a crashed daemon would.
	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(false)
	}
	require.NoError(t, ln.Close())
	_, err = os.Stat(path)
	require.NoError(t, err)

	ln, err = Listen(path)
	require.NoError(t, err)
	assert.NoError(t, ln.Close())
}

// Package ipc provides helpers for the local socket used by snaphub CLI
// sub-commands to talk to a running `snaphub serve`.
//
// The channel is plain gRPC served over a Unix domain socket, using the same
// ImageService as the optional TCP listener. AF_UNIX is available on Linux,
// macOS and Windows 10+, so one implementation serves all of them.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	// EnvSocket overrides the socket path.
	EnvSocket = "SNAPHUB_SOCKET"

	socketName   = "snaphub.sock"
	probeTimeout = 500 * time.Millisecond
)

// SocketPath returns the path of the IPC socket.
//
//   - $SNAPHUB_SOCKET when set
//   - $XDG_RUNTIME_DIR/snaphub.sock when set
//   - $TMPDIR/snaphub.sock otherwise
func SocketPath() string {
	if s := os.Getenv(EnvSocket); s != "" {
		return s
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, socketName)
	}
	return filepath.Join(os.TempDir(), socketName)
}

// IsRunning reports whether a daemon appears to be listening on path.
// It does a cheap dial-and-close; no data is exchanged.
func IsRunning(path string) bool {
	c, err := net.DialTimeout("unix", path, probeTimeout)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// ErrInUse is returned by Listen when another daemon owns the socket.
var ErrInUse = errors.New("ipc: socket in use by a running daemon")

// Listen creates an owner-only listener on path, removing a stale socket file
// left by a crashed run. A live socket is never removed. The process umask is
// narrowed while the socket is created.
func Listen(path string) (net.Listener, error) {
	if IsRunning(path) {
		return nil, fmt.Errorf("%w: %s", ErrInUse, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("ipc: remove stale socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ipc: socket dir: %w", err)
	}
	restore := privateUmask()
	ln, err := net.Listen("unix", path)
	restore()
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}
	// The umask covers creation; chmod covers platforms without one.
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("ipc: chmod %s: %w", path, err)
	}
	return ln, nil
}

// Dialer returns a context dialer for path, suitable for grpc.WithContextDialer.
func Dialer(path string) func(ctx context.Context, _ string) (net.Conn, error) {
	return func(ctx context.Context, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", path)
	}
}

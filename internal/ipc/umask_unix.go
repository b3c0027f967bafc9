//go:build unix

package ipc

import "golang.org/x/sys/unix"

// privateUmask makes files created until the returned func runs owner-only.
func privateUmask() (restore func()) {
	old := unix.Umask(0o177)
	return func() { unix.Umask(old) }
}

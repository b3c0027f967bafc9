//go:build !unix

package ipc

func privateUmask() (restore func()) { return func() {} }

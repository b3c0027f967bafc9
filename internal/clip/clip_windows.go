//go:build windows

package clip

import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procOpenClipboard        = user32.NewProc("OpenClipboard")
	procCloseClipboard       = user32.NewProc("CloseClipboard")
	procEmptyClipboard       = user32.NewProc("EmptyClipboard")
	procEnumClipboardFormats = user32.NewProc("EnumClipboardFormats")
	procGetClipboardData     = user32.NewProc("GetClipboardData")
	procSetClipboardData     = user32.NewProc("SetClipboardData")

	procGlobalAlloc  = kernel32.NewProc("GlobalAlloc")
	procGlobalFree   = kernel32.NewProc("GlobalFree")
	procGlobalLock   = kernel32.NewProc("GlobalLock")
	procGlobalUnlock = kernel32.NewProc("GlobalUnlock")
	procGlobalSize   = kernel32.NewProc("GlobalSize")
)

const gmemMoveable = 0x0002

// writeAttempts bounds how long WriteFiles waits for another process to
// release the clipboard.
const writeAttempts = 10

type windowsBackend struct {
	// mu serialises sessions within this process; OpenClipboard is
	// process-wide, not per goroutine.
	mu sync.Mutex
}

// New returns the Windows clipboard backend.
func New() Backend { return &windowsBackend{} }

func (b *windowsBackend) Name() string { return "Windows Clipboard" }

func (b *windowsBackend) Open() (Session, error) {
	b.mu.Lock()
	runtime.LockOSThread()
	if r, _, err := procOpenClipboard.Call(0); r == 0 {
		runtime.UnlockOSThread()
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return &windowsSession{b: b}, nil
}

func (b *windowsBackend) WriteFiles(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: empty file list", ErrUnsupported)
	}
	payload := EncodeDropFiles(paths)

	var s Session
	var err error
	for range writeAttempts {
		if s, err = b.Open(); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		return err
	}
	defer s.Close()

	if r, _, err := procEmptyClipboard.Call(); r == 0 {
		return fmt.Errorf("clip: EmptyClipboard: %w", err)
	}
	h, _, err := procGlobalAlloc.Call(gmemMoveable, uintptr(len(payload)))
	if h == 0 {
		return fmt.Errorf("clip: GlobalAlloc: %w", err)
	}
	ptr, _, err := procGlobalLock.Call(h)
	if ptr == 0 {
		procGlobalFree.Call(h)
		return fmt.Errorf("clip: GlobalLock: %w", err)
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), len(payload)), payload)
	procGlobalUnlock.Call(h)

	// On success the system owns h.
	if r, _, err := procSetClipboardData.Call(uintptr(FormatHDROP), h); r == 0 {
		procGlobalFree.Call(h)
		return fmt.Errorf("clip: SetClipboardData: %w", err)
	}
	return nil
}

func (b *windowsBackend) Close() {}

type windowsSession struct {
	b      *windowsBackend
	closed bool
}

func (s *windowsSession) Formats() ([]Format, error) {
	var out []Format
	f := uintptr(0)
	for {
		r, _, err := procEnumClipboardFormats.Call(f)
		if r == 0 {
			if errno, ok := err.(windows.Errno); ok && errno != 0 {
				return out, fmt.Errorf("clip: EnumClipboardFormats: %w", err)
			}
			return out, nil
		}
		out = append(out, Format(r))
		f = r
	}
}

func (s *windowsSession) Files() ([]string, error) {
	buf, err := s.Data(FormatHDROP)
	if err != nil {
		return nil, err
	}
	return DecodeDropFiles(buf)
}

func (s *windowsSession) Data(f Format) ([]byte, error) {
	// CF_BITMAP is a GDI handle, not global memory.
	if f == FormatBitmap || f == FormatPNG {
		return nil, fmt.Errorf("%w: raw %s", ErrUnsupported, f)
	}
	h, _, _ := procGetClipboardData.Call(uintptr(f))
	if h == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, f)
	}
	size, _, _ := procGlobalSize.Call(h)
	if size == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, f)
	}
	ptr, _, err := procGlobalLock.Call(h)
	if ptr == 0 {
		return nil, fmt.Errorf("clip: GlobalLock %s: %w", f, err)
	}
	defer procGlobalUnlock.Call(h)

	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size))
	return out, nil
}

func (s *windowsSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	r, _, err := procCloseClipboard.Call()
	runtime.UnlockOSThread()
	s.b.mu.Unlock()
	if r == 0 {
		return fmt.Errorf("clip: CloseClipboard: %w", err)
	}
	return nil
}

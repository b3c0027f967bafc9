// Package clip provides access to the image-bearing formats of the system
// clipboard. Build constraints select the implementation:
//
//	clip_windows.go  Windows via user32 (CF_HDROP, CF_DIBV5, CF_DIB, CF_BITMAP)
//	clip_design.go   macOS and Linux via golang.design/x/clipboard (PNG only)
//	clip_other.go    headless stub
//
// A Backend hands out short-lived Sessions. A Session holds the clipboard
// open; callers copy what they need out of it and Close it promptly.
package clip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// Format identifies a clipboard format. Values below 0xC000 match the
// Windows predefined format ids.
type Format uint32

const (
	FormatBitmap Format = 2
	FormatDIB    Format = 8
	FormatHDROP  Format = 15
	FormatDIBV5  Format = 17

	// FormatPNG is an encoded PNG offered directly by non-Windows backends.
	FormatPNG Format = 1 << 16
)

func (f Format) String() string {
	switch f {
	case FormatBitmap:
		return "CF_BITMAP"
	case FormatDIB:
		return "CF_DIB"
	case FormatHDROP:
		return "CF_HDROP"
	case FormatDIBV5:
		return "CF_DIBV5"
	case FormatPNG:
		return "PNG"
	default:
		return fmt.Sprintf("Format(%d)", uint32(f))
	}
}

var (
	// ErrBusy means another process holds the clipboard; retry on the next tick.
	ErrBusy = errors.New("clip: clipboard busy")
	// ErrUnavailable means there is no clipboard to talk to.
	ErrUnavailable = errors.New("clip: clipboard unavailable")
	// ErrUnsupported means the backend cannot provide or accept the request.
	ErrUnsupported = errors.New("clip: unsupported")
	// ErrNoData means the format was advertised but held no data.
	ErrNoData = errors.New("clip: no data for format")
)

// Backend is implemented by every platform clipboard.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Open acquires the clipboard. It returns ErrBusy if another process
	// holds it.
	Open() (Session, error)

	// WriteFiles replaces the clipboard contents with a file list so that
	// pasting into a file manager or chat client attaches the files.
	WriteFiles(paths []string) error

	// Close releases any resources held by the backend.
	Close()
}

// Session is an open clipboard. Byte slices it returns are copies and stay
// valid after Close.
type Session interface {
	// Formats lists the formats currently advertised.
	Formats() ([]Format, error)

	// Files returns the paths of a CF_HDROP list, in order.
	Files() ([]string, error)

	// Data returns a copy of the raw buffer stored for f.
	Data(f Format) ([]byte, error)

	Close() error
}

// Has reports whether f is in formats.
func Has(formats []Format, f Format) bool {
	for _, x := range formats {
		if x == f {
			return true
		}
	}
	return false
}

// dropFilesSize is sizeof(DROPFILES): pFiles, pt.x, pt.y, fNC, fWide.
const dropFilesSize = 20

// EncodeDropFiles builds a CF_HDROP payload: a DROPFILES header followed by
// NUL-terminated UTF-16 paths and a final NUL.
func EncodeDropFiles(paths []string) []byte {
	var units []uint16
	for _, p := range paths {
		units = append(units, utf16.Encode([]rune(p))...)
		units = append(units, 0)
	}
	units = append(units, 0)

	buf := make([]byte, dropFilesSize+2*len(units))
	le := binary.LittleEndian
	le.PutUint32(buf[0:], dropFilesSize)
	le.PutUint32(buf[16:], 1)
	for i, u := range units {
		le.PutUint16(buf[dropFilesSize+2*i:], u)
	}
	return buf
}

// DecodeDropFiles parses a CF_HDROP payload produced by EncodeDropFiles or
// by another application.
func DecodeDropFiles(buf []byte) ([]string, error) {
	if len(buf) < dropFilesSize {
		return nil, fmt.Errorf("clip: DROPFILES too short: %d bytes", len(buf))
	}
	le := binary.LittleEndian
	off := le.Uint32(buf[0:])
	wide := le.Uint32(buf[16:]) != 0
	if int64(off) > int64(len(buf)) {
		return nil, fmt.Errorf("clip: DROPFILES offset %d past end", off)
	}
	body := buf[off:]

	var paths []string
	if wide {
		var cur []uint16
		for i := 0; i+1 < len(body); i += 2 {
			u := le.Uint16(body[i:])
			if u != 0 {
				cur = append(cur, u)
				continue
			}
			if len(cur) == 0 {
				break
			}
			paths = append(paths, string(utf16.Decode(cur)))
			cur = cur[:0]
		}
		return paths, nil
	}
	start := 0
	for i, c := range body {
		if c != 0 {
			continue
		}
		if i == start {
			break
		}
		paths = append(paths, string(body[start:i]))
		start = i + 1
	}
	return paths, nil
}

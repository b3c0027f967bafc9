// Package dib decodes device-independent bitmaps as placed on the Windows
// clipboard (CF_DIB and CF_DIBV5) and re-encodes them as PNG.
//
// A clipboard DIB is a BITMAPINFOHEADER (40 bytes) or BITMAPV5HEADER
// (124 bytes) immediately followed by the pixel array; there is no
// BITMAPFILEHEADER. Only uncompressed 24- and 32-bit payloads are supported.
// All field reads are bounds-checked against the buffer, so a hostile or
// truncated handle yields an error rather than a panic.
package dib

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
)

// Variant selects the header layout.
type Variant int

const (
	// Info is the legacy BITMAPINFOHEADER layout (CF_DIB).
	Info Variant = iota
	// V5 is the extended BITMAPV5HEADER layout (CF_DIBV5).
	V5
)

// MaxDimension bounds width and |height|.
const MaxDimension = 10000

const (
	infoHeaderSize = 40
	v5HeaderSize   = 124

	biRGB = 0
)

var (
	ErrTooShort         = errors.New("dib: buffer shorter than header")
	ErrDimensions       = errors.New("dib: invalid dimensions")
	ErrCompressed       = errors.New("dib: compressed bitmaps not supported")
	ErrUnsupportedDepth = errors.New("dib: unsupported bit depth")
	ErrTruncated        = errors.New("dib: pixel data truncated")
)

func (v Variant) String() string {
	switch v {
	case Info:
		return "DIB"
	case V5:
		return "DIBV5"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// MinHeaderSize returns the smallest header size accepted for v.
func (v Variant) MinHeaderSize() int {
	if v == V5 {
		return v5HeaderSize
	}
	return infoHeaderSize
}

// Header is the decoded view of the fields needed to locate and read pixels.
// The V5 colour-management fields are not interpreted.
type Header struct {
	Size        uint32 // declared header size; the pixel array starts here
	Width       int32
	Height      int32 // positive = bottom-up rows, negative = top-down
	Planes      uint16
	BitCount    uint16
	Compression uint32
}

// TopDown reports whether rows are stored first-row-first.
func (h Header) TopDown() bool { return h.Height < 0 }

// Rows returns |Height|.
func (h Header) Rows() int {
	if h.Height < 0 {
		return -int(h.Height)
	}
	return int(h.Height)
}

// Stride returns the 4-byte aligned length of one pixel row.
func (h Header) Stride() int {
	bpp := int(h.BitCount) / 8
	return (int(h.Width)*bpp + 3) / 4 * 4
}

// ParseHeader reads and validates the header of buf for variant v.
// Both header variants share the offsets of every field it reads.
func ParseHeader(buf []byte, v Variant) (Header, error) {
	minSize := v.MinHeaderSize()
	if len(buf) < minSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d", ErrTooShort, len(buf), minSize)
	}
	le := binary.LittleEndian
	h := Header{
		Size:        le.Uint32(buf[0:4]),
		Width:       int32(le.Uint32(buf[4:8])),
		Height:      int32(le.Uint32(buf[8:12])),
		Planes:      le.Uint16(buf[12:14]),
		BitCount:    le.Uint16(buf[14:16]),
		Compression: le.Uint32(buf[16:20]),
	}
	if int64(h.Size) < int64(minSize) || int64(h.Size) > int64(len(buf)) {
		return Header{}, fmt.Errorf("%w: declared header size %d", ErrTooShort, h.Size)
	}
	// int64 so that |MinInt32| cannot overflow.
	absH := int64(h.Height)
	if absH < 0 {
		absH = -absH
	}
	if h.Width <= 0 || h.Height == 0 || h.BitCount == 0 ||
		h.Width > MaxDimension || absH > MaxDimension {
		return Header{}, fmt.Errorf("%w: %dx%d at %d bpp", ErrDimensions, h.Width, h.Height, h.BitCount)
	}
	if h.Compression != biRGB {
		return Header{}, fmt.Errorf("%w: compression=%d", ErrCompressed, h.Compression)
	}
	return h, nil
}

// DecodeImage reconstructs the pixel grid of buf as a top-down NRGBA image.
// 24-bit pixels are fully opaque; 32-bit pixels keep the stored alpha byte.
func DecodeImage(buf []byte, v Variant) (*image.NRGBA, error) {
	h, err := ParseHeader(buf, v)
	if err != nil {
		return nil, err
	}
	if h.BitCount != 24 && h.BitCount != 32 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDepth, h.BitCount)
	}

	width, rows, stride := int(h.Width), h.Rows(), h.Stride()
	bpp := int(h.BitCount) / 8
	pix := buf[h.Size:]
	if need := stride * rows; len(pix) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrTruncated, len(pix), need)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, rows))
	for y := range rows {
		src := rows - 1 - y
		if h.TopDown() {
			src = y
		}
		row := pix[src*stride : src*stride+width*bpp]
		out := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := range width {
			p := row[x*bpp:]
			o := out[x*4:]
			o[0], o[1], o[2] = p[2], p[1], p[0]
			if bpp == 4 {
				o[3] = p[3]
			} else {
				o[3] = 0xff
			}
		}
	}
	return img, nil
}

// Decode converts a raw clipboard DIB into PNG bytes.
func Decode(buf []byte, v Variant) ([]byte, error) {
	img, err := DecodeImage(buf, v)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("dib: png encode: %w", err)
	}
	return out.Bytes(), nil
}

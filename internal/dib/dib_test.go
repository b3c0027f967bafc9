package dib

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// buildDIB serialises img as a clipboard DIB with the given depth and row order.
func buildDIB(t *testing.T, img *image.NRGBA, bits int, topDown bool, v Variant) []byte {
	t.Helper()
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	bpp := bits / 8
	stride := (w*bpp + 3) / 4 * 4
	hdr := make([]byte, v.MinHeaderSize())
	le := binary.LittleEndian
	le.PutUint32(hdr[0:], uint32(len(hdr)))
	le.PutUint32(hdr[4:], uint32(w))
	height := int32(h)
	if topDown {
		height = -height
	}
	le.PutUint32(hdr[8:], uint32(height))
	le.PutUint16(hdr[12:], 1)
	le.PutUint16(hdr[14:], uint16(bits))
	le.PutUint32(hdr[20:], uint32(stride*h))

	pix := make([]byte, stride*h)
	for y := range h {
		row := h - 1 - y
		if topDown {
			row = y
		}
		for x := range w {
			c := img.NRGBAAt(x, y)
			o := pix[row*stride+x*bpp:]
			o[0], o[1], o[2] = c.B, c.G, c.R
			if bpp == 4 {
				o[3] = c.A
			}
		}
	}
	return append(hdr, pix...)
}

func checkerboard(w, h int, alpha bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}
			if (x+y)%2 == 0 {
				c = color.NRGBA{R: 0xf0, G: 0xe0, B: 0xd0, A: 0xff}
			}
			c.R += uint8(x)
			c.B += uint8(y)
			if alpha {
				c.A = uint8(0x40 + (x*7+y*3)%0xa0)
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func assertSamePixels(t *testing.T, want *image.NRGBA, got image.Image) {
	t.Helper()
	require.Equal(t, want.Bounds(), got.Bounds())
	for y := range want.Bounds().Dy() {
		for x := range want.Bounds().Dx() {
			g := color.NRGBAModel.Convert(got.At(x, y)).(color.NRGBA)
			if !assert.Equal(t, want.NRGBAAt(x, y), g, "pixel (%d,%d)", x, y) {
				return
			}
		}
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	for _, v := range []Variant{Info, V5} {
		for _, bits := range []int{24, 32} {
			for _, topDown := range []bool{false, true} {
				name := v.String()
				if topDown {
					name += "/top-down"
				} else {
					name += "/bottom-up"
				}
				t.Run(name, func(t *testing.T) {
					// Odd width exercises row padding for 24-bit.
					src := checkerboard(7, 5, bits == 32)
					out, err := Decode(buildDIB(t, src, bits, topDown, v), v)
					require.NoError(t, err)

					got, err := png.Decode(bytes.NewReader(out))
					require.NoError(t, err)
					assertSamePixels(t, src, got)
				})
			}
		}
	}
}

func TestDecodeMatchesBMPDecoder(t *testing.T) {
	for _, v := range []Variant{Info, V5} {
		for _, topDown := range []bool{false, true} {
			src := checkerboard(9, 4, false)
			raw := buildDIB(t, src, 24, topDown, v)

			// Prefix a BITMAPFILEHEADER so x/image/bmp can read the same payload.
			file := make([]byte, 14, 14+len(raw))
			file[0], file[1] = 'B', 'M'
			binary.LittleEndian.PutUint32(file[2:], uint32(14+len(raw)))
			binary.LittleEndian.PutUint32(file[10:], uint32(14+v.MinHeaderSize()))
			file = append(file, raw...)

			ref, err := bmp.Decode(bytes.NewReader(file))
			require.NoError(t, err)

			got, err := DecodeImage(raw, v)
			require.NoError(t, err)
			assertSamePixels(t, got, ref)
		}
	}
}

func TestDecodeRedSquare(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := range 10 {
		for x := range 10 {
			src.SetNRGBA(x, y, color.NRGBA{R: 0xff, A: 0xff})
		}
	}
	out, err := Decode(buildDIB(t, src, 24, false, Info), Info)
	require.NoError(t, err)

	got, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 10, got.Bounds().Dx())
	assert.Equal(t, 10, got.Bounds().Dy())
	for y := range 10 {
		for x := range 10 {
			r, g, b, a := got.At(x, y).RGBA()
			require.Equal(t, [4]uint32{0xffff, 0, 0, 0xffff}, [4]uint32{r, g, b, a})
		}
	}
}

func TestDecodeRejects(t *testing.T) {
	valid := func(v Variant) []byte {
		return buildDIB(t, checkerboard(4, 4, false), 24, false, v)
	}
	patch32 := func(b []byte, off int, val uint32) []byte {
		binary.LittleEndian.PutUint32(b[off:], val)
		return b
	}
	patch16 := func(b []byte, off int, val uint16) []byte {
		binary.LittleEndian.PutUint16(b[off:], val)
		return b
	}

	tests := []struct {
		name string
		v    Variant
		buf  []byte
		want error
	}{
		{"nil", Info, nil, ErrTooShort},
		{"short info", Info, make([]byte, 39), ErrTooShort},
		{"info header as v5", V5, valid(Info), ErrTooShort},
		{"v5 declared 40", V5, append(patch32(make([]byte, 124), 0, 40), make([]byte, 64)...), ErrTooShort},
		{"declared size past end", Info, patch32(valid(Info), 0, 1<<20), ErrTooShort},
		{"zero width", Info, patch32(valid(Info), 4, 0), ErrDimensions},
		{"negative width", Info, patch32(valid(Info), 4, uint32(math.MaxUint32)), ErrDimensions},
		{"zero height", Info, patch32(valid(Info), 8, 0), ErrDimensions},
		{"width too large", V5, patch32(valid(V5), 4, MaxDimension+1), ErrDimensions},
		{"height too large", Info, patch32(valid(Info), 8, uint32(0xffffffff-MaxDimension)), ErrDimensions},
		{"min int32 height", Info, patch32(valid(Info), 8, 0x80000000), ErrDimensions},
		{"zero depth", Info, patch16(valid(Info), 14, 0), ErrDimensions},
		{"rle8", Info, patch32(valid(Info), 16, 1), ErrCompressed},
		{"bitfields", V5, patch32(valid(V5), 16, 3), ErrCompressed},
		{"16-bit", Info, patch16(valid(Info), 14, 16), ErrUnsupportedDepth},
		{"8-bit", V5, patch16(valid(V5), 14, 8), ErrUnsupportedDepth},
		{"truncated pixels", Info, valid(Info)[:40+12], ErrTruncated},
		{"claims huge image", Info, patch32(patch32(valid(Info), 4, MaxDimension), 8, MaxDimension), ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Decode(tt.buf, tt.v)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, out)
		})
	}
}

func TestHeaderStride(t *testing.T) {
	tests := []struct {
		width, bits, want int
	}{
		{1, 24, 4},
		{3, 24, 12},
		{5, 24, 16},
		{1, 32, 4},
		{7, 32, 28},
	}
	for _, tt := range tests {
		h := Header{Width: int32(tt.width), BitCount: uint16(tt.bits)}
		assert.Equal(t, tt.want, h.Stride(), "width=%d bits=%d", tt.width, tt.bits)
	}
}

package imgfmt

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func sample() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := range 2 {
		for x := range 3 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(40 * x), G: uint8(90 * y), B: 200, A: 0xff})
		}
	}
	return img
}

func encode(t *testing.T, f Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch f {
	case PNG:
		err = png.Encode(&buf, sample())
	case JPEG:
		err = jpeg.Encode(&buf, sample(), nil)
	case GIF:
		err = gif.Encode(&buf, sample(), nil)
	case BMP:
		err = bmp.Encode(&buf, sample())
	case TIFF:
		err = tiff.Encode(&buf, sample(), nil)
	case WebP:
		// Enough of a RIFF/WEBP header for sniffing.
		buf.WriteString("RIFF\x24\x00\x00\x00WEBPVP8 \x18\x00\x00\x00")
	default:
		t.Fatalf("no encoder for %q", f)
	}
	require.NoError(t, err)
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	for _, f := range []Format{PNG, JPEG, GIF, BMP, TIFF, WebP} {
		t.Run(string(f), func(t *testing.T) {
			assert.Equal(t, f, Sniff(encode(t, f)))
		})
	}
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, Unknown, Sniff(nil))
	})
	t.Run("text", func(t *testing.T) {
		assert.Equal(t, Unknown, Sniff([]byte("just some notes\n")))
	})
	t.Run("svg", func(t *testing.T) {
		assert.Equal(t, Unknown, Sniff([]byte(svgDoc)))
	})
	t.Run("ico", func(t *testing.T) {
		assert.Equal(t, Unknown, Sniff([]byte{0, 0, 1, 0, 1, 0, 16, 16, 0, 0, 1, 0, 32, 0}))
	})
}

const svgDoc = `<svg xmlns="http://www.w3.org/2000/svg" width="4" height="4"><rect width="4" height="4"/></svg>`

func TestFormatExt(t *testing.T) {
	tests := []struct {
		f        Format
		ext      string
		storable bool
	}{
		{PNG, "png", true},
		{JPEG, "jpg", true},
		{GIF, "gif", true},
		{WebP, "webp", true},
		{BMP, "bmp", true},
		{TIFF, "png", false},
		{Unknown, "png", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ext, tt.f.Ext(), "ext of %q", tt.f)
		assert.Equal(t, tt.storable, tt.f.Storable(), "storable %q", tt.f)
	}
}

func TestNormalize(t *testing.T) {
	t.Run("storable kept verbatim", func(t *testing.T) {
		in := encode(t, BMP)
		out, f, err := Normalize(in)
		require.NoError(t, err)
		assert.Equal(t, BMP, f)
		assert.Equal(t, in, out)
	})

	t.Run("tiff converted", func(t *testing.T) {
		out, f, err := Normalize(encode(t, TIFF))
		require.NoError(t, err)
		assert.Equal(t, PNG, f)
		require.Equal(t, PNG, Sniff(out))

		img, err := png.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, sample().Bounds(), img.Bounds())
		assert.Equal(t, color.NRGBAModel.Convert(sample().At(2, 1)), color.NRGBAModel.Convert(img.At(2, 1)))
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := Normalize([]byte("not an image"))
		assert.Error(t, err)
	})
}

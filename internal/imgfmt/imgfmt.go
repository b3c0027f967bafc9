// Package imgfmt sniffs image container formats from content and normalises
// anything outside the directly storable set to PNG.
package imgfmt

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format is a sniffed image container. The zero value means "not recognised".
type Format string

const (
	Unknown Format = ""
	PNG     Format = "png"
	JPEG    Format = "jpeg"
	GIF     Format = "gif"
	WebP    Format = "webp"
	BMP     Format = "bmp"
	TIFF    Format = "tiff"
)

// Fallback is the lossless format used for conversions and unrecognised content.
const Fallback = PNG

// Sniff detects the container of b from its leading bytes. Image types with
// no registered decoder (SVG, ICO and the like) return Unknown, as does
// non-image content.
func Sniff(b []byte) Format {
	if len(b) == 0 {
		return Unknown
	}
	m := mimetype.Detect(b)
	for ; m != nil; m = m.Parent() {
		sub, ok := strings.CutPrefix(m.String(), "image/")
		if !ok {
			continue
		}
		switch sub {
		case "png", "vnd.mozilla.apng":
			return PNG
		case "jpeg", "jpg", "pjpeg":
			return JPEG
		case "gif":
			return GIF
		case "webp":
			return WebP
		case "bmp", "x-bmp", "x-ms-bmp":
			return BMP
		case "tiff":
			return TIFF
		default:
			return Unknown
		}
	}
	return Unknown
}

// Storable reports whether files in f are kept byte-for-byte.
func (f Format) Storable() bool {
	switch f {
	case PNG, JPEG, GIF, WebP, BMP:
		return true
	}
	return false
}

// Ext returns the file extension (without dot) used on disk for f.
// Formats that are not storable are written as the fallback.
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return "jpg"
	case PNG, GIF, WebP, BMP:
		return string(f)
	default:
		return string(Fallback)
	}
}

// ToPNG decodes b with any registered decoder and re-encodes it as PNG.
func ToPNG(b []byte) ([]byte, error) {
	img, name, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("imgfmt: decode: %w", err)
	}
	out, err := EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("imgfmt: re-encode %s: %w", name, err)
	}
	return out, nil
}

// EncodePNG serialises img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Normalize returns b unchanged when its sniffed format is storable, or
// converted to PNG otherwise. The returned Format describes the output.
func Normalize(b []byte) ([]byte, Format, error) {
	f := Sniff(b)
	if f.Storable() {
		return b, f, nil
	}
	out, err := ToPNG(b)
	if err != nil {
		return nil, Unknown, err
	}
	return out, PNG, nil
}

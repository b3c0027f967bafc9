package filedrop

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"go.klb.dev/snaphub/internal/imgfmt"
)

func tile() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetNRGBA(1, 2, color.NRGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff})
	return img
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestIsImagePath(t *testing.T) {
	for _, p := range []string{"a.png", "B.JPG", "c.jpeg", "d.Bmp", "e.gif", "f.webp", "g.TIFF", "h.tif"} {
		assert.True(t, IsImagePath(p), p)
	}
	for _, p := range []string{"notes.txt", "png", "archive.png.zip", ""} {
		assert.False(t, IsImagePath(p), p)
	}
}

func TestExtractSkipsNonImages(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, tile()))
	shot := buf.Bytes()

	notes := writeFile(t, dir, "notes.txt", []byte("hello"))
	bmpPath := writeFile(t, dir, "shot.bmp", shot)

	out, err := Extract([]string{notes, bmpPath})
	require.NoError(t, err)
	// BMP is directly storable, so it is returned verbatim.
	assert.Equal(t, shot, out)
}

func TestExtractConvertsTIFF(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, tile(), nil))
	p := writeFile(t, dir, "scan.tif", buf.Bytes())

	out, err := Extract([]string{p})
	require.NoError(t, err)
	require.Equal(t, imgfmt.PNG, imgfmt.Sniff(out))

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff}, color.NRGBAModel.Convert(img.At(1, 2)))
}

func TestExtractTrustsContentOverExtension(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, tile()))
	p := writeFile(t, dir, "mislabelled.jpg", buf.Bytes())

	out, err := Extract([]string{p})
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), out)
}

func TestExtractFallsThrough(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, tile()))

	broken := writeFile(t, dir, "broken.png", []byte("definitely not a png"))
	missing := filepath.Join(dir, "missing.png")
	good := writeFile(t, dir, "good.png", buf.Bytes())

	out, err := Extract([]string{broken, missing, good})
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), out)
}

func TestExtractNoImage(t *testing.T) {
	dir := t.TempDir()
	_, err := Extract([]string{writeFile(t, dir, "a.txt", []byte("x")), writeFile(t, dir, "b.gif", []byte("nope"))})
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = Extract(nil)
	assert.ErrorIs(t, err, ErrNoImage)
}

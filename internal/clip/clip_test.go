package clip

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDropFilesLayout(t *testing.T) {
	buf := EncodeDropFiles([]string{`C:\a.png`, "b"})

	le := binary.LittleEndian
	assert.Equal(t, uint32(20), le.Uint32(buf[0:]), "pFiles")
	assert.Equal(t, uint32(0), le.Uint32(buf[4:]), "pt.x")
	assert.Equal(t, uint32(0), le.Uint32(buf[8:]), "pt.y")
	assert.Equal(t, uint32(0), le.Uint32(buf[12:]), "fNC")
	assert.Equal(t, uint32(1), le.Uint32(buf[16:]), "fWide")

	// 8 + NUL + 1 + NUL + final NUL code units.
	require.Len(t, buf, 20+2*(8+1+1+1+1))
	assert.Equal(t, []byte{0, 0, 0, 0}, buf[len(buf)-4:])
	assert.Equal(t, uint16('C'), le.Uint16(buf[20:]))
}

func TestDropFilesRoundTrip(t *testing.T) {
	paths := []string{`C:\Users\me\shot.png`, `D:\图片\截图.jpg`, `\\server\share\x.bmp`}
	got, err := DecodeDropFiles(EncodeDropFiles(paths))
	require.NoError(t, err)
	assert.Equal(t, paths, got)
}

func TestDecodeDropFilesANSI(t *testing.T) {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint32(buf[0:], 20)
	buf = append(buf, "one.png\x00two.gif\x00\x00"...)

	got, err := DecodeDropFiles(buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"one.png", "two.gif"}, got)
}

func TestDecodeDropFilesRejects(t *testing.T) {
	_, err := DecodeDropFiles(make([]byte, 8))
	assert.Error(t, err)

	buf := make([]byte, 20)
	binary.LittleEndian.PutUint32(buf[0:], 400)
	_, err = DecodeDropFiles(buf)
	assert.Error(t, err)
}

func TestHas(t *testing.T) {
	fs := []Format{FormatDIB, FormatHDROP}
	assert.True(t, Has(fs, FormatHDROP))
	assert.False(t, Has(fs, FormatDIBV5))
	assert.False(t, Has(nil, FormatPNG))
}

func TestHeadless(t *testing.T) {
	b := NewHeadless()
	defer b.Close()
	_, err := b.Open()
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, b.WriteFiles([]string{"x"}), ErrUnavailable)
}

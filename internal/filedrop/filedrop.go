// Package filedrop turns the file list of a clipboard file-drop into image bytes.
package filedrop

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.klb.dev/snaphub/internal/imgfmt"
)

// ErrNoImage is returned when none of the paths yields a usable image.
var ErrNoImage = errors.New("filedrop: no image in file list")

var imageExts = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".bmp":  {},
	".gif":  {},
	".webp": {},
	".tiff": {},
	".tif":  {},
}

// IsImagePath reports whether path has an image-like extension (case-insensitive).
func IsImagePath(path string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract returns the bytes of the first path that holds a decodable image.
// Content is sniffed rather than trusting the extension; storable formats are
// returned verbatim and anything else is converted to PNG. Unreadable or
// undecodable candidates are skipped.
func Extract(paths []string) ([]byte, error) {
	for _, p := range paths {
		if !IsImagePath(p) {
			slog.Debug("filedrop: skipping non-image file", "path", p)
			continue
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			slog.Warn("filedrop: read failed", "path", p, "err", err)
			continue
		}
		out, f, err := imgfmt.Normalize(raw)
		if err != nil {
			slog.Debug("filedrop: not a decodable image", "path", p, "err", err)
			continue
		}
		slog.Debug("filedrop: image extracted", "path", p, "format", f, "size_bytes", len(out))
		return out, nil
	}
	return nil, ErrNoImage
}

//go:build darwin || linux

package clip

import (
	"fmt"
	"log/slog"
	"os"

	"golang.design/x/clipboard"

	"go.klb.dev/snaphub/internal/imgfmt"
)

type designBackend struct{}

// New returns the golang.design clipboard backend, or a headless backend if
// no display is available. clipboard.Init is called here rather than in
// init() so that CLI sub-commands that never construct a Backend don't log
// spurious warnings on headless systems.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return &headlessBackend{}
	}
	return &designBackend{}
}

func (b *designBackend) Name() string { return "system clipboard (png)" }

func (b *designBackend) Open() (Session, error) {
	return &designSession{png: clipboard.Read(clipboard.FmtImage)}, nil
}

// WriteFiles places the image content of a single file on the clipboard.
// These platforms have no portable file-list format.
func (b *designBackend) WriteFiles(paths []string) error {
	if len(paths) != 1 {
		return fmt.Errorf("%w: %d files, want exactly 1", ErrUnsupported, len(paths))
	}
	data, err := os.ReadFile(paths[0])
	if err != nil {
		return fmt.Errorf("clip: read %s: %w", paths[0], err)
	}
	if imgfmt.Sniff(data) != imgfmt.PNG {
		if data, err = imgfmt.ToPNG(data); err != nil {
			return fmt.Errorf("%w: %s is not an image: %v", ErrUnsupported, paths[0], err)
		}
	}
	clipboard.Write(clipboard.FmtImage, data)
	return nil
}

func (b *designBackend) Close() {}

type designSession struct {
	png []byte
}

func (s *designSession) Formats() ([]Format, error) {
	if len(s.png) == 0 {
		return nil, nil
	}
	return []Format{FormatPNG}, nil
}

func (s *designSession) Files() ([]string, error) { return nil, nil }

func (s *designSession) Data(f Format) ([]byte, error) {
	if f != FormatPNG {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, f)
	}
	if len(s.png) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, f)
	}
	return s.png, nil
}

func (s *designSession) Close() error { return nil }

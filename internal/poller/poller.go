// Package poller samples the clipboard on a fixed tick and stores every new
// image it finds.
//
// One cycle acquires the clipboard, copies the raw buffers of the formats it
// cares about, and releases it again before any decoding, hashing or disk
// work. Candidates are then tried in priority order: file drop, DIBV5, DIB,
// device bitmap (recognised, never decoded) and finally encoded PNG from
// backends that offer it. An accepted detection must fall outside the
// cooldown window of the previous one and differ from the last hash.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/snaphub/internal/clip"
	"go.klb.dev/snaphub/internal/dib"
	"go.klb.dev/snaphub/internal/digest"
	"go.klb.dev/snaphub/internal/filedrop"
	"go.klb.dev/snaphub/internal/imgfmt"
	"go.klb.dev/snaphub/internal/store"
)

const (
	DefaultInterval = 200 * time.Millisecond
	DefaultCooldown = 2 * time.Second
)

// ErrRunning is returned by Run when the loop is already active.
var ErrRunning = errors.New("poller: already running")

// Saver persists accepted image bytes. *store.Store implements it.
type Saver interface {
	Save(data []byte) (store.Record, bool, error)
}

// Notifier is told about every newly created record.
type Notifier interface {
	ImageSaved(rec store.Record)
}

// Outcome classifies one poll cycle.
type Outcome int

const (
	Unavailable Outcome = iota // clipboard busy or absent
	NoImage                    // nothing decodable on the clipboard
	Cooldown                   // inside the cooldown window of the last detection
	Repeat                     // same content as the last detection
	Failed                     // accepted but the store rejected it
	Duplicate                  // accepted, already stored
	Saved                      // accepted and newly stored
)

func (o Outcome) String() string {
	switch o {
	case Unavailable:
		return "unavailable"
	case NoImage:
		return "no-image"
	case Cooldown:
		return "cooldown"
	case Repeat:
		return "repeat"
	case Failed:
		return "failed"
	case Duplicate:
		return "duplicate"
	case Saved:
		return "saved"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// State is a copy of the detection state.
type State struct {
	LastHash      string
	LastDetection time.Time
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithCooldown sets the minimum gap between accepted detections.
func WithCooldown(d time.Duration) Option {
	return func(p *Poller) {
		if d >= 0 {
			p.cooldown = d
		}
	}
}

// WithClock overrides the time source used for the cooldown.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// Poller owns the detection state. Run drives it from a single goroutine;
// ResetHash and State may be called concurrently from request handlers.
type Poller struct {
	backend  clip.Backend
	saver    Saver
	notify   Notifier
	interval time.Duration
	cooldown time.Duration
	now      func() time.Time

	running atomic.Bool
	// absentLogged is only touched by the polling goroutine.
	absentLogged bool

	mu            sync.Mutex
	lastHash      string
	lastDetection time.Time
}

// New returns a stopped Poller. notify may be nil.
func New(backend clip.Backend, saver Saver, notify Notifier, opts ...Option) *Poller {
	p := &Poller{
		backend:  backend,
		saver:    saver,
		notify:   notify,
		interval: DefaultInterval,
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run polls until ctx is done or Stop is called. The running flag is checked
// once per tick, so Stop takes effect within one interval.
func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer p.running.Store(false)

	slog.Info("clipboard poller started",
		"backend", p.backend.Name(),
		"interval", p.interval,
		"cooldown", p.cooldown,
	)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("clipboard poller stopped", "reason", ctx.Err())
			return nil
		case <-t.C:
			if !p.running.Load() {
				slog.Info("clipboard poller stopped", "reason", "stop requested")
				return nil
			}
			p.Poll()
		}
	}
}

// Stop clears the running flag.
func (p *Poller) Stop() { p.running.Store(false) }

// Running reports whether Run is active.
func (p *Poller) Running() bool { return p.running.Load() }

// ResetHash forgets the last seen hash so the same content can be accepted
// again. The cooldown timestamp is kept.
func (p *Poller) ResetHash() {
	p.mu.Lock()
	p.lastHash = ""
	p.mu.Unlock()
	slog.Info("poller hash reset")
}

// State returns a copy of the detection state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{LastHash: p.lastHash, LastDetection: p.lastDetection}
}

// Poll runs a single cycle.
func (p *Poller) Poll() Outcome {
	snap, err := p.snapshot()
	if err != nil {
		p.logUnavailable(err)
		return Unavailable
	}
	p.absentLogged = false

	data, src := snap.extract()
	if data == nil {
		return NoImage
	}

	hash := digest.Sum(data)
	now := p.now()

	p.mu.Lock()
	if !p.lastDetection.IsZero() && now.Sub(p.lastDetection) < p.cooldown {
		p.mu.Unlock()
		slog.Debug("detection inside cooldown, discarded", "id", hash, "source", src)
		return Cooldown
	}
	if hash == p.lastHash {
		p.mu.Unlock()
		return Repeat
	}
	p.lastHash = hash
	p.lastDetection = now
	p.mu.Unlock()

	slog.Info("clipboard image detected", "id", hash, "source", src, "size_bytes", len(data))

	rec, dup, err := p.saver.Save(data)
	if err != nil {
		slog.Error("failed to store clipboard image", "id", hash, "err", err)
		return Failed
	}
	if dup {
		slog.Debug("clipboard image already stored", "id", rec.ID, "path", rec.Path)
		return Duplicate
	}
	slog.Info("image saved", "id", rec.ID, "path", rec.Path)
	if p.notify != nil {
		p.notify.ImageSaved(rec)
	}
	return Saved
}

func (p *Poller) logUnavailable(err error) {
	if errors.Is(err, clip.ErrUnavailable) {
		if !p.absentLogged {
			slog.Warn("clipboard unavailable, poller idle", "backend", p.backend.Name())
			p.absentLogged = true
		}
		return
	}
	slog.Debug("clipboard not acquired", "err", err)
}

// snapshot copies the raw candidate buffers while holding the clipboard.
type snapshot struct {
	files  []string
	dibV5  []byte
	dib    []byte
	bitmap bool
	png    []byte
}

func (p *Poller) snapshot() (snap snapshot, err error) {
	s, err := p.backend.Open()
	if err != nil {
		return snap, err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			slog.Warn("clipboard release failed", "err", cerr)
		}
	}()

	formats, err := s.Formats()
	if err != nil {
		slog.Debug("clipboard format enumeration failed", "err", err)
	}
	if clip.Has(formats, clip.FormatHDROP) {
		if snap.files, err = s.Files(); err != nil {
			slog.Debug("clipboard file list unreadable", "err", err)
		}
	}
	// Raw bitmaps can be tens of megabytes; copy at most one, and none when
	// the drop already names an image file.
	if !dropHasImage(snap.files) {
		snap.dibV5 = readFormat(s, formats, clip.FormatDIBV5)
		if _, err := dib.ParseHeader(snap.dibV5, dib.V5); err != nil {
			snap.dibV5 = nil
			snap.dib = readFormat(s, formats, clip.FormatDIB)
		}
	}
	snap.bitmap = clip.Has(formats, clip.FormatBitmap)
	snap.png = readFormat(s, formats, clip.FormatPNG)
	return snap, nil
}

// dropHasImage reports whether files names an existing regular
// file with an image extension.
func dropHasImage(files []string) bool {
	for _, f := range files {
		if !filedrop.IsImagePath(f) {
			continue
		}
		if info, err := os.Stat(f); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return true
		}
	}
	return false
}

func readFormat(s clip.Session, formats []clip.Format, f clip.Format) []byte {
	if !clip.Has(formats, f) {
		return nil
	}
	b, err := s.Data(f)
	if err != nil {
		slog.Debug("clipboard format unreadable", "format", f, "err", err)
		return nil
	}
	return b
}

// extract returns the first candidate that yields image bytes, and the
// format it came from.
func (s snapshot) extract() ([]byte, clip.Format) {
	if len(s.files) > 0 {
		b, err := filedrop.Extract(s.files)
		if err == nil {
			return b, clip.FormatHDROP
		}
		slog.Debug("file drop has no image", "files", len(s.files), "err", err)
	}
	for _, c := range []struct {
		buf []byte
		v   dib.Variant
		f   clip.Format
	}{
		{s.dibV5, dib.V5, clip.FormatDIBV5},
		{s.dib, dib.Info, clip.FormatDIB},
	} {
		if c.buf == nil {
			continue
		}
		b, err := dib.Decode(c.buf, c.v)
		if err == nil {
			return b, c.f
		}
		slog.Debug("bitmap rejected", "format", c.f, "err", err)
	}
	if s.bitmap {
		slog.Debug("device bitmap offered, not decoded")
	}
	if len(s.png) > 0 {
		if imgfmt.Sniff(s.png) == imgfmt.PNG {
			return s.png, clip.FormatPNG
		}
		slog.Debug("clipboard image is not PNG", "size_bytes", len(s.png))
	}
	return nil, 0
}

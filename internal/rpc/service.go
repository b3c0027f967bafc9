// Package rpc implements ImageService, the request surface of a running
// snaphub daemon, as gRPC (JSON codec) plus an HTTP gateway.
package rpc

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"go.klb.dev/snaphub/internal/clip"
	"go.klb.dev/snaphub/internal/digest"
	"go.klb.dev/snaphub/internal/hub"
	"go.klb.dev/snaphub/internal/poller"
	"go.klb.dev/snaphub/internal/store"
)

// watchBuffer is the per-stream event buffer.
const watchBuffer = 16

// Poller is the part of *poller.Poller the service drives.
type Poller interface {
	ResetHash()
	State() poller.State
	Running() bool
}

// Config wires a Service to the daemon's components.
type Config struct {
	Store     *store.Store
	Hub       *hub.Hub
	Poller    Poller       // nil when polling is disabled
	Clipboard clip.Backend // target of CopyFile
	Token     string       // empty = no auth
	Version   string
}

// Service implements ImageServiceServer.
type Service struct {
	store   *store.Store
	hub     *hub.Hub
	poller  Poller
	clip    clip.Backend
	token   string
	version string
}

// NewService returns a Service for c.
func NewService(c Config) *Service {
	return &Service{
		store:   c.Store,
		hub:     c.Hub,
		poller:  c.Poller,
		clip:    c.Clipboard,
		token:   c.Token,
		version: c.Version,
	}
}

func (s *Service) List(ctx context.Context, _ *Empty) (*ListResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	recs := s.store.Images()
	out := &ListResponse{Images: make([]Image, len(recs))}
	for i, rec := range recs {
		out.Images[i] = imageOf(rec)
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, req *DeleteRequest) (*Empty, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if !digest.Valid(req.ID) {
		return nil, status.Errorf(codes.InvalidArgument, "invalid image id %q", req.ID)
	}
	if err := s.store.Delete(req.ID); err != nil {
		return nil, statusError(err)
	}
	return &Empty{}, nil
}

// Save stores manually submitted bytes. It does not publish an event; the
// caller already knows about the image.
func (s *Service) Save(ctx context.Context, req *SaveRequest) (*SaveResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty image data")
	}
	rec, dup, err := s.store.Save(req.Data)
	if err != nil {
		return nil, statusError(err)
	}
	slog.Info("image submitted", "id", rec.ID, "duplicate", dup)
	return &SaveResponse{Image: imageOf(rec), Duplicate: dup}, nil
}

func (s *Service) Cleanup(ctx context.Context, req *CleanupRequest) (*CleanupResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if req.Hours < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "hours must be >= 0, got %d", req.Hours)
	}
	n, err := s.store.CleanupOlderThan(req.Hours)
	if err != nil {
		return nil, statusError(err)
	}
	return &CleanupResponse{Removed: n}, nil
}

func (s *Service) Clear(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	s.store.ClearAll()
	return &Empty{}, nil
}

func (s *Service) ResetHash(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if s.poller == nil {
		return nil, status.Error(codes.FailedPrecondition, "clipboard polling is disabled")
	}
	s.poller.ResetHash()
	return &Empty{}, nil
}

func (s *Service) ReadFile(ctx context.Context, req *FileRequest) (*ReadFileResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	data, err := s.store.Open(StripAsset(req.Path))
	if err != nil {
		return nil, statusError(err)
	}
	return &ReadFileResponse{Data: data}, nil
}

// CopyFile places a file reference on the system clipboard. Any existing
// regular file is accepted, not only stored images.
func (s *Service) CopyFile(ctx context.Context, req *FileRequest) (*Empty, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if s.clip == nil {
		return nil, status.Error(codes.FailedPrecondition, "no clipboard backend")
	}
	path := StripAsset(req.Path)
	if path == "" {
		return nil, status.Error(codes.InvalidArgument, "empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "resolve %s: %v", path, err)
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, status.Errorf(codes.NotFound, "file not found: %s", abs)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "stat %s: %v", abs, err)
	}
	if !info.Mode().IsRegular() {
		return nil, status.Errorf(codes.InvalidArgument, "not a regular file: %s", abs)
	}
	if err := s.clip.WriteFiles([]string{abs}); err != nil {
		return nil, statusError(err)
	}
	slog.Info("file copied to clipboard", "path", abs, "backend", s.clip.Name())
	return &Empty{}, nil
}

func (s *Service) SetOCR(ctx context.Context, req *SetOCRRequest) (*ImageResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	rec, err := s.store.SetOCRResult(req.ID, req.Text)
	if err != nil {
		return nil, statusError(err)
	}
	return &ImageResponse{Image: imageOf(rec)}, nil
}

func (s *Service) Status(ctx context.Context, _ *Empty) (*StatusResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	resp := &StatusResponse{
		Version:     s.version,
		StorageDir:  s.store.Dir(),
		Images:      s.store.Len(),
		Subscribers: s.hub.Subscribers(),
		Published:   s.hub.Published(),
	}
	if s.clip != nil {
		resp.Backend = s.clip.Name()
	}
	if s.poller != nil {
		st := s.poller.State()
		resp.Polling = s.poller.Running()
		resp.LastHash = st.LastHash
		if !st.LastDetection.IsZero() {
			resp.LastSeenMS = st.LastDetection.UnixMilli()
		}
	}
	return resp, nil
}

// Watch streams an Event for every image the poller stores until the
// client goes away.
func (s *Service) Watch(_ *Empty, stream WatchServer) error {
	ctx := stream.Context()
	if err := s.auth(ctx); err != nil {
		return err
	}
	sub := hub.NewChanSubscriber(watchBuffer)
	s.hub.Register(sub)
	defer s.hub.Unregister(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-sub.C():
			if err := stream.Send(eventOf(ev)); err != nil {
				return err
			}
		}
	}
}

// auth validates the bearer token in ctx metadata. Skipped when s.token is empty.
func (s *Service) auth(ctx context.Context) error {
	if s.token == "" {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}
	tok := strings.TrimPrefix(vals[0], "Bearer ")
	if tok != s.token {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

// statusError maps component errors onto gRPC codes.
func statusError(err error) error {
	var op *store.OpError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrOutsideStore):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, clip.ErrBusy):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, clip.ErrUnavailable), errors.Is(err, clip.ErrUnsupported):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &op) && op.Op == "convert":
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		slog.Error("request failed", "err", err)
		return status.Error(codes.Internal, err.Error())
	}
}

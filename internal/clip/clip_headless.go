package clip

// headlessBackend is the backend for environments without a display server
// (headless Linux servers, containers, etc.). Every operation reports
// ErrUnavailable.
type headlessBackend struct{}

// NewHeadless returns a backend with no clipboard behind it.
func NewHeadless() Backend { return &headlessBackend{} }

func (b *headlessBackend) Name() string                { return "headless (no-op)" }
func (b *headlessBackend) Open() (Session, error)      { return nil, ErrUnavailable }
func (b *headlessBackend) WriteFiles(_ []string) error { return ErrUnavailable }
func (b *headlessBackend) Close()                      {}

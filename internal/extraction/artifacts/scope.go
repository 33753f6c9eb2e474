package artifacts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

// FS is the slice of the filesystem a Scope touches. Tests substitute it to
// count creations and removals.
type FS interface {
	MkdirAll(path string, perm os.FileMode) error
	Create(path string) (io.WriteCloser, error)
	Open(path string) (io.ReadCloser, error)
	Remove(path string) error
	RemoveAll(path string) error
}

type osFS struct{}

func OS() FS { return osFS{} }

func (osFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (osFS) Create(path string) (io.WriteCloser, error)   { return os.Create(path) }
func (osFS) Open(path string) (io.ReadCloser, error)      { return os.Open(path) }
func (osFS) Remove(path string) error                     { return os.Remove(path) }
func (osFS) RemoveAll(path string) error                  { return os.RemoveAll(path) }

// Scope owns every temp artifact created during one extraction call. Paths
// are registered at creation time and removed together by Cleanup.
type Scope struct {
	log *logger.Logger
	fs  FS
	dir string

	mu     sync.Mutex
	paths  []string
	closed bool

	onCleanupFailure func(path string, err error)
}

type ScopeOption func(*Scope)

func WithFS(fs FS) ScopeOption {
	return func(s *Scope) { s.fs = fs }
}

// WithFailureHook is called once per artifact that could not be removed.
func WithFailureHook(fn func(path string, err error)) ScopeOption {
	return func(s *Scope) { s.onCleanupFailure = fn }
}

// New creates a per-call directory under root.
func New(log *logger.Logger, root string, opts ...ScopeOption) (*Scope, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &Scope{log: log.With("service", "ArtifactScope"), fs: OS()}
	for _, opt := range opts {
		opt(s)
	}
	s.dir = filepath.Join(root, "x_"+uuid.NewString())
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return s, nil
}

func (s *Scope) Dir() string { return s.dir }

// Path reserves a unique path inside the scope and registers it for cleanup.
func (s *Scope) Path(name string) string {
	name = sanitizeName(name)
	p := filepath.Join(s.dir, uuid.NewString()[:8]+"_"+name)
	s.track(p)
	return p
}

func (s *Scope) track(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, p)
}

// WriteFile materializes data as a new artifact.
func (s *Scope) WriteFile(name string, data []byte) (string, error) {
	p := s.Path(name)
	w, err := s.fs.Create(p)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	return p, nil
}

// WriteFrom streams r into a new artifact and returns the byte count.
func (s *Scope) WriteFrom(name string, r io.Reader) (string, int64, error) {
	p := s.Path(name)
	w, err := s.fs.Create(p)
	if err != nil {
		return "", 0, fmt.Errorf("create artifact: %w", err)
	}
	n, err := io.Copy(w, r)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", n, fmt.Errorf("write artifact: %w", err)
	}
	return p, n, nil
}

// Copy makes a defensive copy of src so a consumer that deletes its input
// never removes a file someone else still reads.
func (s *Scope) Copy(src, name string) (string, error) {
	in, err := s.fs.Open(src)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()
	p, _, err := s.WriteFrom(name, in)
	return p, err
}

// Paths lists registered artifacts in creation order.
func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Cleanup removes every artifact and the scope directory. Failures are
// logged and returned joined, never panicking; it is safe to call twice.
func (s *Scope) Cleanup() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	paths := append([]string(nil), s.paths...)
	s.mu.Unlock()

	var errs []error
	for i := len(paths) - 1; i >= 0; i-- {
		p := paths[i]
		if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			s.fail(p, err)
		}
	}
	if err := s.fs.RemoveAll(s.dir); err != nil {
		errs = append(errs, err)
		s.fail(s.dir, err)
	}
	return errors.Join(errs...)
}

func (s *Scope) fail(p string, err error) {
	s.log.Warn("artifact cleanup failed", "path", p, "error", err)
	if s.onCleanupFailure != nil {
		s.onCleanupFailure(p, err)
	}
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "artifact"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 80 {
		out = out[len(out)-80:]
	}
	return out
}

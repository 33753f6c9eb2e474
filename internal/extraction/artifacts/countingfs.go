package artifacts

import (
	"io"
	"os"
	"sync"
)

// CountingFS wraps another FS and records which files are still live. It is
// used by tests across the extraction packages to prove nothing leaks.
type CountingFS struct {
	Inner FS

	mu   sync.Mutex
	live map[string]struct{}
}

func NewCountingFS(inner FS) *CountingFS {
	if inner == nil {
		inner = OS()
	}
	return &CountingFS{Inner: inner, live: map[string]struct{}{}}
}

func (c *CountingFS) MkdirAll(path string, perm os.FileMode) error {
	if err := c.Inner.MkdirAll(path, perm); err != nil {
		return err
	}
	c.mu.Lock()
	c.live[path] = struct{}{}
	c.mu.Unlock()
	return nil
}

func (c *CountingFS) Create(path string) (io.WriteCloser, error) {
	w, err := c.Inner.Create(path)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.live[path] = struct{}{}
	c.mu.Unlock()
	return w, nil
}

func (c *CountingFS) Open(path string) (io.ReadCloser, error) { return c.Inner.Open(path) }

func (c *CountingFS) Remove(path string) error {
	err := c.Inner.Remove(path)
	if err == nil || os.IsNotExist(err) {
		c.mu.Lock()
		delete(c.live, path)
		c.mu.Unlock()
	}
	return err
}

func (c *CountingFS) RemoveAll(path string) error {
	if err := c.Inner.RemoveAll(path); err != nil {
		return err
	}
	c.mu.Lock()
	for p := range c.live {
		if p == path || isWithin(path, p) {
			delete(c.live, p)
		}
	}
	c.mu.Unlock()
	return nil
}

// Track records a file created outside the FS, e.g. by an external process.
func (c *CountingFS) Track(path string) {
	c.mu.Lock()
	c.live[path] = struct{}{}
	c.mu.Unlock()
}

// Live returns the number of created entries not yet removed.
func (c *CountingFS) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

func isWithin(dir, p string) bool {
	return len(p) > len(dir) && p[:len(dir)] == dir && os.IsPathSeparator(p[len(dir)])
}

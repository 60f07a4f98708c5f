// Package file serves artifacts from a local mirror of a results bucket,
// laid out as {dir}/{bucket path}. It backs tests and offline scrapes.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/3leaps/prowscope/pkg/provider"
)

// Config configures a mirror provider.
type Config struct {
	// BaseDir is the mirror root. It must exist.
	BaseDir string
}

// Validate checks that a mirror root is set.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return errors.New("base dir is required")
	}
	return nil
}

// Provider reads artifacts through an os.Root, so no key can resolve
// outside the mirror.
type Provider struct {
	root *os.Root
}

var _ provider.Provider = (*Provider)(nil)

// New opens the mirror rooted at cfg.BaseDir.
func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(cfg.BaseDir)
	if err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderFile, Bucket: cfg.BaseDir, Err: fmt.Errorf("open mirror: %w", err)}
	}
	return &Provider{root: root}, nil
}

// Close releases the mirror root.
func (p *Provider) Close() error {
	return p.root.Close()
}

// Head stats the artifact at key.
func (p *Provider) Head(_ context.Context, key string) (*provider.ObjectMeta, error) {
	name := mirrorPath(key)
	st, err := p.root.Stat(name)
	if err != nil {
		return nil, classify("Head", key, err)
	}
	if st.IsDir() {
		return nil, classify("Head", key, fs.ErrNotExist)
	}
	return &provider.ObjectMeta{Key: name, Size: st.Size(), LastModified: st.ModTime()}, nil
}

// GetObject opens the artifact at key. Directories are not artifacts.
func (p *Provider) GetObject(_ context.Context, key string) (io.ReadCloser, int64, error) {
	f, err := p.root.Open(mirrorPath(key))
	if err != nil {
		return nil, 0, classify("GetObject", key, err)
	}
	st, err := f.Stat()
	if err == nil && st.IsDir() {
		err = fs.ErrNotExist
	}
	if err != nil {
		_ = f.Close()
		return nil, 0, classify("GetObject", key, err)
	}
	return f, st.Size(), nil
}

// mirrorPath maps a bucket key to a slash path below the mirror root.
// Leading slashes and ".." segments are resolved against the root, so
// "../../etc/passwd" reads "etc/passwd" inside the mirror.
func mirrorPath(key string) string {
	name := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(key)), "/")
	if name == "" {
		return "."
	}
	return name
}

func classify(op, key string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		err = provider.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		err = provider.ErrAccessDenied
	}
	return &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Key: key, Err: err}
}

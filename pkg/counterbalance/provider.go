package counterbalance

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// Opener returns a fresh reader over the table source each time it is called.
type Opener func() (io.ReadCloser, error)

// FileOpener opens the table at path on every load.
func FileOpener(path string) Opener {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// Provider owns the current Table for a session. The table is loaded on first
// use and replaced only by Reload. Lookups may run concurrently with Reload:
// readers always see either the old or the new table, never a partial one.
type Provider struct {
	open Opener
	opts []LoadOption

	mu    sync.Mutex // serializes loads
	table atomic.Pointer[Table]
}

// NewProvider creates a Provider that loads from open with the given options.
func NewProvider(open Opener, opts ...LoadOption) *Provider {
	return &Provider{open: open, opts: opts}
}

// Table returns the current table, loading it on first call.
func (p *Provider) Table() (*Table, error) {
	if t := p.table.Load(); t != nil {
		return t, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if t := p.table.Load(); t != nil {
		return t, nil
	}
	t, err := p.load()
	if err != nil {
		return nil, err
	}
	p.table.Store(t)
	return t, nil
}

// Reload rebuilds the table from the source. On failure the previously loaded
// table, if any, stays in place and the error is returned.
func (p *Provider) Reload() (*Table, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, err := p.load()
	if err != nil {
		return nil, err
	}
	p.table.Store(t)
	return t, nil
}

// Resolve canonical id against the current table.
func (p *Provider) Resolve(id CanonicalID) (Assignment, error) {
	t, err := p.Table()
	if err != nil {
		return Assignment{}, err
	}
	return Resolve(t, id), nil
}

func (p *Provider) load() (*Table, error) {
	if p.open == nil {
		return nil, &TableError{Err: ErrNoSource}
	}
	rc, err := p.open()
	if err != nil {
		return nil, &TableError{Err: fmt.Errorf("%w: %v", ErrNoSource, err)}
	}
	defer rc.Close()
	return Load(rc, p.opts...)
}

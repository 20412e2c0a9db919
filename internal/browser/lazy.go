package browser

import (
	"context"
	"fmt"
	"sync"
)

// LazyRenderer starts the underlying browser on the first Render call, so
// runs that never fall through to a browser never launch one. A failed
// start is remembered and returned on every later call.
type LazyRenderer struct {
	start func() (Renderer, error)

	mu       sync.Mutex
	renderer Renderer
	err      error
	closed   bool
}

func NewLazyRenderer(start func() (Renderer, error)) *LazyRenderer {
	return &LazyRenderer{start: start}
}

// NewEngine returns a lazily started renderer for the named engine:
// "playwright" or "chromedp".
func NewEngine(engine string, opts *Options) (*LazyRenderer, error) {
	switch engine {
	case "", "playwright":
		return NewLazyRenderer(func() (Renderer, error) {
			b, err := New(opts)
			if err != nil {
				return nil, err
			}
			return b, nil
		}), nil
	case "chromedp":
		return NewLazyRenderer(func() (Renderer, error) {
			r, err := NewCDPRenderer(opts)
			if err != nil {
				return nil, err
			}
			return r, nil
		}), nil
	}
	return nil, fmt.Errorf("unknown browser engine %q", engine)
}

func (l *LazyRenderer) get() (Renderer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, fmt.Errorf("renderer is closed")
	}
	if l.renderer == nil && l.err == nil {
		r, err := l.start()
		if err != nil {
			l.err = fmt.Errorf("starting browser: %w", err)
		} else {
			l.renderer = r
		}
	}
	return l.renderer, l.err
}

func (l *LazyRenderer) Render(ctx context.Context, url string, opts RenderOptions) (*Rendered, error) {
	r, err := l.get()
	if err != nil {
		return nil, err
	}
	return r.Render(ctx, url, opts)
}

// Started reports whether a browser has been launched.
func (l *LazyRenderer) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renderer != nil
}

func (l *LazyRenderer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.renderer == nil {
		return nil
	}
	err := l.renderer.Close()
	l.renderer = nil
	return err
}

package embedding

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Factory builds an Embedder. It may be slow (client setup, model download).
type Factory func(ctx context.Context) (Embedder, error)

// Lazy defers building an Embedder until the first Embed call. Concurrent
// first callers wait for a single build; a failed build is not remembered
// and the next caller tries again.
type Lazy struct {
	factory Factory

	mu    sync.Mutex
	ready atomic.Pointer[loaded]
}

type loaded struct {
	embedder Embedder
}

func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

// Get returns the built Embedder, building it when needed.
func (l *Lazy) Get(ctx context.Context) (Embedder, error) {
	if cur := l.ready.Load(); cur != nil {
		return cur.embedder, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cur := l.ready.Load(); cur != nil {
		return cur.embedder, nil
	}

	if l.factory == nil {
		return nil, fmt.Errorf("embedder factory is not configured")
	}

	e, err := l.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("building embedder: %w", err)
	}
	if e == nil {
		return nil, fmt.Errorf("building embedder: factory returned nil")
	}

	l.ready.Store(&loaded{embedder: e})
	return e, nil
}

// Loaded reports whether the Embedder has been built.
func (l *Lazy) Loaded() bool {
	return l.ready.Load() != nil
}

func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	e, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return e.Embed(ctx, text)
}

func (l *Lazy) Provider() string {
	if cur := l.ready.Load(); cur != nil {
		p, _ := Describe(cur.embedder)
		return p
	}
	return ""
}

func (l *Lazy) Model() string {
	if cur := l.ready.Load(); cur != nil {
		_, m := Describe(cur.embedder)
		return m
	}
	return ""
}

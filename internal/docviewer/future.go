package docviewer

import (
	"context"
	"sync"
)

// Result is the successful outcome of an open.
type Result struct {
	URI      string `json:"uri"`
	Path     string `json:"path"`
	CacheHit bool   `json:"cache_hit"`
}

// Future is a single-resolution result. The first resolution wins; later
// ones are ignored.
type Future struct {
	once   sync.Once
	done   chan struct{}
	result Result
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// NewFuture returns a pending Future and the function that resolves it, for
// Opener implementations outside this package.
func NewFuture() (*Future, func(Result, error) bool) {
	f := newFuture()
	return f, f.resolve
}

// Resolved returns a Future that is already resolved with res and err.
func Resolved(res Result, err error) *Future {
	f := newFuture()
	f.resolve(res, err)
	return f
}

func (f *Future) resolve(res Result, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.result = res
		f.err = err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx is done. Giving up on ctx does
// not stop the underlying open.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result reports the outcome without blocking; ok is false while pending.
func (f *Future) Result() (res Result, err error, ok bool) {
	select {
	case <-f.done:
		return f.result, f.err, true
	default:
		return Result{}, nil, false
	}
}

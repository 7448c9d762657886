package pipeline

import (
	"path/filepath"
	"sort"
	"sync"
)

// Resolver maps a destination onto the path a Writer actually touches.
// Writers that implement it get lock keys that match their own view of the
// filesystem, so "a/x.png" and "<root>/a/x.png" share a lock.
type Resolver interface {
	Resolve(destination string) (string, error)
}

// lockKey returns the key that guards destination for writer w.
func lockKey(w Writer, destination string) string {
	if r, ok := w.(Resolver); ok {
		if p, err := r.Resolve(destination); err == nil {
			return p
		}
	}
	return filepath.Clean(filepath.FromSlash(destination))
}

// pathLocks serializes writers that share a destination. Locks for a set of
// paths are always taken in sorted order.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *pathLocks) get(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.locks[key]
	if !ok {
		m = &sync.Mutex{}
		p.locks[key] = m
	}
	return m
}

// lock acquires the lock of every destination as seen by w and returns the
// release func.
func (p *pathLocks) lock(w Writer, destinations []string) func() {
	keys := make([]string, 0, len(destinations))
	seen := make(map[string]struct{}, len(destinations))
	for _, d := range destinations {
		k := lockKey(w, d)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	held := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		m := p.get(k)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

package registry

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/solpm/internal/ir"
)

type memoryKey struct {
	name    string
	network ir.Network
}

// Memory is an in-memory Fetcher.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	docs  map[memoryKey]map[string][]byte
	errs  map[string]error
	calls map[string]int
	hooks map[string]func(ctx context.Context) error
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{
		docs:  make(map[memoryKey]map[string][]byte),
		errs:  make(map[string]error),
		calls: make(map[string]int),
		hooks: make(map[string]func(ctx context.Context) error),
	}
}

// Put publishes data as version of name on network.
func (m *Memory) Put(name, version string, network ir.Network, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoryKey{name, network}
	if m.docs[k] == nil {
		m.docs[k] = make(map[string][]byte)
	}
	m.docs[k][version] = slices.Clone(data)
}

// Fail makes every fetch of name return err.
func (m *Memory) Fail(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[name] = err
}

// Hook runs fn at the start of every fetch of name, before the lookup. A
// non-nil result is returned as the fetch error. Tests use it to block on
// the context.
func (m *Memory) Hook(name string, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[name] = fn
}

// Calls returns how many times name was fetched.
func (m *Memory) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// Fetch returns a copy of the stored document.
//
// Implements engine.Fetcher.
func (m *Memory) Fetch(ctx context.Context, name, version string, network ir.Network) ([]byte, error) {
	m.mu.Lock()
	m.calls[name]++
	hook := m.hooks[name]
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[name]; err != nil {
		return nil, err
	}
	versions := m.docs[memoryKey{name, network}]
	if IsLatest(version) {
		version = newest(slices.Collect(maps.Keys(versions)))
	}
	data, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s on %s", ErrNotFound, name, version, network)
	}
	return slices.Clone(data), nil
}

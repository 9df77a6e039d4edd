package kv

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
)

type memItem struct {
	key   []byte
	value []byte
}

func memLess(a, b memItem) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Memory is an in-process ordered store backed by a B-tree. It is safe for
// concurrent use and is the default backend in tests.
type Memory struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[memItem]
}

func NewMemory() *Memory {
	return &Memory{tree: btree.NewG(32, memLess)}
}

func (m *Memory) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.tree.Get(memItem{key: key})
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(item.value), true, nil
}

func (m *Memory) Put(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tree.ReplaceOrInsert(memItem{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (m *Memory) Delete(ctx context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tree.Delete(memItem{key: key})
	return nil
}

func (m *Memory) Scan(ctx context.Context, r Range, fn ScanFunc) error {
	m.mu.RLock()
	var pairs []Pair
	visit := func(item memItem) bool {
		if !r.beforeEnd(item.key) {
			return false
		}
		if r.afterStart(item.key) {
			pairs = append(pairs, Pair{Key: bytes.Clone(item.key), Value: bytes.Clone(item.value)})
		}
		return true
	}
	if r.Start == nil {
		m.tree.Ascend(visit)
	} else {
		m.tree.AscendGreaterOrEqual(memItem{key: r.Start}, visit)
	}
	m.mu.RUnlock()

	return Emit(ctx, pairs, fn)
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

func (m *Memory) Close() error { return nil }

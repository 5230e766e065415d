package storetest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/51302890/mcp-mem0/internal/store"
)

// MemStore is an in-memory store.Store for tests of code that sits above
// the store. It ranks by cosine similarity like the pgvector store.
type MemStore struct {
	mu    sync.Mutex
	dims  int
	items map[string]*memRow
	seq   int
}

type memRow struct {
	item store.MemoryItem
	vec  []float32
	seq  int
}

// NewMemStore returns an empty store for vectors of length dims.
func NewMemStore(dims int) *MemStore {
	return &MemStore{dims: dims, items: map[string]*memRow{}}
}

var _ store.Store = (*MemStore)(nil)

func (m *MemStore) Insert(_ context.Context, item *store.MemoryItem, vec []float32) error {
	if err := m.check(vec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.items[item.ID]; dup {
		return fmt.Errorf("duplicate id %s", item.ID)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	m.seq++
	m.items[item.ID] = &memRow{item: *item, vec: append([]float32(nil), vec...), seq: m.seq}
	return nil
}

func (m *MemStore) Update(_ context.Context, id, memory, hash string, vec []float32) error {
	if err := m.check(vec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	now := time.Now().UTC()
	r.item.Memory, r.item.Hash, r.item.UpdatedAt = memory, hash, &now
	r.vec = append([]float32(nil), vec...)
	return nil
}

func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	delete(m.items, id)
	return nil
}

func (m *MemStore) DeleteAll(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.items {
		if r.item.UserID == userID {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

func (m *MemStore) Get(_ context.Context, id string) (*store.MemoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	it := r.item
	return &it, nil
}

func (m *MemStore) List(_ context.Context, userID string, limit int) ([]store.MemoryItem, error) {
	rows := m.rowsOf(userID)
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	return head(rows, limit, nil), nil
}

func (m *MemStore) Search(_ context.Context, userID string, vec []float32, limit int) ([]store.MemoryItem, error) {
	if err := m.check(vec); err != nil {
		return nil, err
	}
	rows := m.rowsOf(userID)
	scores := make(map[string]float64, len(rows))
	for _, r := range rows {
		scores[r.item.ID] = cosine(r.vec, vec)
	}
	sort.SliceStable(rows, func(i, j int) bool { return scores[rows[i].item.ID] > scores[rows[j].item.ID] })
	return head(rows, limit, scores), nil
}

func (m *MemStore) Close() error { return nil }

// Len reports the number of stored memories.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MemStore) check(vec []float32) error {
	if len(vec) != m.dims {
		return fmt.Errorf("vector has %d values, store expects %d", len(vec), m.dims)
	}
	return nil
}

func (m *MemStore) rowsOf(userID string) []memRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []memRow
	for _, r := range m.items {
		if r.item.UserID == userID {
			out = append(out, *r)
		}
	}
	return out
}

func head(rows []memRow, limit int, scores map[string]float64) []store.MemoryItem {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]store.MemoryItem, 0, len(rows))
	for _, r := range rows {
		it := r.item
		if scores != nil {
			it.Score = scores[it.ID]
		}
		out = append(out, it)
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/label-audit/internal/model"
)

type memEntry struct {
	data      []byte
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a process-local Store for one-off runs and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	recognitions map[string]memEntry
	runs         map[string]Run
	now          func() time.Time
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		recognitions: make(map[string]memEntry),
		runs:         make(map[string]Run),
		now:          time.Now,
	}
}

// Migrate is a no-op.
func (m *MemoryStore) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) GetRecognition(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.recognitions[key]
	if !ok || !e.expiresAt.After(m.now()) {
		return nil, nil
	}
	return append([]byte(nil), e.data...), nil
}

func (m *MemoryStore) SetRecognition(_ context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recognitions[key] = memEntry{data: append([]byte(nil), data...), expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) DeleteExpiredRecognitions(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, e := range m.recognitions {
		if !e.expiresAt.After(now) {
			delete(m.recognitions, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) SaveRun(_ context.Context, report *model.Report) (*Run, error) {
	run, err := newRun(report, m.now().UTC())
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; exists {
		return nil, eris.Errorf("store: run %s already exists", run.ID)
	}
	m.runs[run.ID] = *run
	return run, nil
}

func (m *MemoryStore) GetRun(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "run %s", id)
	}
	return &r, nil
}

func (m *MemoryStore) ListRuns(_ context.Context, filter RunFilter) ([]Run, error) {
	m.mu.RLock()
	var runs []Run
	for _, r := range m.runs {
		if filter.URL == "" || r.URL == filter.URL {
			runs = append(runs, r)
		}
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(runs) {
			return nil, nil
		}
		runs = runs[filter.Offset:]
	}
	if limit := listLimit(filter); len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

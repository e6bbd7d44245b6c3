package frontier

import (
	"context"
	"sync"
)

// VisitedSet records URLs that have been claimed for fetching. Add is an
// atomic test-and-insert: of any number of concurrent Adds for one URL,
// exactly one reports true.
type VisitedSet interface {
	Add(ctx context.Context, url string) (bool, error)
	Len() int
}

type MemoryVisited struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryVisited() *MemoryVisited {
	return &MemoryVisited{seen: make(map[string]struct{})}
}

func (m *MemoryVisited) Add(_ context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[url]; ok {
		return false, nil
	}
	m.seen[url] = struct{}{}
	return true, nil
}

func (m *MemoryVisited) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

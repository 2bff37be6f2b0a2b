package article

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an ephemeral Store. Deleted articles are invisible to lookups.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   []*Article
	byURL  map[string]*Article
	now    func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byURL: make(map[string]*Article),
		now:   time.Now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, a *Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == 0 {
		s.nextID++
		a.ID = s.nextID
	} else if a.ID > s.nextID {
		s.nextID = a.ID
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	cp := *a
	s.rows = append(s.rows, &cp)
	if cp.DeletedAt == nil {
		s.byURL[cp.URL] = &cp
	}
	return nil
}

func (s *MemoryStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byURL[url]
	return ok, nil
}

func (s *MemoryStore) FindByURL(ctx context.Context, url string) (*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byURL[url]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// SoftDelete marks the live article with url as deleted.
func (s *MemoryStore) SoftDelete(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byURL[url]
	if !ok {
		return ErrNotFound
	}
	now := s.now()
	a.DeletedAt = &now
	delete(s.byURL, url)
	return nil
}

// Count returns the number of stored rows, deleted ones included.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

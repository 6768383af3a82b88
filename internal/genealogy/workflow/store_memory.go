package workflow

import (
	"sort"
	"sync"

	"famtree/internal/genealogy/models"
	"famtree/pkg/domain"
)

// Store holds the pending set.
type Store interface {
	Put(r *models.Request)
	Get(id domain.RequestID) (*models.Request, bool)
	Delete(id domain.RequestID) bool
	FindSame(r *models.Request) (*models.Request, bool)
	List() []*models.Request
	Len() int
}

type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[domain.RequestID]*models.Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[domain.RequestID]*models.Request)}
}

func (s *InMemoryStore) Put(r *models.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r
}

func (s *InMemoryStore) Get(id domain.RequestID) (*models.Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	return r, ok
}

func (s *InMemoryStore) Delete(id domain.RequestID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return false
	}
	delete(s.requests, id)
	return true
}

// FindSame returns a stored request describing the same mutation as r.
func (s *InMemoryStore) FindSame(r *models.Request) (*models.Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, existing := range s.requests {
		if existing.SameAs(r) {
			return existing, true
		}
	}
	return nil, false
}

// List returns the stored requests in submission order.
func (s *InMemoryStore) List() []*models.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Request, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

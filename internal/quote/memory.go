package quote

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ucsindex/ucs/internal/domain"
)

type memoryKey struct {
	id   domain.AssetID
	date time.Time
}

// MemoryStore is a process-local Store. It backs the service when no
// database is configured and serves as the store in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	quotes map[memoryKey]domain.Quote
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{quotes: make(map[memoryKey]domain.Quote)}
}

func (s *MemoryStore) GetQuote(_ context.Context, id domain.AssetID, date time.Time) (domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[memoryKey{id, domain.DateOf(date)}]
	if !ok {
		return domain.Quote{}, ErrNotFound
	}
	return q, nil
}

func (s *MemoryStore) GetLatest(_ context.Context, id domain.AssetID, date time.Time) (domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := domain.DateOf(date)
	var (
		best  domain.Quote
		found bool
	)
	for k, q := range s.quotes {
		if k.id != id || k.date.After(limit) {
			continue
		}
		if !found || k.date.After(best.Date) {
			best, found = q, true
		}
	}
	if !found {
		return domain.Quote{}, ErrNotFound
	}
	return best, nil
}

func (s *MemoryStore) SaveQuote(_ context.Context, q domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q.Date = domain.DateOf(q.Date)
	q.UpdatedAt = time.Now().UTC()
	s.quotes[memoryKey{q.AssetID, q.Date}] = q
	return nil
}

func (s *MemoryStore) UpdateChangePct(_ context.Context, id domain.AssetID, date time.Time, pct decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{id, domain.DateOf(date)}
	q, ok := s.quotes[key]
	if !ok {
		return ErrNotFound
	}
	q.ChangePct = pct
	q.UpdatedAt = time.Now().UTC()
	s.quotes[key] = q
	return nil
}

// Len returns the number of stored quotes.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quotes)
}

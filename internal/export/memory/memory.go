// Package memory is an in-process SummaryWriter used in development and
// tests, where no spreadsheet backend is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"bilancio/internal/core"
)

type key struct {
	ownerID int64
	month   string
}

type Store struct {
	mu    sync.Mutex
	items map[key]core.MonthSummary
}

func New() *Store {
	return &Store{items: make(map[key]core.MonthSummary)}
}

// WriteSummary stores the summary, replacing any previous entry for the
// same owner and month, and returns a synthetic reference.
func (s *Store) WriteSummary(_ context.Context, ownerID int64, sum core.MonthSummary) (string, error) {
	if sum.Month.IsZero() {
		return "", core.ErrInvalidMonth
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key{ownerID: ownerID, month: sum.Month.String()}] = sum
	return fmt.Sprintf("mem:%d:%s", ownerID, sum.Month), nil
}

// Get returns the stored summary for an owner and month, if any.
func (s *Store) Get(ownerID int64, month core.Month) (core.MonthSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.items[key{ownerID: ownerID, month: month.String()}]
	return sum, ok
}

// Len reports how many distinct (owner, month) summaries are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

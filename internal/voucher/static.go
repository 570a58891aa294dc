package voucher

import (
	"context"
	"sync"
	"time"
)

// Static is an in-memory Registry backed by fixture records.
type Static struct {
	mu      sync.RWMutex
	records map[string][]Record
}

// NewStatic builds a Static registry from the given records.
func NewStatic(records ...Record) *Static {
	s := &Static{records: make(map[string][]Record)}
	for _, r := range records {
		s.records[r.Code] = append(s.records[r.Code], r)
	}
	return s
}

// FindDiscountByCode implements Registry. When several records of the same
// scope share a code the first active one wins.
func (s *Static) FindDiscountByCode(_ context.Context, code string, asOf time.Time) (Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	match := Match{Code: code}
	for _, r := range s.records[code] {
		if !r.ActiveOn(asOf) {
			continue
		}
		rec := r
		switch r.Scope {
		case ScopeProduct:
			if match.Product == nil {
				match.Product = &rec
			}
		case ScopeShop:
			if match.Shop == nil {
				match.Shop = &rec
			}
		}
	}
	if match.Empty() {
		return Match{}, ErrNotFound
	}
	return match, nil
}

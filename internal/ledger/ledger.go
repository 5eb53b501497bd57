// Package ledger tracks which contact ids have already been delivered. The
// set is loaded once at batch start and saved once at batch end.
package ledger

import (
	"context"
	"sort"
)

// Set is an in-memory set of processed contact ids.
type Set map[string]struct{}

// NewSet builds a set from ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has reports membership.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id. Empty ids are ignored.
func (s Set) Add(id string) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

// Len returns the number of ids.
func (s Set) Len() int { return len(s) }

// Sorted returns the ids in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Ledger persists the processed set. Save always receives the whole set
// (previously loaded ids plus new ones); membership never shrinks.
type Ledger interface {
	Load(ctx context.Context) (Set, error)
	Save(ctx context.Context, s Set) error
}

// Locker is implemented by backends that can guard a batch run against a
// concurrent one. The returned release func is safe to call once.
type Locker interface {
	Lock(ctx context.Context) (release func(), err error)
}

package ledger

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-sync/internal/store"
)

// Store keeps the set in the SQL store's processed_contacts table.
type Store struct {
	st store.Store
}

// NewStore returns a ledger over st.
func NewStore(st store.Store) *Store {
	return &Store{st: st}
}

func (s *Store) Load(ctx context.Context) (Set, error) {
	ids, err := s.st.LoadProcessed(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: load from store")
	}
	return NewSet(ids...), nil
}

// Save inserts the whole set in one transaction; rows already present stay.
func (s *Store) Save(ctx context.Context, set Set) error {
	return eris.Wrap(s.st.SaveProcessed(ctx, set.Sorted()), "ledger: save to store")
}

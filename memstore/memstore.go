// Package memstore implements an in-memory emergency.Store, used in development mode and tests
package memstore

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
)

// ErrNotInTransaction is returned when committing or rolling back a store that is not a
// transaction, or a transaction that has already finished
var ErrNotInTransaction = errors.New("memstore: not in transaction")

// ErrConstraint is returned (wrapped) when a write would break an invariant of the data model
var ErrConstraint = errors.New("memstore: constraint violation")

type database struct {
	// mu is held by the outermost open transaction, so transactions are serialized
	mu        sync.Mutex
	committed *state
}

type txn struct {
	working *state
}

// Store is an in-memory emergency.Store.
// The zero value is not usable, use New
type Store struct {
	db *database
	tx *txn
	// outer is whether this node started tx, as opposed to a nested Beginx
	outer    bool
	finished bool
}

var _ emergency.Store = (*Store)(nil)

// New returns an empty Store
func New() *Store {
	return &Store{db: &database{committed: newState()}}
}

// Beginx starts a transaction. Only one transaction is open at a time: Beginx on the root
// store blocks until the open transaction finishes. Beginx on a transaction returns a
// nested transaction sharing its changes
func (s *Store) Beginx() (emergency.Store, error) {
	if s.tx != nil {
		if s.finished {
			return nil, ErrNotInTransaction
		}
		return &Store{db: s.db, tx: s.tx}, nil
	}
	s.db.mu.Lock()
	return &Store{
		db:    s.db,
		tx:    &txn{working: s.db.committed.clone()},
		outer: true,
	}, nil
}

// Commit makes the changes of the transaction visible. Committing a nested transaction has
// no effect until the outermost transaction commits
func (s *Store) Commit() error {
	if s.tx == nil || s.finished {
		return ErrNotInTransaction
	}
	s.finished = true
	if s.outer {
		s.db.committed = s.tx.working
		s.db.mu.Unlock()
	}
	return nil
}

// Rollback discards the changes of the transaction. Rolling back a nested transaction has no
// effect: the error that caused it is expected to make the outermost transaction roll back
func (s *Store) Rollback() error {
	if s.tx == nil || s.finished {
		return ErrNotInTransaction
	}
	s.finished = true
	if s.outer {
		s.db.mu.Unlock()
	}
	return nil
}

// view runs f on the state seen by s
func (s *Store) view(f func(st *state) error) error {
	if s.tx != nil {
		if s.finished {
			return ErrNotInTransaction
		}
		return f(s.tx.working)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return f(s.db.committed)
}

// update runs f on the state seen by s. Outside of a transaction, changes are applied only if f succeeds
func (s *Store) update(f func(st *state) error) error {
	if s.tx != nil {
		if s.finished {
			return ErrNotInTransaction
		}
		return f(s.tx.working)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	working := s.db.committed.clone()
	if err := f(working); err != nil {
		return err
	}
	s.db.committed = working
	return nil
}

func notFound(objtype, id string) error {
	return errors.Wrapf(dataobjects.ErrNotFound, "%s %s", objtype, id)
}

func constraint(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConstraint, format, args...)
}

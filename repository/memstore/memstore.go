// Package memstore is an in-process implementation of repository.Store. It
// backs the test suites and the STORE=memory development mode.
package memstore

import (
	"context"
	"sync"

	"civicsync/models"
	"civicsync/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type voteKey struct {
	issue primitive.ObjectID
	user  primitive.ObjectID
}

type state struct {
	issues        map[primitive.ObjectID]models.Issue
	profiles      map[primitive.ObjectID]models.Profile
	ledger        []models.LedgerEntry
	notifications []models.Notification
	votes         map[voteKey]models.Vote
}

func newState() *state {
	return &state{
		issues:   make(map[primitive.ObjectID]models.Issue),
		profiles: make(map[primitive.ObjectID]models.Profile),
		votes:    make(map[voteKey]models.Vote),
	}
}

// clone copies the record containers. Records are values, so a shallow copy
// of each map and slice is enough for rollback.
func (s *state) clone() *state {
	c := &state{
		issues:        make(map[primitive.ObjectID]models.Issue, len(s.issues)),
		profiles:      make(map[primitive.ObjectID]models.Profile, len(s.profiles)),
		ledger:        append([]models.LedgerEntry(nil), s.ledger...),
		notifications: append([]models.Notification(nil), s.notifications...),
		votes:         make(map[voteKey]models.Vote, len(s.votes)),
	}
	for k, v := range s.issues {
		c.issues[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.votes {
		c.votes[k] = v
	}
	return c
}

// Store keeps all records in memory behind a single mutex. A transaction
// holds the mutex for its whole duration and works on a private copy that
// replaces the live state only on success.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// view is the set of repositories bound either to the live state (st == nil,
// every call takes the lock) or to a transaction's working copy.
type view struct {
	s  *Store
	st *state
}

func (v view) with(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.st)
}

func (v view) Issues() repository.IssueStore               { return issueRepo{v} }
func (v view) Profiles() repository.ProfileStore           { return profileRepo{v} }
func (v view) Ledger() repository.LedgerStore              { return ledgerRepo{v} }
func (v view) Notifications() repository.NotificationStore { return notificationRepo{v} }
func (v view) Votes() repository.VoteStore                 { return voteRepo{v} }

func (s *Store) live() view { return view{s: s} }

func (s *Store) Issues() repository.IssueStore               { return s.live().Issues() }
func (s *Store) Profiles() repository.ProfileStore           { return s.live().Profiles() }
func (s *Store) Ledger() repository.LedgerStore              { return s.live().Ledger() }
func (s *Store) Notifications() repository.NotificationStore { return s.live().Notifications() }
func (s *Store) Votes() repository.VoteStore                 { return s.live().Votes() }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(ctx, view{s: s, st: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = working
	return nil
}

func (s *Store) Close(context.Context) error { return nil }

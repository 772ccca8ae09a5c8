// Package mongostore implements repository.Store on MongoDB. Units of work
// run inside multi-document transactions, which require a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicsync/models"
	"civicsync/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	issuesCollection        = "issues"
	profilesCollection      = "profiles"
	ledgerCollection        = "civic_coin_transactions"
	notificationsCollection = "notifications"
	votesCollection         = "votes"
)

// Store binds the repositories to one database.
type Store struct {
	client        *mongo.Client
	issues        *mongo.Collection
	profiles      *mongo.Collection
	ledger        *mongo.Collection
	notifications *mongo.Collection
	votes         *mongo.Collection
}

var _ repository.Store = (*Store)(nil)

func New(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:        client,
		issues:        db.Collection(issuesCollection),
		profiles:      db.Collection(profilesCollection),
		ledger:        db.Collection(ledgerCollection),
		notifications: db.Collection(notificationsCollection),
		votes:         db.Collection(votesCollection),
	}
}

// EnsureIndexes creates the indexes the stores rely on for uniqueness and
// for the dashboard queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.profiles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "civicCoins", Value: -1}, {Key: "createdAt", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("profiles indexes: %w", err)
	}
	if _, err := s.issues.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "reporterId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("issues indexes: %w", err)
	}
	// At most one ledger entry may reference a given issue.
	if _, err := s.ledger.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "issueId", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"issueId": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("ledger indexes: %w", err)
	}
	if _, err := s.notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	}); err != nil {
		return fmt.Errorf("notifications indexes: %w", err)
	}
	// One vote per (issue, user).
	if _, err := s.votes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "issue", Value: 1}, {Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("votes index: %w", err)
	}
	return nil
}

func (s *Store) Issues() repository.IssueStore               { return issueRepo{s.issues} }
func (s *Store) Profiles() repository.ProfileStore           { return profileRepo{s.profiles} }
func (s *Store) Ledger() repository.LedgerStore              { return ledgerRepo{s.ledger} }
func (s *Store) Notifications() repository.NotificationStore { return notificationRepo{s.notifications} }
func (s *Store) Votes() repository.VoteStore                 { return voteRepo{votes: s.votes, issues: s.issues} }

// WithinTx runs fn in a snapshot transaction. Operations issued through the
// session context join the transaction, so the same repositories serve as
// the transactional view. The driver retries fn on transient write
// conflicts; a retried CAS then observes the winner's status and fails with
// ErrConcurrentModification.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	}, txOpts)
	return err
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	return err
}

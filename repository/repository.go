// Package repository declares the persistence boundary of civicsync. The
// lifecycle controller and the reward ledger depend only on these interfaces;
// mongostore and memstore provide the implementations.
package repository

import (
	"context"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type IssueStore interface {
	Create(ctx context.Context, issue *models.Issue) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	// CompareAndSwapStatus applies update only if the stored status still
	// equals expected. It returns models.ErrConcurrentModification when the
	// guard does not match and models.ErrNotFound when the issue is absent.
	CompareAndSwapStatus(ctx context.Context, id primitive.ObjectID, expected models.IssueStatus, update models.StatusUpdate) (*models.Issue, error)
	UpdateDetails(ctx context.Context, id primitive.ObjectID, update models.DetailsUpdate) (*models.Issue, error)
	List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int64, error)
	Located(ctx context.Context, limit int) ([]models.Issue, error)
	All(ctx context.Context) ([]models.Issue, error)
	Stats(ctx context.Context) (*models.PlatformStats, error)
}

type ProfileStore interface {
	Create(ctx context.Context, profile *models.Profile) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	// IncrementBalance atomically adds amount to civicCoins and returns the
	// new balance.
	IncrementBalance(ctx context.Context, id primitive.ObjectID, amount int64) (int64, error)
	SetBalance(ctx context.Context, id primitive.ObjectID, balance int64, rank models.Rank) error
	SetRank(ctx context.Context, id primitive.ObjectID, rank models.Rank) error
	// UpdateDetails edits contact fields only and returns the stored profile.
	UpdateDetails(ctx context.Context, id primitive.ObjectID, update models.ProfileUpdate) (*models.Profile, error)
	IncrementReports(ctx context.Context, id primitive.ObjectID, total, resolved int64) error
	Leaderboard(ctx context.Context, userType models.UserType, limit int) ([]models.Profile, error)
	All(ctx context.Context) ([]models.Profile, error)
}

type LedgerStore interface {
	Append(ctx context.Context, entry *models.LedgerEntry) error
	HasEntryForIssue(ctx context.Context, issueID primitive.ObjectID) (bool, error)
	SumForUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
	ListForUser(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.LedgerEntry, error)
}

type NotificationStore interface {
	Insert(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
	UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type VoteStore interface {
	Toggle(ctx context.Context, issueID, userID primitive.ObjectID) (*models.VoteResult, error)
	Count(ctx context.Context, issueID primitive.ObjectID) (int64, error)
	HasVoted(ctx context.Context, issueID, userID primitive.ObjectID) (bool, error)
}

// Repositories groups the stores reachable inside or outside a transaction.
type Repositories interface {
	Issues() IssueStore
	Profiles() ProfileStore
	Ledger() LedgerStore
	Notifications() NotificationStore
	Votes() VoteStore
}

// Store is the unit-of-work boundary. Everything fn does through tx commits
// together, or nothing does if fn returns an error.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Close(ctx context.Context) error
}

// Package ledger is the append-only civic coin ledger and the only writer of
// a profile's civicCoins balance.
package ledger

import (
	"context"
	"fmt"
	"time"

	"civicsync/models"
	"civicsync/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var coinsCredited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "civicsync",
	Name:      "civic_coins_credited_total",
	Help:      "Civic coins credited through the ledger.",
})

type Ledger struct {
	ranks RankTable
	now   func() time.Time
}

func New(ranks RankTable) *Ledger {
	return &Ledger{ranks: ranks, now: time.Now}
}

func (l *Ledger) Ranks() RankTable { return l.ranks }

// Credit appends an entry and raises the user's balance by amount. It must
// run inside the caller's unit of work: tx is the transactional view, so the
// entry, the balance and the rank commit together.
//
// When issueID is set, a second credit for the same issue is rejected with
// models.ErrDuplicateReward.
func (l *Ledger) Credit(ctx context.Context, tx repository.Repositories, userID primitive.ObjectID, amount int64, description string, issueID *primitive.ObjectID) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidAmount, amount)
	}
	if issueID != nil {
		dup, err := tx.Ledger().HasEntryForIssue(ctx, *issueID)
		if err != nil {
			return nil, fmt.Errorf("check existing reward: %w", err)
		}
		if dup {
			return nil, fmt.Errorf("%w: issue %s", models.ErrDuplicateReward, issueID.Hex())
		}
	}

	entry := &models.LedgerEntry{
		ID:              primitive.NewObjectID(),
		UserID:          userID,
		Amount:          amount,
		Description:     description,
		TransactionType: models.TxIssueResolution,
		IssueID:         issueID,
		CreatedAt:       l.now(),
	}
	if err := tx.Ledger().Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	balance, err := tx.Profiles().IncrementBalance(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("increment balance: %w", err)
	}
	if err := tx.Profiles().SetRank(ctx, userID, l.ranks.RankFor(balance)); err != nil {
		return nil, fmt.Errorf("update rank: %w", err)
	}

	coinsCredited.Add(float64(amount))
	return entry, nil
}

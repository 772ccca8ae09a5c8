package ledger

import (
	"context"
	"fmt"
	"sync"

	"civicsync/models"
	"civicsync/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DivergenceKind classifies an invariant violation found by Reconcile.
type DivergenceKind string

const (
	BalanceMismatch        DivergenceKind = "balance_mismatch"
	RankMismatch           DivergenceKind = "rank_mismatch"
	ResolvedWithoutEntry   DivergenceKind = "resolved_without_ledger_entry"
	EntryWithoutResolution DivergenceKind = "ledger_entry_without_resolution"
)

type Divergence struct {
	Kind     DivergenceKind      `json:"kind"`
	UserID   *primitive.ObjectID `json:"userId,omitempty"`
	IssueID  *primitive.ObjectID `json:"issueId,omitempty"`
	Detail   string              `json:"detail"`
	Repaired bool                `json:"repaired"`
}

type Report struct {
	ProfilesChecked int          `json:"profilesChecked"`
	IssuesChecked   int          `json:"issuesChecked"`
	Divergences     []Divergence `json:"divergences"`
}

// Reconciler re-derives balances from the ledger and checks the issue/ledger
// pairing. With repair set, profile balances and ranks are rewritten from
// the ledger sum; issue divergences are only reported.
type Reconciler struct {
	store       repository.Store
	ranks       RankTable
	log         *zap.Logger
	concurrency int
}

func NewReconciler(store repository.Store, ranks RankTable, log *zap.Logger) *Reconciler {
	return &Reconciler{store: store, ranks: ranks, log: log, concurrency: 8}
}

func (r *Reconciler) Run(ctx context.Context, repair bool) (*Report, error) {
	report := &Report{}
	var mu sync.Mutex
	add := func(d Divergence) {
		mu.Lock()
		report.Divergences = append(report.Divergences, d)
		mu.Unlock()
	}

	profiles, err := r.store.Profiles().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	report.ProfilesChecked = len(profiles)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, p := range profiles {
		p := p
		g.Go(func() error {
			return r.checkProfile(gctx, p, repair, add)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	issues, err := r.store.Issues().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	report.IssuesChecked = len(issues)
	for _, issue := range issues {
		has, err := r.store.Ledger().HasEntryForIssue(ctx, issue.ID)
		if err != nil {
			return nil, fmt.Errorf("ledger lookup for issue %s: %w", issue.ID.Hex(), err)
		}
		id := issue.ID
		switch {
		case issue.Status == models.Resolved && (!has || issue.CoinsAwarded == 0):
			add(Divergence{Kind: ResolvedWithoutEntry, IssueID: &id, Detail: fmt.Sprintf("resolved with coinsAwarded=%d ledger=%t", issue.CoinsAwarded, has)})
		case issue.Status != models.Resolved && has:
			add(Divergence{Kind: EntryWithoutResolution, IssueID: &id, Detail: fmt.Sprintf("status %s has a ledger entry", issue.Status)})
		}
	}

	for _, d := range report.Divergences {
		r.log.Warn("ledger divergence",
			zap.String("kind", string(d.Kind)),
			zap.String("detail", d.Detail),
			zap.Bool("repaired", d.Repaired))
	}
	return report, nil
}

func (r *Reconciler) checkProfile(ctx context.Context, p models.Profile, repair bool, add func(Divergence)) error {
	sum, err := r.store.Ledger().SumForUser(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("sum ledger for %s: %w", p.ID.Hex(), err)
	}
	want := r.ranks.RankFor(sum)
	id := p.ID

	var kind DivergenceKind
	var detail string
	switch {
	case p.CivicCoins != sum:
		kind = BalanceMismatch
		detail = fmt.Sprintf("balance %d, ledger sum %d", p.CivicCoins, sum)
	case p.Rank != want:
		kind = RankMismatch
		detail = fmt.Sprintf("rank %q, expected %q", p.Rank, want)
	default:
		return nil
	}

	d := Divergence{Kind: kind, UserID: &id, Detail: detail}
	if repair {
		err := r.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
			// Re-read inside the transaction so a credit that committed
			// after the first read is not undone.
			sum, err := tx.Ledger().SumForUser(ctx, id)
			if err != nil {
				return err
			}
			return tx.Profiles().SetBalance(ctx, id, sum, r.ranks.RankFor(sum))
		})
		if err != nil {
			return fmt.Errorf("repair %s: %w", id.Hex(), err)
		}
		d.Repaired = true
	}
	add(d)
	return nil
}

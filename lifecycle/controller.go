// Package lifecycle drives issues through pending -> in_progress -> resolved
// and applies the side effects each transition requires: the reporter's
// reward on resolution and a mailbox notification on claim and resolution.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civicsync/ledger"
	"civicsync/models"
	"civicsync/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

//go:generate mockgen -source=controller.go -destination=mocks_test.go -package=lifecycle_test

const defaultDepartment = "General"

// Session identifies the actor of a call. It is resolved by the transport
// layer and passed in explicitly.
type Session struct {
	ActorID primitive.ObjectID
}

// Notifier delivers a notification. Failures are the notifier's concern and
// never reach the caller.
type Notifier interface {
	Enqueue(ctx context.Context, n *models.Notification)
}

// EventPublisher broadcasts issue changes to realtime subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event models.IssueEvent) error
}

// LeaderboardInvalidator drops any cached leaderboard after a credit.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context) error
}

type Controller struct {
	store       repository.Store
	ledger      *ledger.Ledger
	rewards     RewardTable
	notifier    Notifier
	events      EventPublisher
	leaderboard LeaderboardInvalidator
	log         *zap.Logger
	now         func() time.Time
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithLeaderboard(l LeaderboardInvalidator) Option {
	return func(c *Controller) { c.leaderboard = l }
}

func New(store repository.Store, l *ledger.Ledger, rewards RewardTable, notifier Notifier, events EventPublisher, log *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		ledger:   l,
		rewards:  rewards,
		notifier: notifier,
		events:   events,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func checkTransition(from, to models.IssueStatus) error {
	switch to {
	case models.InProgress:
		if from == models.Pending {
			return nil
		}
	case models.Resolved:
		if from == models.Pending || from == models.InProgress {
			return nil
		}
	}
	return &models.TransitionError{From: from, To: to}
}

func (c *Controller) actor(ctx context.Context, sess Session) (*models.Profile, error) {
	p, err := c.store.Profiles().Get(ctx, sess.ActorID)
	if err != nil {
		return nil, fmt.Errorf("actor %s: %w", sess.ActorID.Hex(), err)
	}
	return p, nil
}

func (c *Controller) governmentActor(ctx context.Context, sess Session) (*models.Profile, error) {
	p, err := c.actor(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !p.IsGovernment() {
		return nil, fmt.Errorf("%w: %s is not government staff", models.ErrUnauthorized, p.ID.Hex())
	}
	return p, nil
}

// ReportIssue files a new pending issue for the session's citizen and bumps
// their report counter in the same unit of work.
func (c *Controller) ReportIssue(ctx context.Context, sess Session, input models.IssueInput) (issue *models.Issue, err error) {
	defer func() { observe("report", err) }()

	reporter, err := c.actor(ctx, sess)
	if err != nil {
		return nil, err
	}
	if reporter.UserType != models.Citizen {
		return nil, fmt.Errorf("%w: only citizens can report issues", models.ErrUnauthorized)
	}

	issue, err = models.NewIssue(reporter.ID, input, c.now())
	if err != nil {
		return nil, err
	}
	err = c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if err := tx.Issues().Create(ctx, issue); err != nil {
			return fmt.Errorf("create issue: %w", err)
		}
		return tx.Profiles().IncrementReports(ctx, reporter.ID, 1, 0)
	})
	if err != nil {
		return nil, err
	}

	c.publish(ctx, "issue_created", issue)
	return issue, nil
}

// ClaimIssue moves a pending issue to in_progress and assigns it to the
// acting government user.
func (c *Controller) ClaimIssue(ctx context.Context, sess Session, issueID primitive.ObjectID) (issue *models.Issue, err error) {
	defer func() { observe("claim", err) }()

	actor, err := c.governmentActor(ctx, sess)
	if err != nil {
		return nil, err
	}
	current, err := c.store.Issues().Get(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("issue %s: %w", issueID.Hex(), err)
	}
	if err := checkTransition(current.Status, models.InProgress); err != nil {
		return nil, err
	}

	department := strings.TrimSpace(actor.Department)
	if department == "" {
		department = defaultDepartment
	}
	assignee := actor.ID
	update := models.StatusUpdate{
		Status:             models.InProgress,
		AssignedTo:         &assignee,
		AssignedDepartment: &department,
		UpdatedAt:          c.now(),
	}

	issue, err = c.store.Issues().CompareAndSwapStatus(ctx, issueID, models.Pending, update)
	if err != nil {
		return nil, fmt.Errorf("claim issue %s: %w", issueID.Hex(), err)
	}

	c.notify(ctx, issue, models.NotifyIssueClaimed,
		"Issue in progress: "+issue.Title,
		fmt.Sprintf("Your report is being handled by %s.", department))
	c.publish(ctx, "issue_claimed", issue)
	return issue, nil
}

// ResolveIssue closes a pending or in-progress issue and credits the
// reporter. The status write, the ledger entry, and the reporter's counters
// commit together. Only the caller whose compare-and-swap observes the
// expected prior status wins; a concurrent loser gets
// models.ErrConcurrentModification and leaves the ledger untouched.
func (c *Controller) ResolveIssue(ctx context.Context, sess Session, issueID primitive.ObjectID, notes *string) (issue *models.Issue, err error) {
	defer func() { observe("resolve", err) }()

	if _, err := c.governmentActor(ctx, sess); err != nil {
		return nil, err
	}
	current, err := c.store.Issues().Get(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("issue %s: %w", issueID.Hex(), err)
	}
	if err := checkTransition(current.Status, models.Resolved); err != nil {
		return nil, err
	}
	reward, err := c.rewards.For(current.Priority)
	if err != nil {
		return nil, err
	}

	now := c.now()
	update := models.StatusUpdate{
		Status:       models.Resolved,
		CoinsAwarded: reward,
		ResolvedAt:   &now,
		UpdatedAt:    now,
	}
	if notes != nil && strings.TrimSpace(*notes) != "" {
		trimmed := strings.TrimSpace(*notes)
		update.GovernmentNotes = &trimmed
	}

	err = c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		resolved, err := tx.Issues().CompareAndSwapStatus(ctx, issueID, current.Status, update)
		if err != nil {
			return fmt.Errorf("resolve issue %s: %w", issueID.Hex(), err)
		}
		id := resolved.ID
		if _, err := c.ledger.Credit(ctx, tx, resolved.ReporterID, reward, "Issue resolved: "+resolved.Title, &id); err != nil {
			return err
		}
		if err := tx.Profiles().IncrementReports(ctx, resolved.ReporterID, 0, 1); err != nil {
			return fmt.Errorf("count resolved report: %w", err)
		}
		issue = resolved
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.leaderboard != nil {
		if err := c.leaderboard.Invalidate(ctx); err != nil {
			c.log.Warn("leaderboard invalidation failed", zap.Error(err))
		}
	}
	c.notify(ctx, issue, models.NotifyIssueResolved,
		"Issue resolved: "+issue.Title,
		fmt.Sprintf("Your report has been resolved. You earned %d Civic Coins!", reward))
	c.publish(ctx, "issue_resolved", issue)
	return issue, nil
}

// UpdateIssueDetails edits government notes and department without touching
// status. Concurrent edits are last-write-wins.
func (c *Controller) UpdateIssueDetails(ctx context.Context, sess Session, issueID primitive.ObjectID, notes, department *string) (issue *models.Issue, err error) {
	defer func() { observe("update_details", err) }()

	if _, err := c.governmentActor(ctx, sess); err != nil {
		return nil, err
	}
	if notes == nil && department == nil {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrInvalidInput)
	}
	issue, err = c.store.Issues().UpdateDetails(ctx, issueID, models.DetailsUpdate{
		GovernmentNotes:    notes,
		AssignedDepartment: department,
		UpdatedAt:          c.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("update issue %s: %w", issueID.Hex(), err)
	}
	c.publish(ctx, "issue_updated", issue)
	return issue, nil
}

func (c *Controller) notify(ctx context.Context, issue *models.Issue, kind models.NotificationType, title, message string) {
	id := issue.ID
	c.notifier.Enqueue(ctx, &models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    issue.ReporterID,
		Title:     title,
		Message:   message,
		Type:      kind,
		IssueID:   &id,
		CreatedAt: c.now(),
	})
}

func (c *Controller) publish(ctx context.Context, kind string, issue *models.Issue) {
	if c.events == nil {
		return
	}
	err := c.events.Publish(ctx, models.IssueEvent{
		Type:      kind,
		IssueID:   issue.ID,
		Status:    issue.Status,
		UpdatedAt: issue.UpdatedAt,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("issue event publish failed", zap.String("issue", issue.ID.Hex()), zap.Error(err))
	}
}

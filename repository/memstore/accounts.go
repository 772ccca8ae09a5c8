package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type profileRepo struct{ v view }

func (r profileRepo) Create(_ context.Context, p *models.Profile) error {
	return r.v.with(func(st *state) error {
		for _, existing := range st.profiles {
			if strings.EqualFold(existing.Email, p.Email) {
				return models.ErrEmailTaken
			}
		}
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		st.profiles[p.ID] = *p
		return nil
	})
}

func (r profileRepo) Get(_ context.Context, id primitive.ObjectID) (*models.Profile, error) {
	var out models.Profile
	err := r.v.with(func(st *state) error {
		p, ok := st.profiles[id]
		if !ok {
			return models.ErrNotFound
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r profileRepo) GetByEmail(_ context.Context, email string) (*models.Profile, error) {
	var out *models.Profile
	err := r.v.with(func(st *state) error {
		for _, p := range st.profiles {
			if strings.EqualFold(p.Email, email) {
				p := p
				out = &p
				return nil
			}
		}
		return models.ErrNotFound
	})
	return out, err
}

func (r profileRepo) update(id primitive.ObjectID, fn func(p *models.Profile)) error {
	return r.v.with(func(st *state) error {
		p, ok := st.profiles[id]
		if !ok {
			return models.ErrNotFound
		}
		fn(&p)
		st.profiles[id] = p
		return nil
	})
}

func (r profileRepo) IncrementBalance(_ context.Context, id primitive.ObjectID, amount int64) (int64, error) {
	var balance int64
	err := r.update(id, func(p *models.Profile) {
		p.CivicCoins += amount
		balance = p.CivicCoins
	})
	return balance, err
}

func (r profileRepo) SetBalance(_ context.Context, id primitive.ObjectID, balance int64, rank models.Rank) error {
	return r.update(id, func(p *models.Profile) {
		p.CivicCoins = balance
		p.Rank = rank
	})
}

func (r profileRepo) SetRank(_ context.Context, id primitive.ObjectID, rank models.Rank) error {
	return r.update(id, func(p *models.Profile) { p.Rank = rank })
}

func (r profileRepo) UpdateDetails(_ context.Context, id primitive.ObjectID, u models.ProfileUpdate) (*models.Profile, error) {
	var out models.Profile
	err := r.update(id, func(p *models.Profile) {
		u.Apply(p)
		out = *p
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r profileRepo) IncrementReports(_ context.Context, id primitive.ObjectID, total, resolved int64) error {
	return r.update(id, func(p *models.Profile) {
		p.TotalReports += total
		p.ResolvedReports += resolved
	})
}

func (r profileRepo) Leaderboard(_ context.Context, userType models.UserType, limit int) ([]models.Profile, error) {
	var out []models.Profile
	err := r.v.with(func(st *state) error {
		for _, p := range st.profiles {
			if userType == "" || p.UserType == userType {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CivicCoins != out[j].CivicCoins {
			return out[i].CivicCoins > out[j].CivicCoins
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r profileRepo) All(_ context.Context) ([]models.Profile, error) {
	var out []models.Profile
	err := r.v.with(func(st *state) error {
		for _, p := range st.profiles {
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

type ledgerRepo struct{ v view }

func (r ledgerRepo) Append(_ context.Context, entry *models.LedgerEntry) error {
	return r.v.with(func(st *state) error {
		if entry.IssueID != nil {
			for _, e := range st.ledger {
				if e.IssueID != nil && *e.IssueID == *entry.IssueID {
					return models.ErrDuplicateReward
				}
			}
		}
		if entry.ID.IsZero() {
			entry.ID = primitive.NewObjectID()
		}
		st.ledger = append(st.ledger, *entry)
		return nil
	})
}

func (r ledgerRepo) HasEntryForIssue(_ context.Context, issueID primitive.ObjectID) (bool, error) {
	var found bool
	err := r.v.with(func(st *state) error {
		for _, e := range st.ledger {
			if e.IssueID != nil && *e.IssueID == issueID {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r ledgerRepo) SumForUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	var sum int64
	err := r.v.with(func(st *state) error {
		for _, e := range st.ledger {
			if e.UserID == userID {
				sum += e.Amount
			}
		}
		return nil
	})
	return sum, err
}

func (r ledgerRepo) ListForUser(_ context.Context, userID primitive.ObjectID, limit int) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	err := r.v.with(func(st *state) error {
		for i := len(st.ledger) - 1; i >= 0; i-- {
			if st.ledger[i].UserID == userID {
				out = append(out, st.ledger[i])
				if limit > 0 && len(out) == limit {
					break
				}
			}
		}
		return nil
	})
	return out, err
}

type notificationRepo struct{ v view }

func (r notificationRepo) Insert(_ context.Context, n *models.Notification) error {
	return r.v.with(func(st *state) error {
		if n.ID.IsZero() {
			n.ID = primitive.NewObjectID()
		}
		st.notifications = append(st.notifications, *n)
		return nil
	})
}

func (r notificationRepo) ListForUser(_ context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := r.v.with(func(st *state) error {
		for i := len(st.notifications) - 1; i >= 0; i-- {
			if st.notifications[i].UserID == userID {
				out = append(out, st.notifications[i])
				if limit > 0 && len(out) == limit {
					break
				}
			}
		}
		return nil
	})
	return out, err
}

func (r notificationRepo) MarkRead(_ context.Context, id, userID primitive.ObjectID) error {
	return r.v.with(func(st *state) error {
		for i := range st.notifications {
			if st.notifications[i].ID == id && st.notifications[i].UserID == userID {
				st.notifications[i].Read = true
				return nil
			}
		}
		return models.ErrNotFound
	})
}

func (r notificationRepo) UnreadCount(_ context.Context, userID primitive.ObjectID) (int64, error) {
	var n int64
	err := r.v.with(func(st *state) error {
		for _, notif := range st.notifications {
			if notif.UserID == userID && !notif.Read {
				n++
			}
		}
		return nil
	})
	return n, err
}

type voteRepo struct{ v view }

func (r voteRepo) Toggle(_ context.Context, issueID, userID primitive.ObjectID) (*models.VoteResult, error) {
	res := &models.VoteResult{}
	err := r.v.with(func(st *state) error {
		if _, ok := st.issues[issueID]; !ok {
			return models.ErrNotFound
		}
		key := voteKey{issue: issueID, user: userID}
		if _, ok := st.votes[key]; ok {
			delete(st.votes, key)
		} else {
			st.votes[key] = models.NewVote(issueID, userID, time.Now())
			res.Voted = true
		}
		for k := range st.votes {
			if k.issue == issueID {
				res.Votes++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r voteRepo) Count(_ context.Context, issueID primitive.ObjectID) (int64, error) {
	var n int64
	err := r.v.with(func(st *state) error {
		for k := range st.votes {
			if k.issue == issueID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r voteRepo) HasVoted(_ context.Context, issueID, userID primitive.ObjectID) (bool, error) {
	var ok bool
	err := r.v.with(func(st *state) error {
		_, ok = st.votes[voteKey{issue: issueID, user: userID}]
		return nil
	})
	return ok, err
}

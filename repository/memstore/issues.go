package memstore

import (
	"context"
	"sort"
	"strings"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type issueRepo struct{ v view }

func (r issueRepo) Create(_ context.Context, issue *models.Issue) error {
	if err := issue.Validate(); err != nil {
		return err
	}
	return r.v.with(func(st *state) error {
		if issue.ID.IsZero() {
			issue.ID = primitive.NewObjectID()
		}
		st.issues[issue.ID] = *issue
		return nil
	})
}

func (r issueRepo) Get(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var out models.Issue
	err := r.v.with(func(st *state) error {
		issue, ok := st.issues[id]
		if !ok {
			return models.ErrNotFound
		}
		out = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r issueRepo) CompareAndSwapStatus(_ context.Context, id primitive.ObjectID, expected models.IssueStatus, update models.StatusUpdate) (*models.Issue, error) {
	var out models.Issue
	err := r.v.with(func(st *state) error {
		issue, ok := st.issues[id]
		if !ok {
			return models.ErrNotFound
		}
		if issue.Status != expected {
			return models.ErrConcurrentModification
		}
		update.Apply(&issue)
		if err := issue.Validate(); err != nil {
			return err
		}
		st.issues[id] = issue
		out = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r issueRepo) UpdateDetails(_ context.Context, id primitive.ObjectID, update models.DetailsUpdate) (*models.Issue, error) {
	var out models.Issue
	err := r.v.with(func(st *state) error {
		issue, ok := st.issues[id]
		if !ok {
			return models.ErrNotFound
		}
		if update.GovernmentNotes != nil {
			issue.GovernmentNotes = update.GovernmentNotes
		}
		if update.AssignedDepartment != nil {
			issue.AssignedDepartment = update.AssignedDepartment
		}
		issue.UpdatedAt = update.UpdatedAt
		st.issues[id] = issue
		out = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func matches(issue models.Issue, f models.IssueFilter) bool {
	if f.Status != "" && issue.Status != f.Status {
		return false
	}
	if f.Category != "" && issue.Category != f.Category {
		return false
	}
	if f.Priority != "" && issue.Priority != f.Priority {
		return false
	}
	if f.ReporterID != nil && issue.ReporterID != *f.ReporterID {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(issue.Title), q) &&
			!strings.Contains(strings.ToLower(issue.Description), q) &&
			!strings.Contains(strings.ToLower(issue.Address), q) {
			return false
		}
	}
	return true
}

func sortIssues(issues []models.Issue, oldest bool) {
	sort.SliceStable(issues, func(i, j int) bool {
		if oldest {
			return issues[i].CreatedAt.Before(issues[j].CreatedAt)
		}
		return issues[i].CreatedAt.After(issues[j].CreatedAt)
	})
}

func (r issueRepo) List(_ context.Context, f models.IssueFilter) ([]models.Issue, int64, error) {
	f.Normalize()
	var out []models.Issue
	var total int64
	err := r.v.with(func(st *state) error {
		var all []models.Issue
		for _, issue := range st.issues {
			if matches(issue, f) {
				all = append(all, issue)
			}
		}
		sortIssues(all, f.Oldest)
		total = int64(len(all))
		start := f.Skip()
		if start >= len(all) {
			return nil
		}
		end := start + f.Limit
		if end > len(all) {
			end = len(all)
		}
		out = all[start:end]
		return nil
	})
	return out, total, err
}

func (r issueRepo) Located(_ context.Context, limit int) ([]models.Issue, error) {
	var out []models.Issue
	err := r.v.with(func(st *state) error {
		for _, issue := range st.issues {
			if issue.Latitude != nil && issue.Longitude != nil {
				out = append(out, issue)
			}
		}
		return nil
	})
	sortIssues(out, false)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r issueRepo) All(_ context.Context) ([]models.Issue, error) {
	var out []models.Issue
	err := r.v.with(func(st *state) error {
		for _, issue := range st.issues {
			out = append(out, issue)
		}
		return nil
	})
	sortIssues(out, true)
	return out, err
}

func (r issueRepo) Stats(_ context.Context) (*models.PlatformStats, error) {
	stats := &models.PlatformStats{IssuesByCategory: map[string]int64{}}
	err := r.v.with(func(st *state) error {
		reporters := map[primitive.ObjectID]struct{}{}
		var resolvedHours float64
		for _, issue := range st.issues {
			stats.TotalIssues++
			stats.IssuesByCategory[string(issue.Category)]++
			reporters[issue.ReporterID] = struct{}{}
			switch issue.Status {
			case models.Pending:
				stats.PendingIssues++
			case models.InProgress:
				stats.InProgressIssues++
			case models.Resolved:
				stats.ResolvedIssues++
				resolvedHours += issue.ResolvedAt.Sub(issue.CreatedAt).Hours()
			}
		}
		stats.ActiveCitizens = int64(len(reporters))
		if stats.ResolvedIssues > 0 {
			stats.AvgResolutionHours = resolvedHours / float64(stats.ResolvedIssues)
		}
		return nil
	})
	return stats, err
}

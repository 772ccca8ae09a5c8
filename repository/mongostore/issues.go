package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type issueRepo struct{ c *mongo.Collection }

func decodeIssue(res *mongo.SingleResult) (*models.Issue, error) {
	var issue models.Issue
	if err := res.Decode(&issue); err != nil {
		return nil, notFound(err)
	}
	if err := issue.Validate(); err != nil {
		return nil, fmt.Errorf("issue %s: %w", issue.ID.Hex(), err)
	}
	return &issue, nil
}

func decodeIssues(ctx context.Context, cursor *mongo.Cursor) ([]models.Issue, error) {
	defer cursor.Close(ctx)
	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	for i := range issues {
		if err := issues[i].Validate(); err != nil {
			return nil, fmt.Errorf("issue %s: %w", issues[i].ID.Hex(), err)
		}
	}
	return issues, nil
}

func (r issueRepo) Create(ctx context.Context, issue *models.Issue) error {
	if err := issue.Validate(); err != nil {
		return err
	}
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	_, err := r.c.InsertOne(ctx, issue)
	return err
}

func (r issueRepo) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	return decodeIssue(r.c.FindOne(ctx, bson.M{"_id": id}))
}

func (r issueRepo) CompareAndSwapStatus(ctx context.Context, id primitive.ObjectID, expected models.IssueStatus, u models.StatusUpdate) (*models.Issue, error) {
	set := bson.M{"status": u.Status, "updatedAt": u.UpdatedAt}
	if u.AssignedTo != nil {
		set["assignedTo"] = *u.AssignedTo
	}
	if u.AssignedDepartment != nil {
		set["assignedDepartment"] = *u.AssignedDepartment
	}
	if u.GovernmentNotes != nil {
		set["governmentNotes"] = *u.GovernmentNotes
	}
	if u.CoinsAwarded > 0 {
		set["coinsAwarded"] = u.CoinsAwarded
	}
	if u.ResolvedAt != nil {
		set["resolvedAt"] = *u.ResolvedAt
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	issue, err := decodeIssue(r.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": expected}, bson.M{"$set": set}, opts))
	if err == nil {
		return issue, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	// The guard missed: either the issue is gone or someone else moved it.
	count, cerr := r.c.CountDocuments(ctx, bson.M{"_id": id})
	if cerr != nil {
		return nil, cerr
	}
	if count == 0 {
		return nil, models.ErrNotFound
	}
	return nil, models.ErrConcurrentModification
}

func (r issueRepo) UpdateDetails(ctx context.Context, id primitive.ObjectID, u models.DetailsUpdate) (*models.Issue, error) {
	set := bson.M{"updatedAt": u.UpdatedAt}
	if u.GovernmentNotes != nil {
		set["governmentNotes"] = *u.GovernmentNotes
	}
	if u.AssignedDepartment != nil {
		set["assignedDepartment"] = *u.AssignedDepartment
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return decodeIssue(r.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts))
}

func buildFilter(f models.IssueFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Priority != "" {
		filter["priority"] = f.Priority
	}
	if f.ReporterID != nil {
		filter["reporterId"] = *f.ReporterID
	}
	if f.Search != "" {
		pattern := regexp.QuoteMeta(f.Search)
		filter["$or"] = []bson.M{
			{"title": bson.M{"$regex": pattern, "$options": "i"}},
			{"description": bson.M{"$regex": pattern, "$options": "i"}},
			{"address": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	return filter
}

func (r issueRepo) List(ctx context.Context, f models.IssueFilter) ([]models.Issue, int64, error) {
	f.Normalize()
	filter := buildFilter(f)

	total, err := r.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	order := -1
	if f.Oldest {
		order = 1
	}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: order}}).
		SetSkip(int64(f.Skip())).
		SetLimit(int64(f.Limit))

	cursor, err := r.c.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	issues, err := decodeIssues(ctx, cursor)
	return issues, total, err
}

func (r issueRepo) Located(ctx context.Context, limit int) ([]models.Issue, error) {
	filter := bson.M{
		"latitude":  bson.M{"$exists": true, "$ne": nil},
		"longitude": bson.M{"$exists": true, "$ne": nil},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}
	cursor, err := r.c.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	return decodeIssues(ctx, cursor)
}

func (r issueRepo) All(ctx context.Context) ([]models.Issue, error) {
	cursor, err := r.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeIssues(ctx, cursor)
}

func (r issueRepo) Stats(ctx context.Context) (*models.PlatformStats, error) {
	stats := &models.PlatformStats{IssuesByCategory: map[string]int64{}}

	statusCursor, err := r.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"avgResolutionMs": bson.M{"$avg": bson.M{
				"$cond": bson.A{
					bson.M{"$eq": bson.A{"$status", models.Resolved}},
					bson.M{"$subtract": bson.A{"$resolvedAt", "$createdAt"}},
					nil,
				},
			}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("status aggregation: %w", err)
	}
	var byStatus []struct {
		Status          models.IssueStatus `bson:"_id"`
		Count           int64              `bson:"count"`
		AvgResolutionMs *float64           `bson:"avgResolutionMs"`
	}
	if err := statusCursor.All(ctx, &byStatus); err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.TotalIssues += row.Count
		switch row.Status {
		case models.Pending:
			stats.PendingIssues = row.Count
		case models.InProgress:
			stats.InProgressIssues = row.Count
		case models.Resolved:
			stats.ResolvedIssues = row.Count
			if row.AvgResolutionMs != nil {
				stats.AvgResolutionHours = *row.AvgResolutionMs / 3_600_000
			}
		}
	}

	categoryCursor, err := r.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("category aggregation: %w", err)
	}
	var byCategory []struct {
		Category string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	if err := categoryCursor.All(ctx, &byCategory); err != nil {
		return nil, err
	}
	for _, row := range byCategory {
		stats.IssuesByCategory[row.Category] = row.Count
	}

	reporters, err := r.c.Distinct(ctx, "reporterId", bson.M{})
	if err != nil {
		return nil, err
	}
	stats.ActiveCitizens = int64(len(reporters))
	return stats, nil
}

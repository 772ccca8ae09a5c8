package mongostore

import (
	"context"
	"strings"
	"time"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type profileRepo struct{ c *mongo.Collection }

func (r profileRepo) Create(ctx context.Context, p *models.Profile) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.Email = strings.ToLower(p.Email)
	_, err := r.c.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrEmailTaken
	}
	return err
}

func (r profileRepo) Get(ctx context.Context, id primitive.ObjectID) (*models.Profile, error) {
	var p models.Profile
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r profileRepo) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	if err := r.c.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r profileRepo) IncrementBalance(ctx context.Context, id primitive.ObjectID, amount int64) (int64, error) {
	var p models.Profile
	err := r.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"civicCoins": amount}, "$set": bson.M{"updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err != nil {
		return 0, notFound(err)
	}
	return p.CivicCoins, nil
}

func (r profileRepo) set(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r profileRepo) SetBalance(ctx context.Context, id primitive.ObjectID, balance int64, rank models.Rank) error {
	return r.set(ctx, id, bson.M{"$set": bson.M{"civicCoins": balance, "rank": rank, "updatedAt": time.Now()}})
}

func (r profileRepo) SetRank(ctx context.Context, id primitive.ObjectID, rank models.Rank) error {
	return r.set(ctx, id, bson.M{"$set": bson.M{"rank": rank}})
}

func (r profileRepo) UpdateDetails(ctx context.Context, id primitive.ObjectID, u models.ProfileUpdate) (*models.Profile, error) {
	set := bson.M{"updatedAt": u.UpdatedAt}
	fields := map[string]*string{
		"fullName":     u.FullName,
		"phoneNumber":  u.PhoneNumber,
		"address":      u.Address,
		"department":   u.Department,
		"governmentId": u.GovernmentID,
	}
	for key, value := range fields {
		if value != nil {
			set[key] = *value
		}
	}

	var p models.Profile
	err := r.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r profileRepo) IncrementReports(ctx context.Context, id primitive.ObjectID, total, resolved int64) error {
	return r.set(ctx, id, bson.M{"$inc": bson.M{"totalReports": total, "resolvedReports": resolved}})
}

func (r profileRepo) Leaderboard(ctx context.Context, userType models.UserType, limit int) ([]models.Profile, error) {
	filter := bson.M{}
	if userType != "" {
		filter["userType"] = userType
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "civicCoins", Value: -1}, {Key: "createdAt", Value: 1}}).
		SetProjection(bson.M{"password": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r profileRepo) All(ctx context.Context) ([]models.Profile, error) {
	return r.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (r profileRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Profile, error) {
	cursor, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []models.Profile
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type ledgerRepo struct{ c *mongo.Collection }

func (r ledgerRepo) Append(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	_, err := r.c.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrDuplicateReward
	}
	return err
}

func (r ledgerRepo) HasEntryForIssue(ctx context.Context, issueID primitive.ObjectID) (bool, error) {
	count, err := r.c.CountDocuments(ctx, bson.M{"issueId": issueID}, options.Count().SetLimit(1))
	return count > 0, err
}

func (r ledgerRepo) SumForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	cursor, err := r.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	})
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)
	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (r ledgerRepo) ListForUser(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.LedgerEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.c.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []models.LedgerEntry
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type notificationRepo struct{ c *mongo.Collection }

func (r notificationRepo) Insert(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	_, err := r.c.InsertOne(ctx, n)
	return err
}

func (r notificationRepo) ListForUser(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.c.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []models.Notification
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r notificationRepo) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": id, "userId": userID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r notificationRepo) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.c.CountDocuments(ctx, bson.M{"userId": userID, "read": false})
}

type voteRepo struct {
	votes  *mongo.Collection
	issues *mongo.Collection
}

func (r voteRepo) Toggle(ctx context.Context, issueID, userID primitive.ObjectID) (*models.VoteResult, error) {
	count, err := r.issues.CountDocuments(ctx, bson.M{"_id": issueID})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, models.ErrNotFound
	}

	res := &models.VoteResult{}
	del, err := r.votes.DeleteOne(ctx, bson.M{"issue": issueID, "user": userID})
	if err != nil {
		return nil, err
	}
	if del.DeletedCount == 0 {
		vote := models.NewVote(issueID, userID, time.Now())
		// A duplicate key means a concurrent request already voted.
		if _, err := r.votes.InsertOne(ctx, vote); err != nil && !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		res.Voted = true
	}
	res.Votes, err = r.Count(ctx, issueID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r voteRepo) Count(ctx context.Context, issueID primitive.ObjectID) (int64, error) {
	return r.votes.CountDocuments(ctx, bson.M{"issue": issueID})
}

func (r voteRepo) HasVoted(ctx context.Context, issueID, userID primitive.ObjectID) (bool, error) {
	count, err := r.votes.CountDocuments(ctx, bson.M{"issue": issueID, "user": userID})
	return count > 0, err
}

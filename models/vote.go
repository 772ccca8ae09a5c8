package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vote is one user's upvote on an issue. A user holds at most one vote per
// issue; mongostore backs this with a unique (issue, user) index.
type Vote struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Issue     primitive.ObjectID `bson:"issue" json:"issue"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

func NewVote(issueID, userID primitive.ObjectID, at time.Time) Vote {
	return Vote{ID: primitive.NewObjectID(), Issue: issueID, User: userID, CreatedAt: at}
}

// VoteResult is the outcome of toggling a vote.
type VoteResult struct {
	Voted bool  `json:"voted"`
	Votes int64 `json:"votes"`
}

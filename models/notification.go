package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType tags what a notification is about.
type NotificationType string

const (
	NotifyIssueClaimed  NotificationType = "issue_claimed"
	NotifyIssueResolved NotificationType = "issue_resolved"
)

// Notification is a mailbox message addressed to one user.
type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID  `bson:"userId" json:"userId"`
	Title     string              `bson:"title" json:"title"`
	Message   string              `bson:"message" json:"message"`
	Type      NotificationType    `bson:"type" json:"type"`
	IssueID   *primitive.ObjectID `bson:"issueId,omitempty" json:"issueId,omitempty"`
	Read      bool                `bson:"read" json:"read"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}

// IssueEvent is broadcast on the realtime channel whenever an issue changes.
type IssueEvent struct {
	Type      string             `json:"type"`
	IssueID   primitive.ObjectID `json:"issueId"`
	Status    IssueStatus        `json:"status"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

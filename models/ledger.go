package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionType names the business reason for a ledger entry.
type TransactionType string

const TxIssueResolution TransactionType = "issue_resolution"

// LedgerEntry is one immutable civic coin credit.
type LedgerEntry struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"`
	Amount          int64               `bson:"amount" json:"amount"`
	Description     string              `bson:"description" json:"description"`
	TransactionType TransactionType     `bson:"transactionType" json:"transactionType"`
	IssueID         *primitive.ObjectID `bson:"issueId,omitempty" json:"issueId,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
}

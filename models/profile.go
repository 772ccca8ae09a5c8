package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// UserType enum
type UserType string

const (
	Citizen    UserType = "citizen"
	Government UserType = "government"
)

func (t UserType) Valid() bool {
	return t == Citizen || t == Government
}

// Rank is the display tier derived from a coin balance.
type Rank string

const (
	Bronze   Rank = "bronze"
	Silver   Rank = "silver"
	Gold     Rank = "gold"
	Platinum Rank = "platinum"
	Diamond  Rank = "diamond"
)

func (r Rank) Valid() bool {
	switch r {
	case Bronze, Silver, Gold, Platinum, Diamond:
		return true
	}
	return false
}

// Profile is a registered account together with its civic standing.
type Profile struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName        string             `bson:"fullName" json:"fullName"`
	Email           string             `bson:"email" json:"email"`
	Password        string             `bson:"password,omitempty" json:"-"`
	UserType        UserType           `bson:"userType" json:"userType"`
	Department      string             `bson:"department,omitempty" json:"department,omitempty"`
	GovernmentID    string             `bson:"governmentId,omitempty" json:"governmentId,omitempty"`
	PhoneNumber     string             `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	Address         string             `bson:"address,omitempty" json:"address,omitempty"`
	CivicCoins      int64              `bson:"civicCoins" json:"civicCoins"`
	Rank            Rank               `bson:"rank" json:"rank"`
	TotalReports    int64              `bson:"totalReports" json:"totalReports"`
	ResolvedReports int64              `bson:"resolvedReports" json:"resolvedReports"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ProfileUpdate carries the self-editable contact fields. Nil fields are
// left unchanged. Account type, balance and rank are never editable here.
type ProfileUpdate struct {
	FullName     *string
	PhoneNumber  *string
	Address      *string
	Department   *string
	GovernmentID *string
	UpdatedAt    time.Time
}

// Apply copies the set fields onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.PhoneNumber != nil {
		p.PhoneNumber = *u.PhoneNumber
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
	if u.Department != nil {
		p.Department = *u.Department
	}
	if u.GovernmentID != nil {
		p.GovernmentID = *u.GovernmentID
	}
	p.UpdatedAt = u.UpdatedAt
}

func (p *Profile) IsGovernment() bool {
	return p.UserType == Government
}

func (p *Profile) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.Password = string(hashed)
	return nil
}

func (p *Profile) ComparePassword(candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(p.Password), []byte(candidate))
	return err == nil
}

// LeaderboardEntry is one ranked row of the public leaderboard.
type LeaderboardEntry struct {
	Position        int                `json:"position"`
	ID              primitive.ObjectID `json:"id"`
	FullName        string             `json:"fullName"`
	UserType        UserType           `json:"userType"`
	CivicCoins      int64              `json:"civicCoins"`
	Rank            Rank               `json:"rank"`
	TotalReports    int64              `json:"totalReports"`
	ResolvedReports int64              `json:"resolvedReports"`
}

// PlatformStats aggregates issue activity for the dashboards.
type PlatformStats struct {
	TotalIssues        int64            `json:"totalIssues"`
	PendingIssues      int64            `json:"pendingIssues"`
	InProgressIssues   int64            `json:"inProgressIssues"`
	ResolvedIssues     int64            `json:"resolvedIssues"`
	ActiveCitizens     int64            `json:"activeCitizens"`
	AvgResolutionHours float64          `json:"avgResolutionHours"`
	IssuesByCategory   map[string]int64 `json:"issuesByCategory"`
}

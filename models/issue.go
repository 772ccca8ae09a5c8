package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Roads       IssueCategory = "roads"
	Utilities   IssueCategory = "utilities"
	Parks       IssueCategory = "parks"
	Safety      IssueCategory = "safety"
	Environment IssueCategory = "environment"
	Other       IssueCategory = "other"
)

// Valid reports whether c is a known category.
func (c IssueCategory) Valid() bool {
	switch c {
	case Roads, Utilities, Parks, Safety, Environment, Other:
		return true
	}
	return false
}

// IssueStatus enum
type IssueStatus string

const (
	Pending    IssueStatus = "pending"
	InProgress IssueStatus = "in_progress"
	Resolved   IssueStatus = "resolved"
)

func (s IssueStatus) Valid() bool {
	switch s {
	case Pending, InProgress, Resolved:
		return true
	}
	return false
}

// IssuePriority enum
type IssuePriority string

const (
	Low    IssuePriority = "low"
	Medium IssuePriority = "medium"
	High   IssuePriority = "high"
	Urgent IssuePriority = "urgent"
)

func (p IssuePriority) Valid() bool {
	switch p {
	case Low, Medium, High, Urgent:
		return true
	}
	return false
}

// Media holds the opaque storage URLs attached to an issue.
type Media struct {
	PhotoURLs           []string `bson:"photoUrls,omitempty" json:"photoUrls,omitempty"`
	VideoURLs           []string `bson:"videoUrls,omitempty" json:"videoUrls,omitempty"`
	DocumentURLs        []string `bson:"documentUrls,omitempty" json:"documentUrls,omitempty"`
	VoiceDescriptionURL *string  `bson:"voiceDescriptionUrl,omitempty" json:"voiceDescriptionUrl,omitempty"`
}

// Issue represents a civic issue reported by a citizen
type Issue struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title              string              `bson:"title" json:"title"`
	Description        string              `bson:"description,omitempty" json:"description,omitempty"`
	Category           IssueCategory       `bson:"category" json:"category"`
	Status             IssueStatus         `bson:"status" json:"status"`
	Priority           IssuePriority       `bson:"priority" json:"priority"`
	ReporterID         primitive.ObjectID  `bson:"reporterId" json:"reporterId"`
	AssignedTo         *primitive.ObjectID `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	AssignedDepartment *string             `bson:"assignedDepartment,omitempty" json:"assignedDepartment,omitempty"`
	GovernmentNotes    *string             `bson:"governmentNotes,omitempty" json:"governmentNotes,omitempty"`
	CoinsAwarded       int64               `bson:"coinsAwarded" json:"coinsAwarded"`
	IsAnonymous        bool                `bson:"isAnonymous" json:"isAnonymous"`
	Address            string              `bson:"address,omitempty" json:"address,omitempty"`
	Latitude           *float64            `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude          *float64            `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Media              Media               `bson:"media" json:"media"`
	CreatedAt          time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time           `bson:"updatedAt" json:"updatedAt"`
	ResolvedAt         *time.Time          `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}

// Validate checks the cross-field invariants of an issue record. Stores call
// it on every decoded row so a malformed document never reaches the core.
func (i *Issue) Validate() error {
	if !i.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, i.Status)
	}
	if !i.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, i.Priority)
	}
	if (i.ResolvedAt != nil) != (i.Status == Resolved) {
		return fmt.Errorf("%w: resolvedAt must be set iff status is resolved", ErrInvalidInput)
	}
	if i.CoinsAwarded < 0 {
		return fmt.Errorf("%w: negative coinsAwarded", ErrInvalidInput)
	}
	if i.CoinsAwarded > 0 && i.Status != Resolved {
		return fmt.Errorf("%w: coinsAwarded set on unresolved issue", ErrInvalidInput)
	}
	return nil
}

// IssueInput is the citizen-supplied part of a new issue.
type IssueInput struct {
	Title               string   `json:"title" validate:"required,max=200"`
	Description         string   `json:"description" validate:"max=2000"`
	Category            string   `json:"category" validate:"required"`
	Priority            string   `json:"priority"`
	IsAnonymous         bool     `json:"isAnonymous"`
	Address             string   `json:"address" validate:"max=300"`
	Latitude            *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude           *float64 `json:"longitude" validate:"omitempty,longitude"`
	PhotoURLs           []string `json:"photoUrls" validate:"max=10,dive,url"`
	VideoURLs           []string `json:"videoUrls" validate:"max=5,dive,url"`
	DocumentURLs        []string `json:"documentUrls" validate:"max=5,dive,url"`
	VoiceDescriptionURL *string  `json:"voiceDescriptionUrl" validate:"omitempty,url"`
}

var validate = validator.New()

// NewIssue builds a pending issue for reporter from input. Priority defaults
// to medium when omitted.
func NewIssue(reporter primitive.ObjectID, input IssueInput, now time.Time) (*Issue, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	category := IssueCategory(strings.ToLower(input.Category))
	if !category.Valid() {
		return nil, fmt.Errorf("%w: invalid category %q", ErrInvalidInput, input.Category)
	}
	priority := Medium
	if input.Priority != "" {
		priority = IssuePriority(strings.ToLower(input.Priority))
		if !priority.Valid() {
			return nil, fmt.Errorf("%w: invalid priority %q", ErrInvalidInput, input.Priority)
		}
	}

	return &Issue{
		ID:          primitive.NewObjectID(),
		Title:       input.Title,
		Description: input.Description,
		Category:    category,
		Status:      Pending,
		Priority:    priority,
		ReporterID:  reporter,
		IsAnonymous: input.IsAnonymous,
		Address:     strings.TrimSpace(input.Address),
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		Media: Media{
			PhotoURLs:           input.PhotoURLs,
			VideoURLs:           input.VideoURLs,
			DocumentURLs:        input.DocumentURLs,
			VoiceDescriptionURL: input.VoiceDescriptionURL,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// StatusUpdate is the set of fields written together with a status change.
type StatusUpdate struct {
	Status             IssueStatus
	AssignedTo         *primitive.ObjectID
	AssignedDepartment *string
	GovernmentNotes    *string
	CoinsAwarded       int64
	ResolvedAt         *time.Time
	UpdatedAt          time.Time
}

// Apply copies u onto issue.
func (u StatusUpdate) Apply(issue *Issue) {
	issue.Status = u.Status
	if u.AssignedTo != nil {
		issue.AssignedTo = u.AssignedTo
	}
	if u.AssignedDepartment != nil {
		issue.AssignedDepartment = u.AssignedDepartment
	}
	if u.GovernmentNotes != nil {
		issue.GovernmentNotes = u.GovernmentNotes
	}
	if u.CoinsAwarded > 0 {
		issue.CoinsAwarded = u.CoinsAwarded
	}
	if u.ResolvedAt != nil {
		issue.ResolvedAt = u.ResolvedAt
	}
	issue.UpdatedAt = u.UpdatedAt
}

// DetailsUpdate is an ancillary government edit that never touches status.
type DetailsUpdate struct {
	GovernmentNotes    *string
	AssignedDepartment *string
	UpdatedAt          time.Time
}

// IssueFilter selects issues for dashboard listings.
type IssueFilter struct {
	Status     IssueStatus
	Category   IssueCategory
	Priority   IssuePriority
	ReporterID *primitive.ObjectID
	Search     string
	Oldest     bool
	Page       int
	Limit      int
}

// Normalize clamps paging to sane bounds.
func (f *IssueFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
}

// Skip is the number of records before the current page.
func (f IssueFilter) Skip() int {
	return (f.Page - 1) * f.Limit
}

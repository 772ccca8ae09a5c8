package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrIllegalTransition      = errors.New("illegal status transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrDuplicateReward        = errors.New("duplicate reward")
	ErrInvalidAmount          = errors.New("credit amount must be positive")
	ErrInvalidInput           = errors.New("invalid input")
	ErrEmailTaken             = errors.New("email already registered")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	From IssueStatus
	To   IssueStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

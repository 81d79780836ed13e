package access

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("access: not found")
	ErrConflict     = errors.New("access: resource conflict")
	ErrInvalidInput = errors.New("access: invalid input")
	ErrUnauthorized = errors.New("access: unauthorized")
)

// UnauthorizedError reports a denied operation together with the tiers
// that would have been accepted. It wraps ErrUnauthorized.
type UnauthorizedError struct {
	Op            Operation
	RequiredTiers []Tier
}

func (e *UnauthorizedError) Error() string {
	tiers := make([]string, len(e.RequiredTiers))
	for i, t := range e.RequiredTiers {
		tiers[i] = string(t)
	}
	return fmt.Sprintf("access: unauthorized %s, requires tier %s", e.Op, strings.Join(tiers, " or "))
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// NotFoundError identifies which referenced entity was missing. It wraps
// ErrNotFound.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("access: %s not found", e.Kind)
	}
	return fmt.Sprintf("access: %s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a uniqueness violation on an entity or
// association. It wraps ErrConflict.
type ConflictError struct {
	Kind string
	Key  string
}

func (e *ConflictError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("access: %s already exists", e.Kind)
	}
	return fmt.Sprintf("access: %s %s already exists", e.Kind, e.Key)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

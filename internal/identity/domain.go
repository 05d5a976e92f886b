// Package identity owns user accounts, credentials and role assignments.
// It is the only package that touches password material.
package identity

import (
	"strings"
	"time"
)

// Account represents a registered user account.
type Account struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Approved     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OperationError aggregates the reasons an identity operation was rejected,
// e.g. a duplicate email on registration. All reasons surface to the caller.
type OperationError struct {
	Reasons []string
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if len(e.Reasons) == 0 {
		return "identity: operation failed"
	}
	return "identity: " + strings.Join(e.Reasons, "; ")
}

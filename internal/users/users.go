// Package users persists player profiles and win/loss records.
package users

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no user exists for the given id.
var ErrNotFound = errors.New("user not found")

// User is a registered player.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Wins    int    `json:"wins"`
	Losses  int    `json:"losses"`
	Premium bool   `json:"premium"`
}

// Store is the persistence boundary for players. Implementations must be
// safe for concurrent use.
type Store interface {
	// Get fetches a user by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*User, error)

	// Ensure upserts the user's identity, creating the record on first
	// sign-in and refreshing the display name on later ones. Win/loss
	// counts are never touched.
	Ensure(ctx context.Context, id, name string) (*User, error)

	// RecordWin and RecordLoss bump the user's counters.
	RecordWin(ctx context.Context, id string) error
	RecordLoss(ctx context.Context, id string) error

	// SetPremium flips the user's premium flag.
	SetPremium(ctx context.Context, id string, premium bool) error

	Close() error
}

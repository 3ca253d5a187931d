// models.go -- Shared domain types for the store package.
package store

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrUserNotFound is returned when no user row matches the provider-qualified UID.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists is returned by CreateUser when a row with the same UID already exists.
// Happens when two logins for the same identity race between lookup and insert.
var ErrUserExists = errors.New("user already exists")

// ErrStateConsumed is returned by StateLedger.Consume when the state was already redeemed.
var ErrStateConsumed = errors.New("state already consumed")

// ErrLedgerDisabled is returned by NoopStateLedger.CheckHealth when Redis is not configured.
// Callers use errors.Is to distinguish "not configured" from a real infrastructure failure.
var ErrLedgerDisabled = errors.New("state ledger disabled")

// User represents a row in the users table.
// Nullable columns are pointers; nil means SQL NULL.
type User struct {
	ID           uuid.UUID
	UID          string // provider-qualified, e.g. "discord:80351110224678912"
	DisplayName  *string
	AvatarURL    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastSignInAt *time.Time
}

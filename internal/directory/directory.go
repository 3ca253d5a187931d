// Package directory provisions local user records and issues downstream sign-in tokens.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MGallo-Code/obol/internal/oauth"
	"github.com/MGallo-Code/obol/internal/store"
	"github.com/gofrs/uuid/v5"
)

// UserStore defines the user table operations the directory needs.
// Satisfied by *store.PostgresStore.
type UserStore interface {
	// GetUserByUID returns store.ErrUserNotFound when absent.
	GetUserByUID(ctx context.Context, uid string) (*store.User, error)

	// CreateUser returns store.ErrUserExists when uid is taken.
	CreateUser(ctx context.Context, id uuid.UUID, uid string, displayName, avatarURL *string) error

	// UpdateUserProfile returns store.ErrUserNotFound when absent.
	UpdateUserProfile(ctx context.Context, uid string, displayName, avatarURL *string) error
}

// TokenMinter mints sign-in tokens. Satisfied by *signin.Minter.
type TokenMinter interface {
	Mint(uid string, now time.Time) (string, error)
}

// Directory implements create-or-update provisioning plus sign-in token issuance.
type Directory struct {
	users  UserStore
	minter TokenMinter
	now    func() time.Time
}

// New returns a Directory over users and minter.
func New(users UserStore, minter TokenMinter) *Directory {
	return &Directory{users: users, minter: minter, now: time.Now}
}

// CreateOrUpdate upserts the user keyed by uid with the profile's fields.
// Lookup and write are not atomic: a concurrent create for the same uid turns
// this call into an update.
func (d *Directory) CreateOrUpdate(ctx context.Context, uid string, p oauth.Profile) error {
	name, avatar := strOrNil(p.DisplayName), strOrNil(p.AvatarURL)

	_, err := d.users.GetUserByUID(ctx, uid)
	switch {
	case err == nil:
		return d.update(ctx, uid, name, avatar)
	case !errors.Is(err, store.ErrUserNotFound):
		return fmt.Errorf("looking up user: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating user id: %w", err)
	}
	err = d.users.CreateUser(ctx, id, uid, name, avatar)
	if errors.Is(err, store.ErrUserExists) {
		slog.Debug("user created concurrently, updating instead", "uid", uid)
		return d.update(ctx, uid, name, avatar)
	}
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	slog.Info("user created", "uid", uid, "user_id", id)
	return nil
}

func (d *Directory) update(ctx context.Context, uid string, name, avatar *string) error {
	if err := d.users.UpdateUserProfile(ctx, uid, name, avatar); err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// IssueSignInToken mints a sign-in token for uid.
func (d *Directory) IssueSignInToken(_ context.Context, uid string) (string, error) {
	tok, err := d.minter.Mint(uid, d.now())
	if err != nil {
		return "", fmt.Errorf("minting sign-in token: %w", err)
	}
	return tok, nil
}

// strOrNil maps empty optional profile fields to SQL NULL.
func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

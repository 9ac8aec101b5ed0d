// Package repository declares the storage interfaces the rest of the app
// programs against. The service layer depends on these, never on the
// concrete SQLite types.
package repository

import (
	"context"

	"github.com/ofcardoso/medbox/internal/model"
)

// UserRepository persists user records.
//
// There is intentionally no Update: profile fields are written once at
// creation and never refreshed from later logins. Create must enforce the
// unique-email invariant at the storage layer (returning
// apperror.ErrConflict on a duplicate), because concurrent first logins for
// the same email can race and in-process locking wouldn't survive multiple
// server instances anyway.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

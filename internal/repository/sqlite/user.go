package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/ofcardoso/medbox/internal/apperror"
	"github.com/ofcardoso/medbox/internal/model"
	"github.com/ofcardoso/medbox/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Create inserts a new user record, generating its internal ID and
// timestamps in place.
//
// A duplicate email maps to apperror.ErrConflict. That is the normal
// outcome when two callback requests for the same brand-new user race: the
// loser of the race gets Conflict and re-reads the winner's row instead of
// creating a second record.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	if user.Email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}

	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, name, picture_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Name,
		user.PictureURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByEmail retrieves a user by exact email match.
// Returns apperror.ErrNotFound if no such user exists.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `email = ?`, email)
}

// GetByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no such user exists.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `id = ?`, id)
}

func (db *DB) getUser(ctx context.Context, where string, arg string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, name, picture_url, created_at, updated_at
		 FROM users WHERE `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PictureURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", arg)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", arg, err)
	}

	return &u, nil
}

// Package service contains the business logic layer.
//
// The layering follows the usual shape:
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → enforces the rules, orchestrates
//	Repository (DB) → reads and writes rows
//
// Handlers never touch the repository directly, and the service never sees
// an http.Request, which is what makes the login rules testable with plain
// function calls and a fake repository.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ofcardoso/medbox/internal/apperror"
	"github.com/ofcardoso/medbox/internal/auth"
	"github.com/ofcardoso/medbox/internal/model"
	"github.com/ofcardoso/medbox/internal/repository"
)

// AuthService turns a verified Google identity into a local user and a
// session token.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewAuthService creates an AuthService with all dependencies injected.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResult bundles the resolved user and the issued session token so the
// handler can set the cookie and redirect in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginWithGoogle resolves verified Google claims to a local user and
// issues a session token for them.
//
// Resolution is find-or-create by email:
//   - First sign-in for an email creates the record from the claims.
//   - Every later sign-in returns the existing record as-is. Name and
//     picture are never refreshed from fresher claims; the record is a
//     first-sign-in snapshot.
//
// Two first sign-ins for the same email can race. The database's UNIQUE
// email constraint picks a winner; the loser sees Conflict, re-reads, and
// both requests end up logged into the same single record.
func (s *AuthService) LoginWithGoogle(ctx context.Context, claims *auth.GoogleClaims) (*AuthResult, error) {
	if claims == nil {
		return nil, fmt.Errorf("service/auth: claims must not be nil")
	}
	// FetchClaims already enforces this; checked again here because a user
	// record must never exist for an unverified identity, no matter which
	// caller reaches the service first.
	if !claims.EmailVerified {
		return nil, fmt.Errorf("service/auth: %w", auth.ErrEmailNotVerified)
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	switch {
	case err == nil:
		// Existing user — returned unchanged.

	case errors.Is(err, apperror.ErrNotFound):
		user = &model.User{
			Email:      claims.Email,
			Name:       claims.Name,
			PictureURL: claims.Picture,
		}
		if createErr := s.users.Create(ctx, user); createErr != nil {
			if !errors.Is(createErr, apperror.ErrConflict) {
				return nil, fmt.Errorf("service/auth: creating user %s: %w", claims.Email, createErr)
			}
			// Lost the race against a concurrent first sign-in. The row
			// the winner created is the canonical one.
			user, err = s.users.GetByEmail(ctx, claims.Email)
			if err != nil {
				return nil, fmt.Errorf("service/auth: re-reading user %s after conflict: %w", claims.Email, err)
			}
		} else {
			s.logger.Info("user created on first sign-in",
				slog.String("userID", user.ID),
				slog.String("email", user.Email),
			)
		}

	default:
		return nil, fmt.Errorf("service/auth: looking up user %s: %w", claims.Email, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via Google",
		slog.String("userID", user.ID),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID. Used after the
// middleware validates a session cookie and extracts the ID from it.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

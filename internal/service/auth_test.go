package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ofcardoso/medbox/internal/apperror"
	"github.com/ofcardoso/medbox/internal/auth"
	"github.com/ofcardoso/medbox/internal/model"
)

// fakeUserRepo is an in-memory repository.UserRepository. A hand-written
// fake (not a mock framework) keeps the tests readable — what it does is
// exactly what you see.
type fakeUserRepo struct {
	byEmail map[string]*model.User
	byID    map[string]*model.User

	// set to simulate failures
	createErr error
	getErr    error

	// interceptCreate runs just before Create stores the row. Used to
	// simulate a concurrent request winning the creation race.
	interceptCreate func()
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail: make(map[string]*model.User),
		byID:    make(map[string]*model.User),
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.interceptCreate != nil {
		f.interceptCreate()
	}
	if _, exists := f.byEmail[user.Email]; exists {
		return apperror.Conflict("user", user.Email)
	}
	user.ID = xid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.byEmail[user.Email] = &stored
	f.byID[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAuthService(repo, tokens, logger)
}

func verifiedClaims(email, name string) *auth.GoogleClaims {
	return &auth.GoogleClaims{
		Sub:           "google-sub-" + email,
		Email:         email,
		EmailVerified: true,
		Name:          name,
		Picture:       "https://lh3.googleusercontent.com/a/" + name,
	}
}

func TestLoginWithGoogle_FirstSignInCreatesUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result, err := svc.LoginWithGoogle(context.Background(), verifiedClaims("ana@x.com", "Ana"))
	require.NoError(t, err)

	require.NotNil(t, result.User)
	assert.NotEmpty(t, result.User.ID)
	assert.Equal(t, "ana@x.com", result.User.Email)
	assert.Equal(t, "Ana", result.User.Name)
	assert.NotEmpty(t, result.Token)

	stored, err := repo.GetByEmail(context.Background(), "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, stored.ID)
}

func TestLoginWithGoogle_RepeatSignInIsIdempotent(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	first, err := svc.LoginWithGoogle(context.Background(), verifiedClaims("ana@x.com", "Ana"))
	require.NoError(t, err)

	// Second sign-in with the same email but a changed display name: the
	// existing record is returned untouched — there is no profile sync.
	second, err := svc.LoginWithGoogle(context.Background(), verifiedClaims("ana@x.com", "Ana Maria"))
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID, "repeat sign-in must resolve to the same user")
	assert.Equal(t, "Ana", second.User.Name, "repeat sign-in must not refresh the stored name")
	assert.Len(t, repo.byEmail, 1, "no second record may be created")
}

func TestLoginWithGoogle_DistinctEmailsDistinctUsers(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	a, err := svc.LoginWithGoogle(context.Background(), verifiedClaims("a@x.com", "A"))
	require.NoError(t, err)
	b, err := svc.LoginWithGoogle(context.Background(), verifiedClaims("b@x.com", "B"))
	require.NoError(t, err)

	assert.NotEqual(t, a.User.ID, b.User.ID)
	assert.Len(t, repo.byEmail, 2)
}

func TestLoginWithGoogle_UnverifiedEmailRejected(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	claims := verifiedClaims("ana@x.com", "Ana")
	claims.EmailVerified = false

	result, err := svc.LoginWithGoogle(context.Background(), claims)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, auth.ErrEmailNotVerified)
	assert.Empty(t, repo.byEmail, "no user may be created for an unverified identity")
}

func TestLoginWithGoogle_NilClaims(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())

	_, err := svc.LoginWithGoogle(context.Background(), nil)
	assert.Error(t, err)
}

// Two first sign-ins for the same email race: this request loses the
// INSERT, gets Conflict, and must end up logged into the winner's record.
func TestLoginWithGoogle_ConcurrentCreateLosesRace(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	var winner *model.User
	repo.interceptCreate = func() {
		repo.interceptCreate = nil // only the first Create races
		winner = &model.User{Email: "ana@x.com", Name: "Ana"}
		require.NoError(t, repo.Create(context.Background(), winner))
	}

	result, err := svc.LoginWithGoogle(context.Background(), verifiedClaims("ana@x.com", "Ana"))
	require.NoError(t, err)

	assert.Equal(t, winner.ID, result.User.ID, "loser of the race must resolve to the winner's record")
	assert.Len(t, repo.byEmail, 1)
	assert.NotEmpty(t, result.Token)
}

func TestLoginWithGoogle_StoreFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.getErr = errors.New("disk on fire")
	svc := newTestAuthService(t, repo)

	_, err := svc.LoginWithGoogle(context.Background(), verifiedClaims("ana@x.com", "Ana"))
	assert.Error(t, err)
}

func TestGetUserByID(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	created, err := svc.LoginWithGoogle(context.Background(), verifiedClaims("ana@x.com", "Ana"))
	require.NoError(t, err)

	user, err := svc.GetUserByID(context.Background(), created.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@x.com", user.Email)

	_, err = svc.GetUserByID(context.Background(), "")
	assert.Error(t, err)

	_, err = svc.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

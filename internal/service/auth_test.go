package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/social"
)

type authFixture struct {
	svc    *AuthService
	repo   *fakeUserRepo
	roster *social.Store
	tokens *auth.TokenService
}

func newTestAuthService(t *testing.T) authFixture {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)

	repo := newFakeUserRepo()
	roster := social.New()
	svc := NewAuthService(repo, roster, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), testLogger())
	return authFixture{svc: svc, repo: repo, roster: roster, tokens: tokens}
}

func register(t *testing.T, f authFixture, username, email string) *AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: "correct-horse",
	})
	require.NoError(t, err)
	return res
}

// =========================================================================
// REGISTER
// =========================================================================

func TestRegister(t *testing.T) {
	f := newTestAuthService(t)

	res := register(t, f, "alice", "Alice@Example.com")

	assert.NotEmpty(t, res.User.ID)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.NotEqual(t, "correct-horse", res.User.PasswordHash)

	userID, err := f.tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, userID)

	member, err := f.roster.User(res.User.ID)
	require.NoError(t, err, "registered users join the roster")
	assert.Equal(t, "alice", member.Username)
	assert.Empty(t, member.PasswordHash)
}

func TestRegister_Validation(t *testing.T) {
	f := newTestAuthService(t)

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"missing username", RegisterInput{Email: "a@example.com", Password: "long-enough"}},
		{"bad email", RegisterInput{Username: "a", Email: "not-an-email", Password: "long-enough"}},
		{"display-name email", RegisterInput{Username: "a", Email: "A <a@example.com>", Password: "long-enough"}},
		{"short password", RegisterInput{Username: "a", Email: "a@example.com", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.in)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newTestAuthService(t)
	register(t, f, "alice", "alice@example.com")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "alice2",
		Email:    "ALICE@example.com",
		Password: "another-password",
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

// =========================================================================
// LOGIN
// =========================================================================

func TestLogin(t *testing.T) {
	f := newTestAuthService(t)
	reg := register(t, f, "bob", "bob@example.com")

	res, err := f.svc.Login(context.Background(), "BOB@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)
}

func TestLogin_Failures(t *testing.T) {
	f := newTestAuthService(t)
	register(t, f, "bob", "bob@example.com")
	_, err := f.svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 7, Login: "gh", Email: "gh@example.com"})
	require.NoError(t, err)

	tests := []struct {
		name, email, password string
		want                  error
	}{
		{"wrong password", "bob@example.com", "wrong-password", apperror.ErrUnauthorized},
		{"unknown email", "nobody@example.com", "correct-horse", apperror.ErrUnauthorized},
		{"github-only account", "gh@example.com", "anything", apperror.ErrUnauthorized},
		{"missing password", "bob@example.com", "", apperror.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin_SameMessageForAllFailures(t *testing.T) {
	f := newTestAuthService(t)
	register(t, f, "bob", "bob@example.com")

	_, errWrong := f.svc.Login(context.Background(), "bob@example.com", "wrong-password")
	_, errUnknown := f.svc.Login(context.Background(), "nobody@example.com", "whatever")

	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

// =========================================================================
// GITHUB
// =========================================================================

func TestLoginOrRegisterGitHub(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	first, err := f.svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octocat"})
	require.NoError(t, err)
	assert.Equal(t, "42+octocat@users.noreply.github.com", first.User.Email)

	again, err := f.svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octocat", AvatarURL: "https://a"})
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, again.User.ID)
	assert.Len(t, f.roster.Users(), 1, "re-login must not duplicate the roster entry")

	_, err = f.svc.LoginOrRegisterGitHub(ctx, nil)
	assert.Error(t, err)
}

// =========================================================================
// PROFILE
// =========================================================================

func TestGetUserByID_IncludesSocialState(t *testing.T) {
	f := newTestAuthService(t)
	a := register(t, f, "a", "a@example.com")
	b := register(t, f, "b", "b@example.com")
	require.NoError(t, f.roster.SendRequest(b.User.ID, a.User.ID))

	me, err := f.svc.GetUserByID(context.Background(), a.User.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.User.ID}, me.FriendRequests)

	_, err = f.svc.GetUserByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

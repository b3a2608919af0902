package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
	"github.com/sakif/bookshelf/internal/social"
)

const (
	MaxUsernameLength = 50
	MinPasswordLength = 8
)

// AuthService registers accounts, checks credentials and issues session
// tokens. Every account it creates is also added to the social roster.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ social.Store (roster)
//	                                 ↘ TokenService (JWT)
type AuthService struct {
	users     repository.UserRepository
	roster    *social.Store
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	roster *social.Store,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		roster:    roster,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the signed-in user with the issued session token.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput is the payload of an email/password sign-up.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Avatar   string
	Bio      string
}

// Register creates a password account. A taken email yields ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	switch {
	case username == "":
		return nil, apperror.ValidationFailed("username", "username is required")
	case len(username) > MaxUsernameLength:
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	case !validEmail(email):
		return nil, apperror.ValidationFailed("email", "a valid email is required")
	case len(in.Password) < MinPasswordLength:
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		Avatar:       strings.TrimSpace(in.Avatar),
		Bio:          strings.TrimSpace(in.Bio),
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("user", email)
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}
	s.addToRoster(*user)

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// Login checks an email/password pair. Unknown emails, GitHub-only accounts
// and wrong passwords all yield the same ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	invalid := apperror.Unauthorized("invalid email or password")

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, invalid
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("failed login", slog.String("userID", user.ID))
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// LoginOrRegisterGitHub upserts the user behind a completed GitHub OAuth
// exchange and issues a session token.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	email := ghUser.Email
	if email == "" {
		// GitHub hides private emails; use the account's noreply address.
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", ghUser.ID, ghUser.Login)
	}
	githubID := ghUser.ID
	user := &model.User{
		Username: ghUser.Login,
		Email:    email,
		Avatar:   ghUser.AvatarURL,
		Bio:      ghUser.Bio,
		GitHubID: &githubID,
	}

	if err := s.users.UpsertGitHubUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}
	s.addToRoster(*user)

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Username),
	)
	return s.issue(user)
}

// GetUserByID returns the caller's profile, including social state from
// the roster when present.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	if member, err := s.roster.User(id); err == nil {
		user.Friends = member.Friends
		user.FriendRequests = member.FriendRequests
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// addToRoster is a no-op for users already in the roster.
func (s *AuthService) addToRoster(u model.User) {
	_, err := s.roster.AddUser(rosterEntry(u))
	if err != nil && !errors.Is(err, apperror.ErrConflict) {
		s.logger.Warn("failed to add user to roster",
			slog.String("userID", u.ID),
			slog.String("error", err.Error()),
		)
	}
}

// rosterEntry strips credentials before a user enters the shared roster.
func rosterEntry(u model.User) model.User {
	return model.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Avatar:    u.Avatar,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
	}
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

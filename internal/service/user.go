package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
	"github.com/sakif/bookshelf/internal/social"
)

// UserService exposes the user directory and keeps the social roster in
// step with the users table.
type UserService struct {
	repo   repository.UserRepository
	roster *social.Store
	logger *slog.Logger
}

func NewUserService(repo repository.UserRepository, roster *social.Store, logger *slog.Logger) *UserService {
	return &UserService{repo: repo, roster: roster, logger: logger}
}

// List returns every registered user in creation order.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// SeedRoster loads every stored user into the roster and returns how many
// were added. Users already present are skipped.
func (s *UserService) SeedRoster(ctx context.Context) (int, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("seeding roster: %w", err)
	}

	added := 0
	for _, u := range users {
		if _, err := s.roster.AddUser(rosterEntry(u)); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				continue
			}
			return added, fmt.Errorf("seeding roster with %s: %w", u.ID, err)
		}
		added++
	}

	s.logger.Info("roster seeded", slog.Int("users", added))
	return added, nil
}

package social

import (
	"log/slog"
	"strings"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
)

// AddUser registers a user in the roster.
//
// An empty ID or CreatedAt is filled in. The user's own id is stripped from
// its friend and request sets, and duplicates are collapsed, so the roster
// invariants hold no matter what the caller passed in.
func (s *Store) AddUser(user model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := user.Clone()
	if u.ID == "" {
		u.ID = s.newID()
	}
	if _, exists := s.users[u.ID]; exists {
		return model.User{}, apperror.Conflict("user", u.ID)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	u.Friends = normalizeSet(u.Friends, u.ID)
	u.FriendRequests = normalizeSet(u.FriendRequests, u.ID)

	s.users[u.ID] = &u
	s.userOrder = append(s.userOrder, u.ID)

	s.logger.Debug("user added to roster", slog.String("userID", u.ID))
	return u.Clone(), nil
}

// User returns a copy of the user with the given id.
func (s *Store) User(id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, apperror.NotFound("user", id)
	}
	return u.Clone(), nil
}

// Users returns the whole roster in registration order.
func (s *Store) Users() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id].Clone())
	}
	return out
}

// SearchUsers matches query case-insensitively against username and email.
// The caller is included in the results if it matches; filtering it out is
// up to whoever renders the list. An empty query matches everyone.
func (s *Store) SearchUsers(query string) []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.User, 0)
	for _, id := range s.userOrder {
		u := s.users[id]
		if strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u.Clone())
		}
	}
	return out
}

// lookupUsers resolves ids to user copies, skipping ids that are not in the
// roster. Callers must hold the lock.
func (s *Store) lookupUsers(ids []string) []model.User {
	out := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u.Clone())
		}
	}
	return out
}

func normalizeSet(ids []string, self string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == self {
			continue
		}
		out = addID(out, id)
	}
	return out
}

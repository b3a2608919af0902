package social

import (
	"log/slog"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
)

// SendRequest records fromID as a pending request on toID.
//
// Re-sending a request that is already pending, or sending one to an
// existing friend, changes nothing and is not an error. Asking yourself is
// rejected, as is naming a user that isn't in the roster.
func (s *Store) SendRequest(fromID, toID string) error {
	if fromID == toID {
		return apperror.ValidationFailed("userId", "cannot send a friend request to yourself")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[fromID]; !ok {
		return apperror.NotFound("user", fromID)
	}
	to, ok := s.users[toID]
	if !ok {
		return apperror.NotFound("user", toID)
	}
	if contains(to.Friends, fromID) {
		return nil
	}

	to.FriendRequests = addID(to.FriendRequests, fromID)
	s.logger.Info("friend request sent",
		slog.String("from", fromID),
		slog.String("to", toID),
	)
	return nil
}

// AcceptRequest turns the pending request from fromID into a friendship.
//
// Both users end up listing each other once, and the request disappears.
// A request in the opposite direction, if any, is dropped too since it has
// nothing left to ask for. If fromID has no pending request on selfID the
// call fails with ErrNotFound and nothing changes; this covers both a stale
// request and an existing friendship.
func (s *Store) AcceptRequest(selfID, fromID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	self, ok := s.users[selfID]
	if !ok {
		return apperror.NotFound("user", selfID)
	}
	if !contains(self.FriendRequests, fromID) {
		return apperror.NotFound("friend request", fromID)
	}
	from, ok := s.users[fromID]
	if !ok {
		return apperror.NotFound("user", fromID)
	}

	self.Friends = addID(self.Friends, fromID)
	from.Friends = addID(from.Friends, selfID)
	self.FriendRequests = removeID(self.FriendRequests, fromID)
	from.FriendRequests = removeID(from.FriendRequests, selfID)

	s.logger.Info("friend request accepted",
		slog.String("userID", selfID),
		slog.String("from", fromID),
	)
	return nil
}

// RejectRequest drops fromID from selfID's pending requests. Nothing happens
// if there was no such request.
func (s *Store) RejectRequest(selfID, fromID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	self, ok := s.users[selfID]
	if !ok {
		return apperror.NotFound("user", selfID)
	}
	if !contains(self.FriendRequests, fromID) {
		return nil
	}
	self.FriendRequests = removeID(self.FriendRequests, fromID)

	s.logger.Info("friend request rejected",
		slog.String("userID", selfID),
		slog.String("from", fromID),
	)
	return nil
}

// RemoveFriend ends the friendship in both directions. It is a no-op when
// the two users aren't friends.
func (s *Store) RemoveFriend(selfID, otherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	self, ok := s.users[selfID]
	if !ok {
		return apperror.NotFound("user", selfID)
	}
	self.Friends = removeID(self.Friends, otherID)
	if other, ok := s.users[otherID]; ok {
		other.Friends = removeID(other.Friends, selfID)
	}

	s.logger.Info("friend removed",
		slog.String("userID", selfID),
		slog.String("other", otherID),
	)
	return nil
}

// Friends returns selfID's friends in the order they were added.
func (s *Store) Friends(selfID string) []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	self, ok := s.users[selfID]
	if !ok {
		return []model.User{}
	}
	return s.lookupUsers(self.Friends)
}

// IncomingRequests returns the users waiting for selfID to answer.
func (s *Store) IncomingRequests(selfID string) []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	self, ok := s.users[selfID]
	if !ok {
		return []model.User{}
	}
	return s.lookupUsers(self.FriendRequests)
}

// OutgoingRequests returns the users selfID has asked and who haven't
// answered yet.
//
// Requests are only recorded on the recipient, so this scans the whole
// roster: O(n) per call. Fine for tens of users; a larger roster would want
// a reverse index kept up to date by SendRequest/Accept/Reject.
func (s *Store) OutgoingRequests(selfID string) []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.User, 0)
	for _, id := range s.userOrder {
		if id == selfID {
			continue
		}
		u := s.users[id]
		if contains(u.FriendRequests, selfID) {
			out = append(out, u.Clone())
		}
	}
	return out
}

package service

import (
	"strings"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/social"
)

// FriendService runs friend requests and user search against the roster.
// The roster logs every state change itself.
type FriendService struct {
	roster *social.Store
}

func NewFriendService(roster *social.Store) *FriendService {
	return &FriendService{roster: roster}
}

// FriendRequests lists a user's pending requests in both directions.
type FriendRequests struct {
	Incoming []model.User `json:"incoming"`
	Outgoing []model.User `json:"outgoing"`
}

func (s *FriendService) SendRequest(selfID, toID string) error {
	toID = strings.TrimSpace(toID)
	if toID == "" {
		return apperror.ValidationFailed("userId", "userId is required")
	}
	return s.roster.SendRequest(selfID, toID)
}

func (s *FriendService) AcceptRequest(selfID, fromID string) error {
	return s.roster.AcceptRequest(selfID, fromID)
}

func (s *FriendService) RejectRequest(selfID, fromID string) error {
	return s.roster.RejectRequest(selfID, fromID)
}

func (s *FriendService) RemoveFriend(selfID, otherID string) error {
	return s.roster.RemoveFriend(selfID, otherID)
}

func (s *FriendService) Friends(selfID string) []model.User {
	return s.roster.Friends(selfID)
}

func (s *FriendService) Requests(selfID string) FriendRequests {
	return FriendRequests{
		Incoming: s.roster.IncomingRequests(selfID),
		Outgoing: s.roster.OutgoingRequests(selfID),
	}
}

// Search matches users by username or email, leaving out the caller.
func (s *FriendService) Search(selfID, query string) []model.User {
	matches := s.roster.SearchUsers(query)
	out := make([]model.User, 0, len(matches))
	for _, u := range matches {
		if u.ID != selfID {
			out = append(out, u)
		}
	}
	return out
}

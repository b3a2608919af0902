// Package model holds the records shared by the store, repository, service
// and handler layers: users, books and messages.
package model

import "time"

// User is a member of the roster.
//
// Friends is symmetric: once a request is accepted both users list each
// other exactly once. FriendRequests holds the ids of users who asked to be
// friends with this user and are still waiting for an answer.
//
// The json tags use snake_case because the same names are the column names
// in the relational store and the wire names of the edge API.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Avatar         string    `json:"avatar,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Bio            string    `json:"bio,omitempty"`
	Friends        []string  `json:"friends,omitempty"`
	FriendRequests []string  `json:"friend_requests,omitempty"`

	// Never serialised.
	PasswordHash string `json:"-"`
	GitHubID     *int64 `json:"-"`
}

// Clone returns a deep copy so callers can never alias the sets held by a store.
func (u User) Clone() User {
	u.Friends = cloneIDs(u.Friends)
	u.FriendRequests = cloneIDs(u.FriendRequests)
	if u.GitHubID != nil {
		id := *u.GitHubID
		u.GitHubID = &id
	}
	return u
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/service"
)

// UserHandler serves the user directory and user search.
type UserHandler struct {
	users   *service.UserService
	friends *service.FriendService
	logger  *slog.Logger
}

func NewUserHandler(users *service.UserService, friends *service.FriendService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, friends: friends, logger: logger}
}

// userSummary is the public view of a user in listings.
type userSummary struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

func summarize(users []model.User) []userSummary {
	out := make([]userSummary, 0, len(users))
	for _, u := range users {
		out = append(out, userSummary{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			Avatar:    u.Avatar,
			CreatedAt: u.CreatedAt,
		})
	}
	return out
}

// HTTP: GET /api/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(users))
}

// HandleSearch matches ?q= against usernames and emails, leaving out the
// caller.
//
// HTTP: GET /api/users/search?q=
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, summarize(h.friends.Search(userID, r.URL.Query().Get("q"))))
}

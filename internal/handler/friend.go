package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/service"
)

// FriendHandler exposes the caller's friends and friend requests. Every
// route sits behind auth.RequireAuth.
type FriendHandler struct {
	friends *service.FriendService
}

func NewFriendHandler(friends *service.FriendService) *FriendHandler {
	return &FriendHandler{friends: friends}
}

func callerID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// HTTP: GET /api/friends
func (h *FriendHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, summarize(h.friends.Friends(callerID(r))))
}

type friendRequestsResponse struct {
	Incoming []userSummary `json:"incoming"`
	Outgoing []userSummary `json:"outgoing"`
}

// HTTP: GET /api/friends/requests
func (h *FriendHandler) HandleRequests(w http.ResponseWriter, r *http.Request) {
	reqs := h.friends.Requests(callerID(r))
	writeJSON(w, http.StatusOK, friendRequestsResponse{
		Incoming: summarize(reqs.Incoming),
		Outgoing: summarize(reqs.Outgoing),
	})
}

type sendFriendRequest struct {
	UserID string `json:"userId"`
}

// HTTP: POST /api/friends/requests
func (h *FriendHandler) HandleSendRequest(w http.ResponseWriter, r *http.Request) {
	var req sendFriendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.friends.SendRequest(callerID(r), req.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, success)
}

// HTTP: POST /api/friends/requests/{userId}/accept
func (h *FriendHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	if err := h.friends.AcceptRequest(callerID(r), chi.URLParam(r, "userId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, success)
}

// HTTP: POST /api/friends/requests/{userId}/reject
func (h *FriendHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	if err := h.friends.RejectRequest(callerID(r), chi.URLParam(r, "userId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, success)
}

// HTTP: DELETE /api/friends/{userId}
func (h *FriendHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.friends.RemoveFriend(callerID(r), chi.URLParam(r, "userId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, success)
}

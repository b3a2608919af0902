package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/service"
)

type MessageHandler struct {
	messages *service.MessageService
	logger   *slog.Logger
}

func NewMessageHandler(messages *service.MessageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

// HandleList returns messages sent or received by ?userId=, newest first.
//
// HTTP: GET /api/messages?userId=
func (h *MessageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messages.ListForUser(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HandleChats returns one entry per conversation partner of ?userId=, most
// recently active first. A signed-in caller may omit userId.
//
// HTTP: GET /api/chats?userId=
func (h *MessageHandler) HandleChats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID, _ = auth.UserIDFromContext(r.Context())
	}
	chats, err := h.messages.Chats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

type sendMessageRequest struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// HandleSend appends an unread message. A signed-in caller who omits
// sender_id sends as themselves and gets 403 for any other sender_id.
//
// HTTP: POST /api/messages
func (h *MessageHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	senderID, err := actingAs(r, req.SenderID, "sender_id")
	if err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.messages.Send(r.Context(), senderID, req.ReceiverID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// HTTP: PATCH /api/messages/{id}/read
func (h *MessageHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.messages.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, success)
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
)

const MaxMessageLength = 5000

// MessageService stores direct messages between users.
type MessageService struct {
	repo   repository.MessageRepository
	logger *slog.Logger
}

func NewMessageService(repo repository.MessageRepository, logger *slog.Logger) *MessageService {
	return &MessageService{repo: repo, logger: logger}
}

// ListForUser returns up to repository.MaxMessages messages sent or received
// by userID, newest first.
func (s *MessageService) ListForUser(ctx context.Context, userID string) ([]model.Message, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "userId parameter required")
	}
	msgs, err := s.repo.ListMessagesForUser(ctx, userID, repository.MaxMessages)
	if err != nil {
		return nil, fmt.Errorf("listing messages for %s: %w", userID, err)
	}
	return msgs, nil
}

// Chats returns userID's conversations, most recently active first.
func (s *MessageService) Chats(ctx context.Context, userID string) ([]model.Chat, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "userId parameter required")
	}
	chats, err := s.repo.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing chats for %s: %w", userID, err)
	}
	return chats, nil
}

// Send appends an unread message. Content is stored as given; only blank
// content is rejected.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, content string) (*model.Message, error) {
	senderID = strings.TrimSpace(senderID)
	receiverID = strings.TrimSpace(receiverID)

	switch {
	case senderID == "":
		return nil, apperror.ValidationFailed("sender_id", "sender_id is required")
	case receiverID == "":
		return nil, apperror.ValidationFailed("receiver_id", "receiver_id is required")
	case senderID == receiverID:
		return nil, apperror.ValidationFailed("receiver_id", "cannot send a message to yourself")
	case strings.TrimSpace(content) == "":
		return nil, apperror.ValidationFailed("content", "content is required")
	case len(content) > MaxMessageLength:
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxMessageLength))
	}

	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		s.logger.Error("failed to store message",
			slog.String("senderID", senderID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("sending message: %w", err)
	}

	s.logger.Debug("message sent",
		slog.String("id", msg.ID),
		slog.String("senderID", senderID),
		slog.String("receiverID", receiverID),
	)
	return msg, nil
}

// MarkRead flags a message as read. Marking twice is fine.
func (s *MessageService) MarkRead(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "message ID is required")
	}
	return s.repo.MarkMessageRead(ctx, id)
}

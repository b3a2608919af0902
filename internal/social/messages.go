package social

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
)

// Send appends a message to the log. Delivery is the append itself; there
// is no transport behind it.
func (s *Store) Send(senderID, receiverID, content string) (model.Message, error) {
	if strings.TrimSpace(senderID) == "" {
		return model.Message{}, apperror.ValidationFailed("sender_id", "sender is required")
	}
	if strings.TrimSpace(receiverID) == "" {
		return model.Message{}, apperror.ValidationFailed("receiver_id", "receiver is required")
	}
	if senderID == receiverID {
		return model.Message{}, apperror.ValidationFailed("receiver_id", "cannot send a message to yourself")
	}
	if strings.TrimSpace(content) == "" {
		return model.Message{}, apperror.ValidationFailed("content", "message content is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := &model.Message{
		ID:         s.newID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  s.now(),
	}
	s.messageIndex[m.ID] = len(s.messages)
	s.messages = append(s.messages, m)

	s.logger.Debug("message sent",
		slog.String("messageID", m.ID),
		slog.String("from", senderID),
		slog.String("to", receiverID),
	)
	return *m, nil
}

// MarkRead sets the read flag. Marking an already-read message is fine.
func (s *Store) MarkRead(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.messageIndex[messageID]
	if !ok {
		return apperror.NotFound("message", messageID)
	}
	s.messages[i].Read = true
	return nil
}

// Thread returns the messages exchanged between selfID and any of the
// participants, in the order they were sent.
func (s *Store) Thread(selfID string, participants ...string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, 0)
	for _, m := range s.messages {
		if (m.SenderID == selfID && contains(participants, m.ReceiverID)) ||
			(m.ReceiverID == selfID && contains(participants, m.SenderID)) {
			out = append(out, *m)
		}
	}
	return out
}

// Chats groups selfID's messages by counterpart. Each chat carries its last
// message and the number of messages to selfID that are still unread. The
// chat with the most recent message comes first.
func (s *Store) Chats(selfID string) []model.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPeer := make(map[string]*model.Chat)
	lastSeq := make(map[string]int)
	for seq, m := range s.messages {
		var peer string
		switch selfID {
		case m.SenderID:
			peer = m.ReceiverID
		case m.ReceiverID:
			peer = m.SenderID
		default:
			continue
		}

		c, ok := byPeer[peer]
		if !ok {
			c = &model.Chat{ParticipantID: peer}
			byPeer[peer] = c
		}
		last := *m
		c.LastMessage = &last
		lastSeq[peer] = seq
		if m.ReceiverID == selfID && !m.Read {
			c.UnreadCount++
		}
	}

	out := make([]model.Chat, 0, len(byPeer))
	for _, c := range byPeer {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return lastSeq[out[i].ParticipantID] > lastSeq[out[j].ParticipantID]
	})
	return out
}

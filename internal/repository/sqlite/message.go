package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
)

var _ repository.MessageRepository = (*DB)(nil)

// CreateMessage appends a message. ID and Timestamp are assigned here and
// Read always starts false.
func (db *DB) CreateMessage(ctx context.Context, msg *model.Message) error {
	msg.ID = xid.New().String()
	msg.Timestamp = time.Now().UTC()
	msg.Read = false

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, content, timestamp, read)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		msg.ID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
		msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating message: %w", err)
	}
	return nil
}

// ListMessagesForUser returns messages sent or received by userID, newest
// first, at most limit of them (capped at repository.MaxMessages).
func (db *DB) ListMessagesForUser(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > repository.MaxMessages {
		limit = repository.MaxMessages
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, content, timestamp, read
		 FROM messages
		 WHERE sender_id = ? OR receiver_id = ?
		 ORDER BY timestamp DESC, rowid DESC
		 LIMIT ?`,
		userID, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing messages for %s: %w", userID, err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Timestamp, &m.Read); err != nil {
			return nil, fmt.Errorf("sqlite: scanning message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating messages: %w", err)
	}
	return messages, nil
}

// ListChats folds userID's messages into one entry per partner. The newest
// message per partner wins and unread counts only messages userID received.
func (db *DB) ListChats(ctx context.Context, userID string) ([]model.Chat, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, content, timestamp, read
		 FROM messages
		 WHERE sender_id = ? OR receiver_id = ?
		 ORDER BY timestamp DESC, rowid DESC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing chats for %s: %w", userID, err)
	}
	defer rows.Close()

	chats := make([]model.Chat, 0)
	index := make(map[string]int)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Timestamp, &m.Read); err != nil {
			return nil, fmt.Errorf("sqlite: scanning message row: %w", err)
		}

		peer := m.ReceiverID
		if m.SenderID != userID {
			peer = m.SenderID
		}
		i, seen := index[peer]
		if !seen {
			last := m
			i = len(chats)
			index[peer] = i
			chats = append(chats, model.Chat{ParticipantID: peer, LastMessage: &last})
		}
		if m.ReceiverID == userID && !m.Read {
			chats[i].UnreadCount++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating messages: %w", err)
	}
	return chats, nil
}

// MarkMessageRead sets read = 1. Marking twice is fine; only a missing
// message is an error.
func (db *DB) MarkMessageRead(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE messages SET read = 1 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking message %s read: %w", id, err)
	}

	// SQLite counts rows matched by WHERE, even when the value is unchanged,
	// so an already-read message still reports one row.
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("message", id)
	}
	return nil
}

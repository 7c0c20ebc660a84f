package db

import (
	"time"

	"github.com/google/uuid"

	"character-chat/internal/models"
)

// CreateChat inserts a new chat. The personality set is fixed at creation.
func (d *DB) CreateChat(chatType models.ChatType, name string, personalityIDs []string) (*models.Chat, error) {
	return WithLockResult(d, func() (*models.Chat, error) {
		now := time.Now()
		chat := models.Chat{
			ID:             uuid.NewString(),
			Type:           chatType,
			Name:           name,
			PersonalityIDs: personalityIDs,
			LastMessageAt:  now,
			CreatedAt:      now,
		}

		_, err := d.db.Exec(
			`INSERT INTO chats (id, type, name, personality_ids, last_message_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			chat.ID, string(chat.Type), chat.Name, encodeList(chat.PersonalityIDs),
			chat.LastMessageAt, chat.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		return &chat, nil
	})
}

// GetChat retrieves a chat by ID, without its messages.
func (d *DB) GetChat(id string) (*models.Chat, error) {
	return WithLockResult(d, func() (*models.Chat, error) {
		row := d.db.QueryRow(
			`SELECT id, type, name, personality_ids, last_message_at, created_at
			 FROM chats WHERE id = ?`, id,
		)
		return scanChat(row)
	})
}

// GetAllChats retrieves all chats ordered by recent activity, without
// messages.
func (d *DB) GetAllChats() ([]models.Chat, error) {
	return WithLockResult(d, func() ([]models.Chat, error) {
		rows, err := d.db.Query(
			`SELECT id, type, name, personality_ids, last_message_at, created_at
			 FROM chats ORDER BY last_message_at DESC`,
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var chats []models.Chat
		for rows.Next() {
			chat, err := scanChat(rows)
			if err != nil {
				return nil, err
			}
			chats = append(chats, *chat)
		}

		return chats, rows.Err()
	})
}

// DeleteChat deletes a chat and, via cascade, its messages.
func (d *DB) DeleteChat(id string) error {
	return d.WithLock(func() error {
		_, err := d.db.Exec(`DELETE FROM chats WHERE id = ?`, id)
		return err
	})
}

// AppendMessage appends a message to a chat's log and bumps the chat's
// last-activity time. The per-chat sequence number records insertion order.
func (d *DB) AppendMessage(chatID string, msg models.Message) (*models.Message, error) {
	return WithLockResult(d, func() (*models.Message, error) {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}

		var seq int64
		if err := d.db.QueryRow(
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE chat_id = ?`, chatID,
		).Scan(&seq); err != nil {
			return nil, err
		}

		_, err := d.db.Exec(
			`INSERT INTO messages (id, chat_id, sender_id, sender_name, content, images, seq, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, chatID, msg.SenderID, msg.SenderName, msg.Content,
			encodeList(msg.Images), seq, msg.Timestamp,
		)
		if err != nil {
			return nil, err
		}

		_, err = d.db.Exec(
			`UPDATE chats SET last_message_at = ? WHERE id = ?`,
			msg.Timestamp, chatID,
		)
		if err != nil {
			return nil, err
		}

		return &msg, nil
	})
}

// GetMessages retrieves a chat's messages in insertion order.
func (d *DB) GetMessages(chatID string) ([]models.Message, error) {
	return WithLockResult(d, func() ([]models.Message, error) {
		rows, err := d.db.Query(
			`SELECT id, sender_id, sender_name, content, images, created_at
			 FROM messages WHERE chat_id = ? ORDER BY seq ASC`, chatID,
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var messages []models.Message
		for rows.Next() {
			var m models.Message
			var images string
			if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.Content, &images, &m.Timestamp); err != nil {
				return nil, err
			}
			m.Images = decodeList(images)
			messages = append(messages, m)
		}

		return messages, rows.Err()
	})
}

func scanChat(row rowScanner) (*models.Chat, error) {
	var chat models.Chat
	var chatType, ids string

	err := row.Scan(&chat.ID, &chatType, &chat.Name, &ids, &chat.LastMessageAt, &chat.CreatedAt)
	if err != nil {
		return nil, err
	}

	chat.Type = models.ChatType(chatType)
	chat.PersonalityIDs = decodeList(ids)
	return &chat, nil
}

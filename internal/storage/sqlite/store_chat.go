package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	chatdomain "github.com/louisbranch/oilandrope/internal/services/chat/domain"
	"github.com/louisbranch/oilandrope/internal/storage"
)

const messageColumns = `id, chat_id, author_id, body, client_message_id, sequence, created_at, updated_at`

func scanChat(row rowScanner) (chatdomain.Chat, error) {
	var c chatdomain.Chat
	var createdAt, updatedAt int64
	if err := row.Scan(&c.ID, &c.Name, &c.DiscordID, &createdAt, &updatedAt); err != nil {
		return chatdomain.Chat{}, err
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

func scanMessage(row rowScanner) (chatdomain.Message, error) {
	var m chatdomain.Message
	var clientMessageID sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(
		&m.ID,
		&m.ChatID,
		&m.AuthorID,
		&m.Body,
		&clientMessageID,
		&m.Sequence,
		&createdAt,
		&updatedAt,
	); err != nil {
		return chatdomain.Message{}, err
	}
	m.ClientMessageID = clientMessageID.String
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return m, nil
}

// PutChat upserts a chat.
func (s *Store) PutChat(ctx context.Context, c chatdomain.Chat) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return putChat(ctx, s.sqlDB, c)
}

func putChat(ctx context.Context, target execer, c chatdomain.Chat) error {
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		return fmt.Errorf("chat id is required")
	}
	createdAt, updatedAt := timestamps(c.CreatedAt, c.UpdatedAt)
	_, err := target.ExecContext(ctx,
		`INSERT INTO chats (id, name, discord_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   discord_id = excluded.discord_id,
		   updated_at = excluded.updated_at`,
		c.ID, c.Name, c.DiscordID, toMillis(createdAt), toMillis(updatedAt),
	)
	return mapWriteError("put chat", err)
}

// GetChat returns a chat by id.
func (s *Store) GetChat(ctx context.Context, chatID string) (chatdomain.Chat, error) {
	if err := s.ready(ctx); err != nil {
		return chatdomain.Chat{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, discord_id, created_at, updated_at FROM chats WHERE id = ?`,
		strings.TrimSpace(chatID),
	)
	c, err := scanChat(row)
	if err != nil {
		return chatdomain.Chat{}, mapReadError("get chat", err)
	}
	return c, nil
}

// AddChatMembers adds users to a chat. Existing members are kept.
func (s *Store) AddChatMembers(ctx context.Context, chatID string, userIDs ...string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return addChatMembers(ctx, s.sqlDB, chatID, time.Now(), userIDs...)
}

func addChatMembers(ctx context.Context, target execer, chatID string, joinedAt time.Time, userIDs ...string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return fmt.Errorf("chat id is required")
	}
	for _, userID := range userIDs {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		_, err := target.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id, created_at) VALUES (?, ?, ?)
			 ON CONFLICT(chat_id, user_id) DO NOTHING`,
			chatID, userID, toMillis(joinedAt),
		)
		if err != nil {
			return mapWriteError("add chat member", err)
		}
	}
	return nil
}

// IsChatMember reports whether the user belongs to the chat.
func (s *Store) IsChatMember(ctx context.Context, chatID, userID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	var one int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM chat_members WHERE chat_id = ? AND user_id = ?`,
		strings.TrimSpace(chatID), strings.TrimSpace(userID),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check chat member: %w", err)
	}
	return true, nil
}

// ListChatMembers returns the user ids of a chat's members.
func (s *Store) ListChatMembers(ctx context.Context, chatID string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return listAll(ctx, s, "list chat members",
		`SELECT user_id FROM chat_members WHERE chat_id = ? ORDER BY user_id ASC`,
		[]any{strings.TrimSpace(chatID)},
		func(row rowScanner) (string, error) {
			var userID string
			err := row.Scan(&userID)
			return userID, err
		})
}

// ListUserChats returns one page of the chats a user belongs to.
func (s *Store) ListUserChats(ctx context.Context, userID string, page pagination.Request) (pagination.Page[chatdomain.Chat], error) {
	if err := s.ready(ctx); err != nil {
		return pagination.Page[chatdomain.Chat]{}, err
	}
	page, err := normalizePage(page)
	if err != nil {
		return pagination.Page[chatdomain.Chat]{}, err
	}
	query, params := keyset(
		`SELECT id, name, discord_id, created_at, updated_at FROM chats`,
		[]string{"id IN (SELECT chat_id FROM chat_members WHERE user_id = ?)"},
		[]any{strings.TrimSpace(userID)},
		page,
	)
	return listPage(ctx, s, "list user chats", query, params, page.PageSize, scanChat,
		func(c chatdomain.Chat) string { return c.ID })
}

// AppendMessage stores m with the next sequence of its chat. A repeated
// client message id for the same author returns the stored message.
func (s *Store) AppendMessage(ctx context.Context, m chatdomain.Message) (chatdomain.Message, bool, error) {
	if err := s.ready(ctx); err != nil {
		return chatdomain.Message{}, false, err
	}
	m.ID = strings.TrimSpace(m.ID)
	m.ChatID = strings.TrimSpace(m.ChatID)
	m.AuthorID = strings.TrimSpace(m.AuthorID)
	m.ClientMessageID = strings.TrimSpace(m.ClientMessageID)
	if m.ID == "" || m.ChatID == "" || m.AuthorID == "" {
		return chatdomain.Message{}, false, fmt.Errorf("message, chat and author ids are required")
	}
	createdAt, updatedAt := timestamps(m.CreatedAt, m.UpdatedAt)

	var stored chatdomain.Message
	duplicate := false
	err := s.inTx(ctx, "message", func(tx *sql.Tx) error {
		if m.ClientMessageID != "" {
			existing, err := scanMessage(tx.QueryRowContext(ctx,
				`SELECT `+messageColumns+` FROM chat_messages
				  WHERE chat_id = ? AND author_id = ? AND client_message_id = ?`,
				m.ChatID, m.AuthorID, m.ClientMessageID,
			))
			if err == nil {
				stored = existing
				duplicate = true
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("find client message: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (`+messageColumns+`)
			 SELECT ?, ?, ?, ?, ?, COALESCE(MAX(sequence), 0) + 1, ?, ?
			   FROM chat_messages WHERE chat_id = ?`,
			m.ID,
			m.ChatID,
			m.AuthorID,
			m.Body,
			nullString(m.ClientMessageID),
			toMillis(createdAt),
			toMillis(updatedAt),
			m.ChatID,
		)
		if err != nil {
			return mapWriteError("append message", err)
		}
		stored, err = scanMessage(tx.QueryRowContext(ctx,
			`SELECT `+messageColumns+` FROM chat_messages WHERE id = ?`, m.ID))
		if err != nil {
			return fmt.Errorf("read appended message: %w", err)
		}
		return nil
	})
	if err != nil {
		return chatdomain.Message{}, false, err
	}
	return stored, duplicate, nil
}

// UpdateMessage overwrites body and author of a message.
func (s *Store) UpdateMessage(ctx context.Context, m chatdomain.Message) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, updatedAt := timestamps(m.CreatedAt, m.UpdatedAt)
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE chat_messages SET body = ?, author_id = ?, updated_at = ? WHERE id = ?`,
		m.Body, strings.TrimSpace(m.AuthorID), toMillis(updatedAt), strings.TrimSpace(m.ID),
	)
	if err != nil {
		return mapWriteError("update message", err)
	}
	return requireAffected(result)
}

// GetMessage returns a message by id.
func (s *Store) GetMessage(ctx context.Context, messageID string) (chatdomain.Message, error) {
	if err := s.ready(ctx); err != nil {
		return chatdomain.Message{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE id = ?`, strings.TrimSpace(messageID))
	m, err := scanMessage(row)
	if err != nil {
		return chatdomain.Message{}, mapReadError("get message", err)
	}
	return m, nil
}

// ListMessagesBefore returns up to limit messages older than before, oldest
// first. before <= 0 reads from the latest message.
func (s *Store) ListMessagesBefore(ctx context.Context, chatID string, before int64, limit int) ([]chatdomain.Message, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE chat_id = ?`
	params := []any{strings.TrimSpace(chatID)}
	if before > 0 {
		query += ` AND sequence < ?`
		params = append(params, before)
	}
	query += ` ORDER BY sequence DESC LIMIT ?`
	params = append(params, limit)
	messages, err := listAll(ctx, s, "list messages before", query, params, scanMessage)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListMessages returns one page of a chat's messages in sequence order. The
// page token is the last returned sequence.
func (s *Store) ListMessages(ctx context.Context, chatID string, page pagination.Request) (pagination.Page[chatdomain.Message], error) {
	if err := s.ready(ctx); err != nil {
		return pagination.Page[chatdomain.Message]{}, err
	}
	page, err := normalizePage(page)
	if err != nil {
		return pagination.Page[chatdomain.Message]{}, err
	}
	after := int64(0)
	if page.PageToken != "" {
		after, err = strconv.ParseInt(page.PageToken, 10, 64)
		if err != nil || after < 0 {
			return pagination.Page[chatdomain.Message]{}, fmt.Errorf("invalid page token %q", page.PageToken)
		}
	}
	return listPage(ctx, s, "list messages",
		`SELECT `+messageColumns+` FROM chat_messages
		  WHERE chat_id = ? AND sequence > ?
		  ORDER BY sequence ASC LIMIT ?`,
		[]any{strings.TrimSpace(chatID), after, page.PageSize + 1},
		page.PageSize, scanMessage,
		func(m chatdomain.Message) string { return strconv.FormatInt(m.Sequence, 10) })
}

// LatestSequence returns the highest sequence of a chat, or zero.
func (s *Store) LatestSequence(ctx context.Context, chatID string) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var latest int64
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM chat_messages WHERE chat_id = ?`,
		strings.TrimSpace(chatID),
	).Scan(&latest); err != nil {
		return 0, fmt.Errorf("latest sequence: %w", err)
	}
	return latest, nil
}

var _ storage.ChatStore = (*Store)(nil)

// Package domain models chats, their members and their messages.
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/id"
)

const (
	// MaxNameLength bounds Chat.Name.
	MaxNameLength = 50
	// MaxBodyLength bounds Message.Body.
	MaxBodyLength = 150
	// MaxClientMessageIDLength bounds Message.ClientMessageID.
	MaxClientMessageIDLength = 128

	groupPrefix = "chat_"
)

var (
	// ErrInvalidName indicates a missing or too long chat name.
	ErrInvalidName = apperrors.WithMetadata(apperrors.CodeChatInvalidName, "chat name is invalid",
		map[string]string{"Max": fmt.Sprint(MaxNameLength)})
	// ErrInvalidBody indicates a missing or too long message body.
	ErrInvalidBody = apperrors.WithMetadata(apperrors.CodeChatInvalidBody, "message body is invalid",
		map[string]string{"Max": fmt.Sprint(MaxBodyLength)})
	// ErrNotMember indicates the caller does not belong to the chat.
	ErrNotMember = apperrors.New(apperrors.CodeChatNotMember, "chat membership required")
	// ErrAuthorMismatch indicates an edit by someone other than the author.
	ErrAuthorMismatch = apperrors.New(apperrors.CodeChatAuthorMismatch, "only the author can edit a message")
)

// Chat is a conversation shared by its members.
type Chat struct {
	ID        string
	Name      string
	DiscordID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Group returns the broadcast group name for the chat.
func (c Chat) Group() string {
	return Group(c.ID)
}

// Group returns the broadcast group name for chatID.
func Group(chatID string) string {
	return groupPrefix + chatID
}

// Message is one chat line. Sequence is assigned by the store and grows
// monotonically per chat.
type Message struct {
	ID              string
	ChatID          string
	AuthorID        string
	Body            string
	ClientMessageID string
	Sequence        int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewChat builds a chat named name.
func NewChat(name, discordID string, now func() time.Time, idGenerator func() (string, error)) (Chat, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Chat{}, ErrInvalidName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	chatID, err := idGenerator()
	if err != nil {
		return Chat{}, fmt.Errorf("generate chat id: %w", err)
	}
	created := now().UTC()
	return Chat{ID: chatID, Name: name, DiscordID: strings.TrimSpace(discordID), CreatedAt: created, UpdatedAt: created}, nil
}

// NormalizeBody trims and validates a message body.
func NormalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > MaxBodyLength {
		return "", ErrInvalidBody
	}
	return body, nil
}

// NewMessage builds an unsequenced message.
func NewMessage(chatID, authorID, body, clientMessageID string, now func() time.Time, idGenerator func() (string, error)) (Message, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	chatID = strings.TrimSpace(chatID)
	authorID = strings.TrimSpace(authorID)
	if chatID == "" || authorID == "" {
		return Message{}, fmt.Errorf("chat id and author id are required")
	}
	body, err := NormalizeBody(body)
	if err != nil {
		return Message{}, err
	}
	clientMessageID = strings.TrimSpace(clientMessageID)
	if utf8.RuneCountInString(clientMessageID) > MaxClientMessageIDLength {
		return Message{}, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "client_message_id is too long",
			map[string]string{"Field": "client_message_id"})
	}
	messageID, err := idGenerator()
	if err != nil {
		return Message{}, fmt.Errorf("generate message id: %w", err)
	}
	created := now().UTC()
	return Message{
		ID:              messageID,
		ChatID:          chatID,
		AuthorID:        authorID,
		Body:            body,
		ClientMessageID: clientMessageID,
		CreatedAt:       created,
		UpdatedAt:       created,
	}, nil
}

// EditMessage replaces the body of m on behalf of editorID. newAuthorID, when
// set, must be the current author.
func EditMessage(m Message, editorID, newAuthorID, body string, now time.Time) (Message, error) {
	if m.AuthorID != strings.TrimSpace(editorID) {
		return Message{}, ErrAuthorMismatch
	}
	if newAuthorID = strings.TrimSpace(newAuthorID); newAuthorID != "" && newAuthorID != m.AuthorID {
		return Message{}, ErrAuthorMismatch
	}
	body, err := NormalizeBody(body)
	if err != nil {
		return Message{}, err
	}
	m.Body = body
	m.UpdatedAt = now.UTC()
	return m, nil
}

// Package discord models the Discord users, servers and channels the bot has seen.
package discord

import (
	"strings"
	"time"
)

// User is a Discord account, optionally linked to a site user.
type User struct {
	ID        string
	UserID    string
	Nick      string
	Code      int
	AvatarURL string
	Locale    string
	Premium   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// String renders "nick#code".
func (u User) String() string {
	return u.Nick + "#" + padCode(u.Code)
}

// Linked reports whether the Discord account belongs to a site user.
func (u User) Linked() bool {
	return strings.TrimSpace(u.UserID) != ""
}

func padCode(code int) string {
	digits := []byte{'0', '0', '0', '0'}
	for i := 3; i >= 0 && code > 0; i-- {
		digits[i] = byte('0' + code%10)
		code /= 10
	}
	return string(digits)
}

// Server is a Discord guild.
type Server struct {
	ID          string
	Name        string
	Region      string
	IconURL     string
	OwnerID     string
	Description string
	MemberCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChannelKind distinguishes text from voice channels.
type ChannelKind int

const (
	ChannelText  ChannelKind = 0
	ChannelVoice ChannelKind = 1
)

// Channel is a text or voice channel of a server.
type Channel struct {
	ID        string
	ServerID  string
	Kind      ChannelKind
	Name      string
	Position  int
	NSFW      bool
	Topic     string
	News      bool
	Bitrate   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// String renders "#name" for text channels and the bare name for voice.
func (c Channel) String() string {
	if c.Kind == ChannelText {
		return "#" + c.Name
	}
	return c.Name
}

// SnowflakeTime returns the creation time encoded in a Discord snowflake id.
func SnowflakeTime(id string) time.Time {
	const discordEpoch = 1420070400000
	var value uint64
	for _, r := range strings.TrimSpace(id) {
		if r < '0' || r > '9' {
			return time.Time{}
		}
		value = value*10 + uint64(r-'0')
	}
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(value>>22) + discordEpoch).UTC()
}

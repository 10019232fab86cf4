// Package app runs the Discord bot. It records the users, servers and
// channels it sees and answers prefixed commands.
package app

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/oilandrope/internal/platform/i18n/catalog"
	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	"github.com/louisbranch/oilandrope/internal/platform/telemetry/metrics"
	"github.com/louisbranch/oilandrope/internal/services/bot/discord"
	"github.com/louisbranch/oilandrope/internal/services/registration/user"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/campaign"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/place"
	"github.com/louisbranch/oilandrope/internal/storage"
)

const (
	defaultCommandPrefix = "!"
	defaultName          = "Oil & Rope"
	embedColor           = 0x7b5cd6
)

// Store is the persistence the bot reads and writes.
type Store interface {
	storage.DiscordStore
	GetProfile(ctx context.Context, userID string) (user.Profile, error)
	ListPlaces(ctx context.Context, query storage.PlaceQuery, page pagination.Request) (pagination.Page[place.Place], error)
	ListCampaigns(ctx context.Context, query storage.CampaignQuery, page pagination.Request) (pagination.Page[campaign.Campaign], error)
	GetPlayer(ctx context.Context, campaignID, userID string) (campaign.Player, error)
	UpdateCampaign(ctx context.Context, c campaign.Campaign) error
}

var _ Store = storage.Store(nil)

// Messenger delivers replies through Discord.
type Messenger interface {
	Send(ctx context.Context, channelID string, reply Reply) error
	DirectMessage(ctx context.Context, userID string, reply Reply) error
}

// Reply is a plain or embedded message.
type Reply struct {
	Content string
	Embed   *Embed
}

// Embed is the rich card Discord renders under a message.
type Embed struct {
	Title       string
	Description string
	Footer      string
	Color       int
	Fields      []EmbedField
}

// EmbedField is one titled block of an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Message is a channel or direct message seen by the bot.
type Message struct {
	ID        string
	ChannelID string
	// ServerID is empty for direct messages.
	ServerID  string
	Content   string
	Author    discord.User
	AuthorBot bool
}

// Guild is a server the bot joined, with its channels.
type Guild struct {
	Server          discord.Server
	Channels        []discord.Channel
	SystemChannelID string
}

// Config controls command parsing and replies.
type Config struct {
	CommandPrefix string
	Name          string
	Description   string
	OwnerIDs      []string
	SiteURL       string
}

// Deps are the collaborators of the bot.
type Deps struct {
	Store     Store
	Messenger Messenger
	Metrics   *metrics.Metrics
	// Seed returns the seed of each dice roll.
	Seed func() (int64, error)
	Now  func() time.Time
}

// Bot routes Discord events to command handlers.
type Bot struct {
	cfg       Config
	store     Store
	messenger Messenger
	metrics   *metrics.Metrics
	seed      func() (int64, error)
	clock     func() time.Time
	commands  map[string]command

	stopOnce sync.Once
	stop     func()
}

type command func(ctx context.Context, b *Bot, call commandCall) error

type commandCall struct {
	msg    Message
	args   []string
	locale string
	name   string
}

// New builds a bot. stop is invoked once by the shutdown command.
func New(cfg Config, deps Deps, stop func()) (*Bot, error) {
	if deps.Store == nil {
		return nil, errors.New("bot store is required")
	}
	if deps.Messenger == nil {
		return nil, errors.New("bot messenger is required")
	}
	if strings.TrimSpace(cfg.CommandPrefix) == "" {
		cfg.CommandPrefix = defaultCommandPrefix
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = defaultName
	}
	clock := deps.Now
	if clock == nil {
		clock = time.Now
	}
	seed := deps.Seed
	if seed == nil {
		seed = func() (int64, error) { return clock().UnixNano(), nil }
	}
	if stop == nil {
		stop = func() {}
	}
	b := &Bot{
		cfg:       cfg,
		store:     deps.Store,
		messenger: deps.Messenger,
		metrics:   deps.Metrics,
		seed:      seed,
		clock:     clock,
		stop:      stop,
	}
	b.commands = map[string]command{
		"roll":        rollCommand,
		"linkchannel": linkChannelCommand,
		"worlds":      worldsCommand,
		"shutdown":    shutdownCommand,
		"help":        helpCommand,
	}
	return b, nil
}

// HandleMessage records the author and runs the command the message
// carries, if any.
func (b *Bot) HandleMessage(ctx context.Context, msg Message) error {
	if b == nil {
		return errors.New("bot is nil")
	}
	if msg.AuthorBot {
		return nil
	}
	author, err := b.recordAuthor(ctx, msg.Author)
	if err != nil {
		return err
	}
	if msg.ServerID != "" && msg.ChannelID != "" {
		b.recordChannel(ctx, msg.ServerID, msg.ChannelID)
	}

	content := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(content, b.cfg.CommandPrefix) {
		return nil
	}
	fields := strings.Fields(strings.TrimPrefix(content, b.cfg.CommandPrefix))
	if len(fields) == 0 {
		return nil
	}
	name := strings.ToLower(fields[0])
	call := commandCall{
		msg:    msg,
		args:   fields[1:],
		locale: b.localeFor(ctx, author),
		name:   name,
	}
	call.msg.Author = author

	run, ok := b.commands[name]
	if !ok {
		return b.reply(ctx, call, Reply{Content: catalog.Sprintf(call.locale, "bot.unknown_command", name, b.cfg.CommandPrefix)})
	}
	return run(ctx, b, call)
}

// HandleGuildCreate stores the server with its channels and greets the
// system channel.
func (b *Bot) HandleGuildCreate(ctx context.Context, guild Guild) error {
	if b == nil {
		return errors.New("bot is nil")
	}
	now := b.clock().UTC()
	server := guild.Server
	if server.CreatedAt.IsZero() {
		server.CreatedAt = discord.SnowflakeTime(server.ID)
	}
	server.UpdatedAt = now
	if err := b.store.PutDiscordServer(ctx, server); err != nil {
		return err
	}
	for _, channel := range guild.Channels {
		channel.ServerID = server.ID
		if channel.CreatedAt.IsZero() {
			channel.CreatedAt = discord.SnowflakeTime(channel.ID)
		}
		channel.UpdatedAt = now
		if err := b.store.PutDiscordChannel(ctx, channel); err != nil {
			return err
		}
	}
	if guild.SystemChannelID == "" {
		return nil
	}
	greeting := catalog.Sprintf(catalog.BaseLocale, "bot.greeting", b.cfg.Name, b.cfg.CommandPrefix)
	return b.messenger.Send(ctx, guild.SystemChannelID, Reply{Content: greeting})
}

// recordAuthor upserts the Discord user and returns the stored record,
// which carries the site link when one exists.
func (b *Bot) recordAuthor(ctx context.Context, author discord.User) (discord.User, error) {
	if strings.TrimSpace(author.ID) == "" {
		return author, errors.New("message author is required")
	}
	now := b.clock().UTC()
	if author.CreatedAt.IsZero() {
		author.CreatedAt = discord.SnowflakeTime(author.ID)
	}
	author.UpdatedAt = now
	if err := b.store.PutDiscordUser(ctx, author); err != nil {
		return author, err
	}
	stored, err := b.store.GetDiscordUser(ctx, author.ID)
	if err != nil {
		return author, err
	}
	return stored, nil
}

func (b *Bot) recordChannel(ctx context.Context, serverID, channelID string) {
	if _, err := b.store.GetDiscordChannel(ctx, channelID); err == nil {
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Printf("bot: load channel %s: %v", channelID, err)
		return
	}
	if _, err := b.store.GetDiscordServer(ctx, serverID); err != nil {
		// Channels are stored once their server is known.
		return
	}
	now := b.clock().UTC()
	channel := discord.Channel{
		ID:        channelID,
		ServerID:  serverID,
		Kind:      discord.ChannelText,
		CreatedAt: discord.SnowflakeTime(channelID),
		UpdatedAt: now,
	}
	if err := b.store.PutDiscordChannel(ctx, channel); err != nil {
		log.Printf("bot: store channel %s: %v", channelID, err)
	}
}

// localeFor prefers the linked profile language, then the Discord client
// locale.
func (b *Bot) localeFor(ctx context.Context, author discord.User) string {
	if author.Linked() {
		profile, err := b.store.GetProfile(ctx, author.UserID)
		if err == nil && profile.Language.Valid() {
			return profile.Language.Locale()
		}
	}
	if strings.HasPrefix(strings.ToLower(author.Locale), string(user.LanguageSpanish)) {
		return user.LanguageSpanish.Locale()
	}
	return catalog.BaseLocale
}

func (b *Bot) isOwner(discordID string) bool {
	return slices.Contains(b.cfg.OwnerIDs, discordID)
}

func (b *Bot) reply(ctx context.Context, call commandCall, reply Reply) error {
	return b.messenger.Send(ctx, call.msg.ChannelID, reply)
}

func (b *Bot) shutdown() {
	b.stopOnce.Do(b.stop)
}

package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/oilandrope/internal/services/bot/discord"
	chatdomain "github.com/louisbranch/oilandrope/internal/services/chat/domain"
	"github.com/louisbranch/oilandrope/internal/services/registration/user"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/campaign"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/place"
	"github.com/louisbranch/oilandrope/internal/storage"
	"github.com/louisbranch/oilandrope/internal/storage/sqlite"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type sent struct {
	target string
	direct bool
	reply  Reply
}

type fakeMessenger struct {
	mu      sync.Mutex
	replies []sent
	err     error
}

func (f *fakeMessenger) Send(_ context.Context, channelID string, reply Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.replies = append(f.replies, sent{target: channelID, reply: reply})
	return nil
}

func (f *fakeMessenger) DirectMessage(_ context.Context, userID string, reply Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.replies = append(f.replies, sent{target: userID, direct: true, reply: reply})
	return nil
}

func (f *fakeMessenger) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.replies...)
}

func (f *fakeMessenger) last(t *testing.T) sent {
	t.Helper()
	replies := f.all()
	if len(replies) == 0 {
		t.Fatal("expected a reply")
	}
	return replies[len(replies)-1]
}

type fixture struct {
	bot       *Bot
	store     *sqlite.Store
	messenger *fakeMessenger
	stopped   *int
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "bot.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	messenger := &fakeMessenger{}
	stopped := 0
	bot, err := New(Config{
		CommandPrefix: "!",
		Name:          "Oil & Rope",
		OwnerIDs:      []string{"1000"},
		SiteURL:       "https://oilandrope.test",
	}, Deps{
		Store:     store,
		Messenger: messenger,
		Seed:      func() (int64, error) { return 42, nil },
		Now:       func() time.Time { return testNow },
	}, func() { stopped++ })
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	return fixture{bot: bot, store: store, messenger: messenger, stopped: &stopped}
}

func (f fixture) seedUser(t *testing.T, id string, language user.Language) {
	t.Helper()
	u := user.User{ID: id, Username: id, Email: id + "@example.com", PasswordHash: "hash", IsActive: true, DateJoined: testNow, UpdatedAt: testNow}
	if err := f.store.CreateUser(context.Background(), u, user.NewProfile(id, language, testNow)); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

// link records a Discord account and ties it to the site user.
func (f fixture) link(t *testing.T, discordID, userID string) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.PutDiscordUser(ctx, discord.User{ID: discordID, Nick: "nick" + discordID, CreatedAt: testNow, UpdatedAt: testNow}); err != nil {
		t.Fatalf("put discord user: %v", err)
	}
	if err := f.store.LinkDiscordUser(ctx, discordID, userID, testNow); err != nil {
		t.Fatalf("link discord user: %v", err)
	}
}

func (f fixture) seedCampaign(t *testing.T, id, name, ownerID string, players ...campaign.Player) campaign.Campaign {
	t.Helper()
	c := campaign.Campaign{ID: id, Name: name, OwnerID: ownerID, CreatedAt: testNow, UpdatedAt: testNow}
	chat := chatdomain.Chat{ID: "chat-" + id, Name: c.ChatName(), CreatedAt: testNow}
	all := append(campaign.AddGameMasters(c, testNow, ownerID), players...)
	if err := f.store.CreateCampaign(context.Background(), c, chat, all); err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return c
}

func message(authorID, content string) Message {
	return Message{
		ID:        "m-" + authorID,
		ChannelID: "chan-1",
		ServerID:  "guild-1",
		Content:   content,
		Author:    discord.User{ID: authorID, Nick: "player", Code: 7},
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}, Deps{Messenger: &fakeMessenger{}}, nil); err == nil {
		t.Fatal("expected store error")
	}
	f := newFixture(t)
	if _, err := New(Config{}, Deps{Store: f.store}, nil); err == nil {
		t.Fatal("expected messenger error")
	}
	b, err := New(Config{}, Deps{Store: f.store, Messenger: &fakeMessenger{}}, nil)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	if b.cfg.CommandPrefix != "!" || b.cfg.Name != defaultName {
		t.Fatalf("defaults = %+v", b.cfg)
	}
}

func TestHandleMessageRecordsAuthor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	msg := message("1234", "just chatting")
	msg.Author.Locale = "es-ES"
	if err := f.bot.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	stored, err := f.store.GetDiscordUser(context.Background(), "1234")
	if err != nil {
		t.Fatalf("get discord user: %v", err)
	}
	if stored.Nick != "player" || stored.Code != 7 || stored.Locale != "es-ES" {
		t.Fatalf("stored user = %+v", stored)
	}
	if got := f.messenger.all(); len(got) != 0 {
		t.Fatalf("replies = %+v, want none", got)
	}
}

func TestHandleMessageIgnoresBots(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	msg := message("55", "!roll 1d6")
	msg.AuthorBot = true
	if err := f.bot.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if _, err := f.store.GetDiscordUser(context.Background(), "55"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("bot author stored: %v", err)
	}
	if len(f.messenger.all()) != 0 {
		t.Fatal("bot message answered")
	}
}

func TestRollCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if err := f.bot.HandleMessage(context.Background(), message("1234", "!roll 2d6 + 3")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	got := f.messenger.last(t)
	if got.target != "chan-1" || got.reply.Embed == nil {
		t.Fatalf("reply = %+v", got)
	}
	embed := got.reply.Embed
	if embed.Title != "Roll *2d6+3*" {
		t.Fatalf("title = %q", embed.Title)
	}
	if !strings.HasPrefix(embed.Description, "You rolled **") {
		t.Fatalf("description = %q", embed.Description)
	}
	if !strings.HasPrefix(embed.Footer, "2d6: [") || !strings.HasSuffix(embed.Footer, "+3: [3]") {
		t.Fatalf("footer = %q", embed.Footer)
	}
}

func TestRollCommandInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "syntax", content: "!roll 2x6", want: "Dice roll `2x6` syntax is incorrect."},
		{name: "too large", content: "!roll 1000d6", want: "Dice roll `1000d6` is too large."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			if err := f.bot.HandleMessage(context.Background(), message("1234", tc.content)); err != nil {
				t.Fatalf("handle message: %v", err)
			}
			got := f.messenger.last(t)
			if got.reply.Content != tc.want {
				t.Fatalf("reply = %q, want %q", got.reply.Content, tc.want)
			}
		})
	}
}

func TestRepliesUseProfileLanguage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedUser(t, "alice", user.LanguageSpanish)
	f.link(t, "2000", "alice")

	if err := f.bot.HandleMessage(context.Background(), message("2000", "!shutdown")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if got := f.messenger.last(t).reply.Content; got != "No tienes permiso para ejecutar este comando." {
		t.Fatalf("reply = %q", got)
	}
}

func TestRepliesFallBackToDiscordLocale(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	msg := message("3000", "!nope")
	msg.Author.Locale = "es-419"
	if err := f.bot.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if got := f.messenger.last(t).reply.Content; !strings.HasPrefix(got, "Comando `nope` desconocido.") {
		t.Fatalf("reply = %q", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if err := f.bot.HandleMessage(context.Background(), message("1234", "!dance now")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	want := "Unknown command `dance`. Type `!help` to list the commands."
	if got := f.messenger.last(t).reply.Content; got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
}

func TestShutdownCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if err := f.bot.HandleMessage(ctx, message("1234", "!shutdown")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if *f.stopped != 0 {
		t.Fatal("non-owner stopped the bot")
	}
	if got := f.messenger.last(t).reply.Content; got != "You don't have permission to perform this command." {
		t.Fatalf("reply = %q", got)
	}

	if err := f.bot.HandleMessage(ctx, message("1000", "!shutdown")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if got := f.messenger.last(t).reply.Content; got != "Shutting down..." {
		t.Fatalf("reply = %q", got)
	}
	if err := f.bot.HandleMessage(ctx, message("1000", "!shutdown")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if *f.stopped != 1 {
		t.Fatalf("stopped = %d, want 1", *f.stopped)
	}
}

func TestLinkChannelCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "alice", user.LanguageEnglish)
	f.seedUser(t, "bob", user.LanguageEnglish)
	f.link(t, "2000", "alice")
	f.link(t, "2001", "bob")
	f.seedCampaign(t, "c1", "The Lost Mine", "alice", campaign.Player{UserID: "bob", CampaignID: "c1", CreatedAt: testNow})

	tests := []struct {
		name    string
		author  string
		content string
		want    string
	}{
		{name: "missing name", author: "2000", content: "!linkchannel", want: "You need to specify a campaign name."},
		{name: "unlinked", author: "9999", content: "!linkchannel the lost mine", want: "Your Discord account is not linked. Register at https://oilandrope.test and link it from your profile."},
		{name: "unknown", author: "2000", content: "!linkchannel Dragon Heist", want: "Campaign `Dragon Heist` not found."},
		{name: "player", author: "2001", content: "!linkchannel the lost mine", want: "Only game masters of The Lost Mine can link a channel to it."},
		{name: "game master", author: "2000", content: "!linkchannel the lost mine", want: "This channel is now linked to The Lost Mine."},
	}
	for _, tc := range tests {
		if err := f.bot.HandleMessage(ctx, message(tc.author, tc.content)); err != nil {
			t.Fatalf("%s: handle message: %v", tc.name, err)
		}
		if got := f.messenger.last(t).reply.Content; got != tc.want {
			t.Fatalf("%s: reply = %q, want %q", tc.name, got, tc.want)
		}
	}

	c, err := f.store.GetCampaign(ctx, "c1")
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if c.DiscordChannelID != "chan-1" {
		t.Fatalf("discord channel = %q, want chan-1", c.DiscordChannelID)
	}
}

func TestWorldsCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "alice", user.LanguageEnglish)
	f.link(t, "2000", "alice")
	places := []place.Place{
		{ID: "w1", Name: "Faerûn", SiteType: place.SiteWorld},
		{ID: "w2", Name: "Eberron", SiteType: place.SiteWorld},
		{ID: "city", Name: "Waterdeep", SiteType: place.SiteCity, ParentID: "w1"},
		{ID: "w3", Name: "Homebrew", SiteType: place.SiteWorld, UserID: "alice", OwnerID: "alice"},
	}
	for _, p := range places {
		p.CreatedAt = testNow
		p.UpdatedAt = testNow
		if err := f.store.PutPlace(ctx, p); err != nil {
			t.Fatalf("put place %s: %v", p.ID, err)
		}
	}

	if err := f.bot.HandleMessage(ctx, message("2000", "!worlds list public")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	replies := f.messenger.all()
	if len(replies) != 2 {
		t.Fatalf("replies = %+v, want dm and notice", replies)
	}
	dm := replies[0]
	if !dm.direct || dm.target != "2000" || dm.reply.Embed == nil {
		t.Fatalf("dm = %+v", dm)
	}
	if dm.reply.Embed.Title != "Community worlds" {
		t.Fatalf("title = %q", dm.reply.Embed.Title)
	}
	listed := dm.reply.Embed.Description
	if !strings.Contains(listed, "Faerûn") || !strings.Contains(listed, "Eberron") {
		t.Fatalf("public worlds = %q", listed)
	}
	if strings.Contains(listed, "Waterdeep") || strings.Contains(listed, "Homebrew") {
		t.Fatalf("public worlds leaked = %q", listed)
	}
	if replies[1].reply.Content != "Check your direct messages." {
		t.Fatalf("notice = %+v", replies[1])
	}

	if err := f.bot.HandleMessage(ctx, message("2000", "!worlds")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	replies = f.messenger.all()
	private := replies[len(replies)-2]
	if private.reply.Embed == nil || private.reply.Embed.Title != "Your private worlds" || private.reply.Embed.Description != "• Homebrew" {
		t.Fatalf("private dm = %+v", private)
	}
}

func TestWorldsCommandRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "action", content: "!worlds create", want: "Unknown option `create`. Available options: list."},
		{name: "scope", content: "!worlds list shared", want: "Unknown option `shared`. Available options: public, private."},
		{name: "unlinked", content: "!worlds list private", want: "Your Discord account is not linked. Register at https://oilandrope.test and link it from your profile."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			if err := f.bot.HandleMessage(context.Background(), message("4000", tc.content)); err != nil {
				t.Fatalf("handle message: %v", err)
			}
			got := f.messenger.last(t)
			if got.direct || got.reply.Content != tc.want {
				t.Fatalf("reply = %+v, want %q", got, tc.want)
			}
		})
	}
}

func TestWorldsCommandEmptyInDirectMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	msg := message("4000", "!worlds list public")
	msg.ServerID = ""
	if err := f.bot.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	replies := f.messenger.all()
	if len(replies) != 1 || replies[0].reply.Embed == nil || replies[0].reply.Embed.Description != "No worlds found." {
		t.Fatalf("replies = %+v", replies)
	}
}

func TestHelpCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if err := f.bot.HandleMessage(context.Background(), message("1234", "!help")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	embed := f.messenger.last(t).reply.Embed
	if embed == nil || embed.Title != "Commands" || len(embed.Fields) != 2 {
		t.Fatalf("embed = %+v", embed)
	}
	if embed.Fields[0].Name != "Roleplay" || !strings.Contains(embed.Fields[0].Value, "`!roll` Rolls dice. Example: `!roll 2d6+1d4-2`.") {
		t.Fatalf("roleplay field = %+v", embed.Fields[0])
	}
	if embed.Fields[1].Name != "Miscellaneous" || !strings.Contains(embed.Fields[1].Value, "`!shutdown`") {
		t.Fatalf("misc field = %+v", embed.Fields[1])
	}
}

func TestHandleGuildCreate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	guild := Guild{
		Server: discord.Server{ID: "175928847299117063", Name: "Tavern", OwnerID: "1000", MemberCount: 12},
		Channels: []discord.Channel{
			{ID: "c-text", Name: "general", Kind: discord.ChannelText},
			{ID: "c-voice", Name: "Voice", Kind: discord.ChannelVoice, Bitrate: 64000},
		},
		SystemChannelID: "c-text",
	}
	if err := f.bot.HandleGuildCreate(ctx, guild); err != nil {
		t.Fatalf("handle guild: %v", err)
	}

	server, err := f.store.GetDiscordServer(ctx, guild.Server.ID)
	if err != nil {
		t.Fatalf("get server: %v", err)
	}
	if server.Name != "Tavern" || server.CreatedAt.Year() != 2016 {
		t.Fatalf("server = %+v", server)
	}
	voice, err := f.store.GetDiscordChannel(ctx, "c-voice")
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if voice.ServerID != guild.Server.ID || voice.Kind != discord.ChannelVoice {
		t.Fatalf("channel = %+v", voice)
	}

	greeting := f.messenger.last(t)
	want := "Hello, adventurers! I'm Oil & Rope. Type `!help` to see what I can do."
	if greeting.target != "c-text" || greeting.reply.Content != want {
		t.Fatalf("greeting = %+v", greeting)
	}
}

func TestHandleMessageStoresUnknownChannel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if err := f.bot.HandleGuildCreate(ctx, Guild{Server: discord.Server{ID: "guild-1", Name: "Tavern"}}); err != nil {
		t.Fatalf("handle guild: %v", err)
	}
	if err := f.bot.HandleMessage(ctx, message("1234", "hello")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	channel, err := f.store.GetDiscordChannel(ctx, "chan-1")
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if channel.ServerID != "guild-1" || channel.Kind != discord.ChannelText {
		t.Fatalf("channel = %+v", channel)
	}
}

func TestReplyFailuresPropagate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.messenger.err = errors.New("gateway down")
	if err := f.bot.HandleMessage(context.Background(), message("1234", "!roll 1d6")); err == nil {
		t.Fatal("expected reply error")
	}
}

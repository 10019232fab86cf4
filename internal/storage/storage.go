package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	"github.com/louisbranch/oilandrope/internal/services/bot/discord"
	chatdomain "github.com/louisbranch/oilandrope/internal/services/chat/domain"
	"github.com/louisbranch/oilandrope/internal/services/common"
	"github.com/louisbranch/oilandrope/internal/services/menu"
	"github.com/louisbranch/oilandrope/internal/services/registration/user"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/campaign"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/domain"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/place"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/race"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = apperrors.New(apperrors.CodeAlreadyExists, "record already exists")
)

// Condition is an extra SQL WHERE fragment produced by a list filter.
// Column names in Clause refer to the listed table.
type Condition struct {
	Clause string
	Params []any
}

// Empty reports whether the condition has no clause.
func (c Condition) Empty() bool {
	return c.Clause == ""
}

// UserStore persists accounts, profiles and permissions.
type UserStore interface {
	// CreateUser inserts the user and its profile in one transaction.
	CreateUser(ctx context.Context, u user.User, p user.Profile) error
	GetUser(ctx context.Context, userID string) (user.User, error)
	// GetUserByLogin matches the username exactly or the email case-insensitively.
	GetUserByLogin(ctx context.Context, login string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context, page pagination.Request) (pagination.Page[user.User], error)
	UpdateUser(ctx context.Context, u user.User) error
	GetProfile(ctx context.Context, userID string) (user.Profile, error)
	PutProfile(ctx context.Context, p user.Profile) error
	ListProfiles(ctx context.Context, page pagination.Request) (pagination.Page[user.Profile], error)
	// ListPermissions returns the "app.codename" permissions granted to the user.
	ListPermissions(ctx context.Context, userID string) ([]string, error)
	GrantPermission(ctx context.Context, userID, permission string) error
}

// DiscordStore persists the Discord metadata the bot observes.
type DiscordStore interface {
	// PutDiscordUser upserts the user and keeps an existing site link when
	// the incoming record has none.
	PutDiscordUser(ctx context.Context, u discord.User) error
	GetDiscordUser(ctx context.Context, discordID string) (discord.User, error)
	GetDiscordUserByUserID(ctx context.Context, userID string) (discord.User, error)
	LinkDiscordUser(ctx context.Context, discordID, userID string, linkedAt time.Time) error
	PutDiscordServer(ctx context.Context, s discord.Server) error
	GetDiscordServer(ctx context.Context, serverID string) (discord.Server, error)
	PutDiscordChannel(ctx context.Context, c discord.Channel) error
	GetDiscordChannel(ctx context.Context, channelID string) (discord.Channel, error)
}

// DomainStore persists world domains.
type DomainStore interface {
	PutDomain(ctx context.Context, d domain.Domain) error
	GetDomain(ctx context.Context, domainID string) (domain.Domain, error)
	DeleteDomain(ctx context.Context, domainID string) error
	ListDomains(ctx context.Context, page pagination.Request) (pagination.Page[domain.Domain], error)
}

// PlaceScope restricts a place listing.
type PlaceScope int

const (
	// PlaceScopeAll lists every place.
	PlaceScopeAll PlaceScope = iota
	// PlaceScopeCommunity lists places without a private holder.
	PlaceScopeCommunity
	// PlaceScopeUser lists places held privately by PlaceQuery.UserID.
	PlaceScopeUser
	// PlaceScopeOwned lists places owned by PlaceQuery.UserID.
	PlaceScopeOwned
)

// PlaceQuery selects places for listing.
type PlaceQuery struct {
	Scope    PlaceScope
	UserID   string
	SiteType *place.SiteType
	Filter   Condition
}

// PlaceStore persists places.
type PlaceStore interface {
	PutPlace(ctx context.Context, p place.Place) error
	GetPlace(ctx context.Context, placeID string) (place.Place, error)
	// DeletePlace removes the place and all of its descendants.
	DeletePlace(ctx context.Context, placeID string) error
	ListPlaces(ctx context.Context, query PlaceQuery, page pagination.Request) (pagination.Page[place.Place], error)
	// ListDescendants returns every place below placeID, optionally limited
	// to one site type.
	ListDescendants(ctx context.Context, placeID string, siteType *place.SiteType) ([]place.Place, error)
}

// RaceStore persists races and their users.
type RaceStore interface {
	// CreateRace inserts the race with its initial users.
	CreateRace(ctx context.Context, r race.Race, users []race.RaceUser) error
	UpdateRace(ctx context.Context, r race.Race) error
	GetRace(ctx context.Context, raceID string) (race.Race, error)
	DeleteRace(ctx context.Context, raceID string) error
	// ListRaces lists every race when userID is empty, otherwise only the
	// races the user is attached to.
	ListRaces(ctx context.Context, userID string, filter Condition, page pagination.Request) (pagination.Page[race.Race], error)
	PutRaceUsers(ctx context.Context, users []race.RaceUser) error
	ListRaceUsers(ctx context.Context, raceID string) ([]race.RaceUser, error)
}

// CampaignQuery selects campaigns for listing. When VisibleTo is set only
// public campaigns and those the user owns or plays in are listed.
type CampaignQuery struct {
	VisibleTo  string
	PublicOnly bool
	Filter     Condition
}

// CampaignStore persists campaigns, their players and sessions.
type CampaignStore interface {
	// CreateCampaign inserts the campaign, its chat and the initial players
	// in one transaction. Players become chat members.
	CreateCampaign(ctx context.Context, c campaign.Campaign, chat chatdomain.Chat, players []campaign.Player) error
	UpdateCampaign(ctx context.Context, c campaign.Campaign) error
	GetCampaign(ctx context.Context, campaignID string) (campaign.Campaign, error)
	DeleteCampaign(ctx context.Context, campaignID string) error
	ListCampaigns(ctx context.Context, query CampaignQuery, page pagination.Request) (pagination.Page[campaign.Campaign], error)
	// PutPlayers upserts players and adds them to the campaign chat.
	PutPlayers(ctx context.Context, players []campaign.Player) error
	GetPlayer(ctx context.Context, campaignID, userID string) (campaign.Player, error)
	ListPlayers(ctx context.Context, campaignID string) ([]campaign.Player, error)

	PutSession(ctx context.Context, s campaign.Session) error
	GetSession(ctx context.Context, sessionID string) (campaign.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	// ListSessions lists sessions of campaigns the user plays in, or all of
	// them when userID is empty.
	ListSessions(ctx context.Context, userID string, filter Condition, page pagination.Request) (pagination.Page[campaign.Session], error)
	ListCampaignSessions(ctx context.Context, campaignID string) ([]campaign.Session, error)
}

// ChatStore persists chats, their members and messages.
type ChatStore interface {
	PutChat(ctx context.Context, c chatdomain.Chat) error
	GetChat(ctx context.Context, chatID string) (chatdomain.Chat, error)
	AddChatMembers(ctx context.Context, chatID string, userIDs ...string) error
	IsChatMember(ctx context.Context, chatID, userID string) (bool, error)
	ListChatMembers(ctx context.Context, chatID string) ([]string, error)
	// ListUserChats lists the chats the user is a member of.
	ListUserChats(ctx context.Context, userID string, page pagination.Request) (pagination.Page[chatdomain.Chat], error)

	// AppendMessage assigns the next per-chat sequence and stores m. When m
	// carries a ClientMessageID already stored for the same author and chat,
	// the stored message is returned with duplicate set.
	AppendMessage(ctx context.Context, m chatdomain.Message) (stored chatdomain.Message, duplicate bool, err error)
	UpdateMessage(ctx context.Context, m chatdomain.Message) error
	GetMessage(ctx context.Context, messageID string) (chatdomain.Message, error)
	// ListMessagesBefore returns up to limit messages with a sequence below
	// before (0 means latest), oldest first.
	ListMessagesBefore(ctx context.Context, chatID string, before int64, limit int) ([]chatdomain.Message, error)
	ListMessages(ctx context.Context, chatID string, page pagination.Request) (pagination.Page[chatdomain.Message], error)
	LatestSequence(ctx context.Context, chatID string) (int64, error)
}

// MenuStore persists dynamic menus.
type MenuStore interface {
	PutMenu(ctx context.Context, m menu.Menu) error
	GetMenu(ctx context.Context, menuID string) (menu.Menu, error)
	DeleteMenu(ctx context.Context, menuID string) error
	ListMenus(ctx context.Context) ([]menu.Menu, error)
	// ReplaceMenus swaps the whole menu tree in one transaction.
	ReplaceMenus(ctx context.Context, menus []menu.Menu) error
}

// CommonStore persists tracks and votes.
type CommonStore interface {
	PutTrack(ctx context.Context, t common.Track) error
	GetTrack(ctx context.Context, trackID string) (common.Track, error)
	DeleteTrack(ctx context.Context, trackID string) error
	// ListTracks lists public tracks plus the user's own.
	ListTracks(ctx context.Context, userID string, page pagination.Request) (pagination.Page[common.Track], error)

	GetVote(ctx context.Context, userID, kind, targetID string) (common.Vote, error)
	PutVote(ctx context.Context, v common.Vote) error
	// TargetExists reports whether a votable record exists.
	TargetExists(ctx context.Context, kind, targetID string) (bool, error)
}

// Store is the full persistence surface shared by the services.
type Store interface {
	UserStore
	DiscordStore
	DomainStore
	PlaceStore
	RaceStore
	CampaignStore
	ChatStore
	MenuStore
	CommonStore
	Close() error
}

package api

import (
	"time"

	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	chatdomain "github.com/louisbranch/oilandrope/internal/services/chat/domain"
	"github.com/louisbranch/oilandrope/internal/services/common"
	"github.com/louisbranch/oilandrope/internal/services/menu"
	"github.com/louisbranch/oilandrope/internal/services/registration/user"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/campaign"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/domain"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/place"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/race"
)

// birthdayLayout is the wire format of profile birthdays.
const birthdayLayout = "2006-01-02"

type userResource struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	IsPremium   bool       `json:"is_premium"`
	DateJoined  time.Time  `json:"date_joined"`
	LastLogin   *time.Time `json:"last_login"`
}

func toUserResource(u user.User) userResource {
	return userResource{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		IsPremium:   u.IsPremium,
		DateJoined:  u.DateJoined,
		LastLogin:   u.LastLogin,
	}
}

type profileResource struct {
	UserID   string `json:"user_id"`
	Bio      string `json:"bio"`
	Birthday string `json:"birthday,omitempty"`
	Age      *int   `json:"age,omitempty"`
	Language string `json:"language"`
	Alias    string `json:"alias"`
	Web      string `json:"web"`
	Image    string `json:"image"`
}

func toProfileResource(p user.Profile, now time.Time) profileResource {
	out := profileResource{
		UserID:   p.UserID,
		Bio:      p.Bio,
		Language: string(p.Language),
		Alias:    p.Alias,
		Web:      p.Web,
		Image:    p.Image,
	}
	if p.Birthday != nil {
		out.Birthday = p.Birthday.UTC().Format(birthdayLayout)
	}
	if age, ok := p.Age(now); ok {
		out.Age = &age
	}
	return out
}

type domainResource struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        int       `json:"domain_type"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"entry_created_at"`
	UpdatedAt   time.Time `json:"entry_updated_at"`
}

func toDomainResource(d domain.Domain) domainResource {
	return domainResource{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Type:        int(d.Type),
		Image:       d.Image,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type placeResource struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	SiteType     int       `json:"site_type"`
	SiteTypeName string    `json:"site_type_name"`
	Icon         string    `json:"icon"`
	Image        string    `json:"image"`
	ParentID     string    `json:"parent_site"`
	UserID       string    `json:"user"`
	OwnerID      string    `json:"owner"`
	CreatedAt    time.Time `json:"entry_created_at"`
	UpdatedAt    time.Time `json:"entry_updated_at"`
}

func toPlaceResource(p place.Place) placeResource {
	return placeResource{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		SiteType:     int(p.SiteType),
		SiteTypeName: p.SiteType.String(),
		Icon:         p.Icon(),
		Image:        p.Image,
		ParentID:     p.ParentID,
		UserID:       p.UserID,
		OwnerID:      p.OwnerID,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type raceResource struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	race.Abilities
	AffectedByArmor bool      `json:"affected_by_armor"`
	Image           string    `json:"image"`
	Owners          []string  `json:"owners,omitempty"`
	CreatedAt       time.Time `json:"entry_created_at"`
	UpdatedAt       time.Time `json:"entry_updated_at"`
}

func toRaceResource(r race.Race, users []race.RaceUser) raceResource {
	out := raceResource{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		Abilities:       r.Abilities,
		AffectedByArmor: r.AffectedByArmor,
		Image:           r.Image,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	for _, u := range users {
		if u.IsOwner {
			out.Owners = append(out.Owners, u.UserID)
		}
	}
	return out
}

type campaignResource struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Slug             string     `json:"slug"`
	Description      string     `json:"description"`
	GMInfo           string     `json:"gm_info,omitempty"`
	Resume           string     `json:"summary"`
	System           int        `json:"system"`
	CoverImage       string     `json:"cover_image"`
	OwnerID          string     `json:"owner"`
	IsPublic         bool       `json:"is_public"`
	PlaceID          string     `json:"place"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	DiscordChannelID string     `json:"discord_channel"`
	ChatID           string     `json:"chat"`
	CreatedAt        time.Time  `json:"entry_created_at"`
	UpdatedAt        time.Time  `json:"entry_updated_at"`
}

// toCampaignResource renders c. GM information is only included when
// withGMInfo is set.
func toCampaignResource(c campaign.Campaign, withGMInfo bool) campaignResource {
	out := campaignResource{
		ID:               c.ID,
		Name:             c.Name,
		Slug:             c.Slug(),
		Description:      c.Description,
		Resume:           c.Resume,
		System:           int(c.System),
		CoverImage:       c.CoverImage,
		OwnerID:          c.OwnerID,
		IsPublic:         c.IsPublic,
		PlaceID:          c.PlaceID,
		StartDate:        c.StartDate,
		EndDate:          c.EndDate,
		DiscordChannelID: c.DiscordChannelID,
		ChatID:           c.ChatID,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if withGMInfo {
		out.GMInfo = c.GMInfo
	}
	return out
}

type sessionResource struct {
	ID          string     `json:"id"`
	CampaignID  string     `json:"campaign"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Plot        string     `json:"plot"`
	GMInfo      string     `json:"gm_info,omitempty"`
	NextGame    *time.Time `json:"next_game"`
	System      int        `json:"system"`
	Image       string     `json:"image"`
	Finished    bool       `json:"finished"`
	CreatedAt   time.Time  `json:"entry_created_at"`
	UpdatedAt   time.Time  `json:"entry_updated_at"`
}

func toSessionResource(s campaign.Session, withGMInfo bool, now time.Time) sessionResource {
	out := sessionResource{
		ID:          s.ID,
		CampaignID:  s.CampaignID,
		Name:        s.Name,
		Description: s.Description,
		Plot:        s.Plot,
		NextGame:    s.NextGame,
		System:      int(s.System),
		Image:       s.Image,
		Finished:    s.Finished(now),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if withGMInfo {
		out.GMInfo = s.GMInfo
	}
	return out
}

type chatResource struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	DiscordID string            `json:"discord_id,omitempty"`
	Messages  []messageResource `json:"chat_message_set,omitempty"`
	CreatedAt time.Time         `json:"entry_created_at"`
	UpdatedAt time.Time         `json:"entry_updated_at"`
}

func toChatResource(c chatdomain.Chat) chatResource {
	return chatResource{
		ID:        c.ID,
		Name:      c.Name,
		DiscordID: c.DiscordID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type authorResource struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type messageResource struct {
	ID              string          `json:"id"`
	ChatID          string          `json:"chat"`
	AuthorID        string          `json:"author_id"`
	Author          *authorResource `json:"author,omitempty"`
	Body            string          `json:"message"`
	ClientMessageID string          `json:"client_message_id,omitempty"`
	Sequence        int64           `json:"sequence_id"`
	CreatedAt       time.Time       `json:"entry_created_at"`
	UpdatedAt       time.Time       `json:"entry_updated_at"`
}

func toMessageResource(m chatdomain.Message) messageResource {
	return messageResource{
		ID:              m.ID,
		ChatID:          m.ChatID,
		AuthorID:        m.AuthorID,
		Body:            m.Body,
		ClientMessageID: m.ClientMessageID,
		Sequence:        m.Sequence,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type trackResource struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner"`
	Public      bool      `json:"public"`
	File        string    `json:"file"`
	CreatedAt   time.Time `json:"entry_created_at"`
	UpdatedAt   time.Time `json:"entry_updated_at"`
}

func toTrackResource(t common.Track) trackResource {
	return trackResource{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		OwnerID:     t.OwnerID,
		Public:      t.Public,
		File:        t.File,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type menuResource struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	DisplayName       string         `json:"display_name"`
	Description       string         `json:"description"`
	PrependedText     string         `json:"prepended_text"`
	AppendedText      string         `json:"appended_text"`
	ParentID          string         `json:"parent"`
	URL               string         `json:"url_resolver"`
	ExtraURLArgs      string         `json:"extra_url_params"`
	Link              string         `json:"link"`
	Order             int            `json:"order"`
	Permissions       []string       `json:"permissions"`
	StaffRequired     bool           `json:"staff_required"`
	SuperuserRequired bool           `json:"superuser_required"`
	Icon              string         `json:"icon"`
	RelatedModels     []string       `json:"related_models"`
	Type              int            `json:"menu_type"`
	Children          []menuResource `json:"children,omitempty"`
}

func toMenuResource(m menu.Menu) menuResource {
	return menuResource{
		ID:                m.ID,
		Name:              m.Name,
		DisplayName:       m.DisplayName(),
		Description:       m.Description,
		PrependedText:     m.PrependedText,
		AppendedText:      m.AppendedText,
		ParentID:          m.ParentID,
		URL:               m.URL,
		ExtraURLArgs:      m.ExtraURLArgs,
		Link:              m.Link(),
		Order:             m.Order,
		Permissions:       nonNil(m.Permissions),
		StaffRequired:     m.StaffRequired,
		SuperuserRequired: m.SuperuserRequired,
		Icon:              m.Icon,
		RelatedModels:     nonNil(m.RelatedModels),
		Type:              int(m.Type),
	}
}

func toMenuTree(nodes []*menu.Node) []menuResource {
	out := make([]menuResource, 0, len(nodes))
	for _, node := range nodes {
		res := toMenuResource(node.Menu)
		if len(node.Children) > 0 {
			res.Children = toMenuTree(node.Children)
		}
		out = append(out, res)
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// mapPage converts the results of a page keeping its cursor.
func mapPage[T, R any](page pagination.Page[T], convert func(T) R) pagination.Page[R] {
	out := pagination.Page[R]{Results: make([]R, 0, len(page.Results)), NextPageToken: page.NextPageToken}
	for _, item := range page.Results {
		out.Results = append(out.Results, convert(item))
	}
	return out
}

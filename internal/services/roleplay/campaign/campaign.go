// Package campaign models campaigns, their players and their sessions.
package campaign

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gosimple/slug"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/id"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/place"
)

const (
	// MaxNameLength bounds Campaign.Name.
	MaxNameLength = 50
	// MaxResumeLength bounds Campaign.Resume.
	MaxResumeLength = 254
	// ChatSuffix is appended to the campaign name to name its chat.
	ChatSuffix = " Chat"
)

// System is the ruleset a campaign is played with.
type System int

const (
	SystemPathfinder System = 0
	SystemDnD5e      System = 1
)

// Valid reports whether s is a known system.
func (s System) Valid() bool {
	return s == SystemPathfinder || s == SystemDnD5e
}

// String returns the display label.
func (s System) String() string {
	switch s {
	case SystemPathfinder:
		return "Pathfinder"
	case SystemDnD5e:
		return "Dungeons & Dragons 5e"
	default:
		return "Unknown"
	}
}

// MessageKey returns the catalog key of the system label.
func (s System) MessageKey() string {
	if s == SystemDnD5e {
		return "core.system.dnd_5e"
	}
	return "core.system.pathfinder"
}

var (
	// ErrInvalidName indicates a missing or too long name.
	ErrInvalidName = apperrors.WithMetadata(apperrors.CodeCampaignInvalidName, "campaign name is invalid",
		map[string]string{"Max": fmt.Sprint(MaxNameLength)})
	// ErrInvalidResume indicates a resume over MaxResumeLength.
	ErrInvalidResume = apperrors.WithMetadata(apperrors.CodeCampaignInvalidResume, "campaign resume is too long",
		map[string]string{"Max": fmt.Sprint(MaxResumeLength)})
	// ErrInvalidSystem indicates an unknown system.
	ErrInvalidSystem = apperrors.New(apperrors.CodeCampaignInvalidSystem, "system is invalid")
	// ErrPlaceNotWorld indicates a campaign placed somewhere other than a world.
	ErrPlaceNotWorld = apperrors.New(apperrors.CodeCampaignPlaceNotWorld, "campaign place must be a world")
	// ErrInvalidDates indicates an end date before the start date.
	ErrInvalidDates = apperrors.New(apperrors.CodeCampaignInvalidDates, "end date cannot be before start date")
	// ErrAlreadyPlayer indicates the user already plays in the campaign.
	ErrAlreadyPlayer = apperrors.New(apperrors.CodeCampaignAlreadyPlayer, "user already plays in this campaign")
)

// Campaign is a series of sessions set in a world.
type Campaign struct {
	ID               string
	Name             string
	Description      string
	GMInfo           string
	Resume           string
	System           System
	CoverImage       string
	OwnerID          string
	IsPublic         bool
	PlaceID          string
	StartDate        *time.Time
	EndDate          *time.Time
	DiscordChannelID string
	ChatID           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// String renders "Name [id]".
func (c Campaign) String() string {
	return fmt.Sprintf("%s [%s]", c.Name, c.ID)
}

// Slug returns the URL-safe name used for lookups by name.
func (c Campaign) Slug() string {
	return slug.Make(c.Name)
}

// ChatName returns the name of the campaign chat.
func (c Campaign) ChatName() string {
	return c.Name + ChatSuffix
}

// Player is a user taking part in a campaign.
type Player struct {
	UserID       string
	CampaignID   string
	IsGameMaster bool
	CreatedAt    time.Time
}

// AddGameMasters returns game-master player links for userIDs.
func AddGameMasters(c Campaign, now time.Time, userIDs ...string) []Player {
	seen := make(map[string]struct{}, len(userIDs))
	players := make([]Player, 0, len(userIDs))
	for _, userID := range userIDs {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		players = append(players, Player{UserID: userID, CampaignID: c.ID, IsGameMaster: true, CreatedAt: now.UTC()})
	}
	return players
}

// Input describes the editable fields of a campaign.
type Input struct {
	Name             string
	Description      string
	GMInfo           string
	Resume           string
	System           System
	CoverImage       string
	IsPublic         bool
	PlaceID          string
	StartDate        *time.Time
	EndDate          *time.Time
	DiscordChannelID string
}

// Normalize trims and validates input.
func Normalize(input Input) (Input, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.GMInfo = strings.TrimSpace(input.GMInfo)
	input.Resume = strings.TrimSpace(input.Resume)
	input.CoverImage = strings.TrimSpace(input.CoverImage)
	input.PlaceID = strings.TrimSpace(input.PlaceID)
	input.DiscordChannelID = strings.TrimSpace(input.DiscordChannelID)
	if input.Name == "" || utf8.RuneCountInString(input.Name) > MaxNameLength {
		return Input{}, ErrInvalidName
	}
	if utf8.RuneCountInString(input.Resume) > MaxResumeLength {
		return Input{}, ErrInvalidResume
	}
	if !input.System.Valid() {
		return Input{}, ErrInvalidSystem
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return Input{}, ErrInvalidDates
	}
	return input, nil
}

// ValidateWorld checks that p can host a campaign.
func ValidateWorld(p place.Place) error {
	if !p.IsWorld() {
		return ErrPlaceNotWorld
	}
	return nil
}

// Create builds a new campaign owned by ownerID. The chat id is assigned by
// the caller once the chat exists.
func Create(input Input, ownerID string, now func() time.Time, idGenerator func() (string, error)) (Campaign, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	normalized, err := Normalize(input)
	if err != nil {
		return Campaign{}, err
	}
	campaignID, err := idGenerator()
	if err != nil {
		return Campaign{}, fmt.Errorf("generate campaign id: %w", err)
	}
	created := now().UTC()
	c := Campaign{ID: campaignID, OwnerID: strings.TrimSpace(ownerID), CreatedAt: created}
	return apply(c, normalized, created), nil
}

// Update applies input to c.
func Update(c Campaign, input Input, now time.Time) (Campaign, error) {
	normalized, err := Normalize(input)
	if err != nil {
		return Campaign{}, err
	}
	return apply(c, normalized, now.UTC()), nil
}

func apply(c Campaign, input Input, updatedAt time.Time) Campaign {
	c.Name = input.Name
	c.Description = input.Description
	c.GMInfo = input.GMInfo
	c.Resume = input.Resume
	c.System = input.System
	c.CoverImage = input.CoverImage
	c.IsPublic = input.IsPublic
	c.PlaceID = input.PlaceID
	c.StartDate = input.StartDate
	c.EndDate = input.EndDate
	c.DiscordChannelID = input.DiscordChannelID
	c.UpdatedAt = updatedAt
	return c
}

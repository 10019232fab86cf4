// Package race models playable races and the users that own them.
package race

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/id"
)

// MaxNameLength bounds Race.Name.
const MaxNameLength = 50

// ErrInvalidName indicates a missing or too long name.
var ErrInvalidName = apperrors.WithMetadata(apperrors.CodeRaceInvalidName, "race name is invalid",
	map[string]string{"Max": fmt.Sprint(MaxNameLength)})

// Abilities are the racial ability modifiers.
type Abilities struct {
	Strength     int16 `json:"strength"`
	Dexterity    int16 `json:"dexterity"`
	Constitution int16 `json:"constitution"`
	Intelligence int16 `json:"intelligence"`
	Wisdom       int16 `json:"wisdom"`
	Charisma     int16 `json:"charisma"`
}

// Race is a playable race.
type Race struct {
	ID          string
	Name        string
	Description string
	Abilities
	AffectedByArmor bool
	Image           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RaceUser links a user to a race.
type RaceUser struct {
	RaceID    string
	UserID    string
	IsOwner   bool
	CreatedAt time.Time
}

// AddOwners returns owner links for users on race r.
func AddOwners(r Race, now time.Time, userIDs ...string) []RaceUser {
	seen := make(map[string]struct{}, len(userIDs))
	links := make([]RaceUser, 0, len(userIDs))
	for _, userID := range userIDs {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		links = append(links, RaceUser{RaceID: r.ID, UserID: userID, IsOwner: true, CreatedAt: now.UTC()})
	}
	return links
}

// Input describes the editable fields of a race. AffectedByArmor defaults to
// true when nil.
type Input struct {
	Name            string
	Description     string
	Abilities       Abilities
	AffectedByArmor *bool
	Image           string
}

func normalize(input Input) (Input, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Image = strings.TrimSpace(input.Image)
	if input.Name == "" || utf8.RuneCountInString(input.Name) > MaxNameLength {
		return Input{}, ErrInvalidName
	}
	return input, nil
}

// Create builds a new race.
func Create(input Input, now func() time.Time, idGenerator func() (string, error)) (Race, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	normalized, err := normalize(input)
	if err != nil {
		return Race{}, err
	}
	raceID, err := idGenerator()
	if err != nil {
		return Race{}, fmt.Errorf("generate race id: %w", err)
	}
	affected := true
	if normalized.AffectedByArmor != nil {
		affected = *normalized.AffectedByArmor
	}
	created := now().UTC()
	return Race{
		ID:              raceID,
		Name:            normalized.Name,
		Description:     normalized.Description,
		Abilities:       normalized.Abilities,
		AffectedByArmor: affected,
		Image:           normalized.Image,
		CreatedAt:       created,
		UpdatedAt:       created,
	}, nil
}

// Update applies input to r.
func Update(r Race, input Input, now time.Time) (Race, error) {
	normalized, err := normalize(input)
	if err != nil {
		return Race{}, err
	}
	r.Name = normalized.Name
	r.Description = normalized.Description
	r.Abilities = normalized.Abilities
	if normalized.AffectedByArmor != nil {
		r.AffectedByArmor = *normalized.AffectedByArmor
	}
	r.Image = normalized.Image
	r.UpdatedAt = now.UTC()
	return r, nil
}

// Package common holds the shared records every app can use: audio tracks,
// votes and uploaded files.
package common

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/id"
)

// MaxTrackNameLength bounds Track.Name.
const MaxTrackNameLength = 50

// ErrInvalidTrackName indicates a missing or too long track name.
var ErrInvalidTrackName = apperrors.WithMetadata(apperrors.CodeTrackInvalidName, "track name is invalid",
	map[string]string{"Max": fmt.Sprint(MaxTrackNameLength)})

// Track is an audio file (music or sound effect) for game sessions.
type Track struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	Public      bool
	File        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanEdit reports whether the user may change or delete the track.
func (t Track) CanEdit(userID string, isStaff bool) bool {
	return isStaff || (userID != "" && t.OwnerID == userID)
}

// TrackInput describes the editable fields of a track. Public defaults to
// true when nil.
type TrackInput struct {
	Name        string
	Description string
	Public      *bool
	File        string
}

// CreateTrack builds a track owned by ownerID.
func CreateTrack(input TrackInput, ownerID string, now func() time.Time, idGenerator func() (string, error)) (Track, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || utf8.RuneCountInString(name) > MaxTrackNameLength {
		return Track{}, ErrInvalidTrackName
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Track{}, fmt.Errorf("owner id is required")
	}
	trackID, err := idGenerator()
	if err != nil {
		return Track{}, fmt.Errorf("generate track id: %w", err)
	}
	public := true
	if input.Public != nil {
		public = *input.Public
	}
	created := now().UTC()
	return Track{
		ID:          trackID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     ownerID,
		Public:      public,
		File:        strings.TrimSpace(input.File),
		CreatedAt:   created,
		UpdatedAt:   created,
	}, nil
}

// UpdateTrack applies input to t.
func UpdateTrack(t Track, input TrackInput, now time.Time) (Track, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || utf8.RuneCountInString(name) > MaxTrackNameLength {
		return Track{}, ErrInvalidTrackName
	}
	t.Name = name
	t.Description = strings.TrimSpace(input.Description)
	if input.Public != nil {
		t.Public = *input.Public
	}
	if file := strings.TrimSpace(input.File); file != "" {
		t.File = file
	}
	t.UpdatedAt = now.UTC()
	return t, nil
}

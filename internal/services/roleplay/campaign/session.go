package campaign

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/id"
)

const (
	// MaxSessionNameLength bounds Session.Name.
	MaxSessionNameLength = 100
	// MaxPlotLength bounds Session.Plot.
	MaxPlotLength = 254
)

var (
	// ErrInvalidSessionName indicates a missing or too long session name.
	ErrInvalidSessionName = apperrors.WithMetadata(apperrors.CodeSessionInvalidName, "session name is invalid",
		map[string]string{"Max": fmt.Sprint(MaxSessionNameLength)})
	// ErrInvalidPlot indicates a plot over MaxPlotLength.
	ErrInvalidPlot = apperrors.WithMetadata(apperrors.CodeSessionInvalidPlot, "session plot is too long",
		map[string]string{"Max": fmt.Sprint(MaxPlotLength)})
)

// Session is one game night of a campaign. Players, game masters, world and
// chat come from the campaign.
type Session struct {
	ID          string
	CampaignID  string
	Name        string
	Description string
	Plot        string
	GMInfo      string
	NextGame    *time.Time
	System      System
	Image       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// String renders "Name [System]".
func (s Session) String() string {
	return fmt.Sprintf("%s [%s]", s.Name, s.System)
}

// Finished reports whether the next game day is before today.
func (s Session) Finished(now time.Time) bool {
	if s.NextGame == nil {
		return false
	}
	return truncateDay(*s.NextGame).Before(truncateDay(now))
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FinishedSessions returns the finished sessions, newest next game first.
func FinishedSessions(sessions []Session, now time.Time) []Session {
	finished := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Finished(now) {
			finished = append(finished, s)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool {
		return finished[i].NextGame.After(*finished[j].NextGame)
	})
	return finished
}

// SessionInput describes the editable fields of a session.
type SessionInput struct {
	Name        string
	Description string
	Plot        string
	GMInfo      string
	NextGame    *time.Time
	System      System
	Image       string
}

// NormalizeSession trims and validates input.
func NormalizeSession(input SessionInput) (SessionInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Plot = strings.TrimSpace(input.Plot)
	input.GMInfo = strings.TrimSpace(input.GMInfo)
	input.Image = strings.TrimSpace(input.Image)
	if input.Name == "" || utf8.RuneCountInString(input.Name) > MaxSessionNameLength {
		return SessionInput{}, ErrInvalidSessionName
	}
	if utf8.RuneCountInString(input.Plot) > MaxPlotLength {
		return SessionInput{}, ErrInvalidPlot
	}
	if !input.System.Valid() {
		return SessionInput{}, ErrInvalidSystem
	}
	if input.NextGame != nil {
		next := input.NextGame.UTC()
		input.NextGame = &next
	}
	return input, nil
}

// CreateSession builds a session for campaignID.
func CreateSession(campaignID string, input SessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return Session{}, fmt.Errorf("campaign id is required")
	}
	normalized, err := NormalizeSession(input)
	if err != nil {
		return Session{}, err
	}
	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}
	created := now().UTC()
	s := Session{ID: sessionID, CampaignID: campaignID, CreatedAt: created}
	return applySession(s, normalized, created), nil
}

// UpdateSession applies input to s.
func UpdateSession(s Session, input SessionInput, now time.Time) (Session, error) {
	normalized, err := NormalizeSession(input)
	if err != nil {
		return Session{}, err
	}
	return applySession(s, normalized, now.UTC()), nil
}

func applySession(s Session, input SessionInput, updatedAt time.Time) Session {
	s.Name = input.Name
	s.Description = input.Description
	s.Plot = input.Plot
	s.GMInfo = input.GMInfo
	s.NextGame = input.NextGame
	s.System = input.System
	s.Image = input.Image
	s.UpdatedAt = updatedAt
	return s
}

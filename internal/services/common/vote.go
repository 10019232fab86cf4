package common

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/id"
)

// Votable target kinds, written as "app.model".
const (
	TargetCampaign = "roleplay.campaign"
	TargetSession  = "roleplay.session"
	TargetPlace    = "roleplay.place"
	TargetRace     = "roleplay.race"
	TargetTrack    = "common.track"
)

var votableKinds = map[string]struct{}{
	TargetCampaign: {},
	TargetSession:  {},
	TargetPlace:    {},
	TargetRace:     {},
	TargetTrack:    {},
}

// ErrUnknownTarget indicates a vote on a kind or record that does not exist.
var ErrUnknownTarget = apperrors.New(apperrors.CodeVoteUnknownTarget, "vote target not found")

// Vote is a user's positive or negative vote on a record. There is at most
// one vote per (user, target).
type Vote struct {
	ID         string
	UserID     string
	TargetKind string
	TargetID   string
	IsPositive bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NormalizeTargetKind lowercases kind and checks that it is votable.
func NormalizeTargetKind(kind string) (string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if _, ok := votableKinds[kind]; !ok {
		return "", ErrUnknownTarget
	}
	return kind, nil
}

// CastVote returns the vote to store. When existing is set its IsPositive is
// updated in place; otherwise a new vote is built.
func CastVote(existing *Vote, userID, kind, targetID string, isPositive bool, now func() time.Time, idGenerator func() (string, error)) (Vote, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	ts := now().UTC()
	if existing != nil {
		v := *existing
		v.IsPositive = isPositive
		v.UpdatedAt = ts
		return v, nil
	}
	kind, err := NormalizeTargetKind(kind)
	if err != nil {
		return Vote{}, err
	}
	userID = strings.TrimSpace(userID)
	targetID = strings.TrimSpace(targetID)
	if userID == "" || targetID == "" {
		return Vote{}, fmt.Errorf("user id and target id are required")
	}
	voteID, err := idGenerator()
	if err != nil {
		return Vote{}, fmt.Errorf("generate vote id: %w", err)
	}
	return Vote{
		ID:         voteID,
		UserID:     userID,
		TargetKind: kind,
		TargetID:   targetID,
		IsPositive: isPositive,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}, nil
}

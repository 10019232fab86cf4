package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	"github.com/louisbranch/oilandrope/internal/services/common"
	"github.com/louisbranch/oilandrope/internal/storage"
)

const trackColumns = `id, name, description, owner_id, public, file, created_at, updated_at`

// votableTables maps vote target kinds to the table holding the target.
var votableTables = map[string]string{
	common.TargetCampaign: "campaigns",
	common.TargetSession:  "sessions",
	common.TargetPlace:    "places",
	common.TargetRace:     "races",
	common.TargetTrack:    "tracks",
}

func scanTrack(row rowScanner) (common.Track, error) {
	var t common.Track
	var createdAt, updatedAt int64
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.OwnerID, &t.Public, &t.File, &createdAt, &updatedAt); err != nil {
		return common.Track{}, err
	}
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return t, nil
}

// PutTrack upserts a track.
func (s *Store) PutTrack(ctx context.Context, t common.Track) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		return fmt.Errorf("track id is required")
	}
	createdAt, updatedAt := timestamps(t.CreatedAt, t.UpdatedAt)
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO tracks (`+trackColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   public = excluded.public,
		   file = excluded.file,
		   updated_at = excluded.updated_at`,
		t.ID,
		t.Name,
		t.Description,
		strings.TrimSpace(t.OwnerID),
		boolToInt(t.Public),
		t.File,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	return mapWriteError("put track", err)
}

// GetTrack returns a track by id.
func (s *Store) GetTrack(ctx context.Context, trackID string) (common.Track, error) {
	if err := s.ready(ctx); err != nil {
		return common.Track{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, strings.TrimSpace(trackID))
	t, err := scanTrack(row)
	if err != nil {
		return common.Track{}, mapReadError("get track", err)
	}
	return t, nil
}

// DeleteTrack removes a track.
func (s *Store) DeleteTrack(ctx context.Context, trackID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, strings.TrimSpace(trackID))
	if err != nil {
		return fmt.Errorf("delete track: %w", err)
	}
	return requireAffected(result)
}

// ListTracks returns public tracks plus those owned by userID.
func (s *Store) ListTracks(ctx context.Context, userID string, page pagination.Request) (pagination.Page[common.Track], error) {
	if err := s.ready(ctx); err != nil {
		return pagination.Page[common.Track]{}, err
	}
	page, err := normalizePage(page)
	if err != nil {
		return pagination.Page[common.Track]{}, err
	}
	query, params := keyset(`SELECT `+trackColumns+` FROM tracks`,
		[]string{"(public = 1 OR owner_id = ?)"}, []any{strings.TrimSpace(userID)}, page)
	return listPage(ctx, s, "list tracks", query, params, page.PageSize, scanTrack,
		func(t common.Track) string { return t.ID })
}

// GetVote returns the vote of a user on a target.
func (s *Store) GetVote(ctx context.Context, userID, kind, targetID string) (common.Vote, error) {
	if err := s.ready(ctx); err != nil {
		return common.Vote{}, err
	}
	var v common.Vote
	var createdAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, user_id, target_kind, target_id, is_positive, created_at, updated_at
		   FROM votes WHERE user_id = ? AND target_kind = ? AND target_id = ?`,
		strings.TrimSpace(userID), strings.TrimSpace(kind), strings.TrimSpace(targetID),
	).Scan(&v.ID, &v.UserID, &v.TargetKind, &v.TargetID, &v.IsPositive, &createdAt, &updatedAt)
	if err != nil {
		return common.Vote{}, mapReadError("get vote", err)
	}
	v.CreatedAt = fromMillis(createdAt)
	v.UpdatedAt = fromMillis(updatedAt)
	return v, nil
}

// PutVote upserts a vote keyed by (user, target).
func (s *Store) PutVote(ctx context.Context, v common.Vote) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(v.ID) == "" {
		return fmt.Errorf("vote id is required")
	}
	createdAt, updatedAt := timestamps(v.CreatedAt, v.UpdatedAt)
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO votes (id, user_id, target_kind, target_id, is_positive, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, target_kind, target_id) DO UPDATE SET
		   is_positive = excluded.is_positive,
		   updated_at = excluded.updated_at`,
		strings.TrimSpace(v.ID),
		strings.TrimSpace(v.UserID),
		strings.TrimSpace(v.TargetKind),
		strings.TrimSpace(v.TargetID),
		boolToInt(v.IsPositive),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	return mapWriteError("put vote", err)
}

// TargetExists reports whether a votable record exists.
func (s *Store) TargetExists(ctx context.Context, kind, targetID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	table, ok := votableTables[kind]
	if !ok {
		return false, nil
	}
	var one int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, strings.TrimSpace(targetID)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check vote target: %w", err)
	}
	return true, nil
}

var _ storage.CommonStore = (*Store)(nil)

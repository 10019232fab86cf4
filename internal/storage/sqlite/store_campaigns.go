package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	chatdomain "github.com/louisbranch/oilandrope/internal/services/chat/domain"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/campaign"
	"github.com/louisbranch/oilandrope/internal/storage"
)

const campaignColumns = `id, name, description, gm_info, resume, system, cover_image, owner_id,
	is_public, place_id, start_date, end_date, discord_channel_id, chat_id, created_at, updated_at`

const sessionColumns = `id, campaign_id, name, description, plot, gm_info, next_game, system, image, created_at, updated_at`

func scanCampaign(row rowScanner) (campaign.Campaign, error) {
	var c campaign.Campaign
	var system int
	var ownerID, placeID sql.NullString
	var startDate, endDate sql.NullInt64
	var createdAt, updatedAt int64
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&c.GMInfo,
		&c.Resume,
		&system,
		&c.CoverImage,
		&ownerID,
		&c.IsPublic,
		&placeID,
		&startDate,
		&endDate,
		&c.DiscordChannelID,
		&c.ChatID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return campaign.Campaign{}, err
	}
	c.System = campaign.System(system)
	c.OwnerID = ownerID.String
	c.PlaceID = placeID.String
	c.StartDate = fromNullMillis(startDate)
	c.EndDate = fromNullMillis(endDate)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

// CreateCampaign inserts the campaign with its chat and initial players.
func (s *Store) CreateCampaign(ctx context.Context, c campaign.Campaign, chat chatdomain.Chat, players []campaign.Player) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	c.ID = strings.TrimSpace(c.ID)
	chat.ID = strings.TrimSpace(chat.ID)
	if c.ID == "" || chat.ID == "" {
		return fmt.Errorf("campaign id and chat id are required")
	}
	c.ChatID = chat.ID
	createdAt, updatedAt := timestamps(c.CreatedAt, c.UpdatedAt)

	return s.inTx(ctx, "campaign", func(tx *sql.Tx) error {
		if err := putChat(ctx, tx, chat); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO campaigns (`+campaignColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID,
			c.Name,
			c.Description,
			c.GMInfo,
			c.Resume,
			int(c.System),
			c.CoverImage,
			nullString(c.OwnerID),
			boolToInt(c.IsPublic),
			nullString(c.PlaceID),
			toNullMillis(c.StartDate),
			toNullMillis(c.EndDate),
			c.DiscordChannelID,
			c.ChatID,
			toMillis(createdAt),
			toMillis(updatedAt),
		)
		if err != nil {
			return mapWriteError("create campaign", err)
		}
		return putPlayers(ctx, tx, c.ChatID, players)
	})
}

// UpdateCampaign overwrites the campaign columns. The chat link is kept.
func (s *Store) UpdateCampaign(ctx context.Context, c campaign.Campaign) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, updatedAt := timestamps(c.CreatedAt, c.UpdatedAt)
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE campaigns SET
		   name = ?, description = ?, gm_info = ?, resume = ?, system = ?, cover_image = ?,
		   owner_id = ?, is_public = ?, place_id = ?, start_date = ?, end_date = ?,
		   discord_channel_id = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name,
		c.Description,
		c.GMInfo,
		c.Resume,
		int(c.System),
		c.CoverImage,
		nullString(c.OwnerID),
		boolToInt(c.IsPublic),
		nullString(c.PlaceID),
		toNullMillis(c.StartDate),
		toNullMillis(c.EndDate),
		c.DiscordChannelID,
		toMillis(updatedAt),
		strings.TrimSpace(c.ID),
	)
	if err != nil {
		return mapWriteError("update campaign", err)
	}
	return requireAffected(result)
}

// GetCampaign returns a campaign by id.
func (s *Store) GetCampaign(ctx context.Context, campaignID string) (campaign.Campaign, error) {
	if err := s.ready(ctx); err != nil {
		return campaign.Campaign{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, strings.TrimSpace(campaignID))
	c, err := scanCampaign(row)
	if err != nil {
		return campaign.Campaign{}, mapReadError("get campaign", err)
	}
	return c, nil
}

// DeleteCampaign removes a campaign, its sessions, players and chat.
func (s *Store) DeleteCampaign(ctx context.Context, campaignID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	campaignID = strings.TrimSpace(campaignID)
	return s.inTx(ctx, "campaign delete", func(tx *sql.Tx) error {
		var chatID string
		if err := tx.QueryRowContext(ctx, `SELECT chat_id FROM campaigns WHERE id = ?`, campaignID).Scan(&chatID); err != nil {
			return mapReadError("delete campaign", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, campaignID); err != nil {
			return fmt.Errorf("delete campaign: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID); err != nil {
			return fmt.Errorf("delete campaign chat: %w", err)
		}
		return nil
	})
}

// ListCampaigns returns one page of campaigns matching query.
func (s *Store) ListCampaigns(ctx context.Context, query storage.CampaignQuery, page pagination.Request) (pagination.Page[campaign.Campaign], error) {
	if err := s.ready(ctx); err != nil {
		return pagination.Page[campaign.Campaign]{}, err
	}
	page, err := normalizePage(page)
	if err != nil {
		return pagination.Page[campaign.Campaign]{}, err
	}
	var conditions []string
	var params []any
	switch visibleTo := strings.TrimSpace(query.VisibleTo); {
	case query.PublicOnly:
		conditions = append(conditions, "is_public = 1")
	case visibleTo != "":
		conditions = append(conditions,
			"(is_public = 1 OR owner_id = ? OR id IN (SELECT campaign_id FROM campaign_players WHERE user_id = ?))")
		params = append(params, visibleTo, visibleTo)
	}
	conditions, params = withFilter(conditions, params, query.Filter)
	sqlQuery, params := keyset(`SELECT `+campaignColumns+` FROM campaigns`, conditions, params, page)
	return listPage(ctx, s, "list campaigns", sqlQuery, params, page.PageSize, scanCampaign,
		func(c campaign.Campaign) string { return c.ID })
}

// PutPlayers upserts players and makes them members of the campaign chat.
func (s *Store) PutPlayers(ctx context.Context, players []campaign.Player) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(players) == 0 {
		return nil
	}
	return s.inTx(ctx, "players", func(tx *sql.Tx) error {
		byCampaign := map[string][]campaign.Player{}
		for _, p := range players {
			byCampaign[p.CampaignID] = append(byCampaign[p.CampaignID], p)
		}
		for campaignID, group := range byCampaign {
			var chatID string
			if err := tx.QueryRowContext(ctx, `SELECT chat_id FROM campaigns WHERE id = ?`, campaignID).Scan(&chatID); err != nil {
				return mapReadError("put players", err)
			}
			if err := putPlayers(ctx, tx, chatID, group); err != nil {
				return err
			}
		}
		return nil
	})
}

func putPlayers(ctx context.Context, tx *sql.Tx, chatID string, players []campaign.Player) error {
	for _, p := range players {
		createdAt, _ := timestamps(p.CreatedAt, p.CreatedAt)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO campaign_players (campaign_id, user_id, is_game_master, created_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(campaign_id, user_id) DO UPDATE SET
			   is_game_master = MAX(campaign_players.is_game_master, excluded.is_game_master)`,
			strings.TrimSpace(p.CampaignID),
			strings.TrimSpace(p.UserID),
			boolToInt(p.IsGameMaster),
			toMillis(createdAt),
		)
		if err != nil {
			return mapWriteError("put player", err)
		}
		if err := addChatMembers(ctx, tx, chatID, createdAt, p.UserID); err != nil {
			return err
		}
	}
	return nil
}

func scanPlayer(row rowScanner) (campaign.Player, error) {
	var p campaign.Player
	var createdAt int64
	if err := row.Scan(&p.CampaignID, &p.UserID, &p.IsGameMaster, &createdAt); err != nil {
		return campaign.Player{}, err
	}
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}

// GetPlayer returns the player record of a user in a campaign.
func (s *Store) GetPlayer(ctx context.Context, campaignID, userID string) (campaign.Player, error) {
	if err := s.ready(ctx); err != nil {
		return campaign.Player{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT campaign_id, user_id, is_game_master, created_at
		   FROM campaign_players WHERE campaign_id = ? AND user_id = ?`,
		strings.TrimSpace(campaignID), strings.TrimSpace(userID),
	)
	p, err := scanPlayer(row)
	if err != nil {
		return campaign.Player{}, mapReadError("get player", err)
	}
	return p, nil
}

// ListPlayers returns every player of a campaign, game masters first.
func (s *Store) ListPlayers(ctx context.Context, campaignID string) ([]campaign.Player, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return listAll(ctx, s, "list players",
		`SELECT campaign_id, user_id, is_game_master, created_at
		   FROM campaign_players WHERE campaign_id = ?
		  ORDER BY is_game_master DESC, user_id ASC`,
		[]any{strings.TrimSpace(campaignID)},
		scanPlayer)
}

func scanSession(row rowScanner) (campaign.Session, error) {
	var sess campaign.Session
	var system int
	var nextGame sql.NullInt64
	var createdAt, updatedAt int64
	if err := row.Scan(
		&sess.ID,
		&sess.CampaignID,
		&sess.Name,
		&sess.Description,
		&sess.Plot,
		&sess.GMInfo,
		&nextGame,
		&system,
		&sess.Image,
		&createdAt,
		&updatedAt,
	); err != nil {
		return campaign.Session{}, err
	}
	sess.NextGame = fromNullMillis(nextGame)
	sess.System = campaign.System(system)
	sess.CreatedAt = fromMillis(createdAt)
	sess.UpdatedAt = fromMillis(updatedAt)
	return sess, nil
}

// PutSession upserts a session.
func (s *Store) PutSession(ctx context.Context, sess campaign.Session) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	sess.ID = strings.TrimSpace(sess.ID)
	if sess.ID == "" {
		return fmt.Errorf("session id is required")
	}
	createdAt, updatedAt := timestamps(sess.CreatedAt, sess.UpdatedAt)
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   campaign_id = excluded.campaign_id,
		   name = excluded.name,
		   description = excluded.description,
		   plot = excluded.plot,
		   gm_info = excluded.gm_info,
		   next_game = excluded.next_game,
		   system = excluded.system,
		   image = excluded.image,
		   updated_at = excluded.updated_at`,
		sess.ID,
		strings.TrimSpace(sess.CampaignID),
		sess.Name,
		sess.Description,
		sess.Plot,
		sess.GMInfo,
		toNullMillis(sess.NextGame),
		int(sess.System),
		sess.Image,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	return mapWriteError("put session", err)
}

// GetSession returns a session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (campaign.Session, error) {
	if err := s.ready(ctx); err != nil {
		return campaign.Session{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, strings.TrimSpace(sessionID))
	sess, err := scanSession(row)
	if err != nil {
		return campaign.Session{}, mapReadError("get session", err)
	}
	return sess, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, strings.TrimSpace(sessionID))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireAffected(result)
}

// ListSessions returns one page of sessions, limited to the user's campaigns
// when userID is set.
func (s *Store) ListSessions(ctx context.Context, userID string, filter storage.Condition, page pagination.Request) (pagination.Page[campaign.Session], error) {
	if err := s.ready(ctx); err != nil {
		return pagination.Page[campaign.Session]{}, err
	}
	page, err := normalizePage(page)
	if err != nil {
		return pagination.Page[campaign.Session]{}, err
	}
	var conditions []string
	var params []any
	if userID = strings.TrimSpace(userID); userID != "" {
		conditions = append(conditions, "campaign_id IN (SELECT campaign_id FROM campaign_players WHERE user_id = ?)")
		params = append(params, userID)
	}
	conditions, params = withFilter(conditions, params, filter)
	query, params := keyset(`SELECT `+sessionColumns+` FROM sessions`, conditions, params, page)
	return listPage(ctx, s, "list sessions", query, params, page.PageSize, scanSession,
		func(sess campaign.Session) string { return sess.ID })
}

// ListCampaignSessions returns every session of a campaign ordered by next game.
func (s *Store) ListCampaignSessions(ctx context.Context, campaignID string) ([]campaign.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return listAll(ctx, s, "list campaign sessions",
		`SELECT `+sessionColumns+` FROM sessions WHERE campaign_id = ?
		  ORDER BY next_game IS NULL, next_game ASC, id ASC`,
		[]any{strings.TrimSpace(campaignID)},
		scanSession)
}

var _ storage.CampaignStore = (*Store)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/oilandrope/internal/services/bot/discord"
	"github.com/louisbranch/oilandrope/internal/storage"
)

const discordUserColumns = `id, user_id, nick, code, avatar_url, locale, premium, created_at, updated_at`

func scanDiscordUser(row rowScanner) (discord.User, error) {
	var u discord.User
	var userID sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(
		&u.ID,
		&userID,
		&u.Nick,
		&u.Code,
		&u.AvatarURL,
		&u.Locale,
		&u.Premium,
		&createdAt,
		&updatedAt,
	); err != nil {
		return discord.User{}, err
	}
	u.UserID = userID.String
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

// PutDiscordUser upserts Discord user metadata. An existing site link is
// kept when u.UserID is empty.
func (s *Store) PutDiscordUser(ctx context.Context, u discord.User) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return fmt.Errorf("discord user id is required")
	}
	createdAt, updatedAt := timestamps(u.CreatedAt, u.UpdatedAt)
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO discord_users (`+discordUserColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id = COALESCE(excluded.user_id, discord_users.user_id),
		   nick = excluded.nick,
		   code = excluded.code,
		   avatar_url = excluded.avatar_url,
		   locale = excluded.locale,
		   premium = excluded.premium,
		   updated_at = excluded.updated_at`,
		u.ID,
		nullString(u.UserID),
		u.Nick,
		u.Code,
		u.AvatarURL,
		u.Locale,
		boolToInt(u.Premium),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	return mapWriteError("put discord user", err)
}

// GetDiscordUser returns a Discord user by snowflake.
func (s *Store) GetDiscordUser(ctx context.Context, discordID string) (discord.User, error) {
	if err := s.ready(ctx); err != nil {
		return discord.User{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+discordUserColumns+` FROM discord_users WHERE id = ?`,
		strings.TrimSpace(discordID),
	)
	u, err := scanDiscordUser(row)
	if err != nil {
		return discord.User{}, mapReadError("get discord user", err)
	}
	return u, nil
}

// GetDiscordUserByUserID returns the Discord account linked to a site user.
func (s *Store) GetDiscordUserByUserID(ctx context.Context, userID string) (discord.User, error) {
	if err := s.ready(ctx); err != nil {
		return discord.User{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return discord.User{}, fmt.Errorf("user id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+discordUserColumns+` FROM discord_users WHERE user_id = ?`,
		userID,
	)
	u, err := scanDiscordUser(row)
	if err != nil {
		return discord.User{}, mapReadError("get discord user by user", err)
	}
	return u, nil
}

// LinkDiscordUser attaches a Discord account to a site user. A previous link
// of the same site user to another account is cleared.
func (s *Store) LinkDiscordUser(ctx context.Context, discordID, userID string, linkedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	discordID = strings.TrimSpace(discordID)
	userID = strings.TrimSpace(userID)
	if discordID == "" || userID == "" {
		return fmt.Errorf("discord id and user id are required")
	}
	if linkedAt.IsZero() {
		linkedAt = time.Now()
	}
	return s.inTx(ctx, "discord link", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE discord_users SET user_id = NULL, updated_at = ? WHERE user_id = ? AND id != ?`,
			toMillis(linkedAt), userID, discordID,
		); err != nil {
			return mapWriteError("unlink discord user", err)
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE discord_users SET user_id = ?, updated_at = ? WHERE id = ?`,
			userID, toMillis(linkedAt), discordID,
		)
		if err != nil {
			return mapWriteError("link discord user", err)
		}
		return requireAffected(result)
	})
}

// PutDiscordServer upserts guild metadata.
func (s *Store) PutDiscordServer(ctx context.Context, srv discord.Server) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	srv.ID = strings.TrimSpace(srv.ID)
	if srv.ID == "" {
		return fmt.Errorf("discord server id is required")
	}
	createdAt, updatedAt := timestamps(srv.CreatedAt, srv.UpdatedAt)
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO discord_servers (
		   id, name, region, icon_url, owner_id, description, member_count, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   region = excluded.region,
		   icon_url = excluded.icon_url,
		   owner_id = excluded.owner_id,
		   description = excluded.description,
		   member_count = excluded.member_count,
		   updated_at = excluded.updated_at`,
		srv.ID,
		srv.Name,
		srv.Region,
		srv.IconURL,
		srv.OwnerID,
		srv.Description,
		srv.MemberCount,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	return mapWriteError("put discord server", err)
}

// GetDiscordServer returns guild metadata by id.
func (s *Store) GetDiscordServer(ctx context.Context, serverID string) (discord.Server, error) {
	if err := s.ready(ctx); err != nil {
		return discord.Server{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, region, icon_url, owner_id, description, member_count, created_at, updated_at
		   FROM discord_servers WHERE id = ?`,
		strings.TrimSpace(serverID),
	)
	var srv discord.Server
	var createdAt, updatedAt int64
	if err := row.Scan(
		&srv.ID,
		&srv.Name,
		&srv.Region,
		&srv.IconURL,
		&srv.OwnerID,
		&srv.Description,
		&srv.MemberCount,
		&createdAt,
		&updatedAt,
	); err != nil {
		return discord.Server{}, mapReadError("get discord server", err)
	}
	srv.CreatedAt = fromMillis(createdAt)
	srv.UpdatedAt = fromMillis(updatedAt)
	return srv, nil
}

// PutDiscordChannel upserts channel metadata.
func (s *Store) PutDiscordChannel(ctx context.Context, c discord.Channel) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		return fmt.Errorf("discord channel id is required")
	}
	createdAt, updatedAt := timestamps(c.CreatedAt, c.UpdatedAt)
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO discord_channels (
		   id, server_id, kind, name, position, nsfw, topic, news, bitrate, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   server_id = excluded.server_id,
		   kind = excluded.kind,
		   name = excluded.name,
		   position = excluded.position,
		   nsfw = excluded.nsfw,
		   topic = excluded.topic,
		   news = excluded.news,
		   bitrate = excluded.bitrate,
		   updated_at = excluded.updated_at`,
		c.ID,
		c.ServerID,
		int(c.Kind),
		c.Name,
		c.Position,
		boolToInt(c.NSFW),
		c.Topic,
		boolToInt(c.News),
		c.Bitrate,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	return mapWriteError("put discord channel", err)
}

// GetDiscordChannel returns channel metadata by id.
func (s *Store) GetDiscordChannel(ctx context.Context, channelID string) (discord.Channel, error) {
	if err := s.ready(ctx); err != nil {
		return discord.Channel{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, server_id, kind, name, position, nsfw, topic, news, bitrate, created_at, updated_at
		   FROM discord_channels WHERE id = ?`,
		strings.TrimSpace(channelID),
	)
	var c discord.Channel
	var kind int
	var createdAt, updatedAt int64
	if err := row.Scan(
		&c.ID,
		&c.ServerID,
		&kind,
		&c.Name,
		&c.Position,
		&c.NSFW,
		&c.Topic,
		&c.News,
		&c.Bitrate,
		&createdAt,
		&updatedAt,
	); err != nil {
		return discord.Channel{}, mapReadError("get discord channel", err)
	}
	c.Kind = discord.ChannelKind(kind)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

var _ storage.DiscordStore = (*Store)(nil)

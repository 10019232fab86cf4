package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/domain"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/place"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/race"
	"github.com/louisbranch/oilandrope/internal/storage"
)

const placeColumns = `id, name, description, site_type, image, parent_id, user_id, owner_id, created_at, updated_at`

const raceColumns = `id, name, description, strength, dexterity, constitution, intelligence,
	wisdom, charisma, affected_by_armor, image, created_at, updated_at`

func scanDomain(row rowScanner) (domain.Domain, error) {
	var d domain.Domain
	var domainType int
	var createdAt, updatedAt int64
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &domainType, &d.Image, &createdAt, &updatedAt); err != nil {
		return domain.Domain{}, err
	}
	d.Type = domain.Type(domainType)
	d.CreatedAt = fromMillis(createdAt)
	d.UpdatedAt = fromMillis(updatedAt)
	return d, nil
}

// PutDomain upserts a domain.
func (s *Store) PutDomain(ctx context.Context, d domain.Domain) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return fmt.Errorf("domain id is required")
	}
	createdAt, updatedAt := timestamps(d.CreatedAt, d.UpdatedAt)
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO domains (id, name, description, type, image, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   type = excluded.type,
		   image = excluded.image,
		   updated_at = excluded.updated_at`,
		d.ID, d.Name, d.Description, int(d.Type), d.Image, toMillis(createdAt), toMillis(updatedAt),
	)
	return mapWriteError("put domain", err)
}

// GetDomain returns a domain by id.
func (s *Store) GetDomain(ctx context.Context, domainID string) (domain.Domain, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Domain{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, description, type, image, created_at, updated_at FROM domains WHERE id = ?`,
		strings.TrimSpace(domainID),
	)
	d, err := scanDomain(row)
	if err != nil {
		return domain.Domain{}, mapReadError("get domain", err)
	}
	return d, nil
}

// DeleteDomain removes a domain.
func (s *Store) DeleteDomain(ctx context.Context, domainID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM domains WHERE id = ?`, strings.TrimSpace(domainID))
	if err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}
	return requireAffected(result)
}

// ListDomains returns one page of domains.
func (s *Store) ListDomains(ctx context.Context, page pagination.Request) (pagination.Page[domain.Domain], error) {
	if err := s.ready(ctx); err != nil {
		return pagination.Page[domain.Domain]{}, err
	}
	page, err := normalizePage(page)
	if err != nil {
		return pagination.Page[domain.Domain]{}, err
	}
	query, params := keyset(`SELECT id, name, description, type, image, created_at, updated_at FROM domains`, nil, nil, page)
	return listPage(ctx, s, "list domains", query, params, page.PageSize, scanDomain,
		func(d domain.Domain) string { return d.ID })
}

func scanPlace(row rowScanner) (place.Place, error) {
	var p place.Place
	var siteType int
	var parentID, userID, ownerID sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&siteType,
		&p.Image,
		&parentID,
		&userID,
		&ownerID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return place.Place{}, err
	}
	p.SiteType = place.SiteType(siteType)
	p.ParentID = parentID.String
	p.UserID = userID.String
	p.OwnerID = ownerID.String
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

// PutPlace upserts a place.
func (s *Store) PutPlace(ctx context.Context, p place.Place) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return fmt.Errorf("place id is required")
	}
	if strings.TrimSpace(p.UserID) != "" && strings.TrimSpace(p.OwnerID) == "" {
		return place.ErrPrivateWithoutOwner
	}
	createdAt, updatedAt := timestamps(p.CreatedAt, p.UpdatedAt)
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO places (`+placeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   site_type = excluded.site_type,
		   image = excluded.image,
		   parent_id = excluded.parent_id,
		   user_id = excluded.user_id,
		   owner_id = excluded.owner_id,
		   updated_at = excluded.updated_at`,
		p.ID,
		p.Name,
		p.Description,
		int(p.SiteType),
		p.Image,
		nullString(p.ParentID),
		nullString(p.UserID),
		nullString(p.OwnerID),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	return mapWriteError("put place", err)
}

// GetPlace returns a place by id.
func (s *Store) GetPlace(ctx context.Context, placeID string) (place.Place, error) {
	if err := s.ready(ctx); err != nil {
		return place.Place{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+placeColumns+` FROM places WHERE id = ?`, strings.TrimSpace(placeID))
	p, err := scanPlace(row)
	if err != nil {
		return place.Place{}, mapReadError("get place", err)
	}
	return p, nil
}

// DeletePlace removes a place. Descendants go through ON DELETE CASCADE.
func (s *Store) DeletePlace(ctx context.Context, placeID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM places WHERE id = ?`, strings.TrimSpace(placeID))
	if err != nil {
		return fmt.Errorf("delete place: %w", err)
	}
	return requireAffected(result)
}

// ListPlaces returns one page of places matching query.
func (s *Store) ListPlaces(ctx context.Context, query storage.PlaceQuery, page pagination.Request) (pagination.Page[place.Place], error) {
	if err := s.ready(ctx); err != nil {
		return pagination.Page[place.Place]{}, err
	}
	page, err := normalizePage(page)
	if err != nil {
		return pagination.Page[place.Place]{}, err
	}
	var conditions []string
	var params []any
	userID := strings.TrimSpace(query.UserID)
	switch query.Scope {
	case storage.PlaceScopeCommunity:
		conditions = append(conditions, "user_id IS NULL")
	case storage.PlaceScopeUser:
		if userID == "" {
			return pagination.Page[place.Place]{}, fmt.Errorf("user id is required")
		}
		conditions = append(conditions, "user_id = ?")
		params = append(params, userID)
	case storage.PlaceScopeOwned:
		if userID == "" {
			return pagination.Page[place.Place]{}, fmt.Errorf("user id is required")
		}
		conditions = append(conditions, "owner_id = ?")
		params = append(params, userID)
	}
	if query.SiteType != nil {
		conditions = append(conditions, "site_type = ?")
		params = append(params, int(*query.SiteType))
	}
	conditions, params = withFilter(conditions, params, query.Filter)
	sqlQuery, params := keyset(`SELECT `+placeColumns+` FROM places`, conditions, params, page)
	return listPage(ctx, s, "list places", sqlQuery, params, page.PageSize, scanPlace,
		func(p place.Place) string { return p.ID })
}

// ListDescendants walks the place tree below placeID.
func (s *Store) ListDescendants(ctx context.Context, placeID string, siteType *place.SiteType) ([]place.Place, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, fmt.Errorf("place id is required")
	}
	query := `WITH RECURSIVE tree(id) AS (
	            SELECT id FROM places WHERE parent_id = ?
	            UNION
	            SELECT places.id FROM places JOIN tree ON places.parent_id = tree.id
	          )
	          SELECT ` + placeColumns + ` FROM places WHERE id IN (SELECT id FROM tree)`
	params := []any{placeID}
	if siteType != nil {
		query += ` AND site_type = ?`
		params = append(params, int(*siteType))
	}
	query += ` ORDER BY id ASC`
	return listAll(ctx, s, "list descendants", query, params, scanPlace)
}

func scanRace(row rowScanner) (race.Race, error) {
	var r race.Race
	var createdAt, updatedAt int64
	if err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Description,
		&r.Strength,
		&r.Dexterity,
		&r.Constitution,
		&r.Intelligence,
		&r.Wisdom,
		&r.Charisma,
		&r.AffectedByArmor,
		&r.Image,
		&createdAt,
		&updatedAt,
	); err != nil {
		return race.Race{}, err
	}
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return r, nil
}

// CreateRace inserts a race with its initial users.
func (s *Store) CreateRace(ctx context.Context, r race.Race, users []race.RaceUser) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		return fmt.Errorf("race id is required")
	}
	createdAt, updatedAt := timestamps(r.CreatedAt, r.UpdatedAt)
	return s.inTx(ctx, "race", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO races (`+raceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID,
			r.Name,
			r.Description,
			r.Strength,
			r.Dexterity,
			r.Constitution,
			r.Intelligence,
			r.Wisdom,
			r.Charisma,
			boolToInt(r.AffectedByArmor),
			r.Image,
			toMillis(createdAt),
			toMillis(updatedAt),
		)
		if err != nil {
			return mapWriteError("create race", err)
		}
		return putRaceUsers(ctx, tx, users)
	})
}

// UpdateRace overwrites the race columns.
func (s *Store) UpdateRace(ctx context.Context, r race.Race) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, updatedAt := timestamps(r.CreatedAt, r.UpdatedAt)
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE races SET
		   name = ?, description = ?, strength = ?, dexterity = ?, constitution = ?,
		   intelligence = ?, wisdom = ?, charisma = ?, affected_by_armor = ?, image = ?, updated_at = ?
		 WHERE id = ?`,
		r.Name,
		r.Description,
		r.Strength,
		r.Dexterity,
		r.Constitution,
		r.Intelligence,
		r.Wisdom,
		r.Charisma,
		boolToInt(r.AffectedByArmor),
		r.Image,
		toMillis(updatedAt),
		strings.TrimSpace(r.ID),
	)
	if err != nil {
		return mapWriteError("update race", err)
	}
	return requireAffected(result)
}

// GetRace returns a race by id.
func (s *Store) GetRace(ctx context.Context, raceID string) (race.Race, error) {
	if err := s.ready(ctx); err != nil {
		return race.Race{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+raceColumns+` FROM races WHERE id = ?`, strings.TrimSpace(raceID))
	r, err := scanRace(row)
	if err != nil {
		return race.Race{}, mapReadError("get race", err)
	}
	return r, nil
}

// DeleteRace removes a race and its user links.
func (s *Store) DeleteRace(ctx context.Context, raceID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM races WHERE id = ?`, strings.TrimSpace(raceID))
	if err != nil {
		return fmt.Errorf("delete race: %w", err)
	}
	return requireAffected(result)
}

// ListRaces returns one page of races, limited to the user's when userID is set.
func (s *Store) ListRaces(ctx context.Context, userID string, filter storage.Condition, page pagination.Request) (pagination.Page[race.Race], error) {
	if err := s.ready(ctx); err != nil {
		return pagination.Page[race.Race]{}, err
	}
	page, err := normalizePage(page)
	if err != nil {
		return pagination.Page[race.Race]{}, err
	}
	var conditions []string
	var params []any
	if userID = strings.TrimSpace(userID); userID != "" {
		conditions = append(conditions, "id IN (SELECT race_id FROM race_users WHERE user_id = ?)")
		params = append(params, userID)
	}
	conditions, params = withFilter(conditions, params, filter)
	query, params := keyset(`SELECT `+raceColumns+` FROM races`, conditions, params, page)
	return listPage(ctx, s, "list races", query, params, page.PageSize, scanRace,
		func(r race.Race) string { return r.ID })
}

// PutRaceUsers upserts race user links.
func (s *Store) PutRaceUsers(ctx context.Context, users []race.RaceUser) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "race users", func(tx *sql.Tx) error {
		return putRaceUsers(ctx, tx, users)
	})
}

func putRaceUsers(ctx context.Context, target execer, users []race.RaceUser) error {
	for _, ru := range users {
		createdAt, _ := timestamps(ru.CreatedAt, ru.CreatedAt)
		_, err := target.ExecContext(ctx,
			`INSERT INTO race_users (race_id, user_id, is_owner, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(race_id, user_id) DO UPDATE SET is_owner = excluded.is_owner`,
			strings.TrimSpace(ru.RaceID),
			strings.TrimSpace(ru.UserID),
			boolToInt(ru.IsOwner),
			toMillis(createdAt),
		)
		if err != nil {
			return mapWriteError("put race user", err)
		}
	}
	return nil
}

// ListRaceUsers returns the users attached to a race.
func (s *Store) ListRaceUsers(ctx context.Context, raceID string) ([]race.RaceUser, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return listAll(ctx, s, "list race users",
		`SELECT race_id, user_id, is_owner, created_at FROM race_users WHERE race_id = ? ORDER BY user_id ASC`,
		[]any{strings.TrimSpace(raceID)},
		func(row rowScanner) (race.RaceUser, error) {
			var ru race.RaceUser
			var createdAt int64
			if err := row.Scan(&ru.RaceID, &ru.UserID, &ru.IsOwner, &createdAt); err != nil {
				return race.RaceUser{}, err
			}
			ru.CreatedAt = fromMillis(createdAt)
			return ru, nil
		})
}

var (
	_ storage.DomainStore = (*Store)(nil)
	_ storage.PlaceStore  = (*Store)(nil)
	_ storage.RaceStore   = (*Store)(nil)
)

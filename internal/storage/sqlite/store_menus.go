package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/oilandrope/internal/services/menu"
	"github.com/louisbranch/oilandrope/internal/storage"
)

const menuColumns = `id, name, description, prepended_text, appended_text, parent_id, url,
	extra_url_args, sort_order, permissions, staff_required, superuser_required, icon,
	related_models, type, created_at, updated_at`

// Sets are stored newline separated.
func joinSet(values []string) string {
	return strings.Join(values, "\n")
}

func splitSet(value string) []string {
	if value == "" {
		return []string{}
	}
	return strings.Split(value, "\n")
}

func scanMenu(row rowScanner) (menu.Menu, error) {
	var m menu.Menu
	var parentID sql.NullString
	var permissions, relatedModels string
	var menuType int
	var createdAt, updatedAt int64
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&m.PrependedText,
		&m.AppendedText,
		&parentID,
		&m.URL,
		&m.ExtraURLArgs,
		&m.Order,
		&permissions,
		&m.StaffRequired,
		&m.SuperuserRequired,
		&m.Icon,
		&relatedModels,
		&menuType,
		&createdAt,
		&updatedAt,
	); err != nil {
		return menu.Menu{}, err
	}
	m.ParentID = parentID.String
	m.Permissions = splitSet(permissions)
	m.RelatedModels = splitSet(relatedModels)
	m.Type = menu.Type(menuType)
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return m, nil
}

// PutMenu upserts a menu.
func (s *Store) PutMenu(ctx context.Context, m menu.Menu) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return putMenu(ctx, s.sqlDB, m)
}

func putMenu(ctx context.Context, target execer, m menu.Menu) error {
	m.ID = strings.TrimSpace(m.ID)
	if m.ID == "" {
		return fmt.Errorf("menu id is required")
	}
	createdAt, updatedAt := timestamps(m.CreatedAt, m.UpdatedAt)
	_, err := target.ExecContext(ctx,
		`INSERT INTO menus (`+menuColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   prepended_text = excluded.prepended_text,
		   appended_text = excluded.appended_text,
		   parent_id = excluded.parent_id,
		   url = excluded.url,
		   extra_url_args = excluded.extra_url_args,
		   sort_order = excluded.sort_order,
		   permissions = excluded.permissions,
		   staff_required = excluded.staff_required,
		   superuser_required = excluded.superuser_required,
		   icon = excluded.icon,
		   related_models = excluded.related_models,
		   type = excluded.type,
		   updated_at = excluded.updated_at`,
		m.ID,
		m.Name,
		m.Description,
		m.PrependedText,
		m.AppendedText,
		nullString(m.ParentID),
		m.URL,
		m.ExtraURLArgs,
		m.Order,
		joinSet(m.Permissions),
		boolToInt(m.StaffRequired),
		boolToInt(m.SuperuserRequired),
		m.Icon,
		joinSet(m.RelatedModels),
		int(m.Type),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	return mapWriteError("put menu", err)
}

// GetMenu returns a menu by id.
func (s *Store) GetMenu(ctx context.Context, menuID string) (menu.Menu, error) {
	if err := s.ready(ctx); err != nil {
		return menu.Menu{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+menuColumns+` FROM menus WHERE id = ?`, strings.TrimSpace(menuID))
	m, err := scanMenu(row)
	if err != nil {
		return menu.Menu{}, mapReadError("get menu", err)
	}
	return m, nil
}

// DeleteMenu removes a menu and its submenus.
func (s *Store) DeleteMenu(ctx context.Context, menuID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM menus WHERE id = ?`, strings.TrimSpace(menuID))
	if err != nil {
		return fmt.Errorf("delete menu: %w", err)
	}
	return requireAffected(result)
}

// ListMenus returns every menu.
func (s *Store) ListMenus(ctx context.Context) ([]menu.Menu, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return listAll(ctx, s, "list menus",
		`SELECT `+menuColumns+` FROM menus ORDER BY sort_order ASC, name ASC`, nil, scanMenu)
}

// ReplaceMenus deletes every menu and inserts menus in order, so parents must
// come before their children.
func (s *Store) ReplaceMenus(ctx context.Context, menus []menu.Menu) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "menus", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM menus`); err != nil {
			return fmt.Errorf("clear menus: %w", err)
		}
		for _, m := range menus {
			if err := putMenu(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ storage.MenuStore = (*Store)(nil)

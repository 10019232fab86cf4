package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	"github.com/louisbranch/oilandrope/internal/services/registration/user"
)

const userColumns = `id, username, email, first_name, last_name, password_hash,
	is_active, is_staff, is_superuser, is_premium, date_joined, last_login, updated_at`

const profileColumns = `user_id, bio, birthday, language, alias, web, image, created_at, updated_at`

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	var dateJoined, updatedAt int64
	var lastLogin sql.NullInt64
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.IsActive,
		&u.IsStaff,
		&u.IsSuperuser,
		&u.IsPremium,
		&dateJoined,
		&lastLogin,
		&updatedAt,
	); err != nil {
		return user.User{}, err
	}
	u.DateJoined = fromMillis(dateJoined)
	u.LastLogin = fromNullMillis(lastLogin)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func scanProfile(row rowScanner) (user.Profile, error) {
	var p user.Profile
	var birthday sql.NullInt64
	var language string
	var createdAt, updatedAt int64
	if err := row.Scan(
		&p.UserID,
		&p.Bio,
		&birthday,
		&language,
		&p.Alias,
		&p.Web,
		&p.Image,
		&createdAt,
		&updatedAt,
	); err != nil {
		return user.Profile{}, err
	}
	p.Birthday = fromNullMillis(birthday)
	p.Language = user.Language(language)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

// CreateUser inserts the user and its profile atomically.
func (s *Store) CreateUser(ctx context.Context, u user.User, p user.Profile) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(u.Username) == "" || strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("username and email are required")
	}
	if p.UserID != u.ID {
		return fmt.Errorf("profile user id %q does not match user %q", p.UserID, u.ID)
	}
	joined, updated := timestamps(u.DateJoined, u.UpdatedAt)

	return s.inTx(ctx, "user", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (
			   id, username, email, email_lower, first_name, last_name, password_hash,
			   is_active, is_staff, is_superuser, is_premium, date_joined, last_login, updated_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.ID,
			u.Username,
			u.Email,
			strings.ToLower(u.Email),
			u.FirstName,
			u.LastName,
			u.PasswordHash,
			boolToInt(u.IsActive),
			boolToInt(u.IsStaff),
			boolToInt(u.IsSuperuser),
			boolToInt(u.IsPremium),
			toMillis(joined),
			toNullMillis(u.LastLogin),
			toMillis(updated),
		)
		if err != nil {
			return mapWriteError("create user", err)
		}
		return putProfile(ctx, tx, p)
	})
}

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (user.User, error) {
	if err := s.ready(ctx); err != nil {
		return user.User{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return user.User{}, fmt.Errorf("user id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, mapReadError("get user", err)
	}
	return u, nil
}

// GetUserByLogin returns the user whose username or email matches login.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (user.User, error) {
	if err := s.ready(ctx); err != nil {
		return user.User{}, err
	}
	login = strings.TrimSpace(login)
	if login == "" {
		return user.User{}, fmt.Errorf("login is required")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email_lower = ? LIMIT 1`,
		login, strings.ToLower(login),
	)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, mapReadError("get user by login", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if err := s.ready(ctx); err != nil {
		return user.User{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return user.User{}, fmt.Errorf("email is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email_lower = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, mapReadError("get user by email", err)
	}
	return u, nil
}

// ListUsers returns one page of users ordered by id.
func (s *Store) ListUsers(ctx context.Context, page pagination.Request) (pagination.Page[user.User], error) {
	if err := s.ready(ctx); err != nil {
		return pagination.Page[user.User]{}, err
	}
	page, err := normalizePage(page)
	if err != nil {
		return pagination.Page[user.User]{}, err
	}
	query, params := keyset(`SELECT `+userColumns+` FROM users`, nil, nil, page)
	return listPage(ctx, s, "list users", query, params, page.PageSize, scanUser,
		func(u user.User) string { return u.ID })
}

// UpdateUser overwrites the mutable user columns.
func (s *Store) UpdateUser(ctx context.Context, u user.User) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	_, updated := timestamps(u.DateJoined, u.UpdatedAt)
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE users SET
		   username = ?, email = ?, email_lower = ?, first_name = ?, last_name = ?,
		   password_hash = ?, is_active = ?, is_staff = ?, is_superuser = ?,
		   is_premium = ?, last_login = ?, updated_at = ?
		 WHERE id = ?`,
		u.Username,
		u.Email,
		strings.ToLower(u.Email),
		u.FirstName,
		u.LastName,
		u.PasswordHash,
		boolToInt(u.IsActive),
		boolToInt(u.IsStaff),
		boolToInt(u.IsSuperuser),
		boolToInt(u.IsPremium),
		toNullMillis(u.LastLogin),
		toMillis(updated),
		u.ID,
	)
	if err != nil {
		return mapWriteError("update user", err)
	}
	return requireAffected(result)
}

// GetProfile returns the profile of a user.
func (s *Store) GetProfile(ctx context.Context, userID string) (user.Profile, error) {
	if err := s.ready(ctx); err != nil {
		return user.Profile{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return user.Profile{}, fmt.Errorf("user id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err != nil {
		return user.Profile{}, mapReadError("get profile", err)
	}
	return p, nil
}

// PutProfile upserts a profile.
func (s *Store) PutProfile(ctx context.Context, p user.Profile) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return putProfile(ctx, s.sqlDB, p)
}

func putProfile(ctx context.Context, target execer, p user.Profile) error {
	p.UserID = strings.TrimSpace(p.UserID)
	if p.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	language := p.Language
	if language == "" {
		language = user.LanguageEnglish
	}
	createdAt, updatedAt := timestamps(p.CreatedAt, p.UpdatedAt)
	_, err := target.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   bio = excluded.bio,
		   birthday = excluded.birthday,
		   language = excluded.language,
		   alias = excluded.alias,
		   web = excluded.web,
		   image = excluded.image,
		   updated_at = excluded.updated_at`,
		p.UserID,
		p.Bio,
		toNullMillis(p.Birthday),
		string(language),
		p.Alias,
		p.Web,
		p.Image,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	return mapWriteError("put profile", err)
}

// ListProfiles returns one page of profiles ordered by user id.
func (s *Store) ListProfiles(ctx context.Context, page pagination.Request) (pagination.Page[user.Profile], error) {
	if err := s.ready(ctx); err != nil {
		return pagination.Page[user.Profile]{}, err
	}
	page, err := normalizePage(page)
	if err != nil {
		return pagination.Page[user.Profile]{}, err
	}
	var conditions []string
	var params []any
	if page.PageToken != "" {
		conditions = append(conditions, "user_id > ?")
		params = append(params, page.PageToken)
	}
	query := `SELECT ` + profileColumns + ` FROM profiles`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY user_id ASC LIMIT ?"
	params = append(params, page.PageSize+1)
	return listPage(ctx, s, "list profiles", query, params, page.PageSize, scanProfile,
		func(p user.Profile) string { return p.UserID })
}

// ListPermissions returns the permissions granted to a user, sorted.
func (s *Store) ListPermissions(ctx context.Context, userID string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return listAll(ctx, s, "list permissions",
		`SELECT permission FROM user_permissions WHERE user_id = ? ORDER BY permission ASC`,
		[]any{strings.TrimSpace(userID)},
		func(row rowScanner) (string, error) {
			var permission string
			err := row.Scan(&permission)
			return permission, err
		})
}

// GrantPermission adds a permission to a user. Granting twice is a no-op.
func (s *Store) GrantPermission(ctx context.Context, userID, permission string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	permission = strings.TrimSpace(permission)
	if userID == "" || permission == "" {
		return fmt.Errorf("user id and permission are required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO user_permissions (user_id, permission) VALUES (?, ?)
		 ON CONFLICT(user_id, permission) DO NOTHING`,
		userID, permission,
	)
	return mapWriteError("grant permission", err)
}

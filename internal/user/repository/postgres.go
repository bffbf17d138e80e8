package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dfp-neo/backend/internal/user/domain"
)

const userColumns = `id, login_id, username, email, role, first_name, last_name, display_name,
	password_hash, must_change_password, is_active, permissions_role_id,
	last_login_at, password_changed_at, created_at, updated_at`

// PostgresRepository is a Repository over database/sql with the pgx driver.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                                       domain.User
		role                                    string
		email, first, last, display, hash, prid sql.NullString
		lastLogin, changed                      sql.NullTime
	)
	err := row.Scan(&u.ID, &u.LoginID, &u.Username, &email, &role, &first, &last, &display,
		&hash, &u.MustChangePassword, &u.IsActive, &prid,
		&lastLogin, &changed, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.Email = email.String
	u.FirstName = first.String
	u.LastName = last.String
	u.DisplayName = display.String
	u.PasswordHash = hash.String
	u.PermissionsRoleID = prid.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	if changed.Valid {
		t := changed.Time
		u.PasswordChangedAt = &t
	}
	return &u, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByLogin returns the user whose login id or email equals identifier, ignoring case.
// A login id match wins over an email match.
func (r *PostgresRepository) GetByLogin(ctx context.Context, identifier string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users
		WHERE lower(login_id) = lower($1) OR lower(email) = lower($1)
		ORDER BY (lower(login_id) = lower($1)) DESC
		LIMIT 1`, identifier)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts u. The caller assigns ID and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		u.ID, u.LoginID, u.Username, nullString(u.Email), string(u.Role),
		nullString(u.FirstName), nullString(u.LastName), nullString(u.DisplayName),
		nullString(u.PasswordHash), u.MustChangePassword, u.IsActive, nullString(u.PermissionsRoleID),
		u.LastLoginAt, u.PasswordChangedAt, u.CreatedAt, u.UpdatedAt)
	return err
}

// SetPassword replaces the password hash. Returns sql.ErrNoRows if the user does not exist.
func (r *PostgresRepository) SetPassword(ctx context.Context, id, hash string, mustChange bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users
		SET password_hash = $2, must_change_password = $3, password_changed_at = $4, updated_at = $4
		WHERE id = $1`, id, nullString(hash), mustChange, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkLogin records a successful sign-in.
func (r *PostgresRepository) MarkLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}

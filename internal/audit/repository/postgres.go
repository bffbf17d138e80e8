package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"dfp-neo/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts e. The event must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	var meta []byte
	if len(e.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(e.Metadata); err != nil {
			return fmt.Errorf("audit: encode metadata: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO audit_logs
		(id, actor_user_id, action_type, target_user_id, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, nullString(e.ActorUserID), string(e.Action), nullString(e.TargetUserID),
		nullString(string(meta)), nullString(e.IPAddress), nullString(e.UserAgent), e.CreatedAt)
	return err
}

func whereClause(f domain.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ActorUserID != "" {
		add("actor_user_id = $%d", f.ActorUserID)
	}
	if f.TargetUserID != "" {
		add("target_user_id = $%d", f.TargetUserID)
	}
	if f.Action != "" {
		add("action_type = $%d", string(f.Action))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns events matching f, newest first, with the total match count.
func (r *PostgresRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Event, int, error) {
	f = f.Normalize()
	where, args := whereClause(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT id, actor_user_id, action_type, target_user_id, metadata, ip_address, user_agent, created_at
		FROM audit_logs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var (
			e                     domain.Event
			action                string
			actor, target, ip, ua sql.NullString
			meta                  []byte
		)
		if err := rows.Scan(&e.ID, &actor, &action, &target, &meta, &ip, &ua, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.Action = domain.Action(action)
		e.ActorUserID = actor.String
		e.TargetUserID = target.String
		e.IPAddress = ip.String
		e.UserAgent = ua.String
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Metadata)
		}
		out = append(out, &e)
	}
	return out, total, rows.Err()
}

package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"govcms/backend/internal/activity/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an activity log repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists one activity log entry.
func (r *PostgresRepository) Create(ctx context.Context, entry *domain.ActivityLog) error {
	query := psql.Insert("activity_log").
		Columns("id", "account_id", "action", "resource", "ip", "metadata", "created_at").
		Values(entry.ID, entry.AccountID, entry.Action, entry.Resource, entry.IP, entry.Metadata, entry.CreatedAt)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, sqlStr, args...)
	return err
}

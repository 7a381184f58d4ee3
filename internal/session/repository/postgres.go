package repository

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"govcms/backend/internal/session/domain"
)

const (
	table        = "refresh_tokens"
	colTokenHash = "token_hash"
	colAccountID = "account_id"
	colExpiresAt = "expires_at"
	colCreatedAt = "created_at"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a refresh token repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new refresh token row. Returns ErrDuplicateToken on a
// token hash collision.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	query := psql.Insert(table).
		Columns(colTokenHash, colAccountID, colExpiresAt, colCreatedAt).
		Values(t.TokenHash, t.AccountID, t.ExpiresAt, t.CreatedAt)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, sqlStr, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateToken
		}
		return err
	}
	return nil
}

// GetByHash returns the row for tokenHash, or nil if not found.
func (r *PostgresRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := psql.Select(colTokenHash, colAccountID, colExpiresAt, colCreatedAt).
		From(table).
		Where(sq.Eq{colTokenHash: tokenHash})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var t domain.RefreshToken
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&t.TokenHash, &t.AccountID, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Rotate atomically replaces the token hash and expiry of the row matching
// oldHash, conditioned on the row not being expired. The update's WHERE clause
// is the whole race guard: of two concurrent rotations with the same oldHash,
// exactly one matches a row; the other gets ErrTokenNotFound.
func (r *PostgresRepository) Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*domain.RefreshToken, error) {
	now := time.Now().UTC()
	var t domain.RefreshToken
	err := r.pool.QueryRow(ctx, `
		UPDATE refresh_tokens
		SET token_hash = $1, expires_at = $2
		WHERE token_hash = $3 AND expires_at > $4
		RETURNING token_hash, account_id, expires_at, created_at
	`, newHash, expiresAt, oldHash, now).Scan(&t.TokenHash, &t.AccountID, &t.ExpiresAt, &t.CreatedAt)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// No live row matched. Classify for the caller's internal logging: an
	// expired row still present means expiry, anything else means the token
	// was never issued, already rotated away, or deleted.
	existing, lookupErr := r.GetByHash(ctx, oldHash)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing != nil && existing.Expired(now) {
		return nil, ErrTokenExpired
	}
	return nil, ErrTokenNotFound
}

// DeleteByHash removes the row for tokenHash, scoped to accountID when given.
// Idempotent: deleting an absent row succeeds.
func (r *PostgresRepository) DeleteByHash(ctx context.Context, tokenHash, accountID string) error {
	pred := sq.Eq{colTokenHash: tokenHash}
	if accountID != "" {
		pred[colAccountID] = accountID
	}
	query := psql.Delete(table).Where(pred)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, sqlStr, args...)
	return err
}

// DeleteAllExpired removes every row whose expiry is at or before the given
// instant. Returns the number of rows removed.
func (r *PostgresRepository) DeleteAllExpired(ctx context.Context, before time.Time) (int64, error) {
	query := psql.Delete(table).Where(sq.LtOrEq{colExpiresAt: before})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

package repository

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"govcms/backend/internal/account/domain"
)

const (
	table        = "accounts"
	colID        = "id"
	colEmail     = "email"
	colPassword  = "password_hash"
	colFirstName = "first_name"
	colLastName  = "last_name"
	colRole      = "role"
	colActive    = "is_active"
	colLastLogin = "last_login"
	colCreatedAt = "created_at"
	colUpdatedAt = "updated_at"
)

// uniqueViolation is the Postgres error code raised by the accounts email index.
const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an account repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByID returns the account for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getBy(ctx, sq.Eq{colID: id})
}

// GetByEmail returns the account for the normalized email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getBy(ctx, sq.Eq{colEmail: domain.NormalizeEmail(email)})
}

func (r *PostgresRepository) getBy(ctx context.Context, pred sq.Eq) (*domain.Account, error) {
	query := psql.Select(colID, colEmail, colPassword, colFirstName, colLastName,
		colRole, colActive, colLastLogin, colCreatedAt, colUpdatedAt).
		From(table).
		Where(pred)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var (
		a         domain.Account
		role      string
		lastLogin *time.Time
	)
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName,
		&role, &a.Active, &lastLogin, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Role = domain.Role(role)
	a.LastLogin = lastLogin
	return &a, nil
}

// Create persists the account. The account must have ID and PasswordHash set.
// Returns ErrDuplicateEmail when the email unique index rejects the insert.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	query := psql.Insert(table).
		Columns(colID, colEmail, colPassword, colFirstName, colLastName,
			colRole, colActive, colCreatedAt, colUpdatedAt).
		Values(a.ID, domain.NormalizeEmail(a.Email), a.PasswordHash, a.FirstName, a.LastName,
			string(a.Role), a.Active, a.CreatedAt, a.UpdatedAt)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, sqlStr, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// UpdateLastLogin sets the account's last-login timestamp.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := psql.Update(table).
		Set(colLastLogin, at).
		Set(colUpdatedAt, at).
		Where(sq.Eq{colID: id})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, sqlStr, args...)
	return err
}

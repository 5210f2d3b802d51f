package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/healthquiz/quiz-api/internal/core"
	"github.com/healthquiz/quiz-api/internal/data/pgxutil"
	"github.com/healthquiz/quiz-api/internal/domain/model"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
)

// AccessCodeRepo provides database operations for access codes.
type AccessCodeRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAccessCodeRepo creates a new AccessCodeRepo with real time provider.
func NewAccessCodeRepo(db *sql.DB) *AccessCodeRepo {
	return &AccessCodeRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewAccessCodeRepoWithTimeProvider creates a new AccessCodeRepo with a custom time provider (useful for tests).
func NewAccessCodeRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *AccessCodeRepo {
	return &AccessCodeRepo{DB: db, timeProvider: tp}
}

const accessCodeColumns = `id, code, plan, username, used, used_by, used_at, created_at, reference`

// Create inserts a new unused access code.
func (r *AccessCodeRepo) Create(ctx context.Context, params core.CreateAccessCodeParams) (*model.AccessCode, error) {
	if !params.Plan.Valid() {
		return nil, apperrors.ValidationField("plan", "unknown plan")
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.AccessCode
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO access_codes (code, plan, username, used, created_at, reference)
			VALUES ($1, $2, $3, FALSE, $4, $5)
			RETURNING `+accessCodeColumns,
			params.Code,
			params.Plan,
			params.Username,
			createdAt,
			params.Reference,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.AccessCode])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByCode retrieves an access code by its code value.
func (r *AccessCodeRepo) GetByCode(ctx context.Context, code string) (*model.AccessCode, error) {
	var out model.AccessCode
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+accessCodeColumns+` FROM access_codes WHERE code = $1`, code)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.AccessCode])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// MarkUsed claims an unused code for a username. The used = FALSE guard makes
// the claim atomic; a second claim of the same code returns a conflict.
func (r *AccessCodeRepo) MarkUsed(ctx context.Context, code, username string, usedAt time.Time) (*model.AccessCode, error) {
	var out model.AccessCode
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE access_codes
			SET used = TRUE, used_by = $2, used_at = $3
			WHERE code = $1 AND used = FALSE
			RETURNING `+accessCodeColumns,
			code, username, usedAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.AccessCode])
		return err
	}); err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsNotFound(mapped) {
			// Either the code does not exist or it was already claimed.
			if _, getErr := r.GetByCode(ctx, code); getErr == nil {
				return nil, apperrors.Conflict("access code already used")
			}
			return nil, mapped
		}
		return nil, mapped
	}
	return &out, nil
}

// Counts reports how many codes remain unused and how many exist in total.
func (r *AccessCodeRepo) Counts(ctx context.Context) (available, total int, err error) {
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT COUNT(*) FILTER (WHERE NOT used), COUNT(*)
			FROM access_codes`,
		).Scan(&available, &total)
	}); err != nil {
		return 0, 0, apperrors.MapDBError(err)
	}
	return available, total, nil
}

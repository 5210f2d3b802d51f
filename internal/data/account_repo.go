package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/healthquiz/quiz-api/internal/data/pgxutil"
	"github.com/healthquiz/quiz-api/internal/domain/model"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
)

// AccountRepo provides database operations for accounts. The account row
// carries its sessions, suspension and subscription as JSONB documents so the
// whole account reads and writes as one unit.
type AccountRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAccountRepo creates a new AccountRepo with real time provider.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewAccountRepoWithTimeProvider creates a new AccountRepo with a custom time provider (useful for tests).
func NewAccountRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *AccountRepo {
	return &AccountRepo{DB: db, timeProvider: tp}
}

const accountColumns = `username, password_hash, email, created_at, max_sessions,
	active_sessions, suspension, subscription, payment_pending, version`

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, account *model.Account) (*model.Account, error) {
	if account == nil {
		return nil, errors.New("account is required")
	}

	sessions, suspension, subscription, err := marshalAccountDocs(account)
	if err != nil {
		return nil, err
	}

	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now().UTC()
	}

	var out *model.Account
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO users (
				username, password_hash, email, created_at, max_sessions,
				active_sessions, suspension, subscription, payment_pending, version
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, 1
			) RETURNING `+accountColumns,
			account.Username,
			account.PasswordHash,
			account.Email,
			createdAt,
			account.MaxSessions,
			sessions,
			suspension,
			subscription,
			account.PaymentPending,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = collectAccount(rows)
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}

// GetByUsername retrieves an account by username.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	return r.getByQuery(ctx, `SELECT `+accountColumns+` FROM users WHERE username = $1`, username)
}

// GetByEmail retrieves an account by email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.getByQuery(ctx, `SELECT `+accountColumns+` FROM users WHERE email = $1`, email)
}

func (r *AccountRepo) getByQuery(ctx context.Context, query, arg string) (*model.Account, error) {
	var out *model.Account
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, arg)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = collectAccount(rows)
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}

// Save persists the whole account guarded by its version. On success the
// returned account carries the incremented version. A stale version yields a
// conflict error wrapping ErrVersionConflict.
func (r *AccountRepo) Save(ctx context.Context, account *model.Account) (*model.Account, error) {
	if account == nil {
		return nil, errors.New("account is required")
	}

	sessions, suspension, subscription, err := marshalAccountDocs(account)
	if err != nil {
		return nil, err
	}

	var out *model.Account
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE users SET
				password_hash = $2,
				email = $3,
				max_sessions = $4,
				active_sessions = $5,
				suspension = $6,
				subscription = $7,
				payment_pending = $8,
				version = version + 1
			WHERE username = $1 AND version = $9
			RETURNING `+accountColumns,
			account.Username,
			account.PasswordHash,
			account.Email,
			account.MaxSessions,
			sessions,
			suspension,
			subscription,
			account.PaymentPending,
			account.Version,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = collectAccount(rows)
		return err
	}); err != nil {
		if apperrors.IsNotFound(apperrors.MapDBError(err)) {
			// The row exists under a newer version or was deleted; both are
			// write conflicts from the caller's point of view.
			return nil, apperrors.Wrap(ErrVersionConflict, apperrors.ErrCodeConflict, "account was modified concurrently")
		}
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}

// PurgeExpiredSessions drops sessions whose last_active is at or before the
// cutoff, across all accounts, and returns the number of accounts touched.
func (r *AccountRepo) PurgeExpiredSessions(ctx context.Context, cutoff time.Time) (int, error) {
	var touched int
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `
			UPDATE users SET
				active_sessions = (
					SELECT COALESCE(jsonb_agg(s), '[]'::jsonb)
					FROM jsonb_array_elements(active_sessions) AS s
					WHERE (s->>'last_active')::timestamptz > $1
				),
				version = version + 1
			WHERE EXISTS (
				SELECT 1 FROM jsonb_array_elements(active_sessions) AS s
				WHERE (s->>'last_active')::timestamptz <= $1
			)`, cutoff)
		if err != nil {
			return err
		}
		touched = int(tag.RowsAffected())
		return nil
	}); err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return touched, nil
}

// ClearExpiredSuspensions lifts suspensions whose expiry has passed and
// returns the number of accounts touched.
func (r *AccountRepo) ClearExpiredSuspensions(ctx context.Context, now time.Time) (int, error) {
	var touched int
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `
			UPDATE users SET
				suspension = NULL,
				version = version + 1
			WHERE suspension IS NOT NULL
			  AND (suspension->>'expiry')::timestamptz <= $1`, now)
		if err != nil {
			return err
		}
		touched = int(tag.RowsAffected())
		return nil
	}); err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return touched, nil
}

// marshalAccountDocs encodes the JSONB columns. A nil suspension or
// subscription comes back as a nil slice, which pgx writes as SQL NULL.
func marshalAccountDocs(account *model.Account) (sessions, suspension, subscription []byte, err error) {
	active := account.ActiveSessions
	if active == nil {
		active = []model.Session{}
	}
	sessions, err = json.Marshal(active)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal active sessions: %w", err)
	}
	if account.Suspension != nil {
		suspension, err = json.Marshal(account.Suspension)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal suspension: %w", err)
		}
	}
	if account.Subscription != nil {
		subscription, err = json.Marshal(account.Subscription)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal subscription: %w", err)
		}
	}
	return sessions, suspension, subscription, nil
}

func collectAccount(rows pgx.Rows) (*model.Account, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	var (
		acct         model.Account
		sessions     []byte
		suspension   []byte
		subscription []byte
	)
	if err := rows.Scan(
		&acct.Username,
		&acct.PasswordHash,
		&acct.Email,
		&acct.CreatedAt,
		&acct.MaxSessions,
		&sessions,
		&suspension,
		&subscription,
		&acct.PaymentPending,
		&acct.Version,
	); err != nil {
		return nil, err
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(sessions) > 0 {
		if err := json.Unmarshal(sessions, &acct.ActiveSessions); err != nil {
			return nil, fmt.Errorf("unmarshal active sessions: %w", err)
		}
	}
	if len(suspension) > 0 {
		acct.Suspension = &model.Suspension{}
		if err := json.Unmarshal(suspension, acct.Suspension); err != nil {
			return nil, fmt.Errorf("unmarshal suspension: %w", err)
		}
	}
	if len(subscription) > 0 {
		acct.Subscription = &model.Subscription{}
		if err := json.Unmarshal(subscription, acct.Subscription); err != nil {
			return nil, fmt.Errorf("unmarshal subscription: %w", err)
		}
	}
	return &acct, nil
}

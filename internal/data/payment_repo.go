package data

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/healthquiz/quiz-api/internal/data/pgxutil"
	"github.com/healthquiz/quiz-api/internal/domain/model"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
)

// PaymentRepo provides database operations for verified payment records.
type PaymentRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewPaymentRepo creates a new PaymentRepo with real time provider.
func NewPaymentRepo(db *sql.DB) *PaymentRepo {
	return &PaymentRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewPaymentRepoWithTimeProvider creates a new PaymentRepo with a custom time provider (useful for tests).
func NewPaymentRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *PaymentRepo {
	return &PaymentRepo{DB: db, timeProvider: tp}
}

const paymentColumns = `id, reference, username, email, amount, currency, plan, status, created_at`

// Create inserts a payment record. The reference column is unique so replays
// of the same gateway event surface as a conflict.
func (r *PaymentRepo) Create(ctx context.Context, payment *model.Payment) (*model.Payment, error) {
	if payment == nil {
		return nil, errors.New("payment is required")
	}
	if !payment.Status.Valid() {
		return nil, apperrors.ValidationField("status", "unknown payment status")
	}

	createdAt := payment.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now().UTC()
	}

	var out model.Payment
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO payments (reference, username, email, amount, currency, plan, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+paymentColumns,
			payment.Reference,
			payment.Username,
			payment.Email,
			payment.Amount,
			payment.Currency,
			payment.Plan,
			payment.Status,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Payment])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetLatestSuccessByUsername returns the newest successful payment for a username.
func (r *PaymentRepo) GetLatestSuccessByUsername(ctx context.Context, username string) (*model.Payment, error) {
	var out model.Payment
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+paymentColumns+` FROM payments
			WHERE username = $1 AND status = 'success'
			ORDER BY created_at DESC
			LIMIT 1`, username)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Payment])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByReference retrieves a payment by its gateway reference.
func (r *PaymentRepo) GetByReference(ctx context.Context, reference string) (*model.Payment, error) {
	var out model.Payment
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+paymentColumns+` FROM payments WHERE reference = $1`, reference)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Payment])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

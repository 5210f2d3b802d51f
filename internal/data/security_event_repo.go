package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/healthquiz/quiz-api/internal/core"
	"github.com/healthquiz/quiz-api/internal/data/pgxutil"
	"github.com/healthquiz/quiz-api/internal/domain/model"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
)

// SecurityEventRepo provides database operations for the append-only security
// audit log. Rows are never updated or deleted by the application.
type SecurityEventRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewSecurityEventRepo creates a new SecurityEventRepo with real time provider.
func NewSecurityEventRepo(db *sql.DB) *SecurityEventRepo {
	return &SecurityEventRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewSecurityEventRepoWithTimeProvider creates a new SecurityEventRepo with a custom time provider (useful for tests).
func NewSecurityEventRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *SecurityEventRepo {
	return &SecurityEventRepo{DB: db, timeProvider: tp}
}

// Append inserts one security event.
func (r *SecurityEventRepo) Append(ctx context.Context, params core.AppendSecurityEventParams) error {
	if !params.EventType.Valid() {
		return apperrors.ValidationField("event_type", "unknown security event type")
	}

	details := params.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}

	createdAt := r.timeProvider.Now().UTC()
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO security_events (username, event_type, ip, details, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			params.Username,
			params.EventType,
			params.IP,
			detailsJSON,
			createdAt,
		)
		return err
	}); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// CountRecentByType counts events of one type for a username since the cutoff.
func (r *SecurityEventRepo) CountRecentByType(ctx context.Context, username string, eventType model.SecurityEventType, since time.Time) (int, error) {
	var count int
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT COUNT(*) FROM security_events
			WHERE username = $1 AND event_type = $2 AND created_at >= $3`,
			username, eventType, since,
		).Scan(&count)
	}); err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return count, nil
}

// ListRecent returns the newest events for a username, newest first.
func (r *SecurityEventRepo) ListRecent(ctx context.Context, username string, limit int) ([]*model.SecurityEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var out []*model.SecurityEvent
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, username, event_type, ip, details, created_at
			FROM security_events
			WHERE username = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`,
			username, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				evt     model.SecurityEvent
				details []byte
			)
			if err := rows.Scan(&evt.ID, &evt.Username, &evt.EventType, &evt.IP, &details, &evt.CreatedAt); err != nil {
				return err
			}
			if len(details) > 0 {
				if err := json.Unmarshal(details, &evt.Details); err != nil {
					return fmt.Errorf("unmarshal event details: %w", err)
				}
			}
			out = append(out, &evt)
		}
		return rows.Err()
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}

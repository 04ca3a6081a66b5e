package postgres

import (
	"context"
	"fmt"
	"time"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// SaveAlert appends an alert. Returns ErrDuplicateKey if the id exists.
func (s *AlertStore) SaveAlert(ctx context.Context, a *domain.Alert) (err error) {
	defer observe("save_alert", time.Now(), &err)

	if a == nil || a.ID == 0 {
		return storage.ErrInvalidInput
	}
	payload := a.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	query := `
		INSERT INTO alerts (id, kind, signal, severity, title, message, mint, wallet, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.pool.Exec(ctx, query,
		int64(a.ID),
		string(a.Kind),
		string(a.Signal),
		string(a.Severity),
		a.Title,
		a.Message,
		a.Mint,
		a.Wallet,
		payload,
		a.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Recent returns up to limit alerts, newest first.
func (s *AlertStore) Recent(ctx context.Context, limit int) (_ []*domain.Alert, err error) {
	defer observe("recent_alerts", time.Now(), &err)

	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, kind, signal, severity, title, message, mint, wallet, payload, created_at
		FROM alerts
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		var id int64
		var kind, signal, severity string
		if err := rows.Scan(&id, &kind, &signal, &severity, &a.Title, &a.Message, &a.Mint, &a.Wallet, &a.Payload, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		a.ID = uint64(id)
		a.Kind = domain.AlertKind(kind)
		a.Signal = domain.Signal(signal)
		a.Severity = domain.Severity(severity)
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}
	return alerts, nil
}

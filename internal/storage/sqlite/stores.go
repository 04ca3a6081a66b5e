package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage"
)

// TokenStore implements storage.TokenStore.
type TokenStore struct{ db *DB }

// MovementStore implements storage.MovementStore.
type MovementStore struct{ db *DB }

// WalletStore implements storage.WalletStore.
type WalletStore struct{ db *DB }

// AlertStore implements storage.AlertStore.
type AlertStore struct{ db *DB }

// LiquidityProbeStore implements storage.LiquidityProbeStore.
type LiquidityProbeStore struct{ db *DB }

var (
	_ storage.TokenStore          = (*TokenStore)(nil)
	_ storage.MovementStore       = (*MovementStore)(nil)
	_ storage.WalletStore         = (*WalletStore)(nil)
	_ storage.AlertStore          = (*AlertStore)(nil)
	_ storage.LiquidityProbeStore = (*LiquidityProbeStore)(nil)
)

const tokenColumns = `mint, name, symbol, creator, signature, initial_liquidity, total_supply,
	created_at, is_rugged, rug_reason, rugged_at`

func (s *TokenStore) SaveToken(ctx context.Context, t *domain.TokenRecord) (err error) {
	defer observe("save_token", time.Now(), &err)

	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	var ruggedAt sql.NullInt64
	if t.RuggedAt != nil {
		ruggedAt = sql.NullInt64{Int64: *t.RuggedAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Mint, t.Name, t.Symbol, t.Creator, t.Signature, t.InitialLiquidity, t.TotalSupply,
		t.CreatedAt, boolInt(t.IsRugged), t.RugReason, ruggedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (s *TokenStore) GetToken(ctx context.Context, mint string) (_ *domain.TokenRecord, err error) {
	defer observe("get_token", time.Now(), &err)

	row := s.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE mint = ?`, mint)
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

func (s *TokenStore) RecentTokens(ctx context.Context, limit int) (_ []*domain.TokenRecord, err error) {
	defer observe("recent_tokens", time.Now(), &err)

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM tokens ORDER BY created_at DESC, mint ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.TokenRecord
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (s *TokenStore) MarkRugged(ctx context.Context, mint, reason string, at int64) (err error) {
	defer observe("mark_rugged", time.Now(), &err)

	res, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET is_rugged = 1, rug_reason = ?, rugged_at = ? WHERE mint = ? AND is_rugged = 0`,
		reason, at, mint)
	if err != nil {
		return fmt.Errorf("mark rugged: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM tokens WHERE mint = ?`, mint).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check token exists: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanToken(row scanner) (*domain.TokenRecord, error) {
	var t domain.TokenRecord
	var rugged int
	var ruggedAt sql.NullInt64
	if err := row.Scan(
		&t.Mint, &t.Name, &t.Symbol, &t.Creator, &t.Signature, &t.InitialLiquidity, &t.TotalSupply,
		&t.CreatedAt, &rugged, &t.RugReason, &ruggedAt,
	); err != nil {
		return nil, err
	}
	t.IsRugged = rugged != 0
	if ruggedAt.Valid {
		v := ruggedAt.Int64
		t.RuggedAt = &v
	}
	return &t, nil
}

func (s *MovementStore) SaveMovement(ctx context.Context, m *domain.Movement) (err error) {
	defer observe("save_movement", time.Now(), &err)

	if m == nil || m.Signature == "" || m.Mint == "" {
		return storage.ErrInvalidInput
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO movements (signature, wallet, direction, mint, amount_native, amount_token, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Signature, m.Wallet, string(m.Direction), m.Mint, m.AmountNative, m.AmountToken, m.ObservedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (s *MovementStore) GetByMint(ctx context.Context, mint string) (_ []*domain.Movement, err error) {
	defer observe("movements_by_mint", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT signature, wallet, direction, mint, amount_native, amount_token, observed_at
		FROM movements WHERE mint = ? ORDER BY observed_at ASC, signature ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("get movements by mint: %w", err)
	}
	defer rows.Close()

	var moves []*domain.Movement
	for rows.Next() {
		var m domain.Movement
		var direction string
		if err := rows.Scan(&m.Signature, &m.Wallet, &direction, &m.Mint, &m.AmountNative, &m.AmountToken, &m.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan movement row: %w", err)
		}
		m.Direction = domain.Direction(direction)
		moves = append(moves, &m)
	}
	return moves, rows.Err()
}

func (s *WalletStore) SaveWallet(ctx context.Context, w *domain.MonitoredWallet) (err error) {
	defer observe("save_wallet", time.Now(), &err)

	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wallets (address, label, total_volume, is_whale, first_seen, last_activity)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			label         = excluded.label,
			total_volume  = excluded.total_volume,
			is_whale      = MAX(wallets.is_whale, excluded.is_whale),
			first_seen    = MIN(wallets.first_seen, excluded.first_seen),
			last_activity = MAX(wallets.last_activity, excluded.last_activity)`,
		w.Address, w.Label, w.TotalVolume, boolInt(w.IsWhale), w.FirstSeen, w.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet: %w", err)
	}
	return nil
}

func (s *WalletStore) GetWhales(ctx context.Context) (_ []*domain.MonitoredWallet, err error) {
	defer observe("get_whales", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT address, label, total_volume, first_seen, last_activity
		FROM wallets WHERE is_whale = 1 ORDER BY total_volume DESC, address ASC`)
	if err != nil {
		return nil, fmt.Errorf("get whales: %w", err)
	}
	defer rows.Close()

	var wallets []*domain.MonitoredWallet
	for rows.Next() {
		w := domain.MonitoredWallet{IsWhale: true}
		if err := rows.Scan(&w.Address, &w.Label, &w.TotalVolume, &w.FirstSeen, &w.LastActivity); err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, &w)
	}
	return wallets, rows.Err()
}

func (s *AlertStore) SaveAlert(ctx context.Context, a *domain.Alert) (err error) {
	defer observe("save_alert", time.Now(), &err)

	if a == nil || a.ID == 0 {
		return storage.ErrInvalidInput
	}
	payload := []byte("{}")
	if len(a.Payload) > 0 {
		if payload, err = json.Marshal(a.Payload); err != nil {
			return fmt.Errorf("marshal alert payload: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, kind, signal, severity, title, message, mint, wallet, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(a.ID), string(a.Kind), string(a.Signal), string(a.Severity),
		a.Title, a.Message, a.Mint, a.Wallet, string(payload), a.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *AlertStore) Recent(ctx context.Context, limit int) (_ []*domain.Alert, err error) {
	defer observe("recent_alerts", time.Now(), &err)

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, signal, severity, title, message, mint, wallet, payload, created_at
		FROM alerts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		var id int64
		var kind, signal, severity, payload string
		if err := rows.Scan(&id, &kind, &signal, &severity, &a.Title, &a.Message, &a.Mint, &a.Wallet, &payload, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		a.ID = uint64(id)
		a.Kind = domain.AlertKind(kind)
		a.Signal = domain.Signal(signal)
		a.Severity = domain.Severity(severity)
		if err := json.Unmarshal([]byte(payload), &a.Payload); err != nil {
			return nil, fmt.Errorf("decode alert payload: %w", err)
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

func (s *LiquidityProbeStore) InsertProbe(ctx context.Context, p *domain.LiquidityProbe) (err error) {
	defer observe("insert_probe", time.Now(), &err)

	if p == nil || p.Mint == "" {
		return storage.ErrInvalidInput
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO liquidity_probes (mint, account, balance_sol, previous_sol, drop_percent, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Mint, p.Account, p.BalanceSOL, p.PreviousSOL, p.DropPercent, p.ObservedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert liquidity probe: %w", err)
	}
	return nil
}

func (s *LiquidityProbeStore) GetByMint(ctx context.Context, mint string) (_ []*domain.LiquidityProbe, err error) {
	defer observe("probes_by_mint", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT mint, account, balance_sol, previous_sol, drop_percent, observed_at
		FROM liquidity_probes WHERE mint = ? ORDER BY observed_at ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("get probes by mint: %w", err)
	}
	defer rows.Close()

	var probes []*domain.LiquidityProbe
	for rows.Next() {
		var p domain.LiquidityProbe
		if err := rows.Scan(&p.Mint, &p.Account, &p.BalanceSOL, &p.PreviousSOL, &p.DropPercent, &p.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan probe row: %w", err)
		}
		probes = append(probes, &p)
	}
	return probes, rows.Err()
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// WalletOverride pins the secondary wallet for a creator handle
type WalletOverride struct {
	Handle          string    `json:"handle"`
	SecondaryWallet string    `json:"secondaryWallet"`
	Note            string    `json:"note,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// WalletOverrideRepository persists wallet overrides in Postgres
type WalletOverrideRepository struct {
	db *PostgresDB
}

// NewWalletOverrideRepository creates a new wallet override repository
func NewWalletOverrideRepository(db *PostgresDB) *WalletOverrideRepository {
	return &WalletOverrideRepository{db: db}
}

// Get returns the override wallet for handle and whether one exists
func (r *WalletOverrideRepository) Get(ctx context.Context, handle string) (string, bool, error) {
	query := `
		SELECT secondary_wallet
		FROM creator_wallet_overrides
		WHERE handle = $1
	`

	var wallet string
	err := r.db.Pool().QueryRow(ctx, query, normalizeHandle(handle)).Scan(&wallet)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get wallet override: %w", err)
	}

	return wallet, true, nil
}

// Upsert creates or replaces the override for o.Handle
func (r *WalletOverrideRepository) Upsert(ctx context.Context, o *WalletOverride) error {
	handle := normalizeHandle(o.Handle)
	if handle == "" {
		return fmt.Errorf("wallet override handle is empty")
	}
	if !common.IsHexAddress(o.SecondaryWallet) {
		return fmt.Errorf("invalid secondary wallet %q", o.SecondaryWallet)
	}

	now := time.Now().UTC()
	o.Handle = handle
	o.SecondaryWallet = strings.ToLower(o.SecondaryWallet)
	o.UpdatedAt = now
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}

	query := `
		INSERT INTO creator_wallet_overrides (handle, secondary_wallet, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (handle) DO UPDATE
		SET secondary_wallet = EXCLUDED.secondary_wallet,
		    note = EXCLUDED.note,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		o.Handle,
		o.SecondaryWallet,
		o.Note,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert wallet override: %w", err)
	}

	return nil
}

// Delete removes the override for handle
func (r *WalletOverrideRepository) Delete(ctx context.Context, handle string) error {
	query := `DELETE FROM creator_wallet_overrides WHERE handle = $1`

	if _, err := r.db.Pool().Exec(ctx, query, normalizeHandle(handle)); err != nil {
		return fmt.Errorf("failed to delete wallet override: %w", err)
	}
	return nil
}

// List returns every override ordered by handle
func (r *WalletOverrideRepository) List(ctx context.Context) ([]*WalletOverride, error) {
	query := `
		SELECT handle, secondary_wallet, note, created_at, updated_at
		FROM creator_wallet_overrides
		ORDER BY handle
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet overrides: %w", err)
	}
	defer rows.Close()

	var overrides []*WalletOverride
	for rows.Next() {
		var o WalletOverride
		if err := rows.Scan(&o.Handle, &o.SecondaryWallet, &o.Note, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet override: %w", err)
		}
		overrides = append(overrides, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet overrides: %w", err)
	}

	return overrides, nil
}

func normalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

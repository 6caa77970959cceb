package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-federation/core"
)

const defaultUsedCodeTTL = 5 * time.Minute

// ReplayLedger backs grant-code single use with a used-codes table. The
// claim runs in a transaction so two concurrent exchanges of the same code
// cannot both see an unclaimed key.
type ReplayLedger struct {
	db    *bun.DB
	clock core.ClockService
	uuids core.UuidGenerator
}

func (l *ReplayLedger) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l == nil || l.db == nil {
		return false, fmt.Errorf("sqlstore: replay ledger is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("sqlstore: replay key is required")
	}
	if ttl <= 0 {
		ttl = defaultUsedCodeTTL
	}
	now := l.clock.Now()

	claimed := false
	err := l.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*usedCodeRecord)(nil)).
			Where("expires_at <= ?", now).
			Exec(ctx); err != nil {
			return err
		}

		var existing []usedCodeRecord
		if err := tx.NewSelect().Model(&existing).
			Where("code_key = ?", key).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}
		if len(existing) > 0 {
			claimed = false
			return nil
		}

		record := &usedCodeRecord{
			ID:        l.uuids.Next().String(),
			CodeKey:   key,
			ExpiresAt: now.Add(ttl),
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (l *ReplayLedger) Release(ctx context.Context, key string) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("sqlstore: replay ledger is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: replay key is required")
	}
	_, err := l.db.NewDelete().Model((*usedCodeRecord)(nil)).
		Where("code_key = ?", key).
		Exec(ctx)
	return err
}

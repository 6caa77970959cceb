package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-federation/core"
)

// LinkStore is the SQL identity graph. Every mutation runs inside one
// database transaction so the current table and the history table can never
// disagree, and concurrent touches serialize on the row constraints.
type LinkStore struct {
	db    *bun.DB
	clock core.ClockService
	uuids core.UuidGenerator
}

func (s *LinkStore) GetLinkFromExternal(ctx context.Context, ref core.ExternalRef) (core.VersionedLink, error) {
	if s == nil || s.db == nil {
		return core.VersionedLink{}, fmt.Errorf("sqlstore: link store is not configured")
	}
	if err := ref.Validate(); err != nil {
		return core.VersionedLink{}, err
	}

	var out core.VersionedLink
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		chain, err := s.externalChainTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		out = chain
		return nil
	})
	if err != nil {
		return core.VersionedLink{}, err
	}
	return out, nil
}

func (s *LinkStore) GetLinksFromUser(ctx context.Context, userID string) (core.UserLinks, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: link store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("sqlstore: user id is required")
	}

	out := core.UserLinks{}
	for _, provider := range core.Providers() {
		for _, server := range provider.Servers() {
			out[core.LinkSlot{Provider: provider, Server: server}] = core.VersionedLink{}
		}
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var currents []linkRecord
		if err := tx.NewSelect().Model(&currents).
			Where("user_id = ?", userID).
			Scan(ctx); err != nil {
			return err
		}
		for i := range currents {
			record := currents[i]
			slot := core.LinkSlot{Provider: core.Provider(record.Provider), Server: record.Server}
			chain := out[slot]
			link := record.toDomainLink()
			chain.Current = &link
			out[slot] = chain
		}

		var history []linkHistoryRecord
		if err := tx.NewSelect().Model(&history).
			Where("user_id = ?", userID).
			Order("linked_at ASC").
			Scan(ctx); err != nil {
			return err
		}
		for i := range history {
			record := history[i]
			slot := core.LinkSlot{Provider: core.Provider(record.Provider), Server: record.Server}
			chain := out[slot]
			chain.Old = append(chain.Old, record.toDomainLink())
			out[slot] = chain
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LinkStore) TouchLink(ctx context.Context, in core.TouchLinkInput) (core.VersionedLink, error) {
	if s == nil || s.db == nil {
		return core.VersionedLink{}, fmt.Errorf("sqlstore: link store is not configured")
	}
	if err := in.Remote.Validate(); err != nil {
		return core.VersionedLink{}, err
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return core.VersionedLink{}, fmt.Errorf("sqlstore: user id is required")
	}
	actorID := strings.TrimSpace(in.ActorID)
	if actorID == "" {
		actorID = userID
	}
	now := s.clock.Now()

	var out core.VersionedLink
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := s.currentByExternalTx(ctx, tx, in.Remote)
		if err != nil {
			return err
		}
		if current != nil {
			if current.UserID != userID {
				return fmt.Errorf(
					"%w: %s/%s account %s is linked to another user",
					core.ErrConflict, in.Remote.Provider, in.Remote.Server, in.Remote.ID,
				)
			}
			chain, chainErr := s.externalChainTx(ctx, tx, in.Remote)
			if chainErr != nil {
				return chainErr
			}
			out = chain
			return nil
		}

		var slotCurrents []linkRecord
		if err := tx.NewSelect().Model(&slotCurrents).
			Where("user_id = ?", userID).
			Where("provider = ?", string(in.Remote.Provider)).
			Where("server = ?", in.Remote.Server).
			Scan(ctx); err != nil {
			return err
		}
		for i := range slotCurrents {
			if err := s.unlinkTx(ctx, tx, &slotCurrents[i], actorID, now); err != nil {
				return err
			}
		}

		record := &linkRecord{
			ID:               s.uuids.Next().String(),
			Provider:         string(in.Remote.Provider),
			Server:           in.Remote.Server,
			ExternalID:       in.Remote.ID,
			ExternalUsername: in.Remote.Username,
			UserID:           userID,
			LinkedBy:         actorID,
			LinkedAt:         now,
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}

		chain, chainErr := s.externalChainTx(ctx, tx, in.Remote)
		if chainErr != nil {
			return chainErr
		}
		out = chain
		return nil
	})
	if err != nil {
		return core.VersionedLink{}, err
	}
	return out, nil
}

func (s *LinkStore) DeleteLink(ctx context.Context, in core.DeleteLinkInput) (core.VersionedLink, error) {
	if s == nil || s.db == nil {
		return core.VersionedLink{}, fmt.Errorf("sqlstore: link store is not configured")
	}
	if err := in.Remote.Validate(); err != nil {
		return core.VersionedLink{}, err
	}
	now := s.clock.Now()

	var out core.VersionedLink
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := s.currentByExternalTx(ctx, tx, in.Remote)
		if err != nil {
			return err
		}
		if current != nil {
			actor := strings.TrimSpace(in.ActorID)
			if actor == "" {
				actor = current.UserID
			}
			if err := s.unlinkTx(ctx, tx, current, actor, now); err != nil {
				return err
			}
		}
		chain, chainErr := s.externalChainTx(ctx, tx, in.Remote)
		if chainErr != nil {
			return chainErr
		}
		out = chain
		return nil
	})
	if err != nil {
		return core.VersionedLink{}, err
	}
	return out, nil
}

// unlinkTx moves one current row into the history table.
func (s *LinkStore) unlinkTx(ctx context.Context, tx bun.Tx, record *linkRecord, actorID string, now time.Time) error {
	history := &linkHistoryRecord{
		ID:               s.uuids.Next().String(),
		Provider:         record.Provider,
		Server:           record.Server,
		ExternalID:       record.ExternalID,
		ExternalUsername: record.ExternalUsername,
		UserID:           record.UserID,
		LinkedBy:         record.LinkedBy,
		LinkedAt:         record.LinkedAt,
		UnlinkedBy:       actorID,
		UnlinkedAt:       now,
	}
	if _, err := tx.NewInsert().Model(history).Exec(ctx); err != nil {
		return err
	}
	_, err := tx.NewDelete().Model((*linkRecord)(nil)).
		Where("id = ?", record.ID).
		Exec(ctx)
	return err
}

func (s *LinkStore) currentByExternalTx(ctx context.Context, tx bun.Tx, ref core.ExternalRef) (*linkRecord, error) {
	var records []linkRecord
	err := tx.NewSelect().Model(&records).
		Where("provider = ?", string(ref.Provider)).
		Where("server = ?", ref.Server).
		Where("external_id = ?", ref.ID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// externalChainTx assembles the current-plus-historical view for one
// external account.
func (s *LinkStore) externalChainTx(ctx context.Context, tx bun.Tx, ref core.ExternalRef) (core.VersionedLink, error) {
	out := core.VersionedLink{}

	current, err := s.currentByExternalTx(ctx, tx, ref)
	if err != nil {
		return core.VersionedLink{}, err
	}
	if current != nil {
		link := current.toDomainLink()
		out.Current = &link
	}

	var history []linkHistoryRecord
	if err := tx.NewSelect().Model(&history).
		Where("provider = ?", string(ref.Provider)).
		Where("server = ?", ref.Server).
		Where("external_id = ?", ref.ID).
		Order("linked_at ASC").
		Scan(ctx); err != nil {
		return core.VersionedLink{}, err
	}
	for i := range history {
		out.Old = append(out.Old, history[i].toDomainLink())
	}
	return out, nil
}

package sqlstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-federation/core"
)

// ArchiveStore persists temporally merged profiles for one provider family.
// Each merge runs in a transaction: a stale snapshot rolls back without
// touching any field.
type ArchiveStore struct {
	db       *bun.DB
	provider core.Provider
	uuids    core.UuidGenerator
}

func (s *ArchiveStore) Provider() core.Provider {
	if s == nil {
		return ""
	}
	return s.provider
}

func (s *ArchiveStore) TouchProfile(ctx context.Context, snapshot core.ProfileSnapshot) (core.ArchivedProfile, error) {
	if s == nil || s.db == nil {
		return core.ArchivedProfile{}, fmt.Errorf("sqlstore: archive store is not configured")
	}
	if err := snapshot.Validate(); err != nil {
		return core.ArchivedProfile{}, err
	}
	if snapshot.Remote.Provider != s.provider {
		return core.ArchivedProfile{}, fmt.Errorf(
			"%w: %s snapshot offered to the %s archive",
			core.ErrInvalidProvider, snapshot.Remote.Provider, s.provider,
		)
	}
	capturedAt := snapshot.CapturedAt.UTC()

	var out core.ArchivedProfile
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.profileRecordTx(ctx, tx, snapshot.Remote)
		if err != nil {
			return err
		}

		if record == nil {
			record = &profileRecord{
				ID:         s.uuids.Next().String(),
				Provider:   string(snapshot.Remote.Provider),
				Server:     snapshot.Remote.Server,
				ExternalID: snapshot.Remote.ID,
				FirstSeen:  capturedAt,
				CreatedAt:  capturedAt,
				UpdatedAt:  capturedAt,
			}
			if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
				return err
			}
		}

		if snapshot.Remote.Username != "" {
			field := usernameField(record)
			merged, mergeErr := core.MergeObservation(field, capturedAt, snapshot.Remote.Username)
			if mergeErr != nil {
				return mergeErr
			}
			username := merged.Value
			start := merged.Period.Start
			retrieved := merged.Retrieved.Latest
			record.Username = &username
			record.UsernamePeriodStart = &start
			record.UsernameRetrievedAt = &retrieved
		}
		record.UpdatedAt = capturedAt
		if _, err := tx.NewUpdate().Model(record).
			Column("username", "username_period_start", "username_retrieved_at", "updated_at").
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}

		var attributes []profileAttributeRecord
		if err := tx.NewSelect().Model(&attributes).
			Where("profile_id = ?", record.ID).
			Scan(ctx); err != nil {
			return err
		}
		byName := make(map[string]*profileAttributeRecord, len(attributes))
		for i := range attributes {
			byName[attributes[i].Name] = &attributes[i]
		}

		for name, value := range snapshot.Attributes {
			stored := byName[name]
			var field *core.TemporalField[int64]
			if stored != nil {
				field = &core.TemporalField[int64]{
					Period:    core.Period{Start: stored.PeriodStart},
					Retrieved: core.Retrieved{Latest: stored.RetrievedAt},
					Value:     stored.Value,
				}
			}
			merged, mergeErr := core.MergeObservation(field, capturedAt, value)
			if mergeErr != nil {
				return mergeErr
			}
			if stored != nil {
				stored.Value = merged.Value
				stored.PeriodStart = merged.Period.Start
				stored.RetrievedAt = merged.Retrieved.Latest
				if _, err := tx.NewUpdate().Model(stored).
					Column("value", "period_start", "retrieved_at").
					Where("id = ?", stored.ID).
					Exec(ctx); err != nil {
					return err
				}
				continue
			}
			fresh := &profileAttributeRecord{
				ID:          s.uuids.Next().String(),
				ProfileID:   record.ID,
				Name:        name,
				Value:       merged.Value,
				PeriodStart: merged.Period.Start,
				RetrievedAt: merged.Retrieved.Latest,
			}
			if _, err := tx.NewInsert().Model(fresh).Exec(ctx); err != nil {
				return err
			}
			byName[name] = fresh
		}

		profile, assembleErr := s.assembleTx(ctx, tx, record)
		if assembleErr != nil {
			return assembleErr
		}
		profile.Remote.Username = snapshot.Remote.Username
		out = profile
		return nil
	})
	if err != nil {
		return core.ArchivedProfile{}, err
	}
	return out, nil
}

func (s *ArchiveStore) GetProfile(ctx context.Context, ref core.ExternalRef) (*core.ArchivedProfile, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: archive store is not configured")
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	var out *core.ArchivedProfile
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.profileRecordTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		if record == nil {
			return nil
		}
		profile, assembleErr := s.assembleTx(ctx, tx, record)
		if assembleErr != nil {
			return assembleErr
		}
		out = &profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ArchiveStore) profileRecordTx(ctx context.Context, tx bun.Tx, ref core.ExternalRef) (*profileRecord, error) {
	var records []profileRecord
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

func (s *ArchiveStore) assembleTx(ctx context.Context, tx bun.Tx, record *profileRecord) (core.ArchivedProfile, error) {
	profile := core.ArchivedProfile{
		Remote: core.ExternalRef{
			Provider: core.Provider(record.Provider),
			Server:   record.Server,
			ID:       record.ExternalID,
		},
		FirstSeen:  record.FirstSeen,
		Username:   usernameField(record),
		Attributes: map[string]*core.TemporalField[int64]{},
	}
	if profile.Username != nil {
		profile.Remote.Username = profile.Username.Value
	}

	var attributes []profileAttributeRecord
	if err := tx.NewSelect().Model(&attributes).
		Where("profile_id = ?", record.ID).
		Order("name ASC").
		Scan(ctx); err != nil {
		return core.ArchivedProfile{}, err
	}
	for _, attribute := range attributes {
		profile.Attributes[attribute.Name] = &core.TemporalField[int64]{
			Period:    core.Period{Start: attribute.PeriodStart},
			Retrieved: core.Retrieved{Latest: attribute.RetrievedAt},
			Value:     attribute.Value,
		}
	}
	return profile, nil
}

func usernameField(record *profileRecord) *core.TemporalField[string] {
	if record.Username == nil || record.UsernamePeriodStart == nil || record.UsernameRetrievedAt == nil {
		return nil
	}
	return &core.TemporalField[string]{
		Period:    core.Period{Start: *record.UsernamePeriodStart},
		Retrieved: core.Retrieved{Latest: *record.UsernameRetrievedAt},
		Value:     *record.Username,
	}
}

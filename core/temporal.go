package core

import (
	"fmt"
	"time"
)

// Period is the validity window of one observed value. End is nil while the
// value is still the current truth.
type Period struct {
	Start time.Time
	End   *time.Time
}

// Retrieved records when a value was last confirmed by a scrape, which may be
// long after Period.Start when the value never changed.
type Retrieved struct {
	Latest time.Time
}

// TemporalField is one externally observed attribute with provenance: the
// window during which the value held, and when it was last confirmed. The
// minimal model keeps only the latest period, not a full change history.
type TemporalField[T comparable] struct {
	Period    Period
	Retrieved Retrieved
	Value     T
}

// MergeObservation folds one (capturedAt, value) observation into a stored
// field and returns the updated field. A nil field starts a fresh period.
// Observations older than the last retrieval are rejected with
// ErrStaleObservation instead of being silently dropped, so scrape-ordering
// and clock bugs surface at the caller.
func MergeObservation[T comparable](field *TemporalField[T], capturedAt time.Time, value T) (*TemporalField[T], error) {
	if capturedAt.IsZero() {
		return nil, fmt.Errorf("core: observation capture time is required")
	}
	capturedAt = capturedAt.UTC()

	if field == nil {
		return &TemporalField[T]{
			Period:    Period{Start: capturedAt},
			Retrieved: Retrieved{Latest: capturedAt},
			Value:     value,
		}, nil
	}

	if capturedAt.Before(field.Retrieved.Latest) {
		return nil, fmt.Errorf(
			"%w: observed at %s, already retrieved at %s",
			ErrStaleObservation, capturedAt.Format(time.RFC3339), field.Retrieved.Latest.Format(time.RFC3339),
		)
	}

	if value == field.Value {
		next := *field
		if capturedAt.After(next.Retrieved.Latest) {
			next.Retrieved.Latest = capturedAt
		}
		return &next, nil
	}

	// Value changed: the prior period closes at capturedAt and a fresh one
	// starts. Only the latest period is kept.
	return &TemporalField[T]{
		Period:    Period{Start: capturedAt},
		Retrieved: Retrieved{Latest: capturedAt},
		Value:     value,
	}, nil
}

func (f *TemporalField[T]) Clone() *TemporalField[T] {
	if f == nil {
		return nil
	}
	next := *f
	if f.Period.End != nil {
		end := *f.Period.End
		next.Period.End = &end
	}
	return &next
}

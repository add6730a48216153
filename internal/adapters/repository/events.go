package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/okian/hookscore/internal/domain/model"
)

// EventExists reports whether a delivery id has been stored.
func (s *Store) EventExists(ctx context.Context, deliveryID string) (bool, error) {
	ok, err := s.db.NewSelect().
		Model((*eventRecord)(nil)).
		Where("delivery_id = ?", deliveryID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("lookup delivery %s: %w", deliveryID, err)
	}
	return ok, nil
}

// InsertEvent stores ev keyed by its delivery id. It returns false without
// writing when the delivery id already exists. ev.ID and ev.ReceivedAt are
// filled in when empty.
func (s *Store) InsertEvent(ctx context.Context, ev *model.InboundEvent) (bool, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = s.timestamp()
	}
	rec := &eventRecord{
		ID:           ev.ID,
		DeliveryID:   ev.DeliveryID,
		EventType:    ev.EventType,
		Payload:      string(ev.Payload),
		RepositoryID: ev.RepositoryID,
		ReceivedAt:   ev.ReceivedAt.UTC(),
	}
	res, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (delivery_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert delivery %s: %w", ev.DeliveryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert delivery %s: %w", ev.DeliveryID, err)
	}
	return n == 1, nil
}

// GetEvent loads an event by internal id.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.InboundEvent, error) {
	rec := new(eventRecord)
	err := s.db.NewSelect().Model(rec).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	ev := rec.toDomain()
	return &ev, nil
}

// ListUnprocessed returns up to limit pending events, oldest first.
// Quarantined events are excluded.
func (s *Store) ListUnprocessed(ctx context.Context, limit int) ([]model.InboundEvent, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	var recs []eventRecord
	err := s.db.NewSelect().
		Model(&recs).
		Where("processed = ?", false).
		Where("quarantined = ?", false).
		OrderExpr("received_at ASC, id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed: %w", err)
	}
	out := make([]model.InboundEvent, len(recs))
	for i := range recs {
		out[i] = recs[i].toDomain()
	}
	return out, nil
}

// MarkProcessed flips processed to true once. It returns false when the event
// was already processed by another consumer.
func (s *Store) MarkProcessed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("processed = ?", true).
		Set("processed_at = ?", at.UTC()).
		Set("last_error = ?", "").
		Where("id = ?", id).
		Where("processed = ?", false).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mark processed %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark processed %s: %w", id, err)
	}
	return n == 1, nil
}

// RecordFailure increments the attempt counter and stores the error text.
// When maxAttempts > 0 and the counter reaches it the event is quarantined.
func (s *Store) RecordFailure(ctx context.Context, id, reason string, maxAttempts int) (attempts int, quarantined bool, err error) {
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*eventRecord)(nil)).
			Set("attempts = attempts + 1").
			Set("last_error = ?", reason).
			Where("id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		if maxAttempts > 0 {
			if _, err := tx.NewUpdate().
				Model((*eventRecord)(nil)).
				Set("quarantined = ?", true).
				Where("id = ?", id).
				Where("attempts >= ?", maxAttempts).
				Exec(ctx); err != nil {
				return err
			}
		}
		rec := new(eventRecord)
		if err := tx.NewSelect().
			Model(rec).
			Column("attempts", "quarantined").
			Where("id = ?", id).
			Scan(ctx); err != nil {
			return err
		}
		attempts, quarantined = rec.Attempts, rec.Quarantined
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, false, fmt.Errorf("record failure %s: %w", id, err)
	}
	return attempts, quarantined, nil
}

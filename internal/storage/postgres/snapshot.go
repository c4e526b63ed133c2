package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kvlab/wordstat-ingest/internal/wordstat"
)

// SaveTopSnapshot persists one top-requests capture in a single
// transaction: phrase upsert, same-window dedup check, snapshot row, item
// rows. It returns false without writing a snapshot when an equivalent
// capture already exists inside [WindowStart, WindowEnd); the phrase
// upsert still commits in that case.
func (s *Store) SaveTopSnapshot(ctx context.Context, rec wordstat.SnapshotRecord) (bool, error) {
	saved := false
	err := s.inTx(ctx, func(q Querier) error {
		phraseID, err := upsertPhrase(ctx, q, rec.Phrase, rec.RequestedAt)
		if err != nil {
			return err
		}

		exists, err := snapshotExists(ctx, q, phraseID, rec)
		if err != nil {
			return err
		}
		if exists {
			s.logger.Info("snapshot already captured today, skipping",
				zap.String("phrase", rec.Phrase),
				zap.Int64p("region_id", rec.RegionID),
				zap.Stringp("device", rec.Device),
			)
			return nil
		}

		var snapshotID int64
		err = q.QueryRow(ctx, `
INSERT INTO top_requests (search_phrase_id, requested_at, region_id, device, total_count)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
			phraseID, rec.RequestedAt, rec.RegionID, rec.Device, rec.TotalCount,
		).Scan(&snapshotID)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}

		for _, item := range rec.Items {
			_, err := q.Exec(ctx,
				`INSERT INTO top_request_items (top_request_id, phrase, count) VALUES ($1, $2, $3)`,
				snapshotID, item.Phrase, item.Count,
			)
			if err != nil {
				return fmt.Errorf("insert snapshot item: %w", err)
			}
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, &wordstat.StorageError{Op: "save top snapshot", Err: err}
	}
	return saved, nil
}

// snapshotExists is the read-before-write dedup gate. IS NOT DISTINCT
// FROM makes a null region/device match only a null one.
func snapshotExists(ctx context.Context, q Querier, phraseID int64, rec wordstat.SnapshotRecord) (bool, error) {
	var id int64
	err := q.QueryRow(ctx, `
SELECT id FROM top_requests
WHERE search_phrase_id = $1
  AND region_id IS NOT DISTINCT FROM $2
  AND device IS NOT DISTINCT FROM $3
  AND requested_at >= $4
  AND requested_at < $5
LIMIT 1`,
		phraseID, rec.RegionID, rec.Device, rec.WindowStart, rec.WindowEnd,
	).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("dedup check: %w", err)
}

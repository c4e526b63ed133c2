package postgres

import (
	"context"
	"fmt"

	"github.com/kvlab/wordstat-ingest/internal/wordstat"
)

// SaveDynamicsSeries persists one dynamics series with its points in a
// single transaction. Series ingestion is append-only: there is no dedup
// gate, every successful fetch produces a new row.
func (s *Store) SaveDynamicsSeries(ctx context.Context, rec wordstat.SeriesRecord) error {
	err := s.inTx(ctx, func(q Querier) error {
		phraseID, err := upsertPhrase(ctx, q, rec.Phrase, rec.RequestedAt)
		if err != nil {
			return err
		}

		var seriesID int64
		err = q.QueryRow(ctx, `
INSERT INTO dynamics (search_phrase_id, requested_at, from_date, to_date, period, region_id, device)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
			phraseID, rec.RequestedAt, rec.FromDate, rec.ToDate, string(rec.Period), rec.RegionID, rec.Device,
		).Scan(&seriesID)
		if err != nil {
			return fmt.Errorf("insert series: %w", err)
		}

		for _, pt := range rec.Points {
			_, err := q.Exec(ctx,
				`INSERT INTO dynamics_points (dynamics_id, point_date, count, share) VALUES ($1, $2, $3, $4)`,
				seriesID, pt.Date, pt.Count, pt.Share,
			)
			if err != nil {
				return fmt.Errorf("insert series point: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return &wordstat.StorageError{Op: "save dynamics series", Err: err}
	}
	return nil
}

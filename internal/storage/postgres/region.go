package postgres

import (
	"context"
	"fmt"

	"github.com/kvlab/wordstat-ingest/internal/wordstat"
)

// SyncRegions inserts catalog entries that are not yet present and
// reports how many rows were added. Existing rows are left untouched:
// regions are immutable once inserted.
func (s *Store) SyncRegions(ctx context.Context, regions []wordstat.Region) (int, error) {
	added := 0
	err := s.inTx(ctx, func(q Querier) error {
		for _, region := range regions {
			tag, err := q.Exec(ctx,
				`INSERT INTO regions (id, label) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
				region.ID, region.Label,
			)
			if err != nil {
				return fmt.Errorf("insert region %d: %w", region.ID, err)
			}
			added += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, &wordstat.StorageError{Op: "sync regions", Err: err}
	}
	return added, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// upsertPhrase resolves the id of a phrase row, inserting it on first
// reference. Phrase text is unique; later writers reuse the first
// writer's row.
func upsertPhrase(ctx context.Context, q Querier, phrase string, now time.Time) (int64, error) {
	var id int64
	err := q.QueryRow(ctx,
		`SELECT id FROM search_phrases WHERE phrase = $1`,
		phrase,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("select phrase: %w", err)
	}

	err = q.QueryRow(ctx,
		`INSERT INTO search_phrases (phrase, created_at) VALUES ($1, $2) RETURNING id`,
		phrase, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert phrase: %w", err)
	}
	return id, nil
}

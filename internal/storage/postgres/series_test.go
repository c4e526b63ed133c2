package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/kvlab/wordstat-ingest/internal/wordstat"
)

func seriesFixture(now time.Time) wordstat.SeriesRecord {
	region := int64(2)
	device := "desktop"
	return wordstat.SeriesRecord{
		Phrase:      "пицца москва",
		RegionID:    &region,
		Device:      &device,
		RequestedAt: now,
		Period:      wordstat.PeriodWeekly,
		FromDate:    time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
		ToDate:      time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC),
		Points: []wordstat.SeriesPoint{
			{Date: time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC), Count: 120, Share: 0.4},
			{Date: time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC), Count: 95, Share: 0.3},
			{Date: time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC), Count: 88, Share: 0.3},
		},
	}
}

func TestSaveDynamicsSeriesInsertsSeriesAndPoints(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithDB(mock, nil)
	now := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	rec := seriesFixture(now)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM search_phrases").
		WithArgs(rec.Phrase).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO search_phrases").
		WithArgs(rec.Phrase, rec.RequestedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery("INSERT INTO dynamics").
		WithArgs(int64(3), rec.RequestedAt, rec.FromDate, rec.ToDate, "weekly", rec.RegionID, rec.Device).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	for _, pt := range rec.Points {
		mock.ExpectExec("INSERT INTO dynamics_points").
			WithArgs(int64(11), pt.Date, pt.Count, pt.Share).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.SaveDynamicsSeries(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDynamicsSeriesRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithDB(mock, nil)
	now := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	rec := seriesFixture(now)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM search_phrases").
		WithArgs(rec.Phrase).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery("INSERT INTO dynamics").
		WithArgs(int64(3), rec.RequestedAt, rec.FromDate, rec.ToDate, "weekly", rec.RegionID, rec.Device).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = store.SaveDynamicsSeries(context.Background(), rec)
	require.Error(t, err)

	var storageErr *wordstat.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

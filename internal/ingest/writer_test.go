package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kvlab/wordstat-ingest/internal/wordstat"
)

type fakeStore struct {
	snapshots []wordstat.SnapshotRecord
	series    []wordstat.SeriesRecord
	regions   []wordstat.Region

	// savedFn decides the (saved, err) answer per snapshot; nil means
	// every snapshot is freshly saved.
	savedFn  func(rec wordstat.SnapshotRecord) (bool, error)
	seriesFn func(rec wordstat.SeriesRecord) error
}

func (f *fakeStore) SaveTopSnapshot(_ context.Context, rec wordstat.SnapshotRecord) (bool, error) {
	if f.savedFn != nil {
		saved, err := f.savedFn(rec)
		if err != nil {
			return false, err
		}
		if saved {
			f.snapshots = append(f.snapshots, rec)
		}
		return saved, nil
	}
	f.snapshots = append(f.snapshots, rec)
	return true, nil
}

func (f *fakeStore) SaveDynamicsSeries(_ context.Context, rec wordstat.SeriesRecord) error {
	if f.seriesFn != nil {
		if err := f.seriesFn(rec); err != nil {
			return err
		}
	}
	f.series = append(f.series, rec)
	return nil
}

func (f *fakeStore) SyncRegions(_ context.Context, regions []wordstat.Region) (int, error) {
	f.regions = regions
	return len(regions), nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func topBatch(outcomes ...wordstat.TopOutcome) wordstat.TopBatch {
	batch := wordstat.TopBatch{Results: make(map[string]wordstat.TopOutcome)}
	for _, out := range outcomes {
		batch.Phrases = append(batch.Phrases, out.Phrase)
		batch.Results[out.Phrase] = out
	}
	return batch
}

func dynamicsBatch(outcomes ...wordstat.DynamicsOutcome) wordstat.DynamicsBatch {
	batch := wordstat.DynamicsBatch{Results: make(map[string]wordstat.DynamicsOutcome)}
	for _, out := range outcomes {
		batch.Phrases = append(batch.Phrases, out.Phrase)
		batch.Results[out.Phrase] = out
	}
	return batch
}

func TestPersistTopWindowBoundsAreUTCCalendarDay(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	// Late in the Moscow evening it is still the same UTC day.
	now := time.Date(2026, 3, 14, 23, 45, 10, 0, time.UTC)
	writer := NewWriter(store, WithClock(fixedClock{now: now}))

	batch := topBatch(wordstat.TopOutcome{
		Phrase: "купить велосипед",
		Result: wordstat.TopResult{TotalCount: 1200},
	})
	summary := writer.PersistTop(context.Background(), batch, wordstat.TopOptions{})

	require.Equal(t, Summary{Persisted: 1}, summary)
	require.Len(t, store.snapshots, 1)

	rec := store.snapshots[0]
	require.Equal(t, now, rec.RequestedAt)
	require.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), rec.WindowStart)
	require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), rec.WindowEnd)
}

func TestPersistTopScalarReduction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       wordstat.TopOptions
		wantRegion *int64
		wantDevice *string
	}{
		{
			name:       "singleton region and device",
			opts:       wordstat.TopOptions{Regions: []int64{213}, Devices: []string{"phone"}},
			wantRegion: int64Ptr(213),
			wantDevice: strPtr("phone"),
		},
		{
			name: "multiple regions reduce to null",
			opts: wordstat.TopOptions{Regions: []int64{213, 2}, Devices: []string{"phone", "tablet"}},
		},
		{
			name: "empty stays null",
			opts: wordstat.TopOptions{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &fakeStore{}
			writer := NewWriter(store, WithClock(fixedClock{now: time.Unix(1700000000, 0)}))
			batch := topBatch(wordstat.TopOutcome{Phrase: "стол"})

			writer.PersistTop(context.Background(), batch, tt.opts)

			require.Len(t, store.snapshots, 1)
			require.Equal(t, tt.wantRegion, store.snapshots[0].RegionID)
			require.Equal(t, tt.wantDevice, store.snapshots[0].Device)
		})
	}
}

func TestPersistTopSkipsFailedFetchesAndIsolatesStorageErrors(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		savedFn: func(rec wordstat.SnapshotRecord) (bool, error) {
			switch rec.Phrase {
			case "битая":
				return false, &wordstat.StorageError{Op: "save top snapshot", Err: errors.New("boom")}
			case "повтор":
				return false, nil
			default:
				return true, nil
			}
		},
	}
	writer := NewWriter(store, WithClock(fixedClock{now: time.Unix(1700000000, 0)}))

	batch := topBatch(
		wordstat.TopOutcome{Phrase: "свежая", Result: wordstat.TopResult{TotalCount: 10}},
		wordstat.TopOutcome{Phrase: "упавшая", Err: &wordstat.RemoteAPIError{Status: 429}},
		wordstat.TopOutcome{Phrase: "битая"},
		wordstat.TopOutcome{Phrase: "повтор"},
	)
	summary := writer.PersistTop(context.Background(), batch, wordstat.TopOptions{})

	require.Equal(t, Summary{Persisted: 1, Deduped: 1, Skipped: 1, Failed: 1}, summary)
	require.Len(t, store.snapshots, 1)
	require.Equal(t, "свежая", store.snapshots[0].Phrase)
}

func TestPersistDynamicsDerivesToDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opts   wordstat.DynamicsOptions
		points []wordstat.DynamicsPoint
		want   time.Time
	}{
		{
			name: "explicit to_date wins",
			opts: wordstat.DynamicsOptions{
				Period: wordstat.PeriodWeekly, FromDate: "2026-01-01", ToDate: "2026-02-01",
			},
			points: []wordstat.DynamicsPoint{{Date: "2026-03-09", Count: 5}},
			want:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "derived from max point date",
			opts: wordstat.DynamicsOptions{Period: wordstat.PeriodWeekly, FromDate: "2026-01-01"},
			points: []wordstat.DynamicsPoint{
				{Date: "2026-01-12", Count: 3},
				{Date: "2026-01-26", Count: 7},
				{Date: "2026-01-19", Count: 4},
			},
			want: time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "empty series falls back to from_date",
			opts: wordstat.DynamicsOptions{Period: wordstat.PeriodWeekly, FromDate: "2026-01-01"},
			want: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &fakeStore{}
			writer := NewWriter(store, WithClock(fixedClock{now: time.Unix(1700000000, 0)}))
			batch := dynamicsBatch(wordstat.DynamicsOutcome{
				Phrase: "лыжи",
				Result: wordstat.DynamicsResult{Dynamics: tt.points},
			})

			summary, err := writer.PersistDynamics(context.Background(), batch, tt.opts)
			require.NoError(t, err)
			require.Equal(t, Summary{Persisted: 1}, summary)
			require.Len(t, store.series, 1)
			require.Equal(t, tt.want, store.series[0].ToDate)
		})
	}
}

func TestPersistDynamicsExcludesPointsWithoutDate(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	writer := NewWriter(store, WithClock(fixedClock{now: time.Unix(1700000000, 0)}))
	batch := dynamicsBatch(wordstat.DynamicsOutcome{
		Phrase: "сноуборд",
		Result: wordstat.DynamicsResult{Dynamics: []wordstat.DynamicsPoint{
			{Date: "2026-01-05", Count: 11, Share: 0.5},
			{Date: "", Count: 99},
			{Date: "2026-01-12", Count: 13, Share: 0.6},
		}},
	})

	summary, err := writer.PersistDynamics(context.Background(), batch, wordstat.DynamicsOptions{
		Period: wordstat.PeriodWeekly, FromDate: "2026-01-01",
	})
	require.NoError(t, err)
	require.Equal(t, Summary{Persisted: 1}, summary)
	require.Len(t, store.series, 1)

	rec := store.series[0]
	require.Len(t, rec.Points, 2)
	require.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), rec.Points[0].Date)
	require.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), rec.Points[1].Date)
	// Dateless points do not influence the derived to_date either.
	require.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), rec.ToDate)
}

func TestPersistDynamicsMalformedPointDateFailsOnlyThatPhrase(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	writer := NewWriter(store, WithClock(fixedClock{now: time.Unix(1700000000, 0)}))
	batch := dynamicsBatch(
		wordstat.DynamicsOutcome{
			Phrase: "кривая",
			Result: wordstat.DynamicsResult{Dynamics: []wordstat.DynamicsPoint{{Date: "not-a-date"}}},
		},
		wordstat.DynamicsOutcome{
			Phrase: "целая",
			Result: wordstat.DynamicsResult{Dynamics: []wordstat.DynamicsPoint{{Date: "2026-01-05", Count: 2}}},
		},
	)

	summary, err := writer.PersistDynamics(context.Background(), batch, wordstat.DynamicsOptions{
		Period: wordstat.PeriodWeekly, FromDate: "2026-01-01",
	})
	require.NoError(t, err)
	require.Equal(t, Summary{Persisted: 1, Failed: 1}, summary)
	require.Len(t, store.series, 1)
	require.Equal(t, "целая", store.series[0].Phrase)
}

func TestPersistDynamicsBadFromDateIsFatal(t *testing.T) {
	t.Parallel()

	writer := NewWriter(&fakeStore{})
	_, err := writer.PersistDynamics(context.Background(), wordstat.DynamicsBatch{}, wordstat.DynamicsOptions{
		Period: wordstat.PeriodDaily, FromDate: "05.01.2026",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "from_date")
}

func TestSyncRegionsDelegatesToStore(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	writer := NewWriter(store)
	catalog := []wordstat.Region{{ID: 213, Label: "Москва"}, {ID: 2, Label: "Санкт-Петербург"}}

	added, err := writer.SyncRegions(context.Background(), catalog)
	require.NoError(t, err)
	require.Equal(t, 2, added)
	require.Equal(t, catalog, store.regions)
}

func TestArchivePayloadWritesBlobAndNeverFailsPhrase(t *testing.T) {
	t.Parallel()

	blobs := &fakeBlobStore{}
	store := &fakeStore{}
	writer := NewWriter(store,
		WithClock(fixedClock{now: time.Unix(1700000000, 0)}),
		WithArchive(blobs, "raw"),
	)

	batch := topBatch(wordstat.TopOutcome{Phrase: "ноутбук", Result: wordstat.TopResult{TotalCount: 7}})
	summary := writer.PersistTop(context.Background(), batch, wordstat.TopOptions{})

	require.Equal(t, Summary{Persisted: 1}, summary)
	require.Len(t, blobs.objects, 1)
	require.Regexp(t, `^raw/top/[0-9a-f]{64}\.json$`, blobs.objects[0].path)

	// A broken archive backend must not affect persistence.
	blobs.err = errors.New("bucket gone")
	summary = writer.PersistTop(context.Background(), batch, wordstat.TopOptions{})
	require.Equal(t, Summary{Persisted: 1}, summary)
}

type fakeBlobStore struct {
	objects []blobObject
	err     error
}

type blobObject struct {
	path        string
	contentType string
	data        []byte
}

func (f *fakeBlobStore) PutObject(_ context.Context, path, contentType string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.objects = append(f.objects, blobObject{path: path, contentType: contentType, data: data})
	return "mem://" + path, nil
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }

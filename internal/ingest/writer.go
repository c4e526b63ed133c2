// Package ingest maps batch results onto persistent entities with
// same-day dedup and per-phrase transaction isolation.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kvlab/wordstat-ingest/internal/clock/system"
	"github.com/kvlab/wordstat-ingest/internal/hash/sha256"
	"github.com/kvlab/wordstat-ingest/internal/metrics"
	"github.com/kvlab/wordstat-ingest/internal/wordstat"
)

// Store persists ingestion entities. Each Save call is one transaction;
// a failure affects only the phrase it belongs to.
type Store interface {
	SaveTopSnapshot(ctx context.Context, rec wordstat.SnapshotRecord) (saved bool, err error)
	SaveDynamicsSeries(ctx context.Context, rec wordstat.SeriesRecord) error
	SyncRegions(ctx context.Context, regions []wordstat.Region) (added int, err error)
}

// Summary accounts for every phrase of a persistence run.
type Summary struct {
	Persisted int `json:"persisted"`
	Deduped   int `json:"deduped"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Writer turns batch outcomes into rows. Error placeholders are skipped
// with a logged warning, storage failures are isolated per phrase, and
// successful raw payloads are optionally archived before persistence.
type Writer struct {
	store         Store
	clock         wordstat.Clock
	logger        *zap.Logger
	archive       wordstat.BlobStore
	archivePrefix string
	hasher        wordstat.Hasher
}

// WriterOption customizes a Writer.
type WriterOption func(*Writer)

// WithClock overrides the system clock (useful for dedup-window tests).
func WithClock(clock wordstat.Clock) WriterOption {
	return func(w *Writer) { w.clock = clock }
}

// WithLogger sets the writer logger.
func WithLogger(logger *zap.Logger) WriterOption {
	return func(w *Writer) { w.logger = logger }
}

// WithArchive enables raw-payload archiving under the given prefix.
func WithArchive(blobs wordstat.BlobStore, prefix string) WriterOption {
	return func(w *Writer) {
		w.archive = blobs
		w.archivePrefix = prefix
	}
}

// NewWriter constructs a Writer.
func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:  store,
		clock:  system.New(),
		logger: zap.NewNop(),
		hasher: sha256.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// PersistTop writes one snapshot per successfully fetched phrase. The
// dedup window is the current UTC calendar day: an equivalent snapshot
// already inside the window makes the phrase an idempotent no-op.
func (w *Writer) PersistTop(ctx context.Context, batch wordstat.TopBatch, opts wordstat.TopOptions) Summary {
	regionID := scalarRegion(opts.Regions)
	device := scalarDevice(opts.Devices)

	now := w.clock.Now().UTC()
	dayStart := now.Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	var summary Summary
	for _, phrase := range batch.Phrases {
		outcome, ok := batch.Results[phrase]
		if !ok || outcome.Err != nil {
			summary.Skipped++
			metrics.SnapshotResult("skipped")
			w.logger.Warn("skipping phrase with failed fetch",
				zap.String("phrase", phrase),
				zap.Error(outcome.Err),
			)
			continue
		}

		w.archivePayload(ctx, "top", phrase, outcome.Result)

		saved, err := w.store.SaveTopSnapshot(ctx, wordstat.SnapshotRecord{
			Phrase:      phrase,
			RegionID:    regionID,
			Device:      device,
			RequestedAt: now,
			WindowStart: dayStart,
			WindowEnd:   dayEnd,
			TotalCount:  outcome.Result.TotalCount,
			Items:       outcome.Result.TopRequests,
		})
		if err != nil {
			summary.Failed++
			metrics.IngestPhraseFailed()
			w.logger.Error("persist snapshot failed", zap.String("phrase", phrase), zap.Error(err))
			continue
		}
		if !saved {
			summary.Deduped++
			metrics.SnapshotResult("deduped")
			continue
		}
		summary.Persisted++
		metrics.SnapshotResult("persisted")
		w.logger.Info("snapshot persisted",
			zap.String("phrase", phrase),
			zap.Int64p("region_id", regionID),
			zap.Stringp("device", device),
			zap.Int64("total_count", outcome.Result.TotalCount),
		)
	}
	return summary
}

// PersistDynamics writes one series per successfully fetched phrase.
// Series ingestion is append-only. When the caller omitted to_date it is
// derived as the maximum point date, or from_date for an empty series.
func (w *Writer) PersistDynamics(ctx context.Context, batch wordstat.DynamicsBatch, opts wordstat.DynamicsOptions) (Summary, error) {
	fromDate, err := time.Parse(wordstat.DateLayout, opts.FromDate)
	if err != nil {
		return Summary{}, fmt.Errorf("parse from_date: %w", err)
	}
	var explicitTo *time.Time
	if opts.ToDate != "" {
		to, err := time.Parse(wordstat.DateLayout, opts.ToDate)
		if err != nil {
			return Summary{}, fmt.Errorf("parse to_date: %w", err)
		}
		explicitTo = &to
	}

	regionID := scalarRegion(opts.Regions)
	device := scalarDevice(opts.Devices)
	now := w.clock.Now().UTC()

	var summary Summary
	for _, phrase := range batch.Phrases {
		outcome, ok := batch.Results[phrase]
		if !ok || outcome.Err != nil {
			summary.Skipped++
			w.logger.Warn("skipping phrase with failed fetch",
				zap.String("phrase", phrase),
				zap.Error(outcome.Err),
			)
			continue
		}

		points, maxDate, err := parsePoints(outcome.Result.Dynamics)
		if err != nil {
			summary.Failed++
			metrics.IngestPhraseFailed()
			w.logger.Error("bad dynamics payload", zap.String("phrase", phrase), zap.Error(err))
			continue
		}

		toDate := fromDate
		switch {
		case explicitTo != nil:
			toDate = *explicitTo
		case maxDate != nil:
			toDate = *maxDate
		}

		w.archivePayload(ctx, "dynamics", phrase, outcome.Result)

		err = w.store.SaveDynamicsSeries(ctx, wordstat.SeriesRecord{
			Phrase:      phrase,
			RegionID:    regionID,
			Device:      device,
			RequestedAt: now,
			Period:      opts.Period,
			FromDate:    fromDate,
			ToDate:      toDate,
			Points:      points,
		})
		if err != nil {
			summary.Failed++
			metrics.IngestPhraseFailed()
			w.logger.Error("persist series failed", zap.String("phrase", phrase), zap.Error(err))
			continue
		}
		summary.Persisted++
		metrics.SeriesPersisted(len(points))
		w.logger.Info("series persisted",
			zap.String("phrase", phrase),
			zap.String("period", string(opts.Period)),
			zap.Time("from_date", fromDate),
			zap.Time("to_date", toDate),
			zap.Int("points", len(points)),
		)
	}
	return summary, nil
}

// SyncRegions fills the regions table from the flattened catalog,
// inserting only entries not yet present.
func (w *Writer) SyncRegions(ctx context.Context, regions []wordstat.Region) (int, error) {
	added, err := w.store.SyncRegions(ctx, regions)
	if err != nil {
		return 0, err
	}
	w.logger.Info("regions synced", zap.Int("catalog", len(regions)), zap.Int("added", added))
	return added, nil
}

// parsePoints converts wire points, excluding ones without a date, and
// reports the maximum point date seen.
func parsePoints(raw []wordstat.DynamicsPoint) ([]wordstat.SeriesPoint, *time.Time, error) {
	points := make([]wordstat.SeriesPoint, 0, len(raw))
	var maxDate *time.Time
	for _, pt := range raw {
		if pt.Date == "" {
			continue
		}
		date, err := time.Parse(wordstat.DateLayout, pt.Date)
		if err != nil {
			return nil, nil, fmt.Errorf("parse point date %q: %w", pt.Date, err)
		}
		points = append(points, wordstat.SeriesPoint{Date: date, Count: pt.Count, Share: pt.Share})
		if maxDate == nil || date.After(*maxDate) {
			d := date
			maxDate = &d
		}
	}
	return points, maxDate, nil
}

// scalarRegion reduces the requested regions to the single dedup-key
// value: regions[0] iff exactly one region was requested, else null.
func scalarRegion(regions []int64) *int64 {
	if len(regions) == 1 {
		return &regions[0]
	}
	return nil
}

func scalarDevice(devices []string) *string {
	if len(devices) == 1 {
		return &devices[0]
	}
	return nil
}

// archivePayload stores the raw payload as a JSON blob. Archiving is
// best-effort and never fails the phrase.
func (w *Writer) archivePayload(ctx context.Context, kind, phrase string, payload any) {
	if w.archive == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Warn("archive marshal failed", zap.String("phrase", phrase), zap.Error(err))
		return
	}
	hash, err := w.hasher.Hash(data)
	if err != nil {
		w.logger.Warn("archive hash failed", zap.String("phrase", phrase), zap.Error(err))
		return
	}
	path := buildBlobPath(w.archivePrefix, kind, hash)
	uri, err := w.archive.PutObject(ctx, path, "application/json", data)
	if err != nil {
		w.logger.Warn("archive write failed", zap.String("phrase", phrase), zap.Error(err))
		return
	}
	w.logger.Debug("payload archived", zap.String("phrase", phrase), zap.String("blob_uri", uri))
}

func buildBlobPath(prefix, kind, hash string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.json", kind, hash)
	}
	return fmt.Sprintf("%s/%s/%s.json", prefix, kind, hash)
}

// Package pipeline turns selected monitoring records into an ordered list of
// report photos, transcoding images in fixed-size batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/photo-report/internal/constants"
	"github.com/kozaktomas/photo-report/internal/database"
	"github.com/kozaktomas/photo-report/internal/imagelist"
	"github.com/kozaktomas/photo-report/internal/selection"
	"github.com/kozaktomas/photo-report/internal/transcode"
)

var (
	// ErrEmptySelection is returned when no included record has an image.
	ErrEmptySelection = errors.New("no eligible records selected")
	// ErrCancelled wraps the context error when a run is aborted.
	ErrCancelled = errors.New("report generation cancelled")
)

// PhotoEntry is one photo cell of the report. The field set is what the
// renderer consumes and must stay stable.
type PhotoEntry struct {
	ImageSource string `json:"image_source"`
	Area        string `json:"area"`
	Workstation string `json:"workstation"`
	Code        string `json:"code"`
	Timestamp   string `json:"timestamp"`
}

// Progress is emitted after every batch.
type Progress struct {
	Percent   int    `json:"percent"`
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// Degradation records an image that was placed by URL because transcoding
// fell back.
type Degradation struct {
	RecordID string           `json:"record_id"`
	Code     string           `json:"code"`
	Source   string           `json:"source"`
	Reason   transcode.Reason `json:"reason"`
}

// Result is the output of a run.
type Result struct {
	Entries  []PhotoEntry  `json:"entries"`
	Degraded []Degradation `json:"degraded,omitempty"`
}

// Options configures a run.
type Options struct {
	BatchSize  int
	Prefix     string
	Pause      time.Duration // between batches, 0 disables
	OnProgress func(Progress)
}

// Transcoder is the per-image step. *transcode.Transcoder implements it.
type Transcoder interface {
	Transcode(ctx context.Context, src string) transcode.Result
}

// Item is a record that passed selection filtering, with its image resolved.
type Item struct {
	Record database.Record
	Image  string
	Index  int // clamped index into the record's image list
}

// Orchestrator runs the batch pipeline.
type Orchestrator struct {
	transcoder Transcoder
	log        logrus.FieldLogger
}

// New creates an Orchestrator.
func New(t Transcoder, log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{transcoder: t, log: log}
}

// Eligible returns the records included in store whose image list is not
// empty, in input order, with the chosen image resolved. Stale indexes are
// clamped to the last image. A nil store selects nothing.
func Eligible(records []database.Record, store *selection.Store) []Item {
	if store == nil {
		return nil
	}
	var items []Item
	for _, r := range records {
		entry, ok := store.Entry(r.ID)
		if !ok || !entry.Included {
			continue
		}
		images := imagelist.NormalizeRecord(r)
		if len(images) == 0 {
			continue
		}
		idx := min(max(entry.ImageIndex, 0), len(images)-1)
		items = append(items, Item{Record: r, Image: images[idx], Index: idx})
	}
	return items
}

// Code formats the report-local label for the n-th photo (1-based).
func Code(prefix string, n int) string {
	return fmt.Sprintf("%s-%02d", prefix, n)
}

// FormatTimestamp renders a measurement time for captions.
func FormatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(constants.TimestampFormat)
}

// Run transcodes the chosen image of every eligible record. Batches run one
// after another; images within a batch run concurrently and are stored by
// position. Individual image failures never fail the run.
func (o *Orchestrator) Run(ctx context.Context, records []database.Record, store *selection.Store, opts Options) (*Result, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.Prefix == "" {
		return nil, errors.New("code prefix must not be empty")
	}
	if store == nil {
		return nil, ErrEmptySelection
	}
	report := opts.OnProgress
	if report == nil {
		report = func(Progress) {}
	}

	items := Eligible(records, store)
	total := len(items)
	result := &Result{Entries: make([]PhotoEntry, 0, total)}

	if total == 0 {
		report(Progress{Percent: 100, Status: "No photos to process"})
		return result, nil
	}

	o.log.WithFields(logrus.Fields{
		"records":    total,
		"batch_size": opts.BatchSize,
		"prefix":     opts.Prefix,
	}).Info("Starting photo pipeline")

	processed := 0
	for start := 0; start < total; start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		batch := items[start:min(start+opts.BatchSize, total)]
		results, err := o.runBatch(ctx, batch, opts.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		for i, item := range batch {
			code := Code(opts.Prefix, start+i+1)
			res := results[i]
			result.Entries = append(result.Entries, PhotoEntry{
				ImageSource: res.Source,
				Area:        item.Record.Area,
				Workstation: item.Record.Workstation,
				Code:        code,
				Timestamp:   FormatTimestamp(item.Record.MeasuredAt),
			})
			if res.Degraded {
				result.Degraded = append(result.Degraded, Degradation{
					RecordID: item.Record.ID,
					Code:     code,
					Source:   item.Image,
					Reason:   res.Reason,
				})
			}
		}

		processed += len(batch)
		report(Progress{
			Percent:   int(math.Round(100 * float64(processed) / float64(total))),
			Status:    fmt.Sprintf("Processed %d of %d photos", processed, total),
			Processed: processed,
			Total:     total,
		})

		if processed < total && opts.Pause > 0 {
			if err := sleep(ctx, opts.Pause); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
			}
		}
	}

	o.log.WithFields(logrus.Fields{
		"photos":   len(result.Entries),
		"degraded": len(result.Degraded),
	}).Info("Photo pipeline finished")

	return result, nil
}

// runBatch transcodes one batch. Transcode itself never fails, so the only
// error is the cancellation of ctx.
func (o *Orchestrator) runBatch(ctx context.Context, batch []Item, limit int) ([]transcode.Result, error) {
	results := make([]transcode.Result, len(batch))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range batch {
		g.Go(func() error {
			results[i] = o.transcoder.Transcode(ctx, item.Image)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

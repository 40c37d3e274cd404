package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/backyonatan-alt/petitionwatch/internal/cache"
	"github.com/backyonatan-alt/petitionwatch/internal/metrics"
	"github.com/backyonatan-alt/petitionwatch/internal/store"
)

// Report summarizes one cycle.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Seeded     bool      `json:"seeded"`
	Pages      int       `json:"pages"`
	Imported   int       `json:"imported"`
	Updated    int       `json:"updated"`
	Unchanged  int       `json:"unchanged"`
	Error      string    `json:"error,omitempty"`
}

type Options struct {
	// PageDelay is the minimum wait between listing page fetches.
	PageDelay time.Duration
	// Now is the clock used for observation timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline orchestrates one cycle: seed -> scan -> import.
type Pipeline struct {
	store   store.Store
	source  Source
	reports *cache.Value[Report]
	opts    Options
}

func New(st store.Store, source Source, reports *cache.Value[Report], opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if reports == nil {
		reports = cache.NewValue[Report]()
	}
	return &Pipeline{store: st, source: source, reports: reports, opts: opts}
}

// Seed imports reference data in its own transaction if none exists.
func (p *Pipeline) Seed(ctx context.Context) (bool, error) {
	var seeded bool
	err := p.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		seeded, err = NewReferenceImporter(p.source).Seed(ctx, tx)
		return err
	})
	return seeded, err
}

// Run performs one full cycle. Scan and imports share one transaction, so a
// failure leaves previously committed state untouched.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	report := Report{StartedAt: p.opts.Now()}
	slog.Info("pipeline run starting")

	err := p.run(ctx, &report)
	report.FinishedAt = p.opts.Now()
	metrics.CycleDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	if err != nil {
		report.Error = err.Error()
		metrics.CycleFailures.Inc()
		slog.Error("pipeline run failed", "error", err)
	} else {
		metrics.LastCycleSuccess.Set(float64(report.FinishedAt.Unix()))
		slog.Info("pipeline run complete",
			"imported", report.Imported,
			"updated", report.Updated,
			"unchanged", report.Unchanged,
			"pages", report.Pages,
			"duration", report.FinishedAt.Sub(report.StartedAt),
		)
	}
	p.reports.Set(report)
	return report, err
}

func (p *Pipeline) run(ctx context.Context, report *Report) error {
	seeded, err := p.Seed(ctx)
	if err != nil {
		return err
	}
	report.Seeded = seeded

	// Counts are copied to the report only once the transaction commits.
	var counts Report
	err = p.store.Atomic(ctx, func(tx store.Tx) error {
		scan, err := NewScanner(p.source, p.opts.PageDelay).Scan(ctx, tx)
		if err != nil {
			return err
		}
		counts.Pages = scan.Pages
		slog.Info("petition listing scanned",
			"pages", scan.Pages,
			"to_import", len(scan.ToImport),
			"to_update", len(scan.ToUpdate),
			"unchanged", len(scan.Unchanged),
		)

		importer := NewDetailImporter(p.source, p.opts.Now)
		work := scan.Worklist()
		var imported, updated int
		for i, id := range work {
			res, err := importer.Import(ctx, tx, id)
			if err != nil {
				return err
			}
			if res.Created {
				imported++
			} else {
				updated++
			}
			slog.Info("petition imported",
				"id", id,
				"signatures", res.Signatures,
				"created", res.Created,
				"progress", i+1,
				"total", len(work),
			)
		}

		counts.Imported = imported
		counts.Updated = updated
		counts.Unchanged = len(scan.Unchanged)
		return nil
	})
	if err != nil {
		return err
	}

	report.Pages = counts.Pages
	report.Imported = counts.Imported
	report.Updated = counts.Updated
	report.Unchanged = counts.Unchanged
	return nil
}

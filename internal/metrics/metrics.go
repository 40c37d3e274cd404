package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ListingPagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petitionwatch_listing_pages_fetched_total",
			Help: "Total number of petition listing pages fetched",
		},
	)

	PetitionsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petitionwatch_petitions_classified_total",
			Help: "Total number of listed petitions by scan classification",
		},
		[]string{"class"}, // "import", "update", "unchanged"
	)

	PetitionsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petitionwatch_petitions_imported_total",
			Help: "Total number of petition detail imports",
		},
		[]string{"kind"}, // "created", "updated"
	)

	SnapshotRowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petitionwatch_snapshot_rows_written_total",
			Help: "Total number of snapshot rows written by dimension",
		},
		[]string{"dimension"}, // "overall", "country", "region", "constituency", "party"
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "petitionwatch_cycle_duration_seconds",
			Help:    "Duration of full scan and import cycles",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	CycleFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petitionwatch_cycle_failures_total",
			Help: "Total number of cycles that failed and were rolled back",
		},
	)

	LastCycleSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petitionwatch_last_cycle_success_timestamp_seconds",
			Help: "Unix time of the last successful cycle",
		},
	)
)

const (
	ClassImport    = "import"
	ClassUpdate    = "update"
	ClassUnchanged = "unchanged"

	KindCreated = "created"
	KindUpdated = "updated"

	DimensionOverall      = "overall"
	DimensionCountry      = "country"
	DimensionRegion       = "region"
	DimensionConstituency = "constituency"
	DimensionParty        = "party"
)

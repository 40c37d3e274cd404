package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/backyonatan-alt/petitionwatch/internal/cache"
	"github.com/backyonatan-alt/petitionwatch/internal/metrics"
	"github.com/backyonatan-alt/petitionwatch/internal/model"
	"github.com/backyonatan-alt/petitionwatch/internal/store"
)

// ErrUnknownConstituency is returned when a petition breakdown names a
// constituency missing from the seeded reference data.
var ErrUnknownConstituency = errors.New("unknown constituency")

// ImportResult describes one committed petition import.
type ImportResult struct {
	PetitionID int64
	Created    bool
	model.Observation
}

// DetailImporter fetches petition detail and writes the petition row and
// its five snapshot sets. An importer memoizes dimension rows and is bound to
// the transaction of a single cycle.
type DetailImporter struct {
	source Source
	now    func() time.Time

	countries      *cache.Lookup[model.Country]
	regions        *cache.Lookup[model.Region]
	constituencies *cache.Lookup[model.Constituency]
}

func NewDetailImporter(source Source, now func() time.Time) *DetailImporter {
	if now == nil {
		now = time.Now
	}
	return &DetailImporter{
		source:         source,
		now:            now,
		countries:      cache.NewLookup[model.Country](),
		regions:        cache.NewLookup[model.Region](),
		constituencies: cache.NewLookup[model.Constituency](),
	}
}

// Import fetches petition id and records one observation of it. All rows
// written share one timestamp, and either all of them are written or none.
func (d *DetailImporter) Import(ctx context.Context, tx store.Tx, id int64) (ImportResult, error) {
	detail, err := d.source.Petition(ctx, id)
	if err != nil {
		return ImportResult{}, err
	}

	// Postgres keeps microseconds; truncating makes the value round-trip.
	obs := model.Observation{
		At:         d.now().UTC().Truncate(time.Microsecond),
		Signatures: detail.Signatures,
	}
	res := ImportResult{PetitionID: id, Observation: obs}
	countries := mergeCounts(detail.Countries)
	regions := mergeCounts(detail.Regions)
	constituencies := mergeCounts(detail.Constituencies)
	partyRows := 0

	err = tx.Atomic(ctx, func(tx store.Tx) error {
		created, err := upsertPetition(ctx, tx, id, detail.Name, obs)
		if err != nil {
			return err
		}
		res.Created = created

		snap := model.Snapshot{PetitionID: id, Observation: obs}
		if err := tx.InsertSnapshot(ctx, snap); err != nil {
			return err
		}
		if err := d.writeCountries(ctx, tx, snap, countries); err != nil {
			return err
		}
		if err := d.writeRegions(ctx, tx, snap, regions); err != nil {
			return err
		}
		partyRows, err = d.writeConstituencies(ctx, tx, snap, constituencies)
		return err
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("import petition %d: %w", id, err)
	}

	if res.Created {
		metrics.PetitionsImported.WithLabelValues(metrics.KindCreated).Inc()
	} else {
		metrics.PetitionsImported.WithLabelValues(metrics.KindUpdated).Inc()
	}
	metrics.SnapshotRowsWritten.WithLabelValues(metrics.DimensionOverall).Inc()
	metrics.SnapshotRowsWritten.WithLabelValues(metrics.DimensionCountry).Add(float64(len(countries)))
	metrics.SnapshotRowsWritten.WithLabelValues(metrics.DimensionRegion).Add(float64(len(regions)))
	metrics.SnapshotRowsWritten.WithLabelValues(metrics.DimensionConstituency).Add(float64(len(constituencies)))
	metrics.SnapshotRowsWritten.WithLabelValues(metrics.DimensionParty).Add(float64(partyRows))
	return res, nil
}

// upsertPetition creates the petition or overwrites its observation. The name
// is kept as first seen.
func upsertPetition(ctx context.Context, tx store.Tx, id int64, name string, obs model.Observation) (bool, error) {
	_, err := tx.Petition(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return true, tx.CreatePetition(ctx, model.Petition{ID: id, Name: name, Observation: obs})
	case err != nil:
		return false, err
	}
	return false, tx.UpdatePetition(ctx, id, obs)
}

func (d *DetailImporter) writeCountries(ctx context.Context, tx store.Tx, snap model.Snapshot, counts []model.Count) error {
	rows := make([]model.CountrySnapshot, 0, len(counts))
	for _, c := range counts {
		country, err := d.countries.Resolve(c.Name, func(name string) (model.Country, error) {
			return tx.GetOrCreateCountry(ctx, name)
		})
		if err != nil {
			return err
		}
		rows = append(rows, model.CountrySnapshot{Snapshot: withCount(snap, c), CountryID: country.ID})
	}
	return tx.InsertCountrySnapshots(ctx, rows)
}

func (d *DetailImporter) writeRegions(ctx context.Context, tx store.Tx, snap model.Snapshot, counts []model.Count) error {
	rows := make([]model.RegionSnapshot, 0, len(counts))
	for _, c := range counts {
		region, err := d.regions.Resolve(c.Name, func(name string) (model.Region, error) {
			return tx.GetOrCreateRegion(ctx, name)
		})
		if err != nil {
			return err
		}
		rows = append(rows, model.RegionSnapshot{Snapshot: withCount(snap, c), RegionID: region.ID})
	}
	return tx.InsertRegionSnapshots(ctx, rows)
}

// writeConstituencies records the constituency breakdown and the per-party
// totals derived from it.
func (d *DetailImporter) writeConstituencies(ctx context.Context, tx store.Tx, snap model.Snapshot, counts []model.Count) (int, error) {
	if err := d.loadConstituencies(ctx, tx); err != nil {
		return 0, err
	}

	rows := make([]model.ConstituencySnapshot, 0, len(counts))
	totals := make(map[int64]int64)
	for _, c := range counts {
		constituency, err := d.constituencies.Resolve(c.Name, func(name string) (model.Constituency, error) {
			return tx.Constituency(ctx, name)
		})
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("%w %q: reference data is stale or incomplete", ErrUnknownConstituency, c.Name)
		}
		if err != nil {
			return 0, err
		}
		rows = append(rows, model.ConstituencySnapshot{Snapshot: withCount(snap, c), ConstituencyID: constituency.ID})
		totals[constituency.PartyID] += c.Signatures
	}

	parties := make([]model.PartySnapshot, 0, len(totals))
	for partyID, n := range totals {
		s := snap
		s.Signatures = n
		parties = append(parties, model.PartySnapshot{Snapshot: s, PartyID: partyID})
	}
	sort.Slice(parties, func(i, j int) bool { return parties[i].PartyID < parties[j].PartyID })

	if err := tx.InsertConstituencySnapshots(ctx, rows); err != nil {
		return 0, err
	}
	if err := tx.InsertPartySnapshots(ctx, parties); err != nil {
		return 0, err
	}
	return len(parties), nil
}

// loadConstituencies fills the constituency lookup with all seeded rows on
// first use, so a cycle reads reference data once.
func (d *DetailImporter) loadConstituencies(ctx context.Context, tx store.Tx) error {
	if d.constituencies.Len() > 0 {
		return nil
	}
	all, err := tx.Constituencies(ctx)
	if err != nil {
		return err
	}
	for _, c := range all {
		d.constituencies.Set(c.Name, c)
	}
	return nil
}

// mergeCounts sums entries that repeat a name, keeping first-seen order. Each
// dimension gets at most one row per import.
func mergeCounts(counts []model.Count) []model.Count {
	index := make(map[string]int, len(counts))
	out := make([]model.Count, 0, len(counts))
	for _, c := range counts {
		if i, ok := index[c.Name]; ok {
			out[i].Signatures += c.Signatures
			continue
		}
		index[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

func withCount(snap model.Snapshot, c model.Count) model.Snapshot {
	snap.Signatures = c.Signatures
	return snap
}

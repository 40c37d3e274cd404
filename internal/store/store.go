package store

import (
	"context"
	"errors"

	"github.com/backyonatan-alt/petitionwatch/internal/model"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Store is the repository interface for petition persistence.
type Store interface {
	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error
	// Atomic runs fn in a transaction, committing only if fn returns nil.
	Atomic(ctx context.Context, fn func(Tx) error) error
	// Petition returns the stored petition or ErrNotFound.
	Petition(ctx context.Context, id int64) (model.Petition, error)
	// Snapshots returns up to limit of the most recent overall snapshots of
	// a petition, oldest first.
	Snapshots(ctx context.Context, petitionID int64, limit int) ([]model.Snapshot, error)
	// LatestPartyTotals returns the per-party breakdown of the most recent
	// import of a petition, largest first.
	LatestPartyTotals(ctx context.Context, petitionID int64) ([]model.PartyTotal, error)
	Close() error
}

// Tx is the set of operations available inside an atomic scope.
type Tx interface {
	// Atomic runs fn in a nested scope that is rolled back on its own if fn
	// fails. The error is still returned to the caller.
	Atomic(ctx context.Context, fn func(Tx) error) error

	// HasReferenceData reports whether any party or constituency exists.
	HasReferenceData(ctx context.Context) (bool, error)
	GetOrCreateParty(ctx context.Context, name string) (model.Party, error)
	CreateConstituency(ctx context.Context, name string, partyID int64) (model.Constituency, error)
	// Constituency looks a constituency up by name, or returns ErrNotFound.
	Constituency(ctx context.Context, name string) (model.Constituency, error)
	Constituencies(ctx context.Context) ([]model.Constituency, error)

	GetOrCreateCountry(ctx context.Context, name string) (model.Country, error)
	GetOrCreateRegion(ctx context.Context, name string) (model.Region, error)

	// Petition returns the stored petition or ErrNotFound.
	Petition(ctx context.Context, id int64) (model.Petition, error)
	CreatePetition(ctx context.Context, p model.Petition) error
	// UpdatePetition overwrites the signature count and observation time.
	UpdatePetition(ctx context.Context, id int64, obs model.Observation) error

	InsertSnapshot(ctx context.Context, s model.Snapshot) error
	InsertCountrySnapshots(ctx context.Context, rows []model.CountrySnapshot) error
	InsertRegionSnapshots(ctx context.Context, rows []model.RegionSnapshot) error
	InsertConstituencySnapshots(ctx context.Context, rows []model.ConstituencySnapshot) error
	InsertPartySnapshots(ctx context.Context, rows []model.PartySnapshot) error
}

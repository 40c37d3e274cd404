package model

import "time"

// Observation is a signature count as of a point in time. It is embedded in
// every entity that records signatures.
type Observation struct {
	At         time.Time `json:"at"`
	Signatures int64     `json:"signatures"`
}

type Country struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Region struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Party struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Constituency belongs to exactly one party, fixed when reference data is seeded.
type Constituency struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	PartyID int64  `json:"party_id"`
}

// Petition is the stored state of one remote petition. ID is assigned by the
// remote source.
type Petition struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Observation
}

// Snapshot is the overall signature count of a petition at one import.
type Snapshot struct {
	PetitionID int64 `json:"petition_id"`
	Observation
}

type CountrySnapshot struct {
	Snapshot
	CountryID int64 `json:"country_id"`
}

type RegionSnapshot struct {
	Snapshot
	RegionID int64 `json:"region_id"`
}

type ConstituencySnapshot struct {
	Snapshot
	ConstituencyID int64 `json:"constituency_id"`
}

// PartySnapshot is derived: the sum of the constituency snapshots of the
// party's constituencies at the same timestamp.
type PartySnapshot struct {
	Snapshot
	PartyID int64 `json:"party_id"`
}

// PartyTotal is a read-side view of a PartySnapshot joined with its party name.
type PartyTotal struct {
	Party      string    `json:"party"`
	Signatures int64     `json:"signatures"`
	At         time.Time `json:"at"`
}

package model

import (
	"errors"
	"fmt"
)

// ErrInvalidCount is returned when a remote payload carries a missing or
// negative signature count.
var ErrInvalidCount = errors.New("invalid signature count")

// ListingPage is one page of the open-petitions listing.
type ListingPage struct {
	Items []ListedPetition
	// Next is the absolute URL of the following page, empty on the last page.
	Next string
	// PageCount is the number of pages the listing reported, 0 if unknown.
	PageCount int
}

type ListedPetition struct {
	ID         int64
	Signatures int64
}

// Count is one entry of a petition's breakdown by dimension.
type Count struct {
	Name       string
	Signatures int64
}

// PetitionDetail is the full remote record for one petition.
type PetitionDetail struct {
	ID             int64
	Name           string
	Signatures     int64
	Countries      []Count
	Regions        []Count
	Constituencies []Count
}

// Member is one entry of the members listing used to seed reference data.
type Member struct {
	Name         string
	Party        string
	Constituency string
}

// CheckCount validates a decoded signature count. field names the payload
// field for the error message.
func CheckCount(field string, v *int64) (int64, error) {
	if v == nil {
		return 0, fmt.Errorf("%s: missing: %w", field, ErrInvalidCount)
	}
	if *v < 0 {
		return 0, fmt.Errorf("%s: %d: %w", field, *v, ErrInvalidCount)
	}
	return *v, nil
}

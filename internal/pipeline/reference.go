package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/backyonatan-alt/petitionwatch/internal/store"
)

// ErrInvalidMember is returned when a member record lacks a party or a
// constituency.
var ErrInvalidMember = errors.New("invalid member record")

// ReferenceImporter seeds parties and constituencies from the members
// listing. Existing reference data is never refreshed.
type ReferenceImporter struct {
	source Source
}

func NewReferenceImporter(source Source) *ReferenceImporter {
	return &ReferenceImporter{source: source}
}

// Seed imports reference data if none exists and reports whether it did.
func (r *ReferenceImporter) Seed(ctx context.Context, tx store.Tx) (bool, error) {
	has, err := tx.HasReferenceData(ctx)
	if err != nil {
		return false, err
	}
	if has {
		slog.Debug("reference data present, skipping seed")
		return false, nil
	}

	members, err := r.source.Members(ctx)
	if err != nil {
		return false, fmt.Errorf("seed reference data: %w", err)
	}

	seen := make(map[string]bool, len(members))
	parties := make(map[string]bool)
	for _, m := range members {
		if m.Party == "" || m.Constituency == "" {
			return false, fmt.Errorf("member %q: %w", m.Name, ErrInvalidMember)
		}
		if seen[m.Constituency] {
			slog.Warn("duplicate constituency in members listing", "constituency", m.Constituency, "member", m.Name)
			continue
		}
		seen[m.Constituency] = true

		party, err := tx.GetOrCreateParty(ctx, m.Party)
		if err != nil {
			return false, err
		}
		parties[party.Name] = true
		if _, err := tx.CreateConstituency(ctx, m.Constituency, party.ID); err != nil {
			return false, err
		}
	}

	slog.Info("reference data seeded", "parties", len(parties), "constituencies", len(seen))
	return true, nil
}

package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/backyonatan-alt/petitionwatch/internal/model"
)

var errDiscard = errors.New("discard test transaction")

// newPostgresStore connects to DATABASE_URL. Tests write inside a transaction
// they roll back, so the database is left as found.
func newPostgresStore(t *testing.T) *SQL {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if !strings.HasPrefix(dsn, "postgres") {
		t.Skip("DATABASE_URL does not name a Postgres database")
	}
	ctx := context.Background()
	s, err := Open(ctx, "postgres", dsn, 2)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestPostgresCopyInSnapshots(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC)
	const petitionID = 9_000_000_001

	err := s.Atomic(ctx, func(ptx Tx) error {
		require.NoError(t, ptx.CreatePetition(ctx, model.Petition{
			ID: petitionID, Name: "copy test",
			Observation: model.Observation{At: at, Signatures: 30},
		}))
		uk, err := ptx.GetOrCreateCountry(ctx, "copy test United Kingdom")
		require.NoError(t, err)
		fr, err := ptx.GetOrCreateCountry(ctx, "copy test France")
		require.NoError(t, err)

		snap := model.Snapshot{PetitionID: petitionID, Observation: model.Observation{At: at}}
		uks, frs := snap, snap
		uks.Signatures, frs.Signatures = 28, 2
		require.NoError(t, ptx.InsertCountrySnapshots(ctx, []model.CountrySnapshot{
			{Snapshot: uks, CountryID: uk.ID},
			{Snapshot: frs, CountryID: fr.ID},
		}))

		rows, err := ptx.(*tx).tx.QueryContext(ctx,
			"SELECT country_id, signatures, taken_at FROM country_snapshots WHERE petition_id = $1 ORDER BY signatures DESC",
			petitionID,
		)
		require.NoError(t, err)
		defer rows.Close()

		var got []model.CountrySnapshot
		for rows.Next() {
			r := model.CountrySnapshot{Snapshot: model.Snapshot{PetitionID: petitionID}}
			require.NoError(t, rows.Scan(&r.CountryID, &r.Signatures, &r.At))
			got = append(got, r)
		}
		require.NoError(t, rows.Err())
		require.Len(t, got, 2)
		require.Equal(t, uk.ID, got[0].CountryID)
		require.Equal(t, int64(28), got[0].Signatures)
		require.Equal(t, fr.ID, got[1].CountryID)
		for _, r := range got {
			require.True(t, r.At.Equal(at), "taken_at %s != %s", r.At, at)
		}

		p, err := ptx.Petition(ctx, petitionID)
		require.NoError(t, err)
		require.True(t, p.At.Equal(at), "observed_at %s != %s", p.At, at)
		return errDiscard
	})
	require.ErrorIs(t, err, errDiscard)

	_, err = s.Petition(ctx, petitionID)
	require.ErrorIs(t, err, ErrNotFound)
}

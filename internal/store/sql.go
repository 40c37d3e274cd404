package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/backyonatan-alt/petitionwatch/internal/model"
)

// dialect carries what differs between the supported databases.
type dialect struct {
	name   string
	schema string
	// insertMany writes rows into table inside tx.
	insertMany func(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error
}

// SQL implements Store on top of database/sql. Queries use $n placeholders,
// which both Postgres and SQLite accept. Reads outside a transaction go to
// read, which is db itself unless the dialect needs a separate pool.
type SQL struct {
	db      *sql.DB
	read    *sql.DB
	dialect dialect
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQL) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("migrate %s: %w", s.dialect.name, err)
	}
	return nil
}

func (s *SQL) Close() error {
	var readErr error
	if s.read != s.db {
		readErr = s.read.Close()
	}
	return errors.Join(s.db.Close(), readErr)
}

func (s *SQL) Atomic(ctx context.Context, fn func(Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&tx{tx: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQL) Petition(ctx context.Context, id int64) (model.Petition, error) {
	return petition(ctx, s.read, id)
}

func (s *SQL) Snapshots(ctx context.Context, petitionID int64, limit int) ([]model.Snapshot, error) {
	rows, err := s.read.QueryContext(ctx, `
		SELECT petition_id, signatures, taken_at
		FROM snapshots
		WHERE petition_id = $1
		ORDER BY taken_at DESC, id DESC
		LIMIT $2`,
		petitionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		var s model.Snapshot
		if err := rows.Scan(&s.PetitionID, &s.Signatures, &s.At); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (s *SQL) LatestPartyTotals(ctx context.Context, petitionID int64) ([]model.PartyTotal, error) {
	rows, err := s.read.QueryContext(ctx, `
		SELECT p.name, s.signatures, s.taken_at
		FROM party_snapshots s
		JOIN parties p ON p.id = s.party_id
		WHERE s.petition_id = $1
		  AND s.taken_at = (SELECT MAX(taken_at) FROM party_snapshots WHERE petition_id = $1)
		ORDER BY s.signatures DESC, p.name`,
		petitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query party totals: %w", err)
	}
	defer rows.Close()

	var out []model.PartyTotal
	for rows.Next() {
		var t model.PartyTotal
		if err := rows.Scan(&t.Party, &t.Signatures, &t.At); err != nil {
			return nil, fmt.Errorf("scan party total: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func petition(ctx context.Context, q querier, id int64) (model.Petition, error) {
	var p model.Petition
	err := q.QueryRowContext(ctx,
		"SELECT id, name, signatures, observed_at FROM petitions WHERE id = $1",
		id,
	).Scan(&p.ID, &p.Name, &p.Signatures, &p.At)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Petition{}, fmt.Errorf("petition %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Petition{}, fmt.Errorf("query petition %d: %w", id, err)
	}
	return p, nil
}

type tx struct {
	tx      *sql.Tx
	dialect dialect
	depth   int
}

func (t *tx) Atomic(ctx context.Context, fn func(Tx) error) error {
	name := fmt.Sprintf("sp_%d", t.depth+1)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}

	if err := fn(&tx{tx: t.tx, dialect: t.dialect, depth: t.depth + 1}); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		return err
	}

	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *tx) HasReferenceData(ctx context.Context) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM (SELECT 1 FROM parties LIMIT 1) p)
		     + (SELECT COUNT(*) FROM (SELECT 1 FROM constituencies LIMIT 1) c)`,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check reference data: %w", err)
	}
	return n > 0, nil
}

// getOrCreate returns the id of the row of a name-keyed lookup table,
// inserting it first if needed. table is never user input.
func (t *tx) getOrCreate(ctx context.Context, table, name string) (int64, error) {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO "+table+" (name) VALUES ($1) ON CONFLICT (name) DO NOTHING",
		name,
	)
	if err != nil {
		return 0, fmt.Errorf("insert %s %q: %w", table, name, err)
	}

	var id int64
	if err := t.tx.QueryRowContext(ctx, "SELECT id FROM "+table+" WHERE name = $1", name).Scan(&id); err != nil {
		return 0, fmt.Errorf("select %s %q: %w", table, name, err)
	}
	return id, nil
}

func (t *tx) GetOrCreateParty(ctx context.Context, name string) (model.Party, error) {
	id, err := t.getOrCreate(ctx, "parties", name)
	return model.Party{ID: id, Name: name}, err
}

func (t *tx) GetOrCreateCountry(ctx context.Context, name string) (model.Country, error) {
	id, err := t.getOrCreate(ctx, "countries", name)
	return model.Country{ID: id, Name: name}, err
}

func (t *tx) GetOrCreateRegion(ctx context.Context, name string) (model.Region, error) {
	id, err := t.getOrCreate(ctx, "regions", name)
	return model.Region{ID: id, Name: name}, err
}

func (t *tx) CreateConstituency(ctx context.Context, name string, partyID int64) (model.Constituency, error) {
	c := model.Constituency{Name: name, PartyID: partyID}
	err := t.tx.QueryRowContext(ctx,
		"INSERT INTO constituencies (name, party_id) VALUES ($1, $2) RETURNING id",
		name, partyID,
	).Scan(&c.ID)
	if err != nil {
		return model.Constituency{}, fmt.Errorf("insert constituency %q: %w", name, err)
	}
	return c, nil
}

func (t *tx) Constituency(ctx context.Context, name string) (model.Constituency, error) {
	c := model.Constituency{Name: name}
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, party_id FROM constituencies WHERE name = $1",
		name,
	).Scan(&c.ID, &c.PartyID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Constituency{}, fmt.Errorf("constituency %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return model.Constituency{}, fmt.Errorf("query constituency %q: %w", name, err)
	}
	return c, nil
}

func (t *tx) Constituencies(ctx context.Context) ([]model.Constituency, error) {
	rows, err := t.tx.QueryContext(ctx, "SELECT id, name, party_id FROM constituencies ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query constituencies: %w", err)
	}
	defer rows.Close()

	var out []model.Constituency
	for rows.Next() {
		var c model.Constituency
		if err := rows.Scan(&c.ID, &c.Name, &c.PartyID); err != nil {
			return nil, fmt.Errorf("scan constituency: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *tx) Petition(ctx context.Context, id int64) (model.Petition, error) {
	return petition(ctx, t.tx, id)
}

func (t *tx) CreatePetition(ctx context.Context, p model.Petition) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO petitions (id, name, signatures, observed_at) VALUES ($1, $2, $3, $4)",
		p.ID, p.Name, p.Signatures, p.At,
	)
	if err != nil {
		return fmt.Errorf("insert petition %d: %w", p.ID, err)
	}
	return nil
}

func (t *tx) UpdatePetition(ctx context.Context, id int64, obs model.Observation) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE petitions SET signatures = $1, observed_at = $2 WHERE id = $3",
		obs.Signatures, obs.At, id,
	)
	if err != nil {
		return fmt.Errorf("update petition %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update petition %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update petition %d: %w", id, ErrNotFound)
	}
	return nil
}

func (t *tx) InsertSnapshot(ctx context.Context, s model.Snapshot) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO snapshots (petition_id, signatures, taken_at) VALUES ($1, $2, $3)",
		s.PetitionID, s.Signatures, s.At,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot for petition %d: %w", s.PetitionID, err)
	}
	return nil
}

var snapshotColumns = []string{"petition_id", "signatures", "taken_at"}

// insertBreakdown writes one snapshot row per entry into a dimension table.
func insertBreakdown[T any](ctx context.Context, t *tx, table, dimColumn string, rows []T, values func(T) (model.Snapshot, int64)) error {
	if len(rows) == 0 {
		return nil
	}
	columns := append(append([]string{}, snapshotColumns...), dimColumn)
	args := make([][]any, 0, len(rows))
	for _, r := range rows {
		s, dimID := values(r)
		args = append(args, []any{s.PetitionID, s.Signatures, s.At, dimID})
	}
	if err := t.dialect.insertMany(ctx, t.tx, table, columns, args); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (t *tx) InsertCountrySnapshots(ctx context.Context, rows []model.CountrySnapshot) error {
	return insertBreakdown(ctx, t, "country_snapshots", "country_id", rows,
		func(r model.CountrySnapshot) (model.Snapshot, int64) { return r.Snapshot, r.CountryID })
}

func (t *tx) InsertRegionSnapshots(ctx context.Context, rows []model.RegionSnapshot) error {
	return insertBreakdown(ctx, t, "region_snapshots", "region_id", rows,
		func(r model.RegionSnapshot) (model.Snapshot, int64) { return r.Snapshot, r.RegionID })
}

func (t *tx) InsertConstituencySnapshots(ctx context.Context, rows []model.ConstituencySnapshot) error {
	return insertBreakdown(ctx, t, "constituency_snapshots", "constituency_id", rows,
		func(r model.ConstituencySnapshot) (model.Snapshot, int64) { return r.Snapshot, r.ConstituencyID })
}

func (t *tx) InsertPartySnapshots(ctx context.Context, rows []model.PartySnapshot) error {
	return insertBreakdown(ctx, t, "party_snapshots", "party_id", rows,
		func(r model.PartySnapshot) (model.Snapshot, int64) { return r.Snapshot, r.PartyID })
}

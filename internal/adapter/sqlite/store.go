// Package sqlite persists neighborhoods and outage windows behind the storage
// interfaces consumed by the scheduling service. It uses the pure-Go
// modernc.org/sqlite driver through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/mirado-dev/delestage/internal/domain"
)

// ErrNotFound aliases the domain sentinel; every lookup, update, or delete
// that targets a missing id returns it.
var ErrNotFound = domain.ErrNotFound

// Store wraps SQLite access for neighborhoods and outages.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS neighborhoods (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			district TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS outages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			neighborhood_id INTEGER NOT NULL REFERENCES neighborhoods(id),
			date TEXT NOT NULL,
			start_hour REAL NOT NULL,
			end_hour REAL NOT NULL,
			reason TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS outages_date_idx ON outages(date);`,
		`CREATE INDEX IF NOT EXISTS outages_neighborhood_idx ON outages(neighborhood_id);`,
		`CREATE INDEX IF NOT EXISTS outages_date_neighborhood_idx ON outages(date, neighborhood_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Health returns an error if the database is not reachable.
func (s *Store) Health(ctx context.Context) error {
	var v int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}

// ── Neighborhoods ──

// ListNeighborhoods returns all neighborhood rows ordered by name.
func (s *Store) ListNeighborhoods(ctx context.Context) ([]domain.Neighborhood, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, district FROM neighborhoods ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list neighborhoods: %w", err)
	}
	defer rows.Close()

	var list []domain.Neighborhood
	for rows.Next() {
		var n domain.Neighborhood
		if err := rows.Scan(&n.ID, &n.Name, &n.District); err != nil {
			return nil, fmt.Errorf("scan neighborhood: %w", err)
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (s *Store) GetNeighborhood(ctx context.Context, id int64) (domain.Neighborhood, error) {
	var n domain.Neighborhood
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, district FROM neighborhoods WHERE id = ?`, id).
		Scan(&n.ID, &n.Name, &n.District)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Neighborhood{}, ErrNotFound
	case err != nil:
		return domain.Neighborhood{}, fmt.Errorf("get neighborhood %d: %w", id, err)
	}
	return n, nil
}

func (s *Store) CreateNeighborhood(ctx context.Context, n domain.Neighborhood) (domain.Neighborhood, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO neighborhoods(name, district) VALUES(?, ?)`, n.Name, n.District)
	if err != nil {
		return domain.Neighborhood{}, fmt.Errorf("insert neighborhood: %w", err)
	}
	n.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Neighborhood{}, fmt.Errorf("insert neighborhood id: %w", err)
	}
	return n, nil
}

func (s *Store) UpdateNeighborhood(ctx context.Context, n domain.Neighborhood) (domain.Neighborhood, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE neighborhoods SET name = ?, district = ? WHERE id = ?`, n.Name, n.District, n.ID)
	if err != nil {
		return domain.Neighborhood{}, fmt.Errorf("update neighborhood %d: %w", n.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Neighborhood{}, err
	}
	if affected == 0 {
		return domain.Neighborhood{}, ErrNotFound
	}
	return n, nil
}

// DeleteNeighborhood removes a neighborhood and all of its outages in one
// transaction.
func (s *Store) DeleteNeighborhood(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete neighborhood: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM outages WHERE neighborhood_id = ?`, id); err != nil {
		return fmt.Errorf("delete outages of neighborhood %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM neighborhoods WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete neighborhood %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// CountNeighborhoods reports how many neighborhood rows exist; the seeder
// uses this to stay idempotent.
func (s *Store) CountNeighborhoods(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM neighborhoods`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count neighborhoods: %w", err)
	}
	return n, nil
}

// ── Outages ──

const outageCols = `id, neighborhood_id, date, start_hour, end_hour, reason`

func scanOutage(scan func(...any) error) (domain.Outage, error) {
	var o domain.Outage
	var reason sql.NullString
	if err := scan(&o.ID, &o.NeighborhoodID, &o.Date, &o.StartHour, &o.EndHour, &reason); err != nil {
		return domain.Outage{}, err
	}
	o.Reason = reason.String
	return o, nil
}

func (s *Store) queryOutages(ctx context.Context, query string, args ...any) ([]domain.Outage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outages: %w", err)
	}
	defer rows.Close()

	var list []domain.Outage
	for rows.Next() {
		o, err := scanOutage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan outage: %w", err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// ListOutages returns outages for one date, or every outage when date is empty.
func (s *Store) ListOutages(ctx context.Context, date string) ([]domain.Outage, error) {
	if date == "" {
		return s.queryOutages(ctx, `SELECT `+outageCols+` FROM outages ORDER BY date, start_hour, id`)
	}
	return s.queryOutages(ctx,
		`SELECT `+outageCols+` FROM outages WHERE date = ? ORDER BY start_hour, id`, date)
}

// ListOutagesByNeighborhood returns a neighborhood's outages, optionally
// restricted to one date.
func (s *Store) ListOutagesByNeighborhood(ctx context.Context, neighborhoodID int64, date string) ([]domain.Outage, error) {
	if date == "" {
		return s.queryOutages(ctx,
			`SELECT `+outageCols+` FROM outages WHERE neighborhood_id = ? ORDER BY date, start_hour, id`,
			neighborhoodID)
	}
	return s.queryOutages(ctx,
		`SELECT `+outageCols+` FROM outages WHERE neighborhood_id = ? AND date = ? ORDER BY start_hour, id`,
		neighborhoodID, date)
}

// ListOutagesBetween returns outages with startDate <= date <= endDate.
// Empty bounds are unbounded; ISO date strings compare lexicographically.
func (s *Store) ListOutagesBetween(ctx context.Context, startDate, endDate string) ([]domain.Outage, error) {
	switch {
	case startDate == "" && endDate == "":
		return s.ListOutages(ctx, "")
	case endDate == "":
		return s.queryOutages(ctx,
			`SELECT `+outageCols+` FROM outages WHERE date >= ? ORDER BY date, start_hour, id`, startDate)
	case startDate == "":
		return s.queryOutages(ctx,
			`SELECT `+outageCols+` FROM outages WHERE date <= ? ORDER BY date, start_hour, id`, endDate)
	default:
		return s.queryOutages(ctx,
			`SELECT `+outageCols+` FROM outages WHERE date BETWEEN ? AND ? ORDER BY date, start_hour, id`,
			startDate, endDate)
	}
}

// ListDates returns the distinct dates that have at least one outage, ascending.
func (s *Store) ListDates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT date FROM outages ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (s *Store) GetOutage(ctx context.Context, id int64) (domain.Outage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+outageCols+` FROM outages WHERE id = ?`, id)
	o, err := scanOutage(row.Scan)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Outage{}, ErrNotFound
	case err != nil:
		return domain.Outage{}, fmt.Errorf("get outage %d: %w", id, err)
	}
	return o, nil
}

// InsertOutage stores a new outage row and returns it with its assigned id.
func (s *Store) InsertOutage(ctx context.Context, o domain.Outage) (domain.Outage, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO outages(neighborhood_id, date, start_hour, end_hour, reason)
		 VALUES(?, ?, ?, ?, NULLIF(?, ''))`,
		o.NeighborhoodID, o.Date, o.StartHour, o.EndHour, o.Reason)
	if err != nil {
		return domain.Outage{}, fmt.Errorf("insert outage: %w", err)
	}
	o.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Outage{}, fmt.Errorf("insert outage id: %w", err)
	}
	return o, nil
}

// UpdateOutage overwrites the row identified by o.ID with o's fields.
func (s *Store) UpdateOutage(ctx context.Context, o domain.Outage) (domain.Outage, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE outages SET neighborhood_id = ?, date = ?, start_hour = ?, end_hour = ?, reason = NULLIF(?, '')
		 WHERE id = ?`,
		o.NeighborhoodID, o.Date, o.StartHour, o.EndHour, o.Reason, o.ID)
	if err != nil {
		return domain.Outage{}, fmt.Errorf("update outage %d: %w", o.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Outage{}, err
	}
	if affected == 0 {
		return domain.Outage{}, ErrNotFound
	}
	return o, nil
}

func (s *Store) DeleteOutage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete outage %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceOutages deletes the superseded rows and inserts the merged
// replacement in a single transaction, so a failure partway cannot leave the
// scope with both lost and duplicate coverage.
func (s *Store) ReplaceOutages(ctx context.Context, supersededIDs []int64, merged domain.Outage) (domain.Outage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Outage{}, fmt.Errorf("begin replace outages: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, id := range supersededIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM outages WHERE id = ?`, id); err != nil {
			return domain.Outage{}, fmt.Errorf("delete superseded outage %d: %w", id, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO outages(neighborhood_id, date, start_hour, end_hour, reason)
		 VALUES(?, ?, ?, ?, NULLIF(?, ''))`,
		merged.NeighborhoodID, merged.Date, merged.StartHour, merged.EndHour, merged.Reason)
	if err != nil {
		return domain.Outage{}, fmt.Errorf("insert merged outage: %w", err)
	}
	merged.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Outage{}, fmt.Errorf("insert merged outage id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Outage{}, fmt.Errorf("commit replace outages: %w", err)
	}
	return merged, nil
}

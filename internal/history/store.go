// internal/history/store.go
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tamzrod/draughts-telemetry/internal/series"
)

const dayLayout = "2006-01-02"

// Store archives earthwork samples in SQL, one row per sample, tagged with
// the local calendar day for daily rotation.
type Store struct {
	db  *sql.DB
	q   Dialect
	loc *time.Location
}

// Open opens (or creates) the SQLite archive at path.
func Open(path string, loc *time.Location) (*Store, error) {
	db, err := sql.Open(SQLite.Driver, fmt.Sprintf("file:%s?%s", path, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	return initialize(db, SQLite, loc)
}

// OpenPostgres connects to a shared PostgreSQL (or TimescaleDB) archive.
func OpenPostgres(dsn string, loc *time.Location) (*Store, error) {
	db, err := sql.Open(Postgres.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return initialize(db, Postgres, loc)
}

func initialize(db *sql.DB, d Dialect, loc *time.Location) (*Store, error) {
	if _, err := db.Exec(d.initSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return NewWithDialect(db, d, loc), nil
}

// New wraps an already initialized SQLite database.
func New(db *sql.DB, loc *time.Location) *Store {
	return NewWithDialect(db, SQLite, loc)
}

// NewWithDialect wraps an already initialized database of any dialect.
func NewWithDialect(db *sql.DB, d Dialect, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, q: d, loc: loc}
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts samples in one transaction. Timestamps already archived are ignored.
func (s *Store) Save(ctx context.Context, samples []series.Sample) (err error) {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, s.q.insertSample)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, smp := range samples {
		if len(smp.Values) != series.NumChannels {
			return fmt.Errorf("%w: sample at %d has %d values", series.ErrChannelCount, smp.At, len(smp.Values))
		}
		v := smp.Values
		if _, err = stmt.ExecContext(ctx, smp.At, s.day(smp.At),
			v[series.HopperHeight], v[series.Displacement], v[series.Payload],
			v[series.EarthWork], v[series.Capacity]); err != nil {
			return fmt.Errorf("inserting sample %d: %w", smp.At, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Range returns the archived samples in [from, to], oldest first.
func (s *Store) Range(ctx context.Context, from, to int64) (out []series.Sample, err error) {
	rows, err := s.db.QueryContext(ctx, s.q.selectRange, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying range: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		v := make([]float64, series.NumChannels)
		var at int64
		if err = rows.Scan(&at,
			&v[series.HopperHeight], &v[series.Displacement], &v[series.Payload],
			&v[series.EarthWork], &v[series.Capacity]); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		out = append(out, series.Sample{At: at, Values: v})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating samples: %w", err)
	}
	return out, nil
}

// Purge deletes the days older than keep days before now and returns the
// number of removed samples. keep <= 0 keeps everything.
func (s *Store) Purge(ctx context.Context, now time.Time, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	t := now.In(s.loc)
	first := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, -(keep - 1))

	res, err := s.db.ExecContext(ctx, s.q.purgeDays, first.Format(dayLayout))
	if err != nil {
		return 0, fmt.Errorf("purging days before %s: %w", first.Format(dayLayout), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged rows: %w", err)
	}
	return n, nil
}

func (s *Store) day(at int64) string {
	return time.UnixMilli(at).In(s.loc).Format(dayLayout)
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if rErr := rb.Rollback(); rErr != nil && !errors.Is(rErr, sql.ErrTxDone) && *err == nil {
		*err = rErr
	}
}

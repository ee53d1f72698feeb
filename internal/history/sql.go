// internal/history/sql.go
package history

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS earthwork (
    at            INTEGER PRIMARY KEY,
    day           TEXT    NOT NULL,
    hopper_height REAL    NOT NULL,
    displacement  REAL    NOT NULL,
    payload       REAL    NOT NULL,
    earthwork     REAL    NOT NULL,
    capacity      REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS earthwork_day ON earthwork (day);`

	insertSampleSQL = `
INSERT OR IGNORE INTO earthwork (
                      at,
                      day,
                      hopper_height,
                      displacement,
                      payload,
                      earthwork,
                      capacity)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectRangeSQL = `
SELECT
    at,
    hopper_height,
    displacement,
    payload,
    earthwork,
    capacity
FROM earthwork
WHERE
    at BETWEEN ? AND ?
ORDER BY at`

	purgeDaysSQL = `
DELETE FROM earthwork
WHERE
    day < ?`
)

const (
	pgInitSchemaSQL = `
CREATE TABLE IF NOT EXISTS earthwork (
    at            BIGINT           PRIMARY KEY,
    day           TEXT             NOT NULL,
    hopper_height DOUBLE PRECISION NOT NULL,
    displacement  DOUBLE PRECISION NOT NULL,
    payload       DOUBLE PRECISION NOT NULL,
    earthwork     DOUBLE PRECISION NOT NULL,
    capacity      DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS earthwork_day ON earthwork (day);`

	pgInsertSampleSQL = `
INSERT INTO earthwork (
                      at,
                      day,
                      hopper_height,
                      displacement,
                      payload,
                      earthwork,
                      capacity)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (at) DO NOTHING`

	pgSelectRangeSQL = `
SELECT
    at,
    hopper_height,
    displacement,
    payload,
    earthwork,
    capacity
FROM earthwork
WHERE
    at BETWEEN $1 AND $2
ORDER BY at`

	pgPurgeDaysSQL = `
DELETE FROM earthwork
WHERE
    day < $1`
)

// Dialect is the statement set of one database driver.
type Dialect struct {
	Driver string

	initSchema   string
	insertSample string
	selectRange  string
	purgeDays    string
}

var (
	SQLite = Dialect{
		Driver:       "sqlite3",
		initSchema:   initSchemaSQL,
		insertSample: insertSampleSQL,
		selectRange:  selectRangeSQL,
		purgeDays:    purgeDaysSQL,
	}
	Postgres = Dialect{
		Driver:       "postgres",
		initSchema:   pgInitSchemaSQL,
		insertSample: pgInsertSampleSQL,
		selectRange:  pgSelectRangeSQL,
		purgeDays:    pgPurgeDaysSQL,
	}
)

// DialectFor returns the dialect registered under a driver name.
func DialectFor(driver string) (Dialect, bool) {
	switch driver {
	case "", SQLite.Driver:
		return SQLite, true
	case Postgres.Driver:
		return Postgres, true
	default:
		return Dialect{}, false
	}
}

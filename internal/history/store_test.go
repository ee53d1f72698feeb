// internal/history/store_test.go
package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/draughts-telemetry/internal/series"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, time.UTC), mock
}

func TestStoreSave(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(insertSampleSQL)
	prep.ExpectExec().
		WithArgs(int64(1000), "1970-01-01", 1.0, 2.0, 3.0, 4.0, 5.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs(int64(86_400_000), "1970-01-02", 6.0, 7.0, 8.0, 9.0, 10.0).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := s.Save(context.Background(), []series.Sample{
		{At: 1000, Values: []float64{1, 2, 3, 4, 5}},
		{At: 86_400_000, Values: []float64{6, 7, 8, 9, 10}},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSave_Empty(t *testing.T) {
	s, mock := newMock(t)
	require.NoError(t, s.Save(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSave_RollsBackOnBadSample(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(insertSampleSQL)
	mock.ExpectRollback()

	err := s.Save(context.Background(), []series.Sample{{At: 1, Values: []float64{1}}})
	assert.ErrorIs(t, err, series.ErrChannelCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSave_RollsBackOnExecError(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(insertSampleSQL).
		ExpectExec().
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Save(context.Background(), []series.Sample{{At: 1, Values: []float64{1, 2, 3, 4, 5}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRange(t *testing.T) {
	s, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"at", "hopper_height", "displacement", "payload", "earthwork", "capacity"}).
		AddRow(int64(1000), 1.0, 2.0, 3.0, 4.0, 5.0).
		AddRow(int64(2000), 1.5, 2.5, 3.5, 4.5, 5.5)
	mock.ExpectQuery(selectRangeSQL).WithArgs(int64(0), int64(3000)).WillReturnRows(rows)

	got, err := s.Range(context.Background(), 0, 3000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2000), got[1].At)
	assert.Equal(t, []float64{1.5, 2.5, 3.5, 4.5, 5.5}, got[1].Values)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRange_QueryError(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(selectRangeSQL).WillReturnError(errors.New("locked"))

	_, err := s.Range(context.Background(), 0, 1)
	assert.Error(t, err)
}

func TestStorePurge(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(purgeDaysSQL).WithArgs("2024-03-08").WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := s.Purge(context.Background(), now, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorePurge_KeepAll(t *testing.T) {
	s, mock := newMock(t)
	n, err := s.Purge(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDay_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	s := &Store{loc: loc}
	// 1970-01-01T20:00Z is already the 2nd in UTC+8
	assert.Equal(t, "1970-01-02", s.day(20*3600*1000))
}

func TestStorePostgres_UsesDialect(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewWithDialect(db, Postgres, time.UTC)

	mock.ExpectBegin()
	mock.ExpectPrepare(pgInsertSampleSQL).
		ExpectExec().
		WithArgs(int64(1000), "1970-01-01", 1.0, 2.0, 3.0, 4.0, 5.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Save(context.Background(), []series.Sample{{At: 1000, Values: []float64{1, 2, 3, 4, 5}}}))

	mock.ExpectQuery(pgSelectRangeSQL).WithArgs(int64(0), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"at", "hopper_height", "displacement", "payload", "earthwork", "capacity"}))
	got, err := s.Range(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectFor(t *testing.T) {
	d, ok := DialectFor("")
	assert.True(t, ok)
	assert.Equal(t, "sqlite3", d.Driver)

	d, ok = DialectFor("postgres")
	assert.True(t, ok)
	assert.Equal(t, Postgres.Driver, d.Driver)

	_, ok = DialectFor("mysql")
	assert.False(t, ok)
}

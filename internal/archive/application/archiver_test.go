package application

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	archive "railwatch/internal/archive/domain"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

type fakeStore struct {
	tx *fakeTx
}

func (s *fakeStore) Begin(ctx context.Context) (archive.Tx, error) {
	return s.tx, nil
}

type fakeTx struct {
	arrivals      []archive.ArrivalFact
	cancellations []archive.CancellationFact

	loadCutoff   time.Time
	deleteCutoff time.Time
	stationRows  []archive.PerformanceRow
	operatorRows []archive.PerformanceRow
	upsertErr    error

	committed  bool
	rolledBack bool
}

func (t *fakeTx) LoadFactsBefore(ctx context.Context, cutoff time.Time) ([]archive.ArrivalFact, []archive.CancellationFact, error) {
	t.loadCutoff = cutoff
	return t.arrivals, t.cancellations, nil
}

func (t *fakeTx) UpsertStationPerformance(ctx context.Context, rows []archive.PerformanceRow) error {
	t.stationRows = rows
	return nil
}

func (t *fakeTx) UpsertOperatorPerformance(ctx context.Context, rows []archive.PerformanceRow) error {
	if t.upsertErr != nil {
		return t.upsertErr
	}
	t.operatorRows = rows
	return nil
}

func (t *fakeTx) DeleteFactsBefore(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	t.deleteCutoff = cutoff
	return int64(len(t.arrivals)), int64(len(t.cancellations)), nil
}

func (t *fakeTx) Commit() error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	t.rolledBack = true
	return nil
}

func newTestArchiver(t *testing.T, tx *fakeTx) *Archiver {
	t.Helper()
	now := time.Date(2024, 4, 30, 15, 30, 0, 0, time.UTC)
	archiver, err := NewArchiver(&fakeStore{tx: tx}, log.New(&bytes.Buffer{}, "", 0), WithClock(fixedClock(now)))
	require.NoError(t, err)
	return archiver
}

func TestArchiverRun(t *testing.T) {
	old := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	tx := &fakeTx{
		arrivals: []archive.ArrivalFact{
			{StationID: 1, OperatorID: 7, Scheduled: old, Actual: old.Add(6 * time.Minute)},
			{StationID: 2, OperatorID: 7, Scheduled: old, Actual: old},
		},
		cancellations: []archive.CancellationFact{
			{StationID: 1, OperatorID: 7, Scheduled: old.Add(time.Hour)},
		},
	}
	archiver := newTestArchiver(t, tx)

	result, err := archiver.Run(context.Background(), 30)
	require.NoError(t, err)

	cutoff := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, cutoff, result.Cutoff)
	assert.Equal(t, cutoff, tx.loadCutoff)
	assert.Equal(t, cutoff, tx.deleteCutoff)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)

	assert.Equal(t, 2, result.StationRows)
	assert.Equal(t, 1, result.OperatorRows)
	assert.Equal(t, int64(2), result.ArrivalsDeleted)
	assert.Equal(t, int64(1), result.CancellationsDeleted)

	require.Len(t, tx.operatorRows, 1)
	assert.Equal(t, 2, tx.operatorRows[0].ArrivalCount)
	assert.Equal(t, 1, tx.operatorRows[0].Delay5mCount)
	assert.Equal(t, 1, tx.operatorRows[0].CancellationCount)
}

func TestArchiverRollsBackOnError(t *testing.T) {
	old := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	tx := &fakeTx{
		arrivals:  []archive.ArrivalFact{{StationID: 1, OperatorID: 7, Scheduled: old, Actual: old}},
		upsertErr: errors.New("boom"),
	}
	archiver := newTestArchiver(t, tx)

	_, err := archiver.Run(context.Background(), 30)
	require.Error(t, err)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
	assert.True(t, tx.deleteCutoff.IsZero(), "facts must not be deleted after a failed upsert")
}

func TestArchiverNothingToDo(t *testing.T) {
	tx := &fakeTx{}
	archiver := newTestArchiver(t, tx)

	result, err := archiver.Run(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 23, 0, 0, 0, 0, time.UTC), result.Cutoff)
	assert.True(t, tx.rolledBack)
	assert.Zero(t, result.StationRows)
}

func TestArchiverRejectsNegativeRetention(t *testing.T) {
	archiver := newTestArchiver(t, &fakeTx{})
	_, err := archiver.Run(context.Background(), -1)
	assert.ErrorIs(t, err, archive.ErrInvalidRetention)
}

package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	performance "railwatch/internal/performance/domain"
	"railwatch/internal/performance/infrastructure/memory"
)

func TestFactWriter(t *testing.T) {
	store := memory.NewStore()
	resolver, err := NewIdentityResolver(store)
	require.NoError(t, err)
	writer, err := NewFactWriter(store)
	require.NoError(t, err)
	ctx := context.Background()

	keys, err := resolver.ResolveServiceKeys(ctx, performance.Station{CRS: "PAD"},
		performance.Service{UID: "C1", Operator: performance.Operator{Code: "GW"}})
	require.NoError(t, err)
	typeID, err := resolver.ResolveCancellationType(ctx, performance.CancellationType{Code: "TG"})
	require.NoError(t, err)

	scheduled := time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)
	written, err := writer.WriteArrival(ctx, keys.StationID, keys.ServiceID, scheduled, scheduled.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, written)

	written, err = writer.WriteArrival(ctx, keys.StationID, keys.ServiceID, scheduled, scheduled.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, written, "same station, service and scheduled time is a duplicate")

	written, err = writer.WriteCancellation(ctx, keys.StationID, keys.ServiceID, typeID, scheduled.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, written)

	counts := store.Counts()
	assert.Equal(t, 1, counts.Arrivals)
	assert.Equal(t, 1, counts.Cancellations)
	assert.Equal(t, scheduled.Add(time.Minute), store.Arrivals()[0].Actual)
}

func TestFactWriterRejectsUnresolvedKeys(t *testing.T) {
	writer, err := NewFactWriter(memory.NewStore())
	require.NoError(t, err)
	now := time.Now()

	_, err = writer.WriteArrival(context.Background(), 0, 1, now, now)
	assert.ErrorIs(t, err, performance.ErrPersistence)

	_, err = writer.WriteCancellation(context.Background(), 1, 1, 0, now)
	assert.ErrorIs(t, err, performance.ErrPersistence)
}

func TestFactWriterUnknownReference(t *testing.T) {
	writer, err := NewFactWriter(memory.NewStore())
	require.NoError(t, err)
	now := time.Now()

	_, err = writer.WriteArrival(context.Background(), 41, 42, now, now)
	assert.ErrorIs(t, err, performance.ErrPersistence)
}

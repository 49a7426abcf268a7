package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:", "boot-1234")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)

	_, err := j.Append(ctx, Event{Kind: EventBoot, At: base})
	require.NoError(t, err)
	_, err = j.Append(ctx, Event{Kind: EventPumpOn, At: base.Add(time.Second), Detail: "below_threshold"})
	require.NoError(t, err)
	id, err := j.Append(ctx, Event{Kind: EventPumpOff, At: base.Add(61 * time.Second), Detail: "max_runtime", Duration: 60 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	events, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, EventPumpOff, events[0].Kind)
	assert.Equal(t, 60*time.Second, events[0].Duration)
	assert.Equal(t, "boot-1234", events[0].BootID)
	assert.True(t, base.Add(61*time.Second).Equal(events[0].At))
	assert.Equal(t, EventPumpOn, events[1].Kind)
}

func TestCountByKindAndPrune(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	old := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, e := range []Event{
		{Kind: EventFault, At: old, Detail: "sensor_fault"},
		{Kind: EventFault, At: recent, Detail: "connectivity_error"},
		{Kind: EventRestart, At: recent, Detail: "watchdog"},
	} {
		_, err := j.Append(ctx, e)
		require.NoError(t, err)
	}

	counts, err := j.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[EventKind]int{EventFault: 2, EventRestart: 1}, counts)

	n, err := j.Prune(ctx, recent.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPruneSubSecondCutoff(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	whole := time.Date(2024, 6, 1, 12, 0, 5, 0, time.UTC)
	half := whole.Add(500 * time.Millisecond)

	_, err := j.Append(ctx, Event{Kind: EventPumpOn, At: whole})
	require.NoError(t, err)
	_, err = j.Append(ctx, Event{Kind: EventPumpOff, At: half})
	require.NoError(t, err)

	n, err := j.Prune(ctx, whole.Add(200*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	events, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventPumpOff, events[0].Kind)
	assert.True(t, half.Equal(events[0].At))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path, "a")
	require.NoError(t, err)
	_, err = j.Append(context.Background(), Event{Kind: EventBoot})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path, "b")
	require.NoError(t, err)
	defer j.Close()

	events, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].BootID)
}

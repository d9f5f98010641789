package webbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPoller(t *testing.T) (*Poller, *TestDeviceClient) {
	t.Helper()
	client, err := CreateTestDeviceClient()
	require.NoError(t, err)
	poller := NewPoller(client, time.Minute, nil)
	require.NoError(t, poller.BuildModel(context.Background()))
	return poller, client
}

func TestPollerBuildModel(t *testing.T) {
	poller, _ := newTestPoller(t)

	require.Len(t, poller.Devices(), 1)
	assert.Equal(t, "INV1", poller.Devices()[0].Key)
	assert.Equal(t, []string{"DC", "AC"}, poller.model.channels["INV1"])
	assert.Equal(t, []string{"DC"}, poller.model.channels["STR1"])
}

func TestPollerPollOncePublishesSnapshot(t *testing.T) {
	poller, _ := newTestPoller(t)
	assert.Nil(t, poller.Snapshot())
	assert.Equal(t, PollerIdle, poller.State())

	snap, err := poller.PollOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Same(t, snap, poller.Snapshot())
	assert.Equal(t, PollerIdle, poller.State())
	assert.NoError(t, poller.LastError())
	assert.Equal(t, snap.TakenAt, poller.LastSuccess())

	power, ok := snap.Get(ReadingKey{Device: "INV1", Channel: "DC", Source: "Power"})
	require.True(t, ok)
	assert.Equal(t, 1234.0, power.Value)

	// overview lands under the synthetic plant device
	grid, ok := snap.Get(ReadingKey{Device: PlantDeviceKey, Channel: OverviewChannelID, Source: "GriPwr"})
	require.True(t, ok)
	assert.Equal(t, 3021.0, grid.Value)

	// the "---" sentinel arrives invalid but keyed
	temp, ok := snap.Get(ReadingKey{Device: "INV1", Channel: "AC", Source: "Temperature"})
	require.True(t, ok)
	assert.False(t, temp.Valid)

	// child device readings are flattened alongside the parent's
	current, ok := snap.Get(ReadingKey{Device: "STR1", Channel: "DC", Source: "Current"})
	require.True(t, ok)
	assert.Equal(t, 3.1, current.Value)
}

func TestPollerRequestsChildDevicesSeparately(t *testing.T) {
	poller, client := newTestPoller(t)

	snap, err := poller.PollOnce(context.Background())
	require.NoError(t, err)

	// the device answers only the requested key, so the string monitor
	// needs its own process data call
	assert.Equal(t, []string{"INV1", "STR1"}, client.ProcessDataKeys)

	current, ok := snap.Get(ReadingKey{Device: "STR1", Channel: "DC", Source: "Current"})
	require.True(t, ok)
	assert.Equal(t, 3.1, current.Value)
}

func TestPollerStableKeysAcrossPolls(t *testing.T) {
	poller, _ := newTestPoller(t)

	first, err := poller.PollOnce(context.Background())
	require.NoError(t, err)
	second, err := poller.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Keys, second.Keys)
	assert.Same(t, second, poller.Snapshot())
}

func TestPollerKeepsStaleSnapshotOnFailure(t *testing.T) {
	poller, client := newTestPoller(t)

	snap, err := poller.PollOnce(context.Background())
	require.NoError(t, err)

	client.FailWith = ErrTimeout
	_, err = poller.PollOnce(context.Background())
	require.True(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, PollerFailed, poller.State())
	assert.Same(t, snap, poller.Snapshot())
	assert.True(t, errors.Is(poller.LastError(), ErrTimeout))

	// a second failed cycle stays Failed and keeps the old snapshot
	_, err = poller.PollOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, PollerFailed, poller.State())
	assert.Same(t, snap, poller.Snapshot())

	// recovery returns to Idle with a fresh snapshot
	client.FailWith = nil
	fresh, err := poller.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PollerIdle, poller.State())
	assert.Same(t, fresh, poller.Snapshot())
	assert.NoError(t, poller.LastError())
}

func TestPollerDeviceErrorFailsCycle(t *testing.T) {
	poller, client := newTestPoller(t)

	client.FailWith = &DeviceError{Code: 300, Message: "General Error"}
	_, err := poller.PollOnce(context.Background())
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, PollerFailed, poller.State())
	assert.Nil(t, poller.Snapshot())
}

func TestPollerOnUpdateCallback(t *testing.T) {
	poller, _ := newTestPoller(t)

	var got *Snapshot
	poller.OnUpdate = func(s *Snapshot) { got = s }

	snap, err := poller.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, got)
}

func TestPollerStopIsTerminal(t *testing.T) {
	poller, _ := newTestPoller(t)

	snap, err := poller.PollOnce(context.Background())
	require.NoError(t, err)

	poller.Stop()
	poller.Stop() // idempotent
	assert.Equal(t, PollerStopped, poller.State())

	_, err = poller.PollOnce(context.Background())
	assert.True(t, errors.Is(err, ErrClosed))
	// the last snapshot stays readable after Stop
	assert.Same(t, snap, poller.Snapshot())
}

func TestPollerStopClosesClient(t *testing.T) {
	poller, client := newTestPoller(t)

	poller.Stop()
	assert.True(t, client.Closed)
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	poller, _ := newTestPoller(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool {
		return poller.Snapshot() != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not stop on cancel")
	}
}

package events

import (
	"testing"

	. "github.com/berfenger/webbox2mqtt/internal/core/domain"
	"github.com/berfenger/webbox2mqtt/pkg/webbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotToUpdateEvents(t *testing.T) {

	assert := assert.New(t)

	snap, _ := testSnapshot(t)

	updates := SnapshotToUpdateEvents(snap)

	// the canned plant carries two unavailable readings (Msg, Temperature)
	// which produce no event; the last poll timestamp always does
	assert.Len(updates, snap.Len()-2+1)

	byId := map[string]any{}
	for _, u := range updates {
		switch e := u.(type) {
		case FloatSensorUpdateEvent:
			byId[e.Id] = e
		case TextSensorUpdateEvent:
			byId[e.Id] = e
		default:
			t.Fatalf("unexpected event type %T", u)
		}
	}

	gripwr, ok := byId["plant_overview_gripwr"].(FloatSensorUpdateEvent)
	require.True(t, ok)
	assert.InDelta(3021, gripwr.Value, 0.001)
	assert.Equal(uint(2), gripwr.Decimals)

	// energy counters keep three decimals
	egy, ok := byId["plant_overview_griegytdy"].(FloatSensorUpdateEvent)
	require.True(t, ok)
	assert.InDelta(14.25, egy.Value, 0.001)
	assert.Equal(uint(3), egy.Decimals)

	opstt, ok := byId["plant_overview_opstt"].(TextSensorUpdateEvent)
	require.True(t, ok)
	assert.Equal("Mpp", opstt.Value)

	_, msgPresent := byId["plant_overview_msg"]
	assert.False(msgPresent)
	_, tempPresent := byId["inv1_ac_temperature"]
	assert.False(tempPresent)

	lastPoll, ok := byId[SENSOR_ID_LAST_POLL].(TextSensorUpdateEvent)
	require.True(t, ok)
	assert.Equal(snap.TakenAt.UTC().Format("2006-01-02T15:04:05Z"), lastPoll.Value)
}

func TestSnapshotToUpdateEventsNilSnapshot(t *testing.T) {
	assert.Nil(t, SnapshotToUpdateEvents(nil))
}

func TestBridgeStateToUpdateEvent(t *testing.T) {

	assert := assert.New(t)

	online, ok := BridgeStateToUpdateEvent(true).(BridgeStateUpdateEvent)
	require.True(t, ok)
	assert.Equal(SENSOR_ID_BRIDGE_STATE, online.Id)
	assert.True(online.Value)

	offline := BridgeStateToUpdateEvent(false).(BridgeStateUpdateEvent)
	assert.False(offline.Value)
}

func TestDecimalsForUnit(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(uint(3), decimalsForUnit(webbox.UnitKiloWattHour))
	assert.Equal(uint(3), decimalsForUnit(webbox.UnitHours))
	assert.Equal(uint(2), decimalsForUnit(webbox.UnitWatt))
	assert.Equal(uint(2), decimalsForUnit(""))
}

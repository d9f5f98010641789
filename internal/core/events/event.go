package events

import (
	. "github.com/berfenger/webbox2mqtt/internal/core/domain"
	"github.com/berfenger/webbox2mqtt/pkg/webbox"
)

// decimalsForUnit keeps published numbers readable: energy counters keep
// finer resolution than instantaneous readings.
func decimalsForUnit(unit string) uint {
	switch unit {
	case webbox.UnitKiloWattHour, webbox.UnitHours:
		return 3
	default:
		return 2
	}
}

// SnapshotToUpdateEvents converts one snapshot into sensor update events in
// walk order. Invalid readings produce no event so the last good value
// stays published.
func SnapshotToUpdateEvents(snap *webbox.Snapshot) []any {
	if snap == nil {
		return nil
	}
	var events []any
	for _, key := range snap.Keys {
		src, _ := snap.Get(key)
		if !src.Valid {
			continue
		}
		id := SensorIdForKey(key)
		if src.Numeric() {
			events = append(events, FloatSensorUpdateEvent{
				SensorUpdateEventMixIn: SensorUpdateEventMixIn{
					Id: id,
				},
				Value:    src.Value,
				Decimals: decimalsForUnit(src.Unit),
			})
		} else {
			events = append(events, TextSensorUpdateEvent{
				SensorUpdateEventMixIn: SensorUpdateEventMixIn{
					Id: id,
				},
				Value: src.Text,
			})
		}
	}
	// Last successful poll timestamp
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_LAST_POLL,
		},
		Value: snap.TakenAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
	return events
}

func BridgeStateToUpdateEvent(online bool) any {
	return BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}
}

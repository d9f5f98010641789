package webbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlant(at time.Time) PlantNode {
	return PlantNode{
		Overview: []SourceNode{
			{ID: "GriPwr", Value: 3021, Unit: UnitWatt, Valid: true, CapturedAt: at},
		},
		Devices: []DeviceNode{
			{
				Key: "INV1",
				Channels: []ChannelNode{
					{
						ID: "DC",
						Sources: []SourceNode{
							{ID: "Power", Value: 1234, Unit: UnitWatt, Valid: true, CapturedAt: at},
							{ID: "Voltage", Value: 398.2, Unit: UnitVolt, Valid: true, CapturedAt: at},
						},
					},
					{
						ID: "AC",
						Sources: []SourceNode{
							{ID: "GridFreq", Value: 50.02, Unit: UnitHertz, Valid: true, CapturedAt: at},
						},
					},
				},
				Children: []DeviceNode{
					{
						Key: "STR1",
						Channels: []ChannelNode{
							{
								ID: "DC",
								Sources: []SourceNode{
									{ID: "Current", Value: 3.1, Unit: UnitAmpere, Valid: true, CapturedAt: at},
								},
							},
						},
					},
				},
			},
		},
	}
}

func TestFlattenWalkOrder(t *testing.T) {
	at := time.Now()
	snap := Flatten(testPlant(at), at)

	expected := []ReadingKey{
		{PlantDeviceKey, OverviewChannelID, "GriPwr"},
		{"INV1", "DC", "Power"},
		{"INV1", "DC", "Voltage"},
		{"INV1", "AC", "GridFreq"},
		{"STR1", "DC", "Current"},
	}
	assert.Equal(t, expected, snap.Keys)
	assert.Equal(t, len(expected), snap.Len())
	assert.Equal(t, at, snap.TakenAt)
}

func TestFlattenLookup(t *testing.T) {
	at := time.Now()
	snap := Flatten(testPlant(at), at)

	src, ok := snap.Get(ReadingKey{Device: "INV1", Channel: "DC", Source: "Power"})
	require.True(t, ok)
	assert.Equal(t, 1234.0, src.Value)
	assert.Equal(t, UnitWatt, src.Unit)

	_, ok = snap.Get(ReadingKey{Device: "INV1", Channel: "DC", Source: "Missing"})
	assert.False(t, ok)
}

func TestFlattenStableKeysAcrossPolls(t *testing.T) {
	first := Flatten(testPlant(time.Now()), time.Now())
	second := Flatten(testPlant(time.Now()), time.Now())
	assert.Equal(t, first.Keys, second.Keys)
}

func TestFlattenDuplicateKeyKeepsFirst(t *testing.T) {
	at := time.Now()
	plant := PlantNode{
		Devices: []DeviceNode{
			{
				Key: "INV1",
				Channels: []ChannelNode{
					{ID: "DC", Sources: []SourceNode{
						{ID: "Power", Value: 1, Valid: true},
						{ID: "Power", Value: 2, Valid: true},
					}},
				},
			},
		},
	}
	snap := Flatten(plant, at)
	assert.Equal(t, 1, snap.Len())
	src, _ := snap.Get(ReadingKey{Device: "INV1", Channel: "DC", Source: "Power"})
	assert.Equal(t, 1.0, src.Value)
}

func TestReadingKeyString(t *testing.T) {
	key := ReadingKey{Device: "INV1", Channel: "DC", Source: "Power"}
	assert.Equal(t, "INV1/DC/Power", key.String())
}

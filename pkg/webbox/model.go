package webbox

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// Readings with a magnitude at or beyond this are treated as sensor
// garbage rather than data.
const maxSaneValue = 1e9

// Unit strings as reported by the device.
const (
	UnitAmpere                 = "A"
	UnitVolt                   = "V"
	UnitHertz                  = "Hz"
	UnitWatt                   = "W"
	UnitKiloWattHour           = "kWh"
	UnitHours                  = "h"
	UnitOhm                    = "Ohm"
	UnitWattsPerSquareMeter    = "W/m^2"
	UnitTemperatureCelsius     = "°C"
	UnitTemperatureFahrenheit  = "°F"
	UnitTemperatureKelvin      = "°K"
	UnitMetersPerSecond        = "m/s"
	UnitKilometersPerHour      = "km/h"
)

// unavailableSentinels are the device's explicit "no reading" markers.
var unavailableSentinels = map[string]bool{
	"":    true,
	"---": true,
}

// PlantNode is the root of one parsed telemetry tree. It is built fresh
// on every successful poll and never mutated afterwards.
type PlantNode struct {
	Overview []SourceNode
	Devices  []DeviceNode
}

type DeviceNode struct {
	Key      string
	Name     string
	Channels []ChannelNode
	Children []DeviceNode
}

type ChannelNode struct {
	ID      string
	Name    string
	Sources []SourceNode
}

// SourceNode is the terminal datum exposed as a sensor. Valid readings are
// either numeric (Value) or enumerated text (Text); Valid is false when the
// device reported an unavailable sentinel or an insane magnitude.
type SourceNode struct {
	ID         string
	Name       string
	Value      float64
	Text       string
	Unit       string
	Valid      bool
	CapturedAt time.Time
}

// Numeric reports whether the reading carries a number rather than text.
func (s SourceNode) Numeric() bool {
	return s.Valid && s.Text == ""
}

func classifyValue(raw any) (value float64, text string, valid bool) {
	switch v := raw.(type) {
	case nil:
		return 0, "", false
	case float64:
		if math.IsNaN(v) || math.Abs(v) >= maxSaneValue {
			return 0, "", false
		}
		return v, "", true
	case string:
		if unavailableSentinels[v] {
			return 0, "", false
		}
		if f, err := sanitizeNumber(v); err == nil {
			if math.Abs(f) >= maxSaneValue {
				return 0, "", false
			}
			return f, "", true
		}
		return 0, v, true
	default:
		return 0, "", false
	}
}

func parseSource(v ChannelValue, at time.Time) (SourceNode, error) {
	if v.Meta == "" {
		return SourceNode{}, parseErrorf("source", "missing meta")
	}
	value, text, valid := classifyValue(v.Value)
	return SourceNode{
		ID:         v.Meta,
		Name:       v.Name,
		Value:      value,
		Text:       text,
		Unit:       v.Unit,
		Valid:      valid,
		CapturedAt: at,
	}, nil
}

func parseChannel(ch ChannelData, at time.Time, logger *zap.Logger) (ChannelNode, error) {
	if ch.Meta == "" {
		return ChannelNode{}, parseErrorf("channel", "missing meta")
	}
	node := ChannelNode{
		ID:   ch.Meta,
		Name: ch.Name,
	}
	for _, v := range ch.Values {
		src, err := parseSource(v, at)
		if err != nil {
			logger.Warn("webbox: skipping malformed source",
				zap.String("channel", ch.Meta), zap.Error(err))
			continue
		}
		node.Sources = append(node.Sources, src)
	}
	return node, nil
}

// ParseDeviceData converts one device's GetProcessData payload into a
// DeviceNode. Malformed channels are skipped so that one bad channel does
// not hide the rest of the device; a device without a key cannot be keyed
// at all and fails as a whole.
func ParseDeviceData(d DeviceData, at time.Time, logger *zap.Logger) (DeviceNode, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.Key == "" {
		return DeviceNode{}, parseErrorf("device", "missing key")
	}
	node := DeviceNode{
		Key:  d.Key,
		Name: d.Name,
	}
	for _, ch := range d.Channels {
		parsed, err := parseChannel(ch, at, logger)
		if err != nil {
			logger.Warn("webbox: skipping malformed channel",
				zap.String("device", d.Key), zap.Error(err))
			continue
		}
		node.Channels = append(node.Channels, parsed)
	}
	for _, child := range d.Children {
		parsed, err := ParseDeviceData(child, at, logger)
		if err != nil {
			logger.Warn("webbox: skipping malformed child device",
				zap.String("device", d.Key), zap.Error(err))
			continue
		}
		node.Children = append(node.Children, parsed)
	}
	return node, nil
}

// ParseOverview converts the plant-level readings of GetPlantOverview.
// Malformed entries are skipped, never fatal.
func ParseOverview(result *OverviewResult, at time.Time, logger *zap.Logger) []SourceNode {
	if logger == nil {
		logger = zap.NewNop()
	}
	if result == nil {
		return nil
	}
	var sources []SourceNode
	for _, v := range result.Overview {
		src, err := parseSource(v, at)
		if err != nil {
			logger.Warn("webbox: skipping malformed overview entry", zap.Error(err))
			continue
		}
		sources = append(sources, src)
	}
	return sources
}

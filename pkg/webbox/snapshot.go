package webbox

import (
	"fmt"
	"time"
)

// PlantDeviceKey is the synthetic device the plant-level overview readings
// are keyed under, so every reading identity stays three-part.
const PlantDeviceKey = "plant"

// OverviewChannelID groups the overview readings of the synthetic plant
// device.
const OverviewChannelID = "Overview"

// ReadingKey is the stable external identity of one measurement. It stays
// constant across polls for the same physical source so downstream
// consumers can track one entity per key.
type ReadingKey struct {
	Device  string
	Channel string
	Source  string
}

func (k ReadingKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Device, k.Channel, k.Source)
}

// Snapshot is the immutable result of one successful poll. Keys preserves
// the deterministic device → channel → source walk order.
type Snapshot struct {
	Readings map[ReadingKey]SourceNode
	Keys     []ReadingKey
	TakenAt  time.Time
}

func (s *Snapshot) Get(key ReadingKey) (SourceNode, bool) {
	src, ok := s.Readings[key]
	return src, ok
}

func (s *Snapshot) Len() int {
	return len(s.Keys)
}

// Flatten walks the plant tree in reported order and emits exactly one
// entry per leaf source. Skipped subtrees contribute nothing.
func Flatten(plant PlantNode, at time.Time) *Snapshot {
	snap := &Snapshot{
		Readings: make(map[ReadingKey]SourceNode),
		TakenAt:  at,
	}
	for _, src := range plant.Overview {
		snap.add(ReadingKey{Device: PlantDeviceKey, Channel: OverviewChannelID, Source: src.ID}, src)
	}
	for _, dev := range plant.Devices {
		snap.addDevice(dev)
	}
	return snap
}

func (s *Snapshot) addDevice(dev DeviceNode) {
	for _, ch := range dev.Channels {
		for _, src := range ch.Sources {
			s.add(ReadingKey{Device: dev.Key, Channel: ch.ID, Source: src.ID}, src)
		}
	}
	for _, child := range dev.Children {
		s.addDevice(child)
	}
}

func (s *Snapshot) add(key ReadingKey, src SourceNode) {
	if _, exists := s.Readings[key]; exists {
		return
	}
	s.Readings[key] = src
	s.Keys = append(s.Keys, key)
}

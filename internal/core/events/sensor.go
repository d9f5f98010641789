package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	. "github.com/berfenger/webbox2mqtt/internal/core/domain"
	"github.com/berfenger/webbox2mqtt/pkg/webbox"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge"
	SENSOR_ID_LAST_POLL    = "last_poll"

	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"

	DEVICE_CLASS_CURRENT      = "current"
	DEVICE_CLASS_ENERGY       = "energy"
	DEVICE_CLASS_FREQUENCY    = "frequency"
	DEVICE_CLASS_POWER        = "power"
	DEVICE_CLASS_TEMPERATURE  = "temperature"
	DEVICE_CLASS_VOLTAGE      = "voltage"
	DEVICE_CLASS_DURATION     = "duration"
	DEVICE_CLASS_IRRADIANCE   = "irradiance"
	DEVICE_CLASS_WIND_SPEED   = "wind_speed"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"

	ENTITY_CLASS_DIAGNOSTIC = "diagnostic"

	SENSOR_TYPE_SENSOR = "sensor"
	SENSOR_TYPE_BINARY = "binary_sensor"
)

var sensorIdSanitizer = regexp.MustCompile("[^a-z0-9_]+")

// SensorIdForKey derives the stable MQTT/discovery id of one reading.
// The same plant layout always yields the same ids.
func SensorIdForKey(key webbox.ReadingKey) string {
	return sanitizeId(fmt.Sprintf("%s_%s_%s", key.Device, key.Channel, key.Source))
}

func sanitizeId(id string) string {
	return sensorIdSanitizer.ReplaceAllString(strings.ToLower(id), "_")
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("webbox_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Webbox2MQTT",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Webbox2MQTT %s", md5HashShort(baseTopic)),
	}
}

// PlantDevice carries the plant-wide overview readings.
func PlantDevice(bridge Device) Device {
	return Device{
		Id:           fmt.Sprintf("webbox_plant_%s", md5HashShort(bridge.Id)),
		Manufacturer: "SMA",
		Model:        "Sunny Webbox",
		Name:         "Plant",
		ViaDevice:    bridge.Id,
	}
}

// WebboxDevice maps one reported device to a discovery device.
func WebboxDevice(entry webbox.DeviceEntry, bridge Device) Device {
	name := entry.Name
	if name == "" {
		name = entry.Key
	}
	return Device{
		Id:           fmt.Sprintf("webbox_dev_%s", sanitizeId(entry.Key)),
		Manufacturer: "SMA",
		Model:        name,
		Name:         fmt.Sprintf("%s %s", name, md5HashShort(entry.Key)),
		ViaDevice:    bridge.Id,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

// unitClasses maps the device's unit strings to discovery classes.
func unitClasses(unit string) (deviceClass string, stateClass string) {
	switch unit {
	case webbox.UnitAmpere:
		return DEVICE_CLASS_CURRENT, STATE_CLASS_MEASUREMENT
	case webbox.UnitVolt:
		return DEVICE_CLASS_VOLTAGE, STATE_CLASS_MEASUREMENT
	case webbox.UnitHertz:
		return DEVICE_CLASS_FREQUENCY, STATE_CLASS_MEASUREMENT
	case webbox.UnitWatt:
		return DEVICE_CLASS_POWER, STATE_CLASS_MEASUREMENT
	case webbox.UnitKiloWattHour:
		return DEVICE_CLASS_ENERGY, STATE_CLASS_TOTAL_INCREASING
	case webbox.UnitHours:
		return DEVICE_CLASS_DURATION, STATE_CLASS_TOTAL_INCREASING
	case webbox.UnitTemperatureCelsius, webbox.UnitTemperatureFahrenheit, webbox.UnitTemperatureKelvin:
		return DEVICE_CLASS_TEMPERATURE, STATE_CLASS_MEASUREMENT
	case webbox.UnitWattsPerSquareMeter:
		return DEVICE_CLASS_IRRADIANCE, STATE_CLASS_MEASUREMENT
	case webbox.UnitMetersPerSecond, webbox.UnitKilometersPerHour:
		return DEVICE_CLASS_WIND_SPEED, STATE_CLASS_MEASUREMENT
	default:
		return "", ""
	}
}

// deviceIndex resolves reading device keys to discovery devices. Keys not
// present in the listing (the synthetic plant key included) fall back to
// the plant device.
type deviceIndex struct {
	plant Device
	byKey map[string]Device
}

func newDeviceIndex(entries []webbox.DeviceEntry, bridge Device) *deviceIndex {
	idx := &deviceIndex{
		plant: PlantDevice(bridge),
		byKey: make(map[string]Device),
	}
	idx.add(entries, bridge)
	return idx
}

func (idx *deviceIndex) add(entries []webbox.DeviceEntry, bridge Device) {
	for _, entry := range entries {
		idx.byKey[entry.Key] = WebboxDevice(entry, bridge)
		idx.add(entry.Children, bridge)
	}
}

func (idx *deviceIndex) resolve(key string) Device {
	if dev, ok := idx.byKey[key]; ok {
		return dev
	}
	return idx.plant
}

// SnapshotSensors derives the full sensor set from one snapshot, one sensor
// per reading key in walk order. Text readings become plain sensors without
// a unit; numeric readings get unit-derived classes.
func SnapshotSensors(snap *webbox.Snapshot, entries []webbox.DeviceEntry, bridge Device) []GenericSensor {
	if snap == nil {
		return nil
	}
	idx := newDeviceIndex(entries, bridge)

	var sensors []GenericSensor
	for _, key := range snap.Keys {
		src, _ := snap.Get(key)
		device := idx.resolve(key.Device)

		name := src.Name
		if name == "" {
			name = key.Source
		}
		id := SensorIdForKey(key)

		sensor := GenericSensor{
			Device:     device,
			Id:         id,
			SensorType: SENSOR_TYPE_SENSOR,
			Name:       name,
			UniqueId:   uniqueId(device.Id, id),
		}
		if src.Numeric() {
			sensor.UnitOfMeasurement = src.Unit
			sensor.DeviceClass, sensor.StateClass = unitClasses(src.Unit)
		}
		sensors = append(sensors, sensor)
	}
	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Connection state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	// Last successful poll
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_LAST_POLL,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Last poll",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:clock-check-outline",
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_LAST_POLL),
	})

	return sensors
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

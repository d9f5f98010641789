package mqtt

import (
	"testing"

	"github.com/berfenger/webbox2mqtt/internal/config"
	"github.com/berfenger/webbox2mqtt/internal/core/domain"
	"github.com/berfenger/webbox2mqtt/internal/core/events"

	"github.com/stretchr/testify/assert"
)

func testClient(baseTopic, discoveryTopic string) *MQTTClient {
	return &MQTTClient{
		cfg: config.MQTTConfig{
			BaseTopic:        baseTopic,
			HADiscoveryTopic: discoveryTopic,
		},
	}
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	c := testClient("webbox2mqtt", "")

	assert.Equal("webbox2mqtt/bridge/state", c.BridgeStateTopic())
	assert.Equal("webbox2mqtt/sensor/inv1_dc_power/state", c.SensorStateTopic("inv1_dc_power"))
	assert.Equal("webbox2mqtt/binary_sensor/bridge/state", c.BinarySensorStateTopic("bridge"))
	assert.Equal("homeassistant/status", c.HAStatusTopic())
}

func TestDiscoveryTopicOverride(t *testing.T) {

	assert := assert.New(t)

	c := testClient("webbox2mqtt", "ha_custom")

	assert.Equal("ha_custom/status", c.HAStatusTopic())

	sensor := domain.GenericSensor{
		Device:     domain.Device{Id: "webbox_dev_inv1"},
		Id:         "inv1_dc_power",
		SensorType: events.SENSOR_TYPE_SENSOR,
	}
	assert.Equal("ha_custom/sensor/webbox_dev_inv1/inv1_dc_power/config", HADiscoverySensorTopic(c, sensor))
}

func TestGenericSensorToHADiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	c := testClient("webbox2mqtt", "")

	sensor := domain.GenericSensor{
		Device: domain.Device{
			Id:           "webbox_dev_inv1",
			Name:         "SB 5000TL-21",
			Manufacturer: "SMA",
		},
		Id:                "inv1_dc_power",
		SensorType:        events.SENSOR_TYPE_SENSOR,
		Name:              "Power",
		UniqueId:          "uid_webbox_dev_inv1_inv1_dc_power",
		UnitOfMeasurement: "W",
		DeviceClass:       events.DEVICE_CLASS_POWER,
		StateClass:        events.STATE_CLASS_MEASUREMENT,
	}

	msg := GenericSensorToHADiscoveryMessage(c, sensor)

	assert.Equal("webbox2mqtt/sensor/inv1_dc_power/state", msg.StateTopic)
	assert.Equal("webbox2mqtt/bridge/state", msg.AvTopic)
	assert.Equal("W", msg.UnitOfMeasurement)
	assert.Equal("power", msg.DeviceClass)
	assert.Equal("measurement", msg.StateClass)
	assert.Equal("mqtt", msg.Platform)
	assert.Equal([]string{"webbox_dev_inv1"}, msg.Device.Id)
	assert.Empty(msg.PayloadOn)
}

func TestBridgeSensorDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	c := testClient("webbox2mqtt", "")

	bridge := events.BridgeDevice("webbox2mqtt")
	sensors := events.BridgeSensors(bridge)

	msg := GenericSensorToHADiscoveryMessage(c, sensors[0])

	// the bridge state sensor binds to the availability topic itself
	assert.Equal("webbox2mqtt/bridge/state", msg.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
	assert.Equal(MQTT_PAYLOAD_OFFLINE, msg.PayloadOff)
}

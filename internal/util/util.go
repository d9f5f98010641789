package util

import (
	"github.com/berfenger/webbox2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Webbox: config.WebboxConfig{
			Host:                "-.-.-.-",
			Port:                34268,
			PollIntervalSeconds: 30,
			TimeoutSeconds:      5,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "webbox2mqtt",
		},
		Port: 8080,
	}
}

package util

import (
	"github.com/berfenger/rfxcom2mqtt/internal/config"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Serial: config.SerialConfig{
			Port:              "/dev/null",
			BaudRate:          38400,
			ReadTimeoutMillis: 1000,
		},
		Decoder: config.DecoderConfig{
			Blacklist:              rfxcom.DefaultBlacklist,
			UVTemperatureSubtype:   3,
			WindTemperatureSubtype: 4,
		},
		Routes: config.RoutesConfig{
			File: "sensors.conf",
		},
		Detect: config.DetectConfig{
			DurationSeconds: 60,
		},
		MQTT: config.MQTTConfig{
			Enable:         true,
			Host:           "localhost",
			Port:           1883,
			BaseTopic:      "rfxcom",
			ConnectRetries: 1,
		},
		Sink: config.SinkConfig{
			TimeoutMillis:      500,
			BreakerFailures:    2,
			BreakerOpenSeconds: 30,
		},
		Port: 8070,
	}
}

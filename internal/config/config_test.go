package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		Serial: SerialConfig{Port: "/dev/ttyUSB0", BaudRate: 38400, ReadTimeoutMillis: 1000},
		Sink:   SinkConfig{TimeoutMillis: 2000, BreakerFailures: 5, BreakerOpenSeconds: 30},
	}
}

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("RFXCOM_home")
	assert.NoError(err)
	assert.Equal("rfxcom_home", topic)

	_, err = CheckMQTTTopic("rfxcom/home")
	assert.Error(err)
}

func TestValidate(t *testing.T) {

	assert := assert.New(t)

	cfg := validConfig()
	assert.NoError(cfg.Validate())

	cfg = validConfig()
	cfg.Serial.Port = ""
	assert.Error(cfg.Validate())

	cfg = validConfig()
	cfg.Database.Enable = true
	assert.ErrorContains(cfg.Validate(), "database.dsn")

	cfg = validConfig()
	cfg.Influx = InfluxConfig{Enable: true, URL: "http://localhost:8086", Org: "org"}
	assert.ErrorContains(cfg.Validate(), "influx")

	cfg = validConfig()
	cfg.Sink.BreakerFailures = 0
	assert.Error(cfg.Validate())
}

func TestDurations(t *testing.T) {

	cfg := validConfig()
	assert.Equal(t, "1s", cfg.Serial.ReadTimeout().String())
	assert.Equal(t, "2s", cfg.Sink.Timeout().String())
	assert.Equal(t, "30s", cfg.Sink.BreakerOpen().String())
}

package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Logging  LoggingConfig  `mapstructure:"logging"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Decoder  DecoderConfig  `mapstructure:"decoder"`
	Routes   RoutesConfig   `mapstructure:"routes"`
	Detect   DetectConfig   `mapstructure:"detect"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Database DatabaseConfig `mapstructure:"database"`
	Influx   InfluxConfig   `mapstructure:"influx"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Port     uint           `mapstructure:"port"`
	HttpLog  bool           `mapstructure:"http_log"`
}

type LoggingConfig struct {
	File       string
	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
}

type SerialConfig struct {
	Port              string
	BaudRate          int    `mapstructure:"baud_rate"`
	ReadTimeoutMillis uint32 `mapstructure:"read_timeout_millis"`
}

func (c SerialConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMillis) * time.Millisecond
}

type DecoderConfig struct {
	Blacklist              []uint8
	UVTemperatureSubtype   uint8 `mapstructure:"uv_temperature_subtype"`
	WindTemperatureSubtype uint8 `mapstructure:"wind_temperature_subtype"`
}

type RoutesConfig struct {
	File string
}

type DetectConfig struct {
	Enable          bool
	DurationSeconds uint32 `mapstructure:"duration_seconds"`
}

func (c DetectConfig) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

type MQTTConfig struct {
	Enable         bool
	Host           string
	Port           int
	Username       string
	Password       string
	BaseTopic      string `mapstructure:"base_topic"`
	Retain         bool
	ConnectRetries uint `mapstructure:"connect_retries"`
	// Home Assistant MQTT discovery
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type DatabaseConfig struct {
	Enable bool
	DSN    string `mapstructure:"dsn"`
}

type InfluxConfig struct {
	Enable bool
	URL    string `mapstructure:"url"`
	Token  string
	Org    string
	Bucket string
}

type RedisConfig struct {
	Enable        bool
	Addr          string
	Password      string
	DB            int    `mapstructure:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

type SinkConfig struct {
	TimeoutMillis      uint32 `mapstructure:"timeout_millis"`
	BreakerFailures    uint32 `mapstructure:"breaker_failures"`
	BreakerOpenSeconds uint32 `mapstructure:"breaker_open_seconds"`
}

func (c SinkConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

func (c SinkConfig) BreakerOpen() time.Duration {
	return time.Duration(c.BreakerOpenSeconds) * time.Second
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Validate checks bounds that viper cannot express.
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return errors.New("config param serial.port is required")
	}
	if c.Serial.BaudRate <= 0 {
		return errors.New("config param serial.baud_rate should be > 0")
	}
	if c.Serial.ReadTimeoutMillis < 100 {
		return errors.New("config param serial.read_timeout_millis should be >= 100")
	}
	if c.Database.Enable && c.Database.DSN == "" {
		return errors.New("config param database.dsn is required when database.enable is set")
	}
	if c.Influx.Enable && (c.Influx.URL == "" || c.Influx.Org == "" || c.Influx.Bucket == "") {
		return errors.New("config params influx.url, influx.org and influx.bucket are required when influx.enable is set")
	}
	if c.Redis.Enable && c.Redis.Addr == "" {
		return errors.New("config param redis.addr is required when redis.enable is set")
	}
	if c.Sink.TimeoutMillis < 100 {
		return errors.New("config param sink.timeout_millis should be >= 100")
	}
	if c.Sink.BreakerFailures == 0 {
		return errors.New("config param sink.breaker_failures should be > 0")
	}
	return nil
}

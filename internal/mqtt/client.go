package mqtt

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/config"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"

	CLIENT_ID_PREFIX = "rfxcom2mqtt_"
)

var ErrTimeout = errors.New("MQTT operation timed out")

func OptsFromConfig(cfg *config.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(CLIENT_ID_PREFIX + uuid.NewString()[:8])
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	// reconnects are driven by the actor supervisor
	opts.SetAutoReconnect(false)
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.MQTTConfig, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return NewMQTTClient(cfg, mqtt.NewClient(opts))
}

// NewMQTTClient wraps an existing paho client.
func NewMQTTClient(cfg *config.MQTTConfig, client mqtt.Client) *MQTTClient {
	return &MQTTClient{
		client: client,
		cfg:    *cfg,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = 30 * time.Second
			return bo
		},
	}
}

type MQTTClient struct {
	client     mqtt.Client
	cfg        config.MQTTConfig
	newBackOff func() backoff.BackOff
}

// WithBackOff replaces the connect backoff policy.
func (c *MQTTClient) WithBackOff(newBackOff func() backoff.BackOff) *MQTTClient {
	c.newBackOff = newBackOff
	return c
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.cfg.BaseTopic)
}

func (c *MQTTClient) IsConnected() bool {
	return c.client.IsConnected()
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		continuation(waitToken(token, timeout))
	}()
}

// Connect tries to reach the broker up to connect_retries+1 times with an
// exponential backoff, then calls continuation once.
func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	bo := backoff.WithMaxRetries(c.newBackOff(), uint64(c.cfg.ConnectRetries))
	go func() {
		err := backoff.Retry(func() error {
			return waitToken(c.client.Connect(), timeout)
		}, bo)
		continuation(err)
	}()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func waitToken(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return token.Error()
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}

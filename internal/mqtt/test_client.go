package mqtt

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// TestMessage is one publish recorded by TestClient.
type TestMessage struct {
	Topic    string
	Payload  string
	Qos      byte
	Retained bool
}

// TestClient is an in-memory paho client. ConnectFailures makes the first
// n Connect calls fail; PublishError fails every publish.
type TestClient struct {
	mu              sync.Mutex
	connected       bool
	connects        int
	ConnectFailures int
	PublishError    error
	messages        []TestMessage
}

func (c *TestClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *TestClient) IsConnectionOpen() bool {
	return c.IsConnected()
}

func (c *TestClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.connects <= c.ConnectFailures {
		return &testToken{err: fmt.Errorf("connection refused (attempt %d)", c.connects)}
	}
	c.connected = true
	return &testToken{}
}

func (c *TestClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *TestClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PublishError != nil {
		return &testToken{err: c.PublishError}
	}
	c.messages = append(c.messages, TestMessage{
		Topic:    topic,
		Payload:  fmt.Sprintf("%s", payload),
		Qos:      qos,
		Retained: retained,
	})
	return &testToken{}
}

func (c *TestClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return &testToken{}
}

func (c *TestClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return &testToken{}
}

func (c *TestClient) Unsubscribe(topics ...string) mqtt.Token {
	return &testToken{}
}

func (c *TestClient) AddRoute(topic string, callback mqtt.MessageHandler) {
}

func (c *TestClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

func (c *TestClient) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *TestClient) Messages() []TestMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TestMessage(nil), c.messages...)
}

type testToken struct {
	err error
}

func (t *testToken) Wait() bool {
	return true
}

func (t *testToken) WaitTimeout(time.Duration) bool {
	return true
}

func (t *testToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *testToken) Error() error {
	return t.err
}

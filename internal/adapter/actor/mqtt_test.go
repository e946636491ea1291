package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/metrics"
	"github.com/berfenger/rfxcom2mqtt/internal/mqtt"
	"github.com/berfenger/rfxcom2mqtt/internal/util"
	"github.com/berfenger/rfxcom2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnTestMQTTActor(t *testing.T, client *mqtt.TestClient, m *metrics.AppMetrics) (*actor.ActorSystem, *actor.PID) {
	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMQTTActor(&cfg.MQTT, func(func(error)) *mqtt.MQTTClient {
			return mqtt.NewMQTTClient(&cfg.MQTT, client).WithBackOff(func() backoff.BackOff {
				return backoff.NewConstantBackOff(10 * time.Millisecond)
			})
		}, m, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MQTT)
	require.NoError(t, err)
	return as, pid
}

func requestHealth(t *testing.T, as *actor.ActorSystem, pid *actor.PID) domain.ActorHealthResponse {
	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.ActorHealthResponse)
	require.True(t, ok)
	return resp
}

func TestMQTTActorPublish(t *testing.T) {

	assert := assert.New(t)

	client := &mqtt.TestClient{}
	m := metrics.NewAppMetrics(metrics.NewRegistry())
	as, pid := spawnTestMQTTActor(t, client, m)
	defer as.Shutdown()

	// published once connected, requests sent earlier are stashed
	res, err := as.Root.RequestFuture(pid, domain.PublishMessageRequest{Topic: "home/garden/temperature", Payload: "21.5"}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.PublishMessageResponse)
	require.True(t, ok)
	assert.False(resp.HasResponseError())

	messages := client.Messages()
	require.Len(t, messages, 2)
	assert.Equal(mqtt.TestMessage{Topic: "rfxcom/bridge/state", Payload: mqtt.MQTT_PAYLOAD_ONLINE, Qos: 0, Retained: true}, messages[0])
	assert.Equal(mqtt.TestMessage{Topic: "home/garden/temperature", Payload: "21.5", Qos: MQTT_QOS, Retained: false}, messages[1])
	assert.Equal(1.0, testutil.ToFloat64(m.ActorWritesTotal.WithLabelValues(domain.ACTOR_ID_MQTT, metrics.WRITE_RESULT_OK)))

	health := requestHealth(t, as, pid)
	assert.True(health.Healthy)
	assert.Equal(domain.ACTOR_ID_MQTT, health.Id)

	// retained on request
	_, err = as.Root.RequestFuture(pid, domain.PublishMessageRequest{Topic: "home/rain", Payload: "3.0", Retain: true}, 2*time.Second).Result()
	require.NoError(t, err)
	messages = client.Messages()
	require.Len(t, messages, 3)
	assert.True(messages[2].Retained)

	require.NoError(t, as.Root.StopFuture(pid).Wait())
	messages = client.Messages()
	assert.Equal(mqtt.TestMessage{Topic: "rfxcom/bridge/state", Payload: mqtt.MQTT_PAYLOAD_OFFLINE, Qos: 0, Retained: true}, messages[len(messages)-1])
	assert.False(client.IsConnected())
}

func TestMQTTActorPublishError(t *testing.T) {

	client := &mqtt.TestClient{PublishError: errors.New("not authorized")}
	as, pid := spawnTestMQTTActor(t, client, nil)
	defer as.Shutdown()

	res, err := as.Root.RequestFuture(pid, domain.PublishMessageRequest{Topic: "home/rain", Payload: "3.0"}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.PublishMessageResponse)
	require.True(t, ok)
	assert.ErrorContains(t, resp.GetResponseError(), "not authorized")
}

func TestMQTTActorConnectRetry(t *testing.T) {

	client := &mqtt.TestClient{ConnectFailures: 1}
	as, pid := spawnTestMQTTActor(t, client, nil)
	defer as.Shutdown()

	assert.Eventually(t, func() bool {
		return requestHealth(t, as, pid).Healthy
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 2, client.Connects())
}

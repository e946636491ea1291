package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/config"
	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/metrics"
	"github.com/berfenger/rfxcom2mqtt/internal/mqtt"
	"github.com/berfenger/rfxcom2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	MQTT_QOS             = 1
	MQTT_PUBLISH_TIMEOUT = 5 * time.Second
	MQTT_CONNECT_TIMEOUT = 10 * time.Second
	MQTT_STASH_LIMIT     = 1000
)

// MQTTClientProvider builds the broker client; onConnectionLost must be
// wired to the paho connection lost handler.
type MQTTClientProvider func(onConnectionLost func(error)) *mqtt.MQTTClient

type MQTTActor struct {
	config         *config.MQTTConfig
	behavior       actor.Behavior
	stash          *actorutil.Stash
	clientProvider MQTTClientProvider
	client         *mqtt.MQTTClient
	metrics        *metrics.AppMetrics
	logger         *zap.Logger
}

type MQTTConnected struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

func NewMQTTActor(config *config.MQTTConfig, clientProvider MQTTClientProvider, m *metrics.AppMetrics, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:         config,
		behavior:       actor.NewBehavior(),
		stash:          &actorutil.Stash{Limit: MQTT_STASH_LIMIT},
		clientProvider: clientProvider,
		metrics:        m,
		logger:         actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

// DefaultMQTTClientProvider connects to the broker described by cfg.
func DefaultMQTTClientProvider(cfg *config.MQTTConfig) MQTTClientProvider {
	return func(onConnectionLost func(error)) *mqtt.MQTTClient {
		return mqtt.CreateMQTTClient(cfg, mqtt.OptsFromConfig(cfg), nil, func(_ pahomqtt.Client, err error) {
			onConnectionLost(err)
		})
	}
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		// create MQTT client
		self := ctx.Self()
		send := ctx.ActorSystem().Root.Send
		state.client = state.clientProvider(func(err error) {
			send(self, MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				send(self, MQTTConnectionLost{Error: err})
			} else {
				send(self, MQTTConnected{})
			}
		}, MQTT_CONNECT_TIMEOUT)

	case MQTTConnected:
		// init completed, transition to default state
		state.logger.Info("mqtt@starting connected")
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection failed", zap.Error(msg.Error))
		panic(msg.Error)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: false,
			State:   "connecting",
		})
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		if !state.stash.Stash(ctx, msg) {
			state.logger.Warn("mqtt@starting stash full, oldest message dropped")
		}
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: state.client.IsConnected(),
			State:   "idle",
		})
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.String("topic", msg.Topic), zap.String("payload", msg.Payload))
		state.publishMessage(ctx, msg.Topic, msg.Payload, msg.Retain || state.config.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishDiscoveryRequest", zap.Int("sensors", len(msg.Sensors)))
		state.publishDiscovery(msg.Sensors)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) publishDiscovery(sensors []domain.GenericSensor) {
	logger := state.logger
	for _, sensor := range sensors {
		payload, err := json.Marshal(mqtt.GenericSensorToHADiscoveryMessage(state.client, sensor))
		if err != nil {
			logger.Warn("mqtt@default discovery encoding failed", zap.String("sensor", sensor.Id), zap.Error(err))
			continue
		}
		topic := mqtt.HADiscoverySensorTopic(state.config.HADiscoveryTopic, sensor)
		state.client.Publish(topic, payload, MQTT_QOS, true, func(err error) {
			if err != nil {
				logger.Warn("mqtt@default could not publish discovery", zap.String("topic", topic), zap.Error(err))
			}
		}, MQTT_PUBLISH_TIMEOUT)
	}
}

func (state *MQTTActor) publishMessage(ctx actor.Context, topic, payload string, retain bool, replyTo *actor.PID) {
	self := ctx.Self()
	send := ctx.ActorSystem().Root.Send
	state.client.Publish(topic, payload, MQTT_QOS, retain, func(err error) {
		send(self, publishResult{ReplyTo: replyTo, Error: err})
	}, MQTT_PUBLISH_TIMEOUT)
	state.behavior.BecomeStacked(state.PublishResultReceive)
}

func (state *MQTTActor) PublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		state.metrics.ActorWrite(domain.ACTOR_ID_MQTT, msg.Error)
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	case MQTTConnectionLost:
		state.logger.Error("mqtt@publishing connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: state.client.IsConnected(),
			State:   "publishing",
		})
	case domain.PublishDiscoveryRequest:
		state.publishDiscovery(msg.Sensors)
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@publishing stash", zap.String("topic", msg.Topic))
		if !state.stash.Stash(ctx, msg) {
			state.logger.Warn("mqtt@publishing stash full, oldest message dropped")
		}
	default:
		state.logger.Debug("mqtt@publishing ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) stop() {
	if state.client == nil {
		return
	}
	state.logger.Debug("mqtt: disconnect")
	if state.client.IsConnected() {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
	}
	state.client.Disconnect(500 * time.Millisecond)
	state.client = nil
}

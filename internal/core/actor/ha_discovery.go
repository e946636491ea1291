package actor

import (
	"fmt"

	"github.com/berfenger/rfxcom2mqtt/internal/config"
	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type HADiscoveryActorProvider func(mqttActor *actor.PID) *HADiscoveryActor

// HADiscoveryActor announces the bridge and every routed topic to Home
// Assistant, each topic once per process.
type HADiscoveryActor struct {
	config       *config.MQTTConfig
	behavior     actor.Behavior
	mqttActor    *actor.PID
	bridgeDevice domain.Device
	announced    map[string]struct{}

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.MQTTConfig, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:       config,
		mqttActor:    mqttActor,
		behavior:     actor.NewBehavior(),
		bridgeDevice: domain.BridgeDevice(config.BaseTopic),
		announced:    make(map[string]struct{}),
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@default started")
		// the MQTT actor stashes requests until it is connected
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: domain.BridgeSensors(state.bridgeDevice),
		})
	case domain.DiscoverSensorRequest:
		if _, ok := state.announced[msg.Topic]; ok {
			return
		}
		state.announced[msg.Topic] = struct{}{}
		device := domain.SensorDevice(msg.Sensor, state.bridgeDevice)
		sensor := domain.MeasurementSensor(device, msg.Measurement, msg.Topic)
		state.logger.Info("hadiscovery@default announcing", zap.String("topic", msg.Topic), zap.String("measurement", msg.Measurement))
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: []domain.GenericSensor{sensor},
		})
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   fmt.Sprintf("%d announced", len(state.announced)),
		})
	default:
		state.logger.Debug("hadiscovery@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

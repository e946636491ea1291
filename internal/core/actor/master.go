package actor

import (
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/rfxcom2mqtt/internal/adapter/actor"
	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	. "github.com/berfenger/rfxcom2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	HEALTH_CHECK_CHILD_TIMEOUT = 500 * time.Millisecond
	HEALTH_CHECK_TIMEOUT       = 1 * time.Second
)

type MQTTActorProvider func() *adactor.MQTTActor

type StoreActorProvider func() *adactor.StoreActor

type BusActorProvider func() *adactor.BusActor

// Children lists the sink actors to spawn. A nil provider disables the
// corresponding sink.
type Children struct {
	MQTT        MQTTActorProvider
	SQLStore    StoreActorProvider
	InfluxStore StoreActorProvider
	Bus         BusActorProvider
	// requires MQTT
	HADiscovery HADiscoveryActorProvider
}

// MasterOfPuppetsActor owns the sink actors and routes sink messages to
// them: publications to MQTT and the bus, readings to every store, new
// sensors to the SQL catalog, routed topics to Home Assistant discovery.
type MasterOfPuppetsActor struct {
	behavior actor.Behavior
	stash    *Stash

	providers          Children
	children           map[string]*actor.PID
	order              []string
	currentHealthCheck healthCheckResult
	logger             *zap.Logger
}

type healthCheckResult struct {
	responses map[string]domain.ActorHealthResponse
	expected  []string
	respondTo *actor.PID
}

func NewMasterOfPuppetsActor(providers Children, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		behavior:  actor.NewBehavior(),
		stash:     &Stash{},
		providers: providers,
		children:  make(map[string]*actor.PID),
		logger:    ActorLogger(domain.ACTOR_ID_MASTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		if state.providers.MQTT != nil {
			state.spawn(ctx, domain.ACTOR_ID_MQTT, backoffSupervisor(), func() actor.Actor {
				return state.providers.MQTT()
			})
		}
		if mqttActor, ok := state.children[domain.ACTOR_ID_MQTT]; ok && state.providers.HADiscovery != nil {
			state.spawn(ctx, domain.ACTOR_ID_HA_DISCOVERY, oneForOneSupervisor(), func() actor.Actor {
				return state.providers.HADiscovery(mqttActor)
			})
		}
		if state.providers.SQLStore != nil {
			state.spawn(ctx, domain.ACTOR_ID_STORE_SQL, oneForOneSupervisor(), func() actor.Actor {
				return state.providers.SQLStore()
			})
		}
		if state.providers.InfluxStore != nil {
			state.spawn(ctx, domain.ACTOR_ID_STORE_INFLUX, oneForOneSupervisor(), func() actor.Actor {
				return state.providers.InfluxStore()
			})
		}
		if state.providers.Bus != nil {
			state.spawn(ctx, domain.ACTOR_ID_BUS, oneForOneSupervisor(), func() actor.Actor {
				return state.providers.Bus()
			})
		}
		state.logger.Info("master@starting sinks started", zap.Strings("children", state.order))

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(state.order)
		state.currentHealthCheck.respondTo = ctx.Sender()
		if len(state.order) == 0 {
			state.currentHealthCheck.respond(ctx)
			return
		}
		for _, id := range state.order {
			childId := id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.children[childId], domain.ActorHealthRequest{}, HEALTH_CHECK_CHILD_TIMEOUT), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      childId,
					Healthy: false,
					State:   err.Error(),
				}
			})
		}

		ctx.SetReceiveTimeout(HEALTH_CHECK_TIMEOUT)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.PublishMessageRequest:
		state.forward(ctx, domain.ACTOR_ID_MQTT, domain.ACTOR_ID_BUS)
	case domain.StoreReadingRequest:
		state.forward(ctx, domain.ACTOR_ID_STORE_SQL, domain.ACTOR_ID_STORE_INFLUX)
	case domain.RegisterSensorRequest:
		state.forward(ctx, domain.ACTOR_ID_STORE_SQL)
	case domain.DiscoverSensorRequest:
		state.forward(ctx, domain.ACTOR_ID_HA_DISCOVERY)
	case *actor.Terminated:
		state.logger.Warn("master@default child terminated", zap.String("child", msg.Who.Id))
	default:
		state.logger.Debug("master@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// children that did not answer are not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.responses[msg.Id] = msg
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	case domain.PublishMessageRequest:
		state.forward(ctx, domain.ACTOR_ID_MQTT, domain.ACTOR_ID_BUS)
	case domain.StoreReadingRequest:
		state.forward(ctx, domain.ACTOR_ID_STORE_SQL, domain.ACTOR_ID_STORE_INFLUX)
	case domain.RegisterSensorRequest:
		state.forward(ctx, domain.ACTOR_ID_STORE_SQL)
	case domain.DiscoverSensorRequest:
		state.forward(ctx, domain.ACTOR_ID_HA_DISCOVERY)
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// forward hands the current message, sender included, to every running
// child among ids.
func (state *MasterOfPuppetsActor) forward(ctx actor.Context, ids ...string) {
	for _, id := range ids {
		if pid, ok := state.children[id]; ok {
			ctx.Forward(pid)
		}
	}
}

func (state *MasterOfPuppetsActor) spawn(ctx actor.Context, id string, supervisor actor.SupervisorStrategy, producer actor.Producer) {
	props := actor.PropsFromProducer(producer, actor.WithSupervisor(supervisor))
	pid, err := ctx.SpawnNamed(props, id)
	if err != nil {
		panic(err)
	}
	state.children[id] = pid
	state.order = append(state.order, id)
}

func backoffSupervisor() actor.SupervisorStrategy {
	return actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)
}

func oneForOneSupervisor() actor.SupervisorStrategy {
	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	return actor.NewOneForOneStrategy(10, 10*time.Second, decider)
}

func (state *healthCheckResult) reset(expected []string) {
	state.responses = make(map[string]domain.ActorHealthResponse, len(expected))
	state.expected = expected
	state.respondTo = nil
}

func (state *healthCheckResult) allReceived() bool {
	for _, id := range state.expected {
		if _, ok := state.responses[id]; !ok {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: true,
		State:   "idle",
	}
	for _, id := range state.expected {
		child, ok := state.responses[id]
		if !ok {
			child = domain.ActorHealthResponse{Id: id, State: "timeout"}
		}
		resp.Healthy = resp.Healthy && child.Healthy
		resp.Children = append(resp.Children, child)
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}

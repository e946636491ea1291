package actor

import (
	"context"
	"fmt"

	"github.com/berfenger/rfxcom2mqtt/internal/config"
	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/core/port"
	"github.com/berfenger/rfxcom2mqtt/internal/metrics"
	"github.com/berfenger/rfxcom2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const STORE_STASH_LIMIT = 1000

// StoreActor serializes writes to one ReadingStore. Writes run as bounded
// background tasks behind a circuit breaker; messages arriving meanwhile are
// stashed.
type StoreActor struct {
	id       string
	config   config.SinkConfig
	behavior actor.Behavior
	stash    *actorutil.Stash
	store    port.ReadingStore
	catalog  port.SensorCatalog
	breaker  *gobreaker.CircuitBreaker
	metrics  *metrics.AppMetrics
	logger   *zap.Logger
}

type writeResult struct {
	ReplyTo  *actor.PID
	Register bool
	Error    error
}

// NewStoreActor creates a store actor. catalog may be nil, then
// RegisterSensorRequest messages are ignored.
func NewStoreActor(id string, store port.ReadingStore, catalog port.SensorCatalog, cfg config.SinkConfig, m *metrics.AppMetrics, logger *zap.Logger) *StoreActor {
	act := &StoreActor{
		id:       id,
		config:   cfg,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{Limit: STORE_STASH_LIMIT},
		store:    store,
		catalog:  catalog,
		breaker:  newBreaker(id, cfg),
		metrics:  m,
		logger:   actorutil.ActorLogger(id, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *StoreActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *StoreActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug(state.id + "@default started")
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      state.id,
			Healthy: state.breaker.State() != gobreaker.StateOpen,
			State:   state.breaker.State().String(),
		})
	case domain.StoreReadingRequest:
		reading, name := msg.Reading, msg.Name
		state.write(ctx, actorutil.ForRequest(msg).ReplyTo(ctx), false, func(goCtx context.Context) error {
			return state.store.StoreReading(goCtx, reading, name)
		})
	case domain.RegisterSensorRequest:
		if state.catalog == nil {
			state.stash.UnstashOldest(ctx)
			return
		}
		sensor := msg.Sensor
		state.write(ctx, actorutil.ForRequest(msg).ReplyTo(ctx), true, func(goCtx context.Context) error {
			return state.catalog.SaveSensor(goCtx, sensor)
		})
	default:
		state.logger.Debug(state.id+"@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *StoreActor) write(ctx actor.Context, replyTo *actor.PID, register bool, fn func(context.Context) error) {
	actorutil.NewBackgroundTask(ctx, func(goCtx context.Context) (writeResult, error) {
		_, err := state.breaker.Execute(func() (interface{}, error) {
			return nil, fn(goCtx)
		})
		return writeResult{ReplyTo: replyTo, Register: register, Error: err}, nil
	}).WithTimeout(state.config.Timeout()).Recover(func(err error) writeResult {
		return writeResult{ReplyTo: replyTo, Register: register, Error: err}
	}).PipeTo(ctx.Self())
	state.behavior.BecomeStacked(state.WritingReceive)
}

func (state *StoreActor) WritingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case writeResult:
		if !breakerRejected(msg.Error) {
			state.metrics.ActorWrite(state.id, msg.Error)
		}
		if msg.Error != nil {
			state.logger.Warn(state.id+"@writing write failed", zap.Bool("register", msg.Register), zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			var resp domain.ActorResponse = domain.StoreReadingResponse{ActorResponseMixIn: domain.ResponseWithError(msg.Error)}
			if msg.Register {
				resp = domain.RegisterSensorResponse{ActorResponseMixIn: domain.ResponseWithError(msg.Error)}
			}
			ctx.Send(msg.ReplyTo, resp)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      state.id,
			Healthy: state.breaker.State() != gobreaker.StateOpen,
			State:   "writing",
		})
	case domain.StoreReadingRequest, domain.RegisterSensorRequest:
		if !state.stash.Stash(ctx, msg) {
			state.logger.Warn(state.id + "@writing stash full, oldest message dropped")
		}
	default:
		state.logger.Debug(state.id+"@writing ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

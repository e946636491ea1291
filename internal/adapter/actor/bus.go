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

// BusActor mirrors routed publications onto a message bus.
type BusActor struct {
	config    config.SinkConfig
	behavior  actor.Behavior
	stash     *actorutil.Stash
	publisher port.MessagePublisher
	breaker   *gobreaker.CircuitBreaker
	metrics   *metrics.AppMetrics
	logger    *zap.Logger
}

func NewBusActor(publisher port.MessagePublisher, cfg config.SinkConfig, m *metrics.AppMetrics, logger *zap.Logger) *BusActor {
	act := &BusActor{
		config:    cfg,
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{Limit: STORE_STASH_LIMIT},
		publisher: publisher,
		breaker:   newBreaker(domain.ACTOR_ID_BUS, cfg),
		metrics:   m,
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_BUS, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *BusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *BusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Stopping:
		if err := state.publisher.Close(); err != nil {
			state.logger.Warn("bus@default close failed", zap.Error(err))
		}
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_BUS,
			Healthy: state.breaker.State() != gobreaker.StateOpen,
			State:   state.breaker.State().String(),
		})
	case domain.PublishMessageRequest:
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)
		topic, payload := msg.Topic, msg.Payload
		actorutil.NewBackgroundTask(ctx, func(goCtx context.Context) (publishResult, error) {
			_, err := state.breaker.Execute(func() (interface{}, error) {
				return nil, state.publisher.Publish(goCtx, topic, payload)
			})
			return publishResult{ReplyTo: replyTo, Error: err}, nil
		}).WithTimeout(state.config.Timeout()).Recover(func(err error) publishResult {
			return publishResult{ReplyTo: replyTo, Error: err}
		}).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.PublishingReceive)
	default:
		state.logger.Debug("bus@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *BusActor) PublishingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		if !breakerRejected(msg.Error) {
			state.metrics.ActorWrite(domain.ACTOR_ID_BUS, msg.Error)
		}
		if msg.Error != nil {
			state.logger.Warn("bus@publishing publish failed", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{ActorResponseMixIn: domain.ResponseWithError(msg.Error)})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_BUS,
			Healthy: state.breaker.State() != gobreaker.StateOpen,
			State:   "publishing",
		})
	case domain.PublishMessageRequest:
		if !state.stash.Stash(ctx, msg) {
			state.logger.Warn("bus@publishing stash full, oldest message dropped")
		}
	default:
		state.logger.Debug("bus@publishing ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/util"
	"github.com/berfenger/rfxcom2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	mu        sync.Mutex
	published map[string]string
	fail      error
	closed    bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(map[string]string)}
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.published[topic] = payload
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePublisher) Published() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make(map[string]string, len(p.published))
	for k, v := range p.published {
		result[k] = v
	}
	return result
}

func (p *fakePublisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func spawnTestBusActor(t *testing.T, publisher *fakePublisher) (*actor.ActorSystem, *actor.PID) {
	cfg := util.LoadTestConfig()
	logger := zap.NewNop()
	as := actorutil.NewActorSystemWithZapLogger(logger)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewBusActor(publisher, cfg.Sink, nil, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_BUS)
	require.NoError(t, err)
	return as, pid
}

func TestBusActorPublish(t *testing.T) {

	assert := assert.New(t)

	publisher := newFakePublisher()
	as, pid := spawnTestBusActor(t, publisher)
	defer as.Shutdown()

	as.Root.Send(pid, domain.PublishMessageRequest{Topic: "home/garden/temperature", Payload: "21.5"})
	res, err := as.Root.RequestFuture(pid, domain.PublishMessageRequest{Topic: "home/rain", Payload: "3.0"}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.PublishMessageResponse)
	require.True(t, ok)
	assert.False(resp.HasResponseError())

	assert.Equal(map[string]string{
		"home/garden/temperature": "21.5",
		"home/rain":               "3.0",
	}, publisher.Published())
	assert.True(requestHealth(t, as, pid).Healthy)

	require.NoError(t, as.Root.StopFuture(pid).Wait())
	assert.True(publisher.Closed())
}

func TestBusActorPublishError(t *testing.T) {

	publisher := newFakePublisher()
	publisher.fail = errors.New("redis: connection pool timeout")
	as, pid := spawnTestBusActor(t, publisher)
	defer as.Shutdown()

	res, err := as.Root.RequestFuture(pid, domain.PublishMessageRequest{Topic: "home/rain", Payload: "3.0"}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.PublishMessageResponse)
	require.True(t, ok)
	assert.ErrorContains(t, resp.GetResponseError(), "pool timeout")
}

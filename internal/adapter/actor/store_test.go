package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/metrics"
	"github.com/berfenger/rfxcom2mqtt/internal/util"
	"github.com/berfenger/rfxcom2mqtt/internal/util/actorutil"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu       sync.Mutex
	readings []rfxcom.Reading
	names    []string
	calls    int
	fail     error
	block    bool
}

func (s *fakeStore) StoreReading(ctx context.Context, reading rfxcom.Reading, name string) error {
	s.mu.Lock()
	s.calls++
	fail, block := s.fail, s.block
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail != nil {
		return fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, reading)
	s.names = append(s.names, name)
	return nil
}

func (s *fakeStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeStore) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

type fakeCatalog struct {
	mu    sync.Mutex
	saved []domain.SensorRecord
}

func (c *fakeCatalog) LoadSensors(ctx context.Context) ([]domain.SensorRecord, error) {
	return nil, nil
}

func (c *fakeCatalog) SaveSensor(ctx context.Context, sensor domain.SensorRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, sensor)
	return nil
}

func (c *fakeCatalog) RenameSensor(ctx context.Context, sensor domain.SensorRecord) error {
	return nil
}

func (c *fakeCatalog) Saved() []domain.SensorRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.SensorRecord(nil), c.saved...)
}

var testReading = rfxcom.Reading{
	Identity:  rfxcom.Identity{Major: 0xA3, Minor: 2},
	Type:      rfxcom.TypeTemperatureHumidity,
	Subtype:   1,
	Data:      rfxcom.TempHumidity{Temperature: 20, Humidity: 50},
	Signal:    2,
	Battery:   3,
	Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
}

func spawnTestStoreActor(t *testing.T, store *fakeStore, catalog *fakeCatalog, m *metrics.AppMetrics) (*actor.ActorSystem, *actor.PID) {
	cfg := util.LoadTestConfig()
	logger := zap.NewNop()
	as := actorutil.NewActorSystemWithZapLogger(logger)

	props := actor.PropsFromProducer(func() actor.Actor {
		if catalog == nil {
			return NewStoreActor(domain.ACTOR_ID_STORE_SQL, store, nil, cfg.Sink, m, logger)
		}
		return NewStoreActor(domain.ACTOR_ID_STORE_SQL, store, catalog, cfg.Sink, m, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_STORE_SQL)
	require.NoError(t, err)
	return as, pid
}

func storeReading(t *testing.T, as *actor.ActorSystem, pid *actor.PID, name string) domain.StoreReadingResponse {
	res, err := as.Root.RequestFuture(pid, domain.StoreReadingRequest{Reading: testReading, Name: name}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.StoreReadingResponse)
	require.True(t, ok)
	return resp
}

func TestStoreActorWrites(t *testing.T) {

	assert := assert.New(t)

	store := &fakeStore{}
	m := metrics.NewAppMetrics(metrics.NewRegistry())
	as, pid := spawnTestStoreActor(t, store, nil, m)
	defer as.Shutdown()

	// fire and forget writes keep their order
	for _, name := range []string{"a", "b", "c"} {
		as.Root.Send(pid, domain.StoreReadingRequest{Reading: testReading, Name: name})
	}
	resp := storeReading(t, as, pid, "d")
	assert.False(resp.HasResponseError())
	assert.Equal([]string{"a", "b", "c", "d"}, store.Names())
	assert.Equal(4.0, testutil.ToFloat64(m.ActorWritesTotal.WithLabelValues(domain.ACTOR_ID_STORE_SQL, metrics.WRITE_RESULT_OK)))

	health := requestHealth(t, as, pid)
	assert.True(health.Healthy)
	assert.Equal("closed", health.State)
}

func TestStoreActorBreakerOpens(t *testing.T) {

	assert := assert.New(t)

	store := &fakeStore{fail: errors.New("connection refused")}
	m := metrics.NewAppMetrics(metrics.NewRegistry())
	as, pid := spawnTestStoreActor(t, store, nil, m)
	defer as.Shutdown()

	assert.ErrorContains(storeReading(t, as, pid, "").GetResponseError(), "connection refused")
	assert.ErrorContains(storeReading(t, as, pid, "").GetResponseError(), "connection refused")
	// breaker_failures = 2
	assert.ErrorIs(storeReading(t, as, pid, "").GetResponseError(), gobreaker.ErrOpenState)
	assert.Equal(2, store.Calls())
	assert.Equal(2.0, testutil.ToFloat64(m.ActorWritesTotal.WithLabelValues(domain.ACTOR_ID_STORE_SQL, metrics.WRITE_RESULT_ERROR)))

	health := requestHealth(t, as, pid)
	assert.False(health.Healthy)
	assert.Equal("open", health.State)
}

func TestStoreActorTimeout(t *testing.T) {

	store := &fakeStore{block: true}
	as, pid := spawnTestStoreActor(t, store, nil, nil)
	defer as.Shutdown()

	start := time.Now()
	resp := storeReading(t, as, pid, "")
	assert.Error(t, resp.GetResponseError())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStoreActorRegisterSensor(t *testing.T) {

	assert := assert.New(t)

	store := &fakeStore{}
	catalog := &fakeCatalog{}
	as, pid := spawnTestStoreActor(t, store, catalog, nil)
	defer as.Shutdown()

	sensor := domain.SensorRecord{Identity: testReading.Identity, Type: testReading.Type, Name: testReading.Identity.Label()}
	res, err := as.Root.RequestFuture(pid, domain.RegisterSensorRequest{Sensor: sensor}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.RegisterSensorResponse)
	require.True(t, ok)
	assert.False(resp.HasResponseError())
	assert.Equal([]domain.SensorRecord{sensor}, catalog.Saved())
}

func TestStoreActorWithoutCatalog(t *testing.T) {

	store := &fakeStore{}
	as, pid := spawnTestStoreActor(t, store, nil, nil)
	defer as.Shutdown()

	as.Root.Send(pid, domain.StoreReadingRequest{Reading: testReading, Name: "a"})
	as.Root.Send(pid, domain.RegisterSensorRequest{Sensor: domain.SensorRecord{Identity: testReading.Identity}})
	as.Root.Send(pid, domain.StoreReadingRequest{Reading: testReading, Name: "b"})
	storeReading(t, as, pid, "c")
	assert.Equal(t, []string{"a", "b", "c"}, store.Names())
}

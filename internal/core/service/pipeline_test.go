package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/metrics"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	readings []rfxcom.Reading
	err      error
}

func (s *recordingSink) Accept(reading rfxcom.Reading) error {
	s.readings = append(s.readings, reading)
	return s.err
}

func (s *recordingSink) Name() string {
	return "recording"
}

type timeoutReader struct{}

func (timeoutReader) Read([]byte) (int, error) {
	time.Sleep(5 * time.Millisecond)
	return 0, rfxcom.ErrReadTimeout
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("input/output error")
}

func newTestPipeline(stream *rfxcom.TestStream, opts ...PipelineOption) (*Pipeline, *SensorRegistry) {
	reg := NewSensorRegistry(nil, zap.NewNop())
	p := NewPipeline(rfxcom.NewFrameReader(stream, time.Second),
		rfxcom.NewDecoder(rfxcom.DefaultDecoderOptions()), reg, zap.NewNop(), opts...)
	return p, reg
}

func TestPipelineForwardsChangedReadings(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	stream := rfxcom.NewTestStream().
		Frame(rfxcom.TempHumidityPayload(thId, 20, 50, 2, 3)).
		Bytes(0).
		Frame(rfxcom.TempHumidityPayload(thId, 20, 50, 2, 3)).
		Frame([]byte{32, 0, 0, 0x01, 0x02, 0xFF}).
		Frame([]byte{90, 1, 0, 0x01, 0x02}).
		Frame([]byte{0x10, 0, 0, 0x01, 0x02, 0x00}).
		Frame(rfxcom.WindPayload(rainId, 4, 90, 1, 2, 3, 4, 5, 6)[:10]).
		Frame(rfxcom.TempHumidityPayload(thId, 20, 50, 2, 4)).
		Frame(rfxcom.RainPayload(rainId, 0.5, 100, 5, 9)).
		Bytes(12, 0x52)

	reg := prometheus.NewRegistry()
	m := metrics.NewAppMetrics(reg)
	var newSensors []domain.SensorRecord
	p, registry := newTestPipeline(stream,
		WithMetrics(m),
		WithClock(func() time.Time { return t0 }),
		WithNewSensorHook(func(rec domain.SensorRecord) { newSensors = append(newSensors, rec) }))

	sink := &recordingSink{}
	require.NoError(p.Run(context.Background(), sink))

	require.Len(sink.readings, 3)
	assert.Equal(uint8(3), sink.readings[0].Battery)
	assert.Equal(uint8(4), sink.readings[1].Battery)
	assert.Equal(rfxcom.TypeRain, sink.readings[2].Type)
	assert.Equal(t0, sink.readings[0].Timestamp)

	assert.Equal(2, registry.Len(), "ignored and failed frames never reach the registry")
	require.Len(newSensors, 2)
	assert.Equal(thId, newSensors[0].Identity)
	assert.Equal(rainId, newSensors[1].Identity)

	assert.Equal(8.0, testutil.ToFloat64(m.FramesTotal))
	assert.Equal(1.0, testutil.ToFloat64(m.ShortReadsTotal))
	assert.Equal(2.0, testutil.ToFloat64(m.DecodeTotal.WithLabelValues(metrics.DECODE_RESULT_IGNORED)))
	assert.Equal(1.0, testutil.ToFloat64(m.DecodeTotal.WithLabelValues(metrics.DECODE_RESULT_UNSUPPORTED)))
	assert.Equal(1.0, testutil.ToFloat64(m.DecodeTotal.WithLabelValues(metrics.DECODE_RESULT_ERROR)))
	assert.Equal(4.0, testutil.ToFloat64(m.DecodeTotal.WithLabelValues(metrics.DECODE_RESULT_OK)))
	assert.Equal(2.0, testutil.ToFloat64(m.ChangedTotal.WithLabelValues("temperature")))
	assert.Equal(2.0, testutil.ToFloat64(m.SensorsGauge))
}

func TestPipelineBlacklistNeverReachesSinks(t *testing.T) {

	stream := rfxcom.NewTestStream()
	for _, code := range rfxcom.DefaultBlacklist {
		payload := rfxcom.TempHumidityPayload(thId, 20, 50, 2, 3)
		payload[0] = code
		stream.Frame(payload)
		stream.Frame([]byte{code})
	}
	p, registry := newTestPipeline(stream)
	sink := &recordingSink{}

	assert.NoError(t, p.Run(context.Background(), sink))
	assert.Empty(t, sink.readings)
	assert.Equal(t, 0, registry.Len())
}

func TestPipelineSinkErrorDoesNotStop(t *testing.T) {

	stream := rfxcom.NewTestStream().
		Frame(rfxcom.TempHumidityPayload(thId, 20, 50, 2, 3)).
		Frame(rfxcom.TempHumidityPayload(thId, 21, 50, 2, 3))
	p, _ := newTestPipeline(stream)

	failing := &recordingSink{err: errors.New("queue full")}
	ok := &recordingSink{}
	assert.NoError(t, p.Run(context.Background(), failing, ok))
	assert.Len(t, failing.readings, 2)
	assert.Len(t, ok.readings, 2)
}

func TestPipelineStopsOnCancel(t *testing.T) {

	reg := NewSensorRegistry(nil, zap.NewNop())
	p := NewPipeline(rfxcom.NewFrameReader(timeoutReader{}, time.Second),
		rfxcom.NewDecoder(rfxcom.DefaultDecoderOptions()), reg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, p.Run(ctx))
}

func TestPipelineDeviceError(t *testing.T) {

	reg := NewSensorRegistry(nil, zap.NewNop())
	p := NewPipeline(rfxcom.NewFrameReader(brokenReader{}, time.Second),
		rfxcom.NewDecoder(rfxcom.DefaultDecoderOptions()), reg, zap.NewNop())

	err := p.Run(context.Background())
	assert.ErrorContains(t, err, "input/output error")
}

func TestDetect(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	stream := rfxcom.NewTestStream().
		Frame(rfxcom.TempHumidityPayload(thId, 20, 50, 2, 3)).
		Frame(rfxcom.RainPayload(rainId, 0.5, 100, 5, 9))
	p, registry := newTestPipeline(stream)
	registry.Preload([]domain.SensorRecord{{Identity: rfxcom.Identity{Major: 7, Minor: 7}, Name: "Attic"}})

	router := NewTopicRouter([]domain.RouteRule{
		{Identity: thId, TopicTemplate: "home/garden/temperature:temperature"},
	}, zap.NewNop())

	detected, err := p.Detect(context.Background(), time.Minute, router)
	require.NoError(err)
	require.Len(detected, 2, "preloaded but unseen sensors are not reported")
	assert.Equal(rainId, detected[0].Identity)
	assert.False(detected[0].Mapped)
	assert.Equal(thId, detected[1].Identity)
	assert.True(detected[1].Mapped)

	summary := FormatDetectSummary(detected)
	assert.Contains(summary, "  Channel  1, Id   17, Type 85 rain (")
	assert.Contains(summary, "* Channel  2, Id  163, Type 82 temperature (20.0C, 50%)")
}

func TestDetectDeadline(t *testing.T) {

	reg := NewSensorRegistry(nil, zap.NewNop())
	p := NewPipeline(rfxcom.NewFrameReader(timeoutReader{}, time.Second),
		rfxcom.NewDecoder(rfxcom.DefaultDecoderOptions()), reg, zap.NewNop())

	start := time.Now()
	detected, err := p.Detect(context.Background(), 50*time.Millisecond, nil)
	assert.NoError(t, err)
	assert.Empty(t, detected)
	assert.Less(t, time.Since(start), 2*time.Second)
}

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAppMetricsCounters(t *testing.T) {

	assert := assert.New(t)

	m := NewAppMetrics(NewRegistry())

	m.FrameRead()
	m.FrameRead()
	m.Decoded(DECODE_RESULT_OK)
	m.Decoded(DECODE_RESULT_IGNORED)
	m.ActorWrite("mqtt", nil)
	m.ActorWrite("mqtt", errors.New("broker down"))
	m.Sensors(3)

	assert.Equal(2.0, testutil.ToFloat64(m.FramesTotal))
	assert.Equal(1.0, testutil.ToFloat64(m.DecodeTotal.WithLabelValues(DECODE_RESULT_OK)))
	assert.Equal(1.0, testutil.ToFloat64(m.ActorWritesTotal.WithLabelValues("mqtt", WRITE_RESULT_ERROR)))
	assert.Equal(3.0, testutil.ToFloat64(m.SensorsGauge))
}

func TestNilAppMetrics(t *testing.T) {

	var m *AppMetrics
	assert.NotPanics(t, func() {
		m.FrameRead()
		m.ShortRead()
		m.Decoded(DECODE_RESULT_ERROR)
		m.Changed("rain")
		m.SinkError("store")
		m.ActorWrite("bus", nil)
		m.Sensors(1)
	})
}

package service

import (
	"testing"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolvePlaceholders(t *testing.T) {

	assert := assert.New(t)

	fields := thReading(20, 50, 2, 3, t0).Measurements()
	pub, err := Resolve("sensors/{humidity}/temp:temperature", fields)
	assert.NoError(err)
	assert.Equal("sensors/50/temp", pub.Topic)
	assert.Equal("20.0", pub.Payload())

	pub, err = Resolve("home/garden/fahrenheit:temperature.fahrenheit", fields)
	assert.NoError(err)
	assert.Equal("68.0", pub.Payload())

	pub, err = Resolve("home/{temperature.farenheit}:temperature.farenheit", fields)
	assert.NoError(err, "legacy spelling")
	assert.Equal("home/68.0", pub.Topic)
	assert.Equal(rfxcom.MEASUREMENT_TEMPERATURE_FAHRENHEIT, pub.Measurement)
	assert.Equal("68.0", pub.Payload())

	_, err = Resolve("sensors/{pressure}/temp:temperature", fields)
	assert.ErrorIs(err, domain.ErrInvalidRouteKey)

	_, err = Resolve("sensors/garden:pressure", fields)
	assert.ErrorIs(err, domain.ErrInvalidRouteKey, "unknown value field")

	_, err = Resolve("sensors/garden", fields)
	assert.ErrorIs(err, domain.ErrInvalidRouteKey, "no separator")
}

func TestResolveSplitsOnLastSeparator(t *testing.T) {

	pub, err := Resolve("mqtt:home/{signal}:battery", thReading(20, 50, 2, 3, t0).Measurements())
	require.NoError(t, err)
	assert.Equal(t, "mqtt:home/2", pub.Topic)
	assert.Equal(t, "3", pub.Payload())
}

func TestRouterRoute(t *testing.T) {

	assert := assert.New(t)

	router := NewTopicRouter([]domain.RouteRule{
		{Identity: thId, TopicTemplate: "home/garden/temperature:temperature", Line: 2},
		{Identity: thId, TopicTemplate: "home/garden/humidity:humidity", Line: 3},
		{Identity: rainId, TopicTemplate: "home/rain:rain.total", Line: 5},
	}, zap.NewNop())

	assert.True(router.HasRoute(thId))
	assert.False(router.HasRoute(rfxcom.Identity{Major: 1, Minor: 1}))
	assert.Len(router.Rules(thId), 2)

	pubs := router.Route(thReading(20, 50, 2, 3, t0))
	assert.Equal([]domain.Publication{
		{Topic: "home/garden/temperature", Measurement: "temperature", Value: rfxcom.DecimalValue(20)},
		{Topic: "home/garden/humidity", Measurement: "humidity", Value: rfxcom.IntValue(50)},
	}, pubs)

	// only the humidity topic changed
	pubs = router.Route(thReading(20, 55, 2, 3, t0))
	assert.Equal([]domain.Publication{
		{Topic: "home/garden/humidity", Measurement: "humidity", Value: rfxcom.IntValue(55)},
	}, pubs)

	// a battery change touches no routed topic
	assert.Empty(router.Route(thReading(20, 55, 2, 1, t0)))

	other := thReading(20, 55, 2, 1, t0)
	other.Identity = rfxcom.Identity{Major: 9, Minor: 9}
	assert.Empty(router.Route(other), "no rules")
}

func TestRouterSkipsInvalidRule(t *testing.T) {

	assert := assert.New(t)

	core, logs := observer.New(zapcore.WarnLevel)
	router := NewTopicRouter([]domain.RouteRule{
		{Identity: thId, TopicTemplate: "home/{pressure}/value:temperature", Line: 2},
		{Identity: thId, TopicTemplate: "home/garden/temperature:temperature", Line: 3},
	}, zap.New(core))

	pubs := router.Route(thReading(20, 50, 2, 3, t0))
	assert.Equal([]domain.Publication{
		{Topic: "home/garden/temperature", Measurement: "temperature", Value: rfxcom.DecimalValue(20)},
	}, pubs)
	assert.Equal(1, logs.FilterMessage("route skipped").Len())
}

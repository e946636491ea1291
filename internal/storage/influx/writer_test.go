package influx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/config"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriteAPI struct {
	points []*write.Point
	err    error
}

func (f *fakeWriteAPI) WriteRecord(ctx context.Context, line ...string) error {
	return f.err
}

func (f *fakeWriteAPI) WritePoint(ctx context.Context, point ...*write.Point) error {
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, point...)
	return nil
}

func (f *fakeWriteAPI) EnableBatching() {
}

func (f *fakeWriteAPI) Flush(ctx context.Context) error {
	return nil
}

var ts = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func thReading() rfxcom.Reading {
	return rfxcom.Reading{
		Identity:  rfxcom.Identity{Major: 0xA3, Minor: 2},
		Type:      rfxcom.TypeTemperatureHumidity,
		Data:      rfxcom.TempHumidity{Temperature: 20, Humidity: 50},
		Signal:    2,
		Battery:   3,
		Timestamp: ts,
	}
}

func TestPoint(t *testing.T) {

	assert := assert.New(t)

	p := Point(thReading(), "Garden")
	assert.Equal("temperature", p.Name())
	assert.Equal(ts, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(map[string]string{"sensor": "41730", "major": "163", "minor": "2", "name": "Garden"}, tags)

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(20.0, fields["temperature"])
	assert.Equal(68.0, fields["temperature.fahrenheit"])
	assert.Equal(int64(50), fields["humidity"])
	assert.Equal(int64(3), fields["battery"])
}

func TestPointDefaultName(t *testing.T) {

	p := Point(thReading(), "")
	for _, tag := range p.TagList() {
		if tag.Key == "name" {
			assert.Equal(t, "Sensor 0xa3.2", tag.Value)
		}
	}
}

func TestStoreReading(t *testing.T) {

	api := &fakeWriteAPI{}
	w := NewWriterWithAPI(api)

	require.NoError(t, w.StoreReading(context.Background(), thReading(), "Garden"))
	assert.Len(t, api.points, 1)

	api.err = errors.New("unauthorized")
	err := w.StoreReading(context.Background(), thReading(), "Garden")
	assert.ErrorContains(t, err, "unauthorized")
}

func TestNewWriterIncomplete(t *testing.T) {

	_, err := NewWriter(configWithoutBucket())
	assert.Error(t, err)
}

func configWithoutBucket() config.InfluxConfig {
	return config.InfluxConfig{Enable: true, URL: "http://localhost:8086", Org: "org"}
}

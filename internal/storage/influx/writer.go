package influx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/config"
	"github.com/berfenger/rfxcom2mqtt/internal/core/port"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Writer stores one point per reading. The measurement is the sensor type
// name; tags identify the sensor; fields are the flattened measurements.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

var _ port.ReadingStore = (*Writer)(nil)

func NewWriter(cfg config.InfluxConfig) (*Writer, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

// NewWriterWithAPI wraps an existing blocking write API.
func NewWriterWithAPI(writeAPI api.WriteAPIBlocking) *Writer {
	return &Writer{writeAPI: writeAPI}
}

func (w *Writer) StoreReading(ctx context.Context, reading rfxcom.Reading, name string) error {
	if err := w.writeAPI.WritePoint(ctx, Point(reading, name)); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (w *Writer) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

func Point(reading rfxcom.Reading, name string) *write.Point {
	ts := reading.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if name == "" {
		name = reading.Identity.Label()
	}
	tags := map[string]string{
		"sensor": strconv.Itoa(int(reading.Identity.Key())),
		"major":  strconv.Itoa(int(reading.Identity.Major)),
		"minor":  strconv.Itoa(int(reading.Identity.Minor)),
		"name":   name,
	}
	measurements := reading.Measurements()
	fields := make(map[string]interface{}, len(measurements))
	for k, v := range measurements {
		if v.Integer {
			fields[k] = int64(v.Number)
		} else {
			fields[k] = v.Number
		}
	}
	return influxdb2.NewPoint(reading.Type.String(), tags, fields, ts)
}

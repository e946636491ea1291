package port

import (
	"context"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"
)

// FrameSource yields complete frames; *rfxcom.FrameReader implements it.
type FrameSource interface {
	Next(ctx context.Context) (rfxcom.Frame, error)
}

// ReadingSink receives every changed reading from the pipeline. Accept must
// not block on delivery.
type ReadingSink interface {
	Accept(reading rfxcom.Reading) error
}

// ReadingStore appends one reading to a time series or table store.
type ReadingStore interface {
	StoreReading(ctx context.Context, reading rfxcom.Reading, name string) error
}

// SensorCatalog persists sensor names.
type SensorCatalog interface {
	LoadSensors(ctx context.Context) ([]domain.SensorRecord, error)
	// SaveSensor inserts a sensor, keeping an existing row untouched.
	SaveSensor(ctx context.Context, sensor domain.SensorRecord) error
	// RenameSensor stores sensor.Name, inserting the sensor when missing.
	RenameSensor(ctx context.Context, sensor domain.SensorRecord) error
}

// MessagePublisher delivers one (topic, payload) pair to a message bus.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, payload string) error
	Close() error
}

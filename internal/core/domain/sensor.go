package domain

import (
	"errors"
	"time"

	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"
)

var (
	ErrInvalidRouteKey = errors.New("invalid route key")
	ErrMissingConfig   = errors.New("missing configuration")
	ErrUnknownSensor   = errors.New("unknown sensor")
)

// SensorRecord is the registry entry of one physical sensor.
type SensorRecord struct {
	Identity    rfxcom.Identity
	Type        rfxcom.SensorType
	Name        string
	LastReading *rfxcom.Reading
	FirstSeen   time.Time
	LastChanged time.Time
}

func (r SensorRecord) Key() rfxcom.SensorKey {
	return r.Identity.Key()
}

// RouteRule maps one sensor to a topic template. TopicTemplate is the whole
// configured line, e.g. "home/{humidity}/temp:temperature"; Line is the
// position in the route file, for diagnostics.
type RouteRule struct {
	Identity      rfxcom.Identity
	TopicTemplate string
	Line          int
}

// Publication is one resolved (topic, value) pair. Measurement names the
// reading field the value came from.
type Publication struct {
	Topic       string
	Measurement string
	Value       rfxcom.Value
}

func (p Publication) Payload() string {
	return p.Value.String()
}

// DetectedSensor is a detect mode summary row.
type DetectedSensor struct {
	SensorRecord
	Mapped bool
}

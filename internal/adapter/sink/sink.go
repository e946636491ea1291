package sink

import (
	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/core/port"
	"github.com/berfenger/rfxcom2mqtt/internal/core/service"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"github.com/asynkron/protoactor-go/actor"
)

// Sender is the fire and forget half of actor.RootContext.
type Sender interface {
	Send(pid *actor.PID, message interface{})
}

// RouteSink turns changed readings into publish requests for the master.
type RouteSink struct {
	sender Sender
	master *actor.PID
	router *service.TopicRouter
	retain bool

	registry  *service.SensorRegistry
	announced map[string]struct{}
}

var _ port.ReadingSink = (*RouteSink)(nil)

func NewRouteSink(sender Sender, master *actor.PID, router *service.TopicRouter, retain bool) *RouteSink {
	return &RouteSink{sender: sender, master: master, router: router, retain: retain}
}

// WithDiscovery makes the sink report every topic it publishes for the
// first time, together with the sensor record from registry.
func (s *RouteSink) WithDiscovery(registry *service.SensorRegistry) *RouteSink {
	s.registry = registry
	s.announced = make(map[string]struct{})
	return s
}

func (s *RouteSink) Name() string {
	return "route"
}

func (s *RouteSink) Accept(reading rfxcom.Reading) error {
	for _, pub := range s.router.Route(reading) {
		s.sender.Send(s.master, domain.PublishMessageRequest{
			Topic:   pub.Topic,
			Payload: pub.Payload(),
			Retain:  s.retain,
		})
		s.discover(reading, pub)
	}
	return nil
}

func (s *RouteSink) discover(reading rfxcom.Reading, pub domain.Publication) {
	if s.registry == nil {
		return
	}
	if _, ok := s.announced[pub.Topic]; ok {
		return
	}
	rec, ok := s.registry.Get(reading.Identity.Key())
	if !ok {
		return
	}
	s.announced[pub.Topic] = struct{}{}
	s.sender.Send(s.master, domain.DiscoverSensorRequest{
		Sensor:      rec,
		Topic:       pub.Topic,
		Measurement: pub.Measurement,
	})
}

// StoreSink forwards every changed reading, labelled with its sensor name,
// to the storage actors.
type StoreSink struct {
	sender   Sender
	master   *actor.PID
	registry *service.SensorRegistry
}

var _ port.ReadingSink = (*StoreSink)(nil)

func NewStoreSink(sender Sender, master *actor.PID, registry *service.SensorRegistry) *StoreSink {
	return &StoreSink{sender: sender, master: master, registry: registry}
}

func (s *StoreSink) Name() string {
	return "store"
}

func (s *StoreSink) Accept(reading rfxcom.Reading) error {
	var name string
	if rec, ok := s.registry.Get(reading.Identity.Key()); ok {
		name = rec.Name
	}
	s.sender.Send(s.master, domain.StoreReadingRequest{Reading: reading, Name: name})
	return nil
}

// RegisterHook returns a pipeline new sensor hook that asks the master to
// persist sensor.
func RegisterHook(sender Sender, master *actor.PID) func(domain.SensorRecord) {
	return func(sensor domain.SensorRecord) {
		sender.Send(master, domain.RegisterSensorRequest{Sensor: sensor})
	}
}

// NopSink drops every reading.
type NopSink struct{}

func (NopSink) Name() string {
	return "nop"
}

func (NopSink) Accept(rfxcom.Reading) error {
	return nil
}

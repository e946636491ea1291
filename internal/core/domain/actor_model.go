package domain

import (
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_STORE_SQL    = "store_sql"
	ACTOR_ID_STORE_INFLUX = "store_influx"
	ACTOR_ID_BUS          = "bus"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// PublishMessageRequest delivers one routed value to every publishing
// actor (MQTT broker, Redis bus mirror).
type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

// StoreReadingRequest appends one changed reading to every storage actor.
type StoreReadingRequest struct {
	ActorRequestMixIn
	Reading rfxcom.Reading
	Name    string
}

type StoreReadingResponse struct {
	ActorResponseMixIn
}

// RegisterSensorRequest inserts a newly seen sensor into the catalog.
type RegisterSensorRequest struct {
	ActorRequestMixIn
	Sensor SensorRecord
}

type RegisterSensorResponse struct {
	ActorResponseMixIn
}

// DiscoverSensorRequest reports a routed topic so that it can be announced
// to Home Assistant.
type DiscoverSensorRequest struct {
	Sensor      SensorRecord
	Topic       string
	Measurement string
}

// PublishDiscoveryRequest asks the MQTT actor to publish retained discovery
// configs.
type PublishDiscoveryRequest struct {
	Sensors []GenericSensor
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id       string
	Healthy  bool
	State    string
	Children []ActorHealthResponse
}

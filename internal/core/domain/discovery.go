package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE       = "bridge"
	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_TEMPERATURE     = "temperature"
	DEVICE_CLASS_HUMIDITY        = "humidity"
	DEVICE_CLASS_PRECIPITATION   = "precipitation"
	DEVICE_CLASS_PRECIP_INTENS   = "precipitation_intensity"
	DEVICE_CLASS_WIND_SPEED      = "wind_speed"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
)

// Device groups discovery entities in the home automation UI.
type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

// GenericSensor is one discoverable entity. An empty StateTopic means the
// bridge state topic.
type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	StateTopic        string
	UnitOfMeasurement string
	StateClass        string
	DeviceClass       string
	EntityCategory    string
}

type measurementClass struct {
	deviceClass string
	stateClass  string
	unit        string
	diagnostic  bool
}

var measurementClasses = map[string]measurementClass{
	rfxcom.MEASUREMENT_TEMPERATURE:            {DEVICE_CLASS_TEMPERATURE, STATE_CLASS_MEASUREMENT, "°C", false},
	rfxcom.MEASUREMENT_TEMPERATURE_CELSIUS:    {DEVICE_CLASS_TEMPERATURE, STATE_CLASS_MEASUREMENT, "°C", false},
	rfxcom.MEASUREMENT_TEMPERATURE_FAHRENHEIT: {DEVICE_CLASS_TEMPERATURE, STATE_CLASS_MEASUREMENT, "°F", false},
	rfxcom.MEASUREMENT_WIND_CHILL:             {DEVICE_CLASS_TEMPERATURE, STATE_CLASS_MEASUREMENT, "°C", false},
	rfxcom.MEASUREMENT_HUMIDITY:               {DEVICE_CLASS_HUMIDITY, STATE_CLASS_MEASUREMENT, "%", false},
	rfxcom.MEASUREMENT_RAIN_RATE:              {DEVICE_CLASS_PRECIP_INTENS, STATE_CLASS_MEASUREMENT, "mm/h", false},
	rfxcom.MEASUREMENT_RAIN_TOTAL:             {DEVICE_CLASS_PRECIPITATION, STATE_CLASS_TOTAL_INCREASING, "mm", false},
	rfxcom.MEASUREMENT_UV:                     {"", STATE_CLASS_MEASUREMENT, "UV index", false},
	rfxcom.MEASUREMENT_WIND_DIRECTION:         {"", STATE_CLASS_MEASUREMENT, "°", false},
	rfxcom.MEASUREMENT_WIND_SPEED_AVERAGE:     {DEVICE_CLASS_WIND_SPEED, STATE_CLASS_MEASUREMENT, "m/s", false},
	rfxcom.MEASUREMENT_WIND_SPEED_CURRENT:     {DEVICE_CLASS_WIND_SPEED, STATE_CLASS_MEASUREMENT, "m/s", false},
	rfxcom.MEASUREMENT_SIGNAL:                 {"", STATE_CLASS_MEASUREMENT, "", true},
	rfxcom.MEASUREMENT_BATTERY:                {"", STATE_CLASS_MEASUREMENT, "", true},
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("rfxcom_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "RFXCOM",
		Model:        "rfxcom2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("RFXCOM bridge %s", md5HashShort(baseTopic)),
	}
}

// SensorDevice describes one radio sensor, attached to the bridge.
func SensorDevice(sensor SensorRecord, bridge Device) Device {
	return Device{
		Id:        fmt.Sprintf("rfxcom_%d", uint16(sensor.Key())),
		Name:      sensor.Name,
		Model:     sensor.Type.String(),
		ViaDevice: bridge.Id,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

// MeasurementSensor announces the routed topic that carries measurement of
// the sensor on device.
func MeasurementSensor(device Device, measurement string, topic string) GenericSensor {
	id := topicId(topic)
	sensor := GenericSensor{
		Device:     device,
		Id:         id,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       measurement,
		UniqueId:   uniqueId(device.Id, id),
		StateTopic: topic,
	}
	if class, ok := measurementClasses[measurement]; ok {
		sensor.DeviceClass = class.deviceClass
		sensor.StateClass = class.stateClass
		sensor.UnitOfMeasurement = class.unit
		if class.diagnostic {
			sensor.EntityCategory = ENTITY_CLASS_DIAGNOSTIC
		}
	}
	return sensor
}

func topicId(topic string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return '_'
	}, topic)
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

package rfxcom

import (
	"fmt"
	"strconv"
)

// SensorType is the one byte packet type code of an RFXCOM frame.
type SensorType uint8

const (
	TypeTemperatureHumidity SensorType = 82
	TypeRain                SensorType = 85
	TypeWind                SensorType = 86
	TypeUV                  SensorType = 87
)

const (
	TYPE_CODE_SECURITY1 = 32
	TYPE_CODE_SECURITY2 = 33
	TYPE_CODE_ENERGY    = 90
)

// DefaultBlacklist holds the type codes that are dropped without any log.
var DefaultBlacklist = []uint8{
	TYPE_CODE_SECURITY1,
	TYPE_CODE_SECURITY2,
	TYPE_CODE_ENERGY,
}

func (t SensorType) String() string {
	switch t {
	case TypeTemperatureHumidity:
		return "temperature"
	case TypeRain:
		return "rain"
	case TypeWind:
		return "wind"
	case TypeUV:
		return "uv"
	default:
		return fmt.Sprintf("type_%d", uint8(t))
	}
}

func (t SensorType) Supported() bool {
	switch t {
	case TypeTemperatureHumidity, TypeRain, TypeWind, TypeUV:
		return true
	}
	return false
}

// ParseSensorType accepts a numeric code ("82") or a type name ("temperature").
func ParseSensorType(s string) (SensorType, error) {
	for _, t := range []SensorType{TypeTemperatureHumidity, TypeRain, TypeWind, TypeUV} {
		if s == t.String() {
			return t, nil
		}
	}
	code, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid sensor type %q", s)
	}
	return SensorType(code), nil
}

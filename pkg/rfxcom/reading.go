package rfxcom

import (
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	MEASUREMENT_TEMPERATURE            = "temperature"
	MEASUREMENT_TEMPERATURE_CELSIUS    = "temperature.celsius"
	MEASUREMENT_TEMPERATURE_FAHRENHEIT = "temperature.fahrenheit"
	MEASUREMENT_HUMIDITY               = "humidity"
	MEASUREMENT_RAIN_RATE              = "rain.rate"
	MEASUREMENT_RAIN_TOTAL             = "rain.total"
	MEASUREMENT_UV                     = "uv"
	MEASUREMENT_WIND_DIRECTION         = "wind.direction"
	MEASUREMENT_WIND_SPEED_AVERAGE     = "wind.speed.average"
	MEASUREMENT_WIND_SPEED_CURRENT     = "wind.speed.current"
	MEASUREMENT_WIND_CHILL             = "wind.chill"
	MEASUREMENT_SIGNAL                 = "signal"
	MEASUREMENT_BATTERY                = "battery"
)

// legacy measurement keys still accepted in route files
var measurementAliases = map[string]string{
	"temperature.farenheit": MEASUREMENT_TEMPERATURE_FAHRENHEIT,
}

// CanonicalMeasurement maps a legacy measurement key onto its current name.
func CanonicalMeasurement(key string) string {
	if canonical, ok := measurementAliases[key]; ok {
		return canonical
	}
	return key
}

// Identity names a physical device: the rolling id and the channel.
type Identity struct {
	Major uint8
	Minor uint8
}

type SensorKey uint16

func (id Identity) Key() SensorKey {
	return SensorKey(uint16(id.Major)<<8 | uint16(id.Minor))
}

func (id Identity) Label() string {
	return fmt.Sprintf("Sensor 0x%02x.%d", id.Major, id.Minor)
}

func (k SensorKey) Identity() Identity {
	return Identity{Major: uint8(k >> 8), Minor: uint8(k)}
}

// Value is a measurement value that remembers whether it is integral, so
// that 50 renders as "50" and 20.0 as "20.0".
type Value struct {
	Number  float64
	Integer bool
}

func IntValue(v int) Value {
	return Value{Number: float64(v), Integer: true}
}

func DecimalValue(v float64) Value {
	return Value{Number: v}
}

func (v Value) String() string {
	if v.Integer {
		return strconv.FormatInt(int64(v.Number), 10)
	}
	s := strconv.FormatFloat(v.Number, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Measurement is the typed, type specific part of a Reading. All
// implementations are comparable value types.
type Measurement interface {
	Fields() map[string]Value
	Describe() string
}

type TempHumidity struct {
	Temperature float64
	Humidity    uint8
}

func (m TempHumidity) Fields() map[string]Value {
	return map[string]Value{
		MEASUREMENT_TEMPERATURE:            DecimalValue(m.Temperature),
		MEASUREMENT_TEMPERATURE_CELSIUS:    DecimalValue(m.Temperature),
		MEASUREMENT_TEMPERATURE_FAHRENHEIT: DecimalValue(CelsiusToFahrenheit(m.Temperature)),
		MEASUREMENT_HUMIDITY:               IntValue(int(m.Humidity)),
	}
}

func (m TempHumidity) Describe() string {
	return fmt.Sprintf("%.1fC, %d%%", m.Temperature, m.Humidity)
}

type Rain struct {
	Rate  float64
	Total float64
}

func (m Rain) Fields() map[string]Value {
	return map[string]Value{
		MEASUREMENT_RAIN_RATE:  DecimalValue(m.Rate),
		MEASUREMENT_RAIN_TOTAL: DecimalValue(m.Total),
	}
}

func (m Rain) Describe() string {
	return fmt.Sprintf("%.2f mm, %.1f mm total", m.Rate, m.Total)
}

type UV struct {
	UV               uint8
	Temperature      float64
	TemperatureValid bool
}

func (m UV) Fields() map[string]Value {
	fields := map[string]Value{
		MEASUREMENT_UV: IntValue(int(m.UV)),
	}
	if m.TemperatureValid {
		fields[MEASUREMENT_TEMPERATURE] = DecimalValue(m.Temperature)
	}
	return fields
}

func (m UV) Describe() string {
	if m.TemperatureValid {
		return fmt.Sprintf("%d UV, %.1fC", m.UV, m.Temperature)
	}
	return fmt.Sprintf("%d UV", m.UV)
}

type Wind struct {
	Direction        uint16
	Average          float64
	Instant          float64
	Temperature      float64
	Chill            float64
	TemperatureValid bool
	ChillValid       bool
}

func (m Wind) Fields() map[string]Value {
	fields := map[string]Value{
		MEASUREMENT_WIND_DIRECTION:     IntValue(int(m.Direction)),
		MEASUREMENT_WIND_SPEED_AVERAGE: DecimalValue(m.Average),
		MEASUREMENT_WIND_SPEED_CURRENT: DecimalValue(m.Instant),
	}
	if m.TemperatureValid {
		fields[MEASUREMENT_TEMPERATURE] = DecimalValue(m.Temperature)
	}
	if m.ChillValid {
		fields[MEASUREMENT_WIND_CHILL] = DecimalValue(m.Chill)
	}
	return fields
}

func (m Wind) Describe() string {
	s := fmt.Sprintf("%d direction, %.1f m/s (%.1f avg)", m.Direction, m.Instant, m.Average)
	if m.TemperatureValid && m.ChillValid {
		s += fmt.Sprintf(" %.1fC, %.1fCF", m.Temperature, m.Chill)
	}
	return s
}

// Reading is the decoded result of one frame. It is never modified after
// the decoder returns it.
type Reading struct {
	Identity  Identity
	Type      SensorType
	Subtype   uint8
	Data      Measurement
	Signal    uint8
	Battery   uint8
	Timestamp time.Time
}

// Measurements flattens the typed data plus signal and battery into a
// key/value view used by topic templates and storage.
func (r Reading) Measurements() map[string]Value {
	var fields map[string]Value
	if r.Data != nil {
		fields = r.Data.Fields()
	} else {
		fields = make(map[string]Value, 2)
	}
	fields[MEASUREMENT_SIGNAL] = IntValue(int(r.Signal))
	fields[MEASUREMENT_BATTERY] = IntValue(int(r.Battery))
	return fields
}

// SameValues reports whether both readings carry the same type, measurements,
// signal and battery. Timestamps, subtypes and values hidden by an invalid
// subtype are not compared.
func (r Reading) SameValues(other Reading) bool {
	return r.Type == other.Type &&
		r.Signal == other.Signal &&
		r.Battery == other.Battery &&
		maps.Equal(r.Measurements(), other.Measurements())
}

func (r Reading) String() string {
	desc := ""
	if r.Data != nil {
		desc = r.Data.Describe() + " "
	}
	return fmt.Sprintf("(%3d:%5d) %s(Signal %d, Battery %d)", uint8(r.Type), r.Identity.Key(), desc, r.Signal, r.Battery)
}

func CelsiusToFahrenheit(c float64) float64 {
	return math.Round((c*1.8+32.0)*10) / 10
}

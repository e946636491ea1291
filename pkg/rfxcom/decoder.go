package rfxcom

import (
	"fmt"
	"math"
	"time"
)

const (
	WIND_BODY_LENGTH = 11
)

type DecoderOptions struct {
	Blacklist []uint8
	// UV sensors only report a temperature for this subtype.
	UVTemperatureSubtype uint8
	// Wind sensors only report temperature and chill for this subtype.
	WindTemperatureSubtype uint8
}

func DefaultDecoderOptions() DecoderOptions {
	return DecoderOptions{
		Blacklist:              append([]uint8(nil), DefaultBlacklist...),
		UVTemperatureSubtype:   3,
		WindTemperatureSubtype: 4,
	}
}

// Decoder turns frames into Readings. It holds no per frame state and is
// safe for concurrent use.
type Decoder struct {
	opts      DecoderOptions
	blacklist map[uint8]struct{}
}

func NewDecoder(opts DecoderOptions) *Decoder {
	bl := make(map[uint8]struct{}, len(opts.Blacklist))
	for _, code := range opts.Blacklist {
		bl[code] = struct{}{}
	}
	return &Decoder{
		opts:      opts,
		blacklist: bl,
	}
}

func (d *Decoder) Blacklisted(code uint8) bool {
	_, ok := d.blacklist[code]
	return ok
}

// Decode decodes one frame. Blacklisted types yield ErrIgnored, unknown
// types ErrUnsupportedType and malformed payloads a *DecodeError.
func (d *Decoder) Decode(frame Frame, ts time.Time) (reading Reading, err error) {
	payload := frame.Payload
	if len(payload) == 0 {
		return Reading{}, &DecodeError{Err: fmt.Errorf("%w: empty payload", ErrDecodeFailure)}
	}
	code := payload[0]
	if d.Blacklisted(code) {
		return Reading{}, fmt.Errorf("%w: type %d", ErrIgnored, code)
	}
	stype := SensorType(code)
	if !stype.Supported() {
		return Reading{}, fmt.Errorf("%w: type %d", ErrUnsupportedType, code)
	}
	if len(payload) < HEADER_LENGTH {
		return Reading{}, &DecodeError{
			Code: code,
			Raw:  clone(payload),
			Err:  fmt.Errorf("%w: header needs %d bytes, got %d", ErrDecodeFailure, HEADER_LENGTH, len(payload)),
		}
	}
	subtype := payload[1]

	defer func() {
		if r := recover(); r != nil {
			reading = Reading{}
			err = &DecodeError{
				Code:    code,
				Subtype: subtype,
				Raw:     clone(payload),
				Err:     fmt.Errorf("%w: %v", ErrDecodeFailure, r),
			}
		}
	}()

	body := payload[HEADER_LENGTH:]
	var data Measurement
	var sigbat byte
	switch stype {
	case TypeTemperatureHumidity:
		data, sigbat, err = decodeTempHumidity(body)
	case TypeRain:
		data, sigbat, err = decodeRain(body)
	case TypeUV:
		data, sigbat, err = decodeUV(body, subtype == d.opts.UVTemperatureSubtype)
	case TypeWind:
		data, sigbat, err = decodeWind(body, subtype == d.opts.WindTemperatureSubtype)
	}
	if err != nil {
		return Reading{}, &DecodeError{
			Code:    code,
			Subtype: subtype,
			Raw:     clone(payload),
			Err:     err,
		}
	}

	return Reading{
		Identity:  Identity{Major: payload[3], Minor: payload[4]},
		Type:      stype,
		Subtype:   subtype,
		Data:      data,
		Signal:    sigbat >> 4 & 0x0F,
		Battery:   sigbat & 0x0F,
		Timestamp: ts,
	}, nil
}

// body: tempHi, tempLo, humidity, status, sigbat
func decodeTempHumidity(body []byte) (Measurement, byte, error) {
	if err := requireLength(body, 5); err != nil {
		return nil, 0, err
	}
	return TempHumidity{
		Temperature: DecodeTemperature(body[0], body[1]),
		Humidity:    body[2],
	}, body[4], nil
}

// body: rateHi, rateLo, totalHi, totalMid, totalLo, sigbat
func decodeRain(body []byte) (Measurement, byte, error) {
	if err := requireLength(body, 6); err != nil {
		return nil, 0, err
	}
	rate := int(body[0])<<8 | int(body[1])
	total := int(body[2])<<16 | int(body[3])<<8 | int(body[4])
	return Rain{
		Rate:  float64(rate) / 100.0,
		Total: float64(total) / 10.0,
	}, body[5], nil
}

// body: tempHi, tempLo, uv, sigbat
func decodeUV(body []byte, validTemp bool) (Measurement, byte, error) {
	if err := requireLength(body, 4); err != nil {
		return nil, 0, err
	}
	return UV{
		UV:               body[2],
		Temperature:      DecodeTemperature(body[0], body[1]),
		TemperatureValid: validTemp,
	}, body[3], nil
}

// body: dirHi, dirLo, avgHi, avgLo, instHi, instLo, tempHi, tempLo, chillHi, chillLo, sigbat
func decodeWind(body []byte, validTemp bool) (Measurement, byte, error) {
	if len(body) != WIND_BODY_LENGTH {
		return nil, 0, fmt.Errorf("%w: unsupported wind sensor variant, body has %d bytes, expected %d",
			ErrDecodeFailure, len(body), WIND_BODY_LENGTH)
	}
	direction := uint16(body[0])<<8 | uint16(body[1])
	avg := int(body[2])<<8 | int(body[3])
	inst := int(body[4])<<8 | int(body[5])
	return Wind{
		Direction:        direction,
		Average:          float64(avg) / 10.0,
		Instant:          float64(inst) / 10.0,
		Temperature:      DecodeTemperature(body[6], body[7]),
		Chill:            DecodeTemperature(body[8], body[9]),
		TemperatureValid: validTemp,
		ChillValid:       validTemp,
	}, body[10], nil
}

// DecodeTemperature decodes a sign/magnitude temperature in tenths of a degree:
// bit 7 of hi is the sign.
func DecodeTemperature(hi, lo byte) float64 {
	temp := float64(int(hi&0x7F)<<8|int(lo)) / 10.0
	if hi&0x80 != 0 {
		temp = -temp
	}
	return temp
}

// EncodeTemperature is the inverse of DecodeTemperature.
func EncodeTemperature(temp float64) (hi, lo byte) {
	tenths := int(math.Round(math.Abs(temp) * 10))
	hi = byte(tenths>>8) & 0x7F
	lo = byte(tenths)
	if temp < 0 && tenths != 0 {
		hi |= 0x80
	}
	return hi, lo
}

func requireLength(body []byte, n int) error {
	if len(body) < n {
		return fmt.Errorf("%w: body has %d bytes, expected %d", ErrDecodeFailure, len(body), n)
	}
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

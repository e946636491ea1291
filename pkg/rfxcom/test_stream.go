package rfxcom

import (
	"io"
	"sync"
)

// TestStream is a scripted in-memory receiver. Chunks are returned in
// order; a chunk may be a read timeout. An exhausted stream returns io.EOF.
type TestStream struct {
	mu     sync.Mutex
	chunks []testChunk
	reads  int
}

type testChunk struct {
	data []byte
	err  error
}

func NewTestStream() *TestStream {
	return &TestStream{}
}

// Bytes appends raw bytes as one chunk.
func (s *TestStream) Bytes(b ...byte) *TestStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, testChunk{data: append([]byte(nil), b...)})
	return s
}

// Frame appends a length byte followed by the payload.
func (s *TestStream) Frame(payload []byte) *TestStream {
	return s.Bytes(append([]byte{byte(len(payload))}, payload...)...)
}

// Timeout appends one read that returns ErrReadTimeout.
func (s *TestStream) Timeout() *TestStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, testChunk{err: ErrReadTimeout})
	return s
}

func (s *TestStream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *TestStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if len(s.chunks) == 0 {
		return 0, io.EOF
	}
	c := &s.chunks[0]
	if c.err != nil {
		err := c.err
		s.chunks = s.chunks[1:]
		return 0, err
	}
	n := copy(p, c.data)
	c.data = c.data[n:]
	if len(c.data) == 0 {
		s.chunks = s.chunks[1:]
	}
	return n, nil
}

func header(code SensorType, subtype uint8, id Identity) []byte {
	return []byte{byte(code), subtype, 0x00, id.Major, id.Minor}
}

func sigbat(signal, battery uint8) byte {
	return signal<<4 | battery&0x0F
}

func TempHumidityPayload(id Identity, temp float64, humidity uint8, signal, battery uint8) []byte {
	hi, lo := EncodeTemperature(temp)
	return append(header(TypeTemperatureHumidity, 1, id), hi, lo, humidity, 0x00, sigbat(signal, battery))
}

func RainPayload(id Identity, rate, total float64, signal, battery uint8) []byte {
	r := int(rate*100 + 0.5)
	t := int(total*10 + 0.5)
	return append(header(TypeRain, 1, id), byte(r>>8), byte(r), byte(t>>16), byte(t>>8), byte(t), sigbat(signal, battery))
}

func UVPayload(id Identity, subtype uint8, uv uint8, temp float64, signal, battery uint8) []byte {
	hi, lo := EncodeTemperature(temp)
	return append(header(TypeUV, subtype, id), hi, lo, uv, sigbat(signal, battery))
}

func WindPayload(id Identity, subtype uint8, direction uint16, avg, inst, temp, chill float64, signal, battery uint8) []byte {
	a := int(avg*10 + 0.5)
	i := int(inst*10 + 0.5)
	thi, tlo := EncodeTemperature(temp)
	chi, clo := EncodeTemperature(chill)
	return append(header(TypeWind, subtype, id),
		byte(direction>>8), byte(direction),
		byte(a>>8), byte(a),
		byte(i>>8), byte(i),
		thi, tlo, chi, clo,
		sigbat(signal, battery))
}

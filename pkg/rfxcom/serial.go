package rfxcom

import (
	"errors"
	"io"
	"time"

	"github.com/goburrow/serial"
)

const (
	DEFAULT_BAUD_RATE = 38400
)

type SerialConfig struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

type serialPort struct {
	port serial.Port
}

// OpenSerial opens the receiver at 8N1. Each read on the returned port
// blocks at most a fraction of ReadTimeout, so that a FrameReader can keep
// its own payload deadline.
func OpenSerial(cfg SerialConfig) (io.ReadCloser, error) {
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = DEFAULT_BAUD_RATE
	}
	poll := cfg.ReadTimeout / 5
	if poll < 50*time.Millisecond {
		poll = 50 * time.Millisecond
	}
	port, err := serial.Open(&serial.Config{
		Address:  cfg.Port,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  poll,
	})
	if err != nil {
		return nil, err
	}
	return &serialPort{port: port}, nil
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if errors.Is(err, serial.ErrTimeout) {
		return n, ErrReadTimeout
	}
	return n, err
}

func (p *serialPort) Close() error {
	return p.port.Close()
}

package rfxcom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	HEADER_LENGTH = 5
)

// Frame is one length delimited unit of the receiver stream.
type Frame struct {
	Length  uint8
	Payload []byte
}

func (f Frame) Complete() bool {
	return f.Length > 0 && len(f.Payload) == int(f.Length)
}

// FrameReader pulls length prefixed frames off a byte stream. Reads that
// time out while waiting for a length byte are retried until the context
// is done; the payload of a frame must arrive within readTimeout.
//
// The underlying reader should return ErrReadTimeout (or any error for
// which IsTimeout is true) or (0, nil) when no data arrived in time.
type FrameReader struct {
	r           io.Reader
	readTimeout time.Duration
	now         func() time.Time
	eof         bool
	lenBuf      [1]byte
}

func NewFrameReader(r io.Reader, readTimeout time.Duration) *FrameReader {
	if readTimeout <= 0 {
		readTimeout = time.Second
	}
	return &FrameReader{
		r:           r,
		readTimeout: readTimeout,
		now:         time.Now,
	}
}

// Next returns the next complete frame. io.EOF means the stream ended; an
// error wrapping ErrShortRead means one frame was dropped and the caller may
// call Next again.
func (fr *FrameReader) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if fr.eof {
			return Frame{}, io.EOF
		}
		n, err := fr.r.Read(fr.lenBuf[:])
		if err != nil && !IsTimeout(err) {
			if !errors.Is(err, io.EOF) {
				return Frame{}, err
			}
			fr.eof = true
		}
		if n == 0 {
			continue
		}
		size := fr.lenBuf[0]
		if size == 0 {
			// keepalive
			continue
		}
		return fr.readPayload(ctx, size)
	}
}

func (fr *FrameReader) readPayload(ctx context.Context, size uint8) (Frame, error) {
	deadline := fr.now().Add(fr.readTimeout)
	payload := make([]byte, size)
	got := 0
	for got < len(payload) {
		if fr.eof {
			break
		}
		n, err := fr.r.Read(payload[got:])
		got += n
		if got == len(payload) {
			break
		}
		if err != nil && !IsTimeout(err) {
			if !errors.Is(err, io.EOF) {
				return Frame{}, err
			}
			fr.eof = true
			break
		}
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if fr.now().After(deadline) {
			break
		}
	}
	if got != len(payload) {
		return Frame{}, fmt.Errorf("%w: got %d bytes, expected %d", ErrShortRead, got, size)
	}
	return Frame{Length: size, Payload: payload}, nil
}

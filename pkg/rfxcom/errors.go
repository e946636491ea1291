package rfxcom

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
)

var (
	ErrShortRead       = errors.New("short read")
	ErrReadTimeout     = errors.New("read timeout")
	ErrDecodeFailure   = errors.New("decode failure")
	ErrUnsupportedType = errors.New("unsupported sensor type")
	ErrIgnored         = errors.New("blacklisted sensor type")
)

// DecodeError is returned for frames whose payload does not match the layout
// of their type. Raw holds a copy of the full payload.
type DecodeError struct {
	Code    uint8
	Subtype uint8
	Raw     []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoder failed on %d:%d [%s]: %v", e.Code, e.Subtype, hex.EncodeToString(e.Raw), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrReadTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

package omx

import (
	"fmt"
)

// ErrNoPayload is returned when a header has no data to expose.
type ErrNoPayload struct {
	Header *BufferHeader
}

func (e ErrNoPayload) Error() string {
	return fmt.Sprintf("%v has no payload", e.Header)
}

type ErrFilledRangeOutOfBounds struct {
	Header *BufferHeader
}

func (e ErrFilledRangeOutOfBounds) Error() string {
	return fmt.Sprintf("%v: offset %d + filled length %d exceeds the allocated %d bytes", e.Header, e.Header.Offset, e.Header.FilledLen, len(e.Header.Buffer))
}

type ErrNoPort struct{}

func (ErrNoPort) Error() string {
	return "no port (or no component behind the port) given"
}

type ErrInvalidDirection struct {
	Direction Direction
}

func (e ErrInvalidDirection) Error() string {
	return fmt.Sprintf("invalid port direction: %s", e.Direction)
}

type ErrAdditionalHeadersAlreadySet struct {
	Count int
}

func (e ErrAdditionalHeadersAlreadySet) Error() string {
	return fmt.Sprintf("%d additional headers are already set", e.Count)
}

type ErrAlreadyReleased struct{}

func (ErrAlreadyReleased) Error() string {
	return "the transport is already released"
}

type ErrPortClosed struct {
	Port *Port
}

func (e ErrPortClosed) Error() string {
	return fmt.Sprintf("%v is closed", e.Port)
}

package softcomponent

import (
	"fmt"

	"github.com/xaionaro-go/hwbuftransport/omx"
)

type ErrInvalidBufferCount struct {
	Port  string
	Count int
	Min   int
	Max   int
}

func (e ErrInvalidBufferCount) Error() string {
	return fmt.Sprintf("invalid amount of %s buffers: %d (expected %d..%d)", e.Port, e.Count, e.Min, e.Max)
}

type ErrInvalidBufferSize struct {
	Size int
}

func (e ErrInvalidBufferSize) Error() string {
	return fmt.Sprintf("invalid buffer size: %d", e.Size)
}

// ErrHeaderNotOwnedByClient is returned when a header is handed to the
// component while the component already owns it (a double release).
type ErrHeaderNotOwnedByClient struct {
	Header *omx.BufferHeader
}

func (e ErrHeaderNotOwnedByClient) Error() string {
	return fmt.Sprintf("%v is not owned by the client", e.Header)
}

type ErrUnknownHeader struct {
	Header *omx.BufferHeader
}

func (e ErrUnknownHeader) Error() string {
	return fmt.Sprintf("%v was not allocated by this component", e.Header)
}

type ErrWrongPort struct {
	Header   *omx.BufferHeader
	Expected omx.Direction
}

func (e ErrWrongPort) Error() string {
	return fmt.Sprintf("%v belongs to the %s port", e.Header, e.Expected)
}

type ErrClosed struct{}

func (ErrClosed) Error() string {
	return "the component is closed"
}

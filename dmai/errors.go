// errors.go defines error types of the pool-domain transport.

package dmai

import (
	"fmt"
)

// ErrNoPayload is returned when a buffer has no user memory to expose (it
// is nil, deleted, or belongs to a deleted BufTab).
type ErrNoPayload struct {
	Buffer *Buffer
}

func (e ErrNoPayload) Error() string {
	return fmt.Sprintf("buffer %v has no user memory", e.Buffer)
}

type ErrNoRegistry struct{}

func (ErrNoRegistry) Error() string {
	return "no orphan registry given"
}

type ErrOwnerAlreadySet struct {
	Owner *OwnedBufTab
}

func (e ErrOwnerAlreadySet) Error() string {
	return fmt.Sprintf("the owner is already set to %v", e.Owner)
}

type ErrRendezvousAlreadySet struct{}

func (ErrRendezvousAlreadySet) Error() string {
	return "cannot set an owner: a rendezvous was given at construction"
}

type ErrOwnerAndRendezvous struct{}

func (ErrOwnerAndRendezvous) Error() string {
	return "an owner and a rendezvous cannot be given together; the owner brings its own rendezvous"
}

type ErrNilOwner struct{}

func (ErrNilOwner) Error() string {
	return "the owner is nil"
}

type ErrAlreadyReleased struct{}

func (ErrAlreadyReleased) Error() string {
	return "the transport is already released"
}

type ErrBufTabDeleted struct {
	BufTab *BufTab
}

func (e ErrBufTabDeleted) Error() string {
	return fmt.Sprintf("%v is deleted", e.BufTab)
}

type ErrNoFreeBuffer struct {
	BufTab *BufTab
}

func (e ErrNoFreeBuffer) Error() string {
	return fmt.Sprintf("no free buffers in %v", e.BufTab)
}

type ErrInvalidNumBufs struct {
	NumBufs int
}

func (e ErrInvalidNumBufs) Error() string {
	return fmt.Sprintf("invalid amount of buffers: %d", e.NumBufs)
}

type ErrInvalidSize struct {
	Size int
}

func (e ErrInvalidSize) Error() string {
	return fmt.Sprintf("invalid buffer size: %d", e.Size)
}

type ErrBufferInBufTab struct {
	Buffer *Buffer
}

func (e ErrBufferInBufTab) Error() string {
	return fmt.Sprintf("buffer %v belongs to %v and cannot be deleted on its own", e.Buffer, e.Buffer.BufTab())
}

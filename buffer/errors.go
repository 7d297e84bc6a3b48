package buffer

import (
	"fmt"
)

type ErrRefAfterRelease struct{}

func (ErrRefAfterRelease) Error() string {
	return "a reference was taken on a buffer that is already released"
}

type ErrNegativeRefCount struct {
	RefCount int32
}

func (e ErrNegativeRefCount) Error() string {
	return fmt.Sprintf("the reference count dropped below zero: %d", e.RefCount)
}

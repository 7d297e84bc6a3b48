// object_id.go defines identifiers used to tag hardware buffers in logs.

package types

import (
	"fmt"
	"reflect"
)

// ObjectID is a unique identifier for an object (derived from its address).
type ObjectID uint64

func (id ObjectID) String() string {
	return fmt.Sprintf("0x%x", uint64(id))
}

type Pointer[T any] interface {
	*T
}

func GetObjectID[P Pointer[T], T any](obj P) ObjectID {
	if obj == nil {
		return ObjectID(0)
	}
	v := reflect.ValueOf(obj)
	if v.IsNil() {
		return ObjectID(0)
	}
	ptr := uintptr(v.UnsafePointer())
	if uintptr(uint64(ptr)) != ptr {
		panic("pointer value does not fit into uint64")
	}
	return ObjectID(uint64(ptr))
}

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetObjectID(t *testing.T) {
	type sample struct{ v int }
	a, b := &sample{}, &sample{}
	require.NotEqual(t, GetObjectID(a), GetObjectID(b))
	require.Equal(t, GetObjectID(a), GetObjectID(a))
	require.Equal(t, ObjectID(0), GetObjectID((*sample)(nil)))
	require.Equal(t, "0x10", ObjectID(16).String())
}

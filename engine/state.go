package engine

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// StateSize is the length of a state blob: six little-endian float32 values
// in ParamID order, without header.
const StateSize = NumParams * 4

// MarshalState encodes parameter values as a state blob.
func MarshalState(values [NumParams]float32) []byte {
	b := make([]byte, StateSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// UnmarshalState decodes a state blob. Bytes past StateSize are ignored.
func UnmarshalState(b []byte) ([NumParams]float32, error) {
	var values [NumParams]float32
	if len(b) < StateSize {
		return values, errors.Newf("state blob too short: got %d bytes, want %d", len(b), StateSize)
	}
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return values, nil
}

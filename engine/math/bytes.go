package math

import (
	"encoding/binary"
	m "math"
)

// Float32Bytes packs values little-endian, the layout GPU buffers expect.
func Float32Bytes(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], m.Float32bits(v))
	}
	return out
}

func Uint32Bytes(values ...uint32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// Bytes packs the vertex as position, normal, texcoord, colour.
func (v Vertex3D) Bytes() []byte {
	return Float32Bytes(
		v.Position.X, v.Position.Y, v.Position.Z,
		v.Normal.X, v.Normal.Y, v.Normal.Z,
		v.Texcoord.X, v.Texcoord.Y,
		v.Colour.X, v.Colour.Y, v.Colour.Z, v.Colour.W,
	)
}

package meshcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/Faultbox/imperium/internal/engine/terrain"
)

// ErrCorrupt is returned when a stored mesh blob cannot be decoded.
var ErrCorrupt = errors.New("corrupt mesh blob")

const (
	blobMagic   uint32 = 0x48534D49 // "IMSH"
	blobVersion uint32 = 1
	blobHeader         = 4 * 6 // magic, version, 4 array lengths
)

var (
	zenc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zdec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// encodeMesh packs a mesh into a zstd-compressed little-endian blob.
func encodeMesh(m *terrain.MeshData) []byte {
	n := len(m.Positions) + len(m.Normals) + len(m.Colors) + len(m.Indices)
	raw := make([]byte, blobHeader+4*n)

	le := binary.LittleEndian
	le.PutUint32(raw[0:], blobMagic)
	le.PutUint32(raw[4:], blobVersion)
	le.PutUint32(raw[8:], uint32(len(m.Positions)))
	le.PutUint32(raw[12:], uint32(len(m.Normals)))
	le.PutUint32(raw[16:], uint32(len(m.Colors)))
	le.PutUint32(raw[20:], uint32(len(m.Indices)))

	off := blobHeader
	for _, arr := range [][]float32{m.Positions, m.Normals, m.Colors} {
		for _, v := range arr {
			le.PutUint32(raw[off:], math.Float32bits(v))
			off += 4
		}
	}
	for _, v := range m.Indices {
		le.PutUint32(raw[off:], v)
		off += 4
	}

	return zenc.EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

// decodeMesh reverses encodeMesh and validates the result.
func decodeMesh(blob []byte) (*terrain.MeshData, error) {
	raw, err := zdec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(raw) < blobHeader {
		return nil, fmt.Errorf("%w: %d byte payload", ErrCorrupt, len(raw))
	}

	le := binary.LittleEndian
	if magic := le.Uint32(raw[0:]); magic != blobMagic {
		return nil, fmt.Errorf("%w: magic 0x%08X", ErrCorrupt, magic)
	}
	if version := le.Uint32(raw[4:]); version != blobVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorrupt, version)
	}

	var lens [4]int
	total := 0
	for i := range lens {
		lens[i] = int(le.Uint32(raw[8+4*i:]))
		total += lens[i]
	}
	if len(raw) != blobHeader+4*total {
		return nil, fmt.Errorf("%w: payload %d bytes, header declares %d values", ErrCorrupt, len(raw), total)
	}

	off := blobHeader
	floats := func(n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(le.Uint32(raw[off:]))
			off += 4
		}
		return out
	}

	m := &terrain.MeshData{}
	m.Positions = floats(lens[0])
	m.Normals = floats(lens[1])
	m.Colors = floats(lens[2])
	m.Indices = make([]uint32, lens[3])
	for i := range m.Indices {
		m.Indices[i] = le.Uint32(raw[off:])
		off += 4
	}

	if err := terrain.Validate(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return m, nil
}

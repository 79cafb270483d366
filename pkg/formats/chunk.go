package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Chunk record geometry.
const (
	ChunkSize       = 32                    // Tiles per chunk edge
	ChunkTiles      = ChunkSize * ChunkSize // Tiles per chunk (1024)
	ChunkGridSize   = 64                    // Chunks per world edge
	ChunkMaxHeight  = 127                   // Highest valid column height
	ChunkHeaderSize = 8
	ChunkRecordSize = ChunkHeaderSize + ChunkTiles*4 // 4104 bytes

	ChunkMagic   uint16 = 0x494D // "MI" on disk
	ChunkVersion uint8  = 1
)

// Chunk record errors.
var (
	ErrChunkSize    = errors.New("invalid chunk record size")
	ErrChunkMagic   = errors.New("invalid chunk magic: expected 0x494D")
	ErrChunkVersion = errors.New("unsupported chunk version")
)

// ChunkData holds the per-tile attribute arrays of one chunk.
// Every array is row-major: index = localY*ChunkSize + localX.
type ChunkData struct {
	X         int              `json:"x"` // Chunk coordinate from the record header
	Y         int              `json:"y"`
	Heights   [ChunkTiles]byte `json:"heights"`   // Column height 0-127, 0 = no column
	Biomes    [ChunkTiles]byte `json:"biomes"`    // Biome id
	Flags     [ChunkTiles]byte `json:"flags"`     // Bitfield, not used for meshing
	Provinces [ChunkTiles]byte `json:"provinces"` // Province id, 0 = barbarian
}

// TileIndex returns the array index of a local tile.
func TileIndex(localX, localY int) int {
	return localY*ChunkSize + localX
}

// HeightAt returns the column height at a local tile.
// Tiles outside the chunk read as 0 (open air).
func (c *ChunkData) HeightAt(localX, localY int) int {
	if localX < 0 || localY < 0 || localX >= ChunkSize || localY >= ChunkSize {
		return 0
	}
	return int(c.Heights[TileIndex(localX, localY)])
}

// IsEmpty reports whether no tile has a solid column.
func (c *ChunkData) IsEmpty() bool {
	for _, h := range c.Heights {
		if h != 0 {
			return false
		}
	}
	return true
}

// DecodeChunk parses a binary chunk record.
func DecodeChunk(data []byte) (*ChunkData, error) {
	if len(data) != ChunkRecordSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrChunkSize, len(data), ChunkRecordSize)
	}

	r := bytes.NewReader(data)

	var header struct {
		Magic   uint16
		Version uint8
		_       uint8
		X       uint16
		Y       uint16
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrChunkSize)
	}

	if header.Magic != ChunkMagic {
		return nil, fmt.Errorf("%w: got 0x%04X", ErrChunkMagic, header.Magic)
	}
	if header.Version != ChunkVersion {
		return nil, fmt.Errorf("%w: %d", ErrChunkVersion, header.Version)
	}

	chunk := &ChunkData{
		X: int(header.X),
		Y: int(header.Y),
	}

	// Attribute planes follow the header back to back
	off := ChunkHeaderSize
	copy(chunk.Heights[:], data[off:off+ChunkTiles])
	off += ChunkTiles
	copy(chunk.Biomes[:], data[off:off+ChunkTiles])
	off += ChunkTiles
	copy(chunk.Flags[:], data[off:off+ChunkTiles])
	off += ChunkTiles
	copy(chunk.Provinces[:], data[off:off+ChunkTiles])

	return chunk, nil
}

// EncodeChunk serializes a chunk into its binary record.
func EncodeChunk(c *ChunkData) []byte {
	buf := make([]byte, ChunkRecordSize)

	binary.LittleEndian.PutUint16(buf[0:2], ChunkMagic)
	buf[2] = ChunkVersion
	buf[3] = 0 // reserved
	binary.LittleEndian.PutUint16(buf[4:6], uint16(c.X))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(c.Y))

	off := ChunkHeaderSize
	copy(buf[off:], c.Heights[:])
	off += ChunkTiles
	copy(buf[off:], c.Biomes[:])
	off += ChunkTiles
	copy(buf[off:], c.Flags[:])
	off += ChunkTiles
	copy(buf[off:], c.Provinces[:])

	return buf
}

// ValidateChunk returns a list of problems found in the chunk.
// An empty list means the chunk is valid.
func ValidateChunk(c *ChunkData) []string {
	if c == nil {
		return []string{"chunk is nil"}
	}

	var problems []string
	if c.X < 0 || c.X >= ChunkGridSize {
		problems = append(problems, fmt.Sprintf("chunk x %d out of range [0,%d)", c.X, ChunkGridSize))
	}
	if c.Y < 0 || c.Y >= ChunkGridSize {
		problems = append(problems, fmt.Sprintf("chunk y %d out of range [0,%d)", c.Y, ChunkGridSize))
	}

	bad := 0
	first := -1
	for i, h := range c.Heights {
		if h > ChunkMaxHeight {
			if first < 0 {
				first = i
			}
			bad++
		}
	}
	if bad > 0 {
		problems = append(problems, fmt.Sprintf("%d heights above %d (first at tile %d)", bad, ChunkMaxHeight, first))
	}

	return problems
}

// ChunkFileName returns the on-disk name of a chunk record.
func ChunkFileName(lod, cx, cy int) string {
	return fmt.Sprintf("chunk_%02d_%02d_%02d.bin", lod, cx, cy)
}

// ParseChunkFile decodes a chunk record from disk.
func ParseChunkFile(path string) (*ChunkData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chunk file: %w", err)
	}
	return DecodeChunk(data)
}

// WriteChunkFile encodes a chunk and writes it to disk.
func WriteChunkFile(path string, c *ChunkData) error {
	return os.WriteFile(path, EncodeChunk(c), 0644)
}

// Package packets defines the chunk streaming protocol packets.
//
// Every packet is one binary websocket message. It starts with a u16
// packet id and a u32 request id, both little-endian.
package packets

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/Faultbox/imperium/pkg/formats"
)

// Packet IDs
const (
	// Client -> Chunk Server
	CS_REQUEST_CHUNK uint16 = 0x0C01 // Request one LOD 0 chunk record

	// Chunk Server -> Client
	SC_CHUNK_DATA    uint16 = 0x0C02 // zstd-compressed chunk record
	SC_CHUNK_MISSING uint16 = 0x0C03 // No data for the coordinate
)

// HeaderSize is the size of the packet id and request id.
const HeaderSize = 6

// Packet errors.
var (
	ErrShortPacket = errors.New("packet too short")
	ErrPacketID    = errors.New("unexpected packet id")
	ErrPacketBody  = errors.New("malformed packet body")
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// PeekHeader reads the packet id and request id.
func PeekHeader(data []byte) (packetID uint16, requestID uint32, err error) {
	if len(data) < HeaderSize {
		return 0, 0, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	return binary.LittleEndian.Uint16(data[0:]), binary.LittleEndian.Uint32(data[2:]), nil
}

// ChunkRequest (CS_REQUEST_CHUNK 0x0C01)
type ChunkRequest struct {
	PacketID  uint16 // 0x0C01
	RequestID uint32
	X         uint16 // Chunk coordinate
	Y         uint16
}

// Size returns packet size.
func (p *ChunkRequest) Size() int {
	return 10
}

// Encode encodes the packet to bytes.
func (p *ChunkRequest) Encode() []byte {
	return encodeCoord(p.Size(), p.PacketID, p.RequestID, p.X, p.Y)
}

// DecodeChunkRequest decodes a CS_REQUEST_CHUNK packet.
func DecodeChunkRequest(data []byte) (*ChunkRequest, error) {
	p := &ChunkRequest{}
	var err error
	p.PacketID, p.RequestID, p.X, p.Y, err = decodeCoord(data, p.Size(), CS_REQUEST_CHUNK)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ChunkMissing (SC_CHUNK_MISSING 0x0C03)
type ChunkMissing struct {
	PacketID  uint16 // 0x0C03
	RequestID uint32
	X         uint16
	Y         uint16
}

// Size returns packet size.
func (p *ChunkMissing) Size() int {
	return 10
}

// Encode encodes the packet to bytes.
func (p *ChunkMissing) Encode() []byte {
	return encodeCoord(p.Size(), p.PacketID, p.RequestID, p.X, p.Y)
}

// DecodeChunkMissing decodes a SC_CHUNK_MISSING packet.
func DecodeChunkMissing(data []byte) (*ChunkMissing, error) {
	p := &ChunkMissing{}
	var err error
	p.PacketID, p.RequestID, p.X, p.Y, err = decodeCoord(data, p.Size(), SC_CHUNK_MISSING)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ChunkData (SC_CHUNK_DATA 0x0C02). The body is a zstd frame holding one
// binary chunk record.
type ChunkData struct {
	PacketID  uint16 // 0x0C02
	RequestID uint32
	Chunk     *formats.ChunkData
}

// Encode encodes the packet to bytes.
func (p *ChunkData) Encode() []byte {
	buf := make([]byte, HeaderSize, HeaderSize+formats.ChunkRecordSize/2)
	binary.LittleEndian.PutUint16(buf[0:], p.PacketID)
	binary.LittleEndian.PutUint32(buf[2:], p.RequestID)
	return encoder.EncodeAll(formats.EncodeChunk(p.Chunk), buf)
}

// DecodeChunkData decodes a SC_CHUNK_DATA packet.
func DecodeChunkData(data []byte) (*ChunkData, error) {
	id, reqID, err := PeekHeader(data)
	if err != nil {
		return nil, err
	}
	if id != SC_CHUNK_DATA {
		return nil, fmt.Errorf("%w: 0x%04X", ErrPacketID, id)
	}

	raw, err := decoder.DecodeAll(data[HeaderSize:], make([]byte, 0, formats.ChunkRecordSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPacketBody, err)
	}
	chunk, err := formats.DecodeChunk(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPacketBody, err)
	}
	return &ChunkData{PacketID: id, RequestID: reqID, Chunk: chunk}, nil
}

func encodeCoord(size int, packetID uint16, reqID uint32, x, y uint16) []byte {
	buf := make([]byte, size)
	binary.LittleEndian.PutUint16(buf[0:], packetID)
	binary.LittleEndian.PutUint32(buf[2:], reqID)
	binary.LittleEndian.PutUint16(buf[6:], x)
	binary.LittleEndian.PutUint16(buf[8:], y)
	return buf
}

func decodeCoord(data []byte, size int, want uint16) (packetID uint16, reqID uint32, x, y uint16, err error) {
	packetID, reqID, err = PeekHeader(data)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	if packetID != want {
		return 0, 0, 0, 0, fmt.Errorf("%w: 0x%04X, want 0x%04X", ErrPacketID, packetID, want)
	}
	if len(data) != size {
		return 0, 0, 0, 0, fmt.Errorf("%w: %d bytes, want %d", ErrPacketBody, len(data), size)
	}
	return packetID, reqID, binary.LittleEndian.Uint16(data[6:]), binary.LittleEndian.Uint16(data[8:]), nil
}

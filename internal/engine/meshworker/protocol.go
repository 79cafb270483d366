// Package meshworker runs the greedy mesher on worker goroutines.
//
// Callers send GENERATE_MESH requests and receive MESH_READY or ERROR
// responses correlated by request id. Responses may complete in any order.
package meshworker

import (
	"errors"
	"fmt"

	"github.com/Faultbox/imperium/internal/engine/terrain"
	"github.com/Faultbox/imperium/pkg/formats"
)

// Message types.
const (
	TypeGenerateMesh = "GENERATE_MESH"
	TypeMeshReady    = "MESH_READY"
	TypeError        = "ERROR"
)

// Pool errors.
var (
	ErrTimeout  = errors.New("mesh generation timed out")
	ErrClosed   = errors.New("mesh worker pool closed")
	ErrBadType  = errors.New("unknown message type")
	ErrNoChunk  = errors.New("request carries no chunk data")
	ErrNoResult = errors.New("response carries no mesh data")
)

// Request asks a worker to mesh one chunk.
type Request struct {
	ID        uint64             `json:"id"`
	Type      string             `json:"type"`
	ChunkData *formats.ChunkData `json:"chunkData"`
	LOD       int                `json:"lod"`
}

// Response answers one Request.
type Response struct {
	ID       uint64            `json:"id"`
	Type     string            `json:"type"`
	MeshData *terrain.MeshData `json:"meshData,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// GenerationError reports a failed or timed out mesh request.
type GenerationError struct {
	X, Y    int
	LOD     int
	Message string
	Err     error // ErrTimeout, ErrClosed or nil for worker errors
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("mesh generation for chunk (%d,%d) at LOD %d: %s", e.X, e.Y, e.LOD, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Handle processes one request envelope with the given mesher and returns
// its response. Malformed requests produce ERROR responses.
func Handle(m *terrain.Mesher, req Request) Response {
	if req.Type != TypeGenerateMesh {
		return errorResponse(req.ID, fmt.Errorf("%w: %q", ErrBadType, req.Type))
	}
	if req.ChunkData == nil {
		return errorResponse(req.ID, ErrNoChunk)
	}
	mesh, err := m.Mesh(req.ChunkData, req.LOD)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return Response{ID: req.ID, Type: TypeMeshReady, MeshData: mesh}
}

func errorResponse(id uint64, err error) Response {
	return Response{ID: id, Type: TypeError, Error: err.Error()}
}

// result converts a response into a mesh or a GenerationError for req.
func result(req *Request, resp Response) (*terrain.MeshData, error) {
	switch resp.Type {
	case TypeMeshReady:
		if resp.MeshData == nil {
			return nil, req.fail(ErrNoResult.Error(), ErrNoResult)
		}
		return resp.MeshData, nil
	case TypeError:
		return nil, req.fail(resp.Error, nil)
	default:
		return nil, req.fail(fmt.Sprintf("%v: %q", ErrBadType, resp.Type), ErrBadType)
	}
}

func (r *Request) fail(msg string, err error) *GenerationError {
	ge := &GenerationError{LOD: r.LOD, Message: msg, Err: err}
	if r.ChunkData != nil {
		ge.X, ge.Y = r.ChunkData.X, r.ChunkData.Y
	}
	return ge
}

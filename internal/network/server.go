package network

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/imperium/internal/logger"
	"github.com/Faultbox/imperium/internal/network/packets"
	"github.com/Faultbox/imperium/pkg/formats"
)

const readTimeout = 60 * time.Second

// ChunkSource supplies chunk records to the server. A nil chunk means no
// data exists for the coordinate.
type ChunkSource interface {
	Chunk(cx, cy int) *formats.ChunkData
}

// Server answers chunk requests from websocket clients.
type Server struct {
	source   ChunkSource
	log      *zap.Logger
	upgrader websocket.Upgrader

	served  atomic.Uint64
	missing atomic.Uint64
}

// NewServer creates a server backed by source.
func NewServer(source ChunkSource) *Server {
	return &Server{
		source: source,
		log:    logger.Named("chunkserver"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Served returns how many chunk records and missing notices were sent.
func (s *Server) Served() (chunks, missing uint64) {
	return s.served.Load(), s.missing.Load()
}

// Handler returns the websocket endpoint.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		remote := zap.String("remote", r.RemoteAddr)
		s.log.Debug("client connected", remote)

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				s.log.Debug("client disconnected", remote, zap.Error(err))
				return
			}
			if kind != websocket.BinaryMessage {
				continue
			}

			req, err := packets.DecodeChunkRequest(msg)
			if err != nil {
				s.log.Warn("bad chunk request", remote, zap.Error(err))
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, s.answer(req)); err != nil {
				s.log.Debug("write failed", remote, zap.Error(err))
				return
			}
		}
	}
}

func (s *Server) answer(req *packets.ChunkRequest) []byte {
	cx, cy := int(req.X), int(req.Y)
	chunk := s.source.Chunk(cx, cy)
	if chunk == nil {
		s.missing.Add(1)
		return (&packets.ChunkMissing{
			PacketID:  packets.SC_CHUNK_MISSING,
			RequestID: req.RequestID,
			X:         req.X,
			Y:         req.Y,
		}).Encode()
	}

	s.served.Add(1)
	s.log.Debug("serving chunk", logger.Chunk(cx, cy))
	return (&packets.ChunkData{
		PacketID:  packets.SC_CHUNK_DATA,
		RequestID: req.RequestID,
		Chunk:     chunk,
	}).Encode()
}

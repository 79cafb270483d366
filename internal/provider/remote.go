package provider

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/imperium/internal/logger"
	"github.com/Faultbox/imperium/internal/network"
	"github.com/Faultbox/imperium/internal/network/packets"
	"github.com/Faultbox/imperium/internal/world"
	"github.com/Faultbox/imperium/pkg/formats"
)

// ErrRequestLost is returned by Fetch when a request could not be sent or
// the connection dropped before the server answered.
var ErrRequestLost = errors.New("chunk request lost")

// Requests queued for the writer before Chunk starts dropping them.
const outboxSize = 256

type outgoing struct {
	id   uint32
	data []byte
}

// Remote fetches chunks from a chunk server. Chunk never waits for a
// response or for the socket: it returns data already received and queues
// a request for anything else, so the chunk becomes available on a later
// call.
type Remote struct {
	client *network.Client
	log    *zap.Logger

	outbox chan outgoing
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	mu        sync.Mutex
	nextID    uint32
	chunks    map[world.ChunkCoord]*formats.ChunkData
	missing   map[world.ChunkCoord]bool
	requested map[uint32]world.ChunkCoord
	inflight  map[world.ChunkCoord]bool
	waiters   map[world.ChunkCoord][]chan struct{}
}

// DialRemote connects to a chunk server websocket endpoint.
func DialRemote(ctx context.Context, url string) (*Remote, error) {
	r := newRemote(network.New(), outboxSize)
	if err := r.client.Connect(ctx, url); err != nil {
		return nil, err
	}

	r.wg.Add(1)
	go r.writer()
	return r, nil
}

func newRemote(client *network.Client, queue int) *Remote {
	r := &Remote{
		client:    client,
		log:       logger.Named("provider"),
		outbox:    make(chan outgoing, queue),
		stop:      make(chan struct{}),
		chunks:    make(map[world.ChunkCoord]*formats.ChunkData),
		missing:   make(map[world.ChunkCoord]bool),
		requested: make(map[uint32]world.ChunkCoord),
		inflight:  make(map[world.ChunkCoord]bool),
		waiters:   make(map[world.ChunkCoord][]chan struct{}),
	}
	client.RegisterHandler(packets.SC_CHUNK_DATA, r.onChunkData)
	client.RegisterHandler(packets.SC_CHUNK_MISSING, r.onChunkMissing)
	client.SetDisconnectHandler(r.onDisconnect)
	return r
}

// Chunk returns received data for the coordinate, or nil after queuing a
// request for it.
func (r *Remote) Chunk(cx, cy int) *formats.ChunkData {
	if !inGrid(cx, cy) {
		return nil
	}
	coord := world.ChunkCoord{X: cx, Y: cy}

	r.mu.Lock()
	chunk, ok := r.chunks[coord]
	if ok || r.missing[coord] {
		r.mu.Unlock()
		return chunk
	}
	out, fresh := r.reserve(coord)
	r.mu.Unlock()

	if fresh {
		r.enqueue(out)
	}
	return nil
}

// Fetch waits until the server has answered for the coordinate.
// It returns nil, nil when the server has no data.
func (r *Remote) Fetch(ctx context.Context, cx, cy int) (*formats.ChunkData, error) {
	if !inGrid(cx, cy) {
		return nil, nil
	}
	coord := world.ChunkCoord{X: cx, Y: cy}

	r.mu.Lock()
	if chunk, ok := r.chunks[coord]; ok || r.missing[coord] {
		r.mu.Unlock()
		return chunk, nil
	}
	out, fresh := r.reserve(coord)
	wait := make(chan struct{})
	r.waiters[coord] = append(r.waiters[coord], wait)
	r.mu.Unlock()

	if fresh {
		r.enqueue(out)
	}

	select {
	case <-wait:
		r.mu.Lock()
		defer r.mu.Unlock()
		if chunk, ok := r.chunks[coord]; ok || r.missing[coord] {
			return chunk, nil
		}
		return nil, ErrRequestLost
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the request writer and disconnects from the server.
func (r *Remote) Close() {
	r.once.Do(func() {
		close(r.stop)
		r.wg.Wait()
		r.client.Disconnect()
	})
}

// Outstanding returns the number of requests awaiting an answer.
func (r *Remote) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requested)
}

// reserve registers a request for coord unless one is outstanding and
// reports whether the returned packet must be sent. r.mu is held.
func (r *Remote) reserve(coord world.ChunkCoord) (outgoing, bool) {
	if r.inflight[coord] {
		return outgoing{}, false
	}

	r.nextID++
	id := r.nextID
	pkt := &packets.ChunkRequest{
		PacketID:  packets.CS_REQUEST_CHUNK,
		RequestID: id,
		X:         uint16(coord.X),
		Y:         uint16(coord.Y),
	}
	r.requested[id] = coord
	r.inflight[coord] = true
	return outgoing{id: id, data: pkt.Encode()}, true
}

// enqueue hands a request to the writer without waiting.
func (r *Remote) enqueue(out outgoing) {
	select {
	case r.outbox <- out:
	default:
		r.log.Debug("chunk request queue full", zap.Uint32("request", out.id))
		r.forget(out.id)
	}
}

// writer sends queued requests until Close.
func (r *Remote) writer() {
	defer r.wg.Done()
	for {
		select {
		case out := <-r.outbox:
			if err := r.client.Send(out.data); err != nil {
				r.log.Debug("chunk request failed", zap.Uint32("request", out.id), zap.Error(err))
				r.forget(out.id)
			}
		case <-r.stop:
			return
		}
	}
}

// forget drops an unanswered request so the coordinate can be asked again.
func (r *Remote) forget(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	coord, ok := r.requested[id]
	if !ok {
		return
	}
	delete(r.requested, id)
	delete(r.inflight, coord)
	r.wake(coord)
}

// onDisconnect drops every unanswered request when the connection ends.
func (r *Remote) onDisconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.requested); n > 0 {
		r.log.Warn("chunk server connection lost", zap.Int("unanswered", n))
	}
	clear(r.requested)
	clear(r.inflight)
	for coord := range r.waiters {
		r.wake(coord)
	}
}

func (r *Remote) onChunkData(data []byte) error {
	pkt, err := packets.DecodeChunkData(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	coord, ok := r.requested[pkt.RequestID]
	if !ok {
		return nil
	}
	delete(r.requested, pkt.RequestID)
	delete(r.inflight, coord)
	if pkt.Chunk.X != coord.X || pkt.Chunk.Y != coord.Y {
		r.log.Warn("server answered with another chunk",
			logger.Chunk(coord.X, coord.Y), zap.Int("got_x", pkt.Chunk.X), zap.Int("got_y", pkt.Chunk.Y))
		r.missing[coord] = true
	} else {
		r.chunks[coord] = pkt.Chunk
	}
	r.wake(coord)
	return nil
}

func (r *Remote) onChunkMissing(data []byte) error {
	pkt, err := packets.DecodeChunkMissing(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	coord, ok := r.requested[pkt.RequestID]
	if !ok {
		return nil
	}
	delete(r.requested, pkt.RequestID)
	delete(r.inflight, coord)
	r.missing[coord] = true
	r.wake(coord)
	return nil
}

// wake releases Fetch callers. r.mu is held.
func (r *Remote) wake(coord world.ChunkCoord) {
	for _, ch := range r.waiters[coord] {
		close(ch)
	}
	delete(r.waiters, coord)
}

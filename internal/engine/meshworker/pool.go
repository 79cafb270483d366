package meshworker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/imperium/internal/engine/terrain"
	"github.com/Faultbox/imperium/internal/logger"
	"github.com/Faultbox/imperium/pkg/formats"
)

// DefaultTimeout bounds one mesh request from dispatch to response.
const DefaultTimeout = 5 * time.Second

// Options configures a Pool.
type Options struct {
	Workers  int           // 0 uses runtime.NumCPU()
	Timeout  time.Duration // 0 uses DefaultTimeout
	Mesher   terrain.Options
	Validate bool // Check every mesh with terrain.Validate before replying

	// handle replaces Handle in tests.
	handle func(*terrain.Mesher, Request) Response
}

// Stats holds pool counters.
type Stats struct {
	Dispatched       uint64
	Completed        uint64
	Failed           uint64
	TimedOut         uint64
	Dropped          uint64 // Late responses with no waiting caller
	BytesTransferred uint64
}

type registration struct {
	id uint64
	ch chan Response
}

// Pool runs mesh requests on a fixed set of worker goroutines. Each worker
// owns its own mesher. A router goroutine owns the table of outstanding
// requests and hands every response to the caller waiting on its id.
type Pool struct {
	opts Options
	log  *zap.Logger

	requests  chan Request
	responses chan Response
	register  chan registration
	forget    chan uint64

	nextID atomic.Uint64
	stats  struct {
		dispatched, completed, failed, timedOut, dropped, bytes atomic.Uint64
	}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPool starts the workers and the router.
func NewPool(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Mesher.WorldTiles == 0 {
		opts.Mesher.WorldTiles = terrain.DefaultOptions().WorldTiles
	}
	if opts.handle == nil {
		opts.handle = Handle
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		opts:      opts,
		log:       logger.Named("meshworker"),
		requests:  make(chan Request, opts.Workers*4),
		responses: make(chan Response, opts.Workers),
		register:  make(chan registration),
		forget:    make(chan uint64),
		ctx:       ctx,
		cancel:    cancel,
	}

	p.wg.Add(1)
	go p.route()
	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Debug("mesh worker pool started",
		zap.Int("workers", opts.Workers),
		zap.Duration("timeout", opts.Timeout))
	return p
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.opts.Workers }

// Dispatch queues a mesh request and returns a future for its result.
// The timeout starts now, so time spent queued counts against it.
// Dispatch blocks only while the request queue is full.
func (p *Pool) Dispatch(ctx context.Context, chunk *formats.ChunkData, lod int) *Future {
	req := Request{
		ID:        p.nextID.Add(1),
		Type:      TypeGenerateMesh,
		ChunkData: chunk,
		LOD:       lod,
	}
	f := &Future{
		pool:     p,
		req:      req,
		deadline: time.Now().Add(p.opts.Timeout),
	}

	ch := make(chan Response, 1)
	select {
	case p.register <- registration{id: req.ID, ch: ch}:
	case <-p.ctx.Done():
		f.resolve(nil, req.fail(ErrClosed.Error(), ErrClosed))
		return f
	}
	f.ch = ch

	select {
	case p.requests <- req:
		p.stats.dispatched.Add(1)
	case <-ctx.Done():
		p.drop(req.ID)
		f.resolve(nil, req.fail(ctx.Err().Error(), ctx.Err()))
	case <-p.ctx.Done():
		f.resolve(nil, req.fail(ErrClosed.Error(), ErrClosed))
	}
	return f
}

// Generate dispatches a request and waits for its result.
func (p *Pool) Generate(ctx context.Context, chunk *formats.ChunkData, lod int) (*terrain.MeshData, error) {
	return p.Dispatch(ctx, chunk, lod).Wait(ctx)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Dispatched:       p.stats.dispatched.Load(),
		Completed:        p.stats.completed.Load(),
		Failed:           p.stats.failed.Load(),
		TimedOut:         p.stats.timedOut.Load(),
		Dropped:          p.stats.dropped.Load(),
		BytesTransferred: p.stats.bytes.Load(),
	}
}

// Close stops the workers. Outstanding futures resolve with ErrClosed.
// Close is safe to call more than once.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.log.Debug("mesh worker pool stopped")
	})
}

// drop removes an outstanding id so its late response is discarded.
func (p *Pool) drop(id uint64) {
	select {
	case p.forget <- id:
	case <-p.ctx.Done():
	}
}

// route owns the correlation table.
func (p *Pool) route() {
	defer p.wg.Done()

	pending := make(map[uint64]chan Response)
	for {
		select {
		case r := <-p.register:
			pending[r.id] = r.ch

		case id := <-p.forget:
			delete(pending, id)

		case resp := <-p.responses:
			ch, ok := pending[resp.ID]
			if !ok {
				p.stats.dropped.Add(1)
				p.log.Debug("dropping late mesh response", zap.Uint64("id", resp.ID), zap.String("type", resp.Type))
				continue
			}
			delete(pending, resp.ID)
			ch <- resp // Buffered, never blocks

		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()

	mesher := terrain.NewMesher(p.opts.Mesher)
	for {
		select {
		case req := <-p.requests:
			resp := p.opts.handle(mesher, req)
			if resp.Type == TypeMeshReady && p.opts.Validate {
				if err := terrain.Validate(resp.MeshData); err != nil {
					p.log.Warn("worker produced invalid mesh", zap.Int("worker", n), zap.Error(err))
					resp = errorResponse(req.ID, err)
				}
			}

			select {
			case p.responses <- resp:
			case <-p.ctx.Done():
				return
			}

		case <-p.ctx.Done():
			return
		}
	}
}

// Future is the pending result of one Dispatch.
type Future struct {
	pool     *Pool
	req      Request
	deadline time.Time
	ch       <-chan Response

	once sync.Once
	mesh *terrain.MeshData
	err  error
}

// ID returns the request id.
func (f *Future) ID() uint64 { return f.req.ID }

// Wait blocks until the response arrives, the request times out, or ctx is
// done. A timed out request resolves to a GenerationError wrapping
// ErrTimeout and its late response is discarded. Repeated calls return the
// first result.
func (f *Future) Wait(ctx context.Context) (*terrain.MeshData, error) {
	f.once.Do(func() {
		f.mesh, f.err = f.await(ctx)
		f.account()
	})
	return f.mesh, f.err
}

func (f *Future) await(ctx context.Context) (*terrain.MeshData, error) {
	timer := time.NewTimer(time.Until(f.deadline))
	defer timer.Stop()

	select {
	case resp := <-f.ch:
		return result(&f.req, resp)
	case <-timer.C:
		f.pool.drop(f.req.ID)
		return nil, f.req.fail("timed out after "+f.pool.opts.Timeout.String(), ErrTimeout)
	case <-ctx.Done():
		f.pool.drop(f.req.ID)
		return nil, f.req.fail(ctx.Err().Error(), ctx.Err())
	case <-f.pool.ctx.Done():
		return nil, f.req.fail(ErrClosed.Error(), ErrClosed)
	}
}

// resolve settles a future that never reached a worker.
func (f *Future) resolve(mesh *terrain.MeshData, err error) {
	f.once.Do(func() {
		f.mesh, f.err = mesh, err
		f.account()
	})
}

func (f *Future) account() {
	s := &f.pool.stats
	switch {
	case f.err == nil:
		s.completed.Add(1)
		s.bytes.Add(uint64(TransferSize(TransferSet(f.mesh))))
	case errors.Is(f.err, ErrTimeout):
		s.timedOut.Add(1)
	default:
		s.failed.Add(1)
	}
}

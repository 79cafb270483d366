package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Faultbox/imperium/internal/config"
	"github.com/Faultbox/imperium/internal/network"
	"github.com/Faultbox/imperium/internal/network/packets"
	"github.com/Faultbox/imperium/internal/world"
	"github.com/Faultbox/imperium/pkg/formats"
)

func TestProcedural(t *testing.T) {
	p := NewProcedural(7)

	a := p.Chunk(20, 30)
	b := NewProcedural(7).Chunk(20, 30)
	if a == nil || b == nil {
		t.Fatal("expected data inside the grid")
	}
	if *a != *b {
		t.Error("equal seeds must generate equal chunks")
	}
	if a.X != 20 || a.Y != 30 {
		t.Errorf("chunk coordinate (%d,%d), want (20,30)", a.X, a.Y)
	}

	if other := NewProcedural(8).Chunk(20, 30); *other == *a {
		t.Error("different seeds generated identical chunks")
	}

	for _, c := range [][2]int{{-1, 0}, {0, -1}, {64, 0}, {0, 64}} {
		if p.Chunk(c[0], c[1]) != nil {
			t.Errorf("chunk %v outside the grid has data", c)
		}
	}
}

func TestProcedural_ValidWorld(t *testing.T) {
	p := NewProcedural(1)

	water, land, barbarian := 0, 0, 0
	for cy := 0; cy < formats.ChunkGridSize; cy += 9 {
		for cx := 0; cx < formats.ChunkGridSize; cx += 9 {
			c := p.Chunk(cx, cy)
			if problems := formats.ValidateChunk(c); len(problems) > 0 {
				t.Fatalf("chunk (%d,%d) invalid: %v", cx, cy, problems)
			}
			for i, h := range c.Heights {
				if h == 0 {
					t.Fatalf("chunk (%d,%d) tile %d has no column", cx, cy, i)
				}
				if int(h) <= world.WaterLevel {
					water++
					if c.Provinces[i] != world.BarbarianID {
						t.Fatalf("sea tile claimed by province %d", c.Provinces[i])
					}
				} else {
					land++
				}
				if c.Provinces[i] > world.ProvinceMax {
					t.Fatalf("province %d out of range", c.Provinces[i])
				}
				if c.Provinces[i] == world.BarbarianID {
					barbarian++
				}
			}
		}
	}
	if water == 0 || land == 0 {
		t.Errorf("expected both sea and land, got %d water and %d land tiles", water, land)
	}
	if barbarian == 0 {
		t.Error("expected some barbarian territory")
	}

	// The map border sinks into the sea.
	if h := p.Height(0, 1000); h > world.WaterLevel {
		t.Errorf("border tile height %d above sea level", h)
	}
}

func TestDirectory(t *testing.T) {
	dir := t.TempDir()

	good := &formats.ChunkData{X: 3, Y: 4}
	good.Heights[10] = 50
	if err := formats.WriteChunkFile(filepath.Join(dir, formats.ChunkFileName(0, 3, 4)), good); err != nil {
		t.Fatal(err)
	}

	// Record whose header disagrees with its file name.
	moved := &formats.ChunkData{X: 9, Y: 9}
	if err := formats.WriteChunkFile(filepath.Join(dir, formats.ChunkFileName(0, 5, 5)), moved); err != nil {
		t.Fatal(err)
	}

	// Truncated record.
	if err := os.WriteFile(filepath.Join(dir, formats.ChunkFileName(0, 6, 6)), []byte{0x4D, 0x49}, 0644); err != nil {
		t.Fatal(err)
	}

	// Height above the valid range.
	tall := &formats.ChunkData{X: 7, Y: 7}
	tall.Heights[0] = 200
	if err := formats.WriteChunkFile(filepath.Join(dir, formats.ChunkFileName(0, 7, 7)), tall); err != nil {
		t.Fatal(err)
	}

	d, err := NewDirectory(dir)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}

	if c := d.Chunk(3, 4); c == nil || c.Heights[10] != 50 {
		t.Errorf("expected stored chunk, got %v", c)
	}

	tests := map[string][2]int{
		"missing file":      {1, 1},
		"mismatched header": {5, 5},
		"truncated":         {6, 6},
		"invalid heights":   {7, 7},
		"outside grid":      {-1, 3},
	}
	for name, c := range tests {
		if d.Chunk(c[0], c[1]) != nil {
			t.Errorf("%s: expected no data", name)
		}
	}

	if _, err := NewDirectory(filepath.Join(dir, "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
	if _, err := NewDirectory(filepath.Join(dir, formats.ChunkFileName(0, 3, 4))); err == nil {
		t.Error("expected error for a file path")
	}
}

func startChunkServer(t *testing.T, src network.ChunkSource) string {
	t.Helper()
	hs := httptest.NewServer(network.NewServer(src).Handler())
	t.Cleanup(hs.Close)
	return "ws" + strings.TrimPrefix(hs.URL, "http")
}

func TestRemote(t *testing.T) {
	source := NewProcedural(3)
	// The server has data only for the western half of the world.
	url := startChunkServer(t, Func(func(cx, cy int) *formats.ChunkData {
		if cx >= 32 {
			return nil
		}
		return source.Chunk(cx, cy)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := DialRemote(ctx, url)
	if err != nil {
		t.Fatalf("DialRemote: %v", err)
	}
	defer r.Close()

	got, err := r.Fetch(ctx, 10, 11)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got == nil || *got != *source.Chunk(10, 11) {
		t.Error("fetched chunk differs from the server's data")
	}

	missing, err := r.Fetch(ctx, 40, 11)
	if err != nil || missing != nil {
		t.Errorf("expected no data for (40,11), got %v, %v", missing, err)
	}

	// Chunk does not wait: the first call queues a request.
	if c := r.Chunk(12, 12); c != nil {
		t.Error("first Chunk call returned data before any response")
	}
	deadline := time.Now().Add(5 * time.Second)
	for r.Chunk(12, 12) == nil {
		if time.Now().After(deadline) {
			t.Fatal("chunk never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if r.Chunk(70, 0) != nil {
		t.Error("chunk outside the grid has data")
	}
}

func TestRemote_ChunkNeverWaitsForSocket(t *testing.T) {
	// No writer is running, so the one-slot queue stays full.
	r := newRemote(network.New(), 1)

	if r.Chunk(1, 1) != nil || r.Chunk(2, 2) != nil {
		t.Fatal("expected no data before any response")
	}
	r.mu.Lock()
	queued := r.inflight[world.ChunkCoord{X: 1, Y: 1}]
	dropped := r.inflight[world.ChunkCoord{X: 2, Y: 2}]
	r.mu.Unlock()
	if !queued {
		t.Error("queued request is not outstanding")
	}
	if dropped {
		t.Error("request that did not fit the queue is still in flight")
	}
	if n := r.Outstanding(); n != 1 {
		t.Errorf("outstanding %d, want 1", n)
	}

	// The client is not connected: the send fails and the request is forgotten.
	r.wg.Add(1)
	go r.writer()
	defer r.Close()
	waitOutstanding(t, r, 0)
	if r.Chunk(1, 1) != nil {
		t.Error("failed request produced data")
	}
}

func TestRemote_ConnectionLost(t *testing.T) {
	requests := make(chan uint32, 16)
	drop := make(chan struct{})
	// Reads requests and never answers until the connection is dropped.
	hs := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(rw, req, nil)
		if err != nil {
			return
		}
		go func() {
			<-drop
			conn.Close()
		}()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if p, err := packets.DecodeChunkRequest(msg); err == nil {
				requests <- p.RequestID
			}
		}
	}))
	defer hs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := DialRemote(ctx, "ws"+strings.TrimPrefix(hs.URL, "http"))
	if err != nil {
		t.Fatalf("DialRemote: %v", err)
	}
	defer r.Close()

	next := func() {
		t.Helper()
		select {
		case <-requests:
		case <-ctx.Done():
			t.Fatal("server received no request")
		}
	}

	r.Chunk(5, 5)
	next()
	r.Chunk(5, 5)
	if n := r.Outstanding(); n != 1 {
		t.Errorf("outstanding %d after a repeated ask, want 1", n)
	}

	lost := make(chan error, 1)
	go func() {
		_, err := r.Fetch(ctx, 6, 6)
		lost <- err
	}()
	next()

	close(drop)
	select {
	case err := <-lost:
		if !errors.Is(err, ErrRequestLost) {
			t.Errorf("Fetch after drop: expected ErrRequestLost, got %v", err)
		}
	case <-ctx.Done():
		t.Fatal("Fetch still waiting after the connection dropped")
	}

	r.mu.Lock()
	requested, inflight := len(r.requested), len(r.inflight)
	r.mu.Unlock()
	if requested != 0 || inflight != 0 {
		t.Errorf("after drop: %d requested, %d in flight, want none", requested, inflight)
	}

	// The coordinate is asked again instead of staying stuck in flight.
	r.Chunk(5, 5)
	r.mu.Lock()
	id := r.nextID
	r.mu.Unlock()
	if id != 3 {
		t.Errorf("request id %d after re-asking, want 3", id)
	}
	waitOutstanding(t, r, 0)
}

func waitOutstanding(t *testing.T, r *Remote, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for r.Outstanding() != want {
		if time.Now().After(deadline) {
			t.Fatalf("outstanding %d, want %d", r.Outstanding(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	p, closeFn, err := Open(ctx, config.DataConfig{Provider: config.ProviderProcedural, Seed: 1})
	if err != nil || p == nil {
		t.Fatalf("procedural: %v", err)
	}
	closeFn()

	if _, _, err := Open(ctx, config.DataConfig{Provider: config.ProviderDirectory, ChunkDir: "/nonexistent/chunks"}); err == nil {
		t.Error("expected error for missing chunk directory")
	}
	if _, _, err := Open(ctx, config.DataConfig{Provider: "ftp"}); err == nil {
		t.Error("expected error for unknown provider")
	}

	url := startChunkServer(t, NewProcedural(1))
	p, closeFn, err = Open(ctx, config.DataConfig{Provider: config.ProviderRemote, RemoteURL: url})
	if err != nil {
		t.Fatalf("remote: %v", err)
	}
	if _, ok := p.(*Remote); !ok {
		t.Errorf("expected *Remote, got %T", p)
	}
	closeFn()
}

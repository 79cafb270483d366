package terrain

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/imperium/pkg/formats"
)

// ErrNilChunk is returned when Mesh is called without chunk data.
var ErrNilChunk = errors.New("nil chunk data")

// Default distance in tiles over which the map edge fades out.
const DefaultEdgeFadeTiles = 24

// Options configures mesh coloring.
type Options struct {
	WorldTiles    int     // Tiles per world edge
	EdgeFadeTiles float32 // 0 disables the map edge fade
}

// DefaultOptions returns the options for the 2048x2048 world.
func DefaultOptions() Options {
	return Options{
		WorldTiles:    formats.ChunkSize * formats.ChunkGridSize,
		EdgeFadeTiles: DefaultEdgeFadeTiles,
	}
}

// Mesher turns chunk attribute arrays into greedy-merged surface meshes.
// A Mesher reuses its arena between calls and is not safe for concurrent use.
type Mesher struct {
	shader Shader
	arena  *Arena

	// Per-call state
	chunk *formats.ChunkData
	step  int
	grid  int
	origX int // World tile x of the chunk origin
	origY int
}

// NewMesher creates a mesher with its own scratch arena.
func NewMesher(opts Options) *Mesher {
	return &Mesher{
		shader: Shader{WorldTiles: opts.WorldTiles, EdgeFadeTiles: opts.EdgeFadeTiles},
		arena:  NewArena(),
	}
}

// BuildMesh meshes a chunk with a throwaway mesher.
func BuildMesh(chunk *formats.ChunkData, lod int, opts Options) (*MeshData, error) {
	return NewMesher(opts).Mesh(chunk, lod)
}

// Mesh builds the surface of a chunk at the given level of detail.
// Geometry is placed at the chunk's world offset. Tiles outside the chunk
// count as empty, so chunk borders always get side faces.
func (m *Mesher) Mesh(chunk *formats.ChunkData, lod int) (*MeshData, error) {
	if chunk == nil {
		return nil, ErrNilChunk
	}
	step, err := LODStep(lod)
	if err != nil {
		return nil, err
	}

	m.arena.Reset()
	m.chunk = chunk
	m.step = step
	m.grid = formats.ChunkSize / step
	m.origX = chunk.X * formats.ChunkSize
	m.origY = chunk.Y * formats.ChunkSize
	defer func() { m.chunk = nil }()

	BorderFogField(&chunk.Provinces, m.arena.fog)

	if lod == MaxLOD {
		m.buildSummary()
	} else {
		m.downsample()
		m.buildTops()
		m.buildSides()
		m.buildBottoms()
	}

	return m.arena.Export(), nil
}

// downsample samples the origin tile of every step x step block.
func (m *Mesher) downsample() {
	for gy := 0; gy < m.grid; gy++ {
		for gx := 0; gx < m.grid; gx++ {
			src := formats.TileIndex(gx*m.step, gy*m.step)
			dst := gy*m.grid + gx
			m.arena.heights[dst] = m.chunk.Heights[src]
			m.arena.biomes[dst] = m.chunk.Biomes[src]
		}
	}
}

// height returns the sampled height of a grid cell, 0 outside the chunk.
func (m *Mesher) height(gx, gy int) int {
	if gx < 0 || gy < 0 || gx >= m.grid || gy >= m.grid {
		return 0
	}
	return int(m.arena.heights[gy*m.grid+gx])
}

// worldX returns the world x coordinate of a grid line.
func (m *Mesher) worldX(gx int) int { return m.origX + gx*m.step }

// worldZ returns the world z coordinate of a grid line.
func (m *Mesher) worldZ(gy int) int { return m.origY + gy*m.step }

// fogAt samples the border fog of the tile under a grid corner.
func (m *Mesher) fogAt(gx, gy int) float32 {
	lx := min(gx*m.step, formats.ChunkSize-1)
	ly := min(gy*m.step, formats.ChunkSize-1)
	return m.arena.fog[formats.TileIndex(lx, ly)]
}

// color shades the vertex at grid corner (gx, gy).
func (m *Mesher) color(biome Biome, face Face, ao float32, gx, gy int) mgl32.Vec3 {
	return m.shader.Vertex(biome, face, ao, m.worldX(gx), m.worldZ(gy), m.fogAt(gx, gy))
}

// greedyRects merges equal non-zero mask cells into rectangles, growing
// along x first and then along y. Consumed cells are cleared.
func (m *Mesher) greedyRects(emit func(x, y, w, h int, key int32)) {
	g := m.grid
	mask := m.arena.mask
	for y := 0; y < g; y++ {
		for x := 0; x < g; {
			key := mask[y*g+x]
			if key == 0 {
				x++
				continue
			}

			w := 1
			for x+w < g && mask[y*g+x+w] == key {
				w++
			}

			h := 1
		grow:
			for y+h < g {
				row := (y + h) * g
				for k := 0; k < w; k++ {
					if mask[row+x+k] != key {
						break grow
					}
				}
				h++
			}

			for dy := 0; dy < h; dy++ {
				clear(mask[(y+dy)*g+x : (y+dy)*g+x+w])
			}
			emit(x, y, w, h, key)
			x += w
		}
	}
}

// buildTops emits merged top faces keyed by (biome, height).
func (m *Mesher) buildTops() {
	n := m.grid * m.grid
	for i := 0; i < n; i++ {
		h := int32(m.arena.heights[i])
		if h == 0 {
			m.arena.mask[i] = 0
			continue
		}
		m.arena.mask[i] = int32(m.arena.biomes[i])<<8 | h
	}

	m.greedyRects(func(x, y, w, h int, key int32) {
		biome := Biome(key >> 8)
		top := int(key & 0xFF)
		x1, y1 := x+w, y+h

		occ := func(gx, gy int) bool { return m.height(gx, gy) > top }
		ao := [4]float32{
			AOFactor(cornerOcclusion(occ(x-1, y), occ(x, y-1), occ(x-1, y-1))),   // NW
			AOFactor(cornerOcclusion(occ(x-1, y1-1), occ(x, y1), occ(x-1, y1))),  // SW
			AOFactor(cornerOcclusion(occ(x1, y1-1), occ(x1-1, y1), occ(x1, y1))), // SE
			AOFactor(cornerOcclusion(occ(x1, y), occ(x1-1, y-1), occ(x1, y-1))),  // NE
		}

		m.horizontalQuad(FaceTop, biome, float32(top), x, y, x1, y1, ao)
	})
}

// buildBottoms emits merged bottom faces at y=0 keyed by biome only.
func (m *Mesher) buildBottoms() {
	n := m.grid * m.grid
	for i := 0; i < n; i++ {
		if m.arena.heights[i] == 0 {
			m.arena.mask[i] = 0
			continue
		}
		m.arena.mask[i] = int32(m.arena.biomes[i]) + 1
	}

	m.greedyRects(func(x, y, w, h int, key int32) {
		m.horizontalQuad(FaceBottom, Biome(key-1), 0, x, y, x+w, y+h, [4]float32{1, 1, 1, 1})
	})
}

// horizontalQuad emits a top or bottom quad over grid cells [x0,x1) x [y0,y1).
// ao is ordered NW, SW, SE, NE.
func (m *Mesher) horizontalQuad(face Face, biome Biome, level float32, x0, y0, x1, y1 int, ao [4]float32) {
	corners := [4][2]int{{x0, y0}, {x0, y1}, {x1, y1}, {x1, y0}}

	var pos, col [4]mgl32.Vec3
	for i, c := range corners {
		pos[i] = mgl32.Vec3{float32(m.worldX(c[0])), level, float32(m.worldZ(c[1]))}
		col[i] = m.color(biome, face, ao[i], c[0], c[1])
	}
	m.arena.quad(pos, face.Normal(), col)
}

type sideDir struct {
	face   Face
	dx, dy int
}

var sideDirs = [4]sideDir{
	{FaceNorth, 0, -1},
	{FaceSouth, 0, 1},
	{FaceEast, 1, 0},
	{FaceWest, -1, 0},
}

// buildSides emits side walls where a column stands above its neighbor.
// Runs merge only along the wall, never across it.
func (m *Mesher) buildSides() {
	g := m.grid
	mask := m.arena.mask

	for _, dir := range sideDirs {
		for gy := 0; gy < g; gy++ {
			for gx := 0; gx < g; gx++ {
				i := gy*g + gx
				h := m.height(gx, gy)
				nh := m.height(gx+dir.dx, gy+dir.dy)
				if h == 0 || h <= nh {
					mask[i] = 0
					continue
				}
				mask[i] = int32(m.arena.biomes[i])<<16 | int32(h)<<8 | int32(nh)
			}
		}

		alongY := dir.dx != 0
		for a := 0; a < g; a++ {
			for b := 0; b < g; {
				x, y := b, a
				if alongY {
					x, y = a, b
				}
				key := mask[y*g+x]
				if key == 0 {
					b++
					continue
				}

				run := 1
				for b+run < g {
					nx, ny := b+run, a
					if alongY {
						nx, ny = a, b+run
					}
					if mask[ny*g+nx] != key {
						break
					}
					run++
				}

				w, h := run, 1
				if alongY {
					w, h = 1, run
				}
				m.sideQuad(dir, key, x, y, w, h)
				b += run
			}
		}
	}
}

// sideQuad emits one wall over the cell run [x, x+w) x [y, y+h).
func (m *Mesher) sideQuad(dir sideDir, key int32, x, y, w, h int) {
	biome := Biome(key >> 16)
	top := float32((key >> 8) & 0xFF)
	bottom := float32(key & 0xFF)

	// The wall lies on the cell edge facing dir; a and b are its grid endpoints.
	var a, b [2]int
	switch dir.face {
	case FaceNorth:
		a, b = [2]int{x, y}, [2]int{x + w, y}
	case FaceSouth:
		a, b = [2]int{x, y + h}, [2]int{x + w, y + h}
	case FaceEast:
		a, b = [2]int{x + w, y}, [2]int{x + w, y + h}
	case FaceWest:
		a, b = [2]int{x, y}, [2]int{x, y + h}
	}

	ax, az := float32(m.worldX(a[0])), float32(m.worldZ(a[1]))
	bx, bz := float32(m.worldX(b[0])), float32(m.worldZ(b[1]))
	pos := [4]mgl32.Vec3{
		{ax, bottom, az},
		{bx, bottom, bz},
		{bx, top, bz},
		{ax, top, az},
	}
	col := [4]mgl32.Vec3{
		m.color(biome, dir.face, 1, a[0], a[1]),
		m.color(biome, dir.face, 1, b[0], b[1]),
		m.color(biome, dir.face, AOSideSeam, b[0], b[1]),
		m.color(biome, dir.face, AOSideSeam, a[0], a[1]),
	}
	m.arena.quad(pos, dir.face.Normal(), col)
}

// buildSummary emits the single LOD 3 quad: dominant biome at mean height.
func (m *Mesher) buildSummary() {
	var counts [256]int
	sum, solid := 0, 0
	for i, h := range m.chunk.Heights {
		if h == 0 {
			continue
		}
		sum += int(h)
		solid++
		counts[m.chunk.Biomes[i]]++
	}
	if solid == 0 {
		return
	}

	dominant := 0
	for b, n := range counts {
		if n > counts[dominant] {
			dominant = b
		}
	}
	mean := float32(sum) / float32(solid)

	// Province and fog come from the center tile
	const center = formats.ChunkSize / 2
	fog := m.arena.fog[formats.TileIndex(center, center)]

	g := m.grid // 1 at LOD 3
	corners := [4][2]int{{0, 0}, {0, g}, {g, g}, {g, 0}}
	var pos, col [4]mgl32.Vec3
	for i, c := range corners {
		wx, wz := m.worldX(c[0]), m.worldZ(c[1])
		pos[i] = mgl32.Vec3{float32(wx), mean, float32(wz)}
		col[i] = m.shader.Vertex(Biome(dominant), FaceTop, 1, wx, wz, fog)
	}
	m.arena.quad(pos, FaceTop.Normal(), col)
}

package terrain

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/imperium/pkg/formats"
)

// createUniformChunk builds a chunk with one biome and one height everywhere.
func createUniformChunk(cx, cy int, biome, height, province byte) *formats.ChunkData {
	c := &formats.ChunkData{X: cx, Y: cy}
	for i := 0; i < formats.ChunkTiles; i++ {
		c.Heights[i] = height
		c.Biomes[i] = biome
		c.Provinces[i] = province
	}
	return c
}

// createRandomChunk builds a chunk with noisy heights and biomes.
func createRandomChunk(seed int64, cx, cy int) *formats.ChunkData {
	rng := rand.New(rand.NewSource(seed))
	c := &formats.ChunkData{X: cx, Y: cy}
	for i := 0; i < formats.ChunkTiles; i++ {
		if rng.Intn(8) > 0 {
			c.Heights[i] = byte(rng.Intn(128))
		}
		c.Biomes[i] = byte(rng.Intn(int(biomeCount) + 2))
		c.Provinces[i] = byte(rng.Intn(3))
	}
	return c
}

func mustMesh(t *testing.T, chunk *formats.ChunkData, lod int) *MeshData {
	t.Helper()
	mesh, err := BuildMesh(chunk, lod, DefaultOptions())
	if err != nil {
		t.Fatalf("BuildMesh(lod=%d) failed: %v", lod, err)
	}
	if err := Validate(mesh); err != nil {
		t.Fatalf("invalid mesh at lod %d: %v", lod, err)
	}
	return mesh
}

func TestMesh_EmptyChunk(t *testing.T) {
	chunk := &formats.ChunkData{X: 3, Y: 4}
	for i := range chunk.Biomes {
		chunk.Biomes[i] = byte(BiomeForest)
	}

	for lod := MinLOD; lod <= MaxLOD; lod++ {
		mesh := mustMesh(t, chunk, lod)
		if len(mesh.Positions) != 0 || len(mesh.Normals) != 0 || len(mesh.Colors) != 0 || len(mesh.Indices) != 0 {
			t.Errorf("lod %d: expected empty arrays, got %d positions %d indices",
				lod, len(mesh.Positions), len(mesh.Indices))
		}
		if !mesh.IsEmpty() {
			t.Errorf("lod %d: IsEmpty() = false", lod)
		}
	}
}

func TestMesh_UniformChunk(t *testing.T) {
	chunk := createUniformChunk(10, 10, byte(BiomeGrassland), 40, 5)

	tests := []struct {
		lod      int
		vertices int
		indices  int
	}{
		{0, 24, 36},
		{1, 24, 36},
		{2, 24, 36},
		{3, 4, 6},
	}

	for _, tc := range tests {
		mesh := mustMesh(t, chunk, tc.lod)
		if mesh.VertexCount() != tc.vertices {
			t.Errorf("lod %d: expected %d vertices, got %d", tc.lod, tc.vertices, mesh.VertexCount())
		}
		if len(mesh.Indices) != tc.indices {
			t.Errorf("lod %d: expected %d indices, got %d", tc.lod, tc.indices, len(mesh.Indices))
		}
	}
}

func TestMesh_SummaryQuad(t *testing.T) {
	chunk := &formats.ChunkData{X: 2, Y: 5}
	// Left half: 20 tall forest, right half: 40 tall desert, one empty column.
	for y := 0; y < formats.ChunkSize; y++ {
		for x := 0; x < formats.ChunkSize; x++ {
			i := formats.TileIndex(x, y)
			if x < 16 {
				chunk.Heights[i], chunk.Biomes[i] = 20, byte(BiomeForest)
			} else {
				chunk.Heights[i], chunk.Biomes[i] = 40, byte(BiomeDesert)
			}
		}
	}
	chunk.Heights[formats.TileIndex(31, 31)] = 0

	mesh := mustMesh(t, chunk, MaxLOD)
	if mesh.VertexCount() != 4 || len(mesh.Indices) != 6 {
		t.Fatalf("expected one quad, got %d vertices %d indices", mesh.VertexCount(), len(mesh.Indices))
	}

	// Mean over 1023 solid columns: (512*20 + 511*40) / 1023
	wantY := float32(512*20+511*40) / 1023
	for v := 0; v < 4; v++ {
		if y := mesh.Positions[v*3+1]; abs32(y-wantY) > 1e-4 {
			t.Errorf("vertex %d at height %f, want %f", v, y, wantY)
		}
		if ny := mesh.Normals[v*3+1]; ny != 1 {
			t.Errorf("vertex %d normal y = %f, want 1", v, ny)
		}
	}

	// Footprint covers the whole chunk
	minX, maxX := mesh.Positions[0], mesh.Positions[0]
	for v := 0; v < 4; v++ {
		minX = min(minX, mesh.Positions[v*3])
		maxX = max(maxX, mesh.Positions[v*3])
	}
	if minX != 64 || maxX != 96 {
		t.Errorf("expected x span [64,96], got [%f,%f]", minX, maxX)
	}
}

func TestMesh_CheckerboardInhibitsMerging(t *testing.T) {
	uniform := createUniformChunk(0, 0, byte(BiomeGrassland), 40, 1)
	checker := createUniformChunk(0, 0, byte(BiomeGrassland), 40, 1)
	for y := 0; y < formats.ChunkSize; y++ {
		for x := 0; x < formats.ChunkSize; x++ {
			if (x+y)%2 == 1 {
				checker.Biomes[formats.TileIndex(x, y)] = byte(BiomeDesert)
			}
		}
	}

	u := mustMesh(t, uniform, 0)
	c := mustMesh(t, checker, 0)
	if c.VertexCount() <= u.VertexCount() {
		t.Errorf("checkerboard has %d vertices, uniform %d; expected more", c.VertexCount(), u.VertexCount())
	}
	// Every tile becomes its own top and bottom quad
	if c.VertexCount() < 2*formats.ChunkTiles*4 {
		t.Errorf("expected at least %d vertices, got %d", 2*formats.ChunkTiles*4, c.VertexCount())
	}
}

func TestMesh_StepTerrainQuadCount(t *testing.T) {
	chunk := createUniformChunk(1, 1, byte(BiomeHills), 10, 1)
	for y := 0; y < formats.ChunkSize; y++ {
		for x := 16; x < formats.ChunkSize; x++ {
			chunk.Heights[formats.TileIndex(x, y)] = 20
		}
	}

	// 2 tops, 1 bottom, 2 north, 2 south, 1 east, 2 west (outer + step)
	mesh := mustMesh(t, chunk, 0)
	if quads := mesh.VertexCount() / 4; quads != 10 {
		t.Errorf("expected 10 quads, got %d", quads)
	}
}

func TestMesh_SingleColumn(t *testing.T) {
	chunk := &formats.ChunkData{}
	chunk.Heights[formats.TileIndex(7, 9)] = 5

	mesh := mustMesh(t, chunk, 0)
	if mesh.VertexCount() != 24 || len(mesh.Indices) != 36 {
		t.Errorf("expected 24/36, got %d/%d", mesh.VertexCount(), len(mesh.Indices))
	}
}

func TestMesh_WindingMatchesNormals(t *testing.T) {
	chunk := createRandomChunk(7, 12, 30)

	for lod := MinLOD; lod <= MaxLOD; lod++ {
		mesh := mustMesh(t, chunk, lod)
		for tri := 0; tri < mesh.TriangleCount(); tri++ {
			i0, i1, i2 := mesh.Indices[tri*3], mesh.Indices[tri*3+1], mesh.Indices[tri*3+2]
			p0, p1, p2 := vec(mesh.Positions, i0), vec(mesh.Positions, i1), vec(mesh.Positions, i2)
			geo := p1.Sub(p0).Cross(p2.Sub(p0))
			if geo.Dot(vec(mesh.Normals, i0)) <= 0 {
				t.Fatalf("lod %d triangle %d faces away from its normal", lod, tri)
			}
		}
	}
}

func TestMesh_RandomChunksValid(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		chunk := createRandomChunk(seed, int(seed)%64, int(seed*3)%64)
		for lod := MinLOD; lod <= MaxLOD; lod++ {
			mustMesh(t, chunk, lod)
		}
	}
}

func TestMesh_TranslationInvariantTopology(t *testing.T) {
	a := createRandomChunk(42, 0, 0)
	b := *a
	b.X, b.Y = 40, 17

	for lod := MinLOD; lod <= MaxLOD; lod++ {
		ma := mustMesh(t, a, lod)
		mb := mustMesh(t, &b, lod)
		if ma.VertexCount() != mb.VertexCount() || ma.TriangleCount() != mb.TriangleCount() {
			t.Errorf("lod %d: (0,0) has %d/%d, (40,17) has %d/%d vertices/triangles",
				lod, ma.VertexCount(), ma.TriangleCount(), mb.VertexCount(), mb.TriangleCount())
		}
	}

	// Positions are offset by the chunk origin
	ma := mustMesh(t, a, 0)
	mb := mustMesh(t, &b, 0)
	if dx := mb.Positions[0] - ma.Positions[0]; dx != 40*32 {
		t.Errorf("expected x offset %d, got %f", 40*32, dx)
	}
}

func TestMesher_ReuseIsDeterministic(t *testing.T) {
	m := NewMesher(DefaultOptions())
	chunk := createRandomChunk(3, 20, 20)

	first, err := m.Mesh(chunk, 0)
	if err != nil {
		t.Fatalf("Mesh failed: %v", err)
	}
	// A different chunk in between must not leak into the next result.
	if _, err := m.Mesh(createUniformChunk(1, 1, 2, 90, 0), 1); err != nil {
		t.Fatalf("Mesh failed: %v", err)
	}
	second, err := m.Mesh(chunk, 0)
	if err != nil {
		t.Fatalf("Mesh failed: %v", err)
	}

	if len(first.Positions) != len(second.Positions) || len(first.Indices) != len(second.Indices) {
		t.Fatalf("mesh sizes differ between calls")
	}
	for i := range first.Colors {
		if first.Colors[i] != second.Colors[i] || first.Positions[i] != second.Positions[i] {
			t.Fatalf("attribute %d differs between calls", i)
		}
	}
}

func TestMesh_InvalidInput(t *testing.T) {
	if _, err := BuildMesh(nil, 0, DefaultOptions()); !errors.Is(err, ErrNilChunk) {
		t.Errorf("expected ErrNilChunk, got %v", err)
	}
	chunk := createUniformChunk(0, 0, 1, 1, 1)
	for _, lod := range []int{-1, 4} {
		if _, err := BuildMesh(chunk, lod, DefaultOptions()); !errors.Is(err, ErrInvalidLOD) {
			t.Errorf("lod %d: expected ErrInvalidLOD, got %v", lod, err)
		}
	}
}

func TestMesh_PitIsOccluded(t *testing.T) {
	chunk := createUniformChunk(30, 30, byte(BiomeMountain), 60, 3)
	chunk.Heights[formats.TileIndex(10, 10)] = 30

	mesh := mustMesh(t, chunk, 0)

	// Find the top vertices of the pit floor and check that they are darker
	// than an unoccluded top vertex of the same biome.
	dark := 0
	for v := 0; v < mesh.VertexCount(); v++ {
		if mesh.Positions[v*3+1] == 30 && mesh.Normals[v*3+1] == 1 {
			dark++
		}
	}
	if dark != 4 {
		t.Fatalf("expected 4 pit floor vertices, got %d", dark)
	}

	// The pit's north-west corner sees both sides occluded.
	shader := Shader{WorldTiles: 2048, EdgeFadeTiles: DefaultEdgeFadeTiles}
	want := shader.Vertex(BiomeMountain, FaceTop, AOFactor(3), 970, 970, 0)
	open := shader.Vertex(BiomeMountain, FaceTop, 1, 970, 970, 0)
	got := findTopColor(mesh, 970, 970, 30)
	if got != want {
		t.Errorf("pit corner color %v, want %v", got, want)
	}
	if got[0] >= open[0] {
		t.Errorf("pit corner red %f not darker than open corner %f", got[0], open[0])
	}
}

func TestMesh_BarbarianFog(t *testing.T) {
	claimed := mustMesh(t, createUniformChunk(20, 20, byte(BiomeGrassland), 40, 7), 0)
	barbarian := mustMesh(t, createUniformChunk(20, 20, byte(BiomeGrassland), 40, 0), 0)

	if claimed.VertexCount() != barbarian.VertexCount() {
		t.Fatalf("fog must not change topology")
	}
	differs := false
	for i := range claimed.Colors {
		if claimed.Colors[i] != barbarian.Colors[i] {
			differs = true
			break
		}
	}
	if !differs {
		t.Error("expected barbarian territory to be shaded differently")
	}
}

// Helper functions

func vec(data []float32, i uint32) mgl32.Vec3 {
	return mgl32.Vec3{data[i*3], data[i*3+1], data[i*3+2]}
}

func findTopColor(m *MeshData, x, z, y float32) mgl32.Vec3 {
	for v := uint32(0); v < uint32(m.VertexCount()); v++ {
		p := vec(m.Positions, v)
		if p[0] == x && p[1] == y && p[2] == z && m.Normals[v*3+1] == 1 {
			return vec(m.Colors, v)
		}
	}
	return mgl32.Vec3{}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

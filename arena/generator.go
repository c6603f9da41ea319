// Package arena 程序化生成对战地图：多代理随机雕刻 + 连通性裁剪 + 物件摆放。
package arena

import (
	"math/rand/v2"
)

// Generator 地图生成器。单个实例不是并发安全的，每次 Generate 都会重置内部状态
type Generator struct {
	cfg Config
	rng *rand.Rand

	floor            [MapSize][MapSize]bool
	floorCount       int
	walkers          []*walker
	chestCandidates  []Tile
	pickupCandidates []Tile
	reseeds          int
}

// New 创建生成器；rng 为 nil 时使用随机种子
func New(cfg Config, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{cfg: cfg.normalize(), rng: rng}
}

// NewSeeded 固定种子，便于复现
func NewSeeded(cfg Config, seed uint64) *Generator {
	return New(cfg, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Generate 使用默认参数生成一张地图（并发安全）
func Generate() *MapData {
	return New(DefaultConfig(), nil).Generate()
}

// Generate 生成一张地图。放置数量不足时只会少放，不会失败
func (g *Generator) Generate() *MapData {
	g.reset()
	g.carve()
	g.prune()

	m := &MapData{
		Width:   MapSize * TileSize,
		Height:  MapSize * TileSize,
		Objects: make([]MapObject, 0, g.cfg.CoverCount+g.cfg.ChestCount+g.cfg.PickupCount+MapSize*4),
	}
	g.paint(m)

	occupied := make(map[Tile]bool)
	g.placeCover(m, occupied)
	g.placeChests(m, occupied)
	g.placePickups(m, occupied)
	g.emitWalls(m)
	return m
}

// Reseeds 上一次生成中种群崩溃后重新投放的次数
func (g *Generator) Reseeds() int {
	return g.reseeds
}

func (g *Generator) reset() {
	g.floor = [MapSize][MapSize]bool{}
	g.floorCount = 0
	g.walkers = nil
	g.chestCandidates = nil
	g.pickupCandidates = nil
	g.reseeds = 0
}

// prune 从中心洪水填充，未被访问到的地面回退为墙
func (g *Generator) prune() {
	var seen [MapSize][MapSize]bool
	c := Center()
	queue := []Tile{c}
	seen[c.Y][c.X] = true
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		for _, d := range directions {
			x, y := t.X+d.dx, t.Y+d.dy
			if !inBounds(x, y) || seen[y][x] || !g.floor[y][x] {
				continue
			}
			seen[y][x] = true
			queue = append(queue, Tile{x, y})
		}
	}
	g.floorCount = 0
	for y := 0; y < MapSize; y++ {
		for x := 0; x < MapSize; x++ {
			if g.floor[y][x] && !seen[y][x] {
				g.floor[y][x] = false
			}
			if g.floor[y][x] {
				g.floorCount++
			}
		}
	}
}

// paint 地面随机贴图，墙保持 0
func (g *Generator) paint(m *MapData) {
	variants := TerrainFloorMax - TerrainFloor + 1
	for y := 0; y < MapSize; y++ {
		for x := 0; x < MapSize; x++ {
			if g.floor[y][x] {
				m.Terrain[y][x] = TerrainFloor + g.rng.IntN(variants)
			} else {
				m.Terrain[y][x] = TerrainWall
			}
		}
	}
}

// emitWalls 与地面相邻的墙格生成可渲染的墙体物件
func (g *Generator) emitWalls(m *MapData) {
	for y := 0; y < MapSize; y++ {
		for x := 0; x < MapSize; x++ {
			if g.floor[y][x] {
				continue
			}
			north, south := g.isFloor(x, y-1), g.isFloor(x, y+1)
			west, east := g.isFloor(x-1, y), g.isFloor(x+1, y)
			switch {
			case north || south:
				m.Objects = append(m.Objects, MapObject{Kind: KindWallHorizontal, X: x, Y: y})
			case west || east:
				m.Objects = append(m.Objects, MapObject{Kind: KindWallVertical, X: x, Y: y})
			}
		}
	}
}

func (g *Generator) isFloor(x, y int) bool {
	return inBounds(x, y) && g.floor[y][x]
}

func (g *Generator) floorTiles() []Tile {
	tiles := make([]Tile, 0, g.floorCount)
	for y := 0; y < MapSize; y++ {
		for x := 0; x < MapSize; x++ {
			if g.floor[y][x] {
				tiles = append(tiles, Tile{x, y})
			}
		}
	}
	return tiles
}

// floorNeighbors 四邻域地面数
func (g *Generator) floorNeighbors(t Tile) int {
	n := 0
	for _, d := range directions {
		if g.isFloor(t.X+d.dx, t.Y+d.dy) {
			n++
		}
	}
	return n
}

// enclosure 5x5 窗口内墙或越界格的数量
func (g *Generator) enclosure(t Tile) int {
	n := 0
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			if !g.isFloor(t.X+dx, t.Y+dy) {
				n++
			}
		}
	}
	return n
}

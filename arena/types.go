package arena

import "math"

const (
	// MapSize 地图边长（格子数），生成后不可变
	MapSize = 64
	// TileSize 每个格子的像素尺寸
	TileSize = 32
)

// 地形贴图编号：0 为基础墙体，TerrainFloor..TerrainFloorMax 为可行走地面（纯外观差异）
const (
	TerrainWall     = 0
	TerrainFloor    = 1
	TerrainFloorMax = 4
)

// ObjectKind 地图物件类型
type ObjectKind string

const (
	KindWallHorizontal ObjectKind = "wall-horizontal"
	KindWallVertical   ObjectKind = "wall-vertical"
	KindCover          ObjectKind = "cover"
	KindChest          ObjectKind = "chest"
	KindAmmo           ObjectKind = "ammo"
	KindHealth         ObjectKind = "health"
)

// Blocking 阻挡类物件（墙体、掩体）每格最多一个
func (k ObjectKind) Blocking() bool {
	switch k {
	case KindWallHorizontal, KindWallVertical, KindCover:
		return true
	}
	return false
}

// Collectible 可被拾取的物件
func (k ObjectKind) Collectible() bool {
	switch k {
	case KindChest, KindAmmo, KindHealth:
		return true
	}
	return false
}

// MapObject 放置在格子上的物件
type MapObject struct {
	Kind       ObjectKind `json:"kind"`
	X          int        `json:"x"`
	Y          int        `json:"y"`
	IsConsumed bool       `json:"isConsumed"`
}

// MapData 一局比赛的地图（生成后只读）
type MapData struct {
	Width   int                   `json:"width"`
	Height  int                   `json:"height"`
	Terrain [MapSize][MapSize]int `json:"terrain"` // [y][x]
	Objects []MapObject           `json:"objects"`
}

// Tile 格子坐标
type Tile struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Center 地图中心格，洪水填充的起点
func Center() Tile {
	return Tile{X: MapSize / 2, Y: MapSize / 2}
}

// TileCenter 返回格子中心的像素坐标
func TileCenter(t Tile) (float64, float64) {
	return float64(t.X*TileSize + TileSize/2), float64(t.Y*TileSize + TileSize/2)
}

func inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < MapSize && y < MapSize
}

// IsWalkable 地形编号是否处于可行走区间
func (m *MapData) IsWalkable(x, y int) bool {
	if !inBounds(x, y) {
		return false
	}
	return isFloor(m.Terrain[y][x])
}

func isFloor(id int) bool {
	return id >= TerrainFloor && id <= TerrainFloorMax
}

// BlockedAt 该格是否有阻挡物件
func (m *MapData) BlockedAt(x, y int) bool {
	for _, o := range m.Objects {
		if o.X == x && o.Y == y && o.Kind.Blocking() {
			return true
		}
	}
	return false
}

// SpawnTiles 所有可作为出生点的格子：可行走且无阻挡物
func (m *MapData) SpawnTiles() []Tile {
	blocked := make(map[Tile]bool)
	for _, o := range m.Objects {
		if o.Kind.Blocking() {
			blocked[Tile{o.X, o.Y}] = true
		}
	}
	tiles := make([]Tile, 0, MapSize*MapSize/2)
	for y := 0; y < MapSize; y++ {
		for x := 0; x < MapSize; x++ {
			t := Tile{x, y}
			if m.IsWalkable(x, y) && !blocked[t] {
				tiles = append(tiles, t)
			}
		}
	}
	return tiles
}

// FloorCount 可行走格子总数
func (m *MapData) FloorCount() int {
	n := 0
	for y := 0; y < MapSize; y++ {
		for x := 0; x < MapSize; x++ {
			if m.IsWalkable(x, y) {
				n++
			}
		}
	}
	return n
}

// Count 统计某类物件数量
func (m *MapData) Count(kind ObjectKind) int {
	n := 0
	for _, o := range m.Objects {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

func distance(a, b Tile) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

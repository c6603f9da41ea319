package arena

import "sort"

// spaced 与已放置的所有点欧氏距离均不小于 min
func spaced(t Tile, placed []Tile, minDist float64) bool {
	for _, p := range placed {
		if distance(t, p) < minDist {
			return false
		}
	}
	return true
}

// placeCover 在非走廊地面（>=3 个地面邻居）上贪心放置掩体
func (g *Generator) placeCover(m *MapData, occupied map[Tile]bool) {
	center := Center()
	var candidates []Tile
	for _, t := range g.floorTiles() {
		if t != center && g.floorNeighbors(t) >= 3 {
			candidates = append(candidates, t)
		}
	}
	g.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	var placed []Tile
	for i, t := range candidates {
		if len(placed) >= g.cfg.CoverCount || i >= g.cfg.PlacementAttempts {
			break
		}
		if occupied[t] || !spaced(t, placed, g.cfg.CoverSpacing) {
			continue
		}
		placed = append(placed, t)
		occupied[t] = true
		m.Objects = append(m.Objects, MapObject{Kind: KindCover, X: t.X, Y: t.Y})
	}
}

type scoredTile struct {
	tile  Tile
	score int
}

// placeChests 优先选择掉头点中封闭度高的位置，不足时按采样扫描补充
func (g *Generator) placeChests(m *MapData, occupied map[Tile]bool) {
	seen := make(map[Tile]bool)
	var primary []scoredTile
	for _, t := range g.chestCandidates {
		if seen[t] || !g.isFloor(t.X, t.Y) || occupied[t] {
			continue
		}
		seen[t] = true
		if s := g.enclosure(t); s >= g.cfg.ChestMinEnclosure {
			primary = append(primary, scoredTile{t, s})
		}
	}
	g.rng.Shuffle(len(primary), func(i, j int) { primary[i], primary[j] = primary[j], primary[i] })
	sort.SliceStable(primary, func(i, j int) bool { return primary[i].score > primary[j].score })

	candidates := make([]Tile, 0, len(primary))
	for _, st := range primary {
		candidates = append(candidates, st.tile)
	}
	if len(candidates) < g.cfg.ChestCount {
		candidates = append(candidates, g.scanEnclosed(seen, occupied)...)
	}

	var placed []Tile
	for i, t := range candidates {
		if len(placed) >= g.cfg.ChestCount || i >= g.cfg.PlacementAttempts {
			break
		}
		if occupied[t] || !spaced(t, placed, g.cfg.ChestSpacing) {
			continue
		}
		placed = append(placed, t)
		occupied[t] = true
		m.Objects = append(m.Objects, MapObject{Kind: KindChest, X: t.X, Y: t.Y})
	}
}

// scanEnclosed 以步长 2、随机偏移扫描整张地图，收集封闭度达标的地面格
func (g *Generator) scanEnclosed(skip, occupied map[Tile]bool) []Tile {
	var out []Tile
	ox, oy := g.rng.IntN(2), g.rng.IntN(2)
	for y := oy; y < MapSize; y += 2 {
		for x := ox; x < MapSize; x += 2 {
			t := Tile{x, y}
			if !g.floor[y][x] || skip[t] || occupied[t] {
				continue
			}
			if g.enclosure(t) >= g.cfg.ChestMinEnclosure {
				out = append(out, t)
			}
		}
	}
	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// placePickups 优先使用行走者消亡点，不足时随机采样地面
func (g *Generator) placePickups(m *MapData, occupied map[Tile]bool) {
	candidates := make([]Tile, 0, len(g.pickupCandidates))
	for _, t := range g.pickupCandidates {
		if g.isFloor(t.X, t.Y) {
			candidates = append(candidates, t)
		}
	}
	g.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	var placed []Tile
	try := func(t Tile) {
		if occupied[t] || !spaced(t, placed, g.cfg.PickupSpacing) {
			return
		}
		placed = append(placed, t)
		occupied[t] = true
		kind := KindAmmo
		if g.rng.IntN(2) == 1 {
			kind = KindHealth
		}
		m.Objects = append(m.Objects, MapObject{Kind: kind, X: t.X, Y: t.Y})
	}

	attempts := 0
	for _, t := range candidates {
		if len(placed) >= g.cfg.PickupCount || attempts >= g.cfg.PlacementAttempts {
			return
		}
		attempts++
		try(t)
	}
	floor := g.floorTiles()
	for len(placed) < g.cfg.PickupCount && attempts < g.cfg.PlacementAttempts {
		attempts++
		try(floor[g.rng.IntN(len(floor))])
	}
}

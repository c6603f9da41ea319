package arena

// direction 单位方向向量
type direction struct{ dx, dy int }

var directions = [4]direction{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

func (d direction) reverse() direction { return direction{-d.dx, -d.dy} }
func (d direction) left() direction    { return direction{d.dy, -d.dx} }
func (d direction) right() direction   { return direction{-d.dy, d.dx} }

// walker 雕刻代理，只在生成期间存在
type walker struct {
	pos    Tile
	dir    direction
	steps  int
	active bool
}

func (g *Generator) newWalker(at Tile) *walker {
	return &walker{pos: at, dir: directions[g.rng.IntN(len(directions))], active: true}
}

// carve 多代理随机游走，直到地面格数进入目标区间或步数耗尽
func (g *Generator) carve() {
	start := Center()
	g.carveBrush(start, 3)
	for i := 0; i < g.cfg.InitialWalkers; i++ {
		g.walkers = append(g.walkers, g.newWalker(start))
	}

	for step := 0; step < g.cfg.MaxSteps; step++ {
		if g.floorCount >= g.cfg.MinFloor {
			return
		}
		// 本步开始时的活跃数决定消亡概率
		active := g.activeWalkers()
		if active == 0 {
			g.reseed()
			continue
		}
		live := active
		var born []*walker
		for _, w := range g.walkers {
			if !w.active {
				continue
			}
			g.steer(w)
			g.advance(w)
			if g.floorCount >= g.cfg.MinFloor {
				return
			}
			if live < g.cfg.MaxWalkers && g.rng.Float64() < g.cfg.SpawnChance {
				born = append(born, g.newWalker(w.pos))
				live++
			}
			if active > g.cfg.MinWalkers && g.rng.Float64() < g.cfg.DespawnChance*float64(active) {
				w.active = false
				live--
				g.pickupCandidates = append(g.pickupCandidates, w.pos)
			}
		}
		g.walkers = compact(append(g.walkers, born...))
	}
}

// steer 掉头 / 左右转 / 直行
func (g *Generator) steer(w *walker) {
	r := g.rng.Float64()
	switch {
	case r < g.cfg.TurnAroundChance:
		w.dir = w.dir.reverse()
		g.chestCandidates = append(g.chestCandidates, w.pos)
	case r < g.cfg.TurnAroundChance+g.cfg.TurnChance:
		if g.rng.IntN(2) == 0 {
			w.dir = w.dir.left()
		} else {
			w.dir = w.dir.right()
		}
	}
}

// advance 前进一格并雕刻；碰到边框则反弹
func (g *Generator) advance(w *walker) {
	next := Tile{w.pos.X + w.dir.dx, w.pos.Y + w.dir.dy}
	if !interior(next.X, next.Y) {
		w.dir = w.dir.reverse()
		next = Tile{w.pos.X + w.dir.dx, w.pos.Y + w.dir.dy}
		if !interior(next.X, next.Y) {
			return
		}
	}
	w.pos = next
	w.steps++
	g.carveBrush(w.pos, g.brushSize())
}

// brushSize 按权重选择 1x1 / 2x2 / 3x3
func (g *Generator) brushSize() int {
	weights := g.cfg.BrushWeights
	total := weights[0] + weights[1] + weights[2]
	r := g.rng.IntN(total)
	for i, w := range weights {
		if r < w {
			return i + 1
		}
		r -= w
	}
	return 1
}

func (g *Generator) carveBrush(at Tile, size int) {
	lo := -(size - 1) / 2
	for dy := lo; dy < lo+size; dy++ {
		for dx := lo; dx < lo+size; dx++ {
			x, y := at.X+dx, at.Y+dy
			if interior(x, y) && !g.floor[y][x] {
				g.floor[y][x] = true
				g.floorCount++
			}
		}
	}
}

// reseed 种群全部消亡时，从随机已有地面格重新投放
func (g *Generator) reseed() {
	tiles := g.floorTiles()
	at := tiles[g.rng.IntN(len(tiles))]
	g.walkers = g.walkers[:0]
	for i := 0; i < g.cfg.InitialWalkers; i++ {
		g.walkers = append(g.walkers, g.newWalker(at))
	}
	g.reseeds++
}

func (g *Generator) activeWalkers() int {
	n := 0
	for _, w := range g.walkers {
		if w.active {
			n++
		}
	}
	return n
}

func compact(ws []*walker) []*walker {
	out := ws[:0]
	for _, w := range ws {
		if w.active {
			out = append(out, w)
		}
	}
	return out
}

// interior 边框一圈保持为墙
func interior(x, y int) bool {
	return x >= 1 && y >= 1 && x < MapSize-1 && y < MapSize-1
}

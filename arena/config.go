package arena

// Config 地图生成参数
type Config struct {
	// 行走者数量控制
	InitialWalkers int `yaml:"initial_walkers" json:"initialWalkers"`
	MinWalkers     int `yaml:"min_walkers" json:"minWalkers"`
	MaxWalkers     int `yaml:"max_walkers" json:"maxWalkers"`

	// 每步决策概率
	TurnAroundChance float64 `yaml:"turn_around_chance" json:"turnAroundChance"`
	TurnChance       float64 `yaml:"turn_chance" json:"turnChance"`
	SpawnChance      float64 `yaml:"spawn_chance" json:"spawnChance"`
	DespawnChance    float64 `yaml:"despawn_chance" json:"despawnChance"` // 乘以当前活跃数

	// 雕刻块权重：1x1 / 2x2 / 3x3
	BrushWeights [3]int `yaml:"brush_weights" json:"brushWeights"`

	// 地面格数目标区间
	MinFloor int `yaml:"min_floor" json:"minFloor"`
	MaxFloor int `yaml:"max_floor" json:"maxFloor"`
	MaxSteps int `yaml:"max_steps" json:"maxSteps"`

	CoverCount   int     `yaml:"cover_count" json:"coverCount"`
	CoverSpacing float64 `yaml:"cover_spacing" json:"coverSpacing"`

	ChestCount        int     `yaml:"chest_count" json:"chestCount"`
	ChestSpacing      float64 `yaml:"chest_spacing" json:"chestSpacing"`
	ChestMinEnclosure int     `yaml:"chest_min_enclosure" json:"chestMinEnclosure"`

	PickupCount   int     `yaml:"pickup_count" json:"pickupCount"`
	PickupSpacing float64 `yaml:"pickup_spacing" json:"pickupSpacing"`

	// 每类物件放置尝试上限
	PlacementAttempts int `yaml:"placement_attempts" json:"placementAttempts"`
}

// DefaultConfig 默认参数：64x64 地图约一半为地面
func DefaultConfig() Config {
	return Config{
		InitialWalkers:    3,
		MinWalkers:        2,
		MaxWalkers:        8,
		TurnAroundChance:  0.04,
		TurnChance:        0.25,
		SpawnChance:       0.05,
		DespawnChance:     0.01,
		BrushWeights:      [3]int{2, 5, 3},
		MinFloor:          1800,
		MaxFloor:          2600,
		MaxSteps:          50000,
		CoverCount:        40,
		CoverSpacing:      4,
		ChestCount:        4,
		ChestSpacing:      14,
		ChestMinEnclosure: 12,
		PickupCount:       12,
		PickupSpacing:     6,
		PlacementAttempts: 2000,
	}
}

// normalize 修正明显非法的参数，避免生成器陷入死循环
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.InitialWalkers <= 0 {
		c.InitialWalkers = d.InitialWalkers
	}
	if c.MinWalkers <= 0 {
		c.MinWalkers = 1
	}
	if c.MaxWalkers < c.InitialWalkers {
		c.MaxWalkers = c.InitialWalkers
	}
	if c.MinWalkers > c.MaxWalkers {
		c.MinWalkers = c.MaxWalkers
	}
	if c.BrushWeights[0]+c.BrushWeights[1]+c.BrushWeights[2] <= 0 {
		c.BrushWeights = d.BrushWeights
	}
	if c.MinFloor <= 0 {
		c.MinFloor = d.MinFloor
	}
	// 边框一圈保留为墙
	if limit := (MapSize - 2) * (MapSize - 2); c.MinFloor > limit {
		c.MinFloor = limit
	}
	if c.MaxFloor < c.MinFloor {
		c.MaxFloor = c.MinFloor
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = d.MaxSteps
	}
	if c.PlacementAttempts <= 0 {
		c.PlacementAttempts = d.PlacementAttempts
	}
	return c
}

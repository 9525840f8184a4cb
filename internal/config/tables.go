package config

// Typed game tables. Field names map 1:1 onto the merged YAML via
// mapstructure tags; validator tags guard reload against broken edits.

// CropConfig describes one plantable crop.
type CropConfig struct {
	Name           string `mapstructure:"name" validate:"required"`
	RequiredLevel  int    `mapstructure:"requiredLevel" validate:"min=1"`
	GrowTime       int    `mapstructure:"growTime" validate:"min=1"` // seconds
	BaseYield      int    `mapstructure:"baseYield" validate:"min=1"`
	Experience     int64  `mapstructure:"experience" validate:"min=0"`
	BasePrice      int64  `mapstructure:"basePrice" validate:"min=0"`
	Category       string `mapstructure:"category"`
	IsDynamicPrice bool   `mapstructure:"is_dynamic_price"`
}

// ItemEffect carries effect parameters keyed by name (speedBonus,
// durationMs, defenseBonus, ...).
type ItemEffect map[string]float64

// ItemConfig describes one inventory item.
type ItemConfig struct {
	Name           string     `mapstructure:"name" validate:"required"`
	Price          int64      `mapstructure:"price" validate:"min=0"`
	SellPrice      int64      `mapstructure:"sellPrice"`
	MaxStack       int        `mapstructure:"maxStack"`
	Category       string     `mapstructure:"category"`
	IsDynamicPrice bool       `mapstructure:"is_dynamic_price"`
	Effect         ItemEffect `mapstructure:"effect"`
}

// LevelRewards is granted once on reaching a level.
type LevelRewards struct {
	Coins int64          `mapstructure:"coins"`
	Items map[string]int `mapstructure:"items"`
}

// LevelConfig is one row of the level table.
type LevelConfig struct {
	Experience int64         `mapstructure:"experience" validate:"min=0"`
	Rewards    *LevelRewards `mapstructure:"rewards"`
}

// UpgradeCost gates a land quality upgrade.
type UpgradeCost struct {
	GoldCost      int64          `mapstructure:"goldCost" validate:"min=0"`
	LevelRequired int            `mapstructure:"levelRequired" validate:"min=1"`
	Materials     map[string]int `mapstructure:"materials"`
}

// QualityConfig holds the percentage modifiers of one land quality.
type QualityConfig struct {
	TimeReduction   int         `mapstructure:"timeReduction" validate:"min=0,max=100"`
	ProductionBonus int         `mapstructure:"productionBonus" validate:"min=0"`
	ExperienceBonus int         `mapstructure:"experienceBonus" validate:"min=0"`
	Upgrade         UpgradeCost `mapstructure:"upgrade"`
}

// LandDefaults sizes a new farm.
type LandDefaults struct {
	StartingLands int `mapstructure:"startingLands" validate:"min=1"`
	MaxLands      int `mapstructure:"maxLands" validate:"min=1"`
}

// ExpansionStep gates expanding to land n (the map key).
type ExpansionStep struct {
	GoldCost      int64 `mapstructure:"goldCost" validate:"min=0"`
	LevelRequired int   `mapstructure:"levelRequired" validate:"min=1"`
}

// MarketPricing tunes baseline computation.
type MarketPricing struct {
	HistoryDays   int   `mapstructure:"history_days" validate:"min=1"`
	MinBaseSupply int64 `mapstructure:"min_base_supply" validate:"min=1"`
}

// FloatingItems declares which items float: by category membership,
// by explicit id, or per-item is_dynamic_price flags.
type FloatingItems struct {
	Categories []string `mapstructure:"categories"`
	Items      []string `mapstructure:"items"`
}

// MarketConfig is the market engine table.
type MarketConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BatchSize     int           `mapstructure:"batch_size"`
	Pricing       MarketPricing `mapstructure:"pricing"`
	FloatingItems FloatingItems `mapstructure:"floating_items"`
}

// BackupConfig drives the backup worker. Durations are milliseconds.
type BackupConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Interval      int64  `mapstructure:"interval" validate:"min=1000"`
	MaxBackups    int    `mapstructure:"maxBackups" validate:"min=1"`
	FilePrefix    string `mapstructure:"filePrefix"`
	StartDelay    int64  `mapstructure:"startDelay" validate:"min=0"`
	RetryCount    int    `mapstructure:"retryCount" validate:"min=0"`
	RetryInterval int64  `mapstructure:"retryInterval" validate:"min=0"`
	Compress      bool   `mapstructure:"compress"`
}

// StealConfig tunes the steal operation.
type StealConfig struct {
	Rewards struct {
		BonusByQuality map[string]float64 `mapstructure:"bonusByQuality"`
	} `mapstructure:"rewards"`
	CooldownMinutes int `mapstructure:"cooldownMinutes"`
}

// RankingWeights are the score weights of the farm-owner ranking.
type RankingWeights struct {
	LandCountWeight        float64 `mapstructure:"landCountWeight"`
	LandQualityBonusWeight float64 `mapstructure:"landQualityBonusWeight"`
	LevelWeight            float64 `mapstructure:"levelWeight"`
	AssetsLog10Weight      float64 `mapstructure:"assetsLog10Weight"`
}

// RankingConfig is the ranking service table.
type RankingConfig struct {
	ScoreWeights   RankingWeights `mapstructure:"scoreWeights"`
	CacheTimeoutMs int64          `mapstructure:"cacheTimeoutMs"`
	PageSize       int            `mapstructure:"pageSize"`
}

// TaskConfig drives one periodic maintenance job. Durations are
// milliseconds.
type TaskConfig struct {
	Enabled       bool  `mapstructure:"enabled"`
	Interval      int64 `mapstructure:"interval" validate:"min=1000"`
	Timeout       int64 `mapstructure:"timeout" validate:"min=1000"`
	RetryAttempts int   `mapstructure:"retryAttempts" validate:"min=0"`
}

// TasksConfig names the maintenance jobs the task loop runs.
type TasksConfig struct {
	Dispatch   TaskConfig `mapstructure:"dispatch"`
	Cleanup    TaskConfig `mapstructure:"cleanup"`
	StatsReset TaskConfig `mapstructure:"statsReset"`
	Protection TaskConfig `mapstructure:"protection"`
}

// For returns the job config by task-loop job name.
func (t TasksConfig) For(name string) (TaskConfig, bool) {
	switch name {
	case "dispatch":
		return t.Dispatch, true
	case "cleanup":
		return t.Cleanup, true
	case "statsReset":
		return t.StatsReset, true
	case "protection":
		return t.Protection, true
	}
	return TaskConfig{}, false
}

// CarePenalty describes what a fired checkpoint does.
type CarePenalty struct {
	Type                  string `mapstructure:"type"` // growthDelay | yieldReduction
	DelayPercent          int    `mapstructure:"delayPercent"`
	YieldReductionPercent int    `mapstructure:"reductionPercent"`
}

// CareTypeConfig drives one care lottery type.
type CareTypeConfig struct {
	Checkpoints []float64   `mapstructure:"checkpoints" validate:"dive,min=0,max=1"`
	Probability float64     `mapstructure:"probability" validate:"min=0,max=1"`
	Penalty     CarePenalty `mapstructure:"penalty"`
}

// CareConfig holds both care lotteries.
type CareConfig struct {
	Water CareTypeConfig `mapstructure:"water"`
	Pest  CareTypeConfig `mapstructure:"pest"`
}

// PlayerDefaults seeds new aggregates.
type PlayerDefaults struct {
	StartingCoins        int64 `mapstructure:"startingCoins" validate:"min=0"`
	InventoryCapacity    int   `mapstructure:"inventoryCapacity" validate:"min=1"`
	MaxInventoryCapacity int   `mapstructure:"maxInventoryCapacity" validate:"min=1"`
	DefaultMaxStack      int   `mapstructure:"defaultMaxStack" validate:"min=1"`
}

// LandTables groups the land configuration.
type LandTables struct {
	Quality   map[string]QualityConfig `mapstructure:"quality"`
	Default   LandDefaults             `mapstructure:"default"`
	Expansion map[int]ExpansionStep    `mapstructure:"expansion"`
}

// Snapshot is one immutable view of all game tables. Reloads swap the
// whole snapshot; readers never see a torn config.
type Snapshot struct {
	Crops   map[string]CropConfig            `mapstructure:"crops" validate:"required,dive"`
	Items   map[string]map[string]ItemConfig `mapstructure:"items"` // category -> id -> item
	Levels  map[int]LevelConfig              `mapstructure:"levels" validate:"required"`
	Land    LandTables                       `mapstructure:"land"`
	Market  MarketConfig                     `mapstructure:"market"`
	Backup  BackupConfig                     `mapstructure:"backup"`
	Steal   StealConfig                      `mapstructure:"steal"`
	Ranking RankingConfig                    `mapstructure:"ranking"`
	Tasks   TasksConfig                      `mapstructure:"tasks"`
	Care    CareConfig                       `mapstructure:"care"`
	Player  PlayerDefaults                   `mapstructure:"player"`
}

// Crop returns the crop config by id.
func (s *Snapshot) Crop(id string) (CropConfig, bool) {
	c, ok := s.Crops[id]
	return c, ok
}

// Item looks an item up across all categories.
func (s *Snapshot) Item(id string) (ItemConfig, string, bool) {
	for category, items := range s.Items {
		if item, ok := items[id]; ok {
			return item, category, true
		}
	}
	return ItemConfig{}, "", false
}

// ItemsByCategory returns one category's items (possibly nil).
func (s *Snapshot) ItemsByCategory(category string) map[string]ItemConfig {
	return s.Items[category]
}

// Quality returns the quality table row, tolerating legacy alias names.
func (s *Snapshot) QualityFor(name string) (QualityConfig, bool) {
	if q, ok := s.Land.Quality[name]; ok {
		return q, true
	}
	switch name {
	case "copper":
		q, ok := s.Land.Quality["red"]
		return q, ok
	case "silver":
		q, ok := s.Land.Quality["black"]
		return q, ok
	}
	return QualityConfig{}, false
}

// CareFor returns the lottery config for a care type.
func (s *Snapshot) CareFor(careType string) (CareTypeConfig, bool) {
	switch careType {
	case "water":
		return s.Care.Water, true
	case "pest":
		return s.Care.Pest, true
	}
	return CareTypeConfig{}, false
}

package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/logger"
)

// Registry provides typed, read-mostly access to the game tables with
// hot reload. Reload builds a fresh Snapshot, validates it, swaps it
// atomically and notifies subscribers by name; a broken edit keeps the
// previous snapshot in place.
type Registry struct {
	v        *viper.Viper
	validate *validator.Validate
	current  atomic.Pointer[Snapshot]

	mu   sync.Mutex
	subs map[string]func(*Snapshot)
}

// NewRegistry loads the merged table file (user file over defaults).
// A missing user file falls back to defaults alone; a merge that still
// lacks the crop or level tables yields ErrConfigMissing.
func NewRegistry(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("read game config %s: %w", path, err)
			}
		}
	}

	r := &Registry{
		v:        v,
		validate: validator.New(),
		subs:     make(map[string]func(*Snapshot)),
	}
	snap, err := r.build()
	if err != nil {
		return nil, err
	}
	r.current.Store(snap)
	return r, nil
}

// NewRegistryFromYAML builds a registry from an in-memory YAML
// document. Used by tests; Watch is a no-op for these registries.
func NewRegistryFromYAML(doc string) (*Registry, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.ReadConfig(strings.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("read game config: %w", err)
	}

	r := &Registry{
		v:        v,
		validate: validator.New(),
		subs:     make(map[string]func(*Snapshot)),
	}
	snap, err := r.build()
	if err != nil {
		return nil, err
	}
	r.current.Store(snap)
	return r, nil
}

// Snapshot returns the current immutable table snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Subscribe registers a named reload hook. Re-subscribing under the
// same name replaces the previous hook.
func (r *Registry) Subscribe(name string, fn func(*Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[name] = fn
}

// Watch starts watching the underlying file for changes.
func (r *Registry) Watch(ctx context.Context) {
	r.v.OnConfigChange(func(_ fsnotify.Event) {
		log := logger.FromContext(ctx)
		snap, err := r.build()
		if err != nil {
			log.Error("config reload rejected, keeping previous snapshot", "error", err)
			return
		}
		r.current.Store(snap)
		r.mu.Lock()
		subs := make(map[string]func(*Snapshot), len(r.subs))
		for name, fn := range r.subs {
			subs[name] = fn
		}
		r.mu.Unlock()
		for name, fn := range subs {
			log.Info("config reloaded, notifying subscriber", "subscriber", name)
			fn(snap)
		}
	})
	r.v.WatchConfig()
}

func (r *Registry) build() (*Snapshot, error) {
	var snap Snapshot
	if err := r.v.Unmarshal(&snap, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrConfigMissing, err)
	}
	if len(snap.Crops) == 0 {
		return nil, fmt.Errorf("%w: crops", domain.ErrConfigMissing)
	}
	if len(snap.Levels) == 0 {
		return nil, fmt.Errorf("%w: levels", domain.ErrConfigMissing)
	}
	if err := r.validate.Struct(&snap); err != nil {
		return nil, fmt.Errorf("%w: validate: %v", domain.ErrConfigMissing, err)
	}
	return &snap, nil
}

// setDefaults registers the table defaults partial user files merge over.
func setDefaults(v *viper.Viper) {
	v.SetDefault("player.startingCoins", 100)
	v.SetDefault("player.inventoryCapacity", 100)
	v.SetDefault("player.maxInventoryCapacity", 500)
	v.SetDefault("player.defaultMaxStack", 99)

	v.SetDefault("land.default.startingLands", 6)
	v.SetDefault("land.default.maxLands", 24)
	v.SetDefault("land.quality.normal.timeReduction", 0)
	v.SetDefault("land.quality.normal.productionBonus", 0)
	v.SetDefault("land.quality.normal.experienceBonus", 0)
	v.SetDefault("land.quality.red.timeReduction", 10)
	v.SetDefault("land.quality.red.productionBonus", 10)
	v.SetDefault("land.quality.red.experienceBonus", 10)
	v.SetDefault("land.quality.red.upgrade.goldCost", 5000)
	v.SetDefault("land.quality.red.upgrade.levelRequired", 10)
	v.SetDefault("land.quality.black.timeReduction", 20)
	v.SetDefault("land.quality.black.productionBonus", 20)
	v.SetDefault("land.quality.black.experienceBonus", 20)
	v.SetDefault("land.quality.black.upgrade.goldCost", 20000)
	v.SetDefault("land.quality.black.upgrade.levelRequired", 20)
	v.SetDefault("land.quality.gold.timeReduction", 30)
	v.SetDefault("land.quality.gold.productionBonus", 40)
	v.SetDefault("land.quality.gold.experienceBonus", 30)
	v.SetDefault("land.quality.gold.upgrade.goldCost", 80000)
	v.SetDefault("land.quality.gold.upgrade.levelRequired", 30)

	v.SetDefault("care.water.checkpoints", []float64{0.3, 0.6})
	v.SetDefault("care.water.probability", 0.5)
	v.SetDefault("care.water.penalty.type", "growthDelay")
	v.SetDefault("care.water.penalty.delayPercent", 20)
	v.SetDefault("care.pest.checkpoints", []float64{0.5, 0.8})
	v.SetDefault("care.pest.probability", 0.3)
	v.SetDefault("care.pest.penalty.type", "yieldReduction")
	// No single authoritative value upstream; 20% is the agreed fallback.
	v.SetDefault("care.pest.penalty.reductionPercent", 20)

	v.SetDefault("market.enabled", true)
	v.SetDefault("market.batch_size", 50)
	v.SetDefault("market.pricing.history_days", 7)
	v.SetDefault("market.pricing.min_base_supply", 10)
	v.SetDefault("market.floating_items.categories", []string{"crops"})

	v.SetDefault("backup.enabled", true)
	v.SetDefault("backup.interval", 3600000)
	v.SetDefault("backup.maxBackups", 24)
	v.SetDefault("backup.filePrefix", "farm_backup")
	v.SetDefault("backup.startDelay", 60000)
	v.SetDefault("backup.retryCount", 3)
	v.SetDefault("backup.retryInterval", 5000)
	v.SetDefault("backup.compress", false)

	v.SetDefault("steal.cooldownMinutes", 60)
	v.SetDefault("steal.rewards.bonusByQuality", map[string]float64{
		"normal": 1.0, "red": 1.1, "black": 1.2, "gold": 1.4,
	})

	v.SetDefault("tasks.dispatch.enabled", true)
	v.SetDefault("tasks.dispatch.interval", 5000)
	v.SetDefault("tasks.dispatch.timeout", 30000)
	v.SetDefault("tasks.dispatch.retryAttempts", 0)
	v.SetDefault("tasks.cleanup.enabled", true)
	v.SetDefault("tasks.cleanup.interval", 3600000)
	v.SetDefault("tasks.cleanup.timeout", 60000)
	v.SetDefault("tasks.cleanup.retryAttempts", 1)
	v.SetDefault("tasks.statsReset.enabled", true)
	v.SetDefault("tasks.statsReset.interval", 30000)
	v.SetDefault("tasks.statsReset.timeout", 60000)
	v.SetDefault("tasks.statsReset.retryAttempts", 1)
	v.SetDefault("tasks.protection.enabled", true)
	v.SetDefault("tasks.protection.interval", 600000)
	v.SetDefault("tasks.protection.timeout", 60000)
	v.SetDefault("tasks.protection.retryAttempts", 0)

	v.SetDefault("ranking.scoreWeights.landCountWeight", 10)
	v.SetDefault("ranking.scoreWeights.landQualityBonusWeight", 15)
	v.SetDefault("ranking.scoreWeights.levelWeight", 5)
	v.SetDefault("ranking.scoreWeights.assetsLog10Weight", 20)
	v.SetDefault("ranking.cacheTimeoutMs", 60000)
	v.SetDefault("ranking.pageSize", 10)
}

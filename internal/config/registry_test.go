package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingyu42/farm-game-sub000/internal/domain"
)

const minimalYAML = `
crops:
  wheat:
    name: Wheat
    requiredLevel: 1
    growTime: 60
    baseYield: 3
    experience: 10
    basePrice: 20
    category: crops
levels:
  1: { experience: 0 }
  2: { experience: 100 }
`

func TestRegistryLoadsTypedTables(t *testing.T) {
	r, err := NewRegistryFromYAML(minimalYAML)
	require.NoError(t, err)

	snap := r.Snapshot()
	crop, ok := snap.Crop("wheat")
	require.True(t, ok)
	assert.Equal(t, "Wheat", crop.Name)
	assert.Equal(t, 60, crop.GrowTime)

	lvl, ok := snap.Levels[2]
	require.True(t, ok)
	assert.Equal(t, int64(100), lvl.Experience)
}

func TestRegistryDefaultsFillPartialMerge(t *testing.T) {
	r, err := NewRegistryFromYAML(minimalYAML)
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Equal(t, 6, snap.Land.Default.StartingLands)
	assert.Equal(t, 7, snap.Market.Pricing.HistoryDays)
	assert.Equal(t, int64(10), snap.Market.Pricing.MinBaseSupply)
	assert.Equal(t, 20, snap.Care.Pest.Penalty.YieldReductionPercent)
	assert.InDelta(t, 0.5, snap.Care.Water.Probability, 1e-9)
	assert.Equal(t, "farm_backup", snap.Backup.FilePrefix)
}

func TestRegistryMissingCropsTable(t *testing.T) {
	_, err := NewRegistryFromYAML(`levels: {1: {experience: 0}}`)
	assert.ErrorIs(t, err, domain.ErrConfigMissing)
}

func TestQualityForToleratesAliases(t *testing.T) {
	r, err := NewRegistryFromYAML(minimalYAML)
	require.NoError(t, err)
	snap := r.Snapshot()

	red, ok := snap.QualityFor("red")
	require.True(t, ok)
	copper, ok := snap.QualityFor("copper")
	require.True(t, ok)
	assert.Equal(t, red, copper)

	_, ok = snap.QualityFor("jade")
	assert.False(t, ok)
}

func TestItemLookupAcrossCategories(t *testing.T) {
	r, err := NewRegistryFromYAML(minimalYAML + `
items:
  seeds:
    wheat_seed: { name: Wheat Seed, price: 10, category: seeds }
`)
	require.NoError(t, err)

	item, category, ok := r.Snapshot().Item("wheat_seed")
	require.True(t, ok)
	assert.Equal(t, "seeds", category)
	assert.Equal(t, int64(10), item.Price)

	_, _, ok = r.Snapshot().Item("no_such_item")
	assert.False(t, ok)
}

func TestSubscribeReplacesByName(t *testing.T) {
	r, err := NewRegistryFromYAML(minimalYAML)
	require.NoError(t, err)

	calls := 0
	r.Subscribe("market", func(*Snapshot) { calls++ })
	r.Subscribe("market", func(*Snapshot) { calls += 10 })

	r.mu.Lock()
	assert.Len(t, r.subs, 1)
	r.mu.Unlock()
}

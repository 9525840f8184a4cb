// Package gamecfg provides a small but complete game-table fixture
// shared across service tests.
package gamecfg

import (
	"testing"

	"github.com/xingyu42/farm-game-sub000/internal/config"
)

// FixtureYAML is a minimal merged game config: two crops, the item
// tables the lifecycle tests need, and a short level curve. Everything
// else comes from registry defaults.
const FixtureYAML = `
crops:
  wheat:
    name: Wheat
    requiredLevel: 1
    growTime: 60
    baseYield: 3
    experience: 10
    basePrice: 20
    category: crops
    is_dynamic_price: true
  carrot:
    name: Carrot
    requiredLevel: 3
    growTime: 120
    baseYield: 5
    experience: 25
    basePrice: 35
    category: crops

items:
  seeds:
    wheat_seed:
      name: Wheat Seed
      price: 10
      maxStack: 99
      category: seeds
    carrot_seed:
      name: Carrot Seed
      price: 18
      maxStack: 99
      category: seeds
  fertilizer:
    basic_fertilizer:
      name: Basic Fertilizer
      price: 30
      maxStack: 50
      category: fertilizer
      effect:
        speedBonus: 0.2
  pesticide:
    basic_pesticide:
      name: Basic Pesticide
      price: 25
      maxStack: 50
      category: pesticide
  defense:
    dog_food:
      name: Dog Food
      price: 60
      maxStack: 20
      category: defense
      effect:
        durationMs: 3600000
        defenseBonus: 20
  materials:
    stone:
      name: Stone
      price: 5
      maxStack: 999
      category: materials

levels:
  1: { experience: 0 }
  2: { experience: 100, rewards: { coins: 50, items: { wheat_seed: 2 } } }
  3: { experience: 300 }
  4: { experience: 700 }
  5: { experience: 1500 }

land:
  expansion:
    7: { goldCost: 1000, levelRequired: 5 }
    8: { goldCost: 2500, levelRequired: 8 }
`

// NewRegistry builds a registry from the fixture, failing the test on error.
func NewRegistry(t *testing.T) *config.Registry {
	t.Helper()
	r, err := config.NewRegistryFromYAML(FixtureYAML)
	if err != nil {
		t.Fatalf("fixture registry: %v", err)
	}
	return r
}

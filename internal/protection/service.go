// Package protection manages timed defensive buffs and theft
// cooldowns stored on the player aggregate.
package protection

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/inventory"
	"github.com/xingyu42/farm-game-sub000/internal/player"
)

// BuffStatus is the live view of one timed buff.
type BuffStatus struct {
	Active      bool  `json:"active"`
	RemainingMs int64 `json:"remainingMs"`
}

// Status aggregates a player's defensive state.
type Status struct {
	DogFood           BuffStatus `json:"dogFood"`
	FarmProtection    BuffStatus `json:"farmProtection"`
	StealCooldown     BuffStatus `json:"stealCooldown"`
	TotalDefenseBonus int        `json:"totalDefenseBonus"`
	IsProtected       bool       `json:"isProtected"`
}

// Service defines the protection operations
type Service interface {
	ApplyDogFood(ctx context.Context, playerID, itemID string) error
	SetFarmProtection(ctx context.Context, playerID string, minutes int) error
	SetStealCooldown(ctx context.Context, playerID string, minutes int) error
	GetStatus(ctx context.Context, playerID string) (*Status, error)
	RemoveExpired(ctx context.Context, playerID string) error
}

type service struct {
	players  *player.Store
	registry *config.Registry
	clock    clockwork.Clock
}

// NewService creates a new protection service
func NewService(players *player.Store, registry *config.Registry, clock clockwork.Clock) Service {
	return &service{players: players, registry: registry, clock: clock}
}

func (s *service) now() int64 {
	return s.clock.Now().UnixMilli()
}

// ApplyDogFood consumes one defense item and replaces the dog-food
// buff. A fresh application never stacks onto the previous one.
func (s *service) ApplyDogFood(ctx context.Context, playerID, itemID string) error {
	snap := s.registry.Snapshot()
	item, category, ok := snap.Item(itemID)
	if !ok || category != domain.CategoryDefense {
		return fmt.Errorf("%w: %s is not a defense item", domain.ErrValidation, itemID)
	}
	duration := int64(item.Effect["durationMs"])
	if duration <= 0 {
		return fmt.Errorf("%w: %s has no duration", domain.ErrConfigMissing, itemID)
	}
	return s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		now := s.now()
		if inventory.Count(tx.Player(), itemID) < 1 {
			return fmt.Errorf("%w: %s", domain.ErrInsufficientResources, itemID)
		}
		var opErr error
		tx.Mutate(func(p *domain.Player) {
			if opErr = inventory.Remove(p, itemID, 1, now); opErr != nil {
				return
			}
			p.Protection.DogFood = domain.TimedBuff{
				Type:          itemID,
				EffectEndTime: now + duration,
				DefenseBonus:  int(item.Effect["defenseBonus"]),
			}
		})
		return opErr
	})
}

func (s *service) SetFarmProtection(ctx context.Context, playerID string, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: protection minutes %d", domain.ErrValidation, minutes)
	}
	return s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeProtection, func(tx *player.Tx) error {
		endTime := s.now() + int64(minutes)*60_000
		tx.Mutate(func(p *domain.Player) {
			p.Protection.FarmProtection = domain.TimedBuff{Type: "farm_protection", EffectEndTime: endTime}
		})
		return nil
	})
}

func (s *service) SetStealCooldown(ctx context.Context, playerID string, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: cooldown minutes %d", domain.ErrValidation, minutes)
	}
	return s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeProtection, func(tx *player.Tx) error {
		endTime := s.now() + int64(minutes)*60_000
		tx.Mutate(func(p *domain.Player) {
			p.Stealing.CooldownEndTime = endTime
		})
		return nil
	})
}

func buffStatus(endTime, now int64) BuffStatus {
	if endTime <= now {
		return BuffStatus{}
	}
	return BuffStatus{Active: true, RemainingMs: endTime - now}
}

func (s *service) GetStatus(ctx context.Context, playerID string) (*Status, error) {
	p, err := s.players.Load(ctx, playerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	status := &Status{
		DogFood:        buffStatus(p.Protection.DogFood.EffectEndTime, now),
		FarmProtection: buffStatus(p.Protection.FarmProtection.EffectEndTime, now),
		StealCooldown:  buffStatus(p.Stealing.CooldownEndTime, now),
	}
	if status.DogFood.Active {
		status.TotalDefenseBonus = p.Protection.DogFood.DefenseBonus
	}
	status.IsProtected = status.DogFood.Active || status.FarmProtection.Active
	return status, nil
}

// RemoveExpired clears lapsed buffs and cooldowns, writing only when
// something actually changed.
func (s *service) RemoveExpired(ctx context.Context, playerID string) error {
	return s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeProtection, func(tx *player.Tx) error {
		now := s.now()
		p := tx.Player()
		expiredDog := p.Protection.DogFood.EffectEndTime > 0 && !p.Protection.DogFood.Active(now)
		expiredFarm := p.Protection.FarmProtection.EffectEndTime > 0 && !p.Protection.FarmProtection.Active(now)
		expiredCooldown := p.Stealing.CooldownEndTime > 0 && p.Stealing.CooldownEndTime <= now
		if !expiredDog && !expiredFarm && !expiredCooldown {
			return nil
		}
		tx.Mutate(func(p *domain.Player) {
			if expiredDog {
				p.Protection.DogFood = domain.TimedBuff{}
			}
			if expiredFarm {
				p.Protection.FarmProtection = domain.TimedBuff{}
			}
			if expiredCooldown {
				p.Stealing.CooldownEndTime = 0
			}
		})
		return nil
	})
}

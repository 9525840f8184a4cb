// Package inventory implements stacking, capacity and stack locking on
// the player aggregate.
package inventory

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/logger"
	"github.com/xingyu42/farm-game-sub000/internal/player"
)

// AddResult reports a (possibly partial) add.
type AddResult struct {
	ItemID    string `json:"itemId"`
	Added     int    `json:"added"`
	Remaining int    `json:"remaining"`
}

// BatchItem is one entry of an AddBatch request.
type BatchItem struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// BatchAddResult reports an all-or-nothing batch add. When Applied is
// false nothing was added and Remainders lists what would not fit.
type BatchAddResult struct {
	Applied    bool           `json:"applied"`
	Remainders map[string]int `json:"remainders,omitempty"`
}

// Service defines the inventory operations
type Service interface {
	Add(ctx context.Context, playerID, itemID string, qty int) (*AddResult, error)
	AddBatch(ctx context.Context, playerID string, items []BatchItem) (*BatchAddResult, error)
	Remove(ctx context.Context, playerID, itemID string, qty int) error
	Lock(ctx context.Context, playerID, itemID string) error
	Unlock(ctx context.Context, playerID, itemID string) error
	LockBatch(ctx context.Context, playerID string, itemIDs []string) error
	UnlockBatch(ctx context.Context, playerID string, itemIDs []string) error
	Capacity(ctx context.Context, playerID string) (domain.InventoryUsage, error)
}

type service struct {
	players  *player.Store
	registry *config.Registry
	clock    clockwork.Clock
}

// NewService creates a new inventory service
func NewService(players *player.Store, registry *config.Registry, clock clockwork.Clock) Service {
	return &service{players: players, registry: registry, clock: clock}
}

func (s *service) Add(ctx context.Context, playerID, itemID string, qty int) (*AddResult, error) {
	var result AddResult
	err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		snap := s.registry.Snapshot()
		now := s.clock.Now().UnixMilli()
		var opErr error
		tx.Mutate(func(p *domain.Player) {
			result.ItemID = itemID
			result.Added, result.Remaining, opErr = Add(p, snap, itemID, qty, now)
		})
		return opErr
	})
	if err != nil {
		return nil, err
	}
	if result.Remaining > 0 {
		logger.FromContext(ctx).Info("partial inventory add", "playerID", playerID, "item", itemID, "added", result.Added, "remaining", result.Remaining)
	}
	return &result, nil
}

func (s *service) AddBatch(ctx context.Context, playerID string, items []BatchItem) (*BatchAddResult, error) {
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: batch quantity %d for %s", domain.ErrValidation, it.Quantity, it.ItemID)
		}
	}
	var result BatchAddResult
	err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		snap := s.registry.Snapshot()
		now := s.clock.Now().UnixMilli()

		// Phase 1: feasibility against capacity and stack caps.
		p := tx.Player()
		free := p.InventoryUsage().Remaining
		total := 0
		remainders := make(map[string]int)
		for _, it := range items {
			total += it.Quantity
			if fit := addCapacity(p, snap, it.ItemID, it.Quantity); fit < it.Quantity {
				remainders[it.ItemID] = it.Quantity - fit
			}
		}
		if total > free || len(remainders) > 0 {
			if total > free {
				remainders["_capacity"] = total - free
			}
			result = BatchAddResult{Applied: false, Remainders: remainders}
			return nil
		}

		// Phase 2: apply all.
		tx.Mutate(func(p *domain.Player) {
			for _, it := range items {
				_, _, _ = Add(p, snap, it.ItemID, it.Quantity, now)
			}
		})
		result = BatchAddResult{Applied: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) Remove(ctx context.Context, playerID, itemID string, qty int) error {
	return s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		now := s.clock.Now().UnixMilli()
		var opErr error
		tx.Mutate(func(p *domain.Player) {
			opErr = Remove(p, itemID, qty, now)
		})
		return opErr
	})
}

// setLocked flips the lock flag; repeated applications are no-ops.
func (s *service) setLocked(ctx context.Context, playerID string, itemIDs []string, locked bool) error {
	return s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		now := s.clock.Now().UnixMilli()
		changed := false
		for _, itemID := range itemIDs {
			stack, ok := tx.Player().Inventory[itemID]
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrNotFound, itemID)
			}
			if stack.Metadata.Locked != locked {
				changed = true
			}
		}
		if !changed {
			return nil
		}
		tx.Mutate(func(p *domain.Player) {
			for _, itemID := range itemIDs {
				stack := p.Inventory[itemID]
				if stack.Metadata.Locked == locked {
					continue
				}
				stack.Metadata.Locked = locked
				if locked {
					stack.Metadata.LockedAt = now
				} else {
					stack.Metadata.LockedAt = 0
				}
				stack.Metadata.LastUpdated = now
			}
		})
		return nil
	})
}

func (s *service) Lock(ctx context.Context, playerID, itemID string) error {
	return s.setLocked(ctx, playerID, []string{itemID}, true)
}

func (s *service) Unlock(ctx context.Context, playerID, itemID string) error {
	return s.setLocked(ctx, playerID, []string{itemID}, false)
}

func (s *service) LockBatch(ctx context.Context, playerID string, itemIDs []string) error {
	return s.setLocked(ctx, playerID, itemIDs, true)
}

func (s *service) UnlockBatch(ctx context.Context, playerID string, itemIDs []string) error {
	return s.setLocked(ctx, playerID, itemIDs, false)
}

func (s *service) Capacity(ctx context.Context, playerID string) (domain.InventoryUsage, error) {
	p, err := s.players.Load(ctx, playerID)
	if err != nil {
		return domain.InventoryUsage{}, err
	}
	return p.InventoryUsage(), nil
}

// Package land implements the per-plot state machine: quality
// upgrades and farm expansion. Plant/harvest transitions live in the
// lifecycle service.
package land

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jonboulle/clockwork"

	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/inventory"
	"github.com/xingyu42/farm-game-sub000/internal/logger"
	"github.com/xingyu42/farm-game-sub000/internal/player"
)

// Service defines the land operations
type Service interface {
	GetLand(ctx context.Context, playerID string, landID int) (domain.Land, error)
	GetAllLands(ctx context.Context, playerID string) ([]domain.Land, error)
	UpgradeQuality(ctx context.Context, playerID string, landID int, target domain.Quality) (*domain.UpgradeResult, error)
	ExpandLandCount(ctx context.Context, playerID string, steps int) (*domain.UpgradeResult, error)
}

type service struct {
	players  *player.Store
	registry *config.Registry
	clock    clockwork.Clock
}

// NewService creates a new land service
func NewService(players *player.Store, registry *config.Registry, clock clockwork.Clock) Service {
	return &service{players: players, registry: registry, clock: clock}
}

// GetLand returns an immutable copy of one plot.
func (s *service) GetLand(ctx context.Context, playerID string, landID int) (domain.Land, error) {
	p, err := s.players.Load(ctx, playerID)
	if err != nil {
		return domain.Land{}, err
	}
	land := p.LandByID(landID)
	if land == nil {
		return domain.Land{}, fmt.Errorf("%w: land %d", domain.ErrNotFound, landID)
	}
	return *land, nil
}

// GetAllLands returns immutable copies of every plot.
func (s *service) GetAllLands(ctx context.Context, playerID string) ([]domain.Land, error) {
	p, err := s.players.Load(ctx, playerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Land, len(p.Lands))
	copy(out, p.Lands)
	return out, nil
}

func (s *service) UpgradeQuality(ctx context.Context, playerID string, landID int, target domain.Quality) (*domain.UpgradeResult, error) {
	var result domain.UpgradeResult
	err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		snap := s.registry.Snapshot()
		now := s.clock.Now().UnixMilli()
		p := tx.Player()

		land := p.LandByID(landID)
		if land == nil {
			result.OperationResult = domain.Fail(domain.CodeLandNotFound, fmt.Sprintf("land %d does not exist", landID))
			return nil
		}
		if target.Rank() <= land.Quality.Rank() {
			result.OperationResult = domain.Fail(domain.CodeAlreadyMaxQuality, fmt.Sprintf("land %d is already %s", landID, land.Quality))
			return nil
		}
		cfg, ok := snap.QualityFor(string(target))
		if !ok {
			result.OperationResult = domain.Fail(domain.CodeLandNotFound, fmt.Sprintf("unknown quality %s", target))
			return nil
		}
		if p.Level < cfg.Upgrade.LevelRequired {
			result.OperationResult = domain.Fail(domain.CodeLevelTooLow, fmt.Sprintf("level %d required", cfg.Upgrade.LevelRequired))
			return nil
		}
		if p.Coins < cfg.Upgrade.GoldCost {
			result.OperationResult = domain.Fail(domain.CodeNotEnoughCoins, fmt.Sprintf("%d coins required", cfg.Upgrade.GoldCost))
			return nil
		}
		for itemID, qty := range cfg.Upgrade.Materials {
			if inventory.Count(p, itemID) < qty {
				result.OperationResult = domain.Fail(domain.CodeNoItem, fmt.Sprintf("need %d x %s", qty, itemID))
				return nil
			}
		}

		var opErr error
		tx.Mutate(func(p *domain.Player) {
			p.Coins -= cfg.Upgrade.GoldCost
			p.Statistics.CoinsSpent += cfg.Upgrade.GoldCost
			for itemID, qty := range cfg.Upgrade.Materials {
				if err := inventory.Remove(p, itemID, qty, now); err != nil {
					opErr = err
					return
				}
			}
			land := p.LandByID(landID)
			land.Quality = target
			land.UpgradeLevel++
			land.LastUpgradeTime = now
			opErr = s.checkInvariants(p, now)
		})
		if opErr != nil {
			return opErr
		}
		result = domain.UpgradeResult{
			OperationResult: domain.OK(),
			LandID:          landID,
			NewQuality:      target,
			CoinsSpent:      cfg.Upgrade.GoldCost,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Success {
		logger.FromContext(ctx).Info("land upgraded", "playerID", playerID, "landID", landID, "quality", target)
	}
	return &result, nil
}

func (s *service) ExpandLandCount(ctx context.Context, playerID string, steps int) (*domain.UpgradeResult, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("%w: expansion steps %d", domain.ErrValidation, steps)
	}
	var result domain.UpgradeResult
	err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		snap := s.registry.Snapshot()
		now := s.clock.Now().UnixMilli()
		p := tx.Player()

		maxLands := snap.Land.Default.MaxLands
		if p.LandCount() >= maxLands {
			result.OperationResult = domain.Fail(domain.CodeMaxLandsReached, strconv.Itoa(maxLands)+" lands maximum")
			return nil
		}
		if p.LandCount()+steps > maxLands {
			steps = maxLands - p.LandCount()
		}

		// Validate every step before charging anything.
		var totalCost int64
		for i := 1; i <= steps; i++ {
			next := p.LandCount() + i
			step, ok := snap.Land.Expansion[next]
			if !ok {
				result.OperationResult = domain.Fail(domain.CodeMaxLandsReached, fmt.Sprintf("no expansion configured for land %d", next))
				return nil
			}
			if p.Level < step.LevelRequired {
				result.OperationResult = domain.Fail(domain.CodeLevelTooLow, fmt.Sprintf("level %d required for land %d", step.LevelRequired, next))
				return nil
			}
			totalCost += step.GoldCost
		}
		if p.Coins < totalCost {
			result.OperationResult = domain.Fail(domain.CodeNotEnoughCoins, fmt.Sprintf("%d coins required", totalCost))
			return nil
		}

		var opErr error
		tx.Mutate(func(p *domain.Player) {
			p.Coins -= totalCost
			p.Statistics.CoinsSpent += totalCost
			for i := 0; i < steps; i++ {
				p.Lands = append(p.Lands, domain.Land{
					ID:      p.LandCount() + 1,
					Quality: domain.QualityNormal,
					Status:  domain.LandEmpty,
				})
			}
			opErr = s.checkInvariants(p, now)
		})
		if opErr != nil {
			return opErr
		}
		result = domain.UpgradeResult{
			OperationResult: domain.OK(),
			LandCount:       tx.Player().LandCount(),
			CoinsSpent:      totalCost,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// checkInvariants validates every plot after a mutation. A violation
// aborts the transaction so nothing is written.
func (s *service) checkInvariants(p *domain.Player, now int64) error {
	for i := range p.Lands {
		if err := p.Lands[i].Validate(now); err != nil {
			return err
		}
	}
	return nil
}

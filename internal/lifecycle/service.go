// Package lifecycle implements the player-facing crop operations:
// plant, harvest, care and steal. Every operation runs single-lock
// against the owning aggregate and writes at most once.
package lifecycle

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/jonboulle/clockwork"

	"github.com/xingyu42/farm-game-sub000/internal/calc"
	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/event"
	"github.com/xingyu42/farm-game-sub000/internal/inventory"
	"github.com/xingyu42/farm-game-sub000/internal/logger"
	"github.com/xingyu42/farm-game-sub000/internal/player"
	"github.com/xingyu42/farm-game-sub000/internal/scheduler"
)

// bonusSeedChance is the independent per-plot chance of a bonus seed.
const bonusSeedChance = 0.10

// Care actions accepted by Care and BatchCare.
const (
	ActionWater      = "water"
	ActionFertilize  = "fertilize"
	ActionTreatPests = "treatPests"
)

// PlantPlan is one entry of a batch plant request.
type PlantPlan struct {
	LandID int    `json:"landId"`
	Crop   string `json:"crop"`
}

// CareAction is one entry of a batch care request.
type CareAction struct {
	LandID   int    `json:"landId"`
	Action   string `json:"action"`
	ItemHint string `json:"itemHint,omitempty"`
}

// Service defines the crop lifecycle operations
type Service interface {
	Plant(ctx context.Context, playerID string, landID int, crop string) (*domain.PlantResult, error)
	BatchPlant(ctx context.Context, playerID string, plans []PlantPlan) (*domain.BatchPlantResult, error)
	// Harvest reaps the given plot, or every due plot when landID is 0.
	Harvest(ctx context.Context, playerID string, landID int) (*domain.HarvestResult, error)
	Care(ctx context.Context, playerID string, landID int, action, itemHint string) (*domain.CareResult, error)
	BatchCare(ctx context.Context, playerID string, actions []CareAction) (*domain.BatchCareResult, error)
	Steal(ctx context.Context, stealerID, ownerID string, landID int) (*domain.StealResult, error)
}

type service struct {
	players  *player.Store
	sched    scheduler.Service
	bus      event.Bus
	registry *config.Registry
	clock    clockwork.Clock
	rnd      func() float64
}

// NewService creates a new lifecycle service
func NewService(players *player.Store, sched scheduler.Service, bus event.Bus, registry *config.Registry, clock clockwork.Clock) Service {
	return &service{
		players:  players,
		sched:    sched,
		bus:      bus,
		registry: registry,
		clock:    clock,
		rnd:      rand.Float64,
	}
}

// publish emits an event outside the player lock; subscriber failures
// never fail the operation.
func (s *service) publish(ctx context.Context, evt event.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		logger.FromContext(ctx).Warn("event publish failed", "type", evt.Type, "error", err)
	}
}

func seedFor(crop string) string {
	return crop + "_seed"
}

// validatePlant checks one plant plan against the aggregate. Returns a
// nil result when the plan is feasible.
func validatePlant(p *domain.Player, snap *config.Snapshot, landID int, crop string) (config.CropConfig, *domain.OperationResult) {
	land := p.LandByID(landID)
	if land == nil {
		r := domain.Fail(domain.CodeLandNotFound, fmt.Sprintf("land %d does not exist", landID))
		return config.CropConfig{}, &r
	}
	if land.Status != domain.LandEmpty {
		r := domain.Fail(domain.CodeLandNotEmpty, fmt.Sprintf("land %d is %s", landID, land.Status))
		return config.CropConfig{}, &r
	}
	cfg, ok := snap.Crop(crop)
	if !ok {
		r := domain.Fail(domain.CodeUnknownCrop, fmt.Sprintf("unknown crop %s", crop))
		return config.CropConfig{}, &r
	}
	if p.Level < cfg.RequiredLevel {
		r := domain.Fail(domain.CodeLevelTooLow, fmt.Sprintf("level %d required for %s", cfg.RequiredLevel, crop))
		return config.CropConfig{}, &r
	}
	return cfg, nil
}

// plantOne mutates one plot into growing state. Call inside Mutate
// after validation; the seed has already been removed.
func plantOne(land *domain.Land, crop string, growMs, now int64) {
	land.Status = domain.LandGrowing
	land.Crop = crop
	land.PlantTime = now
	land.HarvestTime = now + growMs
	land.OriginalHarvestTime = land.HarvestTime
	land.NeedsWater = false
	land.WaterNeededAt = 0
	land.HasPests = false
	land.PestAppearedAt = 0
	land.Stealable = false
	land.StolenQuantity = 0
	land.WaterDelayApplied = false
	land.WaterDelayMs = 0
}

func (s *service) Plant(ctx context.Context, playerID string, landID int, crop string) (*domain.PlantResult, error) {
	var result domain.PlantResult
	err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		snap := s.registry.Snapshot()
		now := s.clock.Now().UnixMilli()
		p := tx.Player()

		cfg, fail := validatePlant(p, snap, landID, crop)
		if fail != nil {
			result.OperationResult = *fail
			return nil
		}
		seed := seedFor(crop)
		if inventory.Count(p, seed) < 1 {
			result.OperationResult = domain.Fail(domain.CodeNoSeed, fmt.Sprintf("no %s in inventory", seed))
			return nil
		}

		qcfg, _ := snap.QualityFor(string(p.LandByID(landID).Quality))
		growMs := calc.GrowTime(int64(cfg.GrowTime)*1000, qcfg.TimeReduction)

		var opErr error
		tx.Mutate(func(p *domain.Player) {
			if opErr = inventory.Remove(p, seed, 1, now); opErr != nil {
				return
			}
			plantOne(p.LandByID(landID), crop, growMs, now)
			p.Statistics.TotalPlants++
		})
		if opErr != nil {
			return opErr
		}

		harvestTime := now + growMs
		s.sched.ScheduleHarvest(ctx, playerID, landID, harvestTime)
		s.sched.ScheduleCareCheckpoints(ctx, playerID, landID, now, harvestTime)
		result = domain.PlantResult{
			OperationResult: domain.OK(),
			LandID:          landID,
			Crop:            crop,
			PlantTime:       now,
			HarvestTime:     harvestTime,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Success {
		s.publish(ctx, event.NewCropPlantedEvent(playerID, crop, 1))
	}
	return &result, nil
}

func (s *service) BatchPlant(ctx context.Context, playerID string, plans []PlantPlan) (*domain.BatchPlantResult, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: empty plant batch", domain.ErrValidation)
	}
	var result domain.BatchPlantResult
	err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		snap := s.registry.Snapshot()
		now := s.clock.Now().UnixMilli()
		p := tx.Player()

		// Phase 1: every plan must be feasible, including total seed
		// demand, or the whole batch is refused.
		seen := make(map[int]bool, len(plans))
		seedDemand := make(map[string]int)
		for _, plan := range plans {
			if seen[plan.LandID] {
				result.OperationResult = domain.Fail(domain.CodeLandNotEmpty, fmt.Sprintf("land %d planned twice", plan.LandID))
				return nil
			}
			seen[plan.LandID] = true
			if _, fail := validatePlant(p, snap, plan.LandID, plan.Crop); fail != nil {
				result.OperationResult = *fail
				return nil
			}
			seedDemand[seedFor(plan.Crop)]++
		}
		for seed, demand := range seedDemand {
			if inventory.Count(p, seed) < demand {
				result.OperationResult = domain.Fail(domain.CodeNoSeed, fmt.Sprintf("need %d x %s", demand, seed))
				return nil
			}
		}

		// Phase 2: apply every plan in one write.
		planted := make([]domain.PlantResult, 0, len(plans))
		var opErr error
		tx.Mutate(func(p *domain.Player) {
			for _, plan := range plans {
				cfg, _ := snap.Crop(plan.Crop)
				qcfg, _ := snap.QualityFor(string(p.LandByID(plan.LandID).Quality))
				growMs := calc.GrowTime(int64(cfg.GrowTime)*1000, qcfg.TimeReduction)
				if opErr = inventory.Remove(p, seedFor(plan.Crop), 1, now); opErr != nil {
					return
				}
				plantOne(p.LandByID(plan.LandID), plan.Crop, growMs, now)
				p.Statistics.TotalPlants++
				planted = append(planted, domain.PlantResult{
					OperationResult: domain.OK(),
					LandID:          plan.LandID,
					Crop:            plan.Crop,
					PlantTime:       now,
					HarvestTime:     now + growMs,
				})
			}
		})
		if opErr != nil {
			return opErr
		}
		for _, pr := range planted {
			s.sched.ScheduleHarvest(ctx, playerID, pr.LandID, pr.HarvestTime)
			s.sched.ScheduleCareCheckpoints(ctx, playerID, pr.LandID, pr.PlantTime, pr.HarvestTime)
		}
		result = domain.BatchPlantResult{OperationResult: domain.OK(), Planted: planted}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Success {
		byCrop := make(map[string]int, len(result.Planted))
		for _, pr := range result.Planted {
			byCrop[pr.Crop]++
		}
		for crop, plots := range byCrop {
			s.publish(ctx, event.NewCropPlantedEvent(playerID, crop, plots))
		}
	}
	return &result, nil
}

// harvestCandidate is one reapable plot with its precomputed rewards.
type harvestCandidate struct {
	landID    int
	crop      string
	quantity  int
	units     int
	exp       int64
	bonusSeed bool
}

func (s *service) Harvest(ctx context.Context, playerID string, landID int) (*domain.HarvestResult, error) {
	var result domain.HarvestResult
	err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		snap := s.registry.Snapshot()
		now := s.clock.Now().UnixMilli()
		p := tx.Player()

		candidates := s.gatherCandidates(p, snap, landID, now)
		if len(candidates) == 0 {
			result.OperationResult = domain.Fail(domain.CodeNothingMature, "nothing ready to harvest")
			return nil
		}

		// Capacity-ordered greedy pass: smallest yields first so a
		// single oversized plot cannot starve the rest. Overflowing
		// plots are skipped whole, never partially harvested.
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].units != candidates[j].units {
				return candidates[i].units < candidates[j].units
			}
			return candidates[i].landID < candidates[j].landID
		})
		free := p.InventoryUsage().Remaining
		accepted := make([]harvestCandidate, 0, len(candidates))
		for _, c := range candidates {
			if c.units > free {
				result.Skipped = append(result.Skipped, c.landID)
				continue
			}
			free -= c.units
			accepted = append(accepted, c)
		}
		if len(accepted) == 0 {
			result.OperationResult = domain.Fail(domain.CodeInventoryFull, "no mature plot fits the remaining inventory space")
			return nil
		}

		var levelUp *domain.LevelUp
		var opErr error
		tx.Mutate(func(p *domain.Player) {
			for _, c := range accepted {
				if c.quantity > 0 {
					if _, _, opErr = inventory.Add(p, snap, c.crop, c.quantity, now); opErr != nil {
						return
					}
				}
				if c.bonusSeed {
					if _, _, opErr = inventory.Add(p, snap, seedFor(c.crop), 1, now); opErr != nil {
						return
					}
				}
				p.LandByID(c.landID).Clear()
				p.Statistics.TotalHarvests++
				p.Experience += c.exp
				result.TotalExp += c.exp
				result.Harvested = append(result.Harvested, domain.HarvestedLand{
					LandID:    c.landID,
					Crop:      c.crop,
					Quantity:  c.quantity,
					Exp:       c.exp,
					BonusSeed: c.bonusSeed,
				})
			}
			levelUp = s.applyLevelUp(p, snap, now)
		})
		if opErr != nil {
			return opErr
		}
		for _, c := range accepted {
			s.sched.CancelHarvest(ctx, playerID, c.landID)
			s.sched.CancelCareForLand(ctx, playerID, c.landID)
		}
		result.OperationResult = domain.OK()
		result.LevelUp = levelUp
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Success {
		logger.FromContext(ctx).Info("harvest complete", "playerID", playerID,
			"harvested", len(result.Harvested), "skipped", len(result.Skipped), "exp", result.TotalExp)
		units := 0
		for _, h := range result.Harvested {
			units += h.Quantity
		}
		s.publish(ctx, event.NewCropHarvestedEvent(playerID, len(result.Harvested), units, result.TotalExp))
		if result.LevelUp != nil {
			s.publish(ctx, event.NewLevelUpEvent(playerID, result.LevelUp.FromLevel, result.LevelUp.ToLevel))
		}
	}
	return &result, nil
}

// gatherCandidates collects reapable plots: mature ones, plus growing
// plots whose harvestTime has passed but whose maturity ticket has not
// fired yet.
func (s *service) gatherCandidates(p *domain.Player, snap *config.Snapshot, landID int, now int64) []harvestCandidate {
	due := func(land *domain.Land) bool {
		switch land.Status {
		case domain.LandMature:
			return true
		case domain.LandGrowing:
			return land.HarvestTime <= now
		}
		return false
	}
	var lands []*domain.Land
	if landID > 0 {
		if land := p.LandByID(landID); land != nil && due(land) {
			lands = append(lands, land)
		}
	} else {
		for i := range p.Lands {
			if due(&p.Lands[i]) {
				lands = append(lands, &p.Lands[i])
			}
		}
	}

	candidates := make([]harvestCandidate, 0, len(lands))
	for _, land := range lands {
		cfg, ok := snap.Crop(land.Crop)
		if !ok {
			continue
		}
		qcfg, _ := snap.QualityFor(string(land.Quality))
		qty := calc.YieldQty(cfg.BaseYield, qcfg.ProductionBonus, land.HasPests, snap.Care.Pest.Penalty.YieldReductionPercent)
		qty -= land.StolenQuantity
		if qty < 0 {
			qty = 0
		}
		c := harvestCandidate{
			landID:    land.ID,
			crop:      land.Crop,
			quantity:  qty,
			exp:       calc.CropExp(cfg.Experience, qcfg.ExperienceBonus),
			bonusSeed: s.rnd() < bonusSeedChance,
		}
		c.units = c.quantity
		if c.bonusSeed {
			c.units++
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// applyLevelUp recomputes the level from total experience and grants
// the configured rewards for every level crossed.
func (s *service) applyLevelUp(p *domain.Player, snap *config.Snapshot, now int64) *domain.LevelUp {
	thresholds := make(map[int]int64, len(snap.Levels))
	for level, cfg := range snap.Levels {
		thresholds[level] = cfg.Experience
	}
	newLevel := calc.LevelFor(p.Experience, thresholds)
	if newLevel <= p.Level {
		return nil
	}
	up := &domain.LevelUp{FromLevel: p.Level, ToLevel: newLevel}
	for level := p.Level + 1; level <= newLevel; level++ {
		rewards := snap.Levels[level].Rewards
		if rewards == nil {
			continue
		}
		p.Coins += rewards.Coins
		p.Statistics.CoinsEarned += rewards.Coins
		up.CoinsAwarded += rewards.Coins
		for itemID, qty := range rewards.Items {
			added, _, err := inventory.Add(p, snap, itemID, qty, now)
			if err != nil || added == 0 {
				continue
			}
			if up.ItemsAwarded == nil {
				up.ItemsAwarded = make(map[string]int)
			}
			up.ItemsAwarded[itemID] += added
		}
	}
	p.Level = newLevel
	return up
}

func (s *service) Care(ctx context.Context, playerID string, landID int, action, itemHint string) (*domain.CareResult, error) {
	var result domain.CareResult
	err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		snap := s.registry.Snapshot()
		now := s.clock.Now().UnixMilli()

		res, newTicket, err := s.careOne(tx, snap, playerID, landID, action, itemHint, now)
		if err != nil {
			return err
		}
		result = *res
		if newTicket > 0 {
			s.sched.ScheduleHarvest(ctx, playerID, landID, newTicket)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// careOne applies one care action inside an open transaction. Item
// removal and the land write share one Mutate, so a failed land update
// can never strand a consumed item. Returns the new harvest ticket
// time when the action moved it.
func (s *service) careOne(tx *player.Tx, snap *config.Snapshot, playerID string, landID int, action, itemHint string, now int64) (*domain.CareResult, int64, error) {
	p := tx.Player()
	land := p.LandByID(landID)
	if land == nil {
		r := domain.Fail(domain.CodeLandNotFound, fmt.Sprintf("land %d does not exist", landID))
		return &domain.CareResult{OperationResult: r, LandID: landID, Action: action}, 0, nil
	}
	if land.Status != domain.LandGrowing {
		r := domain.Fail(domain.CodeNoCareNeeded, fmt.Sprintf("land %d is not growing", landID))
		return &domain.CareResult{OperationResult: r, LandID: landID, Action: action}, 0, nil
	}

	result := &domain.CareResult{LandID: landID, Action: action}
	var newTicket int64
	switch action {
	case ActionWater:
		if !land.NeedsWater {
			result.OperationResult = domain.Fail(domain.CodeNoCareNeeded, fmt.Sprintf("land %d does not need water", landID))
			return result, 0, nil
		}
		tx.Mutate(func(p *domain.Player) {
			land := p.LandByID(landID)
			land.NeedsWater = false
			land.WaterNeededAt = 0
		})
		result.OperationResult = domain.OK()

	case ActionFertilize:
		itemID, speedBonus, fail := pickEffectItem(p, snap, domain.CategoryFertilizer, itemHint, "speedBonus")
		if fail != nil {
			result.OperationResult = *fail
			return result, 0, nil
		}
		var opErr error
		tx.Mutate(func(p *domain.Player) {
			if opErr = inventory.Remove(p, itemID, 1, now); opErr != nil {
				return
			}
			land := p.LandByID(landID)
			remaining := land.HarvestTime - now
			if remaining > 0 {
				land.HarvestTime = now + int64(math.Floor(float64(remaining)*(1-speedBonus)))
			}
			land.LastFertilized = now
			newTicket = land.HarvestTime
		})
		if opErr != nil {
			return nil, 0, opErr
		}
		result.OperationResult = domain.OK()
		result.ItemConsumed = itemID
		result.NewHarvestTime = newTicket

	case ActionTreatPests:
		if !land.HasPests {
			result.OperationResult = domain.Fail(domain.CodeNoCareNeeded, fmt.Sprintf("land %d has no pests", landID))
			return result, 0, nil
		}
		itemID, _, fail := pickEffectItem(p, snap, domain.CategoryPesticide, itemHint, "")
		if fail != nil {
			result.OperationResult = *fail
			return result, 0, nil
		}
		var opErr error
		tx.Mutate(func(p *domain.Player) {
			if opErr = inventory.Remove(p, itemID, 1, now); opErr != nil {
				return
			}
			land := p.LandByID(landID)
			land.HasPests = false
			land.PestAppearedAt = 0
			land.LastTreated = now
		})
		if opErr != nil {
			return nil, 0, opErr
		}
		result.OperationResult = domain.OK()
		result.ItemConsumed = itemID

	default:
		return nil, 0, fmt.Errorf("%w: unknown care action %q", domain.ErrValidation, action)
	}
	return result, newTicket, nil
}

// pickEffectItem resolves the item to consume for a care action: the
// hint when given and held, otherwise the held item of the category
// with the strongest effect.
func pickEffectItem(p *domain.Player, snap *config.Snapshot, category, hint, effectKey string) (string, float64, *domain.OperationResult) {
	effectOf := func(itemID string) float64 {
		if item, _, ok := snap.Item(itemID); ok && effectKey != "" {
			return item.Effect[effectKey]
		}
		return 0
	}
	if hint != "" {
		if inventory.Count(p, hint) < 1 {
			r := domain.Fail(domain.CodeNoItem, fmt.Sprintf("no %s in inventory", hint))
			return "", 0, &r
		}
		if _, cat, ok := snap.Item(hint); ok && cat == category {
			return hint, effectOf(hint), nil
		}
		r := domain.Fail(domain.CodeNoItem, fmt.Sprintf("%s is not a %s item", hint, category))
		return "", 0, &r
	}
	best := ""
	bestEffect := -1.0
	for itemID := range snap.ItemsByCategory(category) {
		if inventory.Count(p, itemID) < 1 {
			continue
		}
		if e := effectOf(itemID); e > bestEffect || (e == bestEffect && itemID < best) {
			best, bestEffect = itemID, e
		}
	}
	if best == "" {
		r := domain.Fail(domain.CodeNoItem, fmt.Sprintf("no %s item in inventory", category))
		return "", 0, &r
	}
	return best, bestEffect, nil
}

func (s *service) BatchCare(ctx context.Context, playerID string, actions []CareAction) (*domain.BatchCareResult, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: empty care batch", domain.ErrValidation)
	}
	var result domain.BatchCareResult
	err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		snap := s.registry.Snapshot()
		now := s.clock.Now().UnixMilli()

		// One action per land: later duplicates are dropped.
		seen := make(map[int]bool, len(actions))
		deduped := make([]CareAction, 0, len(actions))
		for _, a := range actions {
			if seen[a.LandID] {
				continue
			}
			seen[a.LandID] = true
			deduped = append(deduped, a)
		}

		type ticket struct {
			landID int
			at     int64
		}
		var tickets []ticket
		for _, a := range deduped {
			res, newTicket, err := s.careOne(tx, snap, playerID, a.LandID, a.Action, a.ItemHint, now)
			if err != nil {
				return err
			}
			result.Results = append(result.Results, *res)
			if newTicket > 0 {
				tickets = append(tickets, ticket{landID: a.LandID, at: newTicket})
			}
		}
		for _, tk := range tickets {
			s.sched.ScheduleHarvest(ctx, playerID, tk.landID, tk.at)
		}
		result.OperationResult = domain.OK()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) Steal(ctx context.Context, stealerID, ownerID string, landID int) (*domain.StealResult, error) {
	if stealerID == ownerID {
		return nil, fmt.Errorf("%w: cannot steal from yourself", domain.ErrValidation)
	}
	snap := s.registry.Snapshot()
	now := s.clock.Now().UnixMilli()

	stealer, err := s.players.Load(ctx, stealerID)
	if err != nil {
		return nil, err
	}
	if stealer.Stealing.CooldownEndTime > now {
		r := domain.Fail(domain.CodeStealCooldown, "steal cooldown active")
		return &domain.StealResult{OperationResult: r}, nil
	}

	var result domain.StealResult
	err = s.players.ExecuteUnderLock(ctx, ownerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		owner := tx.Player()
		land := owner.LandByID(landID)
		if land == nil || land.Status != domain.LandMature || !land.Stealable {
			result.OperationResult = domain.Fail(domain.CodeNotStealable, fmt.Sprintf("land %d is not stealable", landID))
			return nil
		}
		if owner.Protection.FarmProtection.Active(now) {
			result.OperationResult = domain.Fail(domain.CodeNotStealable, "farm is protected")
			return nil
		}
		if dog := owner.Protection.DogFood; dog.Active(now) {
			rate := calc.DefenseSuccessRate(dog.DefenseBonus, 100+stealer.Level)
			if s.rnd()*100 < float64(rate) {
				result = domain.StealResult{
					OperationResult: domain.Fail(domain.CodeDefended, "the dog caught you"),
					Defended:        true,
				}
				return nil
			}
		}

		cfg, ok := snap.Crop(land.Crop)
		if !ok {
			result.OperationResult = domain.Fail(domain.CodeNotStealable, fmt.Sprintf("unknown crop %s", land.Crop))
			return nil
		}
		qcfg, _ := snap.QualityFor(string(land.Quality))
		gained, ownerLoss := calc.StealShare(cfg.BaseYield, qcfg.ProductionBonus, stealer.Level, owner.Level)
		if gained < 1 {
			result.OperationResult = domain.Fail(domain.CodeNotStealable, "nothing worth taking")
			return nil
		}
		tx.Mutate(func(owner *domain.Player) {
			land := owner.LandByID(landID)
			land.StolenQuantity += ownerLoss
			land.Stealable = false
		})
		result = domain.StealResult{
			OperationResult: domain.OK(),
			Crop:            land.Crop,
			Gained:          gained,
			OwnerLost:       ownerLoss,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The stealer side runs under its own lock: loot, cooldown, stats.
	// A defended attempt still burns the cooldown.
	if result.Defended || result.Success {
		cooldown := int64(snap.Steal.CooldownMinutes) * 60_000
		err = s.players.ExecuteUnderLock(ctx, stealerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
			tx.Mutate(func(p *domain.Player) {
				p.Stealing.CooldownEndTime = now + cooldown
				if result.Success {
					added, _, _ := inventory.Add(p, s.registry.Snapshot(), result.Crop, result.Gained, now)
					p.Statistics.TotalStolen += added
					result.Gained = added
				}
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
		outcome := "stolen"
		if result.Defended {
			outcome = "defended"
		}
		s.publish(ctx, event.NewStealResolvedEvent(stealerID, ownerID, outcome, result.Gained))
	}
	return &result, nil
}

// Package scheduler registers, fires and cancels time-ordered events
// for harvest maturity and care checkpoints across all players. Events
// live in two sorted sets scored by UTC milliseconds; the dispatch
// loop is driven by the task loop every tick.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"

	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/kv"
	"github.com/xingyu42/farm-game-sub000/internal/logger"
	"github.com/xingyu42/farm-game-sub000/internal/player"
)

const (
	keyHarvest = "schedule:harvest"
	keyCare    = "schedule:care"

	// dispatchBatchSize bounds harvest entries processed per tick.
	dispatchBatchSize = 1000

	// careRetryDelayMs is the push-back delay after a failed care fire.
	careRetryDelayMs = 5000
	careMaxRetries   = 3

	// expiredRetention keeps fired-but-stale harvest tickets around for
	// a week before cleanup discards them.
	expiredRetention = 7 * 24 * time.Hour
)

// Stats summarises the scheduler queues.
type Stats struct {
	HarvestTotal int   `json:"harvestTotal"`
	CareTotal    int   `json:"careTotal"`
	Due          int   `json:"due"`
	SoonDue      int   `json:"soonDue"`
	Pending      int   `json:"pending"`
	Now          int64 `json:"now"`
}

// DispatchStats reports one dispatch pass.
type DispatchStats struct {
	HarvestFired int `json:"harvestFired"`
	HarvestStale int `json:"harvestStale"`
	CareFired    int `json:"careFired"`
	CareDropped  int `json:"careDropped"`
	CareRetried  int `json:"careRetried"`
}

// Service defines the scheduler operations
type Service interface {
	ScheduleHarvest(ctx context.Context, playerID string, landID int, at int64)
	CancelHarvest(ctx context.Context, playerID string, landID int)
	ScheduleCareCheckpoints(ctx context.Context, playerID string, landID int, plantTime, harvestTime int64)
	CancelCareForLand(ctx context.Context, playerID string, landID int)
	DispatchDue(ctx context.Context) (*DispatchStats, error)
	CleanupExpired(ctx context.Context) int
	Stats(ctx context.Context) Stats
}

type service struct {
	zset     kv.SortedSet
	players  *player.Store
	registry *config.Registry
	clock    clockwork.Clock
	rnd      func() float64

	mu      sync.Mutex
	retries map[string]int
}

// NewService creates a new scheduler service
func NewService(zset kv.SortedSet, players *player.Store, registry *config.Registry, clock clockwork.Clock) Service {
	return &service{
		zset:     zset,
		players:  players,
		registry: registry,
		clock:    clock,
		rnd:      rand.Float64,
		retries:  make(map[string]int),
	}
}

func harvestMember(playerID string, landID int) string {
	return playerID + ":" + strconv.Itoa(landID)
}

func careMember(playerID string, landID int, careType string, idx int) string {
	return fmt.Sprintf("%s:%d:%s:%d", playerID, landID, careType, idx)
}

// parseHarvestMember splits "playerId:landId". Land ids are the last
// segment so player ids containing ':' still parse.
func parseHarvestMember(member string) (playerID string, landID int, ok bool) {
	i := strings.LastIndex(member, ":")
	if i < 0 {
		return "", 0, false
	}
	landID, err := strconv.Atoi(member[i+1:])
	if err != nil {
		return "", 0, false
	}
	return member[:i], landID, true
}

// parseCareMember splits "playerId:landId:type:idx".
func parseCareMember(member string) (playerID string, landID int, careType string, ok bool) {
	parts := strings.Split(member, ":")
	if len(parts) < 4 {
		return "", 0, "", false
	}
	careType = parts[len(parts)-2]
	landID, err := strconv.Atoi(parts[len(parts)-3])
	if err != nil {
		return "", 0, "", false
	}
	playerID = strings.Join(parts[:len(parts)-3], ":")
	return playerID, landID, careType, true
}

func (s *service) now() int64 {
	return s.clock.Now().UnixMilli()
}

// ScheduleHarvest upserts the maturity ticket for one plot.
func (s *service) ScheduleHarvest(ctx context.Context, playerID string, landID int, at int64) {
	s.zset.ZAdd(keyHarvest, at, harvestMember(playerID, landID))
}

// CancelHarvest removes the maturity ticket if present.
func (s *service) CancelHarvest(ctx context.Context, playerID string, landID int) {
	s.zset.ZRem(keyHarvest, harvestMember(playerID, landID))
}

// ScheduleCareCheckpoints registers every configured care checkpoint
// for one plant cycle. Checkpoint times are frozen against the grow
// window as it stands at plant time; later delays do not move them.
func (s *service) ScheduleCareCheckpoints(ctx context.Context, playerID string, landID int, plantTime, harvestTime int64) {
	snap := s.registry.Snapshot()
	window := harvestTime - plantTime
	if window <= 0 {
		return
	}
	for careType, cfg := range map[string]config.CareTypeConfig{
		domain.CareTypeWater: snap.Care.Water,
		domain.CareTypePest:  snap.Care.Pest,
	} {
		for i, p := range cfg.Checkpoints {
			at := plantTime + int64(math.Floor(float64(window)*p))
			s.zset.ZAdd(keyCare, at, careMember(playerID, landID, careType, i))
		}
	}
}

// CancelCareForLand removes every pending care checkpoint of one plot.
func (s *service) CancelCareForLand(ctx context.Context, playerID string, landID int) {
	prefix := playerID + ":" + strconv.Itoa(landID) + ":"
	all := s.zset.ZRangeByScore(keyCare, math.MinInt64, math.MaxInt64, 0)
	var stale []string
	for _, m := range all {
		if strings.HasPrefix(m.Member, prefix) {
			stale = append(stale, m.Member)
		}
	}
	if len(stale) > 0 {
		s.zset.ZRem(keyCare, stale...)
	}
}

// DispatchDue runs one dispatch pass: due harvest tickets first, then
// the care checkpoint queue.
func (s *service) DispatchDue(ctx context.Context) (*DispatchStats, error) {
	stats := &DispatchStats{}
	if err := s.dispatchHarvest(ctx, stats); err != nil {
		return stats, err
	}
	if err := s.dispatchCare(ctx, stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// dispatchHarvest matures every due plot, one lock and one write per
// player. Fired members are removed whether or not the plot still
// matched; the plot itself is the source of truth.
func (s *service) dispatchHarvest(ctx context.Context, stats *DispatchStats) error {
	now := s.now()
	due := s.zset.ZRangeByScore(keyHarvest, math.MinInt64, now, dispatchBatchSize)
	if len(due) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)

	type ticket struct {
		member   string
		playerID string
		landID   int
	}
	tickets := make([]ticket, 0, len(due))
	fired := make([]string, 0, len(due))
	for _, m := range due {
		fired = append(fired, m.Member)
		playerID, landID, ok := parseHarvestMember(m.Member)
		if !ok {
			log.Warn("dropping malformed harvest ticket", "member", m.Member)
			continue
		}
		tickets = append(tickets, ticket{member: m.Member, playerID: playerID, landID: landID})
	}

	byPlayer := lo.GroupBy(tickets, func(t ticket) string { return t.playerID })
	for playerID, group := range byPlayer {
		landIDs := lo.Map(group, func(t ticket, _ int) int { return t.landID })
		err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeMaturity, func(tx *player.Tx) error {
			matured := 0
			tx.Mutate(func(p *domain.Player) {
				for _, landID := range landIDs {
					land := p.LandByID(landID)
					if land == nil || land.Status != domain.LandGrowing || land.HarvestTime > now {
						stats.HarvestStale++
						continue
					}
					land.Status = domain.LandMature
					land.Stealable = true
					matured++
				}
			})
			stats.HarvestFired += matured
			return nil
		})
		if err != nil {
			// The tickets are removed below either way; maturity is
			// recomputed from the stored harvestTime on a later pass
			// through replant or cleanup, so log and continue.
			log.Error("harvest dispatch failed", "playerID", playerID, "error", err)
		}
	}
	s.zset.ZRem(keyHarvest, fired...)
	return nil
}

// dispatchCare pops the checkpoint queue until it runs ahead of now.
func (s *service) dispatchCare(ctx context.Context, stats *DispatchStats) error {
	log := logger.FromContext(ctx)
	for {
		now := s.now()
		m, ok := s.zset.ZPopMin(keyCare)
		if !ok {
			return nil
		}
		if m.Score > now {
			s.zset.ZAdd(keyCare, m.Score, m.Member)
			return nil
		}
		playerID, landID, careType, ok := parseCareMember(m.Member)
		if !ok {
			log.Warn("dropping malformed care checkpoint", "member", m.Member)
			stats.CareDropped++
			continue
		}
		fired, err := s.fireCare(ctx, playerID, landID, careType, now)
		if err != nil {
			if s.retryCare(m.Member, now) {
				stats.CareRetried++
				log.Warn("care fire failed, retrying", "member", m.Member, "error", err)
			} else {
				stats.CareDropped++
				log.Warn("care fire failed, dropping after retries", "member", m.Member, "error", err)
			}
			continue
		}
		s.clearRetries(m.Member)
		if fired {
			stats.CareFired++
		} else {
			stats.CareDropped++
		}
	}
}

// fireCare runs the lottery for one checkpoint under the care lock.
// Returns false when the checkpoint was consumed without triggering.
func (s *service) fireCare(ctx context.Context, playerID string, landID int, careType string, now int64) (bool, error) {
	snap := s.registry.Snapshot()
	cfg, ok := snap.CareFor(careType)
	if !ok {
		return false, nil
	}
	fired := false
	err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeCare, func(tx *player.Tx) error {
		land := tx.Player().LandByID(landID)
		if land == nil || land.Status != domain.LandGrowing {
			return nil
		}
		// At most one triggered event per (land, type) is in flight.
		if careType == domain.CareTypeWater && land.NeedsWater {
			return nil
		}
		if careType == domain.CareTypePest && land.HasPests {
			return nil
		}
		if s.rnd() >= cfg.Probability {
			return nil
		}
		fired = true
		var newHarvestTime int64
		tx.Mutate(func(p *domain.Player) {
			land := p.LandByID(landID)
			switch careType {
			case domain.CareTypeWater:
				land.NeedsWater = true
				land.WaterNeededAt = now
				if cfg.Penalty.Type == "growthDelay" && !land.WaterDelayApplied {
					remaining := land.HarvestTime - now
					if remaining > 0 {
						delay := int64(math.Floor(float64(remaining) * float64(cfg.Penalty.DelayPercent) / 100))
						land.HarvestTime += delay
						land.WaterDelayApplied = true
						land.WaterDelayMs = delay
						newHarvestTime = land.HarvestTime
					}
				}
			case domain.CareTypePest:
				// The yield penalty is realised at harvest.
				land.HasPests = true
				land.PestAppearedAt = now
			}
		})
		if newHarvestTime > 0 {
			s.ScheduleHarvest(ctx, playerID, landID, newHarvestTime)
		}
		return nil
	})
	return fired, err
}

// retryCare pushes a failed checkpoint back with a bounded retry.
func (s *service) retryCare(member string, now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries[member]++
	if s.retries[member] > careMaxRetries {
		delete(s.retries, member)
		return false
	}
	s.zset.ZAdd(keyCare, now+careRetryDelayMs, member)
	return true
}

func (s *service) clearRetries(member string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.retries, member)
}

// CleanupExpired drops harvest tickets that went stale over a week ago.
func (s *service) CleanupExpired(ctx context.Context) int {
	cutoff := s.now() - expiredRetention.Milliseconds()
	removed := s.zset.ZRemRangeByScore(keyHarvest, math.MinInt64, cutoff)
	if removed > 0 {
		logger.FromContext(ctx).Info("cleaned up expired harvest tickets", "removed", removed, "cutoff", cutoff)
	}
	return removed
}

// Stats reports queue totals, what is due now and what comes due
// within the next hour.
func (s *service) Stats(ctx context.Context) Stats {
	now := s.now()
	horizon := now + time.Hour.Milliseconds()

	harvestTotal := s.zset.ZCard(keyHarvest)
	careTotal := s.zset.ZCard(keyCare)
	due := len(s.zset.ZRangeByScore(keyHarvest, math.MinInt64, now, 0)) +
		len(s.zset.ZRangeByScore(keyCare, math.MinInt64, now, 0))
	soonDue := len(s.zset.ZRangeByScore(keyHarvest, now+1, horizon, 0)) +
		len(s.zset.ZRangeByScore(keyCare, now+1, horizon, 0))

	return Stats{
		HarvestTotal: harvestTotal,
		CareTotal:    careTotal,
		Due:          due,
		SoonDue:      soonDue,
		Pending:      harvestTotal + careTotal - due,
		Now:          now,
	}
}

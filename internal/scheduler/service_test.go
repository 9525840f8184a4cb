package scheduler

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingyu42/farm-game-sub000/internal/concurrency"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/filestore"
	"github.com/xingyu42/farm-game-sub000/internal/kv"
	"github.com/xingyu42/farm-game-sub000/internal/player"
	"github.com/xingyu42/farm-game-sub000/internal/testing/gamecfg"
)

type fixture struct {
	svc     *service
	zset    *kv.Memory
	players *player.Store
	clock   *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := kv.NewMemoryWithClock(clock)
	files := filestore.NewWithFs(afero.NewMemMapFs(), "data")
	locks := concurrency.NewLockManager(kv.NewMemory(), clockwork.NewRealClock())
	registry := gamecfg.NewRegistry(t)
	players := player.NewStore(files, locks, registry, clock)
	_, err := players.Create(context.Background(), "p1", "Ada")
	require.NoError(t, err)

	svc := NewService(store, players, registry, clock).(*service)
	svc.rnd = func() float64 { return 0 } // lottery always triggers
	return &fixture{svc: svc, zset: store, players: players, clock: clock}
}

// plantLand puts land 1 into growing state with a 60s window and
// registers its scheduler entries, mirroring what a plant op does.
func (f *fixture) plantLand(t *testing.T) (plantTime, harvestTime int64) {
	t.Helper()
	ctx := context.Background()
	plantTime = f.clock.Now().UnixMilli()
	harvestTime = plantTime + 60_000
	err := f.players.ExecuteUnderLock(ctx, "p1", domain.LockPurposeGeneral, func(tx *player.Tx) error {
		tx.Mutate(func(p *domain.Player) {
			land := p.LandByID(1)
			land.Status = domain.LandGrowing
			land.Crop = "wheat"
			land.PlantTime = plantTime
			land.HarvestTime = harvestTime
			land.OriginalHarvestTime = harvestTime
		})
		return nil
	})
	require.NoError(t, err)
	f.svc.ScheduleHarvest(ctx, "p1", 1, harvestTime)
	f.svc.ScheduleCareCheckpoints(ctx, "p1", 1, plantTime, harvestTime)
	return plantTime, harvestTime
}

func TestScheduleCareCheckpointsFrozenAtPlantTime(t *testing.T) {
	f := newFixture(t)
	plantTime, _ := f.plantLand(t)

	// water [0.3, 0.6] and pest [0.5, 0.8] over a 60s window.
	expect := map[string]int64{
		"p1:1:water:0": plantTime + 18_000,
		"p1:1:water:1": plantTime + 36_000,
		"p1:1:pest:0":  plantTime + 30_000,
		"p1:1:pest:1":  plantTime + 48_000,
	}
	for member, at := range expect {
		score, ok := f.zset.ZScore(keyCare, member)
		require.True(t, ok, member)
		assert.Equal(t, at, score, member)
	}
}

func TestCancelCareForLandRemovesOnlyThatLand(t *testing.T) {
	f := newFixture(t)
	f.plantLand(t)
	ctx := context.Background()
	f.svc.ScheduleCareCheckpoints(ctx, "p1", 2, f.clock.Now().UnixMilli(), f.clock.Now().UnixMilli()+60_000)

	f.svc.CancelCareForLand(ctx, "p1", 1)

	remaining := f.zset.ZRangeByScore(keyCare, math.MinInt64, math.MaxInt64, 0)
	require.Len(t, remaining, 4)
	for _, m := range remaining {
		assert.Contains(t, m.Member, "p1:2:")
	}
}

func TestHarvestDispatchMaturesDuePlots(t *testing.T) {
	f := newFixture(t)
	_, harvestTime := f.plantLand(t)
	ctx := context.Background()

	// Not due yet: nothing fires, ticket stays.
	stats, err := f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.HarvestFired)
	_, ok := f.zset.ZScore(keyHarvest, "p1:1")
	assert.True(t, ok)

	f.clock.Advance(61 * time.Second)
	stats, err = f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.HarvestFired)

	p, err := f.players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.LandMature, p.Lands[0].Status)
	assert.True(t, p.Lands[0].Stealable)
	assert.Equal(t, harvestTime, p.Lands[0].HarvestTime)

	_, ok = f.zset.ZScore(keyHarvest, "p1:1")
	assert.False(t, ok, "fired ticket removed")
}

func TestHarvestDispatchRemovesStaleTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Land 1 is empty: the ticket no longer matches any growing plot.
	f.svc.ScheduleHarvest(ctx, "p1", 1, f.clock.Now().UnixMilli())
	f.clock.Advance(time.Second)

	stats, err := f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.HarvestFired)
	assert.Equal(t, 1, stats.HarvestStale)
	_, ok := f.zset.ZScore(keyHarvest, "p1:1")
	assert.False(t, ok)
}

func TestCareDispatchWaterAppliesGrowthDelayOnce(t *testing.T) {
	f := newFixture(t)
	_, harvestTime := f.plantLand(t)
	ctx := context.Background()

	// Advance to the first water checkpoint (30% of 60s).
	f.clock.Advance(18 * time.Second)
	now := f.clock.Now().UnixMilli()
	stats, err := f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CareFired)

	p, err := f.players.Load(ctx, "p1")
	require.NoError(t, err)
	land := p.Lands[0]
	assert.True(t, land.NeedsWater)
	assert.Equal(t, now, land.WaterNeededAt)

	// growthDelay: 20% of the 42s remaining = 8.4s.
	wantDelay := int64(8_400)
	assert.True(t, land.WaterDelayApplied)
	assert.Equal(t, wantDelay, land.WaterDelayMs)
	assert.Equal(t, harvestTime+wantDelay, land.HarvestTime)
	assert.Equal(t, harvestTime, land.OriginalHarvestTime)

	score, ok := f.zset.ZScore(keyHarvest, "p1:1")
	require.True(t, ok)
	assert.Equal(t, harvestTime+wantDelay, score, "maturity ticket re-registered")
}

func TestCareDispatchIdempotentWhileTriggered(t *testing.T) {
	f := newFixture(t)
	f.plantLand(t)
	ctx := context.Background()
	f.zset.ZRem(keyCare, "p1:1:pest:0", "p1:1:pest:1")

	// Fire the first water checkpoint, leave the flag set, then let the
	// second checkpoint come due: it must drop silently.
	f.clock.Advance(18 * time.Second)
	stats, err := f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.CareFired)
	firstDelay := int64(8_400)

	f.clock.Advance(18 * time.Second)
	stats, err = f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.CareFired, "second water checkpoint dropped")

	p, err := f.players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, firstDelay, p.Lands[0].WaterDelayMs, "delay applied once")
}

func TestCareDispatchLotteryMiss(t *testing.T) {
	f := newFixture(t)
	f.plantLand(t)
	f.svc.rnd = func() float64 { return 0.99 }

	f.clock.Advance(time.Minute)
	stats, err := f.svc.DispatchDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.CareFired)
	assert.Equal(t, 4, stats.CareDropped, "all checkpoints consumed without triggering")

	p, err := f.players.Load(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, p.Lands[0].NeedsWater)
	assert.False(t, p.Lands[0].HasPests)
}

func TestCareDispatchPestSetsFlagOnly(t *testing.T) {
	f := newFixture(t)
	_, harvestTime := f.plantLand(t)
	ctx := context.Background()

	// Skip past the water checkpoints by clearing them, then fire pest.
	f.zset.ZRem(keyCare, "p1:1:water:0", "p1:1:water:1")
	f.clock.Advance(30 * time.Second)
	now := f.clock.Now().UnixMilli()

	stats, err := f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CareFired)

	p, err := f.players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.Lands[0].HasPests)
	assert.Equal(t, now, p.Lands[0].PestAppearedAt)
	assert.Equal(t, harvestTime, p.Lands[0].HarvestTime, "pest penalty deferred to harvest")
}

func TestCareDispatchDropsForNonGrowingLand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.ScheduleCareCheckpoints(ctx, "p1", 1, f.clock.Now().UnixMilli(), f.clock.Now().UnixMilli()+60_000)
	f.clock.Advance(time.Minute)

	stats, err := f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.CareFired)
	assert.Zero(t, f.zset.ZCard(keyCare), "queue drained")
}

func TestCleanupExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now().UnixMilli()

	f.svc.ScheduleHarvest(ctx, "stale", 1, now-8*24*time.Hour.Milliseconds())
	f.svc.ScheduleHarvest(ctx, "fresh", 1, now)

	removed := f.svc.CleanupExpired(ctx)
	assert.Equal(t, 1, removed)
	_, ok := f.zset.ZScore(keyHarvest, "fresh:1")
	assert.True(t, ok)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now().UnixMilli()

	f.svc.ScheduleHarvest(ctx, "a", 1, now-1000)
	f.svc.ScheduleHarvest(ctx, "a", 2, now+30*time.Minute.Milliseconds())
	f.svc.ScheduleHarvest(ctx, "a", 3, now+2*time.Hour.Milliseconds())

	stats := f.svc.Stats(ctx)
	assert.Equal(t, 3, stats.HarvestTotal)
	assert.Equal(t, 1, stats.Due)
	assert.Equal(t, 1, stats.SoonDue)
	assert.Equal(t, 2, stats.Pending)
}

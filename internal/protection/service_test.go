package protection

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingyu42/farm-game-sub000/internal/concurrency"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/filestore"
	"github.com/xingyu42/farm-game-sub000/internal/inventory"
	"github.com/xingyu42/farm-game-sub000/internal/kv"
	"github.com/xingyu42/farm-game-sub000/internal/player"
	"github.com/xingyu42/farm-game-sub000/internal/testing/gamecfg"
)

func newFixture(t *testing.T) (Service, *player.Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	files := filestore.NewWithFs(afero.NewMemMapFs(), "data")
	locks := concurrency.NewLockManager(kv.NewMemory(), clockwork.NewRealClock())
	registry := gamecfg.NewRegistry(t)
	players := player.NewStore(files, locks, registry, clock)
	_, err := players.Create(context.Background(), "p1", "Ada")
	require.NoError(t, err)
	return NewService(players, registry, clock), players, clock
}

func giveDogFood(t *testing.T, players *player.Store, qty int) {
	t.Helper()
	err := players.ExecuteUnderLock(context.Background(), "p1", domain.LockPurposeGeneral, func(tx *player.Tx) error {
		var opErr error
		tx.Mutate(func(p *domain.Player) {
			_, _, opErr = inventory.Add(p, gamecfg.NewRegistry(t).Snapshot(), "dog_food", qty, 1)
		})
		return opErr
	})
	require.NoError(t, err)
}

func TestApplyDogFoodReplacesBuff(t *testing.T) {
	svc, players, clock := newFixture(t)
	ctx := context.Background()
	giveDogFood(t, players, 2)
	now := clock.Now().UnixMilli()

	require.NoError(t, svc.ApplyDogFood(ctx, "p1", "dog_food"))

	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, now+3_600_000, p.Protection.DogFood.EffectEndTime)
	assert.Equal(t, 20, p.Protection.DogFood.DefenseBonus)
	assert.Equal(t, 1, p.Inventory["dog_food"].Quantity)

	// A later application replaces the buff instead of stacking.
	clock.Advance(30 * time.Minute)
	require.NoError(t, svc.ApplyDogFood(ctx, "p1", "dog_food"))
	p, err = players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, now+30*60_000+3_600_000, p.Protection.DogFood.EffectEndTime)
}

func TestApplyDogFoodValidation(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	err := svc.ApplyDogFood(ctx, "p1", "stone")
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = svc.ApplyDogFood(ctx, "p1", "dog_food")
	assert.ErrorIs(t, err, domain.ErrInsufficientResources)
}

func TestGetStatus(t *testing.T) {
	svc, players, clock := newFixture(t)
	ctx := context.Background()
	giveDogFood(t, players, 1)
	require.NoError(t, svc.ApplyDogFood(ctx, "p1", "dog_food"))
	require.NoError(t, svc.SetFarmProtection(ctx, "p1", 10))
	require.NoError(t, svc.SetStealCooldown(ctx, "p1", 5))

	status, err := svc.GetStatus(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, status.DogFood.Active)
	assert.Equal(t, int64(3_600_000), status.DogFood.RemainingMs)
	assert.True(t, status.FarmProtection.Active)
	assert.True(t, status.StealCooldown.Active)
	assert.Equal(t, 20, status.TotalDefenseBonus)
	assert.True(t, status.IsProtected)

	clock.Advance(11 * time.Minute)
	status, err = svc.GetStatus(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, status.FarmProtection.Active)
	assert.False(t, status.StealCooldown.Active)
	assert.True(t, status.DogFood.Active)
}

func TestRemoveExpired(t *testing.T) {
	svc, players, clock := newFixture(t)
	ctx := context.Background()
	require.NoError(t, svc.SetFarmProtection(ctx, "p1", 10))
	require.NoError(t, svc.SetStealCooldown(ctx, "p1", 5))

	// Nothing expired yet: no write.
	before, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	require.NoError(t, svc.RemoveExpired(ctx, "p1"))
	after, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, before.LastUpdated, after.LastUpdated)

	clock.Advance(11 * time.Minute)
	require.NoError(t, svc.RemoveExpired(ctx, "p1"))
	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, p.Protection.FarmProtection.EffectEndTime)
	assert.Zero(t, p.Stealing.CooldownEndTime)

	status, err := svc.GetStatus(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, status.IsProtected)
}

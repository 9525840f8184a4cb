package inventory

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingyu42/farm-game-sub000/internal/concurrency"
	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/filestore"
	"github.com/xingyu42/farm-game-sub000/internal/kv"
	"github.com/xingyu42/farm-game-sub000/internal/player"
	"github.com/xingyu42/farm-game-sub000/internal/testing/gamecfg"
)

func newFixture(t *testing.T) (Service, *player.Store, *config.Registry) {
	t.Helper()
	clock := clockwork.NewRealClock()
	files := filestore.NewWithFs(afero.NewMemMapFs(), "data")
	locks := concurrency.NewLockManager(kv.NewMemory(), clock)
	registry := gamecfg.NewRegistry(t)
	players := player.NewStore(files, locks, registry, clock)
	_, err := players.Create(context.Background(), "p1", "Ada")
	require.NoError(t, err)
	return NewService(players, registry, clock), players, registry
}

func TestAddCreatesStackFromConfig(t *testing.T) {
	svc, players, _ := newFixture(t)
	ctx := context.Background()

	res, err := svc.Add(ctx, "p1", "wheat_seed", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Added)
	assert.Zero(t, res.Remaining)

	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	stack := p.Inventory["wheat_seed"]
	require.NotNil(t, stack)
	assert.Equal(t, "Wheat Seed", stack.Name)
	assert.Equal(t, domain.CategorySeeds, stack.Category)
	assert.Equal(t, 99, stack.MaxStack)
}

func TestAddZeroQuantityRejected(t *testing.T) {
	svc, _, _ := newFixture(t)

	_, err := svc.Add(context.Background(), "p1", "wheat_seed", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAddPartialOnStackCap(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	res, err := svc.Add(ctx, "p1", "basic_fertilizer", 45)
	require.NoError(t, err)
	assert.Equal(t, 45, res.Added)

	// Stack cap is 50: only 5 more fit.
	res, err = svc.Add(ctx, "p1", "basic_fertilizer", 10)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Added)
	assert.Equal(t, 5, res.Remaining)
}

func TestAddPartialOnFullCapacity(t *testing.T) {
	svc, players, _ := newFixture(t)
	ctx := context.Background()

	// Fill capacity (100) exactly with stone (max stack 999).
	res, err := svc.Add(ctx, "p1", "stone", 100)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Added)

	res, err = svc.Add(ctx, "p1", "wheat_seed", 1)
	require.NoError(t, err)
	assert.Zero(t, res.Added)
	assert.Equal(t, 1, res.Remaining)

	usage, err := svc.Capacity(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, usage.Full)
	assert.Zero(t, usage.Remaining)

	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.NotContains(t, p.Inventory, "wheat_seed")
}

func TestAddBatchAllOrNothing(t *testing.T) {
	svc, players, _ := newFixture(t)
	ctx := context.Background()

	// 60 fertilizer exceeds the 50 stack cap: whole batch refused.
	res, err := svc.AddBatch(ctx, "p1", []BatchItem{
		{ItemID: "wheat_seed", Quantity: 10},
		{ItemID: "basic_fertilizer", Quantity: 60},
	})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, 10, res.Remainders["basic_fertilizer"])

	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, p.Inventory, "nothing added on refused batch")

	res, err = svc.AddBatch(ctx, "p1", []BatchItem{
		{ItemID: "wheat_seed", Quantity: 10},
		{ItemID: "basic_fertilizer", Quantity: 20},
	})
	require.NoError(t, err)
	assert.True(t, res.Applied)

	p, err = players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Inventory["wheat_seed"].Quantity)
	assert.Equal(t, 20, p.Inventory["basic_fertilizer"].Quantity)
}

func TestRemoveDeletesStackAtZero(t *testing.T) {
	svc, players, _ := newFixture(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, "p1", "wheat_seed", 3)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "p1", "wheat_seed", 3))

	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.NotContains(t, p.Inventory, "wheat_seed")
}

func TestRemoveInsufficient(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, "p1", "wheat_seed", 2)
	require.NoError(t, err)

	err = svc.Remove(ctx, "p1", "wheat_seed", 5)
	assert.ErrorIs(t, err, domain.ErrInsufficientResources)
}

func TestLockedStackRefusesRemoval(t *testing.T) {
	svc, players, _ := newFixture(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, "p1", "wheat_seed", 5)
	require.NoError(t, err)

	require.NoError(t, svc.Lock(ctx, "p1", "wheat_seed"))
	err = svc.Remove(ctx, "p1", "wheat_seed", 1)
	assert.ErrorIs(t, err, domain.ErrItemLocked)

	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Inventory["wheat_seed"].Quantity, "inventory unchanged")
}

func TestLockUnlockIdempotent(t *testing.T) {
	svc, players, _ := newFixture(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, "p1", "wheat_seed", 5)
	require.NoError(t, err)

	require.NoError(t, svc.Lock(ctx, "p1", "wheat_seed"))
	require.NoError(t, svc.Lock(ctx, "p1", "wheat_seed"), "second lock is a no-op")

	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	lockedAt := p.Inventory["wheat_seed"].Metadata.LockedAt
	assert.NotZero(t, lockedAt)

	require.NoError(t, svc.Unlock(ctx, "p1", "wheat_seed"))
	require.NoError(t, svc.Unlock(ctx, "p1", "wheat_seed"))

	p, err = players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, p.Inventory["wheat_seed"].Metadata.Locked)
	assert.Zero(t, p.Inventory["wheat_seed"].Metadata.LockedAt)
}

func TestLockMissingItem(t *testing.T) {
	svc, _, _ := newFixture(t)
	err := svc.Lock(context.Background(), "p1", "no_such_item")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

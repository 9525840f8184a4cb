package market

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingyu42/farm-game-sub000/internal/concurrency"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/event"
	"github.com/xingyu42/farm-game-sub000/internal/filestore"
	"github.com/xingyu42/farm-game-sub000/internal/inventory"
	"github.com/xingyu42/farm-game-sub000/internal/kv"
	"github.com/xingyu42/farm-game-sub000/internal/player"
	"github.com/xingyu42/farm-game-sub000/internal/testing/gamecfg"
)

func newShop(t *testing.T) (*Shop, *player.Store, *Engine) {
	t.Helper()
	clock := clockwork.NewRealClock()
	files := filestore.NewWithFs(afero.NewMemMapFs(), "data")
	locks := concurrency.NewLockManager(kv.NewMemory(), clock)
	registry := gamecfg.NewRegistry(t)
	players := player.NewStore(files, locks, registry, clock)
	_, err := players.Create(context.Background(), "p1", "Ada")
	require.NoError(t, err)
	engine := NewEngine(context.Background(), files, registry, clock)
	return NewShop(players, engine, event.NewMemoryBus(), clock), players, engine
}

func TestShopBuy(t *testing.T) {
	shop, players, _ := newShop(t)
	ctx := context.Background()

	// 10 seeds at 10 coins: bulk knocks 0.5% off the unit price.
	res, err := shop.Buy(ctx, "p1", "wheat_seed", 10)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, int64(90), res.Total)

	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Coins)
	assert.Equal(t, 10, p.Inventory["wheat_seed"].Quantity)
	assert.Equal(t, int64(90), p.Statistics.CoinsSpent)

	res, err = shop.Buy(ctx, "p1", "wheat_seed", 50)
	require.NoError(t, err)
	assert.Equal(t, domain.CodeNotEnoughCoins, res.Code)

	_, err = shop.Buy(ctx, "p1", "wheat_seed", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestShopBuyRefusedWhenItDoesNotFit(t *testing.T) {
	shop, players, _ := newShop(t)
	ctx := context.Background()
	err := players.ExecuteUnderLock(ctx, "p1", domain.LockPurposeGeneral, func(tx *player.Tx) error {
		var opErr error
		tx.Mutate(func(p *domain.Player) {
			_, _, opErr = inventory.Add(p, gamecfg.NewRegistry(t).Snapshot(), "stone", 95, 1)
		})
		return opErr
	})
	require.NoError(t, err)

	res, err := shop.Buy(ctx, "p1", "wheat_seed", 10)
	require.NoError(t, err)
	assert.Equal(t, domain.CodeInventoryFull, res.Code)

	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Coins, "no coins charged on refused buy")
	assert.NotContains(t, p.Inventory, "wheat_seed")
}

func TestShopSellFeedsMarket(t *testing.T) {
	shop, players, engine := newShop(t)
	ctx := context.Background()
	err := players.ExecuteUnderLock(ctx, "p1", domain.LockPurposeGeneral, func(tx *player.Tx) error {
		var opErr error
		tx.Mutate(func(p *domain.Player) {
			_, _, opErr = inventory.Add(p, gamecfg.NewRegistry(t).Snapshot(), "wheat", 5, 1)
		})
		return opErr
	})
	require.NoError(t, err)

	res, err := shop.Sell(ctx, "p1", "wheat", 5)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, int64(100), res.Total, "5 units at the base price of 20")

	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), p.Coins)
	assert.NotContains(t, p.Inventory, "wheat")

	engine.mu.Lock()
	supply := engine.items["wheat"].Stats.Supply24h
	engine.mu.Unlock()
	assert.Equal(t, int64(5), supply, "sale recorded as daily supply")

	res, err = shop.Sell(ctx, "p1", "wheat", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.CodeNoItem, res.Code)
}

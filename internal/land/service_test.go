package land

import (
	"context"
	"testing"

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

func newFixture(t *testing.T) (Service, *player.Store) {
	t.Helper()
	clock := clockwork.NewRealClock()
	files := filestore.NewWithFs(afero.NewMemMapFs(), "data")
	locks := concurrency.NewLockManager(kv.NewMemory(), clock)
	players := player.NewStore(files, locks, gamecfg.NewRegistry(t), clock)
	_, err := players.Create(context.Background(), "p1", "Ada")
	require.NoError(t, err)
	return NewService(players, gamecfg.NewRegistry(t), clock), players
}

func setPlayer(t *testing.T, players *player.Store, level int, coins int64) {
	t.Helper()
	require.NoError(t, players.UpdateFields(context.Background(), "p1", player.Patch{Level: &level, Coins: &coins}))
}

func TestGetLandMissing(t *testing.T) {
	svc, _ := newFixture(t)

	_, err := svc.GetLand(context.Background(), "p1", 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetAllLandsCopies(t *testing.T) {
	svc, players := newFixture(t)
	ctx := context.Background()

	lands, err := svc.GetAllLands(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, lands, 6)

	lands[0].Status = domain.LandGrowing
	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.LandEmpty, p.Lands[0].Status, "caller mutation must not leak")
}

func TestUpgradeQualityLevelGate(t *testing.T) {
	svc, _ := newFixture(t)

	res, err := svc.UpgradeQuality(context.Background(), "p1", 1, domain.QualityRed)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeLevelTooLow, res.Code)
}

func TestUpgradeQualityCoinGate(t *testing.T) {
	svc, players := newFixture(t)
	setPlayer(t, players, 10, 100)

	res, err := svc.UpgradeQuality(context.Background(), "p1", 1, domain.QualityRed)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeNotEnoughCoins, res.Code)
}

func TestUpgradeQualitySucceeds(t *testing.T) {
	svc, players := newFixture(t)
	ctx := context.Background()
	setPlayer(t, players, 10, 6000)

	res, err := svc.UpgradeQuality(ctx, "p1", 1, domain.QualityRed)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, domain.QualityRed, res.NewQuality)
	assert.Equal(t, int64(5000), res.CoinsSpent)

	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.QualityRed, p.Lands[0].Quality)
	assert.Equal(t, int64(1000), p.Coins)
	assert.Equal(t, int64(5000), p.Statistics.CoinsSpent)
}

func TestUpgradeQualityRejectsDowngrade(t *testing.T) {
	svc, players := newFixture(t)
	ctx := context.Background()
	setPlayer(t, players, 30, 100000)

	res, err := svc.UpgradeQuality(ctx, "p1", 1, domain.QualityGold)
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = svc.UpgradeQuality(ctx, "p1", 1, domain.QualityRed)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeAlreadyMaxQuality, res.Code)
}

func TestExpandLandCount(t *testing.T) {
	svc, players := newFixture(t)
	ctx := context.Background()
	setPlayer(t, players, 5, 2000)

	res, err := svc.ExpandLandCount(ctx, "p1", 1)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 7, res.LandCount)
	assert.Equal(t, int64(1000), res.CoinsSpent)

	p, err := players.Load(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p.Lands, 7)
	assert.Equal(t, 7, p.Lands[6].ID)
	assert.Equal(t, domain.QualityNormal, p.Lands[6].Quality)
	assert.Equal(t, domain.LandEmpty, p.Lands[6].Status)
	assert.Equal(t, int64(1000), p.Coins)
}

func TestExpandLandCountLevelGate(t *testing.T) {
	svc, players := newFixture(t)
	ctx := context.Background()
	setPlayer(t, players, 5, 10000)

	res, err := svc.ExpandLandCount(ctx, "p1", 1)
	require.NoError(t, err)
	require.True(t, res.Success)

	// Land 8 needs level 8.
	res, err = svc.ExpandLandCount(ctx, "p1", 1)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeLevelTooLow, res.Code)
}

func TestExpandLandCountUnconfiguredStep(t *testing.T) {
	svc, players := newFixture(t)
	ctx := context.Background()
	setPlayer(t, players, 10, 100000)

	res, err := svc.ExpandLandCount(ctx, "p1", 2)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 8, res.LandCount)

	// No expansion row beyond land 8 in the tables.
	res, err = svc.ExpandLandCount(ctx, "p1", 1)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeMaxLandsReached, res.Code)
}

func TestExpandLandCountValidatesSteps(t *testing.T) {
	svc, _ := newFixture(t)

	_, err := svc.ExpandLandCount(context.Background(), "p1", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

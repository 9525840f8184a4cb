package player

import (
	"context"
	"errors"
	"sync"
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
	"github.com/xingyu42/farm-game-sub000/internal/testing/gamecfg"
)

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := filestore.NewWithFs(fs, "data")
	clock := clockwork.NewRealClock()
	locks := concurrency.NewLockManager(kv.NewMemory(), clock)
	return NewStore(files, locks, gamecfg.NewRegistry(t), clock), fs
}

func TestCreateSeedsDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, "p1", "Ada")
	require.NoError(t, err)

	assert.Equal(t, 1, p.Level)
	assert.Equal(t, int64(100), p.Coins)
	assert.Len(t, p.Lands, 6)
	assert.Equal(t, domain.LandEmpty, p.Lands[0].Status)
	assert.Equal(t, 100, p.InventoryCapacity)
	assert.True(t, s.Exists("p1"))
}

func TestLoadMissingPlayer(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.GetOrCreate(ctx, "p1", "Ada")
	require.NoError(t, err)
	again, err := s.GetOrCreate(ctx, "p1", "ignored")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, again.CreatedAt)
	assert.Equal(t, "Ada", again.Name)
}

func TestLoadMigratesLegacyQualityAliases(t *testing.T) {
	s, fs := newTestStore(t)
	legacy := `
id: old1
name: Legacy
level: 2
lands:
  - id: 1
    quality: copper
    status: empty
  - id: 2
    quality: silver
    status: empty
inventory:
  wheat:
    quantity: 3
`
	require.NoError(t, afero.WriteFile(fs, "data/players/old1.yaml", []byte(legacy), 0o644))

	p, err := s.Load(context.Background(), "old1")
	require.NoError(t, err)
	assert.Equal(t, domain.QualityRed, p.Lands[0].Quality)
	assert.Equal(t, domain.QualityBlack, p.Lands[1].Quality)
	assert.Equal(t, 100, p.InventoryCapacity, "defaults filled")
	stack := p.Inventory["wheat"]
	require.NotNil(t, stack)
	assert.Equal(t, "wheat", stack.ItemID)
	assert.Equal(t, 99, stack.MaxStack)
}

func TestExecuteUnderLockPersistsOnlyOnMutate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "p1", "Ada")
	require.NoError(t, err)

	// Read-only body: no write.
	err = s.ExecuteUnderLock(ctx, "p1", domain.LockPurposeGeneral, func(tx *Tx) error {
		assert.Equal(t, "Ada", tx.Player().Name)
		return nil
	})
	require.NoError(t, err)

	err = s.ExecuteUnderLock(ctx, "p1", domain.LockPurposeGeneral, func(tx *Tx) error {
		tx.Mutate(func(p *domain.Player) { p.Coins += 50 })
		return nil
	})
	require.NoError(t, err)

	p, err := s.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), p.Coins)
}

func TestExecuteUnderLockRollsBackOnBodyError(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "p1", "Ada")
	require.NoError(t, err)

	sentinel := errors.New("nope")
	err = s.ExecuteUnderLock(ctx, "p1", domain.LockPurposeGeneral, func(tx *Tx) error {
		tx.Mutate(func(p *domain.Player) { p.Coins = 999999 })
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	p, err := s.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Coins, "mutation not persisted")
}

func TestUpdateFieldsPatch(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "p1", "Ada")
	require.NoError(t, err)

	coins := int64(777)
	name := "Renamed"
	require.NoError(t, s.UpdateFields(ctx, "p1", Patch{Coins: &coins, Name: &name}))

	p, err := s.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(777), p.Coins)
	assert.Equal(t, "Renamed", p.Name)
	assert.NotZero(t, p.LastUpdated)
}

func TestSignInStreaks(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := filestore.NewWithFs(fs, "data")
	clock := clockwork.NewFakeClock()
	locks := concurrency.NewLockManager(kv.NewMemory(), clockwork.NewRealClock())
	s := NewStore(files, locks, gamecfg.NewRegistry(t), clock)
	ctx := context.Background()

	_, err := s.Create(ctx, "p1", "Ada")
	require.NoError(t, err)

	first, err := s.SignIn(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, first.AlreadySigned)
	assert.Equal(t, 1, first.ConsecutiveDays)

	same, err := s.SignIn(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, same.AlreadySigned)

	clock.Advance(24 * time.Hour)
	next, err := s.SignIn(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, next.ConsecutiveDays)
	assert.Equal(t, 2, next.TotalSignDays)

	clock.Advance(3 * 24 * time.Hour)
	broken, err := s.SignIn(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, broken.ConsecutiveDays, "streak broken after a gap")
	assert.Equal(t, 3, broken.TotalSignDays)
}

func TestListPlayerIDs(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "b", "B")
	require.NoError(t, err)
	_, err = s.Create(ctx, "a", "A")
	require.NoError(t, err)

	ids, err := s.ListPlayerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestExecuteUnderLockSerialisesAcrossPurposes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "p1", "Ada")
	require.NoError(t, err)

	// Distinct purposes hold distinct lease locks, so only the
	// per-player write mutex keeps these whole-file writers apart.
	purposes := []string{
		domain.LockPurposeGeneral,
		domain.LockPurposeCare,
		domain.LockPurposeMaturity,
		domain.LockPurposeProtection,
	}
	var wg sync.WaitGroup
	errs := make(chan error, len(purposes))
	for _, purpose := range purposes {
		wg.Add(1)
		go func(purpose string) {
			defer wg.Done()
			errs <- s.ExecuteUnderLock(ctx, "p1", purpose, func(tx *Tx) error {
				tx.Mutate(func(p *domain.Player) {
					p.Coins += 500
					time.Sleep(5 * time.Millisecond) // widen the load-save window
				})
				return nil
			})
		}(purpose)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := s.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(100+4*500), p.Coins, "every committed grant survives")
}

// Package player persists the Player aggregate, one YAML file per
// user, and serialises mutations through the lease lock manager.
package player

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xingyu42/farm-game-sub000/internal/concurrency"
	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/filestore"
	"github.com/xingyu42/farm-game-sub000/internal/logger"
)

// PlayersDir is the directory holding per-player YAML aggregates.
const PlayersDir = "players"

// Store loads and saves Player aggregates. Concurrent reads without a
// lock are permitted (display paths tolerate staleness); every write
// goes through ExecuteUnderLock or UpdateFields.
type Store struct {
	files    *filestore.Store
	locks    *concurrency.LockManager
	registry *config.Registry
	clock    clockwork.Clock

	// aggMu holds one mutex per player id. The lease lock excludes
	// same-purpose holders across processes, but the aggregate is
	// persisted whole, so load-mutate-save sections under different
	// purposes must also exclude each other or the slower writer
	// reverts the faster one's committed state.
	aggMu sync.Map
}

// NewStore creates a player store.
func NewStore(files *filestore.Store, locks *concurrency.LockManager, registry *config.Registry, clock clockwork.Clock) *Store {
	return &Store{files: files, locks: locks, registry: registry, clock: clock}
}

func playerPath(id string) string {
	return path.Join(PlayersDir, id+".yaml")
}

func (s *Store) now() int64 {
	return s.clock.Now().UnixMilli()
}

// Load reads one aggregate. Missing players return ErrNotFound; legacy
// field shapes are migrated to the canonical form on the way in.
func (s *Store) Load(ctx context.Context, id string) (*domain.Player, error) {
	rel := playerPath(id)
	if !s.files.Exists(rel) {
		return nil, fmt.Errorf("%w: player %s", domain.ErrNotFound, id)
	}
	var p domain.Player
	if err := s.files.ReadYAML(rel, &p); err != nil {
		return nil, err
	}
	s.migrate(&p, id)
	return &p, nil
}

// Save writes one aggregate atomically and bumps lastUpdated.
func (s *Store) Save(ctx context.Context, p *domain.Player) error {
	p.LastUpdated = s.now()
	return s.files.WriteYAML(playerPath(p.ID), p)
}

// Exists reports whether a player file is present.
func (s *Store) Exists(id string) bool {
	return s.files.Exists(playerPath(id))
}

// Create builds a fresh aggregate from config defaults and persists it.
func (s *Store) Create(ctx context.Context, id, name string) (*domain.Player, error) {
	snap := s.registry.Snapshot()
	now := s.now()

	p := &domain.Player{
		ID:                   id,
		Name:                 name,
		Level:                1,
		Coins:                snap.Player.StartingCoins,
		Inventory:            make(map[string]*domain.ItemStack),
		InventoryCapacity:    snap.Player.InventoryCapacity,
		MaxInventoryCapacity: snap.Player.MaxInventoryCapacity,
		CreatedAt:            now,
		LastActiveTime:       now,
	}
	for i := 0; i < snap.Land.Default.StartingLands; i++ {
		p.Lands = append(p.Lands, domain.Land{
			ID:      i + 1,
			Quality: domain.QualityNormal,
			Status:  domain.LandEmpty,
		})
	}
	if err := s.Save(ctx, p); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("player created", "playerID", id, "lands", len(p.Lands))
	return p, nil
}

// GetOrCreate loads a player, creating the aggregate on first contact.
func (s *Store) GetOrCreate(ctx context.Context, id, name string) (*domain.Player, error) {
	p, err := s.Load(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return s.Create(ctx, id, name)
}

// ListPlayerIDs returns every persisted player id.
func (s *Store) ListPlayerIDs(ctx context.Context) ([]string, error) {
	files, err := s.files.ListFiles(PlayersDir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(files))
	for _, f := range files {
		name := path.Base(f)
		if strings.HasSuffix(name, ".yaml") {
			ids = append(ids, strings.TrimSuffix(name, ".yaml"))
		}
	}
	return ids, nil
}

// ReadRaw returns the raw YAML bytes of one player file, for backups.
func (s *Store) ReadRaw(id string) ([]byte, error) {
	return s.files.ReadRaw(playerPath(id))
}

// Patch is a typed field-level update. Nil fields are left untouched.
type Patch struct {
	Name           *string
	Coins          *int64
	Level          *int
	Experience     *int64
	LastActiveTime *int64
}

// UpdateFields applies a patch under the general lock and persists.
func (s *Store) UpdateFields(ctx context.Context, id string, patch Patch) error {
	return s.ExecuteUnderLock(ctx, id, domain.LockPurposeGeneral, func(tx *Tx) error {
		tx.Mutate(func(p *domain.Player) {
			if patch.Name != nil {
				p.Name = *patch.Name
			}
			if patch.Coins != nil {
				p.Coins = *patch.Coins
			}
			if patch.Level != nil {
				p.Level = *patch.Level
			}
			if patch.Experience != nil {
				p.Experience = *patch.Experience
			}
			if patch.LastActiveTime != nil {
				p.LastActiveTime = *patch.LastActiveTime
			}
		})
		return nil
	})
}

func (s *Store) aggLock(id string) *sync.Mutex {
	mu, _ := s.aggMu.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ExecuteUnderLock acquires the player's (id, purpose) lock, loads the
// aggregate, runs body against a mutable snapshot and persists once if
// the body mutated it. A body error rolls back by simply not writing.
// The whole load-mutate-save section additionally holds the per-player
// write mutex, so holders of different purposes never interleave
// their reads and whole-file writes.
func (s *Store) ExecuteUnderLock(ctx context.Context, id, purpose string, body func(tx *Tx) error) error {
	return s.locks.WithLock(ctx, id, purpose, concurrency.DefaultLease, func(ctx context.Context) error {
		mu := s.aggLock(id)
		mu.Lock()
		defer mu.Unlock()

		p, err := s.Load(ctx, id)
		if err != nil {
			return err
		}
		tx := &Tx{player: p}
		if err := body(tx); err != nil {
			return err
		}
		if !tx.dirty {
			return nil
		}
		return s.Save(ctx, p)
	})
}

// migrate tolerates legacy shapes: alias quality names, missing maps,
// zero capacities. Writers always emit the canonical form.
func (s *Store) migrate(p *domain.Player, id string) {
	snap := s.registry.Snapshot()
	if p.ID == "" {
		p.ID = id
	}
	if p.Level < 1 {
		p.Level = 1
	}
	if p.Inventory == nil {
		p.Inventory = make(map[string]*domain.ItemStack)
	}
	if p.InventoryCapacity == 0 {
		p.InventoryCapacity = snap.Player.InventoryCapacity
	}
	if p.MaxInventoryCapacity == 0 {
		p.MaxInventoryCapacity = snap.Player.MaxInventoryCapacity
	}
	if p.InventoryCapacity > p.MaxInventoryCapacity {
		p.InventoryCapacity = p.MaxInventoryCapacity
	}
	for i := range p.Lands {
		land := &p.Lands[i]
		land.ID = i + 1
		land.Quality = domain.NormalizeQuality(string(land.Quality))
		if land.Status == "" {
			land.Status = domain.LandEmpty
		}
	}
	for itemID, stack := range p.Inventory {
		if stack == nil {
			delete(p.Inventory, itemID)
			continue
		}
		if stack.ItemID == "" {
			stack.ItemID = itemID
		}
		if stack.MaxStack <= 0 {
			stack.MaxStack = snap.Player.DefaultMaxStack
		}
		if stack.Category == "" {
			stack.Category = domain.CategoryUnknown
		}
	}
}

// SignInResult reports a daily sign-in.
type SignInResult struct {
	AlreadySigned   bool `json:"alreadySigned"`
	ConsecutiveDays int  `json:"consecutiveDays"`
	TotalSignDays   int  `json:"totalSignDays"`
}

// SignIn records today's sign-in, maintaining the consecutive streak.
// Dates are compared in UTC.
func (s *Store) SignIn(ctx context.Context, id string) (*SignInResult, error) {
	var result SignInResult
	err := s.ExecuteUnderLock(ctx, id, domain.LockPurposeGeneral, func(tx *Tx) error {
		today := s.clock.Now().UTC().Format(time.DateOnly)
		yesterday := s.clock.Now().UTC().AddDate(0, 0, -1).Format(time.DateOnly)

		p := tx.Player()
		if p.SignIn.LastSignDate == today {
			result = SignInResult{
				AlreadySigned:   true,
				ConsecutiveDays: p.SignIn.ConsecutiveDays,
				TotalSignDays:   p.SignIn.TotalSignDays,
			}
			return nil
		}
		tx.Mutate(func(p *domain.Player) {
			if p.SignIn.LastSignDate == yesterday {
				p.SignIn.ConsecutiveDays++
			} else {
				p.SignIn.ConsecutiveDays = 1
			}
			p.SignIn.LastSignDate = today
			p.SignIn.TotalSignDays++
			p.LastActiveTime = s.now()
		})
		result = SignInResult{
			ConsecutiveDays: tx.Player().SignIn.ConsecutiveDays,
			TotalSignDays:   tx.Player().SignIn.TotalSignDays,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Package ranking computes the farm-owner leaderboard from a full
// player scan, cached briefly to keep repeated reads cheap.
package ranking

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"

	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/logger"
	"github.com/xingyu42/farm-game-sub000/internal/player"
)

const cacheKey = "farm"

// Entry is one leaderboard row.
type Entry struct {
	Rank        int     `json:"rank"`
	PlayerID    string  `json:"playerId"`
	Name        string  `json:"name"`
	Level       int     `json:"level"`
	LandCount   int     `json:"landCount"`
	TotalAssets int64   `json:"totalAssets"`
	Score       float64 `json:"score"`
}

// Page is one leaderboard page. Self carries the requesting player's
// row when it falls outside the page.
type Page struct {
	List         []Entry               `json:"list"`
	Self         *Entry                `json:"self,omitempty"`
	UpdatedAt    int64                 `json:"updatedAt"`
	TotalPlayers int                   `json:"totalPlayers"`
	Weights      config.RankingWeights `json:"weights"`
}

// Service defines the ranking operations
type Service interface {
	GetPage(ctx context.Context, page int, selfID string) (*Page, error)
	Invalidate()
}

type board struct {
	entries   []Entry
	updatedAt int64
}

type service struct {
	players  *player.Store
	registry *config.Registry
	clock    clockwork.Clock
	cache    *expirable.LRU[string, *board]
}

// NewService creates a new ranking service
func NewService(players *player.Store, registry *config.Registry, clock clockwork.Clock) Service {
	ttl := time.Duration(registry.Snapshot().Ranking.CacheTimeoutMs) * time.Millisecond
	return &service{
		players:  players,
		registry: registry,
		clock:    clock,
		cache:    expirable.NewLRU[string, *board](1, nil, ttl),
	}
}

// Invalidate drops the cached leaderboard so the next read rebuilds.
func (s *service) Invalidate() {
	s.cache.Purge()
}

func (s *service) GetPage(ctx context.Context, page int, selfID string) (*Page, error) {
	if page < 1 {
		page = 1
	}
	b, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	snap := s.registry.Snapshot()
	size := snap.Ranking.PageSize
	if size < 1 {
		size = 10
	}

	start := (page - 1) * size
	end := start + size
	if start > len(b.entries) {
		start = len(b.entries)
	}
	if end > len(b.entries) {
		end = len(b.entries)
	}
	result := &Page{
		List:         append([]Entry(nil), b.entries[start:end]...),
		UpdatedAt:    b.updatedAt,
		TotalPlayers: len(b.entries),
		Weights:      snap.Ranking.ScoreWeights,
	}
	if selfID != "" {
		inPage := false
		for _, e := range result.List {
			if e.PlayerID == selfID {
				inPage = true
				break
			}
		}
		if !inPage {
			for i := range b.entries {
				if b.entries[i].PlayerID == selfID {
					self := b.entries[i]
					result.Self = &self
					break
				}
			}
		}
	}
	return result, nil
}

func (s *service) load(ctx context.Context) (*board, error) {
	if b, ok := s.cache.Get(cacheKey); ok {
		return b, nil
	}
	b, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Add(cacheKey, b)
	return b, nil
}

// build scans every player file and scores the lot. Unreadable files
// are skipped with a warning rather than failing the whole board.
func (s *service) build(ctx context.Context) (*board, error) {
	snap := s.registry.Snapshot()
	ids, err := s.players.ListPlayerIDs(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		p, err := s.players.Load(ctx, id)
		if err != nil {
			log.Warn("skipping unreadable player in ranking scan", "playerID", id, "error", err)
			continue
		}
		entries = append(entries, s.score(snap, p))
	}

	// Tie-break: score, assets, land count, level, then id.
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TotalAssets != b.TotalAssets {
			return a.TotalAssets > b.TotalAssets
		}
		if a.LandCount != b.LandCount {
			return a.LandCount > b.LandCount
		}
		if a.Level != b.Level {
			return a.Level > b.Level
		}
		return a.PlayerID < b.PlayerID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return &board{entries: entries, updatedAt: s.clock.Now().UnixMilli()}, nil
}

func (s *service) score(snap *config.Snapshot, p *domain.Player) Entry {
	w := snap.Ranking.ScoreWeights
	qualityBonus := 0.0
	for i := range p.Lands {
		if mult, ok := snap.Steal.Rewards.BonusByQuality[string(p.Lands[i].Quality)]; ok {
			qualityBonus += mult - 1
		}
	}
	assets := p.Coins
	score := w.LandCountWeight*float64(p.LandCount()) +
		w.LandQualityBonusWeight*qualityBonus +
		w.LevelWeight*float64(p.Level) +
		w.AssetsLog10Weight*math.Log10(float64(assets)+1)
	return Entry{
		PlayerID:    p.ID,
		Name:        p.Name,
		Level:       p.Level,
		LandCount:   p.LandCount(),
		TotalAssets: assets,
		Score:       score,
	}
}

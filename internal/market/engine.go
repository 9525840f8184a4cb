// Package market implements the floating-price engine: per-item supply
// tracking, baseline archives, price recomputation and a debounced
// JSON persistence layer.
package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/xingyu42/farm-game-sub000/internal/calc"
	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/filestore"
	"github.com/xingyu42/farm-game-sub000/internal/logger"
)

const (
	// marketFile is the single persisted market snapshot.
	marketFile = "market/market.json"

	// autoSaveDelay debounces dirty-state flushes.
	autoSaveDelay = 5 * time.Second

	// priceHistoryCap bounds the per-item price history used for
	// trend display and sparklines.
	priceHistoryCap = 24

	snapshotVersion = 1
)

// Engine owns the market state. All access goes through its internal
// mutex; player locks are never taken here.
type Engine struct {
	files    *filestore.Store
	registry *config.Registry
	clock    clockwork.Clock

	mu     sync.Mutex
	items  map[string]*domain.MarketItem
	global domain.MarketGlobalStats
	dirty  bool
	timer  clockwork.Timer

	flight singleflight.Group
}

// NewEngine loads the persisted snapshot, tolerating a missing or
// corrupt file by starting from empty state.
func NewEngine(ctx context.Context, files *filestore.Store, registry *config.Registry, clock clockwork.Clock) *Engine {
	e := &Engine{
		files:    files,
		registry: registry,
		clock:    clock,
		items:    make(map[string]*domain.MarketItem),
	}
	var snap domain.MarketSnapshot
	if err := files.ReadJSON(marketFile, &snap); err != nil {
		if errors.Is(err, domain.ErrStorageCorrupt) {
			logger.FromContext(ctx).Error("market snapshot corrupt, starting empty", "error", err)
		} else {
			logger.FromContext(ctx).Error("market snapshot unreadable, starting empty", "error", err)
		}
	}
	if snap.Items != nil {
		e.items = snap.Items
	}
	e.global = snap.GlobalStats
	e.seedFloatingItems()
	return e
}

func (e *Engine) now() int64 {
	return e.clock.Now().UnixMilli()
}

// isFloating reports whether an item participates in floating pricing:
// by category membership, explicit id, or per-item flag.
func isFloating(snap *config.Snapshot, itemID string) bool {
	if lo.Contains(snap.Market.FloatingItems.Items, itemID) {
		return true
	}
	if crop, ok := snap.Crop(itemID); ok {
		return crop.IsDynamicPrice || lo.Contains(snap.Market.FloatingItems.Categories, crop.Category)
	}
	if item, category, ok := snap.Item(itemID); ok {
		return item.IsDynamicPrice || lo.Contains(snap.Market.FloatingItems.Categories, category)
	}
	return false
}

// basePriceOf resolves the configured base price of an item.
func basePriceOf(snap *config.Snapshot, itemID string) int64 {
	if crop, ok := snap.Crop(itemID); ok {
		return crop.BasePrice
	}
	if item, _, ok := snap.Item(itemID); ok {
		return item.Price
	}
	return 0
}

// seedFloatingItems ensures every configured floating item has state,
// so prices render before the first transaction.
func (e *Engine) seedFloatingItems() {
	snap := e.registry.Snapshot()
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range snap.Crops {
		if isFloating(snap, id) {
			e.ensureItemLocked(snap, id, now)
		}
	}
	for _, items := range snap.Items {
		for id := range items {
			if isFloating(snap, id) {
				e.ensureItemLocked(snap, id, now)
			}
		}
	}
}

func (e *Engine) ensureItemLocked(snap *config.Snapshot, itemID string, now int64) *domain.MarketItem {
	if item, ok := e.items[itemID]; ok {
		return item
	}
	base := basePriceOf(snap, itemID)
	item := &domain.MarketItem{
		Stats: domain.MarketStats{
			BasePrice:    base,
			CurrentPrice: base,
			PriceTrend:   domain.TrendStable,
			LastUpdated:  now,
		},
	}
	e.items[itemID] = item
	return item
}

// repriceLocked recomputes the floating price of one item and updates
// trend and history.
func (e *Engine) repriceLocked(snap *config.Snapshot, item *domain.MarketItem, now int64) {
	base := calc.BaseSupply(item.SupplyHistory, snap.Market.Pricing.MinBaseSupply)
	price := calc.FloatingPrice(item.Stats.BasePrice, item.Stats.Supply24h, base)
	switch {
	case price > item.Stats.CurrentPrice:
		item.Stats.PriceTrend = domain.TrendUp
	case price < item.Stats.CurrentPrice:
		item.Stats.PriceTrend = domain.TrendDown
	default:
		item.Stats.PriceTrend = domain.TrendStable
	}
	if price != item.Stats.CurrentPrice || len(item.Stats.PriceHistory) == 0 {
		item.Stats.PriceHistory = append(item.Stats.PriceHistory, price)
		if len(item.Stats.PriceHistory) > priceHistoryCap {
			item.Stats.PriceHistory = item.Stats.PriceHistory[len(item.Stats.PriceHistory)-priceHistoryCap:]
		}
	}
	item.Stats.CurrentPrice = price
	item.Stats.LastUpdated = now
}

// markDirtyLocked arms (or re-arms) the debounced flush.
func (e *Engine) markDirtyLocked() {
	e.dirty = true
	if e.timer == nil {
		e.timer = e.clock.AfterFunc(autoSaveDelay, func() {
			ctx := context.Background()
			if err := e.Flush(ctx); err != nil {
				logger.FromContext(ctx).Error("market autosave failed", "error", err)
			}
		})
		return
	}
	e.timer.Reset(autoSaveDelay)
}

// RecordTransaction registers a sale of a floating item. Buys and
// non-floating items are ignored; persistence is debounced.
func (e *Engine) RecordTransaction(ctx context.Context, itemID string, qty int64, txType string) error {
	if qty <= 0 {
		return fmt.Errorf("%w: transaction quantity %d", domain.ErrValidation, qty)
	}
	if txType != domain.TransactionSell {
		return nil
	}
	snap := e.registry.Snapshot()
	if !snap.Market.Enabled || !isFloating(snap, itemID) {
		return nil
	}
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	item := e.ensureItemLocked(snap, itemID, now)
	item.Stats.Supply24h += qty
	item.Stats.LastTransaction = now
	e.repriceLocked(snap, item, now)
	e.global.TotalTransactions++
	e.global.TotalVolume += qty
	e.global.LastUpdated = now
	e.markDirtyLocked()
	return nil
}

// CurrentPrice returns the floating price of an item, falling back to
// its configured base price when it does not float.
func (e *Engine) CurrentPrice(itemID string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if item, ok := e.items[itemID]; ok {
		return item.Stats.CurrentPrice
	}
	return basePriceOf(e.registry.Snapshot(), itemID)
}

// CalculateBaseSupply returns the rolling baseline for one item.
func (e *Engine) CalculateBaseSupply(itemID string) float64 {
	snap := e.registry.Snapshot()
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[itemID]
	if !ok {
		return float64(snap.Market.Pricing.MinBaseSupply)
	}
	return calc.BaseSupply(item.SupplyHistory, snap.Market.Pricing.MinBaseSupply)
}

// archiveDay keys archive runs by local calendar day.
func archiveDay(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02")
}

// ArchiveAllDailySupply rolls every item's daily supply into its
// history and persists immediately. A rerun on the same local day
// merges into the head entry instead of prepending a new one, so a
// retried run with zero new supply leaves the history unchanged.
func (e *Engine) ArchiveAllDailySupply(ctx context.Context) error {
	snap := e.registry.Snapshot()
	now := e.now()
	day := archiveDay(now)

	e.mu.Lock()
	for _, item := range e.items {
		if archiveDay(item.Stats.LastArchive) == day && len(item.SupplyHistory) > 0 {
			item.SupplyHistory[0] += item.Stats.Supply24h
		} else {
			item.SupplyHistory = append([]int64{item.Stats.Supply24h}, item.SupplyHistory...)
			if len(item.SupplyHistory) > snap.Market.Pricing.HistoryDays {
				item.SupplyHistory = item.SupplyHistory[:snap.Market.Pricing.HistoryDays]
			}
		}
		item.Stats.Supply24h = 0
		item.Stats.LastArchive = now
		e.repriceLocked(snap, item, now)
	}
	e.dirty = true
	e.mu.Unlock()

	logger.FromContext(ctx).Info("market daily supply archived", "items", len(e.items))
	return e.Flush(ctx)
}

// ResetDailyStats zeroes every item's daily supply and persists
// immediately.
func (e *Engine) ResetDailyStats(ctx context.Context) error {
	now := e.now()
	e.mu.Lock()
	for _, item := range e.items {
		item.Stats.Supply24h = 0
		item.Stats.LastReset = now
	}
	e.dirty = true
	e.mu.Unlock()
	return e.Flush(ctx)
}

// Update is one entry of BatchUpdateMarketData.
type Update struct {
	ItemID       string `json:"itemId"`
	CurrentPrice *int64 `json:"currentPrice,omitempty"`
	Supply24h    *int64 `json:"supply24h,omitempty"`
}

// BatchUpdateMarketData applies validated stat upserts and persists
// immediately. The whole batch is validated before anything changes.
func (e *Engine) BatchUpdateMarketData(ctx context.Context, updates []Update) error {
	snap := e.registry.Snapshot()
	for _, u := range updates {
		if u.ItemID == "" {
			return fmt.Errorf("%w: update missing item id", domain.ErrValidation)
		}
		if !isFloating(snap, u.ItemID) {
			return fmt.Errorf("%w: %s is not a floating item", domain.ErrValidation, u.ItemID)
		}
		if u.CurrentPrice != nil && *u.CurrentPrice < 1 {
			return fmt.Errorf("%w: price %d for %s", domain.ErrValidation, *u.CurrentPrice, u.ItemID)
		}
		if u.Supply24h != nil && *u.Supply24h < 0 {
			return fmt.Errorf("%w: supply %d for %s", domain.ErrValidation, *u.Supply24h, u.ItemID)
		}
	}
	now := e.now()
	e.mu.Lock()
	for _, u := range updates {
		item := e.ensureItemLocked(snap, u.ItemID, now)
		if u.CurrentPrice != nil {
			item.Stats.CurrentPrice = *u.CurrentPrice
		}
		if u.Supply24h != nil {
			item.Stats.Supply24h = *u.Supply24h
		}
		item.Stats.LastUpdated = now
	}
	e.dirty = true
	e.mu.Unlock()
	return e.Flush(ctx)
}

// Flush persists the snapshot if dirty. Concurrent callers share one
// in-flight write.
func (e *Engine) Flush(ctx context.Context) error {
	_, err, _ := e.flight.Do("flush", func() (interface{}, error) {
		e.mu.Lock()
		if !e.dirty {
			e.mu.Unlock()
			return nil, nil
		}
		snap := domain.MarketSnapshot{
			Version:         snapshotVersion,
			LastPersistedAt: e.now(),
			Items:           make(map[string]*domain.MarketItem, len(e.items)),
			GlobalStats:     e.global,
		}
		for id, item := range e.items {
			cp := *item
			cp.SupplyHistory = append([]int64(nil), item.SupplyHistory...)
			cp.Stats.PriceHistory = append([]int64(nil), item.Stats.PriceHistory...)
			snap.Items[id] = &cp
		}
		e.dirty = false
		e.mu.Unlock()

		if err := e.files.WriteJSON(marketFile, &snap); err != nil {
			e.mu.Lock()
			e.dirty = true
			e.mu.Unlock()
			return nil, err
		}
		return nil, nil
	})
	return err
}

// Close flushes pending state and stops the debounce timer.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()
	return e.Flush(ctx)
}

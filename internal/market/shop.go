package market

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/xingyu42/farm-game-sub000/internal/calc"
	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/event"
	"github.com/xingyu42/farm-game-sub000/internal/inventory"
	"github.com/xingyu42/farm-game-sub000/internal/logger"
	"github.com/xingyu42/farm-game-sub000/internal/player"
)

// TradeResult reports a shop buy or sell.
type TradeResult struct {
	domain.OperationResult
	ItemID    string `json:"itemId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Total     int64  `json:"total"`
}

// Shop sells config-listed items for coins and buys produce back at
// floating prices. Sales feed the market engine's supply tracking.
type Shop struct {
	players *player.Store
	engine  *Engine
	bus     event.Bus
	clock   clockwork.Clock
}

// NewShop creates a new shop
func NewShop(players *player.Store, engine *Engine, bus event.Bus, clock clockwork.Clock) *Shop {
	return &Shop{players: players, engine: engine, bus: bus, clock: clock}
}

// publish emits a trade event outside the player lock; subscriber
// failures never fail the trade.
func (s *Shop) publish(ctx context.Context, evt event.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		logger.FromContext(ctx).Warn("event publish failed", "type", evt.Type, "error", err)
	}
}

// priceFor resolves the per-unit price: the floating price for
// floating items, the configured price otherwise.
func (s *Shop) priceFor(snap *config.Snapshot, itemID string) (int64, bool) {
	if isFloating(snap, itemID) {
		return s.engine.CurrentPrice(itemID), true
	}
	if crop, ok := snap.Crop(itemID); ok {
		return crop.BasePrice, true
	}
	if item, _, ok := snap.Item(itemID); ok {
		return item.Price, true
	}
	return 0, false
}

// Buy purchases qty of an item, deducting coins and adding stock in
// one transaction. Purchases that do not fit the inventory are
// refused whole.
func (s *Shop) Buy(ctx context.Context, playerID, itemID string, qty int) (*TradeResult, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: buy quantity %d", domain.ErrValidation, qty)
	}
	snap := s.engine.registry.Snapshot()
	unit, ok := s.priceFor(snap, itemID)
	if !ok {
		r := domain.Fail(domain.CodeNoItem, fmt.Sprintf("unknown item %s", itemID))
		return &TradeResult{OperationResult: r, ItemID: itemID}, nil
	}

	var result TradeResult
	err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		now := s.clock.Now().UnixMilli()
		p := tx.Player()
		total := calc.ShopPrice(unit, qty, calc.OpBuy, p.Level)
		if p.Coins < total {
			result = TradeResult{
				OperationResult: domain.Fail(domain.CodeNotEnoughCoins, fmt.Sprintf("%d coins required", total)),
				ItemID:          itemID,
			}
			return nil
		}
		var added int
		var opErr error
		tx.Mutate(func(p *domain.Player) {
			added, _, opErr = inventory.Add(p, snap, itemID, qty, now)
			if opErr != nil {
				return
			}
			if added < qty {
				opErr = fmt.Errorf("%w: inventory holds only %d of %d", domain.ErrInsufficientResources, added, qty)
				return
			}
			p.Coins -= total
			p.Statistics.CoinsSpent += total
		})
		if opErr != nil {
			result = TradeResult{
				OperationResult: domain.Fail(domain.CodeInventoryFull, fmt.Sprintf("%d of %d fit the inventory", added, qty)),
				ItemID:          itemID,
			}
			return nil
		}
		result = TradeResult{
			OperationResult: domain.OK(),
			ItemID:          itemID,
			Quantity:        qty,
			UnitPrice:       total / int64(qty),
			Total:           total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Success {
		s.publish(ctx, event.NewItemBoughtEvent(playerID, itemID, qty, result.Total))
	}
	return &result, nil
}

// Sell trades qty of an item for coins and reports the sale to the
// market engine for supply tracking.
func (s *Shop) Sell(ctx context.Context, playerID, itemID string, qty int) (*TradeResult, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: sell quantity %d", domain.ErrValidation, qty)
	}
	snap := s.engine.registry.Snapshot()
	unit, ok := s.priceFor(snap, itemID)
	if !ok {
		r := domain.Fail(domain.CodeNoItem, fmt.Sprintf("unknown item %s", itemID))
		return &TradeResult{OperationResult: r, ItemID: itemID}, nil
	}

	var result TradeResult
	err := s.players.ExecuteUnderLock(ctx, playerID, domain.LockPurposeGeneral, func(tx *player.Tx) error {
		now := s.clock.Now().UnixMilli()
		p := tx.Player()
		if inventory.Count(p, itemID) < qty {
			result = TradeResult{
				OperationResult: domain.Fail(domain.CodeNoItem, fmt.Sprintf("not enough %s", itemID)),
				ItemID:          itemID,
			}
			return nil
		}
		total := calc.ShopPrice(unit, qty, calc.OpSell, p.Level)
		var opErr error
		tx.Mutate(func(p *domain.Player) {
			if opErr = inventory.Remove(p, itemID, qty, now); opErr != nil {
				return
			}
			p.Coins += total
			p.Statistics.CoinsEarned += total
		})
		if opErr != nil {
			return opErr
		}
		result = TradeResult{
			OperationResult: domain.OK(),
			ItemID:          itemID,
			Quantity:        qty,
			UnitPrice:       total / int64(qty),
			Total:           total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Success {
		if err := s.engine.RecordTransaction(ctx, itemID, int64(qty), domain.TransactionSell); err != nil {
			logger.FromContext(ctx).Warn("sale recorded but market update failed", "item", itemID, "error", err)
		}
		s.publish(ctx, event.NewItemSoldEvent(playerID, itemID, qty, result.Total))
	}
	return &result, nil
}

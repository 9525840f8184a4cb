package inventory

import (
	"fmt"

	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
)

// newStack builds a stack from the item's config descriptor. Unknown
// items get the default max stack and the unknown category.
func newStack(snap *config.Snapshot, itemID string, now int64) *domain.ItemStack {
	stack := &domain.ItemStack{
		ItemID:   itemID,
		MaxStack: snap.Player.DefaultMaxStack,
		Category: domain.CategoryUnknown,
		Metadata: domain.StackMetadata{LastUpdated: now},
	}
	if item, category, ok := snap.Item(itemID); ok {
		stack.Name = item.Name
		stack.Category = category
		stack.BasePrice = item.Price
		if item.MaxStack > 0 {
			stack.MaxStack = item.MaxStack
		}
	} else if crop, ok := snap.Crop(itemID); ok {
		stack.Name = crop.Name
		stack.Category = domain.CategoryCrops
		stack.BasePrice = crop.BasePrice
	}
	return stack
}

// addCapacity returns how much of qty fits for itemID: bounded by the
// stack cap and by remaining aggregate capacity (one unit, one slot).
func addCapacity(p *domain.Player, snap *config.Snapshot, itemID string, qty int) int {
	free := p.InventoryUsage().Remaining
	stackRoom := qty
	if stack, ok := p.Inventory[itemID]; ok {
		stackRoom = stack.MaxStack - stack.Quantity
	} else if item, _, ok := snap.Item(itemID); ok && item.MaxStack > 0 {
		stackRoom = item.MaxStack
	} else {
		stackRoom = snap.Player.DefaultMaxStack
	}
	fit := qty
	if stackRoom < fit {
		fit = stackRoom
	}
	if free < fit {
		fit = free
	}
	if fit < 0 {
		return 0
	}
	return fit
}

// Add puts qty of itemID into the aggregate, returning how many were
// actually added and how many did not fit. Call under the player lock.
func Add(p *domain.Player, snap *config.Snapshot, itemID string, qty int, now int64) (added, remaining int, err error) {
	if qty <= 0 {
		return 0, 0, fmt.Errorf("%w: add quantity %d", domain.ErrValidation, qty)
	}
	added = addCapacity(p, snap, itemID, qty)
	remaining = qty - added
	if added == 0 {
		return 0, remaining, nil
	}
	stack, ok := p.Inventory[itemID]
	if !ok {
		stack = newStack(snap, itemID, now)
		p.Inventory[itemID] = stack
	}
	stack.Quantity += added
	stack.Metadata.LastUpdated = now
	return added, remaining, nil
}

// Remove takes qty of itemID out of the aggregate, deleting the stack
// at zero. Locked stacks refuse removal. Call under the player lock.
func Remove(p *domain.Player, itemID string, qty int, now int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: remove quantity %d", domain.ErrValidation, qty)
	}
	stack, ok := p.Inventory[itemID]
	if !ok || stack.Quantity < qty {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientResources, itemID)
	}
	if stack.Metadata.Locked {
		return fmt.Errorf("%w: %s", domain.ErrItemLocked, itemID)
	}
	stack.Quantity -= qty
	stack.Metadata.LastUpdated = now
	if stack.Quantity == 0 {
		delete(p.Inventory, itemID)
	}
	return nil
}

// Count returns the held quantity of itemID.
func Count(p *domain.Player, itemID string) int {
	if stack, ok := p.Inventory[itemID]; ok {
		return stack.Quantity
	}
	return 0
}

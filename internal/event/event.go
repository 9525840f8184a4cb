// Package event is the in-process message bus. Game services publish
// typed domain events; subscribers (metrics, future webhooks) react
// without the services knowing about them.
package event

import (
	"context"
	"fmt"
	"sync"
)

// Type represents the type of an event
type Type string

// Farm event types
const (
	TypeCropPlanted   Type = "crop.planted"
	TypeCropHarvested Type = "crop.harvested"
	TypeStealResolved Type = "steal.resolved"
	TypeItemBought    Type = "item.bought"
	TypeItemSold      Type = "item.sold"
	TypeLevelUp       Type = "player.level_up"
)

// Event represents a generic event in the system
type Event struct {
	Version string      `json:"version"` // Event schema version (e.g., "1.0")
	Type    Type        `json:"type"`
	Payload interface{} `json:"payload"`
}

// Typed event payloads for type safety

// CropPlantedPayloadV1 is the typed payload for planting events
type CropPlantedPayloadV1 struct {
	PlayerID string `json:"player_id"`
	Crop     string `json:"crop"`
	Plots    int    `json:"plots"`
}

// CropHarvestedPayloadV1 is the typed payload for harvest events
type CropHarvestedPayloadV1 struct {
	PlayerID   string `json:"player_id"`
	Plots      int    `json:"plots"`
	Units      int    `json:"units"`
	Experience int64  `json:"experience"`
}

// StealResolvedPayloadV1 is the typed payload for steal events
type StealResolvedPayloadV1 struct {
	StealerID string `json:"stealer_id"`
	OwnerID   string `json:"owner_id"`
	Outcome   string `json:"outcome"` // stolen | defended
	Units     int    `json:"units"`
}

// TradePayloadV1 is the typed payload for shop buy/sell events
type TradePayloadV1 struct {
	PlayerID string `json:"player_id"`
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	Total    int64  `json:"total"`
}

// LevelUpPayloadV1 is the typed payload for level-up events
type LevelUpPayloadV1 struct {
	PlayerID string `json:"player_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
}

// Type-safe event constructors

// NewCropPlantedEvent creates a new planting event
func NewCropPlantedEvent(playerID, crop string, plots int) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    TypeCropPlanted,
		Payload: CropPlantedPayloadV1{PlayerID: playerID, Crop: crop, Plots: plots},
	}
}

// NewCropHarvestedEvent creates a new harvest event
func NewCropHarvestedEvent(playerID string, plots, units int, experience int64) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    TypeCropHarvested,
		Payload: CropHarvestedPayloadV1{PlayerID: playerID, Plots: plots, Units: units, Experience: experience},
	}
}

// NewStealResolvedEvent creates a new steal outcome event
func NewStealResolvedEvent(stealerID, ownerID, outcome string, units int) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    TypeStealResolved,
		Payload: StealResolvedPayloadV1{StealerID: stealerID, OwnerID: ownerID, Outcome: outcome, Units: units},
	}
}

// NewItemBoughtEvent creates a new shop purchase event
func NewItemBoughtEvent(playerID, itemID string, quantity int, total int64) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    TypeItemBought,
		Payload: TradePayloadV1{PlayerID: playerID, ItemID: itemID, Quantity: quantity, Total: total},
	}
}

// NewItemSoldEvent creates a new shop sale event
func NewItemSoldEvent(playerID, itemID string, quantity int, total int64) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    TypeItemSold,
		Payload: TradePayloadV1{PlayerID: playerID, ItemID: itemID, Quantity: quantity, Total: total},
	}
}

// NewLevelUpEvent creates a new level-up event
func NewLevelUpEvent(playerID string, oldLevel, newLevel int) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    TypeLevelUp,
		Payload: LevelUpPayloadV1{PlayerID: playerID, OldLevel: oldLevel, NewLevel: newLevel},
	}
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for an event bus
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType Type, handler Handler)
}

// MemoryBus is an in-memory implementation of the Event Bus
type MemoryBus struct {
	handlers map[Type][]Handler
	mu       sync.RWMutex
}

// NewMemoryBus creates a new MemoryBus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[Type][]Handler),
	}
}

// Publish publishes an event to all subscribers. Handlers run
// synchronously; a failing handler does not stop the others.
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers, ok := b.handlers[event.Type]
	b.mu.RUnlock()

	if !ok {
		return nil
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf(LogMsgHandlerErrorFormat, len(errs), event.Type, errs)
	}

	return nil
}

// Subscribe subscribes a handler to an event type
func (b *MemoryBus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

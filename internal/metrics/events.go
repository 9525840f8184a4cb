package metrics

import (
	"context"

	"github.com/xingyu42/farm-game-sub000/internal/event"
)

// EventMetricsCollector subscribes to the bus and records metrics
type EventMetricsCollector struct{}

// NewEventMetricsCollector creates a new event metrics collector
func NewEventMetricsCollector() *EventMetricsCollector {
	return &EventMetricsCollector{}
}

// Register subscribes to all events we track
func (e *EventMetricsCollector) Register(bus event.Bus) {
	eventTypes := []event.Type{
		event.TypeCropPlanted,
		event.TypeCropHarvested,
		event.TypeStealResolved,
		event.TypeItemBought,
		event.TypeItemSold,
		event.TypeLevelUp,
	}
	for _, eventType := range eventTypes {
		bus.Subscribe(eventType, e.HandleEvent)
	}
}

// HandleEvent processes events and updates metrics
func (e *EventMetricsCollector) HandleEvent(_ context.Context, evt event.Event) error {
	EventsPublished.WithLabelValues(string(evt.Type)).Inc()

	switch payload := evt.Payload.(type) {
	case event.CropPlantedPayloadV1:
		CropsPlanted.WithLabelValues(payload.Crop).Add(float64(payload.Plots))

	case event.CropHarvestedPayloadV1:
		CropsHarvested.Add(float64(payload.Plots))
		HarvestUnits.Add(float64(payload.Units))

	case event.StealResolvedPayloadV1:
		StealsResolved.WithLabelValues(payload.Outcome).Inc()

	case event.TradePayloadV1:
		switch evt.Type {
		case event.TypeItemBought:
			ItemsBought.WithLabelValues(payload.ItemID).Add(float64(payload.Quantity))
			CoinsSpent.Add(float64(payload.Total))
		case event.TypeItemSold:
			ItemsSold.WithLabelValues(payload.ItemID).Add(float64(payload.Quantity))
			CoinsEarned.Add(float64(payload.Total))
		}

	case event.LevelUpPayloadV1:
		LevelUps.Inc()
	}

	return nil
}

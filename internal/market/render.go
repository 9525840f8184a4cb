package market

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xingyu42/farm-game-sub000/internal/domain"
)

// Sparkline viewport. Paths are consumed by an SVG-capable renderer.
const (
	sparkWidth  = 100.0
	sparkHeight = 30.0
)

// RenderItem is one row of the market display.
type RenderItem struct {
	ItemID       string  `json:"itemId"`
	Name         string  `json:"name"`
	BasePrice    int64   `json:"basePrice"`
	CurrentPrice int64   `json:"currentPrice"`
	Supply24h    int64   `json:"supply24h"`
	Trend        string  `json:"trend"`
	Volatility   float64 `json:"volatility"`
	Sparkline    string  `json:"sparkline,omitempty"`
}

// RenderData is the read-only market view served to adapters.
type RenderData struct {
	TopVolatile []RenderItem             `json:"topVolatile"`
	GlobalStats domain.MarketGlobalStats `json:"globalStats"`
	GeneratedAt int64                    `json:"generatedAt"`
}

// GetRenderData returns the topN most volatile items with sparklines.
func (e *Engine) GetRenderData(topN int) *RenderData {
	snap := e.registry.Snapshot()
	e.mu.Lock()
	defer e.mu.Unlock()

	rows := make([]RenderItem, 0, len(e.items))
	for id, item := range e.items {
		name := id
		if crop, ok := snap.Crop(id); ok {
			name = crop.Name
		} else if cfg, _, ok := snap.Item(id); ok {
			name = cfg.Name
		}
		volatility := 0.0
		if item.Stats.BasePrice > 0 {
			volatility = math.Abs(float64(item.Stats.CurrentPrice-item.Stats.BasePrice) / float64(item.Stats.BasePrice))
		}
		rows = append(rows, RenderItem{
			ItemID:       id,
			Name:         name,
			BasePrice:    item.Stats.BasePrice,
			CurrentPrice: item.Stats.CurrentPrice,
			Supply24h:    item.Stats.Supply24h,
			Trend:        item.Stats.PriceTrend,
			Volatility:   volatility,
			Sparkline:    sparklinePath(item.Stats.PriceHistory),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Volatility != rows[j].Volatility {
			return rows[i].Volatility > rows[j].Volatility
		}
		return rows[i].ItemID < rows[j].ItemID
	})
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	return &RenderData{
		TopVolatile: rows,
		GlobalStats: e.global,
		GeneratedAt: e.now(),
	}
}

// sparklinePath renders the last priceHistoryCap points as an SVG path
// using Catmull-Rom splines expressed as cubic Beziers. Short histories
// degrade gracefully: one point draws a flat line, none draws nothing.
func sparklinePath(history []int64) string {
	if len(history) > priceHistoryCap {
		history = history[len(history)-priceHistoryCap:]
	}
	switch len(history) {
	case 0:
		return ""
	case 1:
		y := sparkHeight / 2
		return fmt.Sprintf("M 0,%s L %s,%s", fmtCoord(y), fmtCoord(sparkWidth), fmtCoord(y))
	}

	minV, maxV := history[0], history[0]
	for _, v := range history {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	span := float64(maxV - minV)

	type pt struct{ x, y float64 }
	points := make([]pt, len(history))
	step := sparkWidth / float64(len(history)-1)
	for i, v := range history {
		y := sparkHeight / 2
		if span > 0 {
			y = sparkHeight - float64(v-minV)/span*sparkHeight
		}
		points[i] = pt{x: float64(i) * step, y: y}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "M %s,%s", fmtCoord(points[0].x), fmtCoord(points[0].y))
	if len(points) == 2 {
		fmt.Fprintf(&b, " L %s,%s", fmtCoord(points[1].x), fmtCoord(points[1].y))
		return b.String()
	}
	// Catmull-Rom to Bezier: tangents from the neighbouring points,
	// clamped at the ends by duplicating the endpoints.
	for i := 0; i < len(points)-1; i++ {
		p0 := points[maxInt(i-1, 0)]
		p1 := points[i]
		p2 := points[i+1]
		p3 := points[minInt(i+2, len(points)-1)]

		c1 := pt{x: p1.x + (p2.x-p0.x)/6, y: p1.y + (p2.y-p0.y)/6}
		c2 := pt{x: p2.x - (p3.x-p1.x)/6, y: p2.y - (p3.y-p1.y)/6}
		fmt.Fprintf(&b, " C %s,%s %s,%s %s,%s",
			fmtCoord(c1.x), fmtCoord(c1.y),
			fmtCoord(c2.x), fmtCoord(c2.y),
			fmtCoord(p2.x), fmtCoord(p2.y))
	}
	return b.String()
}

func fmtCoord(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

package domain

// Price trend directions
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// MarketStats is the per-item floating-price state.
type MarketStats struct {
	BasePrice       int64   `json:"basePrice"`
	CurrentPrice    int64   `json:"currentPrice"`
	Supply24h       int64   `json:"supply24h"`
	PriceTrend      string  `json:"priceTrend"`
	PriceHistory    []int64 `json:"priceHistory"`
	LastUpdated     int64   `json:"lastUpdated"`
	LastTransaction int64   `json:"lastTransaction,omitempty"`
	LastReset       int64   `json:"lastReset,omitempty"`
	LastArchive     int64   `json:"lastArchive,omitempty"`
}

// MarketItem is one floating-price item: live stats plus the rolling
// daily-supply history the baseline is computed from.
type MarketItem struct {
	Stats         MarketStats `json:"stats"`
	SupplyHistory []int64     `json:"supplyHistory"`
}

// MarketGlobalStats aggregates across all floating items.
type MarketGlobalStats struct {
	TotalTransactions int64 `json:"totalTransactions"`
	TotalVolume       int64 `json:"totalVolume"`
	LastUpdated       int64 `json:"lastUpdated,omitempty"`
}

// MarketSnapshot is the persisted shape of market/market.json.
type MarketSnapshot struct {
	Version         int                    `json:"version"`
	LastPersistedAt int64                  `json:"lastPersistedAt"`
	Items           map[string]*MarketItem `json:"items"`
	GlobalStats     MarketGlobalStats      `json:"globalStats"`
}

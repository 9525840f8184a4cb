package domain

// TimedBuff is a defensive effect with an absolute expiry.
type TimedBuff struct {
	Type          string `yaml:"type,omitempty" json:"type,omitempty"`
	EffectEndTime int64  `yaml:"effectEndTime,omitempty" json:"effectEndTime,omitempty"`
	DefenseBonus  int    `yaml:"defenseBonus,omitempty" json:"defenseBonus,omitempty"`
}

// Active reports whether the buff is still in effect at now.
func (b TimedBuff) Active(now int64) bool {
	return b.EffectEndTime > now
}

// Protection groups the defensive buffs on a player.
type Protection struct {
	DogFood        TimedBuff `yaml:"dogFood" json:"dogFood"`
	FarmProtection TimedBuff `yaml:"farmProtection" json:"farmProtection"`
}

// Stealing tracks the theft cooldown for a player.
type Stealing struct {
	CooldownEndTime int64 `yaml:"cooldownEndTime,omitempty" json:"cooldownEndTime,omitempty"`
}

// SignIn tracks daily sign-in streaks.
type SignIn struct {
	LastSignDate    string `yaml:"lastSignDate,omitempty" json:"lastSignDate,omitempty"`
	ConsecutiveDays int    `yaml:"consecutiveDays" json:"consecutiveDays"`
	TotalSignDays   int    `yaml:"totalSignDays" json:"totalSignDays"`
}

// Statistics holds lifetime counters bumped by lifecycle and market ops.
type Statistics struct {
	TotalPlants   int   `yaml:"totalPlants" json:"totalPlants"`
	TotalHarvests int   `yaml:"totalHarvests" json:"totalHarvests"`
	TotalStolen   int   `yaml:"totalStolen" json:"totalStolen"`
	CoinsEarned   int64 `yaml:"coinsEarned" json:"coinsEarned"`
	CoinsSpent    int64 `yaml:"coinsSpent" json:"coinsSpent"`
}

// Player is the aggregate root, persisted as one YAML file per user.
// It is an inert record: all behaviour lives in services and calc.
type Player struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Level      int    `yaml:"level" json:"level"`
	Experience int64  `yaml:"experience" json:"experience"`
	Coins      int64  `yaml:"coins" json:"coins"`

	Lands []Land `yaml:"lands" json:"lands"`

	Inventory            map[string]*ItemStack `yaml:"inventory" json:"inventory"`
	InventoryCapacity    int                   `yaml:"inventoryCapacity" json:"inventoryCapacity"`
	MaxInventoryCapacity int                   `yaml:"maxInventoryCapacity" json:"maxInventoryCapacity"`

	Protection Protection `yaml:"protection" json:"protection"`
	Stealing   Stealing   `yaml:"stealing" json:"stealing"`
	SignIn     SignIn     `yaml:"signIn" json:"signIn"`
	Statistics Statistics `yaml:"statistics" json:"statistics"`

	CreatedAt      int64 `yaml:"createdAt" json:"createdAt"`
	LastUpdated    int64 `yaml:"lastUpdated" json:"lastUpdated"`
	LastActiveTime int64 `yaml:"lastActiveTime" json:"lastActiveTime"`
}

// LandCount is the number of plots the player owns.
func (p *Player) LandCount() int {
	return len(p.Lands)
}

// LandByID returns the plot with the given 1-based id, or nil.
func (p *Player) LandByID(landID int) *Land {
	if landID < 1 || landID > len(p.Lands) {
		return nil
	}
	return &p.Lands[landID-1]
}

// InventoryUsage sums stack quantities against capacity.
func (p *Player) InventoryUsage() InventoryUsage {
	usage := 0
	for _, stack := range p.Inventory {
		usage += stack.Quantity
	}
	remaining := p.InventoryCapacity - usage
	if remaining < 0 {
		remaining = 0
	}
	return InventoryUsage{
		Usage:     usage,
		Capacity:  p.InventoryCapacity,
		Remaining: remaining,
		Full:      usage >= p.InventoryCapacity,
	}
}

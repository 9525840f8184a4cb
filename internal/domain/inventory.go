package domain

// StackMetadata carries mutable per-stack bookkeeping.
type StackMetadata struct {
	Locked      bool  `yaml:"locked" json:"locked"`
	LockedAt    int64 `yaml:"lockedAt,omitempty" json:"lockedAt,omitempty"`
	LastUpdated int64 `yaml:"lastUpdated,omitempty" json:"lastUpdated,omitempty"`
}

// ItemStack is one inventory entry. Descriptor fields (Name, Category,
// MaxStack, prices) are copied from config at creation and treated as
// immutable afterwards.
type ItemStack struct {
	ItemID    string        `yaml:"itemId" json:"itemId"`
	Name      string        `yaml:"name,omitempty" json:"name,omitempty"`
	Quantity  int           `yaml:"quantity" json:"quantity"`
	MaxStack  int           `yaml:"maxStack" json:"maxStack"`
	Category  string        `yaml:"category" json:"category"`
	BasePrice int64         `yaml:"basePrice,omitempty" json:"basePrice,omitempty"`
	Metadata  StackMetadata `yaml:"metadata" json:"metadata"`
}

// InventoryUsage summarises slot consumption. One unit occupies one
// slot regardless of stacking.
type InventoryUsage struct {
	Usage     int  `json:"usage"`
	Capacity  int  `json:"capacity"`
	Remaining int  `json:"remaining"`
	Full      bool `json:"full"`
}

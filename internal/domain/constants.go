package domain

// Lock purposes used with the lease lock manager. Every mutation on a
// player aggregate acquires lock:{playerID}:{purpose}.
const (
	LockPurposeGeneral    = "general"
	LockPurposePlant      = "plant"
	LockPurposeHarvest    = "harvest"
	LockPurposeCare       = "care"
	LockPurposeMaturity   = "maturity"
	LockPurposeMarket     = "market"
	LockPurposeProtection = "protection"
	LockPurposeBackup     = "backup"
	LockPurposeRank       = "rank"
)

// Item categories
const (
	CategorySeeds      = "seeds"
	CategoryCrops      = "crops"
	CategoryFertilizer = "fertilizer"
	CategoryPesticide  = "pesticide"
	CategoryDefense    = "defense"
	CategoryMaterials  = "materials"
	CategoryTools      = "tools"
	CategoryUnknown    = "unknown"
)

// Care checkpoint types
const (
	CareTypeWater = "water"
	CareTypePest  = "pest"
)

// Transaction types recorded by the market engine
const (
	TransactionBuy  = "buy"
	TransactionSell = "sell"
)

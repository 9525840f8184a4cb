package domain

// OperationResult is the typed outcome of a user-facing operation.
// Validation failures are reported here, not as errors; infrastructure
// faults (storage, locks) surface as wrapped ErrXxx errors instead.
type OperationResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Result codes for failed operations
const (
	CodeLandNotEmpty      = "LAND_NOT_EMPTY"
	CodeLandNotFound      = "LAND_NOT_FOUND"
	CodeLevelTooLow       = "LEVEL_TOO_LOW"
	CodeNoSeed            = "NO_SEED"
	CodeNothingMature     = "NOTHING_MATURE"
	CodeNoCareNeeded      = "NO_CARE_NEEDED"
	CodeNoItem            = "NO_ITEM"
	CodeInventoryFull     = "INVENTORY_FULL"
	CodeNotEnoughCoins    = "NOT_ENOUGH_COINS"
	CodeAlreadyMaxQuality = "ALREADY_MAX_QUALITY"
	CodeMaxLandsReached   = "MAX_LANDS_REACHED"
	CodeUnknownCrop       = "UNKNOWN_CROP"
	CodeNotStealable      = "NOT_STEALABLE"
	CodeStealCooldown     = "STEAL_COOLDOWN"
	CodeDefended          = "DEFENDED"
)

// OK returns a successful result.
func OK() OperationResult {
	return OperationResult{Success: true}
}

// Fail returns a failed result with a code and human-readable message.
func Fail(code, message string) OperationResult {
	return OperationResult{Success: false, Code: code, Message: message}
}

// LevelUp records a level transition and the rewards granted for it.
type LevelUp struct {
	FromLevel   int              `json:"fromLevel"`
	ToLevel     int              `json:"toLevel"`
	CoinsAwarded int64           `json:"coinsAwarded,omitempty"`
	ItemsAwarded map[string]int  `json:"itemsAwarded,omitempty"`
}

// PlantResult describes a successful (or rejected) plant operation.
type PlantResult struct {
	OperationResult
	LandID      int    `json:"landId,omitempty"`
	Crop        string `json:"crop,omitempty"`
	PlantTime   int64  `json:"plantTime,omitempty"`
	HarvestTime int64  `json:"harvestTime,omitempty"`
}

// BatchPlantResult aggregates a two-phase batch plant.
type BatchPlantResult struct {
	OperationResult
	Planted []PlantResult `json:"planted,omitempty"`
}

// HarvestedLand is one plot's contribution to a harvest pass.
type HarvestedLand struct {
	LandID    int    `json:"landId"`
	Crop      string `json:"crop"`
	Quantity  int    `json:"quantity"`
	Exp       int64  `json:"exp"`
	BonusSeed bool   `json:"bonusSeed,omitempty"`
}

// HarvestResult describes a capacity-ordered harvest pass. Skipped
// lists mature plots left untouched because their yield did not fit.
type HarvestResult struct {
	OperationResult
	Harvested []HarvestedLand `json:"harvested,omitempty"`
	Skipped   []int           `json:"skipped,omitempty"`
	TotalExp  int64           `json:"totalExp,omitempty"`
	LevelUp   *LevelUp        `json:"levelUp,omitempty"`
}

// CareResult describes a water/fertilize/treatPests action.
type CareResult struct {
	OperationResult
	LandID         int    `json:"landId,omitempty"`
	Action         string `json:"action,omitempty"`
	ItemConsumed   string `json:"itemConsumed,omitempty"`
	NewHarvestTime int64  `json:"newHarvestTime,omitempty"`
}

// BatchCareResult aggregates a batch care pass.
type BatchCareResult struct {
	OperationResult
	Results []CareResult `json:"results,omitempty"`
}

// StealResult describes a steal attempt against a mature plot.
type StealResult struct {
	OperationResult
	Crop        string `json:"crop,omitempty"`
	Gained      int    `json:"gained,omitempty"`
	OwnerLost   int    `json:"ownerLost,omitempty"`
	Defended    bool   `json:"defended,omitempty"`
}

// UpgradeResult describes a land quality upgrade or expansion.
type UpgradeResult struct {
	OperationResult
	LandID     int     `json:"landId,omitempty"`
	NewQuality Quality `json:"newQuality,omitempty"`
	LandCount  int     `json:"landCount,omitempty"`
	CoinsSpent int64   `json:"coinsSpent,omitempty"`
}

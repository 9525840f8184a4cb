package domain

import "fmt"

// Quality is the categorical land modifier: normal < red < black < gold.
type Quality string

const (
	QualityNormal Quality = "normal"
	QualityRed    Quality = "red"
	QualityBlack  Quality = "black"
	QualityGold   Quality = "gold"
)

// qualityRank orders qualities for upgrade checks.
var qualityRank = map[Quality]int{
	QualityNormal: 0,
	QualityRed:    1,
	QualityBlack:  2,
	QualityGold:   3,
}

// NormalizeQuality maps historical aliases onto the canonical names.
// Old player files used copper/silver for what are now red/black.
func NormalizeQuality(q string) Quality {
	switch Quality(q) {
	case QualityNormal, QualityRed, QualityBlack, QualityGold:
		return Quality(q)
	}
	switch q {
	case "copper":
		return QualityRed
	case "silver":
		return QualityBlack
	}
	return QualityNormal
}

// Rank returns the ordinal of a quality; unknown qualities rank lowest.
func (q Quality) Rank() int {
	return qualityRank[q]
}

// LandStatus is the plot state machine: empty -> growing -> mature -> empty.
type LandStatus string

const (
	LandEmpty   LandStatus = "empty"
	LandGrowing LandStatus = "growing"
	LandMature  LandStatus = "mature"
)

// Land is one plot on a player's farm, identified by its 1-based index.
type Land struct {
	ID      int        `yaml:"id" json:"id"`
	Quality Quality    `yaml:"quality" json:"quality"`
	Status  LandStatus `yaml:"status" json:"status"`

	Crop                string `yaml:"crop,omitempty" json:"crop,omitempty"`
	PlantTime           int64  `yaml:"plantTime,omitempty" json:"plantTime,omitempty"`
	HarvestTime         int64  `yaml:"harvestTime,omitempty" json:"harvestTime,omitempty"`
	OriginalHarvestTime int64  `yaml:"originalHarvestTime,omitempty" json:"originalHarvestTime,omitempty"`

	NeedsWater     bool  `yaml:"needsWater" json:"needsWater"`
	WaterNeededAt  int64 `yaml:"waterNeededAt,omitempty" json:"waterNeededAt,omitempty"`
	HasPests       bool  `yaml:"hasPests" json:"hasPests"`
	PestAppearedAt int64 `yaml:"pestAppearedAt,omitempty" json:"pestAppearedAt,omitempty"`
	Stealable      bool  `yaml:"stealable" json:"stealable"`
	StolenQuantity int   `yaml:"stolenQuantity,omitempty" json:"stolenQuantity,omitempty"`

	WaterDelayApplied bool  `yaml:"waterDelayApplied" json:"waterDelayApplied"`
	WaterDelayMs      int64 `yaml:"waterDelayMs,omitempty" json:"waterDelayMs,omitempty"`
	LastFertilized    int64 `yaml:"lastFertilized,omitempty" json:"lastFertilized,omitempty"`
	LastTreated       int64 `yaml:"lastTreated,omitempty" json:"lastTreated,omitempty"`

	UpgradeLevel    int   `yaml:"upgradeLevel" json:"upgradeLevel"`
	LastUpgradeTime int64 `yaml:"lastUpgradeTime,omitempty" json:"lastUpgradeTime,omitempty"`
}

// Validate checks the plot invariants. now is UTC milliseconds; pass 0
// to skip the time-dependent checks (e.g. when validating loaded files
// whose clocks have moved on).
func (l *Land) Validate(now int64) error {
	switch l.Status {
	case LandEmpty:
		if l.Crop != "" || l.PlantTime != 0 || l.HarvestTime != 0 {
			return fmt.Errorf("%w: empty land %d carries crop state", ErrDomain, l.ID)
		}
	case LandGrowing:
		if l.Crop == "" || l.PlantTime == 0 || l.HarvestTime == 0 {
			return fmt.Errorf("%w: growing land %d missing crop state", ErrDomain, l.ID)
		}
		if l.HarvestTime < l.PlantTime {
			return fmt.Errorf("%w: land %d harvestTime before plantTime", ErrDomain, l.ID)
		}
		if now > 0 && l.PlantTime > now {
			return fmt.Errorf("%w: land %d planted in the future", ErrDomain, l.ID)
		}
	case LandMature:
		if l.Crop == "" || l.HarvestTime == 0 {
			return fmt.Errorf("%w: mature land %d missing crop state", ErrDomain, l.ID)
		}
		if now > 0 && l.HarvestTime > now {
			return fmt.Errorf("%w: land %d mature before harvestTime", ErrDomain, l.ID)
		}
	default:
		return fmt.Errorf("%w: land %d has unknown status %q", ErrDomain, l.ID, l.Status)
	}
	return nil
}

// Clear resets the plot to empty, keeping quality and upgrade history.
func (l *Land) Clear() {
	l.Status = LandEmpty
	l.Crop = ""
	l.PlantTime = 0
	l.HarvestTime = 0
	l.OriginalHarvestTime = 0
	l.NeedsWater = false
	l.WaterNeededAt = 0
	l.HasPests = false
	l.PestAppearedAt = 0
	l.Stealable = false
	l.StolenQuantity = 0
	l.WaterDelayApplied = false
	l.WaterDelayMs = 0
	l.LastFertilized = 0
	l.LastTreated = 0
}

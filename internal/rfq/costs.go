package rfq

// BaseCost is the per-unit baseline for one supply type before any
// supplier-specific pricing.
type BaseCost struct {
	Unit      string  `json:"unit"`
	Cost      float64 `json:"cost"`
	WeightLbs float64 `json:"weight_lbs"`
}

// BaseCosts is the baseline unit-cost table keyed by supply type.
var BaseCosts = map[string]BaseCost{
	"water":             {Unit: "gallon", Cost: 1.50, WeightLbs: 8.34},
	"non_perishable":    {Unit: "meal", Cost: 4.50, WeightLbs: 1.5},
	"fresh_produce":     {Unit: "lb", Cost: 2.80, WeightLbs: 1.0},
	"canned_goods":      {Unit: "can", Cost: 2.00, WeightLbs: 1.0},
	"baby_formula":      {Unit: "can", Cost: 18.00, WeightLbs: 1.5},
	"medical_nutrition": {Unit: "unit", Cost: 12.00, WeightLbs: 1.0},
	"shelf_stable":      {Unit: "unit", Cost: 3.50, WeightLbs: 1.2},
	"grains_cereals":    {Unit: "lb", Cost: 1.80, WeightLbs: 1.0},
	"protein":           {Unit: "lb", Cost: 5.50, WeightLbs: 1.0},
	"dairy":             {Unit: "unit", Cost: 4.00, WeightLbs: 2.0},
	"hygiene_supplies":  {Unit: "kit", Cost: 8.00, WeightLbs: 3.0},
}

// coldChainTypes require refrigerated transport end to end.
var coldChainTypes = map[string]struct{}{
	"fresh_produce": {},
	"dairy":         {},
	"protein":       {},
}

// truckSpec describes one vehicle class used for transport costing.
type truckSpec struct {
	Name        string
	CapacityLbs float64
	PerMile     float64
	DailyRate   float64
}

var (
	truckReefer = truckSpec{Name: "refrigerated", CapacityLbs: 40000, PerMile: 3.25, DailyRate: 600}
	truckDryVan = truckSpec{Name: "dry_van", CapacityLbs: 42000, PerMile: 2.50, DailyRate: 500}
	truckLTL    = truckSpec{Name: "ltl", CapacityLbs: 10000, PerMile: 1.85, DailyRate: 350}
)

// dryVanWeightThresholdLbs is the load above which a full dry van beats LTL.
const dryVanWeightThresholdLbs = 10000

// selectTruck picks the vehicle class for a shipment: refrigerated when any
// item needs cold chain, a full dry van above the weight threshold, LTL
// otherwise.
func selectTruck(items []LineItem, totalWeight float64) truckSpec {
	for _, li := range items {
		if _, ok := coldChainTypes[li.SupplyType]; ok {
			return truckReefer
		}
	}
	if totalWeight > dryVanWeightThresholdLbs {
		return truckDryVan
	}
	return truckLTL
}

package predict

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

const (
	mealsPerLb      = 1.2
	co2LbsPerFoodLb = 3.8
	expiryWindow    = 30 * 24 * time.Hour
	// lbsPerCapacityUnit converts at-risk inventory quantities to pounds
	// for the potential-waste projection.
	lbsPerCapacityUnit = 2
)

// ExpiringCapacity is an available inventory record within the expiry
// window.
type ExpiringCapacity struct {
	Capacity     *model.EmergencyCapacity `json:"capacity"`
	DaysToExpiry int                      `json:"days_to_expiry"`
	EstimatedLbs float64                  `json:"estimated_lbs"`
}

// WasteStats summarizes the waste reduction ledger plus inventory at risk
// of expiring.
type WasteStats struct {
	TotalRecords        int                `json:"total_records"`
	TotalLbsRescued     float64            `json:"total_lbs_rescued"`
	MealsProvided       int                `json:"meals_provided"`
	CO2AvoidedLbs       float64            `json:"co2_avoided_lbs"`
	TotalValueRescued   float64            `json:"total_value_rescued"`
	ExpiringSoon        []ExpiringCapacity `json:"expiring_soon"`
	PotentialWasteLbs   float64            `json:"potential_waste_lbs"`
	WasteReductionScore int                `json:"waste_reduction_score"`
}

// WasteStats aggregates rescued-food totals and flags available capacity
// expiring within 30 days.
func (m *Model) WasteStats(ctx context.Context) (*WasteStats, error) {
	records, err := m.store.ListWasteReductions(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "predict: list waste reductions")
	}
	capacities, err := m.store.ListCapacity(ctx, store.CapacityFilter{Status: model.CapacityAvailable})
	if err != nil {
		return nil, eris.Wrap(err, "predict: list capacity")
	}

	var totalLbs, totalValue float64
	for _, r := range records {
		totalLbs += float64(r.QuantityRescued)
		totalValue += r.EstimatedValue
	}

	now := m.now()
	cutoff := now.Add(expiryWindow)
	var expiring []ExpiringCapacity
	var potentialLbs float64
	for i := range capacities {
		c := &capacities[i]
		if c.ExpiryDate == nil || c.ExpiryDate.After(cutoff) {
			continue
		}
		days := int(math.Ceil(c.ExpiryDate.Sub(now).Hours() / 24))
		if days < 0 {
			days = 0
		}
		lbs := float64(c.Quantity * lbsPerCapacityUnit)
		potentialLbs += lbs
		expiring = append(expiring, ExpiringCapacity{
			Capacity:     c,
			DaysToExpiry: days,
			EstimatedLbs: lbs,
		})
	}
	sort.SliceStable(expiring, func(i, j int) bool {
		return expiring[i].DaysToExpiry < expiring[j].DaysToExpiry
	})

	score := 0
	if len(records) > 0 {
		score = int(math.Min(100, float64(int(totalLbs/100)+len(records)*5)))
	}

	return &WasteStats{
		TotalRecords:        len(records),
		TotalLbsRescued:     totalLbs,
		MealsProvided:       int(totalLbs * mealsPerLb),
		CO2AvoidedLbs:       round1(totalLbs * co2LbsPerFoodLb),
		TotalValueRescued:   round1(totalValue),
		ExpiringSoon:        expiring,
		PotentialWasteLbs:   potentialLbs,
		WasteReductionScore: score,
	}, nil
}

// Package predict implements the food-insecurity risk model: per-ZIP
// composite risk with time-horizon probabilities, surplus-to-shortage
// matching, and waste reduction statistics. Probability noise is seeded
// from the ZIP and the current date, so results are stable within a day.
package predict

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/internal/geo"
	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

// Climate exposure by state. Contributions stack and cap at 100.
var (
	hurricaneStates = stateSet("FL", "TX", "LA", "MS", "AL", "GA", "SC", "NC")
	tornadoStates   = stateSet("OK", "KS", "TX", "AR", "MO", "TN", "AL", "MS", "IN", "IL")
	floodStates     = stateSet("LA", "MS", "TX", "AR", "MO", "TN", "KY", "WV")
	droughtStates   = stateSet("CA", "AZ", "NM", "TX", "OK", "NV")
	winterStates    = stateSet("MN", "WI", "MI", "OH", "PA", "NY", "MA", "IL", "IN", "IA", "NE")
)

// nearbyOrgRadiusMiles bounds the food-desert organization count.
const nearbyOrgRadiusMiles = 100

// SupplyEstimate is one projected supply requirement for an at-risk area.
type SupplyEstimate struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
}

// Prediction is the risk assessment for one monitored ZIP.
type Prediction struct {
	ZipCode                    string           `json:"zip_code"`
	City                       string           `json:"city"`
	State                      string           `json:"state"`
	Lat                        float64          `json:"lat"`
	Lng                        float64          `json:"lng"`
	Population                 int              `json:"population"`
	FoodInsecurityRate         float64          `json:"food_insecurity_rate"`
	SNAPParticipationRate      float64          `json:"snap_participation_rate"`
	NeedScore                  float64          `json:"need_score"`
	CompositeRisk              float64          `json:"composite_risk"`
	Severity                   string           `json:"severity"`
	ClimateRisk                float64          `json:"climate_risk"`
	SocioeconomicVulnerability float64          `json:"socioeconomic_vulnerability"`
	FoodDesertScore            float64          `json:"food_desert_score"`
	DisasterTypes              []string         `json:"disaster_types"`
	Probability30Days          float64          `json:"probability_30_days"`
	Probability60Days          float64          `json:"probability_60_days"`
	Probability90Days          float64          `json:"probability_90_days"`
	NeededSupplies             []SupplyEstimate `json:"needed_supplies"`
	NearbyOrganizations        int              `json:"nearby_organizations"`
	CoverageStatus             string           `json:"coverage_status"`
}

// Model runs the risk predictions.
type Model struct {
	store store.Store
	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// New creates a Model.
func New(st store.Store) *Model {
	return &Model{store: st, now: time.Now}
}

// Predict scores every monitored ZIP and returns predictions sorted by
// composite risk descending.
func (m *Model) Predict(ctx context.Context) ([]Prediction, error) {
	zips, err := m.store.ListZipNeedScores(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "predict: list zip scores")
	}
	orgs, err := m.store.ListOrganizations(ctx, store.OrganizationFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "predict: list organizations")
	}
	capacities, err := m.store.ListCapacity(ctx, store.CapacityFilter{Status: model.CapacityAvailable})
	if err != nil {
		return nil, eris.Wrap(err, "predict: list capacity")
	}
	sols, err := m.store.ListSolicitations(ctx, store.SolicitationFilter{Status: model.SolicitationOpen})
	if err != nil {
		return nil, eris.Wrap(err, "predict: list solicitations")
	}

	solZips := make(map[string]struct{}, len(sols))
	for _, s := range sols {
		solZips[s.ZipCode] = struct{}{}
	}
	capZips := make(map[string]struct{}, len(capacities))
	for _, c := range capacities {
		capZips[c.ZipCode] = struct{}{}
	}

	today := m.now()
	predictions := make([]Prediction, 0, len(zips))
	for _, z := range zips {
		nearby := 0
		for _, o := range orgs {
			if geo.Distance(z.Lat, z.Lng, o.Lat, o.Lng) <= nearbyOrgRadiusMiles {
				nearby++
			}
		}

		climate := climateRisk(z.State)
		socio := socioeconomicVulnerability(&z)
		desert := foodDesertScore(nearby)
		composite := math.Min(100, socio*0.35+climate*0.25+desert*0.25+z.NeedScore*0.15)

		rng := dailyRand(z.ZipCode, today)
		prob30 := bound(composite*0.85+uniform(rng, -5, 5), 5, 99)
		prob60 := bound(composite*0.95+uniform(rng, -8, 8), 10, 99)
		prob90 := bound(composite*1.05+uniform(rng, -10, 10), 15, 99)

		disasters := disasterTypes(z.State)

		coverage := "gap"
		_, hasSol := solZips[z.ZipCode]
		_, hasCap := capZips[z.ZipCode]
		if hasSol || hasCap {
			coverage = "covered"
		}

		predictions = append(predictions, Prediction{
			ZipCode:                    z.ZipCode,
			City:                       z.City,
			State:                      z.State,
			Lat:                        z.Lat,
			Lng:                        z.Lng,
			Population:                 z.Population,
			FoodInsecurityRate:         round1(z.FoodInsecurityRate * 100),
			SNAPParticipationRate:      round1(z.SNAPParticipationRate * 100),
			NeedScore:                  z.NeedScore,
			CompositeRisk:              round1(composite),
			Severity:                   severity(composite),
			ClimateRisk:                round1(climate),
			SocioeconomicVulnerability: round1(socio),
			FoodDesertScore:            round1(desert),
			DisasterTypes:              disasters,
			Probability30Days:          round1(prob30),
			Probability60Days:          round1(prob60),
			Probability90Days:          round1(prob90),
			NeededSupplies:             estimateSupplies(&z, disasters),
			NearbyOrganizations:        nearby,
			CoverageStatus:             coverage,
		})
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].CompositeRisk > predictions[j].CompositeRisk
	})

	zap.L().Info("predict: model run complete",
		zap.Int("zips", len(predictions)),
	)
	return predictions, nil
}

func climateRisk(state string) float64 {
	score := 0.0
	if _, ok := hurricaneStates[state]; ok {
		score += 30
	}
	if _, ok := tornadoStates[state]; ok {
		score += 20
	}
	if _, ok := floodStates[state]; ok {
		score += 25
	}
	if _, ok := droughtStates[state]; ok {
		score += 15
	}
	if _, ok := winterStates[state]; ok {
		score += 10
	}
	return math.Min(100, score)
}

func socioeconomicVulnerability(z *model.ZipNeedScore) float64 {
	score := z.FoodInsecurityRate*200 + z.SNAPParticipationRate*150 + z.NeedScore*0.3
	return math.Min(100, score)
}

func foodDesertScore(nearbyOrgs int) float64 {
	switch {
	case nearbyOrgs == 0:
		return 100
	case nearbyOrgs == 1:
		return 75
	case nearbyOrgs <= 3:
		return 50
	default:
		return math.Max(0, 30-float64(nearbyOrgs)*3)
	}
}

func disasterTypes(state string) []string {
	var types []string
	if _, ok := hurricaneStates[state]; ok {
		types = append(types, "Hurricane")
	}
	if _, ok := tornadoStates[state]; ok {
		types = append(types, "Tornado")
	}
	if _, ok := floodStates[state]; ok {
		types = append(types, "Flood")
	}
	if _, ok := droughtStates[state]; ok {
		types = append(types, "Drought")
	}
	if _, ok := winterStates[state]; ok {
		types = append(types, "Winter Storm")
	}
	if len(types) == 0 {
		types = append(types, "General Emergency")
	}
	return types
}

func severity(composite float64) string {
	switch {
	case composite >= 80:
		return "critical"
	case composite >= 65:
		return "high"
	case composite >= 50:
		return "elevated"
	default:
		return "moderate"
	}
}

// estimateSupplies projects supply needs assuming 20% of the population is
// affected, with disaster-specific additions.
func estimateSupplies(z *model.ZipNeedScore, disasters []string) []SupplyEstimate {
	pop := z.Population
	if pop == 0 {
		pop = 10000
	}
	affected := int(float64(pop) * 0.2)

	supplies := []SupplyEstimate{
		{Type: "water", Name: "Drinking Water", Quantity: affected * 3, Unit: "gallons"},
		{Type: "non_perishable", Name: "MREs / Shelf-Stable Meals", Quantity: affected * 9, Unit: "meals"},
	}

	if contains(disasters, "Hurricane") || contains(disasters, "Flood") {
		supplies = append(supplies,
			SupplyEstimate{Type: "shelf_stable", Name: "Canned Goods", Quantity: affected * 5, Unit: "cans"},
			SupplyEstimate{Type: "hygiene_supplies", Name: "Emergency Hygiene Kits", Quantity: affected / 2, Unit: "kits"},
		)
	}
	if contains(disasters, "Winter Storm") {
		supplies = append(supplies,
			SupplyEstimate{Type: "shelf_stable", Name: "Hot Meal Kits", Quantity: affected * 3, Unit: "kits"},
		)
	}

	supplies = append(supplies,
		SupplyEstimate{Type: "baby_formula", Name: "Infant Formula",
			Quantity: maxInt(10, int(float64(affected)*0.03*7)), Unit: "cans"},
		SupplyEstimate{Type: "medical_nutrition", Name: "Medical Nutrition Supplements",
			Quantity: maxInt(20, int(float64(affected)*0.05*7)), Unit: "units"},
	)
	return supplies
}

// dailyRand builds the per-ZIP generator for probability noise. The seed
// combines an FNV hash of the ZIP with the day number, so output is stable
// within a calendar day and changes across days.
func dailyRand(zipCode string, today time.Time) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(zipCode)) //nolint:errcheck
	days := today.Unix() / 86400
	return rand.New(rand.NewSource(int64(h.Sum64()) + days))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func bound(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func stateSet(states ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(states))
	for _, s := range states {
		set[s] = struct{}{}
	}
	return set
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package portal

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/internal/geo"
	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

// Fallback destination used when the ZIP lookup table is completely empty:
// the geographic center of the contiguous US with an average need score.
const (
	defaultDestLat  = 39.8283
	defaultDestLng  = -98.5795
	defaultDestNeed = model.DefaultNeedScore
)

// TriMatchRequest asks for supplier+distributor combos serving a destination.
type TriMatchRequest struct {
	DestinationZip string   `json:"destination_zip"`
	Categories     []string `json:"categories"`
	SupplyTypes    []string `json:"supply_types,omitempty"`
}

// Destination describes the resolved delivery point of a tri-match run.
type Destination struct {
	ZipCode   string  `json:"zip_code"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	NeedScore float64 `json:"need_score"`
	Fallback  bool    `json:"fallback,omitempty"`
}

// Combo is one supplier+distributor pairing scored against the destination.
type Combo struct {
	Supplier                       *model.Organization `json:"supplier"`
	Distributor                    *model.Organization `json:"distributor"`
	ComboScore                     float64             `json:"combo_score"`
	SupplierCapabilityMatch        float64             `json:"supplier_capability_match"`
	DistributorCapabilityMatch     float64             `json:"distributor_capability_match"`
	SupplierDistance               float64             `json:"supplier_distance"`
	DistributorDistance            float64             `json:"distributor_distance"`
	SupplierToDistributorDistance  float64             `json:"supplier_to_distributor_distance"`
	CapacityBonus                  float64             `json:"capacity_bonus"`
	EstimatedTransportCost         float64             `json:"estimated_transport_cost"`
	PastPerformanceScore           float64             `json:"past_performance_score"`
	CombinedCertifications         []string            `json:"combined_certifications"`
}

// TriMatchResult is the federal portal tri-match response.
type TriMatchResult struct {
	Destination          Destination `json:"destination"`
	Categories           []string    `json:"categories"`
	Matches              []Combo     `json:"matches"`
	TotalCombosEvaluated int         `json:"total_combos_evaluated"`
}

// TriMatch enumerates the full supplier x distributor cross product against
// a destination ZIP. No radius or overlap gating: every pairing is scored
// and only the ranking cuts the list. An unknown destination ZIP resolves
// through the fallback chain instead of failing.
func (p *Portal) TriMatch(ctx context.Context, req TriMatchRequest) (*TriMatchResult, error) {
	if strings.TrimSpace(req.DestinationZip) == "" {
		return nil, eris.Wrap(model.ErrInvalidInput, "destination_zip required")
	}

	dest, err := p.resolveDestination(ctx, req.DestinationZip)
	if err != nil {
		return nil, err
	}

	suppliers, err := p.store.ListOrganizations(ctx, store.OrganizationFilter{OrgType: model.OrgSupplier})
	if err != nil {
		return nil, eris.Wrap(err, "trimatch: list suppliers")
	}
	distributors, err := p.store.ListOrganizations(ctx, store.OrganizationFilter{OrgType: model.OrgDistributor})
	if err != nil {
		return nil, eris.Wrap(err, "trimatch: list distributors")
	}

	combos := make([]Combo, 0, len(suppliers)*len(distributors))
	for i := range suppliers {
		s := &suppliers[i]
		sDist := geo.Distance(dest.Lat, dest.Lng, s.Lat, s.Lng)
		sCap, _ := geo.Overlap(req.Categories, s.Capabilities)
		bonus := p.capacityBonus(ctx, s.ID, req.SupplyTypes)

		for j := range distributors {
			d := &distributors[j]
			dDist := geo.Distance(dest.Lat, dest.Lng, d.Lat, d.Lng)
			dToS := geo.Distance(d.Lat, d.Lng, s.Lat, s.Lng)
			dCap, _ := geo.Overlap(req.Categories, d.Capabilities)

			score := sCap*0.25 + dCap*0.15 +
				geo.Proximity(sDist, p.cfg.ProximityNormMiles)*0.2 +
				geo.Proximity(dDist, p.cfg.ProximityNormMiles)*0.2 +
				dest.NeedScore*0.2 +
				bonus

			combos = append(combos, Combo{
				Supplier:                      s,
				Distributor:                   d,
				ComboScore:                    round1(clamp(score)),
				SupplierCapabilityMatch:       sCap,
				DistributorCapabilityMatch:    dCap,
				SupplierDistance:              round1(sDist),
				DistributorDistance:           round1(dDist),
				SupplierToDistributorDistance: round1(dToS),
				CapacityBonus:                 bonus,
				EstimatedTransportCost:        round2(dDist*2.0 + dToS*1.5),
				PastPerformanceScore:          pastPerformanceScore(s, d),
				CombinedCertifications:        combineCertifications(s, d),
			})
		}
	}

	total := len(combos)
	sort.SliceStable(combos, func(i, j int) bool {
		return combos[i].ComboScore > combos[j].ComboScore
	})
	limit := p.cfg.ComboLimit
	if limit <= 0 {
		limit = 25
	}
	if len(combos) > limit {
		combos = combos[:limit]
	}

	zap.L().Info("trimatch: evaluated combos",
		zap.String("destination_zip", req.DestinationZip),
		zap.Int("total", total),
		zap.Int("returned", len(combos)),
	)

	return &TriMatchResult{
		Destination:          dest,
		Categories:           req.Categories,
		Matches:              combos,
		TotalCombosEvaluated: total,
	}, nil
}

// resolveDestination resolves a destination ZIP to coordinates and need.
// Chain: exact ZIP row, then the first row of the lookup table, then fixed
// default coordinates when the table is empty.
func (p *Portal) resolveDestination(ctx context.Context, zipCode string) (Destination, error) {
	z, err := p.store.GetZipNeedScore(ctx, zipCode)
	if err == nil {
		return Destination{
			ZipCode:   zipCode,
			City:      z.City,
			State:     z.State,
			Lat:       z.Lat,
			Lng:       z.Lng,
			NeedScore: z.NeedScore,
		}, nil
	}
	if !eris.Is(err, model.ErrNotFound) {
		return Destination{}, eris.Wrapf(err, "trimatch: resolve zip %s", zipCode)
	}

	all, err := p.store.ListZipNeedScores(ctx)
	if err != nil {
		return Destination{}, eris.Wrap(err, "trimatch: list zip scores")
	}
	if len(all) > 0 {
		first := all[0]
		zap.L().Warn("trimatch: unknown destination zip, using first known zip",
			zap.String("requested", zipCode), zap.String("resolved", first.ZipCode))
		return Destination{
			ZipCode:   zipCode,
			City:      first.City,
			State:     first.State,
			Lat:       first.Lat,
			Lng:       first.Lng,
			NeedScore: first.NeedScore,
			Fallback:  true,
		}, nil
	}

	zap.L().Warn("trimatch: zip lookup table empty, using default coordinates",
		zap.String("requested", zipCode))
	return Destination{
		ZipCode:   zipCode,
		Lat:       defaultDestLat,
		Lng:       defaultDestLng,
		NeedScore: defaultDestNeed,
		Fallback:  true,
	}, nil
}

// capacityBonus rewards suppliers with pre-registered available stock
// matching the requested supply types: 2 points per matching item, capped
// at 10.
func (p *Portal) capacityBonus(ctx context.Context, supplierID int64, supplyTypes []string) float64 {
	if len(supplyTypes) == 0 {
		return 0
	}
	caps, err := p.store.ListCapacity(ctx, store.CapacityFilter{
		OrgID:  supplierID,
		Status: model.CapacityAvailable,
	})
	if err != nil {
		zap.L().Warn("trimatch: capacity lookup failed",
			zap.Int64("supplier_id", supplierID), zap.Error(err))
		return 0
	}

	wanted := make(map[string]struct{}, len(supplyTypes))
	for _, st := range supplyTypes {
		wanted[strings.ToLower(strings.TrimSpace(st))] = struct{}{}
	}
	count := 0
	for _, c := range caps {
		if _, ok := wanted[strings.ToLower(c.SupplyType)]; ok {
			count++
		}
	}
	bonus := float64(2 * count)
	if bonus > 10 {
		bonus = 10
	}
	return bonus
}

func pastPerformanceScore(s, d *model.Organization) float64 {
	score := float64(len(s.PastPerformance)*25 + len(d.PastPerformance)*25)
	if score > 100 {
		score = 100
	}
	return score
}

func combineCertifications(s, d *model.Organization) []string {
	set := make(map[string]struct{})
	for _, c := range s.Certifications {
		set[c] = struct{}{}
	}
	for _, c := range d.Certifications {
		set[c] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package predict

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/internal/geo"
	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

const (
	// shortageNeedThreshold flags a ZIP as a shortage area.
	shortageNeedThreshold = 65
	shortageOrgRadius     = 150
	shortageMaxNearbyOrgs = 2

	// Surplus sources must either hold available inventory or serve a
	// wide region.
	surplusWideRadius = 300

	// Candidates must be reachable but not already local.
	surplusReachFactor   = 1.5
	surplusMinDist       = 50
	surplusSourceLimit   = 5
	surplusInventoryPlus = 20
)

// SurplusSource is one organization able to redirect surplus into a
// shortage area.
type SurplusSource struct {
	Organization  *model.Organization `json:"organization"`
	DistanceMiles float64             `json:"distance_miles"`
	MatchScore    float64             `json:"match_score"`
	AvailableQty  int                 `json:"available_qty"`
	SupplyTypes   []string            `json:"supply_types"`
}

// ShortageMatch pairs a shortage ZIP with its ranked surplus sources.
type ShortageMatch struct {
	ZipCode    string          `json:"zip_code"`
	City       string          `json:"city"`
	State      string          `json:"state"`
	NeedScore  float64         `json:"need_score"`
	NearbyOrgs int             `json:"nearby_organizations"`
	Sources    []SurplusSource `json:"sources"`
}

// SurplusMatches identifies shortage ZIPs and ranks organizations that
// could route surplus to them. Results are sorted by shortage need
// descending.
func (m *Model) SurplusMatches(ctx context.Context) ([]ShortageMatch, error) {
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

	// Available inventory and supply types per organization.
	qtyByOrg := make(map[int64]int)
	typesByOrg := make(map[int64]map[string]struct{})
	for _, c := range capacities {
		qtyByOrg[c.OrganizationID] += c.Quantity
		if typesByOrg[c.OrganizationID] == nil {
			typesByOrg[c.OrganizationID] = make(map[string]struct{})
		}
		typesByOrg[c.OrganizationID][c.SupplyType] = struct{}{}
	}

	var matches []ShortageMatch
	for _, z := range zips {
		if z.NeedScore < shortageNeedThreshold {
			continue
		}
		nearby := 0
		for _, o := range orgs {
			if geo.Distance(z.Lat, z.Lng, o.Lat, o.Lng) <= shortageOrgRadius {
				nearby++
			}
		}
		if nearby > shortageMaxNearbyOrgs {
			continue
		}

		var sources []SurplusSource
		for i := range orgs {
			o := &orgs[i]
			qty := qtyByOrg[o.ID]
			if qty <= 0 && o.ServiceRadiusMiles < surplusWideRadius {
				continue
			}
			dist := geo.Distance(z.Lat, z.Lng, o.Lat, o.Lng)
			if dist > o.ServiceRadiusMiles*surplusReachFactor || dist <= surplusMinDist {
				continue
			}
			score := math.Max(0, 100-(dist/o.ServiceRadiusMiles)*50)
			if qty > 0 {
				score += surplusInventoryPlus
			}
			sources = append(sources, SurplusSource{
				Organization:  o,
				DistanceMiles: round1(dist),
				MatchScore:    round1(score),
				AvailableQty:  qty,
				SupplyTypes:   sortedKeys(typesByOrg[o.ID]),
			})
		}
		sort.SliceStable(sources, func(i, j int) bool {
			return sources[i].MatchScore > sources[j].MatchScore
		})
		if len(sources) > surplusSourceLimit {
			sources = sources[:surplusSourceLimit]
		}

		matches = append(matches, ShortageMatch{
			ZipCode:    z.ZipCode,
			City:       z.City,
			State:      z.State,
			NeedScore:  z.NeedScore,
			NearbyOrgs: nearby,
			Sources:    sources,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].NeedScore > matches[j].NeedScore
	})

	zap.L().Debug("predict: surplus matching complete",
		zap.Int("shortage_zips", len(matches)),
	)
	return matches, nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

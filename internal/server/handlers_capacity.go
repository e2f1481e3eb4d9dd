package server

import (
	"math"
	"net/http"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/foodmatch/matchd/internal/auth"
	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

const defaultServiceRadiusMiles = 200

func (s *Server) handleListCapacity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.CapacityFilter{
		Status:     model.CapacityAvailable,
		SupplyType: q.Get("supply_type"),
		ZipCode:    q.Get("zip_code"),
		State:      q.Get("state"),
		Search:     q.Get("search"),
	}
	items, err := s.store.ListCapacity(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleRegisterCapacity lets a supplier pre-register stock. Coordinates
// come from the ZIP table when known, else from the request body.
func (s *Server) handleRegisterCapacity(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, eris.Wrap(model.ErrUnauthorized, "login required"))
		return
	}
	var item model.EmergencyCapacity
	if err := decodeBody(r, &item); err != nil {
		writeError(w, err)
		return
	}
	if err := item.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.store.GetOrganization(r.Context(), item.OrganizationID); err != nil {
		writeError(w, err)
		return
	}
	if z, err := s.store.GetZipNeedScore(r.Context(), item.ZipCode); err == nil {
		item.Lat, item.Lng = z.Lat, z.Lng
	}
	item.UserID = user.ID
	if item.ServiceRadiusMiles == 0 {
		item.ServiceRadiusMiles = defaultServiceRadiusMiles
	}

	created, err := s.store.CreateCapacity(r.Context(), &item)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteCapacity(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, eris.Wrap(model.ErrUnauthorized, "login required"))
		return
	}
	item, err := s.store.GetCapacity(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !user.CanMutate(item.UserID) {
		writeError(w, eris.Wrap(model.ErrUnauthorized, "not the owner"))
		return
	}
	if err := s.store.DeleteCapacity(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "capacity removed"})
}

type regionCapacityItem struct {
	SupplyType string `json:"supply_type"`
	ItemName   string `json:"item_name"`
	Quantity   int    `json:"quantity"`
	Unit       string `json:"unit"`
	OrgName    string `json:"org_name"`
}

type regionOrg struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Capabilities []string `json:"capabilities"`
}

type crisisRegion struct {
	State           string               `json:"state"`
	TotalPopulation int                  `json:"total_population"`
	AvgNeedScore    float64              `json:"avg_need_score"`
	CriticalZips    int                  `json:"critical_zips"`
	CapacityItems   []regionCapacityItem `json:"capacity_items"`
	Organizations   []regionOrg          `json:"organizations"`
	Cities          []string             `json:"cities"`

	needScores []float64
	citySet    map[string]struct{}
}

type crisisSummary struct {
	TotalCapacityRegistrations int            `json:"total_capacity_registrations"`
	TotalQuantity              int            `json:"total_quantity"`
	BySupplyType               map[string]int `json:"by_supply_type"`
	TotalOrganizations         int            `json:"total_organizations"`
	CriticalRegions            int            `json:"critical_regions"`
}

// handleCrisisDashboard aggregates available capacity, organizations, and
// need by state for the crisis activation view.
func (s *Server) handleCrisisDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	zips, err := s.store.ListZipNeedScores(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	capacities, err := s.store.ListCapacity(ctx, store.CapacityFilter{Status: model.CapacityAvailable})
	if err != nil {
		writeError(w, err)
		return
	}
	orgs, err := s.store.ListOrganizations(ctx, store.OrganizationFilter{})
	if err != nil {
		writeError(w, err)
		return
	}

	zipToState := make(map[string]string, len(zips))
	regions := make(map[string]*crisisRegion)
	for _, z := range zips {
		st := z.State
		if st == "" {
			st = "Unknown"
		}
		zipToState[z.ZipCode] = st
		reg := regions[st]
		if reg == nil {
			reg = &crisisRegion{State: st, citySet: make(map[string]struct{})}
			regions[st] = reg
		}
		reg.TotalPopulation += z.Population
		reg.needScores = append(reg.needScores, z.NeedScore)
		reg.citySet[z.City] = struct{}{}
		if z.NeedScore >= 75 {
			reg.CriticalZips++
		}
	}

	orgNames := make(map[int64]string, len(orgs))
	for _, o := range orgs {
		orgNames[o.ID] = o.Name
	}

	byType := make(map[string]int)
	totalQty := 0
	for _, c := range capacities {
		totalQty += c.Quantity
		byType[c.SupplyType] += c.Quantity
		st, ok := zipToState[c.ZipCode]
		if !ok {
			continue
		}
		name := orgNames[c.OrganizationID]
		if name == "" {
			name = "Unknown"
		}
		regions[st].CapacityItems = append(regions[st].CapacityItems, regionCapacityItem{
			SupplyType: c.SupplyType,
			ItemName:   c.ItemName,
			Quantity:   c.Quantity,
			Unit:       c.Unit,
			OrgName:    name,
		})
	}

	for _, o := range orgs {
		st, ok := zipToState[o.ZipCode]
		if !ok {
			continue
		}
		regions[st].Organizations = append(regions[st].Organizations, regionOrg{
			Name:         o.Name,
			Type:         string(o.OrgType),
			Capabilities: o.Capabilities,
		})
	}

	result := make([]*crisisRegion, 0, len(regions))
	criticalRegions := 0
	for _, reg := range regions {
		var sum float64
		for _, v := range reg.needScores {
			sum += v
		}
		if len(reg.needScores) > 0 {
			reg.AvgNeedScore = round1(sum / float64(len(reg.needScores)))
		}
		if reg.AvgNeedScore >= 70 {
			criticalRegions++
		}
		reg.Cities = sortedStrings(reg.citySet)
		if len(reg.Cities) > 5 {
			reg.Cities = reg.Cities[:5]
		}
		result = append(result, reg)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AvgNeedScore > result[j].AvgNeedScore
	})

	writeJSON(w, http.StatusOK, struct {
		Regions []*crisisRegion `json:"regions"`
		Summary crisisSummary   `json:"summary"`
	}{
		Regions: result,
		Summary: crisisSummary{
			TotalCapacityRegistrations: len(capacities),
			TotalQuantity:              totalQty,
			BySupplyType:               byType,
			TotalOrganizations:         len(orgs),
			CriticalRegions:            criticalRegions,
		},
	})
}

func (s *Server) handleSupplyTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.SupplyTypes)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

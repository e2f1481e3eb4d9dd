// Package portal builds the ephemeral two-sided and three-sided match views
// served to suppliers, distributors, and federal buyers. Nothing here is
// persisted; every call re-scores against the live organization pool.
package portal

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/internal/config"
	"github.com/foodmatch/matchd/internal/geo"
	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

// Portal serves role-specific match views.
type Portal struct {
	store store.Store
	cfg   config.PortalConfig
}

// New creates a Portal.
func New(st store.Store, cfg config.PortalConfig) *Portal {
	return &Portal{store: st, cfg: cfg}
}

// DistributorPartner is a distributor candidate attached to a supplier's
// solicitation match.
type DistributorPartner struct {
	Distributor             *model.Organization `json:"distributor"`
	DistanceToSolicitation  float64             `json:"distance_to_solicitation"`
	DistanceToSupplier      float64             `json:"distance_to_supplier"`
	CapabilityMatch         float64             `json:"capability_match"`
	OverlappingCapabilities []string            `json:"overlapping_capabilities"`
}

// SupplierPartner is a supplier candidate attached to a distributor's
// solicitation match, annotated with pre-registered stock.
type SupplierPartner struct {
	Supplier                *model.Organization `json:"supplier"`
	DistanceToDistributor   float64             `json:"distance_to_distributor"`
	CapabilityMatch         float64             `json:"capability_match"`
	OverlappingCapabilities []string            `json:"overlapping_capabilities"`
	PreRegisteredCapacity   int                 `json:"pre_registered_capacity"`
}

// SolicitationMatch is one scored open solicitation in a portal view.
type SolicitationMatch struct {
	Solicitation            *model.Solicitation  `json:"solicitation"`
	MatchScore              float64              `json:"match_score"`
	CapabilityMatch         float64              `json:"capability_match"`
	OverlappingCapabilities []string             `json:"overlapping_capabilities"`
	DistanceMiles           float64              `json:"distance_miles"`
	NeedScore               float64              `json:"need_score"`
	DistributorPartners     []DistributorPartner `json:"distributor_partners,omitempty"`
	SupplierPartners        []SupplierPartner    `json:"supplier_partners,omitempty"`
}

// SupplierView is the supplier portal response.
type SupplierView struct {
	Supplier             *model.Organization `json:"supplier"`
	MatchedSolicitations []SolicitationMatch `json:"matched_solicitations"`
	TotalMatches         int                 `json:"total_matches"`
}

// DistributorView is the distributor portal response.
type DistributorView struct {
	Distributor          *model.Organization `json:"distributor"`
	MatchedSolicitations []SolicitationMatch `json:"matched_solicitations"`
	TotalMatches         int                 `json:"total_matches"`
}

// SupplierMatches scores all open solicitations for a supplier and attaches
// distributor partners that could bridge goods to each destination.
func (p *Portal) SupplierMatches(ctx context.Context, orgID int64) (*SupplierView, error) {
	supplier, err := p.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, eris.Wrapf(err, "portal: load supplier %d", orgID)
	}
	if supplier.OrgType != model.OrgSupplier {
		return nil, eris.Wrapf(model.ErrInvalidInput, "organization %d is not a supplier", orgID)
	}

	sols, distributors, err := p.loadPool(ctx, model.OrgDistributor)
	if err != nil {
		return nil, err
	}

	matches := make([]SolicitationMatch, 0, len(sols))
	for i := range sols {
		sol := &sols[i]
		m := p.scoreSolicitation(ctx, sol, supplier)

		partners := make([]DistributorPartner, 0, len(distributors))
		for j := range distributors {
			d := &distributors[j]
			dCap, dOverlap := geo.Overlap(sol.Categories, d.Capabilities)
			partners = append(partners, DistributorPartner{
				Distributor:             d,
				DistanceToSolicitation:  round1(geo.Distance(d.Lat, d.Lng, sol.Lat, sol.Lng)),
				DistanceToSupplier:      round1(geo.Distance(d.Lat, d.Lng, supplier.Lat, supplier.Lng)),
				CapabilityMatch:         dCap,
				OverlappingCapabilities: dOverlap,
			})
		}
		sort.SliceStable(partners, func(a, b int) bool {
			return partners[a].CapabilityMatch > partners[b].CapabilityMatch
		})
		m.DistributorPartners = capPartners(partners, p.partnerLimit())

		matches = append(matches, m)
	}

	sortMatches(matches)
	zap.L().Debug("portal: supplier view built",
		zap.Int64("org_id", orgID), zap.Int("matches", len(matches)))

	return &SupplierView{
		Supplier:             supplier,
		MatchedSolicitations: matches,
		TotalMatches:         len(matches),
	}, nil
}

// DistributorMatches scores all open solicitations for a distributor and
// attaches supplier partners, each annotated with its count of available
// pre-registered capacity items.
func (p *Portal) DistributorMatches(ctx context.Context, orgID int64) (*DistributorView, error) {
	distributor, err := p.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, eris.Wrapf(err, "portal: load distributor %d", orgID)
	}
	if distributor.OrgType != model.OrgDistributor {
		return nil, eris.Wrapf(model.ErrInvalidInput, "organization %d is not a distributor", orgID)
	}

	sols, suppliers, err := p.loadPool(ctx, model.OrgSupplier)
	if err != nil {
		return nil, err
	}

	matches := make([]SolicitationMatch, 0, len(sols))
	for i := range sols {
		sol := &sols[i]
		m := p.scoreSolicitation(ctx, sol, distributor)

		partners := make([]SupplierPartner, 0, len(suppliers))
		for j := range suppliers {
			s := &suppliers[j]
			sCap, sOverlap := geo.Overlap(sol.Categories, s.Capabilities)
			partners = append(partners, SupplierPartner{
				Supplier:                s,
				DistanceToDistributor:   round1(geo.Distance(s.Lat, s.Lng, distributor.Lat, distributor.Lng)),
				CapabilityMatch:         sCap,
				OverlappingCapabilities: sOverlap,
				PreRegisteredCapacity:   p.availableCapacityCount(ctx, s.ID),
			})
		}
		sort.SliceStable(partners, func(a, b int) bool {
			return partners[a].CapabilityMatch > partners[b].CapabilityMatch
		})
		m.SupplierPartners = capPartners(partners, p.partnerLimit())

		matches = append(matches, m)
	}

	sortMatches(matches)
	zap.L().Debug("portal: distributor view built",
		zap.Int64("org_id", orgID), zap.Int("matches", len(matches)))

	return &DistributorView{
		Distributor:          distributor,
		MatchedSolicitations: matches,
		TotalMatches:         len(matches),
	}, nil
}

// scoreSolicitation computes the 0.4/0.3/0.3 composite for one open
// solicitation against a portal organization.
func (p *Portal) scoreSolicitation(ctx context.Context, sol *model.Solicitation, org *model.Organization) SolicitationMatch {
	dist := geo.Distance(org.Lat, org.Lng, sol.Lat, sol.Lng)
	capScore, overlapping := geo.Overlap(sol.Categories, org.Capabilities)
	needScore := p.lookupNeed(ctx, sol.ZipCode)
	prox := geo.Proximity(dist, p.cfg.ProximityNormMiles)

	composite := capScore*0.4 + prox*0.3 + needScore*0.3
	return SolicitationMatch{
		Solicitation:            sol,
		MatchScore:              round1(math.Min(100, composite)),
		CapabilityMatch:         capScore,
		OverlappingCapabilities: overlapping,
		DistanceMiles:           round1(dist),
		NeedScore:               needScore,
	}
}

func (p *Portal) loadPool(ctx context.Context, partnerType model.OrgType) ([]model.Solicitation, []model.Organization, error) {
	sols, err := p.store.ListSolicitations(ctx, store.SolicitationFilter{Status: model.SolicitationOpen})
	if err != nil {
		return nil, nil, eris.Wrap(err, "portal: list open solicitations")
	}
	partners, err := p.store.ListOrganizations(ctx, store.OrganizationFilter{OrgType: partnerType})
	if err != nil {
		return nil, nil, eris.Wrap(err, "portal: list partner organizations")
	}
	return sols, partners, nil
}

func (p *Portal) availableCapacityCount(ctx context.Context, orgID int64) int {
	caps, err := p.store.ListCapacity(ctx, store.CapacityFilter{
		OrgID:  orgID,
		Status: model.CapacityAvailable,
	})
	if err != nil {
		zap.L().Warn("portal: capacity count failed",
			zap.Int64("org_id", orgID), zap.Error(err))
		return 0
	}
	return len(caps)
}

func (p *Portal) lookupNeed(ctx context.Context, zipCode string) float64 {
	z, err := p.store.GetZipNeedScore(ctx, zipCode)
	if err != nil {
		return model.DefaultNeedScore
	}
	return z.NeedScore
}

func (p *Portal) partnerLimit() int {
	if p.cfg.PartnerLimit > 0 {
		return p.cfg.PartnerLimit
	}
	return 5
}

func sortMatches(matches []SolicitationMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
}

func capPartners[T any](partners []T, limit int) []T {
	if len(partners) > limit {
		return partners[:limit]
	}
	return partners
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

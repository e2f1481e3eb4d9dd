package portal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodmatch/matchd/internal/config"
	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

func testPortalConfig() config.PortalConfig {
	return config.PortalConfig{
		ProximityNormMiles: 3000,
		PartnerLimit:       5,
		ComboLimit:         25,
	}
}

func newTestPortal(t *testing.T) (*Portal, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return New(st, testPortalConfig()), st
}

func seedOrg(t *testing.T, st store.Store, name string, orgType model.OrgType, lat, lng float64, caps []string) *model.Organization {
	t.Helper()
	org, err := st.CreateOrganization(context.Background(), &model.Organization{
		Name: name, OrgType: orgType, ZipCode: "38614",
		Lat: lat, Lng: lng, Capabilities: caps, ServiceRadiusMiles: 200,
	})
	require.NoError(t, err)
	return org
}

func seedOpenSolicitation(t *testing.T, st store.Store, title string, categories []string) *model.Solicitation {
	t.Helper()
	sol, err := st.CreateSolicitation(context.Background(), &model.Solicitation{
		Title: title, Description: "d", ZipCode: "38614",
		Lat: 34.2001, Lng: -90.5711, Categories: categories,
	})
	require.NoError(t, err)
	return sol
}

func TestSupplierMatches_WrongOrgType(t *testing.T) {
	p, st := newTestPortal(t)
	org := seedOrg(t, st, "Gulf Coast Logistics", model.OrgDistributor, 33.7, -90.7, nil)

	_, err := p.SupplierMatches(context.Background(), org.ID)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrInvalidInput))
}

func TestSupplierMatches_NotFound(t *testing.T) {
	p, _ := newTestPortal(t)

	_, err := p.SupplierMatches(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNotFound))
}

func TestSupplierMatches_RanksAndAttachesPartners(t *testing.T) {
	p, st := newTestPortal(t)
	ctx := context.Background()

	supplier := seedOrg(t, st, "Delta Fresh Foods", model.OrgSupplier,
		34.2001, -90.5711, []string{"fresh produce", "cold storage"})
	seedOrg(t, st, "Gulf Coast Logistics", model.OrgDistributor,
		33.744, -90.7243, []string{"cold storage", "warehousing"})
	seedOrg(t, st, "Paper Hauling Co", model.OrgDistributor,
		33.749, -84.388, []string{"office supplies"})

	seedOpenSolicitation(t, st, "Strong match", []string{"fresh produce", "cold storage"})
	seedOpenSolicitation(t, st, "Weak match", []string{"canned goods"})

	closed, err := st.CreateSolicitation(ctx, &model.Solicitation{
		Title: "Closed", Description: "d", ZipCode: "38614",
		Lat: 34.2001, Lng: -90.5711, Status: model.SolicitationClosed,
		Categories: []string{"fresh produce"},
	})
	require.NoError(t, err)
	_ = closed

	view, err := p.SupplierMatches(ctx, supplier.ID)
	require.NoError(t, err)
	require.Len(t, view.MatchedSolicitations, 2)

	top := view.MatchedSolicitations[0]
	assert.Equal(t, "Strong match", top.Solicitation.Title)
	assert.InDelta(t, 100.0, top.CapabilityMatch, 0.001)
	require.Len(t, top.DistributorPartners, 2)
	assert.Equal(t, "Gulf Coast Logistics", top.DistributorPartners[0].Distributor.Name)
	assert.Greater(t, top.DistributorPartners[0].CapabilityMatch,
		top.DistributorPartners[1].CapabilityMatch)
}

func TestSupplierMatches_PartnerLimit(t *testing.T) {
	p, st := newTestPortal(t)
	ctx := context.Background()

	supplier := seedOrg(t, st, "Delta Fresh Foods", model.OrgSupplier,
		34.2001, -90.5711, []string{"fresh produce"})
	for i := 0; i < 8; i++ {
		seedOrg(t, st, "Distributor", model.OrgDistributor,
			33.744, -90.7243, []string{"fresh produce"})
	}
	seedOpenSolicitation(t, st, "Posting", []string{"fresh produce"})

	view, err := p.SupplierMatches(ctx, supplier.ID)
	require.NoError(t, err)
	require.Len(t, view.MatchedSolicitations, 1)
	assert.Len(t, view.MatchedSolicitations[0].DistributorPartners, 5)
}

func TestDistributorMatches_AnnotatesCapacity(t *testing.T) {
	p, st := newTestPortal(t)
	ctx := context.Background()

	distributor := seedOrg(t, st, "Gulf Coast Logistics", model.OrgDistributor,
		33.744, -90.7243, []string{"cold storage"})
	supplier := seedOrg(t, st, "Delta Fresh Foods", model.OrgSupplier,
		34.2001, -90.5711, []string{"fresh produce", "cold storage"})

	_, err := st.CreateCapacity(ctx, &model.EmergencyCapacity{
		OrganizationID: supplier.ID, SupplyType: "water",
		ItemName: "Bottled Water", Quantity: 100, ZipCode: "38614",
		Lat: 34.2001, Lng: -90.5711,
	})
	require.NoError(t, err)
	reserved, err := st.CreateCapacity(ctx, &model.EmergencyCapacity{
		OrganizationID: supplier.ID, SupplyType: "canned_goods",
		ItemName: "Canned Beans", Quantity: 50, ZipCode: "38614",
		Lat: 34.2001, Lng: -90.5711, Status: model.CapacityReserved,
	})
	require.NoError(t, err)
	_ = reserved

	seedOpenSolicitation(t, st, "Posting", []string{"cold storage"})

	view, err := p.DistributorMatches(ctx, distributor.ID)
	require.NoError(t, err)
	require.Len(t, view.MatchedSolicitations, 1)
	require.Len(t, view.MatchedSolicitations[0].SupplierPartners, 1)
	// reserved stock does not count
	assert.Equal(t, 1, view.MatchedSolicitations[0].SupplierPartners[0].PreRegisteredCapacity)
}

func TestTriMatch_MissingZipParam(t *testing.T) {
	p, _ := newTestPortal(t)

	_, err := p.TriMatch(context.Background(), TriMatchRequest{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrInvalidInput))
}

func TestTriMatch_FullCrossProduct(t *testing.T) {
	p, st := newTestPortal(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertZipNeedScore(ctx, &model.ZipNeedScore{
		ZipCode: "38614", Lat: 34.2001, Lng: -90.5711, State: "MS",
		City: "Clarksdale", NeedScore: 82,
	}))

	seedOrg(t, st, "Delta Fresh Foods", model.OrgSupplier,
		34.2001, -90.5711, []string{"fresh produce"})
	seedOrg(t, st, "Far Away Paper", model.OrgSupplier,
		47.6, -122.3, []string{"office supplies"})
	seedOrg(t, st, "Gulf Coast Logistics", model.OrgDistributor,
		33.744, -90.7243, []string{"cold storage"})

	res, err := p.TriMatch(ctx, TriMatchRequest{
		DestinationZip: "38614",
		Categories:     []string{"fresh produce"},
	})
	require.NoError(t, err)

	// 2 suppliers x 1 distributor, nothing gated out.
	assert.Equal(t, 2, res.TotalCombosEvaluated)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "Delta Fresh Foods", res.Matches[0].Supplier.Name)
	assert.Greater(t, res.Matches[0].ComboScore, res.Matches[1].ComboScore)
	assert.Equal(t, "MS", res.Destination.State)
	assert.False(t, res.Destination.Fallback)
}

func TestTriMatch_UnknownZipFallsBack(t *testing.T) {
	p, st := newTestPortal(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertZipNeedScore(ctx, &model.ZipNeedScore{
		ZipCode: "38614", Lat: 34.2001, Lng: -90.5711, NeedScore: 82,
	}))
	seedOrg(t, st, "Delta Fresh Foods", model.OrgSupplier,
		34.2001, -90.5711, []string{"fresh produce"})
	seedOrg(t, st, "Gulf Coast Logistics", model.OrgDistributor,
		33.744, -90.7243, []string{"cold storage"})

	res, err := p.TriMatch(ctx, TriMatchRequest{
		DestinationZip: "99999",
		Categories:     []string{"fresh produce"},
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(res.Matches), 1)
	assert.True(t, res.Destination.Fallback)
	assert.Equal(t, "99999", res.Destination.ZipCode)
	assert.InDelta(t, 82.0, res.Destination.NeedScore, 0.001)
}

func TestTriMatch_EmptyZipTableUsesDefaultCoords(t *testing.T) {
	p, st := newTestPortal(t)
	ctx := context.Background()

	seedOrg(t, st, "Delta Fresh Foods", model.OrgSupplier,
		34.2001, -90.5711, []string{"fresh produce"})
	seedOrg(t, st, "Gulf Coast Logistics", model.OrgDistributor,
		33.744, -90.7243, []string{"cold storage"})

	res, err := p.TriMatch(ctx, TriMatchRequest{
		DestinationZip: "99999",
		Categories:     []string{"fresh produce"},
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.True(t, res.Destination.Fallback)
	assert.InDelta(t, defaultDestLat, res.Destination.Lat, 0.001)
	assert.InDelta(t, model.DefaultNeedScore, res.Destination.NeedScore, 0.001)
}

func TestTriMatch_CapacityBonusCapped(t *testing.T) {
	p, st := newTestPortal(t)
	ctx := context.Background()

	supplier := seedOrg(t, st, "Delta Fresh Foods", model.OrgSupplier,
		34.2001, -90.5711, []string{"fresh produce"})
	seedOrg(t, st, "Gulf Coast Logistics", model.OrgDistributor,
		33.744, -90.7243, []string{"cold storage"})

	for i := 0; i < 7; i++ {
		_, err := st.CreateCapacity(ctx, &model.EmergencyCapacity{
			OrganizationID: supplier.ID, SupplyType: "water",
			ItemName: "Bottled Water", Quantity: 100, ZipCode: "38614",
			Lat: 34.2001, Lng: -90.5711,
		})
		require.NoError(t, err)
	}

	res, err := p.TriMatch(ctx, TriMatchRequest{
		DestinationZip: "99999",
		Categories:     []string{"fresh produce"},
		SupplyTypes:    []string{"water"},
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	// 7 matching items would be 14 points; capped at 10.
	assert.InDelta(t, 10.0, res.Matches[0].CapacityBonus, 0.001)
}

func TestVendors_Filters(t *testing.T) {
	p, st := newTestPortal(t)
	ctx := context.Background()

	_, err := st.CreateOrganization(ctx, &model.Organization{
		Name: "Delta Fresh Foods", OrgType: model.OrgSupplier,
		ZipCode: "38614", Lat: 34.2, Lng: -90.5,
		Capabilities: []string{"fresh produce", "cold storage"},
		NAICSCodes:   []string{"311991"},
	})
	require.NoError(t, err)
	_, err = st.CreateOrganization(ctx, &model.Organization{
		Name: "Gulf Coast Logistics", OrgType: model.OrgDistributor,
		ZipCode: "39530", Lat: 30.4, Lng: -88.9,
		Capabilities:  []string{"warehousing"},
		SmallBusiness: true,
	})
	require.NoError(t, err)

	byType, err := p.Vendors(ctx, VendorFilter{OrgType: model.OrgSupplier})
	require.NoError(t, err)
	assert.Equal(t, 1, byType.Total)

	// substring capability search
	byCap, err := p.Vendors(ctx, VendorFilter{Capability: "produce"})
	require.NoError(t, err)
	require.Equal(t, 1, byCap.Total)
	assert.Equal(t, "Delta Fresh Foods", byCap.Vendors[0].Name)

	byNAICS, err := p.Vendors(ctx, VendorFilter{NAICS: "311991"})
	require.NoError(t, err)
	assert.Equal(t, 1, byNAICS.Total)

	small, err := p.Vendors(ctx, VendorFilter{SmallBusiness: true})
	require.NoError(t, err)
	require.Equal(t, 1, small.Total)
	assert.Equal(t, "Gulf Coast Logistics", small.Vendors[0].Name)
}

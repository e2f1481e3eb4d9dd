package predict

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

func newTestModel(t *testing.T) (*Model, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	m := New(st)
	m.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return m, st
}

func seedZip(t *testing.T, st store.Store, z model.ZipNeedScore) {
	t.Helper()
	require.NoError(t, st.UpsertZipNeedScore(context.Background(), &z))
}

func seedOrg(t *testing.T, st store.Store, name string, lat, lng, radius float64) *model.Organization {
	t.Helper()
	org, err := st.CreateOrganization(context.Background(), &model.Organization{
		Name:               name,
		OrgType:            model.OrgSupplier,
		ZipCode:            "38614",
		Lat:                lat,
		Lng:                lng,
		Capabilities:       []string{"canned goods"},
		ServiceRadiusMiles: radius,
	})
	require.NoError(t, err)
	return org
}

func TestClimateRisk(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"TX", 90}, // hurricane, tornado, flood, drought
		{"MS", 75}, // hurricane, tornado, flood
		{"FL", 30},
		{"CA", 15},
		{"MN", 10},
		{"WY", 0},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.Equal(t, tt.want, climateRisk(tt.state))
		})
	}
}

func TestFoodDesertScore(t *testing.T) {
	tests := []struct {
		orgs int
		want float64
	}{
		{0, 100},
		{1, 75},
		{2, 50},
		{3, 50},
		{4, 18},
		{9, 3},
		{10, 0},
		{20, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, foodDesertScore(tt.orgs), "orgs=%d", tt.orgs)
	}
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, "critical", severity(80))
	assert.Equal(t, "critical", severity(95))
	assert.Equal(t, "high", severity(65))
	assert.Equal(t, "high", severity(79.9))
	assert.Equal(t, "elevated", severity(50))
	assert.Equal(t, "moderate", severity(49.9))
}

func TestDisasterTypes(t *testing.T) {
	assert.Equal(t, []string{"Hurricane", "Tornado", "Flood", "Drought"}, disasterTypes("TX"))
	assert.Equal(t, []string{"Winter Storm"}, disasterTypes("MN"))
	assert.Equal(t, []string{"General Emergency"}, disasterTypes("WY"))
}

func TestEstimateSupplies_HurricaneState(t *testing.T) {
	z := &model.ZipNeedScore{ZipCode: "38614", State: "MS", Population: 0}
	supplies := estimateSupplies(z, disasterTypes("MS"))

	// Zero population falls back to 10000, so 2000 affected.
	byType := make(map[string]SupplyEstimate)
	for _, s := range supplies {
		byType[s.Type] = s
	}
	assert.Equal(t, 6000, byType["water"].Quantity)
	assert.Equal(t, 18000, byType["non_perishable"].Quantity)
	assert.Equal(t, "Canned Goods", byType["shelf_stable"].Name)
	assert.Equal(t, 10000, byType["shelf_stable"].Quantity)
	assert.Equal(t, 1000, byType["hygiene_supplies"].Quantity)
	assert.Equal(t, 420, byType["baby_formula"].Quantity)
	assert.Equal(t, 700, byType["medical_nutrition"].Quantity)
}

func TestEstimateSupplies_WinterStateAndFloors(t *testing.T) {
	z := &model.ZipNeedScore{ZipCode: "55401", State: "MN", Population: 100}
	supplies := estimateSupplies(z, disasterTypes("MN"))

	var hotMeals, formula, medical int
	for _, s := range supplies {
		switch s.Name {
		case "Hot Meal Kits":
			hotMeals = s.Quantity
		case "Infant Formula":
			formula = s.Quantity
		case "Medical Nutrition Supplements":
			medical = s.Quantity
		}
	}
	assert.Equal(t, 60, hotMeals) // 20 affected * 3
	assert.Equal(t, 10, formula)  // floor
	assert.Equal(t, 20, medical)  // floor
}

func TestPredict_CompositeAndCoverage(t *testing.T) {
	m, st := newTestModel(t)
	ctx := context.Background()

	seedZip(t, st, model.ZipNeedScore{
		ZipCode: "38614", City: "Clarksdale", State: "MS",
		Lat: 34.2001, Lng: -90.5711,
		FoodInsecurityRate: 0.24, SNAPParticipationRate: 0.22,
		Population: 20000, NeedScore: 82,
	})
	seedZip(t, st, model.ZipNeedScore{
		ZipCode: "73008", City: "Bethany", State: "OK",
		Lat: 35.5051, Lng: -97.6323,
		FoodInsecurityRate: 0.15, SNAPParticipationRate: 0.12,
		Population: 19000, NeedScore: 60,
	})
	seedOrg(t, st, "Delta Fresh Foods", 34.2001, -90.5711, 200)

	// An open solicitation in Clarksdale marks that ZIP as covered.
	_, err := st.CreateSolicitation(ctx, &model.Solicitation{
		Title:       "Emergency Food Distribution",
		Description: "Canned goods for flood response",
		Agency:      "FEMA Region IV",
		ZipCode:     "38614",
		Lat:         34.2001,
		Lng:         -90.5711,
		Categories:  []string{"canned goods"},
	})
	require.NoError(t, err)

	preds, err := m.Predict(ctx)
	require.NoError(t, err)
	require.Len(t, preds, 2)

	// Clarksdale ranks first: socio caps at 100, climate 75, one org
	// within 100mi, need 82.
	p := preds[0]
	assert.Equal(t, "38614", p.ZipCode)
	assert.Equal(t, 84.8, p.CompositeRisk)
	assert.Equal(t, "critical", p.Severity)
	assert.Equal(t, 75.0, p.ClimateRisk)
	assert.Equal(t, 100.0, p.SocioeconomicVulnerability)
	assert.Equal(t, 75.0, p.FoodDesertScore)
	assert.Equal(t, 24.0, p.FoodInsecurityRate)
	assert.Equal(t, 22.0, p.SNAPParticipationRate)
	assert.Equal(t, 1, p.NearbyOrganizations)
	assert.Equal(t, "covered", p.CoverageStatus)
	assert.Contains(t, p.DisasterTypes, "Hurricane")
	assert.NotEmpty(t, p.NeededSupplies)

	assert.Equal(t, "73008", preds[1].ZipCode)
	assert.Equal(t, "gap", preds[1].CoverageStatus)
	assert.Equal(t, 0, preds[1].NearbyOrganizations)
}

func TestPredict_ProbabilityBoundsAndDeterminism(t *testing.T) {
	m, st := newTestModel(t)
	ctx := context.Background()

	seedZip(t, st, model.ZipNeedScore{
		ZipCode: "38614", City: "Clarksdale", State: "MS",
		Lat: 34.2001, Lng: -90.5711,
		FoodInsecurityRate: 0.24, SNAPParticipationRate: 0.22,
		Population: 20000, NeedScore: 82,
	})

	first, err := m.Predict(ctx)
	require.NoError(t, err)
	second, err := m.Predict(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Same day, same ZIP: identical noise.
	assert.Equal(t, first[0].Probability30Days, second[0].Probability30Days)
	assert.Equal(t, first[0].Probability60Days, second[0].Probability60Days)
	assert.Equal(t, first[0].Probability90Days, second[0].Probability90Days)

	p := first[0]
	assert.GreaterOrEqual(t, p.Probability30Days, 5.0)
	assert.LessOrEqual(t, p.Probability30Days, 99.0)
	assert.GreaterOrEqual(t, p.Probability60Days, 10.0)
	assert.LessOrEqual(t, p.Probability60Days, 99.0)
	assert.GreaterOrEqual(t, p.Probability90Days, 15.0)
	assert.LessOrEqual(t, p.Probability90Days, 99.0)

	// 30-day noise band is composite*0.85 plus or minus 5.
	assert.InDelta(t, p.CompositeRisk*0.85, p.Probability30Days, 5.1)
}

func TestPredict_LowRiskClampsToFloor(t *testing.T) {
	m, st := newTestModel(t)

	seedZip(t, st, model.ZipNeedScore{
		ZipCode: "82001", City: "Cheyenne", State: "WY",
		Lat: 41.14, Lng: -104.82,
		FoodInsecurityRate: 0.0, SNAPParticipationRate: 0.0,
		Population: 60000, NeedScore: 0,
	})
	// Plenty of nearby coverage keeps the desert score at zero.
	for i := 0; i < 10; i++ {
		seedOrg(t, st, "Cheyenne Pantry", 41.14, -104.82, 100)
	}

	preds, err := m.Predict(context.Background())
	require.NoError(t, err)
	require.Len(t, preds, 1)

	assert.Equal(t, 0.0, preds[0].CompositeRisk)
	assert.Equal(t, 5.0, preds[0].Probability30Days)
	assert.Equal(t, 10.0, preds[0].Probability60Days)
	assert.Equal(t, 15.0, preds[0].Probability90Days)
	assert.Equal(t, "moderate", preds[0].Severity)
}

func TestSurplusMatches(t *testing.T) {
	m, st := newTestModel(t)
	ctx := context.Background()

	// Shortage: high need and no organizations within 150 miles except
	// the distant candidates below.
	seedZip(t, st, model.ZipNeedScore{
		ZipCode: "38614", City: "Clarksdale", State: "MS",
		Lat: 34.2001, Lng: -90.5711,
		FoodInsecurityRate: 0.24, SNAPParticipationRate: 0.22,
		Population: 20000, NeedScore: 82,
	})
	// Below the need threshold, never a shortage.
	seedZip(t, st, model.ZipNeedScore{
		ZipCode: "30301", City: "Atlanta", State: "GA",
		Lat: 33.749, Lng: -84.388,
		Population: 500000, NeedScore: 40,
	})

	// Roughly 200 miles north of Clarksdale, wide service radius.
	wide := seedOrg(t, st, "Mid-South Regional Bank", 37.1, -90.5711, 300)
	// Same distance, narrow radius and no stock: not a surplus source.
	seedOrg(t, st, "Local Pantry", 37.1, -90.5711, 100)
	// Narrow radius but holds available inventory, still reachable.
	stocked := seedOrg(t, st, "Stocked Warehouse", 36.2, -90.5711, 200)
	_, err := st.CreateCapacity(ctx, &model.EmergencyCapacity{
		OrganizationID: stocked.ID,
		SupplyType:     "canned_goods",
		ItemName:       "Canned Vegetables",
		Quantity:       400,
		ZipCode:        "63901",
		Lat:            36.2,
		Lng:            -90.5711,
	})
	require.NoError(t, err)

	matches, err := m.SurplusMatches(ctx)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	sm := matches[0]
	assert.Equal(t, "38614", sm.ZipCode)
	assert.Equal(t, 82.0, sm.NeedScore)
	require.Len(t, sm.Sources, 2)

	// The stocked org is closer and earns the inventory bonus, so it
	// outranks the wide-radius org.
	assert.Equal(t, stocked.ID, sm.Sources[0].Organization.ID)
	assert.Equal(t, 400, sm.Sources[0].AvailableQty)
	assert.Equal(t, []string{"canned_goods"}, sm.Sources[0].SupplyTypes)
	assert.Greater(t, sm.Sources[0].MatchScore, sm.Sources[1].MatchScore)

	assert.Equal(t, wide.ID, sm.Sources[1].Organization.ID)
	assert.Equal(t, 0, sm.Sources[1].AvailableQty)
	assert.Empty(t, sm.Sources[1].SupplyTypes)
}

func TestSurplusMatches_LocalOrgBreaksShortage(t *testing.T) {
	m, st := newTestModel(t)

	seedZip(t, st, model.ZipNeedScore{
		ZipCode: "38614", City: "Clarksdale", State: "MS",
		Lat: 34.2001, Lng: -90.5711,
		Population: 20000, NeedScore: 82,
	})
	// Three organizations in town: above the nearby-org limit.
	for i := 0; i < 3; i++ {
		seedOrg(t, st, "Clarksdale Pantry", 34.2001, -90.5711, 100)
	}

	matches, err := m.SurplusMatches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestWasteStats(t *testing.T) {
	m, st := newTestModel(t)
	ctx := context.Background()

	org := seedOrg(t, st, "Delta Fresh Foods", 34.2001, -90.5711, 200)

	for _, r := range []model.WasteReduction{
		{SupplyType: "fresh_produce", ItemName: "Sweet Potatoes", QuantityRescued: 500, EstimatedValue: 1200.5},
		{SupplyType: "dairy", ItemName: "Milk", QuantityRescued: 250, EstimatedValue: 300},
	} {
		_, err := st.CreateWasteReduction(ctx, &r)
		require.NoError(t, err)
	}

	soon := m.now().Add(10 * 24 * time.Hour)
	far := m.now().Add(60 * 24 * time.Hour)
	for _, c := range []model.EmergencyCapacity{
		{OrganizationID: org.ID, SupplyType: "canned_goods", ItemName: "Canned Corn",
			Quantity: 100, ZipCode: "38614", ExpiryDate: &soon},
		{OrganizationID: org.ID, SupplyType: "canned_goods", ItemName: "Canned Beans",
			Quantity: 900, ZipCode: "38614", ExpiryDate: &far},
		{OrganizationID: org.ID, SupplyType: "water", ItemName: "Bottled Water",
			Quantity: 500, ZipCode: "38614"},
	} {
		_, err := st.CreateCapacity(ctx, &c)
		require.NoError(t, err)
	}

	stats, err := m.WasteStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalRecords)
	assert.Equal(t, 750.0, stats.TotalLbsRescued)
	assert.Equal(t, 900, stats.MealsProvided)
	assert.Equal(t, 2850.0, stats.CO2AvoidedLbs)
	assert.Equal(t, 1500.5, stats.TotalValueRescued)
	assert.Equal(t, 17, stats.WasteReductionScore) // 750/100 + 2*5

	// Only the 10-day expiry is inside the window; no-expiry stock is
	// never flagged.
	require.Len(t, stats.ExpiringSoon, 1)
	assert.Equal(t, "Canned Corn", stats.ExpiringSoon[0].Capacity.ItemName)
	assert.Equal(t, 10, stats.ExpiringSoon[0].DaysToExpiry)
	assert.Equal(t, 200.0, stats.PotentialWasteLbs)
}

func TestWasteStats_NoRecords(t *testing.T) {
	m, _ := newTestModel(t)

	stats, err := m.WasteStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.WasteReductionScore)
	assert.Equal(t, 0, stats.MealsProvided)
	assert.Empty(t, stats.ExpiringSoon)
}

// Package rfq builds sample request-for-quote documents: deterministic
// per-supplier pricing, truck-based transport costing per distributor, and
// ranked supplier+distributor combos by total cost. Pricing multipliers are
// seeded from stable business keys so identical requests produce identical
// quotes.
package rfq

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/internal/config"
	"github.com/foodmatch/matchd/internal/geo"
	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

const (
	supplierMultLo = 0.85
	supplierMultHi = 1.20
	distribMultLo  = 0.90
	distribMultHi  = 1.15

	// stockedDiscount applies to line items a supplier already holds in
	// pre-registered available capacity.
	stockedDiscount = 0.08

	// handlingFeePerLb is charged by the distributor on total shipment weight.
	handlingFeePerLb = 0.05

	// milesPerTransitDay converts distance to transit days, rounded up.
	milesPerTransitDay = 450

	// weightSurchargePct applies to base mileage when the load exceeds 80%
	// of fleet capacity.
	weightSurchargePct = 0.10
)

// ItemRequest is one requested line in an RFQ.
type ItemRequest struct {
	SupplyType  string `json:"supply_type"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
}

// EstimateRequest asks for a full RFQ document.
type EstimateRequest struct {
	DestinationZip string        `json:"destination_zip"`
	Items          []ItemRequest `json:"items"`
	Lat            float64       `json:"lat,omitempty"`
	Lng            float64       `json:"lng,omitempty"`
}

// LineItem is one priced line at baseline cost.
type LineItem struct {
	SupplyType  string  `json:"supply_type"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitCost    float64 `json:"unit_cost"`
	TotalCost   float64 `json:"total_cost"`
	WeightLbs   float64 `json:"weight_lbs"`
}

// ItemQuote is one line priced for a specific supplier.
type ItemQuote struct {
	SupplyType     string  `json:"supply_type"`
	Description    string  `json:"description"`
	Quantity       int     `json:"quantity"`
	Unit           string  `json:"unit"`
	UnitPrice      float64 `json:"unit_price"`
	LineTotal      float64 `json:"line_total"`
	InStock        bool    `json:"in_stock"`
	StockAvailable int     `json:"stock_available"`
}

// SupplierQuote is one supplier's full supply-side quote.
type SupplierQuote struct {
	Organization      *model.Organization `json:"organization"`
	DistanceMiles     float64             `json:"distance_miles"`
	ItemQuotes        []ItemQuote         `json:"item_quotes"`
	SupplySubtotal    float64             `json:"supply_subtotal"`
	HasInventory      bool                `json:"has_inventory"`
	EstimatedLeadDays int                 `json:"estimated_lead_days"`
	Certifications    []string            `json:"certifications"`
}

// TransportBreakdown itemizes a distributor's transport cost.
type TransportBreakdown struct {
	BaseMileage     float64 `json:"base_mileage"`
	FuelSurcharge   float64 `json:"fuel_surcharge"`
	WeightSurcharge float64 `json:"weight_surcharge"`
	DailyRate       float64 `json:"daily_rate"`
}

// DistributorQuote is one distributor's logistics quote.
type DistributorQuote struct {
	Organization         *model.Organization `json:"organization"`
	DistanceMiles        float64             `json:"distance_miles"`
	TruckType            string              `json:"truck_type"`
	TrucksNeeded         int                 `json:"trucks_needed"`
	EstimatedTransitDays int                 `json:"estimated_transit_days"`
	TransportBreakdown   TransportBreakdown  `json:"transport_breakdown"`
	HandlingFee          float64             `json:"handling_fee"`
	TotalLogisticsCost   float64             `json:"total_logistics_cost"`
	CostPerMile          float64             `json:"cost_per_mile"`
	CostPerLb            float64             `json:"cost_per_lb"`
	Certifications       []string            `json:"certifications"`
}

// Combo pairs a supplier quote with a distributor quote.
type Combo struct {
	Supplier              *SupplierQuote    `json:"supplier_quote"`
	Distributor           *DistributorQuote `json:"distributor_quote"`
	TotalCost             float64           `json:"total_cost"`
	EstimatedDeliveryDays int               `json:"estimated_delivery_days"`
	RouteMiles            float64           `json:"route_miles"`
}

// Destination is the resolved delivery point.
type Destination struct {
	ZipCode string  `json:"zip_code"`
	City    string  `json:"city,omitempty"`
	State   string  `json:"state,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Estimate is the full RFQ document.
type Estimate struct {
	RFQNumber             string             `json:"rfq_number"`
	Title                 string             `json:"title"`
	Destination           Destination        `json:"destination"`
	LineItems             []LineItem         `json:"line_items"`
	Subtotal              float64            `json:"subtotal"`
	TotalWeightLbs        float64            `json:"total_weight_lbs"`
	SupplierQuotes        []SupplierQuote    `json:"supplier_quotes"`
	DistributorQuotes     []DistributorQuote `json:"distributor_quotes"`
	ComboRankings         []Combo            `json:"combo_rankings"`
	TotalVendorsEvaluated int                `json:"total_vendors_evaluated"`
	NeedScore             *float64           `json:"need_score,omitempty"`
}

// Estimator prices RFQs against the live organization pool.
type Estimator struct {
	store store.Store
	cfg   config.RFQConfig
}

// New creates an Estimator.
func New(st store.Store, cfg config.RFQConfig) *Estimator {
	return &Estimator{store: st, cfg: cfg}
}

// Estimate builds the RFQ document for a destination and item list.
func (e *Estimator) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	if strings.TrimSpace(req.DestinationZip) == "" || len(req.Items) == 0 {
		return nil, eris.Wrap(model.ErrInvalidInput, "destination_zip and items are required")
	}
	for _, item := range req.Items {
		if !model.ValidSupplyType(item.SupplyType) {
			return nil, eris.Wrapf(model.ErrInvalidInput, "unknown supply_type %q", item.SupplyType)
		}
		if item.Quantity <= 0 {
			return nil, eris.Wrapf(model.ErrInvalidInput, "quantity must be positive for %s", item.SupplyType)
		}
	}

	dest, needScore := e.resolveDestination(ctx, req)
	lineItems, subtotal, totalWeight := buildLineItems(req.Items)

	suppliers, err := e.store.ListOrganizations(ctx, store.OrganizationFilter{OrgType: model.OrgSupplier})
	if err != nil {
		return nil, eris.Wrap(err, "rfq: list suppliers")
	}
	distributors, err := e.store.ListOrganizations(ctx, store.OrganizationFilter{OrgType: model.OrgDistributor})
	if err != nil {
		return nil, eris.Wrap(err, "rfq: list distributors")
	}

	supplierQuotes := make([]SupplierQuote, 0, len(suppliers))
	for i := range suppliers {
		sq, err := e.quoteSupplier(ctx, &suppliers[i], dest, req.Items)
		if err != nil {
			return nil, err
		}
		supplierQuotes = append(supplierQuotes, sq)
	}
	sort.SliceStable(supplierQuotes, func(i, j int) bool {
		return supplierQuotes[i].SupplySubtotal < supplierQuotes[j].SupplySubtotal
	})

	distributorQuotes := make([]DistributorQuote, 0, len(distributors))
	for i := range distributors {
		distributorQuotes = append(distributorQuotes,
			quoteDistributor(&distributors[i], dest, lineItems, totalWeight, e.fuelSurchargePct()))
	}
	sort.SliceStable(distributorQuotes, func(i, j int) bool {
		return distributorQuotes[i].TotalLogisticsCost < distributorQuotes[j].TotalLogisticsCost
	})

	totalVendors := len(supplierQuotes) + len(distributorQuotes)
	top := e.topVendors()
	if len(supplierQuotes) > top {
		supplierQuotes = supplierQuotes[:top]
	}
	if len(distributorQuotes) > top {
		distributorQuotes = distributorQuotes[:top]
	}

	combos := rankCombos(supplierQuotes, distributorQuotes)

	zap.L().Info("rfq: estimate built",
		zap.String("destination_zip", req.DestinationZip),
		zap.Int("line_items", len(lineItems)),
		zap.Int("vendors_evaluated", totalVendors),
		zap.Int("combos", len(combos)),
	)

	return &Estimate{
		RFQNumber:             fmt.Sprintf("FM-RFQ-%s-%02d", req.DestinationZip, len(req.Items)),
		Title:                 rfqTitle(dest),
		Destination:           dest,
		LineItems:             lineItems,
		Subtotal:              round2(subtotal),
		TotalWeightLbs:        round1(totalWeight),
		SupplierQuotes:        supplierQuotes,
		DistributorQuotes:     distributorQuotes,
		ComboRankings:         combos,
		TotalVendorsEvaluated: totalVendors,
		NeedScore:             needScore,
	}, nil
}

// SupplyCosts returns the baseline cost table.
func (e *Estimator) SupplyCosts() map[string]BaseCost {
	return BaseCosts
}

func (e *Estimator) resolveDestination(ctx context.Context, req EstimateRequest) (Destination, *float64) {
	z, err := e.store.GetZipNeedScore(ctx, req.DestinationZip)
	if err != nil {
		if !eris.Is(err, model.ErrNotFound) {
			zap.L().Warn("rfq: zip lookup failed",
				zap.String("zip", req.DestinationZip), zap.Error(err))
		}
		return Destination{
			ZipCode: req.DestinationZip,
			Lat:     req.Lat,
			Lng:     req.Lng,
		}, nil
	}
	need := z.NeedScore
	return Destination{
		ZipCode: req.DestinationZip,
		City:    z.City,
		State:   z.State,
		Lat:     z.Lat,
		Lng:     z.Lng,
	}, &need
}

func buildLineItems(items []ItemRequest) ([]LineItem, float64, float64) {
	lineItems := make([]LineItem, 0, len(items))
	var subtotal, totalWeight float64
	for _, item := range items {
		base := BaseCosts[item.SupplyType]
		desc := item.Description
		if desc == "" {
			desc = titleCase(item.SupplyType)
		}
		total := base.Cost * float64(item.Quantity)
		weight := base.WeightLbs * float64(item.Quantity)
		lineItems = append(lineItems, LineItem{
			SupplyType:  item.SupplyType,
			Description: desc,
			Quantity:    item.Quantity,
			Unit:        base.Unit,
			UnitCost:    base.Cost,
			TotalCost:   round2(total),
			WeightLbs:   round1(weight),
		})
		subtotal += total
		totalWeight += weight
	}
	return lineItems, subtotal, totalWeight
}

// quoteSupplier prices every requested line for one supplier. The unit price
// perturbation is seeded from supplier name and destination ZIP, so repeat
// calls for the same pair return identical prices.
func (e *Estimator) quoteSupplier(ctx context.Context, supplier *model.Organization, dest Destination, items []ItemRequest) (SupplierQuote, error) {
	caps, err := e.store.ListCapacity(ctx, store.CapacityFilter{
		OrgID:  supplier.ID,
		Status: model.CapacityAvailable,
	})
	if err != nil {
		return SupplierQuote{}, eris.Wrapf(err, "rfq: capacity for supplier %d", supplier.ID)
	}
	stock := make(map[string]int)
	for _, c := range caps {
		stock[c.SupplyType] += c.Quantity
	}

	mult := seededMultiplier(supplier.Name+"|"+dest.ZipCode, supplierMultLo, supplierMultHi)
	dist := geo.Distance(dest.Lat, dest.Lng, supplier.Lat, supplier.Lng)

	quotes := make([]ItemQuote, 0, len(items))
	var subtotal float64
	for _, item := range items {
		base := BaseCosts[item.SupplyType]
		unitPrice := base.Cost * mult
		available, inStock := stock[item.SupplyType]
		if inStock {
			unitPrice *= 1 - stockedDiscount
		}
		lineTotal := unitPrice * float64(item.Quantity)
		desc := item.Description
		if desc == "" {
			desc = titleCase(item.SupplyType)
		}
		quotes = append(quotes, ItemQuote{
			SupplyType:     item.SupplyType,
			Description:    desc,
			Quantity:       item.Quantity,
			Unit:           base.Unit,
			UnitPrice:      round2(unitPrice),
			LineTotal:      round2(lineTotal),
			InStock:        inStock,
			StockAvailable: available,
		})
		subtotal += lineTotal
	}

	return SupplierQuote{
		Organization:      supplier,
		DistanceMiles:     round1(dist),
		ItemQuotes:        quotes,
		SupplySubtotal:    round2(subtotal),
		HasInventory:      len(stock) > 0,
		EstimatedLeadDays: int(dist/200) + 1,
		Certifications:    supplier.Certifications,
	}, nil
}

// quoteDistributor builds the transport cost for one distributor: truck
// selection, mileage, fuel surcharge, weight surcharge above 80% of fleet
// capacity, multi-day daily rates, an efficiency multiplier seeded from the
// distributor and destination, and a handling fee on total weight.
func quoteDistributor(d *model.Organization, dest Destination, items []LineItem, totalWeight float64, fuelPct float64) DistributorQuote {
	dist := geo.Distance(dest.Lat, dest.Lng, d.Lat, d.Lng)
	truck := selectTruck(items, totalWeight)

	trucks := int(math.Ceil(totalWeight / truck.CapacityLbs))
	if trucks < 1 {
		trucks = 1
	}
	transitDays := int(math.Ceil(dist / milesPerTransitDay))
	if transitDays < 1 {
		transitDays = 1
	}

	baseMileage := dist * truck.PerMile * float64(trucks)
	fuel := baseMileage * fuelPct

	var weightSurcharge float64
	if totalWeight > 0.8*truck.CapacityLbs*float64(trucks) {
		weightSurcharge = baseMileage * weightSurchargePct
	}

	var dailyRate float64
	if transitDays > 1 {
		dailyRate = truck.DailyRate * float64(transitDays) * float64(trucks)
	}

	mult := seededMultiplier(d.Name+"|"+dest.ZipCode, distribMultLo, distribMultHi)
	transport := (baseMileage + fuel + weightSurcharge + dailyRate) * mult
	handling := totalWeight * handlingFeePerLb
	total := transport + handling

	costPerMile := 0.0
	if dist > 0 {
		costPerMile = total / dist
	}
	costPerLb := 0.0
	if totalWeight > 0 {
		costPerLb = total / totalWeight
	}

	return DistributorQuote{
		Organization:         d,
		DistanceMiles:        round1(dist),
		TruckType:            truck.Name,
		TrucksNeeded:         trucks,
		EstimatedTransitDays: transitDays,
		TransportBreakdown: TransportBreakdown{
			BaseMileage:     round2(baseMileage * mult),
			FuelSurcharge:   round2(fuel * mult),
			WeightSurcharge: round2(weightSurcharge * mult),
			DailyRate:       round2(dailyRate * mult),
		},
		HandlingFee:        round2(handling),
		TotalLogisticsCost: round2(total),
		CostPerMile:        round2(costPerMile),
		CostPerLb:          round2(costPerLb),
		Certifications:     d.Certifications,
	}
}

// rankCombos crosses the retained supplier and distributor quotes and ranks
// pairs by combined cost ascending.
func rankCombos(suppliers []SupplierQuote, distributors []DistributorQuote) []Combo {
	combos := make([]Combo, 0, len(suppliers)*len(distributors))
	for i := range suppliers {
		for j := range distributors {
			s, d := &suppliers[i], &distributors[j]
			route := geo.Distance(
				s.Organization.Lat, s.Organization.Lng,
				d.Organization.Lat, d.Organization.Lng,
			) + d.DistanceMiles
			combos = append(combos, Combo{
				Supplier:              s,
				Distributor:           d,
				TotalCost:             round2(s.SupplySubtotal + d.TotalLogisticsCost),
				EstimatedDeliveryDays: s.EstimatedLeadDays + d.EstimatedTransitDays,
				RouteMiles:            round1(route),
			})
		}
	}
	sort.SliceStable(combos, func(i, j int) bool {
		return combos[i].TotalCost < combos[j].TotalCost
	})
	return combos
}

// seededMultiplier derives a deterministic multiplier in [lo, hi) from a
// stable business key. The generator is constructed per call; there is no
// shared random state.
func seededMultiplier(key string, lo, hi float64) float64 {
	h := fnv.New64a()
	h.Write([]byte(key)) //nolint:errcheck
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	return lo + rng.Float64()*(hi-lo)
}

func (e *Estimator) fuelSurchargePct() float64 {
	if e.cfg.FuelSurchargePct > 0 {
		return e.cfg.FuelSurchargePct
	}
	return 0.18
}

func (e *Estimator) topVendors() int {
	if e.cfg.TopVendors > 0 {
		return e.cfg.TopVendors
	}
	return 8
}

func rfqTitle(dest Destination) string {
	city, state := dest.City, dest.State
	if city == "" {
		city = "Unknown"
	}
	if state == "" {
		state = "Unknown"
	}
	return fmt.Sprintf("Emergency Food Supply RFQ - %s, %s", city, state)
}

func titleCase(supplyType string) string {
	words := strings.Split(strings.ReplaceAll(supplyType, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

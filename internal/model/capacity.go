package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// CapacityStatus tracks the lifecycle of a pre-registered capacity item.
type CapacityStatus string

const (
	CapacityAvailable CapacityStatus = "available"
	CapacityReserved  CapacityStatus = "reserved"
	CapacityDeployed  CapacityStatus = "deployed"
	CapacityExpired   CapacityStatus = "expired"
)

// SupplyTypes enumerates the valid supply_type values for emergency capacity
// and RFQ line items.
var SupplyTypes = []string{
	"water", "non_perishable", "fresh_produce", "canned_goods",
	"baby_formula", "medical_nutrition", "shelf_stable", "grains_cereals",
	"protein", "dairy", "hygiene_supplies",
}

// ValidSupplyType reports whether st is a known supply type.
func ValidSupplyType(st string) bool {
	for _, s := range SupplyTypes {
		if s == st {
			return true
		}
	}
	return false
}

// EmergencyCapacity is stock a supplier pre-registers before a disaster hits.
type EmergencyCapacity struct {
	ID                 int64          `json:"id"`
	OrganizationID     int64          `json:"organization_id"`
	UserID             int64          `json:"user_id,omitempty"`
	SupplyType         string         `json:"supply_type"`
	ItemName           string         `json:"item_name"`
	Quantity           int            `json:"quantity"`
	Unit               string         `json:"unit"`
	UnitCost           float64        `json:"unit_cost"`
	AvailableDate      *time.Time     `json:"available_date,omitempty"`
	ExpiryDate         *time.Time     `json:"expiry_date,omitempty"`
	Status             CapacityStatus `json:"status"`
	ZipCode            string         `json:"zip_code"`
	Lat                float64        `json:"lat"`
	Lng                float64        `json:"lng"`
	ServiceRadiusMiles float64        `json:"service_radius_miles"`
	CreatedAt          time.Time      `json:"created_at"`
}

// Validate checks required fields and the supply type enum.
func (c *EmergencyCapacity) Validate() error {
	var missing []string
	if c.OrganizationID == 0 {
		missing = append(missing, "organization_id")
	}
	if strings.TrimSpace(c.SupplyType) == "" {
		missing = append(missing, "supply_type")
	}
	if strings.TrimSpace(c.ItemName) == "" {
		missing = append(missing, "item_name")
	}
	if c.Quantity <= 0 {
		missing = append(missing, "quantity")
	}
	if strings.TrimSpace(c.ZipCode) == "" {
		missing = append(missing, "zip_code")
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrInvalidInput, "missing: %s", strings.Join(missing, ", "))
	}
	if !ValidSupplyType(c.SupplyType) {
		return eris.Wrapf(ErrInvalidInput, "unknown supply_type %q", c.SupplyType)
	}
	return nil
}

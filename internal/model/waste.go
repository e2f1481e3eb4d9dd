package model

import "time"

// WasteReduction records product rescued from going to waste by routing it
// from a surplus holder to a destination organization.
type WasteReduction struct {
	ID             int64     `json:"id"`
	SourceOrgID    int64     `json:"source_org_id,omitempty"`
	DestOrgID      int64     `json:"dest_org_id,omitempty"`
	SupplyType     string    `json:"supply_type"`
	ItemName       string    `json:"item_name"`
	QuantityRescued int      `json:"quantity_rescued"`
	Unit           string    `json:"unit"`
	EstimatedValue float64   `json:"estimated_value"`
	SourceZip      string    `json:"source_zip,omitempty"`
	DestZip        string    `json:"dest_zip,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

package model

import "time"

// OrgType classifies an organization's role in the supply chain.
type OrgType string

const (
	OrgSupplier    OrgType = "supplier"
	OrgDistributor OrgType = "distributor"
	OrgNonprofit   OrgType = "nonprofit"
)

// PastPerformance is one prior contract record attached to an organization.
type PastPerformance struct {
	Contract    string  `json:"contract"`
	Agency      string  `json:"agency"`
	Value       float64 `json:"value"`
	Year        int     `json:"year"`
	Description string  `json:"description,omitempty"`
}

// Organization is a supplier, distributor, or nonprofit in the candidate
// pool. Read-mostly during matching.
type Organization struct {
	ID                  int64             `json:"id"`
	Name                string            `json:"name"`
	OrgType             OrgType           `json:"org_type"`
	Description         string            `json:"description,omitempty"`
	ZipCode             string            `json:"zip_code"`
	Lat                 float64           `json:"lat"`
	Lng                 float64           `json:"lng"`
	ContactEmail        string            `json:"contact_email,omitempty"`
	Capabilities        []string          `json:"capabilities"`
	Certifications      []string          `json:"certifications"`
	ServiceRadiusMiles  float64           `json:"service_radius_miles"`
	NAICSCodes          []string          `json:"naics_codes,omitempty"`
	UEI                 string            `json:"uei,omitempty"`
	ServicesDescription string            `json:"services_description,omitempty"`
	PastPerformance     []PastPerformance `json:"past_performance,omitempty"`
	AnnualRevenue       float64           `json:"annual_revenue,omitempty"`
	EmployeeCount       int               `json:"employee_count,omitempty"`
	YearsInBusiness     int               `json:"years_in_business,omitempty"`
	SmallBusiness       bool              `json:"small_business"`
	CreatedAt           time.Time         `json:"created_at"`
}

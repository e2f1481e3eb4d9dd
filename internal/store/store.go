package store

import (
	"context"

	"github.com/foodmatch/matchd/internal/model"
)

// SolicitationFilter specifies criteria for listing solicitations.
type SolicitationFilter struct {
	Status   model.SolicitationStatus `json:"status,omitempty"`
	Category string                   `json:"category,omitempty"`
	ZipCode  string                   `json:"zip,omitempty"`
	Agency   string                   `json:"agency,omitempty"`
}

// OrganizationFilter specifies criteria for listing organizations.
type OrganizationFilter struct {
	OrgType       model.OrgType `json:"org_type,omitempty"`
	Capability    string        `json:"capability,omitempty"`
	ZipCode       string        `json:"zip,omitempty"`
	NAICS         string        `json:"naics,omitempty"`
	SmallBusiness *bool         `json:"small_business,omitempty"`
}

// CapacityFilter specifies criteria for listing emergency capacity.
type CapacityFilter struct {
	Status     model.CapacityStatus `json:"status,omitempty"`
	SupplyType string               `json:"supply_type,omitempty"`
	ZipCode    string               `json:"zip_code,omitempty"`
	State      string               `json:"state,omitempty"`
	Search     string               `json:"search,omitempty"`
	OrgID      int64                `json:"organization_id,omitempty"`
}

// MatchFilter specifies criteria for listing persisted match results.
type MatchFilter struct {
	SolicitationID int64 `json:"solicitation_id,omitempty"`
	OrganizationID int64 `json:"organization_id,omitempty"`
}

// DashboardStats aggregates headline counts for the dashboard endpoint.
type DashboardStats struct {
	TotalSolicitations    int     `json:"total_solicitations"`
	TotalOrganizations    int     `json:"total_organizations"`
	TotalMatches          int     `json:"total_matches"`
	AvgNeedScore          float64 `json:"avg_need_score"`
	GovernmentCount       int     `json:"government_count"`
	CommercialCount       int     `json:"commercial_count"`
	OpenCount             int     `json:"open_count"`
	AvgMatchScore         float64 `json:"avg_match_score"`
	HighConfidenceMatches int     `json:"high_confidence_matches"`
	Suppliers             int     `json:"suppliers"`
	Distributors          int     `json:"distributors"`
	Nonprofits            int     `json:"nonprofits"`
}

// Store defines the persistence interface for the matching service. Lookups
// for missing rows return model.ErrNotFound.
type Store interface {
	// Solicitations
	CreateSolicitation(ctx context.Context, s *model.Solicitation) (*model.Solicitation, error)
	GetSolicitation(ctx context.Context, id int64) (*model.Solicitation, error)
	ListSolicitations(ctx context.Context, filter SolicitationFilter) ([]model.Solicitation, error)
	DeleteSolicitation(ctx context.Context, id int64) error

	// Organizations
	CreateOrganization(ctx context.Context, o *model.Organization) (*model.Organization, error)
	GetOrganization(ctx context.Context, id int64) (*model.Organization, error)
	ListOrganizations(ctx context.Context, filter OrganizationFilter) ([]model.Organization, error)

	// ZIP need lookup table
	UpsertZipNeedScore(ctx context.Context, z *model.ZipNeedScore) error
	GetZipNeedScore(ctx context.Context, zipCode string) (*model.ZipNeedScore, error)
	ListZipNeedScores(ctx context.Context) ([]model.ZipNeedScore, error)

	// Emergency capacity
	CreateCapacity(ctx context.Context, c *model.EmergencyCapacity) (*model.EmergencyCapacity, error)
	GetCapacity(ctx context.Context, id int64) (*model.EmergencyCapacity, error)
	ListCapacity(ctx context.Context, filter CapacityFilter) ([]model.EmergencyCapacity, error)
	DeleteCapacity(ctx context.Context, id int64) error

	// Match results: ReplaceMatches deletes all rows for the solicitation
	// and inserts the new set in one transaction.
	ReplaceMatches(ctx context.Context, solicitationID int64, matches []model.MatchResult) error
	ListMatches(ctx context.Context, filter MatchFilter) ([]model.MatchResult, error)

	// Users
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	SetUserAdmin(ctx context.Context, id int64, isAdmin bool) error

	// Waste reduction ledger
	CreateWasteReduction(ctx context.Context, w *model.WasteReduction) (*model.WasteReduction, error)
	ListWasteReductions(ctx context.Context) ([]model.WasteReduction, error)

	// Dashboard
	Stats(ctx context.Context) (*DashboardStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

package portal

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

// VendorFilter narrows the federal vendor directory.
type VendorFilter struct {
	OrgType       model.OrgType
	NAICS         string
	Capability    string
	SmallBusiness bool
}

// VendorDirectory is the federal portal's full vendor listing.
type VendorDirectory struct {
	Vendors []model.Organization `json:"vendors"`
	Total   int                  `json:"total"`
}

// Vendors lists organizations for federal comparison. NAICS matching is
// exact; capability matching is a case-insensitive substring so buyers can
// search "produce" and hit "fresh produce".
func (p *Portal) Vendors(ctx context.Context, filter VendorFilter) (*VendorDirectory, error) {
	sf := store.OrganizationFilter{
		OrgType: filter.OrgType,
		NAICS:   filter.NAICS,
	}
	if filter.SmallBusiness {
		sb := true
		sf.SmallBusiness = &sb
	}

	vendors, err := p.store.ListOrganizations(ctx, sf)
	if err != nil {
		return nil, eris.Wrap(err, "portal: list vendors")
	}

	if filter.Capability != "" {
		needle := strings.ToLower(filter.Capability)
		filtered := vendors[:0]
		for _, v := range vendors {
			if hasCapabilitySubstring(v.Capabilities, needle) {
				filtered = append(filtered, v)
			}
		}
		vendors = filtered
	}

	return &VendorDirectory{Vendors: vendors, Total: len(vendors)}, nil
}

func hasCapabilitySubstring(capabilities []string, needle string) bool {
	for _, c := range capabilities {
		if strings.Contains(strings.ToLower(c), needle) {
			return true
		}
	}
	return false
}

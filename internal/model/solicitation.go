package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// SolicitationStatus represents the lifecycle state of a solicitation.
type SolicitationStatus string

const (
	SolicitationOpen   SolicitationStatus = "open"
	SolicitationClosed SolicitationStatus = "closed"
)

// SourceType distinguishes government postings from commercial ones.
type SourceType string

const (
	SourceGovernment SourceType = "government"
	SourceCommercial SourceType = "commercial"
)

// Solicitation is a food-supply solicitation to be matched against the
// organization pool. Immutable once matched except for status and deletion.
type Solicitation struct {
	ID               int64              `json:"id"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Agency           string             `json:"agency"`
	NAICSCode        string             `json:"naics_code,omitempty"`
	SetAsideType     string             `json:"set_aside_type,omitempty"`
	ZipCode          string             `json:"zip_code"`
	Lat              float64            `json:"lat"`
	Lng              float64            `json:"lng"`
	PostedDate       *time.Time         `json:"posted_date,omitempty"`
	ResponseDeadline *time.Time         `json:"response_deadline,omitempty"`
	Categories       []string           `json:"categories"`
	EstimatedValue   float64            `json:"estimated_value,omitempty"`
	Status           SolicitationStatus `json:"status"`
	SourceType       SourceType         `json:"source_type"`
	CompanyName      string             `json:"company_name,omitempty"`
	CompanyEmail     string             `json:"company_email,omitempty"`
	CreatedBy        int64              `json:"created_by,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Validate checks required fields and enum values before any scoring or
// persistence work begins.
func (s *Solicitation) Validate() error {
	var missing []string
	if strings.TrimSpace(s.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(s.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(s.ZipCode) == "" {
		missing = append(missing, "zip_code")
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrInvalidInput, "missing: %s", strings.Join(missing, ", "))
	}
	switch s.Status {
	case "", SolicitationOpen, SolicitationClosed:
	default:
		return eris.Wrapf(ErrInvalidInput, "unknown status %q", s.Status)
	}
	switch s.SourceType {
	case "", SourceGovernment, SourceCommercial:
	default:
		return eris.Wrapf(ErrInvalidInput, "unknown source_type %q", s.SourceType)
	}
	return nil
}

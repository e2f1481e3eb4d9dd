package model

import "time"

// MatchResult is one scored solicitation/organization pairing. A regenerate
// run replaces the full result set for its solicitation; no history is kept.
type MatchResult struct {
	ID                 string    `json:"id"`
	SolicitationID     int64     `json:"solicitation_id"`
	OrganizationID     int64     `json:"organization_id"`
	Score              float64   `json:"score"`
	Explanation        string    `json:"explanation"`
	CapabilityOverlap  float64   `json:"capability_overlap"`
	DistanceMiles      float64   `json:"distance_miles"`
	NeedScoreComponent float64   `json:"need_score_component"`
	LLMScore           float64   `json:"llm_score"`
	CreatedAt          time.Time `json:"created_at"`

	// Hydrated for API responses when the store join is requested.
	Organization *Organization `json:"organization,omitempty"`
	Solicitation *Solicitation `json:"solicitation,omitempty"`
}

// Package assess produces the compatibility assessment component of the
// composite match score. The external-service-backed assessor degrades to
// the deterministic fallback on any failure, so assessment never fails a
// scoring run.
package assess

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/foodmatch/matchd/internal/geo"
	"github.com/foodmatch/matchd/internal/model"
)

// Input carries the facts an assessor scores against.
type Input struct {
	Solicitation  *model.Solicitation
	Organization  *model.Organization
	DistanceMiles float64
	NeedScore     float64
}

// Assessment is a 0-100 compatibility score with a human-readable rationale.
type Assessment struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// Assessor scores a solicitation/organization pairing. Implementations must
// always return a usable assessment; external-service degradation is
// absorbed internally.
type Assessor interface {
	Assess(ctx context.Context, in Input) Assessment
}

// Fallback is the deterministic assessor used when no LLM is configured or
// the external call fails.
type Fallback struct {
	// ProximityNormMiles is the decay distance for the proximity term.
	ProximityNormMiles float64
}

// NewFallback creates a Fallback with the given proximity normalization.
func NewFallback(proximityNormMiles float64) *Fallback {
	return &Fallback{ProximityNormMiles: proximityNormMiles}
}

// Assess computes 0.5*capability + 0.3*proximity + 0.2*need, clamped to
// [0,100], with an explanation naming up to three overlapping capabilities,
// the distance, and a note when the area's need score exceeds 70.
func (f *Fallback) Assess(_ context.Context, in Input) Assessment {
	cap, overlapping := geo.Overlap(in.Solicitation.Categories, in.Organization.Capabilities)
	prox := geo.Proximity(in.DistanceMiles, f.ProximityNormMiles)
	score := clamp(0.5*cap + 0.3*prox + 0.2*in.NeedScore)

	return Assessment{
		Score:       score,
		Explanation: f.explain(in, overlapping),
	}
}

func (f *Fallback) explain(in Input, overlapping []string) string {
	sort.Strings(overlapping)

	var b strings.Builder
	fmt.Fprintf(&b, "%s has %d overlapping capabilities", in.Organization.Name, len(overlapping))
	if len(overlapping) > 0 {
		shown := overlapping
		if len(shown) > 3 {
			shown = shown[:3]
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(shown, ", "))
	}
	fmt.Fprintf(&b, ". Located %.0f miles away.", in.DistanceMiles)
	if in.NeedScore > 70 {
		fmt.Fprintf(&b, " This area has high food insecurity (need score: %.0f/100).", in.NeedScore)
	}
	return b.String()
}

func clamp(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

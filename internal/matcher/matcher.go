// Package matcher implements the persisted solicitation/organization match
// pipeline: capability prefilter, component scoring, LLM assessment, and
// transactional persistence of the regenerated result set.
package matcher

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/internal/assess"
	"github.com/foodmatch/matchd/internal/config"
	"github.com/foodmatch/matchd/internal/geo"
	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

// Matcher generates and persists match results for solicitations.
type Matcher struct {
	store    store.Store
	assessor assess.Assessor
	cfg      config.MatchConfig
}

// New creates a Matcher.
func New(st store.Store, assessor assess.Assessor, cfg config.MatchConfig) *Matcher {
	return &Matcher{store: st, assessor: assessor, cfg: cfg}
}

// candidate pairs an organization with its precomputed geometry for the
// prefilter ranking.
type candidate struct {
	org     model.Organization
	overlap float64
	dist    float64
}

// Generate scores the organization pool against a solicitation and replaces
// its persisted match set. Every organization is ranked by capability
// overlap; only the top shortlist gets the full assessment pass. An empty
// pool clears the stored set and returns no results.
func (m *Matcher) Generate(ctx context.Context, solicitationID int64) ([]model.MatchResult, error) {
	sol, err := m.store.GetSolicitation(ctx, solicitationID)
	if err != nil {
		return nil, eris.Wrapf(err, "matcher: load solicitation %d", solicitationID)
	}

	orgs, err := m.store.ListOrganizations(ctx, store.OrganizationFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "matcher: load organizations")
	}

	needScore := m.lookupNeed(ctx, sol.ZipCode)
	shortlist := m.prefilter(sol, orgs)

	results := make([]model.MatchResult, 0, len(shortlist))
	for _, cand := range shortlist {
		results = append(results, m.scoreOne(ctx, sol, cand, needScore))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if err := m.store.ReplaceMatches(ctx, solicitationID, results); err != nil {
		return nil, eris.Wrapf(err, "matcher: persist matches for solicitation %d", solicitationID)
	}

	zap.L().Info("matcher: generated matches",
		zap.Int64("solicitation_id", solicitationID),
		zap.Int("pool_size", len(orgs)),
		zap.Int("shortlisted", len(shortlist)),
	)
	return results, nil
}

// prefilter ranks the full pool by capability overlap and keeps the top
// shortlist. There is no score or distance cutoff: a zero-overlap pool
// still yields candidates, ranked by whatever signal remains.
func (m *Matcher) prefilter(sol *model.Solicitation, orgs []model.Organization) []candidate {
	cands := make([]candidate, 0, len(orgs))
	for _, org := range orgs {
		overlap, _ := geo.Overlap(sol.Categories, org.Capabilities)
		cands = append(cands, candidate{
			org:     org,
			overlap: overlap,
			dist:    geo.Distance(sol.Lat, sol.Lng, org.Lat, org.Lng),
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].overlap > cands[j].overlap
	})

	limit := m.cfg.ShortlistSize
	if limit <= 0 {
		limit = 10
	}
	if len(cands) > limit {
		cands = cands[:limit]
	}
	return cands
}

// scoreOne computes the weighted composite for a single shortlisted
// organization.
func (m *Matcher) scoreOne(ctx context.Context, sol *model.Solicitation, cand candidate, needScore float64) model.MatchResult {
	prox := geo.Proximity(cand.dist, m.cfg.ProximityNormMiles)

	assessment := m.assessor.Assess(ctx, assess.Input{
		Solicitation:  sol,
		Organization:  &cand.org,
		DistanceMiles: cand.dist,
		NeedScore:     needScore,
	})

	composite := m.cfg.CapabilityWeight*cand.overlap +
		m.cfg.ProximityWeight*prox +
		m.cfg.NeedWeight*needScore +
		m.cfg.AssessmentWeight*assessment.Score

	return model.MatchResult{
		SolicitationID:     sol.ID,
		OrganizationID:     cand.org.ID,
		Score:              round1(clamp(composite)),
		Explanation:        assessment.Explanation,
		CapabilityOverlap:  cand.overlap,
		DistanceMiles:      round1(cand.dist),
		NeedScoreComponent: needScore,
		LLMScore:           assessment.Score,
	}
}

// lookupNeed resolves the need score for a ZIP, falling back to the default
// when the ZIP is absent from the lookup table.
func (m *Matcher) lookupNeed(ctx context.Context, zipCode string) float64 {
	z, err := m.store.GetZipNeedScore(ctx, zipCode)
	if err != nil {
		if !eris.Is(err, model.ErrNotFound) {
			zap.L().Warn("matcher: need score lookup failed",
				zap.String("zip", zipCode), zap.Error(err))
		}
		return model.DefaultNeedScore
	}
	return z.NeedScore
}

// Hydrate attaches organization records to stored match results for API
// responses.
func (m *Matcher) Hydrate(ctx context.Context, matches []model.MatchResult) ([]model.MatchResult, error) {
	for i := range matches {
		org, err := m.store.GetOrganization(ctx, matches[i].OrganizationID)
		if err != nil {
			return nil, eris.Wrapf(err, "matcher: hydrate org %d", matches[i].OrganizationID)
		}
		matches[i].Organization = org
	}
	return matches, nil
}

func clamp(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package server

import (
	"net/http"
	"strings"

	"github.com/foodmatch/matchd/internal/predict"
)

type predictionSummary struct {
	TotalZones            int `json:"total_zones"`
	Critical              int `json:"critical"`
	High                  int `json:"high"`
	Elevated              int `json:"elevated"`
	Moderate              int `json:"moderate"`
	TotalPopulationAtRisk int `json:"total_population_at_risk"`
	CoverageGaps          int `json:"coverage_gaps"`
}

func (s *Server) handleFoodInsecurity(w http.ResponseWriter, r *http.Request) {
	preds, err := s.predict.Predict(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	if sev := q.Get("severity"); sev != "" {
		preds = filterPredictions(preds, func(p predict.Prediction) bool { return p.Severity == sev })
	}
	if state := q.Get("state"); state != "" {
		state = strings.ToUpper(state)
		preds = filterPredictions(preds, func(p predict.Prediction) bool { return p.State == state })
	}

	summary := predictionSummary{TotalZones: len(preds)}
	for _, p := range preds {
		switch p.Severity {
		case "critical":
			summary.Critical++
			summary.TotalPopulationAtRisk += p.Population
		case "high":
			summary.High++
			summary.TotalPopulationAtRisk += p.Population
		case "elevated":
			summary.Elevated++
		default:
			summary.Moderate++
		}
		if p.CoverageStatus == "gap" {
			summary.CoverageGaps++
		}
	}

	writeJSON(w, http.StatusOK, struct {
		Predictions []predict.Prediction `json:"predictions"`
		Summary     predictionSummary    `json:"summary"`
	}{preds, summary})
}

func (s *Server) handleSurplusMatching(w http.ResponseWriter, r *http.Request) {
	matches, err := s.predict.SurplusMatches(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	matched := 0
	for _, m := range matches {
		if len(m.Sources) > 0 {
			matched++
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Matches            []predict.ShortageMatch `json:"matches"`
		TotalShortageAreas int                     `json:"total_shortage_areas"`
		TotalMatched       int                     `json:"total_matched"`
	}{matches, len(matches), matched})
}

func (s *Server) handleWasteReduction(w http.ResponseWriter, r *http.Request) {
	stats, err := s.predict.WasteStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func filterPredictions(preds []predict.Prediction, keep func(predict.Prediction) bool) []predict.Prediction {
	out := preds[:0:0]
	for _, p := range preds {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

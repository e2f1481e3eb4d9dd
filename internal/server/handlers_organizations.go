package server

import (
	"net/http"

	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.OrganizationFilter{
		OrgType:    model.OrgType(q.Get("type")),
		Capability: q.Get("capability"),
		ZipCode:    q.Get("zip"),
	}
	orgs, err := s.store.ListOrganizations(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	org, err := s.store.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	matches, err := s.store.ListMatches(r.Context(), store.MatchFilter{OrganizationID: id})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*model.Organization
		Matches []model.MatchResult `json:"matches"`
	}{org, matches})
}

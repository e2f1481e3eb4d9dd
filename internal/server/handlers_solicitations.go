package server

import (
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/foodmatch/matchd/internal/auth"
	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

func (s *Server) handleListSolicitations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SolicitationFilter{
		Status:   model.SolicitationStatus(q.Get("status")),
		Category: q.Get("category"),
		ZipCode:  q.Get("zip"),
		Agency:   q.Get("agency"),
	}
	sols, err := s.store.ListSolicitations(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sols)
}

func (s *Server) handleGetSolicitation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sol, err := s.store.GetSolicitation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	matches, err := s.store.ListMatches(r.Context(), store.MatchFilter{SolicitationID: id})
	if err != nil {
		writeError(w, err)
		return
	}
	matches, err = s.matcher.Hydrate(r.Context(), matches)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*model.Solicitation
		Matches []model.MatchResult `json:"matches"`
	}{sol, matches})
}

func (s *Server) handleCreateSolicitation(w http.ResponseWriter, r *http.Request) {
	var sol model.Solicitation
	if err := decodeBody(r, &sol); err != nil {
		writeError(w, err)
		return
	}
	if sol.SourceType == "" {
		sol.SourceType = model.SourceCommercial
	}
	if err := sol.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if user, ok := auth.UserFromContext(r.Context()); ok {
		sol.CreatedBy = user.ID
	}
	// Posted solicitations without coordinates inherit them from the ZIP
	// table when known.
	if sol.Lat == 0 && sol.Lng == 0 {
		if z, err := s.store.GetZipNeedScore(r.Context(), sol.ZipCode); err == nil {
			sol.Lat, sol.Lng = z.Lat, z.Lng
		}
	}

	created, err := s.store.CreateSolicitation(r.Context(), &sol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleDeleteSolicitation removes a commercial posting. Only the creator or
// an admin may delete; government records require an admin.
func (s *Server) handleDeleteSolicitation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, eris.Wrap(model.ErrUnauthorized, "login required"))
		return
	}
	sol, err := s.store.GetSolicitation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if sol.SourceType == model.SourceGovernment && !user.IsAdmin {
		writeError(w, eris.Wrap(model.ErrUnauthorized, "government solicitations require admin"))
		return
	}
	if !user.CanMutate(sol.CreatedBy) {
		writeError(w, eris.Wrap(model.ErrUnauthorized, "not the owner"))
		return
	}
	if err := s.store.DeleteSolicitation(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "solicitation removed"})
}

func (s *Server) handleGenerateMatches(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SolicitationID int64 `json:"solicitation_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SolicitationID == 0 {
		writeError(w, eris.Wrap(model.ErrInvalidInput, "solicitation_id required"))
		return
	}
	results, err := s.matcher.Generate(r.Context(), req.SolicitationID)
	if err != nil {
		writeError(w, err)
		return
	}
	results, err = s.matcher.Hydrate(r.Context(), results)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.MatchFilter{}
	if v := q.Get("solicitation_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.SolicitationID = id
	}
	if v := q.Get("organization_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.OrganizationID = id
	}
	matches, err := s.store.ListMatches(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

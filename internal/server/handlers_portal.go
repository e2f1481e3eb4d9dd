package server

import (
	"net/http"

	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/portal"
	"github.com/foodmatch/matchd/internal/rfq"
)

func (s *Server) handleSupplierMatches(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.portal.SupplierMatches(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDistributorMatches(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.portal.DistributorMatches(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleFederalVendors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := portal.VendorFilter{
		OrgType:       model.OrgType(q.Get("org_type")),
		NAICS:         q.Get("naics"),
		Capability:    q.Get("capability"),
		SmallBusiness: q.Get("small_business") == "true",
	}
	dir, err := s.portal.Vendors(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dir)
}

func (s *Server) handleFederalMatch(w http.ResponseWriter, r *http.Request) {
	var req portal.TriMatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.portal.TriMatch(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRFQEstimate(w http.ResponseWriter, r *http.Request) {
	var req rfq.EstimateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	est, err := s.rfq.Estimate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (s *Server) handleSupplyCosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rfq.SupplyCosts())
}

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

// writeError maps the error taxonomy onto status codes. Anything outside
// the taxonomy is a 500 with a generic body; the wrapped detail goes to the
// log only.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case eris.Is(err, model.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case eris.Is(err, model.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case eris.Is(err, model.ErrUnauthorized):
		status, msg = http.StatusForbidden, "not authorized"
	case eris.Is(err, model.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	default:
		zap.L().Error("server: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return eris.Wrap(model.ErrInvalidInput, "invalid request body")
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	return parseID(chi.URLParam(r, "id"))
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Wrap(model.ErrInvalidInput, "invalid id")
	}
	return id, nil
}

package model

import "github.com/rotisserie/eris"

// Sentinel errors forming the user-visible failure taxonomy. Handlers map
// these to HTTP status codes; everything else is a 500. Degraded external
// services (LLM scoring) are absorbed inside the assess package and never
// surface through these.
var (
	ErrNotFound     = eris.New("not found")
	ErrInvalidInput = eris.New("invalid input")
	ErrUnauthorized = eris.New("unauthorized")
	ErrConflict     = eris.New("conflict")
)

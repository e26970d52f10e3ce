package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/inference"
	"github.com/jonnison/tower-jumps/internal/store"
)

type errorBody struct {
	Error string `json:"error"`
}

// badRequest is a client input error surfaced verbatim as a 400.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// fail maps err onto a status code and writes it. Unexpected errors are
// logged and reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		br *badRequest
		ue *inference.UnknownMethodError
	)
	switch {
	case store.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found")
	case store.IsConflict(err):
		writeError(w, http.StatusConflict, "already exists")
	case errors.As(err, &ue):
		writeError(w, http.StatusBadRequest, "unknown model_id: "+ue.Raw)
	case errors.As(err, &br):
		writeError(w, http.StatusBadRequest, br.msg)
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"intake/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain sentinels to HTTP status codes and stable codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrBranchLocked):
		return http.StatusConflict, "branch_locked"
	case errors.Is(err, domain.ErrScanInProgress):
		return http.StatusConflict, "scan_in_progress"
	case errors.Is(err, domain.ErrFileUnreadable):
		return http.StatusUnprocessableEntity, "file_unreadable"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, domain.ErrScanFailed):
		return http.StatusBadGateway, "scan_failed"
	case errors.Is(err, domain.ErrArchiveCommit):
		return http.StatusInternalServerError, "archive_commit"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		s.log.Warn("request failed", zap.String("path", r.URL.Path), zap.String("code", code), zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, domain.ErrInvalidInput)
	}
	return nil
}

// pathParam binds a simple-style path parameter.
func pathParam(r *http.Request, name string) (string, error) {
	var out string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &out,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		return "", fmt.Errorf("invalid %s: %v: %w", name, err, domain.ErrInvalidInput)
	}
	return out, nil
}

// queryBool binds an optional form-style boolean query parameter.
func queryBool(r *http.Request, name string) (bool, error) {
	var out *bool
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &out); err != nil {
		return false, fmt.Errorf("invalid %s: %v: %w", name, err, domain.ErrInvalidInput)
	}
	return out != nil && *out, nil
}

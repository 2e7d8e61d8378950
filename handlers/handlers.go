package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/middleware"
	"ecoStepAPI/pkg/logger"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithAppError maps a service error onto its status. Internal
// failures are logged here and reported without detail.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondWithError(w, code, apperr.Message(err))
}

func authenticatedUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok || userID == "" {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}
	return userID, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// queryInt reads an optional positive integer parameter. Absent values
// yield def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.Validation("Query parameter '" + name + "' must be a positive integer")
	}
	return n, nil
}

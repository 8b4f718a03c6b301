// Package handler holds the JSON API handlers. Handlers translate HTTP to
// service and store calls; domain rules live below, in the services.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nerloapp/nerlo/internal/apperr"
)

var errBadAmount = errors.New("amount must be a non-negative number")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeErr maps a service error onto an HTTP status. Server-side failures
// get a generic body so internals never leak to clients.
func writeErr(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	msg := err.Error()
	if status >= 500 {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/eladdeutch/jobtracker/internal/errors"
)

func respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, data)
}

// renderError writes the JSON error envelope. Internal errors never expose
// their cause.
func renderError(w http.ResponseWriter, err error) {
	je, ok := errors.As(err)
	if !ok {
		je = errors.NewInternal(err)
	}

	status := je.Status
	body := map[string]any{
		"code":    string(je.Code),
		"message": je.Message,
		"status":  status,
	}
	if je.Code == errors.ErrInternal {
		body["message"] = "an internal error occurred"
	} else {
		if je.Details != nil {
			body["details"] = je.Details
		}
		if hint := errors.FlattenHints(err); hint != "" {
			body["hint"] = hint
		}
	}
	if je.Code == errors.ErrBatchInProgress {
		// Runs do not queue; tell clients when the holder's lock lapses at the latest.
		until, _ := je.Details["expires_at"].(int64)
		w.Header().Set("Retry-After", strconv.FormatInt(max(until-time.Now().Unix(), 1), 10))
	}
	renderJSON(w, status, map[string]any{"error": body})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

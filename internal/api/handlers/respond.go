package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// validDate reports whether s is a YYYY-MM-DD date
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// queryInt reads a positive integer query parameter, or def when absent or invalid
func queryInt(r *http.Request, name string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && v > 0 {
		return v
	}
	return def
}

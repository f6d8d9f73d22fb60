package http

import (
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/carebridge-health/promis-gateway/internal/resultlog"
)

// ListResultsHandler serves the assessment result log behind basic auth with
// a bcrypt-hashed password. Disabled entirely when no hash is configured.
func ListResultsHandler(repo *resultlog.Repo, adminUser, adminPassHash string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if adminPassHash == "" {
			http.Error(w, "admin access not configured", http.StatusForbidden)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != adminUser ||
			bcrypt.CompareHashAndPassword([]byte(adminPassHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="promis-gateway"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		recs, err := repo.List(r.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, recs)
	}
}

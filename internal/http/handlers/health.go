package handlers

import (
	"net/http"

	"storybook/internal/sqlinline"
)

// Health reports readiness: when a database is wired, a round trip to it
// must succeed.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if a.SQL != nil {
		var one int
		if err := a.SQL.QueryRow(r.Context(), sqlinline.QHealthCheck).Scan(&one); err != nil {
			a.Logger.Error().Err(err).Msg("health check query failed")
			a.error(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

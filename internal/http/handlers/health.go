package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if a.Ping != nil {
		if err := a.Ping(r.Context()); err != nil {
			a.Logger.Warn().Err(err).Msg("health check failed")
			a.error(w, http.StatusServiceUnavailable, "unavailable", "store unavailable")
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

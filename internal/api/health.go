package api

import (
	"net/http"

	"github.com/supportchat/supportchat/internal/log"
)

// health is a simple liveness endpoint. Returns 200 OK with {"status":"ok"}.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

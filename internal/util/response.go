// response.go — HTTP response utilities shared by every internal/httpapi
// handler; the single place a JSON body is written to a
// http.ResponseWriter.
package util

import (
	"encoding/json"
	"net/http"

	"github.com/liquidterminal/liq-stream/internal/logging"
)

// JSONResponse writes a JSON response with the given status code and data
func JSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.WithComponent("util").Error().Err(err).Msg("failed to encode JSON response")
	}
}

// errors.go — maps the liqerrors taxonomy onto HTTP status codes and the
// opaque JSON error body clients see, writing typed JSON error bodies
// straight from the handler, keyed off the Kind/Code taxonomy.
package httpapi

import (
	"net/http"

	"github.com/liquidterminal/liq-stream/internal/liqerrors"
	"github.com/liquidterminal/liq-stream/internal/util"
)

// errorBody is the wire shape of every non-2xx JSON response. Message is
// always safe to expose: internal error text never reaches here.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	util.JSONResponse(w, status, v)
}

// writeError classifies err by kind and writes the matching status and
// opaque error body. A non-*liqerrors.Error degrades to a generic 500.
func writeError(w http.ResponseWriter, err error) {
	le, ok := err.(*liqerrors.Error)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch le.Kind {
	case liqerrors.KindUpstreamUnavailable, liqerrors.KindTransientCache:
		status = http.StatusServiceUnavailable
	case liqerrors.KindUpstreamRateLimited:
		status = http.StatusTooManyRequests
	case liqerrors.KindValidationFailed:
		status = http.StatusBadRequest
	case liqerrors.KindAdmissionDenied:
		status = http.StatusTooManyRequests
	case liqerrors.KindFatal:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, errorBody{Code: le.Code, Message: le.Message})
}

// writeValidationError is a convenience for query-parsing failures that
// never reached the typed upstream/registry error paths.
func writeValidationError(w http.ResponseWriter, field, reason string) {
	writeError(w, liqerrors.ValidationFailed(field, reason))
}

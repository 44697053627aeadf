package presenter

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quernstone/portcullis/internal/core"
)

type ErrorResponse struct {
	Error         string `json:"error"`
	Reason        string `json:"reason,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	resp := ErrorResponse{
		Error:         msg,
		CorrelationID: core.CorrelationIDFromContext(r.Context()),
	}
	JSON(w, r, resp, status)
}

// Denial renders a gate denial: reason-specific status, challenge and
// quota headers, and a body carrying the machine-readable reason code.
func Denial(w http.ResponseWriter, r *http.Request, d *core.Denial) {
	switch d.Reason {
	case core.ReasonNoCredential:
		w.Header().Set("WWW-Authenticate", "Bearer")
	case core.ReasonMalformedToken:
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	case core.ReasonExpiredToken:
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="token expired"`)
	}

	if d.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
	}
	if d.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	}

	resp := ErrorResponse{
		Error:         d.Message(),
		Reason:        string(d.Reason),
		CorrelationID: core.CorrelationIDFromContext(r.Context()),
	}
	JSON(w, r, resp, d.StatusCode())
}

// retryAfterSeconds rounds up so a sub-second remainder never tells the
// client to retry immediately.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/talentloop/talentloop-backend/api/responses"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

const maxRequestIDLen = 64

// RequestID reuses a caller-supplied X-Request-Id when it is short and
// printable ASCII, otherwise mints a uuid. The id is echoed on the response
// and attached to the logging context.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(responses.RequestIDHeader)
			if !validRequestID(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(responses.RequestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}

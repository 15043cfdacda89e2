package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/talentloop/talentloop-backend/api/responses"
	"github.com/talentloop/talentloop-backend/pkg/config"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

// CronAuth admits the scheduler: a bearer token equal to the cron secret, or
// the configured trusted header carrying its expected value. With neither
// configured every request is rejected.
func CronAuth(cfg config.ReclaimConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !schedulerAuthorized(cfg, r) {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "remote_addr", r.RemoteAddr), "cron.auth.rejected")
				}
				responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "scheduler credentials required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func schedulerAuthorized(cfg config.ReclaimConfig, r *http.Request) bool {
	if secret := strings.TrimSpace(cfg.CronSecret); secret != "" {
		if token := bearerToken(r); token != "" && secureEqual(token, secret) {
			return true
		}
	}
	header := strings.TrimSpace(cfg.TrustedHeader)
	expected := strings.TrimSpace(cfg.TrustedHeaderValue)
	if header != "" && expected != "" {
		if value := strings.TrimSpace(r.Header.Get(header)); value != "" && secureEqual(value, expected) {
			return true
		}
	}
	return false
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

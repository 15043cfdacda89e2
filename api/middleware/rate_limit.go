package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/talentloop/talentloop-backend/api/responses"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
	pkgredis "github.com/talentloop/talentloop-backend/pkg/redis"
)

const (
	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
)

// RateLimitPolicy throttles one traffic surface. Each counter is a fixed
// window keyed by policy name, scope and caller.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	rules  []limitRule
}

type limitRule struct {
	scope string
	limit int
	// subject identifies the caller for this scope, "" skips the rule.
	subject func(*http.Request) string
}

// NewRateLimitPolicy builds a policy with the supplied window and limits. The
// subject limit counts per authenticated caller (candidate ref or user id).
// A zero limit disables that scope.
func NewRateLimitPolicy(name string, window time.Duration, ipLimit, subjectLimit int) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "default"
	}
	p := RateLimitPolicy{name: name, window: window}
	if ipLimit > 0 {
		p.rules = append(p.rules, limitRule{scope: "ip", limit: ipLimit, subject: clientIP})
	}
	if subjectLimit > 0 {
		p.rules = append(p.rules, limitRule{scope: "subject", limit: subjectLimit, subject: callerSubject})
	}
	return p
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && len(p.rules) > 0
}

// RateLimit enforces the policy's counters in redis. A store failure fails
// closed with a dependency error.
func RateLimit(policy RateLimitPolicy, store pkgredis.RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			remaining := -1
			for _, rule := range policy.rules {
				subject := rule.subject(r)
				if subject == "" {
					continue
				}
				key := store.RateLimitKey(policy.name + ":" + rule.scope + ":" + subject)
				count, err := store.IncrWithTTL(ctx, key, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				left := rule.limit - int(count)
				if remaining < 0 || left < remaining {
					remaining = max(left, 0)
					w.Header().Set(RateLimitLimitHeader, strconv.Itoa(rule.limit))
					w.Header().Set(RateLimitRemainingHeader, strconv.Itoa(remaining))
				}
				if left < 0 {
					rejectRateLimited(ctx, logg, w, policy, rule, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, rule limitRule, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.name,
			"scope":          rule.scope,
			"attempts":       count,
			"limit":          rule.limit,
			"window_seconds": int(policy.window.Seconds()),
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

// callerSubject hashes the authenticated identity so raw emails never land in redis keys.
func callerSubject(r *http.Request) string {
	ctx := r.Context()
	var subject string
	if ref := CandidateRefFromContext(ctx); ref != "" {
		subject = "candidate:" + strings.ToLower(ref)
	} else if userID := UserIDFromContext(ctx); userID != "" {
		subject = "user:" + userID
	} else {
		return ""
	}
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:])
}

// clientIP prefers the first valid X-Forwarded-For hop, then X-Real-IP,
// then the socket peer.
func clientIP(r *http.Request) string {
	candidates := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	candidates = append(candidates, r.Header.Get("X-Real-IP"))
	for _, c := range candidates {
		if addr, err := netip.ParseAddr(strings.TrimSpace(c)); err == nil {
			return addr.Unmap().String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/talentloop/talentloop-backend/api/responses"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
	pkgredis "github.com/talentloop/talentloop-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader    = "Idempotency-Key"
	IdempotentReplayHeader  = "Idempotent-Replayed"
	maxIdempotencyKeyLength = 128

	standardReplayWindow = 24 * time.Hour
	billingReplayWindow  = 7 * 24 * time.Hour
	// bounds how long a crashed handler can block retries of its key
	inFlightWindow = time.Minute
)

// guardedRoute marks a mutating endpoint whose responses are replayed for a
// repeated Idempotency-Key. Prefix and suffix are matched against either the
// chi route pattern or the raw path.
type guardedRoute struct {
	method string
	prefix string
	suffix string
	exact  bool
	window time.Duration
}

func (g guardedRoute) matches(method, path string) bool {
	if g.method != method {
		return false
	}
	if g.exact {
		return strings.TrimSuffix(path, "/") == g.prefix
	}
	return strings.HasPrefix(path, g.prefix) && strings.HasSuffix(path, g.suffix)
}

var guardedRoutes = []guardedRoute{
	{method: http.MethodPost, prefix: "/api/v1/invitations", exact: true, window: billingReplayWindow},
	{method: http.MethodPost, prefix: "/api/admin/v1/companies/", suffix: "/credits/purchase", window: billingReplayWindow},
	{method: http.MethodPost, prefix: "/api/admin/v1/companies/", suffix: "/credits/provision", window: standardReplayWindow},
	{method: http.MethodPost, prefix: "/api/admin/v1/companies/", suffix: "/credits/adjust", window: standardReplayWindow},
	{method: http.MethodPost, prefix: "/api/admin/v1/invitations/", suffix: "/expire", window: standardReplayWindow},
	{method: http.MethodPost, prefix: "/api/v1/notifications/read-all", exact: true, window: standardReplayWindow},
	{method: http.MethodPost, prefix: "/api/v1/notifications/", suffix: "/read", window: standardReplayWindow},
}

// storedResponse is the redis value kept under an idempotency key. A record
// with InFlight set is a reservation held while the first request runs.
type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	InFlight    bool   `json:"in_flight,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first response for a repeated Idempotency-Key on the
// guarded routes. Keys are scoped per user, company, and route. A second request
// arriving while the first is still running is rejected, and 5xx outcomes are
// not remembered so the client can retry them.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			window, guarded := replayWindow(r)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey, err := idempotencyKeyFromHeader(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(requestScope(r), clientKey)
			fingerprint := requestFingerprint(r, body)

			reserved, err := reserve(ctx, store, key, fingerprint)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				existing, loadErr := load(ctx, store, key)
				if loadErr != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, loadErr, "load idempotency record"))
					return
				}
				replayOrReject(ctx, logg, w, existing, fingerprint)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.statusCode() >= http.StatusInternalServerError {
				if delErr := store.Del(ctx, key); delErr != nil {
					logError(ctx, logg, "release idempotency key", delErr)
				}
				return
			}
			final := storedResponse{
				Fingerprint: fingerprint,
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			if saveErr := save(ctx, store, key, final, window); saveErr != nil {
				logError(ctx, logg, "persist idempotency record", saveErr)
			}
		})
	}
}

func idempotencyKeyFromHeader(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	switch {
	case key == "":
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	case len(key) > maxIdempotencyKeyLength:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long")
	}
	return key, nil
}

func replayOrReject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, existing *storedResponse, fingerprint string) {
	switch {
	case existing == nil:
		// reservation expired between SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
	case existing.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case existing.InFlight:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
	default:
		if existing.ContentType != "" {
			w.Header().Set("Content-Type", existing.ContentType)
		}
		w.Header().Set(IdempotentReplayHeader, "true")
		w.WriteHeader(existing.Status)
		_, _ = w.Write(existing.Body)
	}
}

func reserve(ctx context.Context, store pkgredis.IdempotencyStore, key, fingerprint string) (bool, error) {
	payload, err := json.Marshal(storedResponse{Fingerprint: fingerprint, InFlight: true})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(payload), inFlightWindow)
}

func save(ctx context.Context, store pkgredis.IdempotencyStore, key string, record storedResponse, window time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(payload), window)
}

func load(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record storedResponse
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func requestScope(r *http.Request) string {
	return strings.Join([]string{
		UserIDFromContext(r.Context()),
		CompanyIDFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}, "|")
}

func requestFingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return base64.RawStdEncoding.EncodeToString(h.Sum(nil))
}

// replayWindow reports how long a response on this route is remembered. The
// middleware sits above the sub-routers, so the chi pattern may still be
// partial and the raw path is tried as well.
func replayWindow(r *http.Request) (time.Duration, bool) {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if window, ok := routeWindow(r.Method, rc.RoutePattern()); ok {
			return window, true
		}
	}
	return routeWindow(r.Method, r.URL.Path)
}

func routeWindow(method, path string) (time.Duration, bool) {
	if path == "" {
		return 0, false
	}
	for _, route := range guardedRoutes {
		if route.matches(method, path) {
			return route.window, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}

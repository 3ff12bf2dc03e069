package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/cafequeue-backend/api/responses"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/cafequeue-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	replayWindow         = 24 * time.Hour
	checkoutReplayWindow = 7 * 24 * time.Hour

	// inFlightTTL bounds how long a crashed request can block its key.
	inFlightTTL = 30 * time.Second
)

// replayRoute names a write endpoint whose responses are kept for replay.
// Segments written as {name} match any single path segment.
type replayRoute struct {
	method   string
	segments []string
	window   time.Duration
	keyed    bool // requests without a key are rejected
}

func route(method, pattern string, window time.Duration, keyed bool) replayRoute {
	return replayRoute{
		method:   method,
		segments: strings.Split(strings.Trim(pattern, "/"), "/"),
		window:   window,
		keyed:    keyed,
	}
}

var replayRoutes = []replayRoute{
	route(http.MethodPost, "/api/v1/checkout", checkoutReplayWindow, true),
	route(http.MethodPost, "/api/v1/checkout/{orderId}/confirm", replayWindow, false),
	route(http.MethodPost, "/api/v1/orders/{orderId}/transition", replayWindow, false),
	route(http.MethodPost, "/api/v1/admin/orders/{orderId}/cancel", replayWindow, false),
	route(http.MethodPost, "/api/v1/shops/{shopId}/items", replayWindow, false),
}

func (rt replayRoute) matches(method, path string) bool {
	if rt.method != method {
		return false
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != len(rt.segments) {
		return false
	}
	for i, seg := range rt.segments {
		if strings.HasPrefix(seg, "{") {
			if parts[i] == "" {
				return false
			}
			continue
		}
		if seg != parts[i] {
			return false
		}
	}
	return true
}

func lookupRoute(method, path string) (replayRoute, bool) {
	for _, rt := range replayRoutes {
		if rt.matches(method, path) {
			return rt, true
		}
	}
	return replayRoute{}, false
}

// storedResponse is what a replay writes back. Body is base64 in JSON.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

type replayGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

// Idempotency replays the first non-5xx response for a repeated
// Idempotency-Key on the write routes above. A second request that arrives
// while the first still runs gets a conflict instead of a second checkout.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	guard := &replayGuard{store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rt, ok := lookupRoute(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			guard.serve(rt, next, w, r)
		})
	}
}

func (g *replayGuard) serve(rt replayRoute, next http.Handler, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if clientKey == "" {
		if rt.keyed {
			g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
			return
		}
		next.ServeHTTP(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	fingerprint := fingerprintRequest(r, body)
	key := g.store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

	if prior, found, err := g.load(ctx, key); err != nil {
		g.fail(ctx, w, err)
		return
	} else if found {
		if prior.Fingerprint != fingerprint {
			g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
			return
		}
		prior.writeTo(w)
		return
	}

	lockKey := key + ":inflight"
	acquired, err := g.store.SetNX(ctx, lockKey, fingerprint, inFlightTTL)
	if err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
		return
	}
	if !acquired {
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is still in progress"))
		return
	}
	// release with a detached ctx so a dropped client does not leave the lock
	defer func() {
		if err := g.store.Del(context.WithoutCancel(ctx), lockKey); err != nil {
			g.logFailure(ctx, "release idempotency lock", err)
		}
	}()

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)

	// server failures stay retryable under the same key
	status := capture.statusCode()
	if status >= http.StatusInternalServerError {
		return
	}
	g.save(ctx, key, rt.window, storedResponse{
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		Fingerprint: fingerprint,
	})
}

func (g *replayGuard) load(ctx context.Context, key string) (*storedResponse, bool, error) {
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &prior, true, nil
}

func (g *replayGuard) save(ctx context.Context, key string, window time.Duration, resp storedResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		g.logFailure(ctx, "marshal idempotency record", err)
		return
	}
	if _, err := g.store.SetNX(context.WithoutCancel(ctx), key, string(payload), window); err != nil {
		g.logFailure(ctx, "persist idempotency record", err)
	}
}

func (g *replayGuard) fail(ctx context.Context, w http.ResponseWriter, err error) {
	responses.WriteError(ctx, g.logg, w, err)
}

func (g *replayGuard) logFailure(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

func (s *storedResponse) writeTo(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// fingerprintRequest ties a key to the exact request it was first used with.
func fingerprintRequest(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
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

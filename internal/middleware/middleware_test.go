package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/utils"
)

const secret = "test-secret"

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func do(e *echo.Echo, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, userID uint64, role string) map[string]string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, 15)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + tok.Token}
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"id": c.Get("user_id"), "role": c.Get("role")})
	}, JWTAuth(secret))

	rec := do(e, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodGet, "/me", "", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")

	rec = do(e, http.MethodGet, "/me", "", bearer(t, 7, "CUSTOMER"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"role":"CUSTOMER"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		JWTAuth(secret), RequireRole("ADMIN"))

	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/admin", "", bearer(t, 1, "CUSTOMER")).Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/admin", "", bearer(t, 1, "ADMIN")).Code)
}

func TestUserID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, "anon", userID(c))
	c.Set("user_id", uint64(42))
	assert.Equal(t, "42", userID(c))
}

func TestTokenBucket(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Minute,
		TTL: 5 * time.Minute, KeyStrategy: "ip", Prefix: "rl",
	}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb, discard()))

	first := do(e, http.MethodGet, "/x", "", nil)
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/x", "", nil).Code)

	blocked := do(e, http.MethodGet, "/x", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
}

func TestTokenBucket_DisabledOrNoRedis(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, discard()))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/x", "", nil).Code)
	}
}

func TestRedisCache(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache",
	}
	calls := 0
	e := echo.New()
	e.GET("/v1/movies/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "calls": calls})
	}, NewRedisCache(cfg, rdb))

	miss := do(e, http.MethodGet, "/v1/movies/1", "", nil)
	assert.Equal(t, "MISS", miss.Header().Get("X-Cache"))

	hit := do(e, http.MethodGet, "/v1/movies/1", "", nil)
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Equal(t, miss.Body.String(), hit.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, hit.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	other := do(e, http.MethodGet, "/v1/movies/2", "", nil)
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	require.NoError(t, PurgeCache(context.Background(), rdb, "cache"))
	assert.Equal(t, "MISS", do(e, http.MethodGet, "/v1/movies/1", "", nil).Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestRedisCache_SkipsErrors(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache"}
	calls := 0
	e := echo.New()
	e.GET("/missing", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}, NewRedisCache(cfg, rdb))

	do(e, http.MethodGet, "/missing", "", nil)
	do(e, http.MethodGet, "/missing", "", nil)
	assert.Equal(t, 2, calls)
}

func idemEcho(t *testing.T, rdb *redis.Client, status int) (*echo.Echo, *int) {
	t.Helper()
	cfg := config.IdempotencyConfig{Enabled: true, TTL: time.Hour, LockTTL: 30 * time.Second, Prefix: "idem"}
	calls := 0
	e := echo.New()
	e.POST("/v1/bookings", func(c echo.Context) error {
		calls++
		body, _ := io.ReadAll(c.Request().Body)
		return c.JSON(status, echo.Map{"call": calls, "body": string(body)})
	}, JWTAuth(secret), NewIdempotency(cfg, rdb, discard()))
	return e, &calls
}

func TestIdempotency_Replays(t *testing.T) {
	_, rdb := newRedis(t)
	e, calls := idemEcho(t, rdb, http.StatusCreated)
	hdr := bearer(t, 7, "CUSTOMER")
	hdr[IdempotencyHeader] = "key-1"

	first := do(e, http.MethodPost, "/v1/bookings", `{"seatIds":[1]}`, hdr)
	require.Equal(t, http.StatusCreated, first.Code)

	second := do(e, http.MethodPost, "/v1/bookings", `{"seatIds":[1]}`, hdr)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, *calls)

	reused := do(e, http.MethodPost, "/v1/bookings", `{"seatIds":[2]}`, hdr)
	assert.Equal(t, http.StatusUnprocessableEntity, reused.Code)

	// The same key from another user is a different request.
	other := bearer(t, 8, "CUSTOMER")
	other[IdempotencyHeader] = "key-1"
	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/v1/bookings", `{"seatIds":[1]}`, other).Code)
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_NoHeaderPassesThrough(t *testing.T) {
	_, rdb := newRedis(t)
	e, calls := idemEcho(t, rdb, http.StatusCreated)
	hdr := bearer(t, 7, "CUSTOMER")
	do(e, http.MethodPost, "/v1/bookings", `{}`, hdr)
	do(e, http.MethodPost, "/v1/bookings", `{}`, hdr)
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_ServerErrorsNotStored(t *testing.T) {
	_, rdb := newRedis(t)
	e, calls := idemEcho(t, rdb, http.StatusInternalServerError)
	hdr := bearer(t, 7, "CUSTOMER")
	hdr[IdempotencyHeader] = "key-2"
	do(e, http.MethodPost, "/v1/bookings", `{}`, hdr)
	do(e, http.MethodPost, "/v1/bookings", `{}`, hdr)
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_InFlight(t *testing.T) {
	mr, rdb := newRedis(t)
	e, calls := idemEcho(t, rdb, http.StatusCreated)
	hdr := bearer(t, 7, "CUSTOMER")
	hdr[IdempotencyHeader] = "key-3"

	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")
	c.Set("user_id", uint64(7))
	lock := idempotencyKey(config.IdempotencyConfig{Prefix: "idem"}, c, "key-3") + ":lock"
	require.NoError(t, mr.Set(lock, "x"))

	rec := do(e, http.MethodPost, "/v1/bookings", `{}`, hdr)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, *calls)
}

package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-ticketing/internal/config"
)

// IdempotencyHeader is the request header carrying the client's key.
const IdempotencyHeader = "Idempotency-Key"

// NewIdempotency replays the stored response of an earlier request that
// carried the same Idempotency-Key from the same user on the same route.
// Requests without the header pass through.  While the first request is
// in flight, repeats get 409; a repeat with a different body gets 422.
// Responses with status >= 500 are not stored so the client may retry.
func NewIdempotency(cfg config.IdempotencyConfig, rdb *redis.Client, log *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idemKey := strings.TrimSpace(c.Request().Header.Get(IdempotencyHeader))
			if idemKey == "" {
				return next(c)
			}
			if len(idemKey) > 255 {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "Idempotency-Key too long"})
			}

			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot read body"})
			}
			c.Request().Body = io.NopCloser(bytes.NewReader(body))
			sum := sha1.Sum(body)
			fingerprint := hex.EncodeToString(sum[:])

			ctx := c.Request().Context()
			key := idempotencyKey(cfg, c, idemKey)

			stored, err := rdb.HGetAll(ctx, key).Result()
			if err != nil {
				log.Warn("idempotency lookup failed", "key", key, "err", err)
				return next(c)
			}
			if resp, ok := stored["resp"]; ok {
				if stored["fp"] != fingerprint {
					return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "Idempotency-Key reused with a different request"})
				}
				if status, hdr, respBody, ok := decodePayload([]byte(resp)); ok {
					hdr.Set("Idempotent-Replayed", "true")
					writeStored(c, status, hdr, respBody)
					return nil
				}
			}

			lock := key + ":lock"
			acquired, err := rdb.SetNX(ctx, lock, fingerprint, cfg.LockTTL).Result()
			if err != nil {
				log.Warn("idempotency lock failed", "key", key, "err", err)
				return next(c)
			}
			if !acquired {
				return c.JSON(http.StatusConflict, echo.Map{"error": "a request with this Idempotency-Key is in progress"})
			}
			defer rdb.Del(context.Background(), lock)

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
			c.Response().Writer = cw
			if err := next(c); err != nil {
				var he *echo.HTTPError
				if !errors.As(err, &he) || he.Code >= http.StatusInternalServerError {
					return err
				}
				// Let echo render the error so it can be captured.
				c.Error(err)
			}
			if cw.status >= http.StatusInternalServerError || cw.truncated() {
				return nil
			}
			payload, err := encodePayload(cw.status, cloneHeader(c.Response().Header()), cw.buf.Bytes())
			if err != nil {
				return nil
			}
			pipe := rdb.TxPipeline()
			pipe.HSet(context.Background(), key, "fp", fingerprint, "resp", payload)
			pipe.Expire(context.Background(), key, cfg.TTL)
			if _, err := pipe.Exec(context.Background()); err != nil {
				log.Warn("idempotency store failed", "key", key, "err", err)
			}
			return nil
		}
	}
}

func idempotencyKey(cfg config.IdempotencyConfig, c echo.Context, idemKey string) string {
	scope := c.Request().Method + " " + c.Path() + " " + idemKey
	sum := sha1.Sum([]byte(scope))
	return cfg.Prefix + ":user:" + userID(c) + ":" + hex.EncodeToString(sum[:])
}

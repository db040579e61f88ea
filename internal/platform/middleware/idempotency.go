package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	IdempotencyKeyHeader    = "Idempotency-Key"
	IdempotentReplayHeader  = "Idempotent-Replay"
	maxIdempotencyKeyLength = 255
	pendingMarker           = "pending"
)

var ErrIdempotencyInProgress = errors.New("request with this Idempotency-Key is already in progress")

// StoredResponse is a completed response kept for replay.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore keeps idempotency records in redis.
type IdempotencyStore struct {
	client  redis.Cmdable
	ttl     time.Duration
	lockTTL time.Duration
	prefix  string
}

func NewIdempotencyStore(client redis.Cmdable, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{
		client:  client,
		ttl:     ttl,
		lockTTL: time.Minute,
		prefix:  "frontdesk:idempotency:",
	}
}

func (s *IdempotencyStore) key(scope, key string) string {
	return s.prefix + scope + ":" + key
}

// Reserve claims key for scope. It returns the stored response when the key
// has already completed, or ErrIdempotencyInProgress while another request
// holds it.
func (s *IdempotencyStore) Reserve(ctx context.Context, scope, key string) (*StoredResponse, error) {
	k := s.key(scope, key)
	ok, err := s.client.SetNX(ctx, k, pendingMarker, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; treat as still contended.
		return nil, ErrIdempotencyInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}
	if raw == pendingMarker {
		return nil, ErrIdempotencyInProgress
	}
	var stored StoredResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &stored, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, scope, key string, resp StoredResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(scope, key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotency record: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	if err := s.client.Del(ctx, s.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

type bodyRecorder struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass through untouched. Keys are scoped to the
// calling user, method and route. Server errors release the key so the
// client can retry.
func Idempotency(store *IdempotencyStore, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(IdempotencyKeyHeader)
			if key == "" {
				return next(c)
			}
			if len(key) > maxIdempotencyKeyLength {
				return echo.NewHTTPError(http.StatusBadRequest, "Idempotency-Key is too long")
			}

			uid, _ := c.Get("user_id").(string)
			scope := uid + ":" + c.Request().Method + ":" + c.Path()
			ctx := c.Request().Context()

			stored, err := store.Reserve(ctx, scope, key)
			if errors.Is(err, ErrIdempotencyInProgress) {
				return echo.NewHTTPError(http.StatusConflict, err.Error())
			}
			if err != nil {
				// Redis trouble should not block bookings.
				logger.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency store unavailable")
				return next(c)
			}
			if stored != nil {
				c.Response().Header().Set(IdempotentReplayHeader, "true")
				return c.Blob(stored.Status, stored.ContentType, stored.Body)
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer}
			c.Response().Writer = rec

			if err := next(c); err != nil {
				c.Error(err)
			}

			bg := context.WithoutCancel(ctx)
			status := c.Response().Status
			if status >= http.StatusInternalServerError {
				if err := store.Release(bg, scope, key); err != nil {
					logger.Warn().Err(err).Str("idempotency_key", key).Msg("release idempotency key")
				}
				return nil
			}
			resp := StoredResponse{
				Status:      status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
			}
			if err := store.Complete(bg, scope, key, resp); err != nil {
				logger.Warn().Err(err).Str("idempotency_key", key).Msg("store idempotent response")
			}
			return nil
		}
	}
}

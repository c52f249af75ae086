package httpapi

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/ironsheep/card-scanner/internal/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// newRequestID returns a ULID for t.
func newRequestID(t time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// requestIDMiddleware keeps a client supplied X-Request-ID or mints one.
func requestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID, _ = newRequestID(time.Now())
		}

		c.Locals(RequestIDHeader, requestID)
		c.Set(RequestIDHeader, requestID)

		return c.Next()
	}
}

func requestID(c *fiber.Ctx) string {
	id, ok := c.Locals(RequestIDHeader).(string)
	if !ok || id == "" {
		return "unknown"
	}
	return id
}

func loggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()
		if err != nil {
			// Run the error handler now so the logged status is the one sent.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := logger.Fields{
			"request_id":    requestID(c),
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    time.Since(start).Milliseconds(),
			"ip":            c.IP(),
			"response_size": len(c.Response().Body()),
		}
		if err != nil {
			fields["error"] = err.Error()
		}

		switch {
		case status >= 500:
			logger.Error(fields, "Server error")
		case status >= 400:
			logger.Warn(fields, "Client error")
		default:
			logger.Info(fields, "Success")
		}
		return nil
	}
}

// rateLimiter holds one token bucket per client IP.
type rateLimiter struct {
	mu     sync.Mutex
	bucket map[string]*rate.Limiter
	rate   rate.Limit
	burst  int
}

func newRateLimiter(r rate.Limit, burst int) *rateLimiter {
	return &rateLimiter{
		bucket: make(map[string]*rate.Limiter),
		rate:   r,
		burst:  burst,
	}
}

func (r *rateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.bucket[ip]
	if !ok {
		l = rate.NewLimiter(r.rate, r.burst)
		r.bucket[ip] = l
	}
	return l
}

func (r *rateLimiter) handler(c *fiber.Ctx) error {
	if !r.limiterFor(c.IP()).Allow() {
		return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
	}
	return c.Next()
}

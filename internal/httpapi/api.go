// Package httpapi serves the card scanner over HTTP.
//
// Routes:
//
//	GET  /health
//	POST /api/v1/scan                  multipart field "file"
//	GET  /api/v1/cards/:set/:number
//	GET  /api/v1/cards?name=...        or ?q=... for a full-text search
//
// Errors are JSON objects {"error": "...", "request_id": "..."} with status
// 400 for bad input, 404 when no card is found, 422 when the upload is not a
// decodable image and 500 for everything else.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/ironsheep/card-scanner/internal/carddb"
	"github.com/ironsheep/card-scanner/internal/logger"
	"github.com/ironsheep/card-scanner/internal/workflow"
)

const (
	// BodyLimit caps uploaded photographs.
	BodyLimit = 20 * 1024 * 1024

	scanTimeout     = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Searcher is implemented by lookups that support full-text queries.
type Searcher interface {
	Search(ctx context.Context, query string) ([]*carddb.CardInfo, error)
}

// API owns the fiber app and its dependencies.
type API struct {
	app      *fiber.App
	workflow *workflow.Workflow
	lookup   workflow.Lookup
	limiter  *rateLimiter
	version  string
}

// Option configures an API.
type Option func(*API)

// WithLookup enables the card endpoints.
func WithLookup(l workflow.Lookup) Option {
	return func(a *API) { a.lookup = l }
}

// WithRateLimit limits requests per client IP. Unset means unlimited.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(a *API) { a.limiter = newRateLimiter(r, burst) }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// New builds the app and registers every route.
func New(wf *workflow.Workflow, opts ...Option) *API {
	a := &API{workflow: wf, version: "dev"}
	for _, opt := range opts {
		opt(a)
	}

	a.app = fiber.New(fiber.Config{
		AppName:               "card-scanner",
		BodyLimit:             BodyLimit,
		StrictRouting:         true,
		CaseSensitive:         true,
		DisableStartupMessage: true,
		JSONEncoder:           jsoniter.Marshal,
		JSONDecoder:           jsoniter.Unmarshal,
		ErrorHandler:          errorHandler,
	})

	a.app.Use(requestIDMiddleware())
	a.app.Use(loggingMiddleware())
	if a.limiter != nil {
		a.app.Use(a.limiter.handler)
	}

	a.app.Get("/health", a.health)

	v1 := a.app.Group("/api/v1")
	v1.Post("/scan", a.scan)
	v1.Get("/cards", a.searchCards)
	v1.Get("/cards/:set/:number", a.cardByNumber)

	return a
}

// App exposes the fiber app, mainly for app.Test in tests.
func (a *API) App() *fiber.App {
	return a.app
}

// Listen serves on addr until ctx is cancelled, then shuts down gracefully.
func (a *API) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.app.Listen(addr)
	}()

	logger.Info(logger.Fields{"addr": addr}, "HTTP API listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}
}

package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/ironsheep/card-scanner/internal/carddb"
	"github.com/ironsheep/card-scanner/internal/workflow"
)

type stubLookup struct {
	card    *carddb.CardInfo
	queries []string
}

func (l *stubLookup) ByCollectorNumber(_ context.Context, set, number string) (*carddb.CardInfo, error) {
	if set == l.card.SetCode && number == l.card.CollectorNumber {
		return l.card, nil
	}
	return nil, carddb.ErrNotFound
}

func (l *stubLookup) ByFuzzyName(_ context.Context, name string) (*carddb.CardInfo, error) {
	if strings.EqualFold(name, l.card.Name) {
		return l.card, nil
	}
	return nil, carddb.ErrNotFound
}

func (l *stubLookup) Search(_ context.Context, query string) ([]*carddb.CardInfo, error) {
	l.queries = append(l.queries, query)
	return []*carddb.CardInfo{l.card}, nil
}

// nameOnlyLookup hides Search.
type nameOnlyLookup struct{ workflow.Lookup }

var _ = Describe("API", func() {
	var (
		api    *API
		lookup *stubLookup
		opts   []Option
	)

	do := func(req *http.Request) (*http.Response, []byte) {
		resp, err := api.App().Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, body
	}

	decodeError := func(body []byte) ErrorResponse {
		var e ErrorResponse
		Expect(jsoniter.Unmarshal(body, &e)).To(Succeed())
		return e
	}

	BeforeEach(func() {
		lookup = &stubLookup{card: &carddb.CardInfo{
			ID:              "e3285e6b",
			Name:            "Lightning Bolt",
			SetCode:         "m10",
			CollectorNumber: "146",
		}}
		opts = []Option{WithVersion("1.2.3")}
	})

	JustBeforeEach(func() {
		wf, err := workflow.New(workflow.DefaultConfig(), nil, nil)
		Expect(err).NotTo(HaveOccurred())
		api = New(wf, opts...)
	})

	Describe("GET /health", func() {
		It("should report status and version", func() {
			resp, body := do(httptest.NewRequest(http.MethodGet, "/health", nil))
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var health map[string]interface{}
			Expect(jsoniter.Unmarshal(body, &health)).To(Succeed())
			Expect(health).To(HaveKeyWithValue("status", "ok"))
			Expect(health).To(HaveKeyWithValue("version", "1.2.3"))
			Expect(health).To(HaveKeyWithValue("lookup", false))
		})

		It("should mint a ULID request id", func() {
			resp, _ := do(httptest.NewRequest(http.MethodGet, "/health", nil))
			_, err := ulid.Parse(resp.Header.Get(RequestIDHeader))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should echo a client request id", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set(RequestIDHeader, "abc-123")
			resp, _ := do(req)
			Expect(resp.Header.Get(RequestIDHeader)).To(Equal("abc-123"))
		})
	})

	Describe("POST /api/v1/scan", func() {
		It("should scan an uploaded photograph", func() {
			resp, body := do(uploadRequest("file", "bolt.png", cardPhotoPNG()))
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK), string(body))

			var res struct {
				ScanID   string `json:"scan_id"`
				Source   string `json:"source"`
				CardType string `json:"card_type"`
				Regions  struct {
					Name struct {
						Width int `json:"width"`
					} `json:"name"`
				} `json:"regions"`
			}
			Expect(jsoniter.Unmarshal(body, &res)).To(Succeed())
			Expect(res.ScanID).NotTo(BeEmpty())
			Expect(res.Source).To(Equal("bolt.png"))
			Expect(res.CardType).To(Equal(workflow.CardTypeModern))
			Expect(res.Regions.Name.Width).To(Equal(360))
		})

		When("the file field is missing", func() {
			It("should return 400", func() {
				resp, body := do(uploadRequest("photo", "bolt.png", cardPhotoPNG()))
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
				Expect(decodeError(body).Error).To(ContainSubstring(`"file"`))
			})
		})

		When("the upload is not an image", func() {
			It("should return 422", func() {
				resp, body := do(uploadRequest("file", "notes.txt", []byte("not an image")))
				Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
				Expect(decodeError(body).RequestID).NotTo(BeEmpty())
			})
		})

		When("the photograph has no card", func() {
			It("should return 404", func() {
				resp, _ := do(uploadRequest("file", "table.png", blankPNG()))
				Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
			})
		})
	})

	Describe("card endpoints", func() {
		When("lookup is disabled", func() {
			It("should return 503", func() {
				resp, _ := do(httptest.NewRequest(http.MethodGet, "/api/v1/cards/m10/146", nil))
				Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
			})
		})

		When("lookup is enabled", func() {
			BeforeEach(func() {
				opts = append(opts, WithLookup(lookup))
			})

			It("should find a card by set and number", func() {
				resp, body := do(httptest.NewRequest(http.MethodGet, "/api/v1/cards/m10/146", nil))
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				var card carddb.CardInfo
				Expect(jsoniter.Unmarshal(body, &card)).To(Succeed())
				Expect(card.Name).To(Equal("Lightning Bolt"))
			})

			It("should return 404 for an unknown card", func() {
				resp, _ := do(httptest.NewRequest(http.MethodGet, "/api/v1/cards/m10/999", nil))
				Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
			})

			It("should find a card by name", func() {
				resp, body := do(httptest.NewRequest(http.MethodGet, "/api/v1/cards?name=lightning+bolt", nil))
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				var card carddb.CardInfo
				Expect(jsoniter.Unmarshal(body, &card)).To(Succeed())
				Expect(card.ID).To(Equal("e3285e6b"))
			})

			It("should run a full-text search", func() {
				resp, body := do(httptest.NewRequest(http.MethodGet, "/api/v1/cards?q=t%3Ainstant", nil))
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				var cards []carddb.CardInfo
				Expect(jsoniter.Unmarshal(body, &cards)).To(Succeed())
				Expect(cards).To(HaveLen(1))
				Expect(lookup.queries).To(Equal([]string{"t:instant"}))
			})

			It("should require name or q", func() {
				resp, _ := do(httptest.NewRequest(http.MethodGet, "/api/v1/cards", nil))
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			})
		})

		When("the lookup cannot search", func() {
			BeforeEach(func() {
				opts = append(opts, WithLookup(nameOnlyLookup{Lookup: lookup}))
			})

			It("should return 501 for a query", func() {
				resp, _ := do(httptest.NewRequest(http.MethodGet, "/api/v1/cards?q=bolt", nil))
				Expect(resp.StatusCode).To(Equal(fiber.StatusNotImplemented))
			})
		})
	})

	Describe("rate limiting", func() {
		BeforeEach(func() {
			opts = append(opts, WithRateLimit(rate.Every(time.Hour), 1))
		})

		It("should reject requests over the limit", func() {
			resp, _ := do(httptest.NewRequest(http.MethodGet, "/health", nil))
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			resp, _ = do(httptest.NewRequest(http.MethodGet, "/health", nil))
			Expect(resp.StatusCode).To(Equal(fiber.StatusTooManyRequests))
		})
	})
})

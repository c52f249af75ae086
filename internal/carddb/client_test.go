package carddb

import (
	"context"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"golang.org/x/time/rate"
)

var _ = Describe("Client", func() {
	var (
		ctx    context.Context
		server *ghttp.Server
		client *Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = ghttp.NewServer()
		client = NewClient(
			WithBaseURL(server.URL()),
			WithRateLimit(rate.Inf, 1),
			WithUserAgent("card-scanner-test/1.0"),
		)
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("ByCollectorNumber", func() {
		When("the card exists", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodGet, "/cards/m10/146"),
					ghttp.VerifyHeaderKV("User-Agent", "card-scanner-test/1.0"),
					ghttp.RespondWith(http.StatusOK, boltJSON),
				))
			})

			It("should lowercase the set code and return the card", func() {
				card, err := client.ByCollectorNumber(ctx, "M10", "146")
				Expect(err).NotTo(HaveOccurred())
				Expect(card.Name).To(Equal("Lightning Bolt"))
				Expect(server.ReceivedRequests()).To(HaveLen(1))
			})

			It("should answer a repeated lookup from memory", func() {
				_, err := client.ByCollectorNumber(ctx, "m10", "146")
				Expect(err).NotTo(HaveOccurred())
				card, err := client.ByCollectorNumber(ctx, "M10", "146")
				Expect(err).NotTo(HaveOccurred())
				Expect(card.Name).To(Equal("Lightning Bolt"))

				Expect(server.ReceivedRequests()).To(HaveLen(1))
				Expect(client.Stats()).To(Equal(Stats{Hits: 1, Misses: 1}))
			})
		})

		When("the card does not exist", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, notFoundJSON))
			})

			It("should return ErrNotFound", func() {
				_, err := client.ByCollectorNumber(ctx, "m10", "999")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})

		When("the server fails", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, `{"details":"boom"}`))
			})

			It("should return an error that is not ErrNotFound", func() {
				_, err := client.ByCollectorNumber(ctx, "m10", "146")
				Expect(err).To(HaveOccurred())
				Expect(err).NotTo(MatchError(ErrNotFound))
				Expect(err.Error()).To(ContainSubstring("500"))
			})
		})

		When("an argument is empty", func() {
			It("should not call the server", func() {
				_, err := client.ByCollectorNumber(ctx, "", "146")
				Expect(err).To(MatchError(ErrNotFound))
				Expect(server.ReceivedRequests()).To(BeEmpty())
			})
		})
	})

	Describe("ByFuzzyName", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/cards/named", "fuzzy=lightnin+bolt"),
				ghttp.RespondWith(http.StatusOK, boltJSON),
			))
		})

		It("should query the fuzzy endpoint", func() {
			card, err := client.ByFuzzyName(ctx, " lightnin bolt ")
			Expect(err).NotTo(HaveOccurred())
			Expect(card.ID).To(Equal("e3285e6b-3e79-4d7c-bf96-d920f973b122"))
		})

		It("should share the cache key across letter case", func() {
			_, err := client.ByFuzzyName(ctx, "lightnin bolt")
			Expect(err).NotTo(HaveOccurred())
			_, err = client.ByFuzzyName(ctx, "LIGHTNIN BOLT")
			Expect(err).NotTo(HaveOccurred())
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	Describe("Search", func() {
		When("results span two pages", func() {
			BeforeEach(func() {
				page2 := server.URL() + "/cards/search?page=2&q=bolt"
				server.AppendHandlers(
					ghttp.CombineHandlers(
						ghttp.VerifyRequest(http.MethodGet, "/cards/search", "q=bolt"),
						ghttp.RespondWith(http.StatusOK, `{"object":"list","has_more":true,"next_page":"`+page2+`","data":[`+boltJSON+`,{"name":"no id"}]}`),
					),
					ghttp.CombineHandlers(
						ghttp.VerifyRequest(http.MethodGet, "/cards/search", "page=2&q=bolt"),
						ghttp.RespondWith(http.StatusOK, `{"object":"list","has_more":false,"data":[`+boltJSON+`]}`),
					),
				)
			})

			It("should follow next_page and skip invalid cards", func() {
				cards, err := client.Search(ctx, "bolt")
				Expect(err).NotTo(HaveOccurred())
				Expect(cards).To(HaveLen(2))
				Expect(server.ReceivedRequests()).To(HaveLen(2))
			})
		})

		When("nothing matches", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, notFoundJSON))
			})

			It("should return an empty slice", func() {
				cards, err := client.Search(ctx, "zzzz")
				Expect(err).NotTo(HaveOccurred())
				Expect(cards).To(BeEmpty())
			})
		})

		When("the query is blank", func() {
			It("should not call the server", func() {
				cards, err := client.Search(ctx, "  ")
				Expect(err).NotTo(HaveOccurred())
				Expect(cards).To(BeEmpty())
				Expect(server.ReceivedRequests()).To(BeEmpty())
			})
		})
	})

	Describe("persistent cache", func() {
		var cache *BoltCache

		BeforeEach(func() {
			var err error
			cache, err = NewBoltCache(filepath.Join(GinkgoT().TempDir(), "cards.db"))
			Expect(err).NotTo(HaveOccurred())

			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, boltJSON))
			client = NewClient(WithBaseURL(server.URL()), WithRateLimit(rate.Inf, 1), WithCache(cache))
		})

		AfterEach(func() {
			client.Close()
		})

		It("should serve a new client from the persistent cache", func() {
			_, err := client.ByCollectorNumber(ctx, "m10", "146")
			Expect(err).NotTo(HaveOccurred())

			fresh := NewClient(WithBaseURL(server.URL()), WithCache(cache))
			card, err := fresh.ByCollectorNumber(ctx, "m10", "146")
			Expect(err).NotTo(HaveOccurred())
			Expect(card.Name).To(Equal("Lightning Bolt"))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
			Expect(fresh.Stats().Hits).To(Equal(1))
		})

		It("should reset everything on ClearCache", func() {
			_, err := client.ByCollectorNumber(ctx, "m10", "146")
			Expect(err).NotTo(HaveOccurred())

			Expect(client.ClearCache(ctx)).To(Succeed())
			Expect(client.Stats()).To(Equal(Stats{}))
			Expect(cache.Len()).To(BeZero())
		})
	})

	Describe("cancellation", func() {
		It("should fail when the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := client.ByFuzzyName(cctx, "Shock")
			Expect(err).To(HaveOccurred())
		})
	})
})

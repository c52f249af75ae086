package carddb

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltCache", func() {
	var (
		ctx   context.Context
		cache *BoltCache
		card  *CardInfo
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		cache, err = NewBoltCache(filepath.Join(GinkgoT().TempDir(), "nested", "cards.db"))
		Expect(err).NotTo(HaveOccurred())

		card = &CardInfo{ID: "id-1", Name: "Shock", SetCode: "m19", CollectorNumber: "156", PriceUSD: 0.25}
	})

	AfterEach(func() {
		if cache != nil {
			cache.Close()
		}
	})

	When("a card was stored", func() {
		BeforeEach(func() {
			Expect(cache.Set(ctx, "collector_m19_156", card)).To(Succeed())
		})

		It("should return it", func() {
			got, err := cache.Get(ctx, "collector_m19_156")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(card))
			Expect(cache.Len()).To(Equal(1))
		})

		It("should forget it after Clear", func() {
			Expect(cache.Clear(ctx)).To(Succeed())
			_, err := cache.Get(ctx, "collector_m19_156")
			Expect(err).To(MatchError(ErrCacheMiss))
			Expect(cache.Len()).To(BeZero())
		})
	})

	When("the key is unknown", func() {
		It("should return ErrCacheMiss", func() {
			_, err := cache.Get(ctx, "name_missing")
			Expect(err).To(MatchError(ErrCacheMiss))
		})
	})
})

var _ = Describe("RedisCache", func() {
	It("should round-trip a card", func() {
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			Skip("REDIS_ADDR not set")
		}
		ctx := context.Background()

		cache, err := NewRedisCache(ctx, addr, "", 0)
		Expect(err).NotTo(HaveOccurred())
		defer cache.Close()

		card := &CardInfo{ID: "id-2", Name: "Opt"}
		Expect(cache.Set(ctx, "name_opt", card)).To(Succeed())

		got, err := cache.Get(ctx, "name_opt")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(card))

		Expect(cache.Clear(ctx)).To(Succeed())
		_, err = cache.Get(ctx, "name_opt")
		Expect(err).To(MatchError(ErrCacheMiss))
	})

	It("should fail for an unreachable server", func() {
		_, err := NewRedisCache(context.Background(), "127.0.0.1:1", "", 0)
		Expect(err).To(HaveOccurred())
	})
})

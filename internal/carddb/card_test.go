package carddb

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseCard", func() {
	var (
		data []byte
		card *CardInfo
		err  error
	)

	JustBeforeEach(func() {
		card, err = ParseCard(data)
	})

	When("the response is a single-faced card", func() {
		BeforeEach(func() {
			data = []byte(boltJSON)
		})

		It("should decode the card fields", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(card.Name).To(Equal("Lightning Bolt"))
			Expect(card.SetCode).To(Equal("m10"))
			Expect(card.CollectorNumber).To(Equal("146"))
			Expect(card.ManaCost).To(Equal("{R}"))
		})

		It("should use the normal image", func() {
			Expect(card.ImageURI).To(Equal("https://example.test/n.jpg"))
		})

		It("should parse prices and treat null as zero", func() {
			Expect(card.PriceUSD).To(BeNumerically("~", 2.15, 1e-9))
			Expect(card.PriceEUR).To(BeZero())
		})
	})

	When("the card is double-faced", func() {
		BeforeEach(func() {
			data = []byte(`{
				"id": "abc", "name": "Delver of Secrets // Insectile Aberration",
				"card_faces": [
					{"image_uris": {"normal": "https://example.test/front.jpg"}},
					{"image_uris": {"normal": "https://example.test/back.jpg"}}
				],
				"prices": {"usd": "not-a-number"}
			}`)
		})

		It("should take the image of the first face", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(card.ImageURI).To(Equal("https://example.test/front.jpg"))
		})

		It("should ignore an unparsable price", func() {
			Expect(card.PriceUSD).To(BeZero())
		})
	})

	When("the response is an error object", func() {
		BeforeEach(func() {
			data = []byte(notFoundJSON)
		})

		It("should return ErrNotFound with the details", func() {
			Expect(err).To(MatchError(ErrNotFound))
			Expect(err.Error()).To(ContainSubstring("No card found"))
		})
	})

	When("the card has no id", func() {
		BeforeEach(func() {
			data = []byte(`{"name": "Nameless"}`)
		})

		It("should return ErrNotFound", func() {
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	When("the response is not JSON", func() {
		BeforeEach(func() {
			data = []byte(`<html>`)
		})

		It("should return a decode error", func() {
			Expect(err).To(HaveOccurred())
			Expect(err).NotTo(MatchError(ErrNotFound))
		})
	})
})

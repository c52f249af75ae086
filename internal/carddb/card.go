package carddb

import (
	"errors"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when the card database has no matching card.
var ErrNotFound = errors.New("card not found")

// CardInfo is the subset of a Scryfall card object the scanner reports.
type CardInfo struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	SetCode         string  `json:"set"`
	SetName         string  `json:"set_name"`
	CollectorNumber string  `json:"collector_number"`
	Rarity          string  `json:"rarity"`
	TypeLine        string  `json:"type_line"`
	ManaCost        string  `json:"mana_cost"`
	OracleText      string  `json:"oracle_text"`
	ImageURI        string  `json:"image_uri"`
	PriceUSD        float64 `json:"price_usd"`
	PriceEUR        float64 `json:"price_eur"`
}

// Valid reports whether the card carries the fields every lookup relies on.
func (c *CardInfo) Valid() bool {
	return c != nil && c.ID != "" && c.Name != ""
}

type imageURIs struct {
	Normal string `json:"normal"`
}

// scryfallCard mirrors the parts of the Scryfall card object we read.
type scryfallCard struct {
	Object          string     `json:"object"`
	Details         string     `json:"details"`
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Set             string     `json:"set"`
	SetName         string     `json:"set_name"`
	CollectorNumber string     `json:"collector_number"`
	Rarity          string     `json:"rarity"`
	TypeLine        string     `json:"type_line"`
	ManaCost        string     `json:"mana_cost"`
	OracleText      string     `json:"oracle_text"`
	ImageURIs       *imageURIs `json:"image_uris"`
	CardFaces       []struct {
		ImageURIs *imageURIs `json:"image_uris"`
	} `json:"card_faces"`
	Prices struct {
		USD *string `json:"usd"`
		EUR *string `json:"eur"`
	} `json:"prices"`
}

type scryfallList struct {
	Object   string                `json:"object"`
	Details  string                `json:"details"`
	HasMore  bool                  `json:"has_more"`
	NextPage string                `json:"next_page"`
	Data     []jsoniter.RawMessage `json:"data"`
}

// ParseCard decodes a Scryfall card object.
//
// An error object, or a card without an id or name, yields ErrNotFound.
// Double-faced cards take their image from the first face. Prices that are
// null or unparsable are reported as zero.
func ParseCard(data []byte) (*CardInfo, error) {
	var raw scryfallCard
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode card: %w", err)
	}
	if raw.Object == "error" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, raw.Details)
	}

	card := &CardInfo{
		ID:              raw.ID,
		Name:            raw.Name,
		SetCode:         raw.Set,
		SetName:         raw.SetName,
		CollectorNumber: raw.CollectorNumber,
		Rarity:          raw.Rarity,
		TypeLine:        raw.TypeLine,
		ManaCost:        raw.ManaCost,
		OracleText:      raw.OracleText,
		PriceUSD:        parsePrice(raw.Prices.USD),
		PriceEUR:        parsePrice(raw.Prices.EUR),
	}

	switch {
	case raw.ImageURIs != nil && raw.ImageURIs.Normal != "":
		card.ImageURI = raw.ImageURIs.Normal
	case len(raw.CardFaces) > 0 && raw.CardFaces[0].ImageURIs != nil:
		card.ImageURI = raw.CardFaces[0].ImageURIs.Normal
	}

	if !card.Valid() {
		return nil, fmt.Errorf("%w: response has no id or name", ErrNotFound)
	}
	return card, nil
}

func parsePrice(s *string) float64 {
	if s == nil {
		return 0
	}
	v, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return 0
	}
	return v
}

package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/ironsheep/card-scanner/internal/carddb"
	"github.com/ironsheep/card-scanner/internal/detection"
	imgproc "github.com/ironsheep/card-scanner/internal/imaging"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

var errLookupDisabled = fiber.NewError(fiber.StatusServiceUnavailable, "card lookup is disabled")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, detection.ErrNotFound), errors.Is(err, carddb.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, imgproc.ErrLoadFailed):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(ErrorResponse{
		Error:     err.Error(),
		RequestID: requestID(c),
	})
}

func (a *API) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": a.version,
		"lookup":  a.lookup != nil,
	})
}

func (a *API) scan(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, `multipart field "file" is required`)
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	img, err := imgproc.DecodeBytes(data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), scanTimeout)
	defer cancel()

	res, err := a.workflow.ProcessImage(ctx, img)
	if err != nil {
		return err
	}
	res.Source = fh.Filename
	return c.JSON(res)
}

func (a *API) cardByNumber(c *fiber.Ctx) error {
	if a.lookup == nil {
		return errLookupDisabled
	}
	card, err := a.lookup.ByCollectorNumber(c.UserContext(), c.Params("set"), c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(card)
}

func (a *API) searchCards(c *fiber.Ctx) error {
	if a.lookup == nil {
		return errLookupDisabled
	}

	if name := c.Query("name"); name != "" {
		card, err := a.lookup.ByFuzzyName(c.UserContext(), name)
		if err != nil {
			return err
		}
		return c.JSON(card)
	}

	q := c.Query("q")
	if q == "" {
		return fiber.NewError(fiber.StatusBadRequest, `query parameter "name" or "q" is required`)
	}
	s, ok := a.lookup.(Searcher)
	if !ok {
		return fiber.NewError(fiber.StatusNotImplemented, "search is not supported by this lookup")
	}
	cards, err := s.Search(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(cards)
}

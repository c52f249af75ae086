package ocr

import (
	"context"
	"fmt"
	"image"
)

// Field identifies which card region a crop came from. Each field has its
// own character set, upscale factor and cleanup rules.
type Field int

const (
	FieldName Field = iota
	FieldCollectorNumber
	FieldSetCode
)

// String returns the field's wire name.
func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldCollectorNumber:
		return "collector_number"
	case FieldSetCode:
		return "set_code"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// ParseField converts a wire name back to a Field.
func ParseField(s string) (Field, error) {
	for _, f := range []Field{FieldName, FieldCollectorNumber, FieldSetCode} {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", s)
}

// Character sets accepted per field.
const (
	NameWhitelist            = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 '-,."
	CollectorNumberWhitelist = "0123456789"
	SetCodeWhitelist         = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Whitelist returns the characters the recognizer may emit for f.
func (f Field) Whitelist() string {
	switch f {
	case FieldCollectorNumber:
		return CollectorNumberWhitelist
	case FieldSetCode:
		return SetCodeWhitelist
	default:
		return NameWhitelist
	}
}

// Recognizer turns a cropped card region into text.
//
// Implementations return "" with a nil error for an empty image. Returned
// text is already cleaned with CleanText.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, field Field) (string, error)
	Close() error
}

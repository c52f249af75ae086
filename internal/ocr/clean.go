package ocr

import (
	"strings"
	"unicode"
)

// CleanText removes recognition artefacts from raw engine output.
//
//   - Name: surrounding whitespace is trimmed, then trailing characters that
//     are neither letters, spaces nor apostrophes are dropped, then trailing
//     single-letter words (stray marks read as "j" or "I") are removed.
//   - Collector number: digits only.
//   - Set code: the first three uppercase ASCII letters.
func CleanText(field Field, raw string) string {
	switch field {
	case FieldCollectorNumber:
		return keepDigits(raw)
	case FieldSetCode:
		return setCode(raw)
	default:
		return cleanName(raw)
	}
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func setCode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	return b.String()
}

func cleanName(s string) string {
	runes := []rune(strings.TrimSpace(s))

	for {
		n := len(runes)
		for len(runes) > 0 {
			last := runes[len(runes)-1]
			if unicode.IsLetter(last) || last == ' ' || last == '\'' {
				break
			}
			runes = runes[:len(runes)-1]
		}
		runes = trimRightSpace(runes)

		if len(runes) >= 2 && runes[len(runes)-2] == ' ' && unicode.IsLetter(runes[len(runes)-1]) {
			runes = trimRightSpace(runes[:len(runes)-2])
		}
		if len(runes) == n {
			return string(runes)
		}
	}
}

func trimRightSpace(r []rune) []rune {
	for len(r) > 0 && r[len(r)-1] == ' ' {
		r = r[:len(r)-1]
	}
	return r
}

// Package ocr reads the text fields of a normalized card: the name, the
// collector number and the set code.
//
// Every engine implements Recognizer. A Recognizer receives an already
// cropped region and the Field it came from, and returns cleaned text.
//
// # Engines
//
//   - Tesseract: local OCR via gosseract/v2. Each crop is binarized by
//     Preprocess and read with a per-field character whitelist.
//   - Gemini: a Google Gemini vision model. The crop is upscaled but sent in
//     colour, with a prompt naming the field.
//
// # Prerequisites
//
// Tesseract and its English language data must be installed:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// # Cleanup
//
// Engine output is passed through CleanText. Collector numbers keep digits
// only, set codes keep at most three uppercase letters, and names lose
// trailing punctuation and stray single-letter words.
//
// # Thread Safety
//
// Tesseract serializes calls on its engine, so one value may be shared by
// several goroutines. Gemini is safe for concurrent use.
package ocr

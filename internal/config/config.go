// Package config gathers the scanner's settings from flags, CARD_SCANNER_*
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/ironsheep/card-scanner/internal/detection"
	"github.com/ironsheep/card-scanner/internal/logger"
)

// EnvPrefix is prepended to flag names to form environment variable names,
// e.g. CARD_SCANNER_CARD_SIZE.
const EnvPrefix = "CARD_SCANNER"

// Recognizer backends.
const (
	RecognizerTesseract = "tesseract"
	RecognizerGemini    = "gemini"
	RecognizerNone      = "none"
)

// ErrHelp is returned by Load when -h or --help was given.
var ErrHelp = ff.ErrHelp

// Config is the parsed command line.
type Config struct {
	File      string `validate:"required_without_all=MCP HTTPAddr"`
	OutputDir string
	Overlay   bool

	LayoutPath string
	CardSize   string `validate:"oneof=480x680 630x880"`
	CardType   string `validate:"required"`

	Recognizer  string `validate:"oneof=tesseract gemini none"`
	Language    string
	TessdataDir string
	GeminiKey   string `validate:"required_if=Recognizer gemini"`
	GeminiModel string

	Lookup        bool
	CachePath     string
	RedisAddr     string `validate:"omitempty,hostname_port"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	LogLevel string `validate:"oneof=trace debug info warn warning error"`
	LogFile  string

	MCP      bool
	HTTPAddr string

	ShowVersion bool
}

var validate = validator.New()

type bindings struct {
	fs  *ff.FlagSet
	cfg *Config
}

func newFlagSet(name string) bindings {
	cfg := &Config{}
	fs := ff.NewFlagSet(name)

	fs.StringVar(&cfg.File, 'f', "file", "", "card photograph to scan")
	fs.StringVar(&cfg.OutputDir, 'o', "output-dir", "", "directory for the normalized card and region crops")
	fs.BoolVar(&cfg.Overlay, 0, "overlay", "also write the card with region boxes drawn on it")

	fs.StringVar(&cfg.LayoutPath, 0, "layout", "", "JSON region layout file (default: modern frame)")
	fs.StringVar(&cfg.CardSize, 0, "card-size", "480x680", "normalized card size: 480x680 or 630x880")
	fs.StringVar(&cfg.CardType, 0, "card-type", "modern", "card frame type")

	fs.StringVar(&cfg.Recognizer, 0, "recognizer", RecognizerTesseract, "text recognizer: tesseract, gemini or none")
	fs.StringVar(&cfg.Language, 0, "language", "eng", "Tesseract language")
	fs.StringVar(&cfg.TessdataDir, 0, "tessdata", "", "Tesseract traineddata directory")
	fs.StringVar(&cfg.GeminiKey, 0, "gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	fs.StringVar(&cfg.GeminiModel, 0, "gemini-model", "", "Google Gemini model name")

	fs.BoolVar(&cfg.Lookup, 0, "lookup", "look the recognized card up on Scryfall")
	fs.StringVar(&cfg.CachePath, 0, "cache-path", "", "card cache database (default ~/.cache/card-scanner/cards.db)")
	fs.StringVar(&cfg.RedisAddr, 0, "redis-addr", "", "shared Redis card cache, host:port")
	fs.StringVar(&cfg.RedisPassword, 0, "redis-password", "", "Redis password")
	fs.IntVar(&cfg.RedisDB, 0, "redis-db", 0, "Redis database number")

	fs.StringVar(&cfg.LogLevel, 0, "log-level", "info", "log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFile, 0, "log-file", "", "also log to this file, rotated")

	fs.BoolVar(&cfg.MCP, 0, "mcp", "serve the MCP protocol on stdin/stdout")
	fs.StringVar(&cfg.HTTPAddr, 0, "http", "", "serve the HTTP API on this address, e.g. :8080")

	fs.BoolVar(&cfg.ShowVersion, 0, "version", "show version information")

	return bindings{fs: fs, cfg: cfg}
}

// Load parses args (without the program name). Values in a .env file in the
// working directory are exported first, so they behave like environment
// variables. Flags win over the environment.
//
// Returns ErrHelp when help was requested.
func Load(name string, args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn(logger.Fields{"error": err}, "Failed to read .env")
	}

	b := newFlagSet(name)
	if err := ff.Parse(b.fs, args, ff.WithEnvVarPrefix(EnvPrefix)); err != nil {
		return nil, err
	}

	cfg := b.cfg
	if cfg.GeminiKey == "" {
		cfg.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.ShowVersion {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Usage returns the flag help text.
func Usage(name string) string {
	return ffhelp.Flags(newFlagSet(name).fs).String()
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ParseCardSize parses a WIDTHxHEIGHT string.
func ParseCardSize(s string) (width, height int, err error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid card size %q: want WIDTHxHEIGHT", s)
	}
	width, err = strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid card width in %q", s)
	}
	height, err = strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid card height in %q", s)
	}
	return width, height, nil
}

// DetectorConfig returns the default detector tuning at the configured card
// size.
func (c *Config) DetectorConfig() (detection.DetectorConfig, error) {
	cfg := detection.DefaultDetectorConfig()
	if c.CardSize == "" {
		return cfg, nil
	}
	w, h, err := ParseCardSize(c.CardSize)
	if err != nil {
		return detection.DetectorConfig{}, err
	}
	cfg.TargetWidth = w
	cfg.TargetHeight = h
	return cfg, nil
}

// Layout returns the layout file's contents, or the modern layout when no
// file is configured.
func (c *Config) Layout() (detection.Layout, error) {
	if c.LayoutPath == "" {
		return detection.ModernLayout(), nil
	}
	return detection.LoadLayout(c.LayoutPath)
}

// LoggerOptions maps the logging flags onto logger.Options.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:    c.LogLevel,
		File:     c.LogFile,
		NoColors: c.LogFile != "",
	}
}

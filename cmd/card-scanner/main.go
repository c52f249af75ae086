package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/card-scanner/internal/carddb"
	"github.com/ironsheep/card-scanner/internal/config"
	"github.com/ironsheep/card-scanner/internal/httpapi"
	"github.com/ironsheep/card-scanner/internal/logger"
	"github.com/ironsheep/card-scanner/internal/ocr"
	"github.com/ironsheep/card-scanner/internal/server"
	"github.com/ironsheep/card-scanner/internal/workflow"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const name = "card-scanner"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Load(name, args)
	if errors.Is(err, config.ErrHelp) {
		fmt.Fprintln(stdout, config.Usage(name))
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, config.Usage(name))
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if cfg.ShowVersion {
		fmt.Fprintf(stdout, "%s %s\n", name, Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
		return 0
	}

	if _, err := logger.Init(cfg.LoggerOptions()); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if err := serve(ctx, cfg, stdin, stdout); err != nil {
		logger.Error(logger.Fields{"error": err}, "card-scanner failed")
		return 1
	}
	return 0
}

// serve builds the pipeline and runs the selected mode.
func serve(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	wfCfg, err := workflowConfig(cfg)
	if err != nil {
		return err
	}

	rec, err := newRecognizer(ctx, cfg)
	if err != nil {
		return err
	}
	if rec != nil {
		defer rec.Close()
	}

	client, err := newLookup(ctx, cfg)
	if err != nil {
		return err
	}

	// A nil *carddb.Client must not become a non-nil interface.
	var lookup workflow.Lookup
	if client != nil {
		defer client.Close()
		lookup = client
	}

	opts, err := detectorOptions(cfg)
	if err != nil {
		return err
	}
	wf, err := workflow.New(wfCfg, rec, lookup, opts...)
	if err != nil {
		return err
	}

	logger.Debug(logger.Fields{
		"version":    Version,
		"recognizer": cfg.Recognizer,
		"lookup":     cfg.Lookup,
		"card_size":  cfg.CardSize,
	}, "card-scanner starting")

	switch {
	case cfg.MCP:
		srvOpts := []server.Option{server.WithVersion(Version), server.WithIO(stdin, stdout)}
		if client != nil {
			srvOpts = append(srvOpts, server.WithLookup(client))
		}
		return server.New(wf, srvOpts...).Run(ctx)

	case cfg.HTTPAddr != "":
		apiOpts := []httpapi.Option{httpapi.WithVersion(Version)}
		if client != nil {
			apiOpts = append(apiOpts, httpapi.WithLookup(client))
		}
		return httpapi.New(wf, apiOpts...).Listen(ctx, cfg.HTTPAddr)

	default:
		return scanFile(ctx, wf, cfg, stdout)
	}
}

func scanFile(ctx context.Context, wf *workflow.Workflow, cfg *config.Config, stdout io.Writer) error {
	res, err := wf.Process(ctx, cfg.File)
	if err != nil {
		return err
	}

	if cfg.OutputDir != "" {
		if err := res.Save(cfg.OutputDir); err != nil {
			return err
		}
		logger.Info(logger.Fields{"dir": cfg.OutputDir, "crops": len(res.Crops)}, "Saved card images")
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func workflowConfig(cfg *config.Config) (workflow.Config, error) {
	det, err := cfg.DetectorConfig()
	if err != nil {
		return workflow.Config{}, err
	}
	layout, err := cfg.Layout()
	if err != nil {
		return workflow.Config{}, err
	}
	return workflow.Config{
		Detector: det,
		Layout:   layout,
		CardType: cfg.CardType,
		Overlay:  cfg.Overlay || cfg.MCP || cfg.HTTPAddr != "",
	}, nil
}

// newRecognizer returns nil when recognition is disabled.
func newRecognizer(ctx context.Context, cfg *config.Config) (ocr.Recognizer, error) {
	switch cfg.Recognizer {
	case config.RecognizerTesseract:
		return ocr.NewTesseract(cfg.Language, cfg.TessdataDir)
	case config.RecognizerGemini:
		return ocr.NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel)
	default:
		return nil, nil
	}
}

// newLookup returns nil when lookup is disabled. Redis is preferred over the
// local bolt file when an address is configured.
func newLookup(ctx context.Context, cfg *config.Config) (*carddb.Client, error) {
	if !cfg.Lookup {
		return nil, nil
	}

	var (
		cache carddb.Cache
		err   error
	)
	if cfg.RedisAddr != "" {
		cache, err = carddb.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	} else {
		path := cfg.CachePath
		if path == "" {
			path = carddb.DefaultCachePath()
		}
		cache, err = carddb.NewBoltCache(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open card cache: %w", err)
	}

	return carddb.NewClient(
		carddb.WithCache(cache),
		carddb.WithUserAgent(fmt.Sprintf("%s/%s", name, Version)),
	), nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/batch-geocoder-service/internal/adapter/bcgeo"
	"github.com/couchcryptid/batch-geocoder-service/internal/adapter/dummy"
	"github.com/couchcryptid/batch-geocoder-service/internal/batchfile"
	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
	"github.com/couchcryptid/batch-geocoder-service/internal/observability"
	"github.com/couchcryptid/batch-geocoder-service/internal/pipeline"
	"github.com/couchcryptid/batch-geocoder-service/internal/reproject"
)

// chunkSize bounds how many requests are held in flight between writes.
const chunkSize = 1000

type runOptions struct {
	input       string
	output      string
	format      string
	dryRun      bool
	concurrency int
	geocoderURL string
	apiKey      string
	timeout     time.Duration
	rateLimit   float64
	logLevel    string
}

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "batchgeocode",
		Short: "Geocode a file of BC address requests",
		Long: `batchgeocode runs every request in a CSV or JSONL file against the BC Address
Geocoder and writes one row per match in the fixed 38-attribute layout.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(createRunCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Geocode every request in --input and write the records to --output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "request file (\"-\" for stdin)")
	f.StringVarP(&opts.output, "output", "o", "-", "result file (\"-\" for stdout)")
	f.StringVar(&opts.format, "format", batchfile.FormatCSV, "file format: csv or jsonl")
	f.BoolVar(&opts.dryRun, "dry-run", false, "validate and project without calling the geocoder")
	f.IntVar(&opts.concurrency, "concurrency", 16, "requests geocoded in parallel")
	f.StringVar(&opts.geocoderURL, "geocoder-url", envOr("GEOCODER_URL", bcgeo.DefaultBaseURL), "geocoder base URL")
	f.StringVar(&opts.apiKey, "api-key", os.Getenv("GEOCODER_API_KEY"), "geocoder API key")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Second, "per-request geocoder timeout")
	f.Float64Var(&opts.rateLimit, "rate-limit", 0, "max geocoder requests per second (0 = unlimited)")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func run(ctx context.Context, opts runOptions, stderr io.Writer) error {
	if opts.concurrency < 1 || opts.concurrency > 256 {
		return fmt.Errorf("--concurrency must be between 1 and 256, got %d", opts.concurrency)
	}

	logger := observability.NewLoggerTo(stderr, opts.logLevel, "text")
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())

	in, closeIn, err := openInput(opts.input)
	if err != nil {
		return err
	}
	defer closeIn()

	reqs, err := batchfile.ReadRequests(in, opts.format)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	defer closeOut()

	rw, err := batchfile.NewResultWriter(out, opts.format)
	if err != nil {
		return err
	}

	var geocoder domain.Geocoder = dummy.New()
	if !opts.dryRun {
		client := bcgeo.NewClient(bcgeo.Options{
			BaseURL:   opts.geocoderURL,
			APIKey:    opts.apiKey,
			Timeout:   opts.timeout,
			RateLimit: opts.rateLimit,
		}, metrics, logger)
		geocoder = bcgeo.NewCachedGeocoder(client, 1000, nil, 0, metrics, logger)
	}
	processor := pipeline.NewProcessor(geocoder, reproject.New(), !opts.dryRun, opts.concurrency, metrics, logger)

	records, failed := 0, 0
	for start := 0; start < len(reqs); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+chunkSize, len(reqs))
		for _, res := range processor.ProcessBatch(ctx, reqs[start:end]) {
			if res.Failed() {
				failed++
				fmt.Fprintf(stderr, "%s: %s error: %v\n", res.RequestID, domain.ErrorLabel(res.Err), res.Err)
				continue
			}
			n, err := rw.Write(res)
			if err != nil {
				return err
			}
			records += n
		}
	}
	if err := rw.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	fmt.Fprintf(stderr, "requests: %d  records: %d  failed: %d\n", len(reqs), records, failed)
	if failed > 0 {
		return errors.New("some requests failed")
	}
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

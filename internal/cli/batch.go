package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/phishlens/internal/metrics"
	"github.com/ppiankov/phishlens/internal/model"
	"github.com/ppiankov/phishlens/internal/report"
	"github.com/ppiankov/phishlens/internal/worker"
)

var (
	concurrency  int
	rateLimit    float64
	burst        int
	outputDir    string
	batchTimeout time.Duration
	metricsAddr  string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Classify URLs from a file in parallel",
	Long: `Batch classifies many URLs concurrently:
- Read URLs from input file (one per line, # comments allowed)
- Classify them with a bounded worker pool
- Rate-limit requests per registrable domain
- Optionally write a JSON and Markdown report per URL

Example:
  phishlens batch urls.txt
  phishlens batch urls.txt --concurrency 8 --output-dir ./verdicts
  phishlens batch urls.txt --rate 1 --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().Float64Var(&rateLimit, "rate", 0, "requests per second per domain (default from config)")
	batchCmd.Flags().IntVar(&burst, "burst", 0, "per-domain burst size (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "write one JSON and Markdown report per URL into this directory")
	batchCmd.Flags().DurationVar(&batchTimeout, "batch-timeout", 30*time.Minute, "total timeout for the batch")
	batchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the batch runs")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	addFetchFlags(batchCmd)
	addScoringFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, log, classifier, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency.Workers = concurrency
	}
	if cmd.Flags().Changed("rate") {
		cfg.RateLimiting.RequestsPerSecond = rateLimit
	}
	if cmd.Flags().Changed("burst") {
		cfg.RateLimiting.BurstSize = burst
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  phishlens batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Rate:         %.2f/s per domain (burst %d)\n", cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	if outputDir != "" {
		fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	}
	if metricsAddr != "" {
		fmt.Fprintf(os.Stderr, "  Metrics:      http://%s/metrics\n", metricsAddr)
	}
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(classifier, cfg.Concurrency.Workers,
		cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	start := time.Now()
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Classified %d URLs in %v\n", len(results), time.Since(start).Round(time.Millisecond))

	r := report.NewRenderer(cfg.Output.IncludeFooter, cmd.OutOrStdout())
	r.RenderBatchSummary(results)

	if outputDir != "" {
		if err := writeBatchReports(r, results, outputDir); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Reports written to %s\n", outputDir)
	}

	var failed int
	for _, res := range results {
		if res.Error != nil {
			failed++
		}
	}
	if failed == len(results) && failed > 0 {
		return fmt.Errorf("all %d URLs failed", failed)
	}
	return nil
}

// batchEntry is one line of the aggregated batch output
type batchEntry struct {
	URL     string         `json:"url"`
	Verdict *model.Verdict `json:"verdict,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// writeBatchReports writes per-URL reports and an aggregated verdicts.json
func writeBatchReports(r *report.Renderer, results []*worker.ClassifyResult, dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries := make([]batchEntry, 0, len(results))
	var errs []error
	for _, res := range results {
		entry := batchEntry{URL: res.URL}
		if res.Error != nil {
			entry.Error = res.Error.Error()
			entries = append(entries, entry)
			continue
		}
		entry.Verdict = res.Verdict
		entries = append(entries, entry)

		base := filepath.Join(dir, reportName(res.Index, res.URL))
		if err := r.RenderJSON(res.Verdict, base+".json"); err != nil {
			errs = append(errs, err)
		}
		if err := r.RenderMarkdown(res.Verdict, base+".md"); err != nil {
			errs = append(errs, err)
		}
	}

	if err := r.RenderJSON(entries, filepath.Join(dir, "verdicts.json")); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9.-]+`)

// reportName builds a stable file name from the input position and host
func reportName(index int, rawURL string) string {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	host = strings.Trim(unsafeName.ReplaceAllString(host, "_"), "_.")
	if host == "" {
		host = "url"
	}
	if len(host) > 64 {
		host = host[:64]
	}
	return fmt.Sprintf("%04d-%s", index+1, host)
}

// serveMetrics starts a Prometheus scrape endpoint in the background
func serveMetrics(addr string, log *zap.Logger) *http.Server {
	metrics.Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	return srv
}

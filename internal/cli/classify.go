package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/phishlens/internal/model"
	"github.com/ppiankov/phishlens/internal/pipeline"
	"github.com/ppiankov/phishlens/internal/report"
)

var (
	outJSON          string
	outMD            string
	printJSON        bool
	timeout          time.Duration
	userAgent        string
	maxBytes         int64
	noRender         bool
	noCache          bool
	noFooter         bool
	insecureTLS      bool
	httpProxy        string
	httpsProxy       string
	semanticProvider string
	semanticModel    string
	threshold        float64
	whois            bool
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify <url>",
	Short: "Classify a single URL as phishing or legitimate",
	Long: `Classify fetches a URL and produces a fused phishing verdict:
- Fetch the page over HTTP, falling back to a headless browser
- Extract lexical, structural and behavioral features
- Score the feature vector and (optionally) the page text
- Fuse both scores against the decision threshold

Example:
  phishlens classify https://example.com
  phishlens classify https://paypa1-login.top/verify --json-out verdict.json --md-out verdict.md
  phishlens classify https://example.com --semantic-provider openai --semantic-model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	// Output flags
	classifyCmd.Flags().StringVar(&outJSON, "json-out", "", "write the verdict as JSON to this path")
	classifyCmd.Flags().StringVar(&outMD, "md-out", "", "write the verdict as Markdown to this path")
	classifyCmd.Flags().BoolVar(&printJSON, "json", false, "print the verdict as JSON instead of a summary")
	classifyCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	addFetchFlags(classifyCmd)
	addScoringFlags(classifyCmd)
}

// addFetchFlags registers the flags shared by classify and batch
func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "HTTP fetch timeout")
	cmd.Flags().StringVar(&userAgent, "ua", model.DefaultUserAgent, "HTTP User-Agent")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 2_000_000, "max response bytes to read")
	cmd.Flags().BoolVar(&noRender, "no-render", false, "disable the headless browser fallback")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the verdict cache")
	cmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification")
	cmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

func addScoringFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&semanticProvider, "semantic-provider", "", "text classifier provider (openai, anthropic, ollama, http)")
	cmd.Flags().StringVar(&semanticModel, "semantic-model", "", "text classifier model name")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.5, "phishing iff the final score is above this value")
	cmd.Flags().BoolVar(&whois, "whois", false, "look up domain registration age")
}

// applyFlags overrides config values with the flags the user actually set
func applyFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.HTTP.Timeout = timeout
	}
	if flags.Changed("ua") {
		cfg.HTTP.UserAgent = userAgent
	}
	if flags.Changed("max-bytes") {
		cfg.HTTP.MaxBodyBytes = maxBytes
	}
	if flags.Changed("insecure") {
		cfg.HTTP.InsecureTLS = insecureTLS
	}
	if flags.Changed("http-proxy") {
		cfg.HTTP.HTTPProxy = httpProxy
	}
	if flags.Changed("https-proxy") {
		cfg.HTTP.HTTPSProxy = httpsProxy
	}
	if noRender {
		cfg.Render.Enabled = false
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if flags.Changed("no-footer") {
		cfg.Output.IncludeFooter = !noFooter
	}
	if flags.Changed("semantic-provider") {
		cfg.Semantic.Provider = semanticProvider
	}
	if flags.Changed("semantic-model") {
		cfg.Semantic.Model = semanticModel
	}
	if flags.Changed("threshold") {
		cfg.Fusion.Threshold = threshold
	}
	if flags.Changed("whois") {
		cfg.Extract.Whois.Enabled = whois
	}
}

// setup loads config, applies flags and builds the logger and classifier
func setup(cmd *cobra.Command) (*model.Config, *zap.Logger, *pipeline.Classifier, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	applyFlags(cmd, cfg)

	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	classifier, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, nil, err
	}
	return cfg, log, classifier, nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	url := args[0]

	cfg, log, classifier, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Classifying: %s\n", url)
		fmt.Fprintf(os.Stderr, "Semantic:    %s\n", providerLabel(cfg, classifier.SemanticStatus(ctx)))
		fmt.Fprintf(os.Stderr, "Structured:  %s\n", cfg.Structured.Provider)
		fmt.Fprintf(os.Stderr, "Render:      %v\n", cfg.Render.Enabled)
		fmt.Fprintf(os.Stderr, "Cache:       %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	verdict, err := classifier.Classify(ctx, url)
	if err != nil {
		return fmt.Errorf("classify failed: %w", err)
	}

	r := report.NewRenderer(cfg.Output.IncludeFooter, cmd.OutOrStdout())
	if printJSON {
		if err := r.WriteJSON(cmd.OutOrStdout(), verdict); err != nil {
			return err
		}
	} else {
		r.RenderSummary(verdict)
	}

	if outJSON != "" {
		if err := r.RenderJSON(verdict, outJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", outJSON)
	}
	if outMD != "" {
		if err := r.RenderMarkdown(verdict, outMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", outMD)
	}

	return nil
}

// providerLabel prefixes the live provider status with the configured model
func providerLabel(cfg *model.Config, status string) string {
	if cfg.Semantic.Provider == "" || cfg.Semantic.Model == "" {
		return status
	}
	return cfg.Semantic.Model + " via " + status
}

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/phishlens/internal/model"
)

func TestSetDefaults_EnvOverridesNestedKeys(t *testing.T) {
	t.Setenv("PHISHLENS_FUSION_THRESHOLD", "0.7")
	t.Setenv("PHISHLENS_HTTP_TIMEOUT", "9s")
	t.Setenv("PHISHLENS_SEMANTIC_PROVIDER", "ollama")
	t.Setenv("PHISHLENS_SEMANTIC_BASE_URL", "http://localhost:11434")
	t.Setenv("PHISHLENS_SEMANTIC_API_KEY", "sk-env")
	t.Setenv("PHISHLENS_STRUCTURED_ENDPOINT", "http://scorer.local/score")
	t.Setenv("PHISHLENS_HTTP_HTTPS_PROXY", "http://proxy.local:3128")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := setDefaults(v, model.DefaultConfig()); err != nil {
		t.Fatalf("setDefaults: %v", err)
	}

	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if cfg.Fusion.Threshold != 0.7 {
		t.Errorf("threshold = %v, want 0.7", cfg.Fusion.Threshold)
	}
	if cfg.HTTP.Timeout != 9*time.Second {
		t.Errorf("http timeout = %v, want 9s", cfg.HTTP.Timeout)
	}
	if cfg.Semantic.Provider != "ollama" {
		t.Errorf("semantic provider = %q", cfg.Semantic.Provider)
	}
	if cfg.Semantic.BaseURL != "http://localhost:11434" {
		t.Errorf("semantic base url = %q", cfg.Semantic.BaseURL)
	}
	if cfg.Semantic.APIKey != "sk-env" {
		t.Errorf("semantic api key = %q", cfg.Semantic.APIKey)
	}
	if cfg.Structured.Endpoint != "http://scorer.local/score" {
		t.Errorf("structured endpoint = %q", cfg.Structured.Endpoint)
	}
	if cfg.HTTP.HTTPSProxy != "http://proxy.local:3128" {
		t.Errorf("https proxy = %q", cfg.HTTP.HTTPSProxy)
	}

	def := model.DefaultConfig()
	if cfg.Fusion.SemanticWeight != def.Fusion.SemanticWeight {
		t.Errorf("semantic weight = %v, want default %v", cfg.Fusion.SemanticWeight, def.Fusion.SemanticWeight)
	}
	if cfg.Cache.DiskTTL != def.Cache.DiskTTL {
		t.Errorf("disk ttl = %v, want default %v", cfg.Cache.DiskTTL, def.Cache.DiskTTL)
	}
	if len(cfg.Extract.Brands) != len(def.Extract.Brands) {
		t.Errorf("brands = %v", cfg.Extract.Brands)
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addFetchFlags(cmd)
	addScoringFlags(cmd)
	cmd.Flags().BoolVar(&noFooter, "no-footer", false, "")

	if err := cmd.ParseFlags([]string{
		"--timeout", "3s",
		"--no-render",
		"--semantic-provider", "anthropic",
		"--threshold", "0.65",
		"--no-footer",
	}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	t.Cleanup(func() {
		noRender, noCache, noFooter = false, false, false
	})

	cfg := model.DefaultConfig()
	applyFlags(cmd, cfg)

	if cfg.HTTP.Timeout != 3*time.Second {
		t.Errorf("timeout = %v", cfg.HTTP.Timeout)
	}
	if cfg.Render.Enabled {
		t.Error("render should be disabled")
	}
	if cfg.Semantic.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.Semantic.Provider)
	}
	if cfg.Fusion.Threshold != 0.65 {
		t.Errorf("threshold = %v", cfg.Fusion.Threshold)
	}
	if cfg.Output.IncludeFooter {
		t.Error("footer should be disabled")
	}
	if cfg.HTTP.UserAgent != model.DefaultUserAgent {
		t.Errorf("unset flag changed user agent to %q", cfg.HTTP.UserAgent)
	}
	if !cfg.Cache.Enabled {
		t.Error("unset --no-cache disabled the cache")
	}
}

func TestInitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := initConfigFile(path); err != nil {
		t.Fatalf("initConfigFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# phishlens configuration") {
		t.Errorf("missing header: %.40q", data)
	}

	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not YAML: %v", err)
	}
	if cfg.Fusion.OnFailure != model.OnFailureRenormalize {
		t.Errorf("on_failure = %q", cfg.Fusion.OnFailure)
	}
	if cfg.HTTP.Timeout != model.DefaultConfig().HTTP.Timeout {
		t.Errorf("http timeout = %v", cfg.HTTP.Timeout)
	}

	if err := initConfigFile(path); err == nil {
		t.Error("expected error when the file already exists")
	}
}

func TestRedact(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Semantic.APIKey = "sk-secret"

	var buf bytes.Buffer
	if err := writeConfig(&buf, redact(cfg)); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "sk-secret") {
		t.Error("api key leaked into output")
	}
	if cfg.Semantic.APIKey != "sk-secret" {
		t.Error("redact modified the original config")
	}
}

func TestReportName(t *testing.T) {
	tests := []struct {
		index int
		url   string
		want  string
	}{
		{0, "https://login.example.com/verify?x=1", "0001-login.example.com"},
		{41, "http://192.168.0.1:8080/", "0042-192.168.0.1"},
		{2, "not a url", "0003-not_a_url"},
		{3, "", "0004-url"},
	}
	for _, tt := range tests {
		if got := reportName(tt.index, tt.url); got != tt.want {
			t.Errorf("reportName(%d, %q) = %q, want %q", tt.index, tt.url, got, tt.want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := buf.String(); got != "phishlens v"+Version+"\n" {
		t.Errorf("version output = %q", got)
	}
}

func TestProviderLabel(t *testing.T) {
	tests := []struct {
		provider, model, status string
		want                    string
	}{
		{"", "", "disabled", "disabled"},
		{"ollama", "", "ollama", "ollama"},
		{"openai", "gpt-4o-mini", "openai", "gpt-4o-mini via openai"},
		{"ollama", "llama3", "ollama (unreachable)", "llama3 via ollama (unreachable)"},
	}
	for _, tt := range tests {
		cfg := model.DefaultConfig()
		cfg.Semantic.Provider = tt.provider
		cfg.Semantic.Model = tt.model
		if got := providerLabel(cfg, tt.status); got != tt.want {
			t.Errorf("providerLabel(%q, %q, %q) = %q, want %q", tt.provider, tt.model, tt.status, got, tt.want)
		}
	}
}

package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/phishlens/internal/extract"
	"github.com/ppiankov/phishlens/internal/logger"
	"github.com/ppiankov/phishlens/internal/model"
	"github.com/ppiankov/phishlens/internal/util"
	"go.uber.org/zap"
)

const (
	maxRedirects    = 3
	defaultMaxBytes = 2_000_000
)

// HTTPFetcher is the primary strategy: a single plain GET
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
	logger     *zap.Logger
}

// NewHTTPFetcher creates the primary fetcher from the HTTP config
func NewHTTPFetcher(cfg model.HTTPConfig, log *zap.Logger) *HTTPFetcher {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = model.DefaultUserAgent
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	f := &HTTPFetcher{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  cfg.MaxBodyBytes,
		logger:    logger.OrNop(log),
	}
	if f.maxBytes <= 0 {
		f.maxBytes = defaultMaxBytes
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(userAgent, cfg.Timeout)
	}
	return f
}

// Fetch retrieves rawURL once. Transport errors, non-markup responses and
// error statuses without a body are Unavailable; parsed pages that look
// script-gated are returned as a Gated document. An error status with a
// markup body is parsed and keeps its code in Meta.StatusCode.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) model.FetchResult {
	if f.robots != nil && !f.robots.IsAllowed(ctx, rawURL) {
		return model.BlockedResult("disallowed by robots.txt", model.StrategyHTTP)
	}

	start := time.Now()
	doc, err := f.fetch(ctx, rawURL)
	if err != nil {
		f.logger.Debug("primary fetch failed", zap.String("url", rawURL), zap.Error(err))
		return model.UnavailableResult(err.Error(), model.StrategyHTTP)
	}
	doc.Meta.Duration = time.Since(start)

	markGated(doc)
	if doc.Gated {
		f.logger.Debug("primary fetch looks script-gated",
			zap.String("url", rawURL), zap.String("reason", doc.GateReason))
	}
	return model.DocumentResult(doc)
}

func (f *HTTPFetcher) fetch(ctx context.Context, rawURL string) (*model.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	meta := model.FetchMeta{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Headers:     make(map[string]string),
	}

	// Store selected headers
	for _, key := range []string{"Server", "Content-Length", "Set-Cookie"} {
		if val := resp.Header.Get(key); val != "" {
			meta.Headers[key] = val
		}
	}

	// Error pages with a markup body are parsed like any other page
	errorStatus := resp.StatusCode < 200 || resp.StatusCode >= 300
	if errorStatus && !isMarkup(meta.ContentType) {
		return nil, statusError(resp.StatusCode)
	}
	if !isMarkup(meta.ContentType) {
		return nil, fmt.Errorf("unsupported content type %q", meta.ContentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	meta.Bytes = int64(len(body))
	if errorStatus && len(bytes.TrimSpace(body)) == 0 {
		return nil, statusError(resp.StatusCode)
	}

	doc, err := extract.ParseDocument(bytes.NewReader(body), resp.Request.URL.String(), model.StrategyHTTP)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	doc.Meta = meta
	return doc, nil
}

func statusError(code int) error {
	return fmt.Errorf("unexpected status: %d %s", code, http.StatusText(code))
}

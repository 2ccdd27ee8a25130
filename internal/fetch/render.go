package fetch

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ppiankov/phishlens/internal/extract"
	"github.com/ppiankov/phishlens/internal/logger"
	"github.com/ppiankov/phishlens/internal/model"
	"go.uber.org/zap"
)

const (
	defaultRenderTimeout = 10 * time.Second
	defaultIdleWindow    = 500 * time.Millisecond
	idlePollInterval     = 50 * time.Millisecond
)

// RenderFetcher loads the page in headless Chrome and captures the DOM
// once the network has gone quiet.
type RenderFetcher struct {
	timeout    time.Duration
	idleWindow time.Duration
	userAgent  string
	chromePath string
	logger     *zap.Logger
}

// NewRenderFetcher creates the rendering fallback
func NewRenderFetcher(cfg model.RenderConfig, userAgent string, log *zap.Logger) *RenderFetcher {
	r := &RenderFetcher{
		timeout:    cfg.Timeout,
		idleWindow: cfg.IdleWindow,
		userAgent:  userAgent,
		chromePath: cfg.ChromePath,
		logger:     logger.OrNop(log),
	}
	if r.timeout <= 0 {
		r.timeout = defaultRenderTimeout
	}
	if r.idleWindow <= 0 {
		r.idleWindow = defaultIdleWindow
	}
	if r.userAgent == "" {
		r.userAgent = model.DefaultUserAgent
	}
	// Use CHROME_PATH if set (for Docker/cloud environments)
	if r.chromePath == "" {
		r.chromePath = os.Getenv("CHROME_PATH")
	}
	return r
}

func (r *RenderFetcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.UserAgent(r.userAgent),
	)
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	return opts
}

// Fetch renders rawURL within the render budget
func (r *RenderFetcher) Fetch(ctx context.Context, rawURL string) model.FetchResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(r.logger.Sugar().Debugf))
	defer browserCancel()

	idle := newIdleTracker()
	chromedp.ListenTarget(browserCtx, idle.observe)

	var markup, location string
	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		idle.wait(r.idleWindow, r.timeout/2),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &markup),
	)
	if err != nil {
		r.logger.Debug("render failed", zap.String("url", rawURL), zap.Error(err))
		return model.UnavailableResult(fmt.Sprintf("render: %v", err), model.StrategyRender)
	}
	if location == "" {
		location = rawURL
	}

	doc, err := extract.ParseDocument(strings.NewReader(markup), location, model.StrategyRender)
	if err != nil {
		return model.UnavailableResult(fmt.Sprintf("parse: %v", err), model.StrategyRender)
	}
	doc.Meta = model.FetchMeta{
		Bytes:    int64(len(markup)),
		Duration: time.Since(start),
	}
	markGated(doc)

	return model.DocumentResult(doc)
}

// idleTracker counts in-flight network requests of a browser tab
type idleTracker struct {
	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	lastSeen time.Time
	now      func() time.Time
}

func newIdleTracker() *idleTracker {
	return &idleTracker{
		inflight: make(map[network.RequestID]struct{}),
		lastSeen: time.Now(),
		now:      time.Now,
	}
}

func (t *idleTracker) observe(ev interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.inflight[e.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(t.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(t.inflight, e.RequestID)
	default:
		return
	}
	t.lastSeen = t.now()
}

// quiet reports whether no request has been in flight for window
func (t *idleTracker) quiet(window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && t.now().Sub(t.lastSeen) >= window
}

// wait blocks until the network is quiet or limit has elapsed.
// Giving up on idleness is not an error; the DOM is captured as it is.
func (t *idleTracker) wait(window, limit time.Duration) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		deadline := time.NewTimer(limit)
		defer deadline.Stop()
		ticker := time.NewTicker(idlePollInterval)
		defer ticker.Stop()

		for !t.quiet(window) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-deadline.C:
				return nil
			case <-ticker.C:
			}
		}
		return nil
	}
}

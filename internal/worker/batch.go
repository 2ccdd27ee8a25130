package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/phishlens/internal/model"
)

// Classifier produces a verdict for one URL
type Classifier interface {
	Classify(ctx context.Context, url string) (*model.Verdict, error)
}

// ClassifyJob classifies one URL of a batch
type ClassifyJob struct {
	Index      int
	URL        string
	Classifier Classifier
	Limiter    *Limiter
}

// Execute waits for the domain's rate budget, then classifies the URL
func (j *ClassifyJob) Execute(ctx context.Context) Result {
	res := &ClassifyResult{Index: j.Index, URL: j.URL}

	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.URL); err != nil {
			res.Error = fmt.Errorf("rate limit: %w", err)
			return res
		}
	}

	res.Verdict, res.Error = j.Classifier.Classify(ctx, j.URL)
	return res
}

// ClassifyResult is the outcome of one batch entry
type ClassifyResult struct {
	Index   int
	URL     string
	Verdict *model.Verdict
	Error   error
}

// GetError returns the error from the classification
func (r *ClassifyResult) GetError() error {
	return r.Error
}

// BatchProcessor classifies many URLs concurrently
type BatchProcessor struct {
	classifier  Classifier
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a batch processor. requestsPerSecond applies per
// registrable domain; zero disables rate limiting.
func NewBatchProcessor(classifier Classifier, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	return &BatchProcessor{
		classifier:  classifier,
		concurrency: concurrency,
		limiter:     NewLimiter(requestsPerSecond, burst),
	}
}

// ProcessURLs classifies urls and returns one result per input, in input order.
// URLs never submitted because ctx ended carry ctx's error.
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []*ClassifyResult {
	if len(urls) == 0 {
		return []*ClassifyResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, url := range urls {
		job := &ClassifyJob{
			Index:      i,
			URL:        url,
			Classifier: b.classifier,
			Limiter:    b.limiter,
		}
		if !pool.Submit(job) {
			break
		}
	}

	ordered := make([]*ClassifyResult, len(urls))
	for _, result := range pool.Wait() {
		r := result.(*ClassifyResult)
		ordered[r.Index] = r
	}

	for i, r := range ordered {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			ordered[i] = &ClassifyResult{Index: i, URL: urls[i], Error: err}
		}
	}

	return ordered
}

// ProcessFile reads URLs from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ClassifyResult, error) {
	urls, err := ReadURLsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read URLs: %w", err)
	}

	return b.ProcessURLs(ctx, urls), nil
}

// ReadURLsFromFile reads URLs from a file (one per line)
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}

package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/phishlens/internal/model"
)

// MockClassifier implements Classifier
type MockClassifier struct {
	ShouldError bool
	Delay       time.Duration
	calls       int32
}

func (m *MockClassifier) Classify(ctx context.Context, url string) (*model.Verdict, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.ShouldError {
		return nil, errors.New("classify error")
	}
	return &model.Verdict{URL: url, Label: model.LabelLegitimate}, nil
}

func writeURLFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessURLs(t *testing.T) {
	classifier := &MockClassifier{Delay: 5 * time.Millisecond}
	processor := NewBatchProcessor(classifier, 3, 0, 0)

	urls := []string{
		"http://example.com", "http://google.com", "http://bing.com",
		"http://a.example.org", "http://b.example.org", "http://c.example.org",
	}

	results := processor.ProcessURLs(context.Background(), urls)
	if len(results) != len(urls) {
		t.Fatalf("expected %d results, got %d", len(urls), len(results))
	}

	for i, res := range results {
		if res.URL != urls[i] || res.Index != i {
			t.Errorf("result %d out of order: %+v", i, res)
		}
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.URL, res.Error)
		}
		if res.Verdict == nil || res.Verdict.URL != urls[i] {
			t.Errorf("expected verdict for %s", urls[i])
		}
	}
}

func TestBatchProcessor_ManyJobs(t *testing.T) {
	classifier := &MockClassifier{}
	processor := NewBatchProcessor(classifier, 2, 0, 0)

	urls := make([]string, 200)
	for i := range urls {
		urls[i] = "http://example.com/" + string(rune('a'+i%26))
	}

	done := make(chan []*ClassifyResult)
	go func() { done <- processor.ProcessURLs(context.Background(), urls) }()

	select {
	case results := <-done:
		if len(results) != len(urls) {
			t.Fatalf("expected %d results, got %d", len(urls), len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("batch larger than the queue deadlocked")
	}
}

func TestBatchProcessor_ProcessURLs_Error(t *testing.T) {
	processor := NewBatchProcessor(&MockClassifier{ShouldError: true}, 2, 0, 0)

	results := processor.ProcessURLs(context.Background(), []string{"http://example.com"})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Verdict != nil {
		t.Error("expected nil verdict on error")
	}
}

func TestBatchProcessor_ProcessURLs_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockClassifier{}, 2, 0, 0)

	results := processor.ProcessURLs(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	classifier := &MockClassifier{Delay: time.Second}
	processor := NewBatchProcessor(classifier, 1, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	urls := []string{"http://a.com", "http://b.com", "http://c.com", "http://d.com", "http://e.com"}
	results := processor.ProcessURLs(ctx, urls)

	if len(results) != len(urls) {
		t.Fatalf("expected a result per URL, got %d", len(results))
	}
	for _, res := range results {
		if res.Error == nil {
			t.Errorf("expected error for %s after cancellation", res.URL)
		}
	}
}

// gatedClassifier answers "fast" URLs at once and holds the rest until ctx ends
type gatedClassifier struct {
	fast     map[string]bool
	answered chan string
}

func (g *gatedClassifier) Classify(ctx context.Context, url string) (*model.Verdict, error) {
	if g.fast[url] {
		g.answered <- url
		return &model.Verdict{URL: url, Label: model.LabelPhishing}, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBatchProcessor_OrderUnderCancellation(t *testing.T) {
	urls := []string{
		"http://paypa1-login.example/a", "http://held.example/b",
		"http://secure-verify.example/c", "http://held.example/d",
		"http://account-update.example/e", "http://held.example/f",
	}
	classifier := &gatedClassifier{
		fast:     map[string]bool{urls[0]: true, urls[2]: true, urls[4]: true},
		answered: make(chan string, len(urls)),
	}
	processor := NewBatchProcessor(classifier, len(urls), 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan []*ClassifyResult, 1)
	go func() { done <- processor.ProcessURLs(ctx, urls) }()

	for i := 0; i < 3; i++ {
		select {
		case <-classifier.answered:
		case <-time.After(5 * time.Second):
			t.Fatal("fast URLs were not classified")
		}
	}
	cancel()

	var results []*ClassifyResult
	select {
	case results = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not finish after cancellation")
	}

	if len(results) != len(urls) {
		t.Fatalf("expected %d results, got %d", len(urls), len(results))
	}
	for i, res := range results {
		if res.Index != i || res.URL != urls[i] {
			t.Errorf("result %d out of order: index=%d url=%s", i, res.Index, res.URL)
		}
		if classifier.fast[urls[i]] {
			if res.Error != nil || res.Verdict == nil || res.Verdict.Label != model.LabelPhishing {
				t.Errorf("%s should keep its verdict, got %+v", urls[i], res)
			}
			continue
		}
		if !errors.Is(res.Error, context.Canceled) {
			t.Errorf("%s error = %v, want context.Canceled", urls[i], res.Error)
		}
	}
}

func TestBatchProcessor_RateLimitedPerDomain(t *testing.T) {
	classifier := &MockClassifier{}
	processor := NewBatchProcessor(classifier, 4, 10, 1)

	urls := []string{"http://a.phish.example/", "http://b.phish.example/", "http://c.phish.example/"}

	start := time.Now()
	results := processor.ProcessURLs(context.Background(), urls)
	elapsed := time.Since(start)

	for _, res := range results {
		if res.Error != nil {
			t.Fatalf("unexpected error: %v", res.Error)
		}
	}
	// Three requests against one registrable domain at 10 rps with burst 1
	if elapsed < 150*time.Millisecond {
		t.Errorf("expected subdomains to share a budget, batch took %v", elapsed)
	}
}

func TestReadURLsFromFile(t *testing.T) {
	path := writeURLFile(t, "http://example.com\n# comment\nhttps://google.com\n   \nhttp://bing.com   ")

	urls, err := ReadURLsFromFile(path)
	if err != nil {
		t.Fatalf("ReadURLsFromFile failed: %v", err)
	}

	expected := []string{"http://example.com", "https://google.com", "http://bing.com"}
	if len(urls) != len(expected) {
		t.Fatalf("expected %d URLs, got %d", len(expected), len(urls))
	}
	for i, url := range urls {
		if url != expected[i] {
			t.Errorf("expected URL %s at index %d, got %s", expected[i], i, url)
		}
	}
}

func TestReadURLsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadURLsFromFile("non_existent_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestReadURLsFromFile_Deduplication(t *testing.T) {
	path := writeURLFile(t, "http://example.com\nhttp://example.com")

	urls, err := ReadURLsFromFile(path)
	if err != nil {
		t.Fatalf("ReadURLsFromFile failed: %v", err)
	}
	if len(urls) != 1 {
		t.Errorf("expected 1 URL after deduplication, got %d", len(urls))
	}
}

func TestClassifyResult_GetError(t *testing.T) {
	r1 := &ClassifyResult{URL: "http://example.com"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("classify failed")
	r2 := &ClassifyResult{URL: "http://example.com", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeURLFile(t, "http://example.com\nhttps://google.com\n# comment\n\nhttp://bing.com\n")

	processor := NewBatchProcessor(&MockClassifier{}, 2, 0, 0)

	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&MockClassifier{}, 2, 0, 0)

	if _, err := processor.ProcessFile(context.Background(), "no_such_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

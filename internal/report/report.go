// Package report renders verdicts as JSON, Markdown and terminal summaries.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ppiankov/phishlens/internal/model"
)

// Renderer writes verdict reports. Summaries go to out; JSON and Markdown
// go to files or arbitrary writers.
type Renderer struct {
	includeFooter bool
	out           io.Writer
}

// NewRenderer creates a renderer. A nil out writes summaries to stdout.
func NewRenderer(includeFooter bool, out io.Writer) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{includeFooter: includeFooter, out: out}
}

// WriteJSON encodes v as indented JSON
func (r *Renderer) WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// RenderJSON writes a verdict (or a slice of verdicts) to path
func (r *Renderer) RenderJSON(v any, path string) error {
	return writeFile(path, func(w io.Writer) error {
		return r.WriteJSON(w, v)
	})
}

// RenderMarkdown writes the Markdown report for v to path
func (r *Renderer) RenderMarkdown(v *model.Verdict, path string) error {
	return writeFile(path, func(w io.Writer) error {
		return r.WriteMarkdown(w, v)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

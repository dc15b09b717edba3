package processing

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Registry runs a fixed, ordered chain of processors against a capture.
type Registry struct {
	processors []Processor
	enabled    map[string]bool // defaults to true when absent
}

// NewRegistry builds a Registry from an ordered processor chain.
func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: processors, enabled: make(map[string]bool)}
	names := make([]string, len(processors))
	for i, p := range processors {
		names[i] = p.Name()
	}
	slog.Info("processor registry initialized", "processors", names)
	return r
}

// SetEnabled toggles a named processor on or off. Unknown names are a no-op
// since config may list processors not compiled into this build.
func (r *Registry) SetEnabled(name string, enabled bool) {
	r.enabled[name] = enabled
}

func (r *Registry) isEnabled(name string) bool {
	v, ok := r.enabled[name]
	if !ok {
		return true
	}
	return v
}

// ProcessAll runs every enabled processor in order, propagating the first
// error (per spec, processor errors must propagate so the processing queue's
// generic retry logic engages rather than being swallowed here).
func (r *Registry) ProcessAll(ctx context.Context, pc *Context) (Aggregated, error) {
	start := time.Now()

	var enabled []Processor
	for _, p := range r.processors {
		if r.isEnabled(p.Name()) {
			enabled = append(enabled, p)
		}
	}

	results := make([]Result, 0, len(enabled))
	for _, p := range enabled {
		procStart := time.Now()
		result, err := p.Process(ctx, pc)
		if err != nil {
			return Aggregated{}, fmt.Errorf("processing: processor %s: %w", p.Name(), err)
		}
		elapsed := time.Since(procStart)

		if result.Confidence == 0 || !result.ShouldUpload {
			slog.Warn("processor rejected capture", "processor", p.Name(), "elapsed", elapsed,
				"confidence", result.Confidence, "should_upload", result.ShouldUpload, "reason", result.Reason)
		} else {
			slog.Info("processor completed", "processor", p.Name(), "elapsed", elapsed,
				"confidence", result.Confidence, "reason", result.Reason)
		}

		results = append(results, result)
	}

	return aggregate(results, time.Since(start)), nil
}

// aggregate combines processor results: should-upload is the AND of every
// result, extracted data is merged with a "<processor>.<key>" prefix to
// avoid key collisions, and the skip reason is the first rejection found.
func aggregate(results []Result, total time.Duration) Aggregated {
	shouldUpload := true
	combined := make(map[string]any)
	var skipReason string

	for _, r := range results {
		if !r.ShouldUpload {
			shouldUpload = false
			if skipReason == "" {
				skipReason = fmt.Sprintf("%s: %s", r.ProcessorName, r.Reason)
			}
		}
		for k, v := range r.ExtractedData {
			combined[fmt.Sprintf("%s.%s", r.ProcessorName, k)] = v
		}
	}

	if len(results) == 0 {
		shouldUpload = true
	}

	return Aggregated{
		ShouldUpload:  shouldUpload,
		ExtractedData: combined,
		AllResults:    results,
		TotalTime:     total,
		SkipReason:    skipReason,
	}
}

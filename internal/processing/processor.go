// Package processing implements the C5 processing queue: an ordered chain
// of stateless image processors run against each capture, wrapped in a
// internal/queue.Queue[T] worker pool that fails open (proceeds with the
// raw image) once a job exhausts its retries.
package processing

import (
	"context"
	"time"
)

// Result is what one processor returns after examining a capture.
type Result struct {
	ShouldUpload          bool
	ExtractedData         map[string]any
	Confidence            float64
	Reason                string
	ProcessingTimeSeconds float64
	ProcessorName         string
}

// Aggregated combines every processor's Result for one capture.
type Aggregated struct {
	ShouldUpload  bool
	ExtractedData map[string]any
	AllResults    []Result
	TotalTime     time.Duration
	SkipReason    string
}

// Context is handed to every processor in the chain.
type Context struct {
	TaskID            string
	ImagePath         string
	WorkingImagePath  string
	WorkingDir        string
	TelescopeName     string
	GroundStationName string
}

// Processor analyzes a capture and decides whether it should be uploaded.
// Processors must be stateless and safe to run concurrently across jobs;
// exceptions (returned errors) propagate to the processing queue's generic
// retry logic, per spec.
type Processor interface {
	Name() string
	FriendlyName() string
	Process(ctx context.Context, pc *Context) (Result, error)
}

package processing

import (
	"context"
	"time"
)

// QualityChecker is a reference processor demonstrating the chain contract:
// it flags saturated or too-dark captures for rejection. A real deployment
// would check FWHM, SNR, star count, and tracking elongation — none of
// which this core implements, since the concrete image-analysis algorithms
// are an external collaborator's concern, not the orchestration core's.
type QualityChecker struct {
	// PixelStats supplies basic statistics for the capture at imagePath.
	// Swappable so tests don't need a real FITS decoder wired in.
	PixelStats func(imagePath string) (max, mean, stddev float64, err error)
}

func (p *QualityChecker) Name() string         { return "quality_checker" }
func (p *QualityChecker) FriendlyName() string { return "Quality Checker" }

const (
	saturationThreshold = 65535 * 0.95
	tooDarkThreshold    = 100.0
)

func (p *QualityChecker) Process(ctx context.Context, pc *Context) (Result, error) {
	start := time.Now()

	path := pc.WorkingImagePath
	if path == "" {
		path = pc.ImagePath
	}
	maxVal, mean, stddev, err := p.PixelStats(path)
	if err != nil {
		return Result{}, err
	}

	extracted := map[string]any{
		"max_pixel_value":  maxVal,
		"mean_pixel_value": mean,
		"std_pixel_value":  stddev,
	}

	switch {
	case maxVal >= saturationThreshold:
		return Result{
			ShouldUpload: false, ExtractedData: extracted, Confidence: 0.0,
			Reason: "image saturated", ProcessingTimeSeconds: time.Since(start).Seconds(),
			ProcessorName: p.Name(),
		}, nil
	case mean < tooDarkThreshold:
		return Result{
			ShouldUpload: false, ExtractedData: extracted, Confidence: 0.2,
			Reason: "image too dark (no signal)", ProcessingTimeSeconds: time.Since(start).Seconds(),
			ProcessorName: p.Name(),
		}, nil
	default:
		return Result{
			ShouldUpload: true, ExtractedData: extracted, Confidence: 0.9,
			Reason: "image quality acceptable", ProcessingTimeSeconds: time.Since(start).Seconds(),
			ProcessorName: p.Name(),
		}, nil
	}
}

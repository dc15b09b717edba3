package processing

import (
	"context"
	"time"
)

// PlateSolveResult is what an external astrometric solver reports for one
// capture.
type PlateSolveResult struct {
	RACenterDeg  float64
	DecCenterDeg float64
	PixelScale   float64
}

// PlateSolver delegates to an external astrometric-calibration collaborator
// (e.g. astrometry.net, Tetra3/Pixelemon) — the algorithm itself is outside
// this core's scope; this processor only adapts that collaborator's result
// into the chain's extracted-data contract so the telescope task driver can
// read `plate_solver.ra_center_deg`/`dec_center_deg` and feed the mount
// model's pointing-error correction.
type PlateSolver struct {
	// Solve is the swappable astrometric-solve call. A nil result with a
	// nil error means "no solution found" — a normal processor failure
	// under a bounded timeout, not an exception.
	Solve func(ctx context.Context, imagePath string) (*PlateSolveResult, error)
}

func (p *PlateSolver) Name() string         { return "plate_solver" }
func (p *PlateSolver) FriendlyName() string { return "Plate Solver" }

func (p *PlateSolver) Process(ctx context.Context, pc *Context) (Result, error) {
	start := time.Now()

	path := pc.WorkingImagePath
	if path == "" {
		path = pc.ImagePath
	}
	solved, err := p.Solve(ctx, path)
	if err != nil {
		return Result{}, err
	}

	if solved == nil {
		return Result{
			ShouldUpload: true, ExtractedData: map[string]any{},
			Confidence: 0.0, Reason: "no plate solution found",
			ProcessingTimeSeconds: time.Since(start).Seconds(), ProcessorName: p.Name(),
		}, nil
	}

	return Result{
		ShouldUpload: true,
		ExtractedData: map[string]any{
			"ra_center_deg":  solved.RACenterDeg,
			"dec_center_deg": solved.DecCenterDeg,
			"pixel_scale":    solved.PixelScale,
		},
		Confidence:            1.0,
		Reason:                "plate solve succeeded",
		ProcessingTimeSeconds: time.Since(start).Seconds(),
		ProcessorName:         p.Name(),
	}, nil
}

// PlateSolveRACenter extracts `plate_solver.ra_center_deg`/`dec_center_deg`
// from an Aggregated result, used by the telescope task driver's completion
// callback to feed the mount model's pointing-error correction.
func PlateSolveRACenter(agg Aggregated) (ra, dec float64, ok bool) {
	raVal, raOK := agg.ExtractedData["plate_solver.ra_center_deg"]
	decVal, decOK := agg.ExtractedData["plate_solver.dec_center_deg"]
	if !raOK || !decOK {
		return 0, 0, false
	}
	ra, raIsFloat := raVal.(float64)
	dec, decIsFloat := decVal.(float64)
	if !raIsFloat || !decIsFloat {
		return 0, 0, false
	}
	return ra, dec, true
}

package daemon

import (
	"context"
	"os"

	"github.com/citra-space/citrascope/internal/processing"
)

// placeholderPlateSolve stands in for a real astrometric solver collaborator
// (astrometry.net, Tetra3, etc). It always reports "no solution found" rather
// than fabricating a center, which is a normal, non-exceptional processor
// outcome the chain already handles. Mirrors telescope.PlaceholderEphemeris:
// a reference implementation for a concern this core deliberately doesn't
// own.
func placeholderPlateSolve(_ context.Context, _ string) (*processing.PlateSolveResult, error) {
	return nil, nil
}

// placeholderPixelStats stands in for a real FITS pixel decoder. It reports
// fixed, always-acceptable statistics so the quality_checker processor has
// something to evaluate without a decoder wired in; it still fails if the
// capture file itself is missing.
func placeholderPixelStats(imagePath string) (max, mean, stddev float64, err error) {
	if _, statErr := os.Stat(imagePath); statErr != nil {
		return 0, 0, 0, statErr
	}
	return 40000, 20000, 800, nil
}

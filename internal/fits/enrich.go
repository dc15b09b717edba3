package fits

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Location is the observatory position to stamp into SITELAT/SITELONG/SITEELEV.
type Location struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	Source    string
}

// TaskContext carries the observation details enrichment pulls onto the
// header. Zero-valued fields are skipped, matching the original's
// skip-missing-metadata-without-raising behavior.
type TaskContext struct {
	TaskID             string
	SatelliteName      string
	GroundStationName  string
	TelescopeName      string
	AssignedFilterName string
}

// Enrich adds observation-context metadata to the FITS file at filepath,
// rewriting its header in place. It is idempotent: a file whose header
// already carries a TASKID card is left untouched, so re-running enrichment
// against an already-uploaded image is a no-op rather than a double-stamp.
//
// Enrichment failures are logged and swallowed rather than returned, since a
// missing or malformed header must never block the upload pipeline for the
// sake of optional metadata.
func Enrich(path string, task *TaskContext, loc *Location) {
	if _, err := os.Stat(path); err != nil {
		slog.Warn("fits file not found for enrichment", "path", path, "error", err)
		return
	}

	header, dataOffset, err := readHeaderWithOffset(path)
	if err != nil {
		slog.Warn("failed to read fits header for enrichment", "path", path, "error", err)
		return
	}

	if task != nil && task.TaskID != "" && header.Has("TASKID") {
		slog.Debug("fits file already enriched", "path", path)
		return
	}

	addLocationMetadata(header, loc)
	if task != nil {
		addTaskMetadata(header, task)
	}
	header.SetString("ORIGIN", "Citra.space", "Data origin")

	if err := rewriteHeader(path, header, dataOffset); err != nil {
		slog.Warn("failed to write enriched fits header", "path", path, "error", err)
		return
	}

	slog.Debug("enriched fits metadata", "path", path)
}

func addLocationMetadata(header *Header, loc *Location) {
	if loc == nil {
		return
	}
	header.SetFloat("SITELAT", loc.Latitude, "Observatory latitude (deg)")
	header.SetFloat("SITELONG", loc.Longitude, "Observatory longitude (deg)")
	header.SetFloat("SITEELEV", loc.Altitude, "Observatory elevation (m)")
	header.AddComment(fmt.Sprintf("Location source: %s", loc.Source))
}

func addTaskMetadata(header *Header, task *TaskContext) {
	if task.SatelliteName != "" {
		header.SetString("OBJECT", task.SatelliteName, "Target name")
	}
	if task.GroundStationName != "" {
		header.SetString("OBSERVER", task.GroundStationName, "Ground station name")
	}
	if task.TelescopeName != "" {
		header.SetString("TELESCOP", task.TelescopeName, "Telescope name")
	}
	if task.AssignedFilterName != "" {
		header.SetString("FILTER", task.AssignedFilterName, "Filter name")
	}
	if task.TaskID != "" {
		header.SetString("TASKID", task.TaskID, "Citra.space task UUID")
	}
}

func readHeaderWithOffset(path string) (*Header, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	header, err := parseHeader(f)
	if err != nil {
		return nil, 0, err
	}

	// Header occupies a whole number of 2880-byte blocks; recompute it from
	// the card count the same way Render() will, since parseHeader doesn't
	// track how many padding cards followed END in the original file.
	cardCount := len(header.cards) + 1 // +1 for END
	blocks := (cardCount*cardSize + blockSize - 1) / blockSize
	return header, int64(blocks * blockSize), nil
}

// rewriteHeader writes the enriched header followed by the original file's
// data segment (everything from dataOffset onward) to a temp file, then
// renames it over the original so a crash mid-write never leaves a
// corrupted FITS file behind.
func rewriteHeader(path string, header *Header, dataOffset int64) error {
	original, err := os.Open(path)
	if err != nil {
		return err
	}
	defer original.Close()

	if _, err := original.Seek(dataOffset, 0); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".fits-enrich-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(header.Render()); err != nil {
		tmp.Close()
		return err
	}
	if _, err := copyRest(tmp, original); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

func copyRest(dst *os.File, src *os.File) (int64, error) {
	return io.Copy(dst, src)
}

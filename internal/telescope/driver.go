package telescope

import (
	"context"
	"fmt"
	"time"

	"github.com/citra-space/citrascope/internal/adapter"
	"github.com/citra-space/citrascope/internal/apiclient"
	"github.com/citra-space/citrascope/internal/extcache"
	"github.com/citra-space/citrascope/internal/location"
	"github.com/citra-space/citrascope/internal/task"
)

// elementSetCacheTTL bounds how long a fetched orbital element set is reused
// across tasks for the same satellite, before the driver asks the dispatch
// server for a fresher one. Short enough that a server-side TLE update is
// picked up within one orbit's worth of passes.
const elementSetCacheTTL = 2 * time.Minute

// LocationSource supplies the current ground-station position. Implemented
// by internal/location.Service.
type LocationSource interface {
	CurrentLocation() (location.Location, bool)
}

// Config tunes the lead-point loop, grounded on
// base_telescope_task.py's point_to_lead_position/estimate_lead_position
// constants.
type Config struct {
	SlewRateDegPerSec     float64
	LeadPointMaxAttempts  int
	LeadPointMaxProximity float64
	EstimatorMaxIters     int
	EstimatorTolerance    time.Duration
	MovementPollInterval  time.Duration
}

// Driver is the C10 per-job telescope task driver. It implements
// imaging.Executor: the imaging queue calls Execute once per scheduled task.
type Driver struct {
	cfg       Config
	client    *apiclient.Client
	adapter   adapter.Adapter
	ephemeris Ephemeris
	location  LocationSource
	tasks     *task.Registry
	elsets    *extcache.Cache
}

// New constructs a Driver.
func New(cfg Config, client *apiclient.Client, ad adapter.Adapter, ephemeris Ephemeris, location LocationSource, tasks *task.Registry) *Driver {
	if cfg.MovementPollInterval <= 0 {
		cfg.MovementPollInterval = 100 * time.Millisecond
	}
	return &Driver{cfg: cfg, client: client, adapter: ad, ephemeris: ephemeris, location: location, tasks: tasks,
		elsets: extcache.New(elementSetCacheTTL)}
}

// fetchElementSet returns the latest orbital elements for satelliteID,
// reusing a recently-fetched set for a still-tracked satellite instead of
// hitting the dispatch server on every single task in a busy pass schedule.
func (d *Driver) fetchElementSet(ctx context.Context, satelliteID string) (apiclient.ElementSetDTO, error) {
	v, err := d.elsets.GetOrFetch(satelliteID, func() (any, error) {
		return d.client.LatestElementSet(ctx, satelliteID)
	})
	if err != nil {
		return apiclient.ElementSetDTO{}, err
	}
	return v.(apiclient.ElementSetDTO), nil
}

// Execute drives one task's slew-and-capture phase to completion, returning
// the raw captured image path. It satisfies internal/imaging.Executor.
func (d *Driver) Execute(ctx context.Context, taskID string) (string, error) {
	t, err := d.tasks.Get(taskID)
	if err != nil {
		return "", fmt.Errorf("telescope: %w", err)
	}

	if d.adapter.ObservationStrategy() == adapter.SequenceToController {
		return d.adapter.PerformObservationSequence(ctx, taskID, t.SatelliteID)
	}

	elset, err := d.fetchElementSet(ctx, t.SatelliteID)
	if err != nil {
		return "", fmt.Errorf("telescope: fetch elements: %w", err)
	}
	elements := ElementSet{CreationEpoch: elset.CreationEpoch, Line1: elset.Line1, Line2: elset.Line2}

	station, err := d.groundStation()
	if err != nil {
		return "", fmt.Errorf("telescope: %w", err)
	}

	leadRA, leadDec, err := d.pointToLeadPosition(ctx, t, elements, station)
	if err != nil {
		return "", err
	}
	t.SetExpectedPointing(leadRA, leadDec)

	if t.IsCancelRequested() {
		return "", task.ErrCancelled
	}

	imagePath, err := d.adapter.TakeImage(ctx, taskID, t.ExposureSeconds)
	if err != nil {
		return "", fmt.Errorf("telescope: take image: %w", err)
	}
	return imagePath, nil
}

func (d *Driver) groundStation() (GroundStation, error) {
	loc, ok := d.location.CurrentLocation()
	if !ok {
		return GroundStation{}, fmt.Errorf("no location available from location service")
	}
	return GroundStation{Latitude: loc.Latitude, Longitude: loc.Longitude, AltitudeM: loc.Altitude}, nil
}

// pointToLeadPosition repeatedly slews to an estimated future satellite
// position until the mount settles within LeadPointMaxProximity of where the
// satellite actually is, or LeadPointMaxAttempts is exhausted. Grounded on
// point_to_lead_position's attempt loop.
func (d *Driver) pointToLeadPosition(ctx context.Context, t *task.Task, elements ElementSet, station GroundStation) (leadRA, leadDec float64, err error) {
	for attempt := 0; attempt < d.cfg.LeadPointMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		if t.IsCancelRequested() {
			return 0, 0, task.ErrCancelled
		}

		leadRA, leadDec, _, err = d.estimateLeadPosition(ctx, elements, station)
		if err != nil {
			return 0, 0, fmt.Errorf("telescope: estimate lead position: %w", err)
		}

		if err := d.adapter.PointTelescope(ctx, leadRA, leadDec); err != nil {
			return 0, 0, fmt.Errorf("telescope: point telescope: %w", err)
		}
		if err := d.waitForSettled(ctx, t); err != nil {
			return 0, 0, err
		}

		currentRA, currentDec, err := d.adapter.TelescopeDirection(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("telescope: read telescope direction: %w", err)
		}
		current, err := d.ephemeris.TargetAt(elements, station, time.Now())
		if err != nil {
			return 0, 0, fmt.Errorf("telescope: compute current satellite position: %w", err)
		}

		distDeg := adapter.AngularDistance(currentRA, currentDec, current.RADeg, current.DecDeg)
		if distDeg <= d.cfg.LeadPointMaxProximity {
			return leadRA, leadDec, nil
		}
	}
	return 0, 0, fmt.Errorf("telescope: failed to converge on target within %d attempts", d.cfg.LeadPointMaxAttempts)
}

func (d *Driver) waitForSettled(ctx context.Context, t *task.Task) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t.IsCancelRequested() {
			return task.ErrCancelled
		}
		moving, err := d.adapter.TelescopeIsMoving(ctx)
		if err != nil {
			return fmt.Errorf("telescope: check telescope moving: %w", err)
		}
		if !moving {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.cfg.MovementPollInterval):
		}
	}
}

// estimateLeadPosition iteratively fixed-point-estimates the future RA/Dec
// at which the mount will finish slewing: predict slew duration from
// angular_distance/slew_rate, re-evaluate the target at (now+duration),
// repeat until the predicted duration stops changing by more than
// EstimatorTolerance or EstimatorMaxIters is reached. Grounded on
// estimate_lead_position.
func (d *Driver) estimateLeadPosition(ctx context.Context, elements ElementSet, station GroundStation) (raDeg, decDeg, slewSeconds float64, err error) {
	currentRA, currentDec, err := d.adapter.TelescopeDirection(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("read telescope direction: %w", err)
	}

	estSlew, err := d.predictSlewSeconds(currentRA, currentDec, elements, station, 0)
	if err != nil {
		return 0, 0, 0, err
	}

	var target TargetPosition
	for i := 0; i < d.cfg.EstimatorMaxIters; i++ {
		target, err = d.ephemeris.TargetAt(elements, station, time.Now().Add(durationFromSeconds(estSlew)))
		if err != nil {
			return 0, 0, 0, fmt.Errorf("compute future satellite position: %w", err)
		}

		newSlew, err := d.predictSlewSeconds(currentRA, currentDec, elements, station, estSlew)
		if err != nil {
			return 0, 0, 0, err
		}

		if absFloat(newSlew-estSlew) < d.cfg.EstimatorTolerance.Seconds() {
			estSlew = newSlew
			break
		}
		estSlew = newSlew
	}

	return target.RADeg, target.DecDeg, estSlew, nil
}

func (d *Driver) predictSlewSeconds(currentRA, currentDec float64, elements ElementSet, station GroundStation, secondsFromNow float64) (float64, error) {
	future, err := d.ephemeris.TargetAt(elements, station, time.Now().Add(durationFromSeconds(secondsFromNow)))
	if err != nil {
		return 0, fmt.Errorf("compute predicted satellite position: %w", err)
	}
	dist := adapter.AngularDistance(currentRA, currentDec, future.RADeg, future.DecDeg)
	return dist / d.cfg.SlewRateDegPerSec, nil
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

package safety

import (
	"context"
	"fmt"
	"sync"
	"syscall"
)

// DiskSpaceCheck reports the severity of free space remaining under the
// images root directory. Fails closed to QueueStop when the filesystem can't
// be statted at all. Grounded on disk_space_check.py's min/warn threshold
// shape.
type DiskSpaceCheck struct {
	path       string
	minFreeMB  int64
	warnFreeMB int64
	statfsFunc func(path string, stat *syscall.Statfs_t) error

	mu          sync.Mutex
	lastFreeMB  int64
	haveReading bool
}

// NewDiskSpaceCheck returns a check that watches path, reporting QueueStop
// below minFreeMB and Warn below warnFreeMB.
func NewDiskSpaceCheck(path string, minFreeMB, warnFreeMB int64) *DiskSpaceCheck {
	return &DiskSpaceCheck{
		path:       path,
		minFreeMB:  minFreeMB,
		warnFreeMB: warnFreeMB,
		statfsFunc: syscall.Statfs,
	}
}

func (c *DiskSpaceCheck) Name() string { return "disk_space" }

func (c *DiskSpaceCheck) Evaluate(_ context.Context) Result {
	var stat syscall.Statfs_t
	if err := c.statfsFunc(c.path, &stat); err != nil {
		c.mu.Lock()
		c.haveReading = false
		c.mu.Unlock()
		return Result{
			Check:    c.Name(),
			Severity: QueueStop,
			Reason:   fmt.Sprintf("cannot stat %s: %v", c.path, err),
		}
	}

	freeMB := int64(stat.Bavail) * int64(stat.Bsize) / (1024 * 1024)
	c.mu.Lock()
	c.lastFreeMB = freeMB
	c.haveReading = true
	c.mu.Unlock()

	switch {
	case freeMB < c.minFreeMB:
		return Result{
			Check:    c.Name(),
			Severity: QueueStop,
			Reason:   fmt.Sprintf("%d MB free, below minimum %d MB", freeMB, c.minFreeMB),
		}
	case freeMB < c.warnFreeMB:
		return Result{
			Check:    c.Name(),
			Severity: Warn,
			Reason:   fmt.Sprintf("%d MB free, below warning threshold %d MB", freeMB, c.warnFreeMB),
		}
	default:
		return Result{Check: c.Name(), Severity: Safe}
	}
}

// CheckProposedAction blocks a capture when the last reading was below the
// critical threshold; every other action kind, and an unread filesystem, is
// allowed through unconditionally.
func (c *DiskSpaceCheck) CheckProposedAction(kind string, _ map[string]any) bool {
	if kind != "capture" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.haveReading {
		return true
	}
	return c.lastFreeMB >= c.minFreeMB
}

// Package timehealth monitors system clock synchronization against NTP or
// chrony, exposing the current offset through safety.TimeSource for
// TimeHealthCheck.
package timehealth

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Source reports the system clock's offset from a reference time.
type Source interface {
	// OffsetMillis returns the clock offset in milliseconds (positive means
	// the system clock is ahead of the reference).
	OffsetMillis(ctx context.Context) (float64, error)
	// Name identifies this source, e.g. "ntp" or "chrony".
	Name() string
}

const ntpEpochOffset = 2208988800 // seconds between 1900 and 1970 epochs

// NTPSource is a minimal SNTP (RFC 4330) client querying a single NTP server.
type NTPSource struct {
	Server  string
	Timeout time.Duration
}

// NewNTPSource builds an NTPSource with sensible defaults.
func NewNTPSource(server string, timeout time.Duration) *NTPSource {
	if server == "" {
		server = "pool.ntp.org"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NTPSource{Server: server, Timeout: timeout}
}

func (s *NTPSource) Name() string { return "ntp" }

// OffsetMillis sends a minimal SNTP client request and computes the clock
// offset from the server's transmit timestamp using the standard
// ((T2-T1)+(T3-T4))/2 formula, negated so that positive means the system
// clock is ahead of the server.
func (s *NTPSource) OffsetMillis(ctx context.Context) (float64, error) {
	conn, err := net.DialTimeout("udp", s.Server+":123", s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timehealth: dial ntp server: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.Timeout))

	req := make([]byte, 48)
	req[0] = 0x1B // LI=0, VN=3, Mode=3 (client)

	t1 := time.Now()
	if _, err := conn.Write(req); err != nil {
		return 0, fmt.Errorf("timehealth: send ntp request: %w", err)
	}

	resp := make([]byte, 48)
	n, err := conn.Read(resp)
	if err != nil {
		return 0, fmt.Errorf("timehealth: read ntp response: %w", err)
	}
	t4 := time.Now()
	if n < 48 {
		return 0, fmt.Errorf("timehealth: short ntp response (%d bytes)", n)
	}

	t2 := ntpTimestampToTime(resp[32:40]) // receive timestamp
	t3 := ntpTimestampToTime(resp[40:48]) // transmit timestamp

	offset := -((t2.Sub(t1) + t3.Sub(t4)) / 2)
	return float64(offset.Microseconds()) / 1000.0, nil
}

func ntpTimestampToTime(b []byte) time.Time {
	seconds := binary.BigEndian.Uint32(b[0:4])
	fraction := binary.BigEndian.Uint32(b[4:8])
	secs := int64(seconds) - ntpEpochOffset
	nanos := int64(float64(fraction) / (1 << 32) * 1e9)
	return time.Unix(secs, nanos)
}

// ChronySource queries a local chronyd via the chronyc CLI, preferred over
// NTP when available since chronyd already maintains a continuously
// disciplined offset estimate.
type ChronySource struct {
	Timeout time.Duration
	runner  func(ctx context.Context) ([]byte, error)
}

// NewChronySource builds a ChronySource that shells out to "chronyc tracking".
func NewChronySource(timeout time.Duration) *ChronySource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &ChronySource{Timeout: timeout}
	c.runner = c.runChronyc
	return c
}

func (c *ChronySource) Name() string { return "chrony" }

// IsAvailable reports whether the chronyc binary is on PATH.
func (c *ChronySource) IsAvailable() bool {
	_, err := exec.LookPath("chronyc")
	return err == nil
}

func (c *ChronySource) runChronyc(ctx context.Context) ([]byte, error) {
	cctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "chronyc", "tracking")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("timehealth: chronyc tracking: %w", err)
	}
	return out.Bytes(), nil
}

// OffsetMillis parses the "System time" line from chronyc tracking output,
// e.g. "System time     : 0.000123456 seconds fast of NTP time".
func (c *ChronySource) OffsetMillis(ctx context.Context) (float64, error) {
	out, err := c.runner(ctx)
	if err != nil {
		return 0, err
	}

	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "System time") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		fields := strings.Fields(parts[1])
		if len(fields) < 4 {
			continue
		}
		seconds, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		offsetMs := seconds * 1000.0
		if fields[2] == "slow" {
			offsetMs = -offsetMs
		}
		return offsetMs, nil
	}

	return 0, fmt.Errorf("timehealth: could not parse chronyc tracking output")
}

// DetectBest returns a ChronySource if chronyc is available, otherwise an
// NTPSource, mirroring the original Chrony-over-NTP preference order.
func DetectBest(ntpServer string, timeout time.Duration) Source {
	chrony := NewChronySource(timeout)
	if chrony.IsAvailable() {
		return chrony
	}
	return NewNTPSource(ntpServer, timeout)
}

// Package apiclient implements the HTTP client for the remote task-dispatch
// server: polling for newly assigned observation tasks and uploading
// completed results. Wrapped in a sony/gobreaker circuit breaker so a
// flapping or down dispatch server trips open rather than piling up blocked
// retries across all three work queues simultaneously.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker"
)

// Task status values as reported by the dispatch server's authoritative
// task list (GET /tasks/poll). Only Pending and Scheduled are admitted into
// the local scheduler; anything else means the server has already decided
// the task's outcome.
const (
	TaskStatusPending   = "pending"
	TaskStatusScheduled = "scheduled"
	TaskStatusSucceeded = "succeeded"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)

// TaskDTO is the wire shape of a task as returned by GET /tasks/poll.
type TaskDTO struct {
	ID              string    `json:"id"`
	SatelliteID     string    `json:"satellite_id"`
	GroundStationID string    `json:"ground_station_id"`
	Status          string    `json:"status"`
	StartEpoch      time.Time `json:"start_epoch"`
	StopEpoch       time.Time `json:"stop_epoch"`
	FilterName      string    `json:"filter_name"`
	ExposureSeconds float64   `json:"exposure_seconds"`
}

// ElementSetDTO is a satellite orbital element set as returned by the dispatch server.
type ElementSetDTO struct {
	CreationEpoch time.Time `json:"creation_epoch"`
	Line1         string    `json:"line1"`
	Line2         string    `json:"line2"`
}

// UploadResult is the payload POSTed once a task's pipeline completes.
type UploadResult struct {
	TaskID        string `json:"task_id"`
	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason,omitempty"`
	ImagePath     string `json:"image_path,omitempty"`
}

// Client talks to the remote dispatch server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New builds a Client. requestTimeout bounds every individual HTTP call.
func New(baseURL, token string, requestTimeout time.Duration) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dispatch-server",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
		breaker: breaker,
	}
}

// PollTasks fetches newly assigned tasks for this ground station.
func (c *Client) PollTasks(ctx context.Context) ([]TaskDTO, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := c.newRequest(ctx, http.MethodGet, "/tasks/poll", nil)
		if err != nil {
			return nil, err
		}
		body, err := c.do(req)
		if err != nil {
			return nil, err
		}
		var tasks []TaskDTO
		if err := json.Unmarshal(body, &tasks); err != nil {
			return nil, fmt.Errorf("apiclient: decode poll response: %w", err)
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]TaskDTO), nil
}

// LatestElementSet fetches the most recent orbital elements for a satellite.
func (c *Client) LatestElementSet(ctx context.Context, satelliteID string) (ElementSetDTO, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := c.newRequest(ctx, http.MethodGet, "/satellites/"+satelliteID+"/elements/latest", nil)
		if err != nil {
			return nil, err
		}
		body, err := c.do(req)
		if err != nil {
			return nil, err
		}
		var elements []ElementSetDTO
		if err := json.Unmarshal(body, &elements); err != nil {
			return nil, fmt.Errorf("apiclient: decode elements response: %w", err)
		}
		return mostRecentElementSet(elements)
	})
	if err != nil {
		return ElementSetDTO{}, err
	}
	return result.(ElementSetDTO), nil
}

// mostRecentElementSet returns the element set with the latest CreationEpoch,
// grounded on _get_most_recent_elset's max-by-creation-epoch selection.
func mostRecentElementSet(elements []ElementSetDTO) (ElementSetDTO, error) {
	if len(elements) == 0 {
		return ElementSetDTO{}, fmt.Errorf("apiclient: no element sets available")
	}
	best := elements[0]
	for _, e := range elements[1:] {
		if e.CreationEpoch.After(best.CreationEpoch) {
			best = e
		}
	}
	return best, nil
}

// UploadTaskResult POSTs a completed task's outcome and artifact.
func (c *Client) UploadTaskResult(ctx context.Context, result UploadResult) error {
	_, err := c.breaker.Execute(func() (any, error) {
		payload, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode upload result: %w", err)
		}
		req, err := c.newRequest(ctx, http.MethodPost, "/tasks/"+result.TaskID+"/result", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		_, err = c.do(req)
		return nil, err
	})
	return err
}

// statusUpdate is the wire shape of a free-text progress update.
type statusUpdate struct {
	Status string `json:"status"`
}

// UpdateTaskStatus pushes a free-text progress message ("Starting
// imaging...", "Imaging permanently failed") for display to the operator.
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID, status string) error {
	_, err := c.breaker.Execute(func() (any, error) {
		payload, err := json.Marshal(statusUpdate{Status: status})
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode status update: %w", err)
		}
		req, err := c.newRequest(ctx, http.MethodPost, "/tasks/"+taskID+"/status", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		_, err = c.do(req)
		return nil, err
	})
	return err
}

// MarkTaskFailed reports a task as permanently failed on the dispatch server.
func (c *Client) MarkTaskFailed(ctx context.Context, taskID, reason string) error {
	_, err := c.breaker.Execute(func() (any, error) {
		payload, err := json.Marshal(UploadResult{TaskID: taskID, Success: false, FailureReason: reason})
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode failure report: %w", err)
		}
		req, err := c.newRequest(ctx, http.MethodPost, "/tasks/"+taskID+"/result", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		_, err = c.do(req)
		return nil, err
	})
	return err
}

// MarkTaskComplete reports a task as complete without an uploaded artifact
// (used when a processor rejects the capture and no image is uploaded).
func (c *Client) MarkTaskComplete(ctx context.Context, taskID string) error {
	return c.UploadTaskResult(ctx, UploadResult{TaskID: taskID, Success: true})
}

// UploadImage multipart-uploads the capture file for a task, returning the
// server-assigned storage path for the image.
func (c *Client) UploadImage(ctx context.Context, taskID, localPath string) (string, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		file, err := os.Open(localPath)
		if err != nil {
			return nil, fmt.Errorf("apiclient: open image for upload: %w", err)
		}
		defer file.Close()

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("image", filepath.Base(localPath))
		if err != nil {
			return nil, fmt.Errorf("apiclient: create multipart field: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, fmt.Errorf("apiclient: copy image into multipart body: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("apiclient: close multipart writer: %w", err)
		}

		req, err := c.newRequest(ctx, http.MethodPost, "/tasks/"+taskID+"/image", &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())

		body, err := c.do(req)
		if err != nil {
			return nil, err
		}
		var out struct {
			ImagePath string `json:"image_path"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("apiclient: decode image upload response: %w", err)
		}
		return out.ImagePath, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// opticalObservation is the wire shape of extracted-data-derived observation
// metadata (e.g. a plate-solved position), posted alongside an upload.
type opticalObservation struct {
	TaskID string         `json:"task_id"`
	Data   map[string]any `json:"data"`
}

// PostOpticalObservation reports processor-extracted observation data
// (plate-solve centers, photometry, etc.) separately from the raw upload.
func (c *Client) PostOpticalObservation(ctx context.Context, taskID string, data map[string]any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		payload, err := json.Marshal(opticalObservation{TaskID: taskID, Data: data})
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode optical observation: %w", err)
		}
		req, err := c.newRequest(ctx, http.MethodPost, "/observations/optical", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		_, err = c.do(req)
		return nil, err
	})
	return err
}

// groundStationLocationUpdate is the wire shape of a GPS-derived location push-back.
type groundStationLocationUpdate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// UpdateGroundStationLocation implements location.GroundStationUpdater,
// pushing a GPS-derived fix back to the dispatch server's station record.
func (c *Client) UpdateGroundStationLocation(ctx context.Context, groundStationID string, lat, lon, alt float64) error {
	_, err := c.breaker.Execute(func() (any, error) {
		payload, err := json.Marshal(groundStationLocationUpdate{Latitude: lat, Longitude: lon, Altitude: alt})
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode location update: %w", err)
		}
		req, err := c.newRequest(ctx, http.MethodPatch, "/ground-stations/"+groundStationID+"/location", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		_, err = c.do(req)
		return nil, err
	})
	return err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("apiclient: %s %s returned %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(body))
	}
	return body, nil
}

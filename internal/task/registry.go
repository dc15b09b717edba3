package task

import (
	"fmt"
	"sync"
)

// Bucket names the stage a task is currently occupying. A task is in exactly
// one bucket at a time; Registry.MoveToBucket enforces this by construction
// (it is always a single map write, never an add-then-remove race window
// visible to readers, since all registry methods hold the same mutex).
type Bucket string

const (
	BucketScheduled  Bucket = "scheduled"
	BucketImaging    Bucket = "imaging"
	BucketProcessing Bucket = "processing"
	BucketUpload     Bucket = "upload"
	BucketDone       Bucket = "done"
)

// Registry is the central task store: it owns every Task for the lifetime of
// the daemon process and tracks each one's current stage bucket.
type Registry struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	buckets map[string]Bucket
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks:   make(map[string]*Task),
		buckets: make(map[string]Bucket),
	}
}

// Add registers a new task in BucketScheduled.
func (r *Registry) Add(t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[t.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
	}
	r.tasks[t.ID] = t
	r.buckets[t.ID] = BucketScheduled
	return nil
}

// Get returns the task with the given ID.
func (r *Registry) Get(id string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return t, nil
}

// MoveToBucket moves a task's stage bucket. The task is never visible in two
// buckets at once: this single locked map write is the only place
// r.buckets[id] changes.
func (r *Registry) MoveToBucket(id string, bucket Bucket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	r.buckets[id] = bucket
	return nil
}

// BucketOf returns the current stage bucket for a task.
func (r *Registry) BucketOf(id string) (Bucket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buckets[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return b, nil
}

// ListBucket returns the IDs of all tasks currently in the given bucket.
func (r *Registry) ListBucket(bucket Bucket) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, b := range r.buckets {
		if b == bucket {
			ids = append(ids, id)
		}
	}
	return ids
}

// All returns every tracked task ID.
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	return ids
}

// Remove drops a task entirely (e.g. once it reaches BucketDone and its
// history has been reported upstream).
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	delete(r.buckets, id)
}

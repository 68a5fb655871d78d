package musubi

import (
	"slices"
	"sync"
)

// LookupTracker records which declarations a container consumed, so that an
// incremental build can invalidate dependents.
//
//go:generate mockgen -source=tracker.go -destination=mocks/mock_tracker.go -package=mocks
type LookupTracker interface {
	Record(container, declaration string)
}

type nopTracker struct{}

func (nopTracker) Record(string, string) {}

// RecordingTracker keeps the recorded edges in memory.
type RecordingTracker struct {
	mu    sync.Mutex
	edges map[string][]string
}

func NewRecordingTracker() *RecordingTracker {
	return &RecordingTracker{edges: make(map[string][]string)}
}

func (t *RecordingTracker) Record(container, declaration string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !slices.Contains(t.edges[container], declaration) {
		t.edges[container] = append(t.edges[container], declaration)
	}
}

// Consumed returns the declarations recorded for container in recording order.
func (t *RecordingTracker) Consumed(container string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slices.Clone(t.edges[container])
}

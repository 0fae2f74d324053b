package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/tinj/internal/tracking"
)

// FakeTracker records registrations and annotations in memory. Ids are
// "T1", "T2", ...
type FakeTracker struct {
	mu sync.Mutex

	RegisterErr error
	AnnotateErr error

	Registrations []tracking.Registration
	Annotations   map[string][]string
}

func (f *FakeTracker) Register(_ context.Context, r tracking.Registration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RegisterErr != nil {
		return "", f.RegisterErr
	}
	f.Registrations = append(f.Registrations, r)
	return fmt.Sprintf("T%d", len(f.Registrations)), nil
}

func (f *FakeTracker) Annotate(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AnnotateErr != nil {
		return f.AnnotateErr
	}
	if f.Annotations == nil {
		f.Annotations = make(map[string][]string)
	}
	f.Annotations[id] = append(f.Annotations[id], text)
	return nil
}

// AnnotationsFor returns a copy of an entry's annotations.
func (f *FakeTracker) AnnotationsFor(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Annotations[id]...)
}

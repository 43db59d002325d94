package service

import (
	"testing"
	"time"

	"lexcase-backend/generator"
	"lexcase-backend/persistence"
	"lexcase-backend/storage"
)

// stepClock returns a time one second later on every call
type stepClock struct {
	t time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestWorkspace(t *testing.T, g generator.Generator) (*Workspace, *stepClock) {
	t.Helper()
	clock := newStepClock()
	store := persistence.NewCoordinator(persistence.WithLocalStore(storage.NewMemoryStorage()))
	return NewWorkspace(store, WorkspaceWithClock(clock.Now), WorkspaceWithGenerator(g)), clock
}

func ptr[T any](v T) *T {
	return &v
}

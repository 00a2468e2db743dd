package orgsync

import (
	"context"
	"sync"

	"github.com/agentstation/orgsync/pkg/hierarchy"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

// Hook function types for run events
type (
	// UserActionHook is called after a user is created, updated, enabled or
	// disabled (or planned to be, in dry-run mode)
	UserActionHook func(outcome reconciler.Outcome)

	// ValueRecordedHook is called when a measurement value is recorded
	ValueRecordedHook func(event hierarchy.ValueEvent)

	// RunCompletedHook is called with the summary of every finished run
	RunCompletedHook func(summary *Summary)
)

// hooks manages event callbacks
type hooks struct {
	mu              sync.RWMutex
	onUserAction    []UserActionHook
	onValueRecorded []ValueRecordedHook
	onRunCompleted  []RunCompletedHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnUserAction registers a callback for user actions.
func (s *Syncer) OnUserAction(fn UserActionHook) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	s.hooks.onUserAction = append(s.hooks.onUserAction, fn)
}

// OnValueRecorded registers a callback for measurement values.
func (s *Syncer) OnValueRecorded(fn ValueRecordedHook) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	s.hooks.onValueRecorded = append(s.hooks.onValueRecorded, fn)
}

// OnRunCompleted registers a callback for finished runs.
func (s *Syncer) OnRunCompleted(fn RunCompletedHook) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	s.hooks.onRunCompleted = append(s.hooks.onRunCompleted, fn)
}

// userObserver adapts the user hooks to a reconciler observer.
func (h *hooks) userObserver(_ context.Context, outcome reconciler.Outcome) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onUserAction {
		fn(outcome)
	}
}

// valueObserver adapts the value hooks to a hierarchy observer.
func (h *hooks) valueObserver(_ context.Context, event hierarchy.ValueEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onValueRecorded {
		fn(event)
	}
}

func (h *hooks) triggerRunCompleted(summary *Summary) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onRunCompleted {
		fn(summary)
	}
}

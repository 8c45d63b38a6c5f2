// Package orchestrator implements the Resilient Orchestration Engine (C7):
// a pipeline of idempotent, resumable steps wrapped by begin_step/
// complete_step markers, a retry+backoff+jitter combinator, wall-clock
// deadlines with a process-group watchdog, and a LIFO cleanup registry.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// StepLedger persists step markers under a process-private state directory,
// grounded on the teacher's resolvePaasStateRoot/loadPaasTargetStore pair in
// paas_store.go: a 0700 state directory holding small per-item files rather
// than one shared store, since step identity (not edit history) is all the
// engine needs to recover.
type StepLedger struct {
	mu   sync.Mutex
	dir  string
}

// NewStepLedger creates (if needed) stateDir with mode 0700 and returns a
// ledger rooted there.
func NewStepLedger(stateDir string) (*StepLedger, error) {
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	return &StepLedger{dir: stateDir}, nil
}

func (l *StepLedger) markerPath(step string) string {
	return filepath.Join(l.dir, step+".state")
}

// BeginStep creates the in-flight marker for step. Idempotent: calling it
// twice in a row leaves exactly one marker behind.
func (l *StepLedger) BeginStep(step string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.markerPath(step), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("begin_step %s: %w", step, err)
	}
	return f.Close()
}

// CompleteStep removes step's marker. Removing an already-absent marker is
// not an error.
func (l *StepLedger) CompleteStep(step string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.Remove(l.markerPath(step)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("complete_step %s: %w", step, err)
	}
	return nil
}

// StepIncomplete reports whether step's marker is still present, meaning a
// prior run began it but never completed it.
func (l *StepLedger) StepIncomplete(step string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := os.Stat(l.markerPath(step))
	return err == nil
}

// IncompleteSteps lists every step name with a surviving marker, sorted for
// deterministic reporting.
func (l *StepLedger) IncompleteSteps() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		const suffix = ".state"
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			names = append(names, name[:len(name)-len(suffix)])
		}
	}
	sort.Strings(names)
	return names
}

// Step runs fn bracketed by begin_step/complete_step: the marker survives
// iff fn returns an error, so a later StepIncomplete/IncompleteSteps call
// can surface exactly the steps that failed to finish.
func (l *StepLedger) Step(name string, fn func() error) error {
	if err := l.BeginStep(name); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return l.CompleteStep(name)
}

// Package metrics provides Prometheus metrics for the analysis pipeline.
package metrics

import "sync"

// Recorder defines a minimal interface for recording metrics.
type Recorder interface {
	// RecordOperation records an operation with its status ("success", "error", "cancelled").
	RecordOperation(operation, status string)

	// RecordDuration records the wall-clock duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its category.
	RecordError(operation, errorType string)
}

// AnalysisRecorder extends Recorder with per-run frame accounting.
type AnalysisRecorder interface {
	Recorder

	// RecordFrames adds n frames with the given outcome ("ok", "degraded", "invalid").
	RecordFrames(operation, outcome string, n int)

	// RecordDegradation adds n frames that hit a recoverable numeric condition.
	RecordDegradation(operation, kind string, n int)

	// RecordThreads records the thread count chosen for the latest run.
	RecordThreads(operation string, threads int)
}

// NoOpRecorder discards everything. It is the default when metrics are disabled.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordOperation(string, string)        {}
func (NoOpRecorder) RecordDuration(string, float64)        {}
func (NoOpRecorder) RecordError(string, string)            {}
func (NoOpRecorder) RecordFrames(string, string, int)      {}
func (NoOpRecorder) RecordDegradation(string, string, int) {}
func (NoOpRecorder) RecordThreads(string, int)             {}

// TestRecorder captures recorded values in memory for assertions in tests.
type TestRecorder struct {
	mu           sync.RWMutex
	operations   map[string]map[string]int
	durations    map[string][]float64
	errors       map[string]map[string]int
	frames       map[string]map[string]int
	degradations map[string]map[string]int
	threads      map[string]int
}

// NewTestRecorder creates a new test recorder instance.
func NewTestRecorder() *TestRecorder {
	return &TestRecorder{
		operations:   make(map[string]map[string]int),
		durations:    make(map[string][]float64),
		errors:       make(map[string]map[string]int),
		frames:       make(map[string]map[string]int),
		degradations: make(map[string]map[string]int),
		threads:      make(map[string]int),
	}
}

func addCount(m map[string]map[string]int, outer, inner string, n int) {
	if m[outer] == nil {
		m[outer] = make(map[string]int)
	}
	m[outer][inner] += n
}

func (r *TestRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addCount(r.operations, operation, status, 1)
}

func (r *TestRecorder) RecordDuration(operation string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[operation] = append(r.durations[operation], seconds)
}

func (r *TestRecorder) RecordError(operation, errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addCount(r.errors, operation, errorType, 1)
}

func (r *TestRecorder) RecordFrames(operation, outcome string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addCount(r.frames, operation, outcome, n)
}

func (r *TestRecorder) RecordDegradation(operation, kind string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addCount(r.degradations, operation, kind, n)
}

func (r *TestRecorder) RecordThreads(operation string, threads int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[operation] = threads
}

// OperationCount returns how often operation finished with status.
func (r *TestRecorder) OperationCount(operation, status string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.operations[operation][status]
}

// ErrorCount returns how often operation failed with errorType.
func (r *TestRecorder) ErrorCount(operation, errorType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errors[operation][errorType]
}

// FrameCount returns the number of frames recorded with outcome.
func (r *TestRecorder) FrameCount(operation, outcome string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frames[operation][outcome]
}

// DegradationCount returns the number of frames recorded with kind.
func (r *TestRecorder) DegradationCount(operation, kind string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.degradations[operation][kind]
}

// Threads returns the last thread count recorded for operation.
func (r *TestRecorder) Threads(operation string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.threads[operation]
}

// Durations returns a copy of the durations recorded for operation.
func (r *TestRecorder) Durations(operation string) []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]float64(nil), r.durations[operation]...)
}

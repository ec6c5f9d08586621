// Package scan contains the orchestration core: the scan session state
// machine, the top-level orchestrator that drives a full
// search→ingest→score→notify cycle, and the bounded-concurrency worker pool
// that deep-scans individual postings.
package scan

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a scan session's position in the state machine.
type State string

const (
	StateIdle         State = "idle"
	StateQueued       State = "queued"
	StateRunning      State = "running"
	StateDeepScanning State = "deep_scanning"
	StateCancelling   State = "cancelling"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Progress tracks the deep-scan phase for external status polling.
type Progress struct {
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Errors    int    `json:"errors"`
	Current   string `json:"current,omitempty"`
}

// CancelToken is polled by the worker pool at batch and job boundaries.
// Cancellation is cooperative and non-preemptive: an in-flight fetch or
// score call always runs to completion or its own timeout.
type CancelToken interface {
	Cancelled() bool
}

// Session is the transient state of one orchestration run, keyed by a
// session ID and owned by the orchestrator. All accessors are safe for
// concurrent use; status queries read a consistent Snapshot.
type Session struct {
	mu         sync.Mutex
	id         string
	state      State
	startTime  time.Time
	endTime    *time.Time
	sources    []string
	warnings   []string
	totalFound int
	progress   Progress
	cancelled  bool
	err        error
	done       chan struct{}
}

func newSession() *Session {
	return &Session{
		id:        uuid.NewString(),
		state:     StateQueued,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A cancel request owns the state until the run loop observes it at the
	// next boundary and finishes the session.
	if s.state == StateCancelling && !st.Terminal() {
		return
	}
	s.state = st
}

// Cancel requests cooperative cancellation. The run loop observes the flag
// at the next search-target or deep-scan job boundary.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.cancelled = true
	s.state = StateCancelling
}

// Cancelled implements CancelToken.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *Session) addSource(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, url)
}

func (s *Session) addWarning(w string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, w)
}

func (s *Session) addFound(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalFound += n
}

func (s *Session) setProgressTotal(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.Total = n
}

func (s *Session) jobStarted(postingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.Current = postingID
}

func (s *Session) jobFinished(errored bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.Completed++
	if errored {
		s.progress.Errors++
	}
	s.progress.Current = ""
}

// finish moves the session to a terminal state exactly once.
func (s *Session) finish(st State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = st
	s.err = err
	now := time.Now()
	s.endTime = &now
	close(s.done)
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the session's terminal error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Snapshot is a consistent copy of the session for status queries.
type Snapshot struct {
	ID             string     `json:"id"`
	Status         State      `json:"status"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	ScannedSources []string   `json:"scannedSources,omitempty"`
	Warnings       []string   `json:"warnings,omitempty"`
	TotalFound     int        `json:"totalFound"`
	DeepScan       Progress   `json:"deepScanProgress"`
	Cancelled      bool       `json:"cancelled"`
	Error          string     `json:"error,omitempty"`
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:             s.id,
		Status:         s.state,
		StartTime:      s.startTime,
		EndTime:        s.endTime,
		ScannedSources: append([]string(nil), s.sources...),
		Warnings:       append([]string(nil), s.warnings...),
		TotalFound:     s.totalFound,
		DeepScan:       s.progress,
		Cancelled:      s.cancelled,
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

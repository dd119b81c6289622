// Package scanner builds a track.Roadmap from a vehicle's live telemetry.
//
// The vehicle reports a position update for every location code it reads
// and a transition update whenever it crosses onto the next piece. The
// scanner remembers the most recent position and, on each transition,
// commits that piece to the roadmap. The position stays cached after a
// commit, so a transition without a fresh position repeats the last piece. Scanning stops by itself once the
// roadmap closes into a loop.
package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/overdrive/internal/monitoring"
	"github.com/banshee-data/overdrive/internal/protocol"
	"github.com/banshee-data/overdrive/internal/timeutil"
	"github.com/banshee-data/overdrive/internal/track"
)

// ErrScanTimeout is returned by WaitComplete when the loop did not close in
// time. A piece the catalog does not know makes this the only way a scan
// ends.
var ErrScanTimeout = errors.New("scanner: scan did not complete in time")

// TelemetrySource delivers decoded messages of one type to a handler until
// the returned subscription is cancelled. Handlers must be invoked one at a
// time.
type TelemetrySource interface {
	Subscribe(t protocol.Type, h func(protocol.Message)) uuid.UUID
	Unsubscribe(id uuid.UUID)
}

// State is the scanner lifecycle: Idle, Scanning, Complete.
type State int

const (
	Idle State = iota
	Scanning
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Complete:
		return "complete"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options tune a Scanner. The zero value is usable.
type Options struct {
	// Clock defaults to timeutil.RealClock.
	Clock timeutil.Clock
	// ClosureTolerance defaults to track.DefaultClosureTolerance.
	ClosureTolerance float64
}

type position struct {
	pieceID    int
	locationID int
	reverse    bool
}

// Scanner is safe for concurrent use. One mutex guards the cached position,
// the roadmap and the lifecycle state.
type Scanner struct {
	source    TelemetrySource
	clock     timeutil.Clock
	tolerance float64

	mu          sync.Mutex
	state       State
	roadmap     *track.Roadmap
	last        *position
	subs        []uuid.UUID
	startedAt   time.Time
	completedAt time.Time
	skipped     int
	done        chan struct{}
}

// New returns an idle scanner reading from source.
func New(source TelemetrySource, opts Options) *Scanner {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	s := &Scanner{
		source:    source,
		clock:     opts.Clock,
		tolerance: opts.ClosureTolerance,
	}
	s.resetLocked()
	return s
}

func (s *Scanner) resetLocked() {
	s.roadmap = track.NewRoadmap()
	s.roadmap.SetClosureTolerance(s.tolerance)
	s.last = nil
	s.skipped = 0
	s.startedAt = time.Time{}
	s.completedAt = time.Time{}
	s.done = make(chan struct{})
}

// Start subscribes to position and transition updates. Starting a scanner
// that is already scanning or complete does nothing, and a stopped scanner
// whose roadmap has closed goes straight back to Complete.
func (s *Scanner) Start() {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return
	}
	if s.roadmap.IsComplete() {
		s.state = Complete
		s.mu.Unlock()
		return
	}
	s.state = Scanning
	if s.startedAt.IsZero() {
		s.startedAt = s.clock.Now()
	}
	s.mu.Unlock()

	// Subscribing outside the lock: a source may deliver synchronously.
	pos := s.source.Subscribe(protocol.TypePositionUpdate, s.onPosition)
	trans := s.source.Subscribe(protocol.TypeTransitionUpdate, s.onTransition)

	s.mu.Lock()
	stale := s.state != Scanning
	if !stale {
		s.subs = append(s.subs, pos, trans)
	}
	s.mu.Unlock()
	if stale {
		s.source.Unsubscribe(pos)
		s.source.Unsubscribe(trans)
	}
	monitoring.Logf("scanner: started")
}

// Stop cancels the subscriptions and returns to Idle, keeping the roadmap.
// It is safe to call in any state and more than once.
func (s *Scanner) Stop() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.state = Idle
	s.mu.Unlock()
	s.unsubscribe(subs)
}

// Reset stops scanning and discards the roadmap and the cached position.
func (s *Scanner) Reset() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.state = Idle
	s.resetLocked()
	s.mu.Unlock()
	s.unsubscribe(subs)
}

func (s *Scanner) unsubscribe(ids []uuid.UUID) {
	for _, id := range ids {
		s.source.Unsubscribe(id)
	}
}

func (s *Scanner) onPosition(m protocol.Message) {
	pu, ok := m.(*protocol.PositionUpdate)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Scanning {
		return
	}
	s.last = &position{
		pieceID:    int(pu.PieceID),
		locationID: int(pu.LocationID),
		reverse:    pu.Reverse(),
	}
}

func (s *Scanner) onTransition(m protocol.Message) {
	if _, ok := m.(*protocol.TransitionUpdate); !ok {
		return
	}
	s.mu.Lock()
	if s.state != Scanning || s.last == nil {
		s.mu.Unlock()
		return
	}
	p := *s.last
	if err := s.roadmap.Add(p.pieceID, p.locationID, p.reverse); err != nil {
		s.skipped++
		s.mu.Unlock()
		return
	}
	if !s.roadmap.IsComplete() {
		s.mu.Unlock()
		return
	}
	s.state = Complete
	s.completedAt = s.clock.Now()
	close(s.done)
	subs := s.subs
	s.subs = nil
	n := s.roadmap.Len()
	s.mu.Unlock()

	s.unsubscribe(subs)
	monitoring.Logf("scanner: roadmap complete with %d pieces", n)
}

// State returns the lifecycle state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsComplete reports whether the roadmap has closed.
func (s *Scanner) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roadmap.IsComplete()
}

// Roadmap returns a copy of the roadmap built so far. Before completion it
// is the partial, open chain of pieces seen.
func (s *Scanner) Roadmap() *track.Roadmap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roadmap.Clone()
}

// Status is a point-in-time summary of a scan.
type Status struct {
	State       State     `json:"state"`
	Complete    bool      `json:"complete"`
	Pieces      int       `json:"pieces"`
	Skipped     int       `json:"skipped"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:       s.state,
		Complete:    s.roadmap.IsComplete(),
		Pieces:      s.roadmap.Len(),
		Skipped:     s.skipped,
		StartedAt:   s.startedAt,
		CompletedAt: s.completedAt,
	}
}

// WaitComplete blocks until the roadmap closes, ctx is done or timeout
// elapses on the scanner's clock. A non-positive timeout waits on ctx
// alone.
func (s *Scanner) WaitComplete(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		expired = s.clock.After(timeout)
	}
	select {
	case <-done:
		return nil
	case <-expired:
		return ErrScanTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportProgress logs the piece count every interval while the scanner is
// scanning. It returns when ctx is done or the scan is no longer running.
func (s *Scanner) ReportProgress(ctx context.Context, every time.Duration, logf monitoring.LogFunc) {
	ticker := s.clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
		st := s.Status()
		if st.State != Scanning {
			return
		}
		logf("scanner: %d pieces after %s", st.Pieces, s.clock.Since(st.StartedAt).Round(time.Second))
	}
}

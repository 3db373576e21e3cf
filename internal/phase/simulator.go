// Package phase drives the cosmetic loading-status labels shown while a
// request is outstanding. It is an independent state machine: the session
// cancels it explicitly the moment real content arrives, and it never gates
// or inspects network state.
package phase

import (
	"sync"
	"time"
)

// Phase is one loading status label and how long it is held before
// advancing.
type Phase struct {
	Label string
	Hold  time.Duration
}

// DefaultPhases is the label sequence used while a counterargument request
// is outstanding. The final phase holds until real content arrives or the
// exchange ends.
func DefaultPhases() []Phase {
	return []Phase{
		{Label: "Reading your belief", Hold: 1200 * time.Millisecond},
		{Label: "Searching opposing viewpoints", Hold: 1800 * time.Millisecond},
		{Label: "Weighing the evidence", Hold: 1800 * time.Millisecond},
		{Label: "Composing counterarguments", Hold: 0},
	}
}

// Simulator advances through an ordered phase list on a timer chain.
type Simulator struct {
	mu      sync.Mutex
	phases  []Phase
	timer   *time.Timer
	index   int
	running bool
	// generation invalidates timers from a previous run; a fire from a
	// stopped run must never surface a label.
	generation uint64
	onPhase    func(label string)
}

// NewSimulator creates a simulator over the given phases. An empty list
// yields a simulator whose Start is a no-op.
func NewSimulator(phases []Phase) *Simulator {
	return &Simulator{phases: phases}
}

// Start begins a new run at phase 0, reporting each label through onPhase.
// Any prior run is stopped first. onPhase is called synchronously for phase
// 0 and from timer goroutines afterwards.
func (s *Simulator) Start(onPhase func(label string)) {
	s.mu.Lock()
	s.stopLocked()
	if len(s.phases) == 0 {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.generation++
	s.index = 0
	s.onPhase = onPhase
	gen := s.generation
	label := s.phases[0].Label
	s.scheduleLocked(gen)
	s.mu.Unlock()

	if onPhase != nil {
		onPhase(label)
	}
}

// Stop cancels the run and all pending timers. Safe to call repeatedly and
// when no run is active.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Running reports whether a run is active.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulator) stopLocked() {
	s.running = false
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// scheduleLocked arms the advance timer for the current phase. The last
// phase holds indefinitely, so no timer is armed for it.
func (s *Simulator) scheduleLocked(gen uint64) {
	if s.index >= len(s.phases)-1 {
		return
	}
	hold := s.phases[s.index].Hold
	s.timer = time.AfterFunc(hold, func() {
		s.advance(gen)
	})
}

func (s *Simulator) advance(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.index++
	label := s.phases[s.index].Label
	onPhase := s.onPhase
	s.scheduleLocked(gen)
	s.mu.Unlock()

	if onPhase != nil {
		onPhase(label)
	}
}

package sync

import (
	"context"
	"errors"
	"log"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// State is the supervisor's position in its retry state machine.
type State int

const (
	// StateIdle means the channel is attached (or there is nothing to do).
	StateIdle State = iota
	// StatePolling means a retry is scheduled.
	StatePolling
	// StateGaveUp is terminal until the user asks for a retry.
	StateGaveUp
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateGaveUp:
		return "gave up"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the supervisor.
type Status struct {
	State       State
	Attempts    int
	NextRetry   time.Time
	LastError   error
	LastSuccess time.Time
}

// StatusMsg is a tea.Msg sent whenever the supervisor's status changes.
type StatusMsg struct {
	Status Status
}

// Attempt performs one combined connect, join and attach. A nil error
// means the listener is attached.
type Attempt func(ctx context.Context) error

type kickKind int

const (
	kickDisconnected kickKind = iota
	kickRetry
)

// Supervisor re-runs an Attempt on a bounded exponential schedule until it
// succeeds or the attempt budget is spent.
type Supervisor struct {
	attempt Attempt
	policy  Backoff

	mu       gosync.Mutex
	status   Status
	running  bool
	kickCh   chan kickKind
	stopCh   chan struct{}
	doneCh   chan struct{}
	cancel   context.CancelFunc
	statusCh chan StatusMsg
}

// New creates a Supervisor. It does nothing until Start is called.
func New(attempt Attempt, policy Backoff) *Supervisor {
	return &Supervisor{
		attempt:  attempt,
		policy:   policy,
		status:   Status{State: StateIdle},
		statusCh: make(chan StatusMsg, 16),
	}
}

// Start runs the first attempt immediately in the background and keeps
// retrying on failure. Calling Start on a running supervisor is a no-op.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.kickCh = make(chan kickKind, 4)
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh, kickCh := s.stopCh, s.doneCh, s.kickCh
	s.mu.Unlock()

	go s.run(ctx, stopCh, doneCh, kickCh)
}

// Stop cancels any in-flight attempt, stops the timer and waits for the
// loop to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
}

// Kick tells the supervisor the channel dropped. An idle supervisor starts
// polling at the initial interval; otherwise the call is ignored.
func (s *Supervisor) Kick() {
	s.send(kickDisconnected)
}

// Retry resets the attempt budget and tries again immediately. It is the
// way out of StateGaveUp.
func (s *Supervisor) Retry() {
	s.send(kickRetry)
}

func (s *Supervisor) send(k kickKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	select {
	case s.kickCh <- k:
	default:
		// Channel full; a pending kick already covers this one.
	}
}

// Status returns the current status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// WaitForNextStatus returns a tea.Cmd that waits for the next status
// change. Call it again after each StatusMsg to keep listening.
func (s *Supervisor) WaitForNextStatus() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-s.statusCh
		if !ok {
			return nil
		}
		return msg
	}
}

// run is the supervisor loop. The retry timer is owned here and stopped on
// every exit path.
func (s *Supervisor) run(
	ctx context.Context,
	stopCh <-chan struct{},
	doneCh chan<- struct{},
	kickCh <-chan kickKind,
) {
	defer close(doneCh)

	var timer *time.Timer
	var timerC <-chan time.Time
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	defer stopTimer()

	schedule := func(d time.Duration) {
		stopTimer()
		timer = time.NewTimer(d)
		timerC = timer.C
	}

	try := func() {
		stopTimer()
		if next, ok := s.try(ctx); ok {
			schedule(next)
		}
	}

	try()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-timerC:
			timer = nil
			timerC = nil
			try()
		case k := <-kickCh:
			switch k {
			case kickDisconnected:
				if s.Status().State != StateIdle {
					continue
				}
				delay := s.policy.Delay(1)
				s.update(func(st *Status) {
					st.State = StatePolling
					st.Attempts = 0
					st.NextRetry = time.Now().Add(delay)
				})
				schedule(delay)
			case kickRetry:
				s.update(func(st *Status) {
					st.Attempts = 0
				})
				try()
			}
		}
	}
}

// try runs one attempt and records the outcome. It returns the delay until
// the next attempt and whether one should be scheduled.
func (s *Supervisor) try(ctx context.Context) (time.Duration, bool) {
	err := s.attempt(ctx)
	if ctx.Err() != nil {
		return 0, false
	}

	switch {
	case err == nil:
		s.update(func(st *Status) {
			st.State = StateIdle
			st.Attempts = 0
			st.NextRetry = time.Time{}
			st.LastError = nil
			st.LastSuccess = time.Now()
		})
		return 0, false

	case errors.Is(err, ErrSkipped):
		s.update(func(st *Status) {
			st.State = StateIdle
			st.Attempts = 0
			st.NextRetry = time.Time{}
			st.LastError = nil
		})
		return 0, false

	case IsPermanent(err):
		log.Printf("supervisor: giving up: %v", err)
		s.update(func(st *Status) {
			st.State = StateGaveUp
			st.Attempts++
			st.NextRetry = time.Time{}
			st.LastError = err
		})
		return 0, false
	}

	attempts := s.Status().Attempts + 1
	if attempts >= s.policy.maxAttempts() {
		log.Printf("supervisor: giving up after %d attempts: %v", attempts, err)
		s.update(func(st *Status) {
			st.State = StateGaveUp
			st.Attempts = attempts
			st.NextRetry = time.Time{}
			st.LastError = err
		})
		return 0, false
	}

	delay := s.policy.Delay(attempts)
	log.Printf("supervisor: attempt %d failed, retrying in %s: %v", attempts, delay, err)
	s.update(func(st *Status) {
		st.State = StatePolling
		st.Attempts = attempts
		st.NextRetry = time.Now().Add(delay)
		st.LastError = err
	})
	return delay, true
}

// update mutates the status under the lock and publishes it without
// blocking.
func (s *Supervisor) update(fn func(*Status)) {
	s.mu.Lock()
	fn(&s.status)
	st := s.status
	s.mu.Unlock()

	select {
	case s.statusCh <- StatusMsg{Status: st}:
	default:
		// Drop if channel is full to avoid blocking the loop
	}
}

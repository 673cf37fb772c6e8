package poll

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/analysis"
)

// Fetcher retrieves the current result snapshot for an analysis subject.
// Implementations must honor ctx cancellation and return ErrNotFound
// (possibly wrapped) when the backend has no result for the subject yet.
type Fetcher func(ctx context.Context, subject string) (*analysis.Snapshot, error)

type fetchResult struct {
	snap *analysis.Snapshot
	err  error
}

// Session owns one polling lifecycle for one key. All tick scheduling and
// classification runs on the session's own goroutine; fetches run on a
// short-lived helper goroutine so the loop never blocks on I/O.
type Session struct {
	key          string
	subject      string
	fetcher      Fetcher
	interval     time.Duration
	maxAttempts  int
	fetchTimeout time.Duration
	registry     *Registry

	mu         sync.Mutex
	state      State
	onUpdate   func(*analysis.Snapshot)
	onError    func(error)
	attempts   int
	lastMarker string
	// inflight guards against overlapping fetches: set when a tick
	// starts one, cleared when its result comes back.
	inflight bool

	results    chan fetchResult
	wake       chan struct{}
	visCh      <-chan struct{}
	visRelease func()
	cancel     context.CancelFunc
	done       chan struct{}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts returns how many ticks the session has consumed so far.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// LastMarker returns the generation marker of the last fresh snapshot the
// session recorded, or "" if none has been seen.
func (s *Session) LastMarker() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMarker
}

// run is the session's event loop. The interval ticker, visibility-regain
// events, and explicit wakes all feed the same tick logic; fetch results
// come back on the results channel. The loop exits when the session
// context is cancelled, which every terminal transition does.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	if s.visRelease != nil {
		defer s.visRelease()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		case <-s.wake:
			s.tick(ctx)
		case <-s.visCh:
			s.tick(ctx)
		case res := <-s.results:
			s.clearInflight()
			s.handleResult(res)
		}
	}
}

// tick consumes one unit of the attempt budget and starts a fetch. A tick
// that lands while a fetch from a previous tick is still outstanding is
// skipped entirely: at most one in-flight fetch per session.
func (s *Session) tick(ctx context.Context) {
	s.mu.Lock()
	if s.state != StatePolling || s.inflight {
		s.mu.Unlock()
		return
	}
	s.attempts++
	if s.attempts > s.maxAttempts {
		s.mu.Unlock()
		s.finish(StateTimedOut, nil, &TimeoutError{Key: s.key, Attempts: s.maxAttempts})
		return
	}
	s.inflight = true
	s.mu.Unlock()

	go func() {
		fctx := ctx
		if s.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
			defer cancel()
		}
		snap, err := s.fetcher(fctx, s.subject)
		select {
		case s.results <- fetchResult{snap: snap, err: err}:
		case <-ctx.Done():
			// Session stopped while the fetch was outstanding; the
			// result must never be acted upon.
		}
	}()
}

func (s *Session) clearInflight() {
	s.mu.Lock()
	s.inflight = false
	s.mu.Unlock()
}

func (s *Session) handleResult(res fetchResult) {
	// Liveness check: a Stop or replacement may have landed while the
	// fetch was outstanding. Stale results are discarded silently.
	s.mu.Lock()
	if s.state != StatePolling {
		s.mu.Unlock()
		return
	}
	lastMarker := s.lastMarker
	s.mu.Unlock()

	if res.err != nil {
		// Soft failure: log only, keep the timer running.
		if errors.Is(res.err, ErrNotFound) {
			log.Printf("[poll] %s: result not ready yet", s.key)
		} else {
			log.Printf("[poll] %s: fetch failed (will retry): %v", s.key, res.err)
		}
		return
	}

	switch analysis.Classify(lastMarker, res.snap) {
	case analysis.NotFresh:
		// Nothing new; wait for the next tick.
	case analysis.FreshIncomplete:
		s.recordMarker(res.snap.GenerationMarker)
		log.Printf("[poll] %s: generation %q published without content, continuing", s.key, res.snap.GenerationMarker)
	case analysis.FreshComplete:
		s.finish(StateDelivered, res.snap, nil)
	}
}

// recordMarker advances lastMarker to a token actually observed in a
// fetched snapshot. Markers never revert: the only writers are this method
// and the delivery path, both of which only run while the session is live.
func (s *Session) recordMarker(marker string) {
	s.mu.Lock()
	if s.state == StatePolling {
		s.lastMarker = marker
	}
	s.mu.Unlock()
}

// finish performs the session's single terminal transition. Exactly one
// caller wins; later calls are no-ops. The order is fixed: flip the state,
// cancel the context (stopping the ticker and releasing the visibility
// subscription), remove the session from the registry, then invoke at most
// one callback.
func (s *Session) finish(state State, snap *analysis.Snapshot, err error) {
	s.mu.Lock()
	if s.state != StatePolling {
		s.mu.Unlock()
		return
	}
	s.state = state
	if state == StateDelivered {
		s.lastMarker = snap.GenerationMarker
	}
	onUpdate := s.onUpdate
	onError := s.onError
	attempts := s.attempts
	s.mu.Unlock()

	s.cancel()
	s.registry.drop(s)

	switch state {
	case StateDelivered:
		log.Printf("[poll] %s: complete result delivered (generation %q, %d attempts)", s.key, snap.GenerationMarker, attempts)
		if onUpdate != nil {
			onUpdate(snap)
		}
	case StateTimedOut:
		log.Printf("[poll] %s: giving up after %d attempts", s.key, s.maxAttempts)
		if onError != nil {
			onError(err)
		}
	case StateCancelled:
		// Silent by contract.
	}
}

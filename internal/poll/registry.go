package poll

import (
	"context"
	"log"
	"sync"

	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/analysis"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/config"
)

// VisibilitySource delivers page visibility-regain events to poll sessions.
// Each session subscribes on Start and releases its subscription when it
// reaches a terminal state. A visibility-triggered tick consumes one unit
// of the session's attempt budget, same as a timer tick.
type VisibilitySource interface {
	// Subscribe returns a channel that receives an event each time the
	// hosting page transitions from hidden to visible, and a release
	// function that must be called exactly once when done.
	Subscribe() (<-chan struct{}, func())
}

// Registry maps keys to at most one live poll session each. One Registry is
// constructed at process start and passed by reference to its consumers;
// there is no package-level instance.
type Registry struct {
	cfg        config.PollConfig
	visibility VisibilitySource // may be nil

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry. vis may be nil, in which case sessions
// tick on their interval timer and explicit wakes only.
func NewRegistry(cfg config.PollConfig, vis VisibilitySource) *Registry {
	return &Registry{
		cfg:        cfg,
		visibility: vis,
		sessions:   make(map[string]*Session),
	}
}

// Start begins polling for key. Any live session for the same key is fully
// cancelled first (silently -- its callbacks are never invoked again), so
// there are never two live sessions per key. The new session fires its
// first tick immediately from its own goroutine; Start does not block on
// the first fetch.
func (r *Registry) Start(key, subject string, fetcher Fetcher, onUpdate func(*analysis.Snapshot), onError func(error)) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		key:          key,
		subject:      subject,
		fetcher:      fetcher,
		interval:     r.cfg.Interval,
		maxAttempts:  r.cfg.MaxAttempts,
		fetchTimeout: r.cfg.FetchTimeout,
		registry:     r,
		onUpdate:     onUpdate,
		onError:      onError,
		results:      make(chan fetchResult),
		wake:         make(chan struct{}, 1),
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	if r.visibility != nil {
		s.visCh, s.visRelease = r.visibility.Subscribe()
	}

	r.mu.Lock()
	old := r.sessions[key]
	r.sessions[key] = s
	r.mu.Unlock()

	if old != nil {
		log.Printf("[poll] %s: replacing live session", key)
		old.finish(StateCancelled, nil, nil)
	}

	log.Printf("[poll] %s: polling started (subject=%s, interval=%s, budget=%d)", key, subject, r.cfg.Interval, r.cfg.MaxAttempts)
	go s.run(ctx)
}

// Stop cancels polling for key. No-op if key is unknown or already stopped.
func (r *Registry) Stop(key string) {
	r.mu.Lock()
	s := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if s == nil {
		return
	}
	log.Printf("[poll] %s: polling stopped", key)
	s.finish(StateCancelled, nil, nil)
}

// IsActive reports whether a session for key is currently polling.
func (r *Registry) IsActive(key string) bool {
	r.mu.Lock()
	s := r.sessions[key]
	r.mu.Unlock()
	return s != nil && s.State() == StatePolling
}

// Resume replaces the callback pair of a live session in place, without
// resetting its attempt count or last marker and without touching its
// timer. This lets a dashboard view that unmounted and remounted re-attach
// to polling that continued in the background. No-op if key is not live.
func (r *Registry) Resume(key string, onUpdate func(*analysis.Snapshot), onError func(error)) {
	r.mu.Lock()
	s := r.sessions[key]
	r.mu.Unlock()
	if s == nil {
		return
	}

	s.mu.Lock()
	if s.state == StatePolling {
		s.onUpdate = onUpdate
		s.onError = onError
	}
	s.mu.Unlock()
}

// Wake triggers an immediate tick for key's session, independent of its
// interval timer. The tick consumes one attempt. No-op if key is not live.
// Wakes are coalesced: poking an already-woken session has no extra effect.
func (r *Registry) Wake(key string) {
	r.mu.Lock()
	s := r.sessions[key]
	r.mu.Unlock()
	if s == nil {
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// ActiveCount returns the number of sessions currently polling.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	count := 0
	for _, s := range sessions {
		if s.State() == StatePolling {
			count++
		}
	}
	return count
}

// Shutdown cancels every live session and waits for their goroutines to
// exit. Used on process shutdown; sessions are cancelled silently, same as
// Stop.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.finish(StateCancelled, nil, nil)
		<-s.done
	}
}

// drop removes s from the map if it is still the registered session for its
// key. Identity is checked so a terminal transition of a replaced session
// never evicts its replacement.
func (r *Registry) drop(s *Session) {
	r.mu.Lock()
	if r.sessions[s.key] == s {
		delete(r.sessions, s.key)
	}
	r.mu.Unlock()
}

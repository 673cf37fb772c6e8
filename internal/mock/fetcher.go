package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/analysis"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/poll"
)

// Fetcher fabricates analysis job lifecycles for development without the
// real analysis backend. Each subject walks the full arc a poll session
// has to handle: a couple of "not found" responses while the job is queued,
// an incomplete generation while the backend is writing, a stale repeat of
// that generation, then a complete result.
type Fetcher struct {
	mu   sync.Mutex
	jobs map[string]int // calls seen per subject
}

func NewFetcher() *Fetcher {
	return &Fetcher{jobs: make(map[string]int)}
}

// Snapshot satisfies poll.Fetcher.
func (f *Fetcher) Snapshot(ctx context.Context, subject string) (*analysis.Snapshot, error) {
	f.mu.Lock()
	f.jobs[subject]++
	call := f.jobs[subject]
	f.mu.Unlock()

	switch {
	case call <= 2:
		return nil, fmt.Errorf("mock job %s queued: %w", subject, poll.ErrNotFound)
	case call <= 4:
		// Generation published, content still being written. The repeat
		// on call 4 exercises the stale-marker path.
		return &analysis.Snapshot{GenerationMarker: "gen-1"}, nil
	default:
		return completeSnapshot(subject), nil
	}
}

// Reset forgets all fabricated job progress so subjects start over.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	f.jobs = make(map[string]int)
	f.mu.Unlock()
}

func completeSnapshot(subject string) *analysis.Snapshot {
	return &analysis.Snapshot{
		GenerationMarker: "gen-2",
		NarrativeText: fmt.Sprintf(
			"Analysis for %s: 2 of 14 devices report degraded uplinks; traffic on the core ring is within budget.",
			subject),
		Recommendations: []analysis.Recommendation{
			{
				Title:    "Replace SFP on sw-core-2 port 48",
				Detail:   "CRC errors rising over the last three polling windows.",
				Severity: "warning",
			},
			{
				Title:    "Rebalance VLAN 12 trunks",
				Detail:   "Single uplink carries 92% of VLAN 12 traffic.",
				Severity: "info",
			},
		},
		Graph: &analysis.Graph{
			Nodes: []analysis.Node{
				{ID: "sw-core-1", Label: "Core switch 1"},
				{ID: "sw-core-2", Label: "Core switch 2"},
				{ID: "rt-edge-1", Label: "Edge router"},
			},
			Edges: []analysis.Edge{
				{Source: "sw-core-1", Target: "sw-core-2"},
				{Source: "sw-core-1", Target: "rt-edge-1"},
			},
		},
	}
}

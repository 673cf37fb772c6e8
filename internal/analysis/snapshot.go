package analysis

// Snapshot is one fetched result payload for an asynchronous analysis job.
// It exists only for the duration of a single poll tick's classification
// and is never persisted.
//
// Presence matters for Recommendations and Graph: a nil Recommendations
// slice means the field was absent from the payload, while a non-nil empty
// slice means the backend published an (empty) recommendation list. JSON
// decoding preserves that distinction.
type Snapshot struct {
	// GenerationMarker is an opaque token distinguishing one published
	// result version from the next. Equality-comparable only, never
	// ordered.
	GenerationMarker string `json:"generationMarker,omitempty"`

	// NarrativeText is the human-readable analysis summary.
	NarrativeText string `json:"narrativeText,omitempty"`

	// Recommendations is the ordered list of suggested actions. No
	// omitempty: an empty list must survive re-encoding as present.
	Recommendations []Recommendation `json:"recommendations"`

	// Graph is the device-relationship graph derived from the analysis.
	Graph *Graph `json:"graph,omitempty"`
}

// Recommendation is a single suggested action for the inventory operator.
type Recommendation struct {
	Title    string `json:"title,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// Graph is a node/edge view of the analyzed network.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type Node struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// HasContent reports whether the snapshot carries any completion-strength
// content: non-empty narrative text, a present recommendations field (an
// empty list counts -- presence of the field, not its length, is the
// signal), or a graph with at least one node or edge.
func (s *Snapshot) HasContent() bool {
	if s.NarrativeText != "" {
		return true
	}
	if s.Recommendations != nil {
		return true
	}
	if s.Graph != nil && (len(s.Graph.Nodes) > 0 || len(s.Graph.Edges) > 0) {
		return true
	}
	return false
}

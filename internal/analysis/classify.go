package analysis

import "encoding/json"

// Classification is the outcome of comparing a fetched snapshot against the
// marker of the last result a poll session acted on.
type Classification int

const (
	// NotFresh: the snapshot carries no marker, or the same marker as the
	// previously seen result. Nothing new to act on.
	NotFresh Classification = iota
	// FreshIncomplete: a new generation was published but it carries no
	// content yet. The marker should be recorded so this generation is
	// never reclassified, and polling continues.
	FreshIncomplete
	// FreshComplete: a new generation with content. Terminal for the
	// session: deliver it and stop polling.
	FreshComplete
)

var classificationNames = map[Classification]string{
	NotFresh:        "not_fresh",
	FreshIncomplete: "fresh_incomplete",
	FreshComplete:   "fresh_complete",
}

func (c Classification) String() string {
	if s, ok := classificationNames[c]; ok {
		return s
	}
	return "unknown"
}

func (c Classification) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Classify decides what a freshly fetched snapshot means relative to
// lastMarker, the generation marker of the last result the session
// recorded (empty string when no result has been seen yet).
//
// Markers are opaque: "changed" is the only comparison performed.
func Classify(lastMarker string, snap *Snapshot) Classification {
	if snap == nil || snap.GenerationMarker == "" || snap.GenerationMarker == lastMarker {
		return NotFresh
	}
	if snap.HasContent() {
		return FreshComplete
	}
	return FreshIncomplete
}

package blocks

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"djc/utils/debug"
)

// Outcome of a single strategy attempt.
type Outcome string

const (
	OutcomeSkipped         Outcome = "skipped"
	OutcomeNoMarkers       Outcome = "no_markers"
	OutcomeNoValidPayloads Outcome = "no_valid_payloads"
	OutcomeSucceeded       Outcome = "succeeded"
)

// Attempt describes how one strategy went.
type Attempt struct {
	Order   int     `json:"order"`
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`
	Markers int     `json:"markers"`
	Ignored int     `json:"ignored"`
}

// Diagnostics is conversion log intended for humans and for callers which want
// to report what happened. Counts are taken from the last strategy which found
// markers.
type Diagnostics struct {
	Strategy    string         `json:"strategy,omitempty"`
	Attempts    []Attempt      `json:"attempts"`
	BlockCounts map[string]int `json:"counts"`
	StyleCounts map[string]int `json:"style_counts"`
	Ignored     int            `json:"ignored"`
	Repaired    int            `json:"repaired,omitempty"`
}

func newDiagnostics() *Diagnostics {
	return &Diagnostics{
		Attempts:    make([]Attempt, 0, 4),
		BlockCounts: make(map[string]int),
		StyleCounts: make(map[string]int),
	}
}

// AttemptNames returns names of strategies which actually scanned input, in
// order. Inapplicable ones are only visible in Attempts.
func (d *Diagnostics) AttemptNames() []string {
	names := make([]string, 0, len(d.Attempts))
	for _, a := range d.Attempts {
		if a.Outcome != OutcomeSkipped {
			names = append(names, a.Name)
		}
	}
	return names
}

func (d *Diagnostics) foundMarkers() bool {
	for _, a := range d.Attempts {
		if a.Markers > 0 {
			return true
		}
	}
	return false
}

// String returns readable tree of diagnostics.
func (d *Diagnostics) String() string {
	if d == nil {
		return "<nil Diagnostics>"
	}
	tw := debug.NewTreeWriter()

	if len(d.Strategy) > 0 {
		tw.Line(0, "Strategy: %s", d.Strategy)
	} else {
		tw.Line(0, "Strategy: none succeeded")
	}
	tw.Line(0, "Attempts: %d", len(d.Attempts))
	for _, a := range d.Attempts {
		tw.Line(1, "[%d] %s: %s (markers %d, ignored %d)", a.Order, a.Name, a.Outcome, a.Markers, a.Ignored)
	}
	writeCounts(tw, "Blocks", d.BlockCounts)
	writeCounts(tw, "Styles", d.StyleCounts)
	tw.Line(0, "Ignored candidates: %d", d.Ignored)
	if d.Repaired > 0 {
		tw.Line(0, "Repaired payloads: %d", d.Repaired)
	}
	return tw.String()
}

func writeCounts(tw *debug.TreeWriter, label string, counts map[string]int) {
	tw.Line(0, "%s: %d", label, len(counts))
	keys := slices.Collect(maps.Keys(counts))
	sort.Sort(natural.StringSlice(keys))
	for _, k := range keys {
		tw.Line(1, "%s: %d", k, counts[k])
	}
}

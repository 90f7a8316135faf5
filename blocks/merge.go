package blocks

import (
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"
)

// Result is a successful conversion: decoded blocks and their style subtrees
// grouped by type key.
type Result struct {
	Blocks *Group[*Object] `json:"blocks"`
	Style  *Group[any]     `json:"style"`

	Diagnostics *Diagnostics `json:"-"`
}

// MergedJSON serializes blocks and style groups. Slashes and HTML characters
// are not escaped.
func (r *Result) MergedJSON(indent string) ([]byte, error) {
	data, err := marshalNoEscape(r)
	if err != nil || len(indent) == 0 {
		return data, err
	}
	return reindent(data, indent)
}

// Merger turns markers into grouped blocks. It is stateless and may be used
// concurrently.
type Merger struct {
	prefix     string
	styleKey   string
	singletons []string
	repair     bool
	log        *zap.Logger
}

func NewMerger(opts Options, log *zap.Logger) *Merger {
	return &Merger{
		prefix:     opts.KeyPrefix,
		styleKey:   opts.StyleKey,
		singletons: opts.PreferSingleton,
		repair:     opts.RepairPayloads,
		log:        log,
	}
}

// TypeKey normalizes marker type name: lower case, "-" replaced with "_",
// prefixed.
func (m *Merger) TypeKey(typeName string) string {
	return m.prefix + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(typeName)), "-", "_")
}

// mergeStats are per attempt numbers reported in diagnostics.
type mergeStats struct {
	blocks   map[string]int
	styles   map[string]int
	ignored  int
	repaired int
}

// Merge decodes marker payloads and groups them. Candidates which are not
// valid JSON objects are skipped and counted. Returned result is nil when
// nothing usable was found.
func (m *Merger) Merge(markers []Marker) (*Result, mergeStats) {
	stats := mergeStats{
		blocks: make(map[string]int),
		styles: make(map[string]int),
	}
	blocks, style := NewGroup[*Object](), NewGroup[any]()

	for _, mk := range markers {
		obj, repaired, err := m.decode(mk.Payload)
		if err != nil {
			stats.ignored++
			m.log.Debug("Ignoring malformed block", zap.String("type", mk.TypeName), zap.Int("offset", mk.Offset), zap.Error(err))
			continue
		}
		if repaired {
			stats.repaired++
		}

		key := m.TypeKey(mk.TypeName)

		subtree, hasStyle := obj.Get(m.styleKey)
		if hasStyle {
			obj.Delete(m.styleKey)
		}

		blocks.Append(key, obj)
		stats.blocks[key]++

		if hasStyle && subtree != nil {
			style.Append(key, subtree)
			stats.styles[key]++
		}
	}

	if blocks.Len() == 0 && style.Len() == 0 {
		return nil, stats
	}

	// collapse is decided for each group using its own count
	blocks.Collapse(m.singletons...)
	style.Collapse(m.singletons...)

	return &Result{Blocks: blocks, Style: style}, stats
}

func (m *Merger) decode(payload string) (*Object, bool, error) {
	obj, err := DecodeObject([]byte(payload))
	if err == nil || !m.repair || err == ErrNotObject {
		return obj, false, err
	}
	fixed, rerr := jsonrepair.JSONRepair(payload)
	if rerr != nil {
		return nil, false, err
	}
	if obj, rerr = DecodeObject([]byte(fixed)); rerr != nil {
		return nil, false, err
	}
	return obj, true, nil
}

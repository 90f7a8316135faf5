// Package blocks extracts typed JSON payloads embedded into text as comment
// markers and merges them by type.
package blocks

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Options controls marker recognition and merging.
type Options struct {
	// Namespace is the tag prefix in front of type name, "wp:divi" matches
	// <!-- wp:divi/section {...} -->
	Namespace string
	// KeyPrefix is prepended to normalized type names.
	KeyPrefix string
	// StyleKey is reserved block member moved into style group.
	StyleKey string
	// PreferSingleton lists type keys which are collapsed to a single value
	// when only one instance is present.
	PreferSingleton []string
	// RepairPayloads attempts to fix broken JSON payloads before ignoring them.
	RepairPayloads bool
}

func DefaultOptions() Options {
	return Options{
		Namespace:       "wp:divi",
		KeyPrefix:       "divi_",
		StyleKey:        "style",
		PreferSingleton: []string{"divi_section", "divi_row", "divi_column", "divi_blurb"},
	}
}

// Engine runs escape recovery strategies over input until one of them
// produces usable blocks. Engine has no mutable state and is safe for
// concurrent use.
type Engine struct {
	scanner    *Scanner
	merger     *Merger
	strategies []Strategy
	log        *zap.Logger
}

func New(opts Options, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(strings.TrimSpace(opts.StyleKey)) == 0 {
		return nil, errors.New("style key is empty")
	}
	scanner, err := NewScanner(opts.Namespace)
	if err != nil {
		return nil, err
	}
	log = log.Named("blocks")
	return &Engine{
		scanner:    scanner,
		merger:     NewMerger(opts, log),
		strategies: DefaultStrategies(),
		log:        log,
	}, nil
}

// Scan returns markers found in text without any unescaping.
func (e *Engine) Scan(text string) []Marker {
	return e.scanner.Scan(text)
}

// TypeKey returns normalized type key for marker type name.
func (e *Engine) TypeKey(typeName string) string {
	return e.merger.TypeKey(typeName)
}

// Convert tries strategies in order and returns the first successful result.
// When nothing works returned error is *ConversionError.
func (e *Engine) Convert(raw string) (*Result, error) {
	diag := newDiagnostics()

	for i, s := range e.strategies {
		attempt := Attempt{Order: i + 1, Name: s.Name}

		text, ok := s.Transform(raw)
		if !ok {
			attempt.Outcome = OutcomeSkipped
			diag.Attempts = append(diag.Attempts, attempt)
			e.log.Debug("Strategy not applicable", zap.Int("order", attempt.Order), zap.String("strategy", s.Name))
			continue
		}

		markers := e.scanner.Scan(text)
		attempt.Markers = len(markers)
		if len(markers) == 0 {
			attempt.Outcome = OutcomeNoMarkers
			diag.Attempts = append(diag.Attempts, attempt)
			e.log.Debug("Strategy found no markers", zap.Int("order", attempt.Order), zap.String("strategy", s.Name))
			continue
		}

		res, stats := e.merger.Merge(markers)
		attempt.Ignored = stats.ignored
		diag.BlockCounts, diag.StyleCounts = stats.blocks, stats.styles
		diag.Ignored, diag.Repaired = stats.ignored, stats.repaired

		if res == nil {
			attempt.Outcome = OutcomeNoValidPayloads
			diag.Attempts = append(diag.Attempts, attempt)
			e.log.Debug("Strategy found no valid payloads",
				zap.Int("order", attempt.Order), zap.String("strategy", s.Name), zap.Int("markers", attempt.Markers))
			continue
		}

		attempt.Outcome = OutcomeSucceeded
		diag.Attempts = append(diag.Attempts, attempt)
		diag.Strategy = s.Name
		res.Diagnostics = diag

		e.log.Debug("Strategy succeeded",
			zap.Int("order", attempt.Order), zap.String("strategy", s.Name),
			zap.Int("markers", attempt.Markers), zap.Int("ignored", attempt.Ignored),
			zap.Int("types", res.Blocks.Len()), zap.Int("styled types", res.Style.Len()))
		return res, nil
	}

	kind := ErrNoMarkersFound
	if diag.foundMarkers() {
		kind = ErrNoValidPayloads
	}
	return nil, &ConversionError{Kind: kind, Attempts: diag.AttemptNames(), Diagnostics: diag}
}

func reindent(data []byte, indent string) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

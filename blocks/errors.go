package blocks

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoMarkersFound - no strategy was able to locate a single marker.
	ErrNoMarkersFound = errors.New("no block markers found")
	// ErrNoValidPayloads - markers were found but none of them carried valid JSON object.
	ErrNoValidPayloads = errors.New("no valid block payloads")
)

// ConversionError reports total conversion failure together with the list of
// strategies which were tried.
type ConversionError struct {
	Kind        error
	Attempts    []string
	Diagnostics *Diagnostics
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%v (attempted: %s)", e.Kind, strings.Join(e.Attempts, ", "))
}

func (e *ConversionError) Unwrap() error {
	return e.Kind
}

package blocks

import (
	"errors"
	"regexp"
	"strings"
)

// Marker is a single typed comment found in text, Payload is expected (but
// not guaranteed) to be a JSON object.
type Marker struct {
	TypeName string
	Payload  string
	Offset   int
}

// Scanner locates markers of the form
//
//	<!-- namespace/type {json} -->
//	<!-- namespace/type {json} /-->
type Scanner struct {
	re *regexp.Regexp
}

func NewScanner(namespace string) (*Scanner, error) {
	ns := strings.TrimSpace(namespace)
	if len(ns) == 0 {
		return nil, errors.New("marker namespace is empty")
	}
	// payload is matched lazily up to the first "}" that is followed by the
	// closing delimiter, so nested braces are fine
	re, err := regexp.Compile(`(?s)<!--\s*` + regexp.QuoteMeta(ns) + `/([\w\-]+)\s+(\{.*?\})\s*/?-->`)
	if err != nil {
		return nil, err
	}
	return &Scanner{re: re}, nil
}

// Scan returns all markers in order of appearance, no markers is not an error.
func (s *Scanner) Scan(text string) []Marker {
	found := s.re.FindAllStringSubmatchIndex(text, -1)
	markers := make([]Marker, 0, len(found))
	for _, m := range found {
		markers = append(markers, Marker{
			TypeName: strings.TrimSpace(text[m[2]:m[3]]),
			Payload:  strings.TrimSpace(text[m[4]:m[5]]),
			Offset:   m[0],
		})
	}
	return markers
}

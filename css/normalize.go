package css

import (
	"regexp"
	"strings"
)

// cutset of characters trimmed from selectors and declaration parts, same as
// PHP trim() default.
const trimSet = " \t\n\r\x00\x0B"

var whitespaceRun = regexp.MustCompile(`[\t\n\v\f\r ]+`)

// NormalizeSelector turns style map key into selector usable under block
// parent class. Bare identifiers become classes, anything which already looks
// like a selector is kept as is.
func NormalizeSelector(sel string) string {
	s := strings.Trim(sel, trimSet)
	if len(s) == 0 {
		return ".unknown"
	}
	switch s[0] {
	case '.', '#', '[':
		return s
	}
	if !strings.ContainsAny(s, " >+~,") {
		return "." + s
	}
	return s
}

// NormalizeDeclarations rewrites free form declaration text into
// "prop: value;" list separated by single spaces. Fragments without property
// or value are dropped.
func NormalizeDeclarations(raw string) string {
	flat := whitespaceRun.ReplaceAllString(raw, " ")

	decls := make([]string, 0, 4)
	for part := range strings.SplitSeq(flat, ";") {
		part = strings.Trim(part, trimSet)
		prop, val, found := strings.Cut(part, ":")
		if !found {
			continue
		}
		prop, val = strings.Trim(prop, trimSet), strings.Trim(val, trimSet)
		if len(prop) == 0 || len(val) == 0 {
			continue
		}
		decls = append(decls, sanitizeProperty(prop)+": "+val+";")
	}
	return strings.Join(decls, " ")
}

func sanitizeProperty(prop string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9', r == '_', r == '-':
			return r
		}
		return '-'
	}, prop)
}

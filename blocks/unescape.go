package blocks

import (
	"encoding/json"
	"strings"
)

// hasEscapes reports whether text looks like it has been escaped for
// embedding into a JSON string.
func hasEscapes(text string) bool {
	return strings.Contains(text, `\"`) || strings.Contains(text, `\n`) || strings.Contains(text, `\t`)
}

// UnwrapJSONString decodes text which in its entirety is a JSON string literal.
func UnwrapJSONString(text string) (string, bool) {
	var out string
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return "", false
	}
	return out, true
}

// UnescapeJSONWrapped treats text as the body of a JSON string literal and
// decodes it. Quotes, control characters and backslashes which do not start a
// valid JSON escape sequence are escaped first, so only sequences like \" \n
// \t \\ \uXXXX are actually interpreted.
func UnescapeJSONWrapped(text string) (string, bool) {
	if !hasEscapes(text) {
		return "", false
	}

	var b strings.Builder
	b.Grow(len(text) + 16)
	b.WriteByte('"')
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\\':
			if n := jsonEscapeLen(text[i:]); n > 0 {
				b.WriteString(text[i : i+n])
				i += n - 1
				continue
			}
			b.WriteString(`\\`)
		case c == '"':
			b.WriteString(`\"`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			b.WriteString(`\u00`)
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xF])
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')

	return UnwrapJSONString(b.String())
}

const hexDigits = "0123456789abcdef"

// jsonEscapeLen returns length of valid JSON escape sequence at the start of
// s or 0.
func jsonEscapeLen(s string) int {
	if len(s) < 2 || s[0] != '\\' {
		return 0
	}
	switch s[1] {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
		return 2
	case 'u':
		if len(s) < 6 {
			return 0
		}
		for i := 2; i < 6; i++ {
			if !isHex(s[i]) {
				return 0
			}
		}
		return 6
	}
	return 0
}

// StripCSlashes interprets C-style escape sequences: \n \t \r \a \v \b \f,
// \xHH (one or two hex digits), octal \OOO (up to three digits). Backslash
// before any other character is dropped. Trailing backslash is kept.
func StripCSlashes(text string) string {
	if !strings.Contains(text, `\`) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' || i+1 >= len(text) {
			b.WriteByte(c)
			continue
		}
		i++
		switch c = text[i]; c {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte('\a')
		case 'v':
			b.WriteByte('\v')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'x':
			if i+1 < len(text) && isHex(text[i+1]) {
				v := unhex(text[i+1])
				i++
				if i+1 < len(text) && isHex(text[i+1]) {
					v = v<<4 | unhex(text[i+1])
					i++
				}
				b.WriteByte(v)
				continue
			}
			b.WriteByte(c)
		default:
			if isOctal(c) {
				v := c - '0'
				for n := 1; n < 3 && i+1 < len(text) && isOctal(text[i+1]); n++ {
					i++
					v = v<<3 | (text[i] - '0')
				}
				b.WriteByte(v)
				continue
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func isOctal(c byte) bool {
	return '0' <= c && c <= '7'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

package css_test

import (
	"testing"

	"djc/css"
)

func TestNormalizeSelector(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"btn", ".btn"},
		{"  btn\t", ".btn"},
		{"#main", "#main"},
		{".title", ".title"},
		{"[data-x]", "[data-x]"},
		{"h2 strong", "h2 strong"},
		{"a>b", "a>b"},
		{"a+b", "a+b"},
		{"a~b", "a~b"},
		{"a,b", "a,b"},
		{"hover:focus", ".hover:focus"},
		{"", ".unknown"},
		{" \n ", ".unknown"},
	}
	for _, tt := range tests {
		if got := css.NormalizeSelector(tt.in); got != tt.want {
			t.Errorf("NormalizeSelector(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDeclarations(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"doubled semicolon", "color:red;;", "color: red;"},
		{"multiline", "color : red;\n\tmargin:\r\n 0  auto", "color: red; margin: 0 auto;"},
		{"no colon", "color red; padding:1px", "padding: 1px;"},
		{"empty property", ":red;width:1px", "width: 1px;"},
		{"empty value", "color:;height: 2px", "height: 2px;"},
		{"value with colon", "background:url(http://x/y.png)", "background: url(http://x/y.png);"},
		{"property sanitized", "font size:1em;b@r:1", "font-size: 1em; b-r: 1;"},
		{"custom property kept", "--main_color:#fff", "--main_color: #fff;"},
		// one dash per rune, not per byte
		{"non ascii property", "café:bold;размер:1px", "caf-: bold; ------: 1px;"},
		{"nothing usable", " ; ; ", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := css.NormalizeDeclarations(tt.in); got != tt.want {
				t.Errorf("NormalizeDeclarations(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

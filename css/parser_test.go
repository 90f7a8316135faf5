package css_test

import (
	"slices"
	"testing"

	"go.uber.org/zap"

	"djc/css"
)

func TestParser_Rules(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	sheet := p.Parse([]byte("/* c */\n.a { color: red; margin: 0 auto; }\n#b { top: 0; }"))

	if len(sheet.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(sheet.Rules))
	}
	if sheet.Rules[0].Selector != ".a" {
		t.Errorf("selector = %q, want .a", sheet.Rules[0].Selector)
	}
	if v, _ := sheet.Rules[0].Value("margin"); v != "0 auto" {
		t.Errorf("margin = %q, want '0 auto'", v)
	}
	if got := len(sheet.RulesBySelector("#b")); got != 1 {
		t.Errorf("RulesBySelector(#b) = %d rules, want 1", got)
	}
	if len(sheet.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", sheet.Warnings)
	}
}

func TestParser_Warnings(t *testing.T) {
	p := css.NewParser(nil)
	sheet := p.Parse([]byte(`@media screen { .a { color: red; } } .b { }`))

	if len(sheet.Warnings) < 2 {
		t.Errorf("expected warnings for @media and empty ruleset, got %v", sheet.Warnings)
	}
}

func TestParser_Empty(t *testing.T) {
	sheet := css.NewParser(nil).Parse(nil)
	if len(sheet.Rules) != 0 || len(sheet.Warnings) != 0 {
		t.Errorf("unexpected result for empty input: %+v", sheet)
	}
}

func TestStylesheet_Conflicts(t *testing.T) {
	tests := []struct {
		name string
		css  string
		want []string
	}{
		{"no repeats", ".a { color: red; } .b { color: blue; }", nil},
		{"same value", ".a { color: red; } .a { color: red; }", nil},
		{"overridden", ".a { color: red; top: 0; } .b { top: 1px; } .a { COLOR: blue; top: 0; }", []string{".a: color"}},
		{"third rule", ".a { margin: 0; } .a { color: red; } .a { margin: 4px; }", []string{".a: margin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := css.NewParser(nil).Parse([]byte(tt.css)).Conflicts()
			if !slices.Equal(got, tt.want) {
				t.Errorf("Conflicts() = %v, want %v", got, tt.want)
			}
		})
	}
}

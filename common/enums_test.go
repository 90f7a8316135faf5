package common

import (
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func TestOutputKind_String(t *testing.T) {
	tests := []struct {
		kind OutputKind
		want string
	}{
		{OutputKindCss, "css"},
		{OutputKindJson, "json"},
		{OutputKindBoth, "both"},
		{OutputKind(99), "OutputKind(99)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseOutputKind(t *testing.T) {
	tests := []struct {
		input   string
		want    OutputKind
		wantErr bool
	}{
		{"css", OutputKindCss, false},
		{"JSON", OutputKindJson, false},
		{"Both", OutputKindBoth, false},
		{"html", OutputKind(0), true},
		{"", OutputKind(0), true},
	}
	for _, tt := range tests {
		got, err := ParseOutputKind(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOutputKind(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestOutputKind_Want(t *testing.T) {
	if !OutputKindBoth.WantCSS() || !OutputKindBoth.WantJSON() {
		t.Error("both must want css and json")
	}
	if !OutputKindCss.WantCSS() || OutputKindCss.WantJSON() {
		t.Error("css must want css only")
	}
	if OutputKindJson.WantCSS() || !OutputKindJson.WantJSON() {
		t.Error("json must want json only")
	}
}

func TestStoreKind_YAML(t *testing.T) {
	var v struct {
		Kind StoreKind `yaml:"kind"`
	}
	if err := yaml.Unmarshal([]byte("kind: sqlite\n"), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v.Kind != StoreKindSqlite {
		t.Errorf("Kind = %v, want sqlite", v.Kind)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != "kind: sqlite\n" {
		t.Errorf("Marshal() = %q", data)
	}
	if err := yaml.Unmarshal([]byte("kind: redis\n"), &v); err == nil {
		t.Error("expected error for unknown store kind")
	}
}

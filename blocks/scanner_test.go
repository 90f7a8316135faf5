package blocks

import (
	"testing"
)

func TestNewScanner_EmptyNamespace(t *testing.T) {
	if _, err := NewScanner("  "); err == nil {
		t.Fatal("expected error for empty namespace")
	}
}

func TestScanner_Scan(t *testing.T) {
	s, err := NewScanner("wp:divi")
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}

	text := `<p>intro</p>
<!-- wp:divi/section {"a":{"b":{"c":1}}} -->
<!--wp:divi/text-module   {"content":"x"}/-->
<!-- wp:core/paragraph {"ignored":true} -->
<!-- wp:divi/row {not json} /-->
<!--
	wp:divi/column {"multi":
"line"}
-->`

	markers := s.Scan(text)
	want := []struct{ typ, payload string }{
		{"section", `{"a":{"b":{"c":1}}}`},
		{"text-module", `{"content":"x"}`},
		{"row", `{not json}`},
		{"column", "{\"multi\":\n\"line\"}"},
	}
	if len(markers) != len(want) {
		t.Fatalf("Scan() found %d markers, want %d: %+v", len(markers), len(want), markers)
	}
	for i, w := range want {
		if markers[i].TypeName != w.typ {
			t.Errorf("marker[%d].TypeName = %q, want %q", i, markers[i].TypeName, w.typ)
		}
		if markers[i].Payload != w.payload {
			t.Errorf("marker[%d].Payload = %q, want %q", i, markers[i].Payload, w.payload)
		}
	}
	for i := 1; i < len(markers); i++ {
		if markers[i].Offset <= markers[i-1].Offset {
			t.Errorf("markers are not in order of appearance: %d <= %d", markers[i].Offset, markers[i-1].Offset)
		}
	}
}

func TestScanner_NestedBracesInStrings(t *testing.T) {
	s, _ := NewScanner("wp:divi")
	markers := s.Scan(`<!-- wp:divi/code {"css":"a { color: red; }","n":{"m":{}}} -->`)
	if len(markers) != 1 {
		t.Fatalf("Scan() found %d markers, want 1", len(markers))
	}
	if got, want := markers[0].Payload, `{"css":"a { color: red; }","n":{"m":{}}}`; got != want {
		t.Errorf("Payload = %q, want %q", got, want)
	}
}

func TestScanner_NoMarkers(t *testing.T) {
	s, _ := NewScanner("wp:divi")
	for _, text := range []string{"", "plain text", "<!-- wp:divi/section -->", `<!-- wp:divi/section {"a":1}`} {
		markers := s.Scan(text)
		if markers == nil {
			t.Errorf("Scan(%q) returned nil, want empty slice", text)
		}
		if len(markers) != 0 {
			t.Errorf("Scan(%q) found %d markers, want 0", text, len(markers))
		}
	}
}

func TestScanner_CustomNamespace(t *testing.T) {
	s, _ := NewScanner("wp:acme.io")
	markers := s.Scan(`<!-- wp:acme.io/hero {"a":1} --><!-- wp:acmexio/hero {"a":2} -->`)
	if len(markers) != 1 {
		t.Fatalf("Scan() found %d markers, want 1 (namespace must be matched literally)", len(markers))
	}
	if markers[0].Payload != `{"a":1}` {
		t.Errorf("Payload = %q", markers[0].Payload)
	}
}

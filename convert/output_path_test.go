package convert

import (
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"djc/blocks"
	"djc/config"
	"djc/state"
)

func setupTestEnvForOutputPath(t *testing.T, noDirs bool, transliterate bool, template string) *state.LocalEnv {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Output.FileNameTransliterate = transliterate
	cfg.Output.OutputNameTemplate = template

	return &state.LocalEnv{
		Log:    logger,
		Cfg:    cfg,
		NoDirs: noDirs,
	}
}

func testResult(t *testing.T) *blocks.Result {
	t.Helper()
	engine, err := blocks.New(blocks.DefaultOptions(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	res, err := engine.Convert(samplePage)
	if err != nil {
		t.Fatalf("convert sample: %v", err)
	}
	return res
}

func TestBuildOutputPath(t *testing.T) {
	res := testResult(t)
	src := filepath.Join("site", "Книга.json")

	tests := []struct {
		name          string
		noDirs        bool
		transliterate bool
		template      string
		expected      string
	}{
		{"no template keeps dirs", false, false, "", filepath.Join("/out", "site", "Книга")},
		{"no template no dirs", true, false, "", filepath.Join("/out", "Книга")},
		{"transliterate", true, true, "", filepath.Join("/out", "kniga")},
		{"default template", true, false, "{{ .SourceFile }}", filepath.Join("/out", "Книга")},
		{"template with subdirs", true, false, "{{ .Strategy }}/{{ .SourceFile }}-{{ .Markers }}", filepath.Join("/out", "raw", "Книга-2")},
		{"template with source dir", true, false, "{{ .SourceDir }}/{{ .SourceFile }}", filepath.Join("/out", "site", "Книга")},
		{"template with sprig", true, false, `{{ .Types | join "+" }}`, filepath.Join("/out", "divi_section+divi_text")},
		{"broken template falls back", true, false, "{{ .Nope", filepath.Join("/out", "Книга")},
		{"empty expansion falls back", true, false, "{{ if false }}x{{ end }}", filepath.Join("/out", "Книга")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForOutputPath(t, tt.noDirs, tt.transliterate, tt.template)
			if got := buildOutputPath(res, src, "/out", env); got != tt.expected {
				t.Errorf("buildOutputPath() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDetermineOutputDir(t *testing.T) {
	env := setupTestEnvForOutputPath(t, true, false, "")
	if got := determineOutputDir(filepath.Join("a", "b.json"), "/out", env); got != "/out" {
		t.Errorf("determineOutputDir() with nodirs = %q", got)
	}
	env.NoDirs = false
	if got := determineOutputDir(filepath.Join("a", "b.json"), "/out", env); got != filepath.Join("/out", "a") {
		t.Errorf("determineOutputDir() = %q", got)
	}
}

func TestSplitAndCleanPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{filepath.Join("a", "b", "c"), []string{"a", "b", "c"}},
		{"single", []string{"single"}},
		{filepath.Join("a", "b") + string(filepath.Separator), []string{"a", "b"}},
		{filepath.Join(".", "a"), []string{"a"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		if got := splitAndCleanPath(tt.path); !slices.Equal(got, tt.want) {
			t.Errorf("splitAndCleanPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCleanPathSegment(t *testing.T) {
	env := setupTestEnvForOutputPath(t, true, false, "")
	if got := cleanPathSegment("..hidden", env); got != "hidden" {
		t.Errorf("cleanPathSegment() = %q, want hidden", got)
	}
	if got := cleanPathSegment("...", env); got != "_bad_file_name_" {
		t.Errorf("cleanPathSegment() = %q, want bad file name", got)
	}
	env.Cfg.Output.FileNameTransliterate = true
	if got := cleanPathSegment("Автор Книга", env); got != "avtor-kniga" {
		t.Errorf("cleanPathSegment() = %q, want avtor-kniga", got)
	}
}

func TestWithExt(t *testing.T) {
	if got := withExt("/out/page", cssExt); got != "/out/page.css" {
		t.Errorf("withExt() = %q", got)
	}
	if got := withExt("/out/page.CSS", cssExt); got != "/out/page.CSS" {
		t.Errorf("withExt() = %q", got)
	}
	if got := withExt("/out/page.css", jsonExt); got != "/out/page.css.json" {
		t.Errorf("withExt() = %q", got)
	}
}

func TestBuildValues(t *testing.T) {
	v := buildValues(config.OutputNameTemplateFieldName, filepath.Join("dir", "page.TXT"), testResult(t))
	if v.Context != "output_name_template" || v.SourceFile != "page" || v.SourceName != "page.TXT" || v.Ext != "TXT" || v.SourceDir != "dir" {
		t.Errorf("unexpected source values: %+v", v)
	}
	if v.Strategy != "raw" || v.Markers != 2 || !slices.Equal(v.Types, []string{"divi_section", "divi_text"}) {
		t.Errorf("unexpected result values: %+v", v)
	}

	v = buildValues(config.OutputNameTemplateFieldName, "page.json", nil)
	if v.SourceDir != "" || v.Strategy != "" || v.Types != nil {
		t.Errorf("unexpected values without result: %+v", v)
	}
}

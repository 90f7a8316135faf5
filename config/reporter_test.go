package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReport_Archive(t *testing.T) {
	tmp := t.TempDir()
	conf := ReporterConfig{Destination: filepath.Join(tmp, "report.zip")}

	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	src := filepath.Join(tmp, "input.txt")
	if err := os.WriteFile(src, []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.StoreCopy("input", src); err != nil {
		t.Fatalf("StoreCopy() error = %v", err)
	}
	// later modification must not affect copy
	if err := os.WriteFile(src, []byte("modified"), 0644); err != nil {
		t.Fatal(err)
	}
	r.StoreData("data.json", []byte(`{"a":1}`))
	r.Store("missing", filepath.Join(tmp, "does-not-exist"))

	temps := append([]string(nil), r.temps...)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, dir := range temps {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			os.RemoveAll(dir)
			t.Errorf("temporary copy %s was not removed", dir)
		}
	}

	zr, err := zip.OpenReader(conf.Destination)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer zr.Close()

	contents := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		contents[f.Name] = string(data)
	}

	if got := contents["input"]; got != "original" {
		t.Errorf("input = %q, want original", got)
	}
	if got := contents["data.json"]; got != `{"a":1}` {
		t.Errorf("data.json = %q", got)
	}
	if _, ok := contents["missing"]; ok {
		t.Error("absent file must not be archived")
	}
	if !strings.Contains(contents["MANIFEST"], "missing") {
		t.Errorf("MANIFEST does not list all entries:\n%s", contents["MANIFEST"])
	}
}

func TestReport_Nil(t *testing.T) {
	var r *Report
	r.Store("a", "b")
	r.StoreData("c", nil)
	if err := r.StoreCopy("d", "e"); err != nil {
		t.Errorf("StoreCopy on nil report error = %v", err)
	}
	if r.Name() != "" {
		t.Error("nil report has a name")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}

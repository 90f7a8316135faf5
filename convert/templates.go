package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"djc/blocks"
	"djc/config"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context    string
	SourceFile string   // base name without extension
	SourceDir  string   // relative directory of the source, empty when none
	SourceName string   // base name with extension
	Ext        string   // source extension without dot
	Strategy   string   // name of the strategy which produced result
	Types      []string // block type keys in order of appearance
	Markers    int      // number of blocks decoded
}

func buildValues(name config.TemplateFieldName, src string, res *blocks.Result) Values {
	base := filepath.Base(src)
	ext := filepath.Ext(base)

	values := Values{
		Context:    string(name),
		SourceFile: strings.TrimSuffix(base, ext),
		SourceName: base,
		Ext:        strings.TrimPrefix(ext, "."),
	}
	if dir := filepath.Dir(src); dir != "." {
		values.SourceDir = filepath.ToSlash(dir)
	}
	if res == nil {
		return values
	}
	if res.Diagnostics != nil {
		values.Strategy = res.Diagnostics.Strategy
	}
	values.Types = res.Blocks.Keys()
	for _, e := range res.Blocks.All() {
		values.Markers += e.Len()
	}
	return values
}

func expandTemplate(name config.TemplateFieldName, field, src string, res *blocks.Result) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, buildValues(name, src, res)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Package css renders style subtrees collected from blocks into plain CSS
// text and can read that text back for sanity checks.
package css

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"djc/blocks"
)

// Renderer produces CSS text from style group. It keeps no state between
// calls.
type Renderer struct {
	log *zap.Logger
}

func NewRenderer(log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{log: log.Named("css")}
}

// Render emits one commented block per type key, instance and breakpoint.
// Every rule is scoped with ".<type key>" parent class. Nodes which are not
// maps and declarations which are not strings are skipped.
func (r *Renderer) Render(style *blocks.Group[any]) string {
	if style.Len() == 0 {
		return ""
	}

	lines := make([]string, 0, 32)
	for typeKey, entry := range style.All() {
		parent := "." + typeKey

		for idx, inst := range entry.Items() {
			breakpoints, ok := inst.(*blocks.Object)
			if !ok {
				r.log.Debug("Skipping style instance which is not an object",
					zap.String("type", typeKey), zap.Int("instance", idx+1), zap.String("kind", fmt.Sprintf("%T", inst)))
				continue
			}

			for bp, node := range breakpoints.All() {
				decls, ok := declarationsMap(node)
				if !ok {
					r.log.Debug("Skipping breakpoint which is not an object",
						zap.String("type", typeKey), zap.Int("instance", idx+1), zap.String("breakpoint", bp))
					continue
				}

				lines = append(lines, fmt.Sprintf("/* %s [%d] | %s */", typeKey, idx+1, bp))
				for sel, v := range decls.All() {
					text, ok := v.(string)
					if !ok {
						continue
					}
					normalized := NormalizeDeclarations(text)
					if len(normalized) == 0 {
						continue
					}
					lines = append(lines, fmt.Sprintf("%s %s { %s }", parent, NormalizeSelector(sel), normalized))
				}
				lines = append(lines, "")
			}
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// declarationsMap accepts either breakpoint map itself or {"value": {...}}
// wrapper.
func declarationsMap(node any) (*blocks.Object, bool) {
	obj, ok := node.(*blocks.Object)
	if !ok {
		return nil, false
	}
	if v, found := obj.Get("value"); found {
		if inner, ok := v.(*blocks.Object); ok {
			return inner, true
		}
	}
	return obj, true
}

package css

import (
	"bytes"
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser reads CSS text into flat list of rules. It is used to verify that
// rendered output is well formed, anything it does not understand ends up as
// a warning.
type Parser struct {
	log *zap.Logger
}

func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text. The optional source parameter identifies what's
// being parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	sheet := &Stylesheet{
		Rules:    make([]Rule, 0),
		Warnings: make([]string, 0),
	}

	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				sheet.Warnings = append(sheet.Warnings, "parse error: "+err.Error())
				p.log.Debug("CSS parse error", zap.Error(err))
			}
			return sheet

		case css.CommentGrammar:
			sheet.Comments++

		case css.BeginAtRuleGrammar:
			sheet.Warnings = append(sheet.Warnings, "unexpected @-rule block: "+string(data))
			p.skipBlock(parser)

		case css.AtRuleGrammar:
			sheet.Warnings = append(sheet.Warnings, "unexpected @-rule: "+string(data))

		case css.QualifiedRuleGrammar:
			sheet.Warnings = append(sheet.Warnings, "selector without declarations block: "+joinTokens(data, parser.Values()))

		case css.BeginRulesetGrammar:
			rule := Rule{Selector: joinTokens(data, parser.Values())}
			rule.Declarations = p.parseDeclarations(parser, sheet)
			if len(rule.Declarations) == 0 {
				sheet.Warnings = append(sheet.Warnings, "empty ruleset: "+rule.Selector)
			}
			sheet.Rules = append(sheet.Rules, rule)

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			sheet.Warnings = append(sheet.Warnings, "declaration outside of ruleset: "+string(data))
		}
	}
}

func (p *Parser) parseDeclarations(parser *css.Parser, sheet *Stylesheet) []Declaration {
	decls := make([]Declaration, 0, 4)
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar, css.EndRulesetGrammar:
			return decls

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			d := Declaration{Property: string(data), Value: joinValue(parser.Values())}
			if len(d.Value) == 0 {
				sheet.Warnings = append(sheet.Warnings, "declaration without value: "+d.Property)
				continue
			}
			decls = append(decls, d)

		case css.BeginRulesetGrammar, css.BeginAtRuleGrammar:
			sheet.Warnings = append(sheet.Warnings, "nested block: "+string(data))
			p.skipBlock(parser)
		}
	}
}

// skipBlock skips tokens until the matching end of a block.
func (p *Parser) skipBlock(parser *css.Parser) {
	depth := 1
	for depth > 0 {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

func joinTokens(data []byte, values []css.Token) string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}
	return strings.TrimSpace(sb.String())
}

// joinValue builds value text collapsing whitespace tokens.
func joinValue(tokens []css.Token) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			parts = append(parts, string(t.Data))
		} else if len(parts) > 0 {
			parts = append(parts, " ")
		}
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}

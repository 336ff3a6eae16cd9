package css

import (
	"bytes"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	tdcss "github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser parses CSS text into a Stylesheet.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a parser. A nil logger is replaced with a no-op one.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses data as a stylesheet of the given origin. source, if
// non-empty, is used only for diagnostic logging.
func (p *Parser) Parse(data []byte, origin Origin, source string) *Stylesheet {
	sheet := &Stylesheet{Origin: origin}
	if source != "" {
		p.log.Debug("parsing stylesheet", zap.String("source", source), zap.Int("bytes", len(data)))
	}

	input := parse.NewInput(bytes.NewReader(data))
	parser := tdcss.NewParser(input, false)
	order := 0

	for {
		gt, _, tokData := parser.Next()
		switch gt {
		case tdcss.ErrorGrammar:
			return sheet

		case tdcss.BeginAtRuleGrammar:
			name := strings.ToLower(string(tokData))
			switch name {
			case "@font-face":
				ff := p.parseFontFace(parser)
				if ff.Family != "" {
					sheet.FontFaces = append(sheet.FontFaces, ff)
				}
			case "@media":
				// Media-scoped rules are folded into the main rule list:
				// this core targets static e-reader output, not viewport-
				// dependent rendering, so @media content is treated as
				// always-applicable author CSS.
				order = p.parseRuleBlock(parser, sheet, order)
			default:
				p.skipAtRuleBlock(parser)
			}

		case tdcss.AtRuleGrammar:
			// Bare @-rule without a block (@import, @charset, ...): not
			// meaningful for a single already-assembled CSS blob, skipped.

		case tdcss.BeginRulesetGrammar:
			selectors := ParseSelectorList(joinTokens(tokData, parser.Values()))
			decls := p.parseDeclarations(parser)
			for _, sel := range selectors {
				sheet.Rules = append(sheet.Rules, Rule{Selector: sel, Declarations: decls, Order: order})
				order++
			}
		}
	}
}

// parseRuleBlock parses rulesets until the matching end of an at-rule block
// (used for @media, whose inner rules are flattened into the sheet).
func (p *Parser) parseRuleBlock(parser *tdcss.Parser, sheet *Stylesheet, order int) int {
	for {
		gt, _, tokData := parser.Next()
		switch gt {
		case tdcss.ErrorGrammar, tdcss.EndAtRuleGrammar:
			return order
		case tdcss.BeginRulesetGrammar:
			selectors := ParseSelectorList(joinTokens(tokData, parser.Values()))
			decls := p.parseDeclarations(parser)
			for _, sel := range selectors {
				sheet.Rules = append(sheet.Rules, Rule{Selector: sel, Declarations: decls, Order: order})
				order++
			}
		}
	}
}

func (p *Parser) parseDeclarations(parser *tdcss.Parser) []Declaration {
	var out []Declaration
	for {
		gt, _, tokData := parser.Next()
		switch gt {
		case tdcss.ErrorGrammar, tdcss.EndRulesetGrammar:
			return out
		case tdcss.DeclarationGrammar:
			name := string(tokData)
			values := parser.Values()
			raw, important := joinDeclarationValue(values)
			out = append(out, ExpandDeclaration(name, raw, important)...)
		case tdcss.CustomPropertyGrammar:
			// Custom properties (--x) don't feed any ComputedStyle field.
		}
	}
}

func (p *Parser) parseFontFace(parser *tdcss.Parser) FontFace {
	var ff FontFace
	for {
		gt, _, tokData := parser.Next()
		switch gt {
		case tdcss.ErrorGrammar, tdcss.EndAtRuleGrammar:
			return ff
		case tdcss.DeclarationGrammar:
			name := string(tokData)
			raw, _ := joinDeclarationValue(parser.Values())
			switch name {
			case "font-family":
				ff.Family = strings.Trim(raw, `"'`)
			case "src":
				ff.Src = raw
			case "font-style":
				ff.Style = raw
			case "font-weight":
				ff.Weight = raw
			}
		}
	}
}

func (p *Parser) skipAtRuleBlock(parser *tdcss.Parser) {
	depth := 1
	for depth > 0 {
		gt, _, _ := parser.Next()
		switch gt {
		case tdcss.ErrorGrammar:
			return
		case tdcss.BeginAtRuleGrammar, tdcss.BeginRulesetGrammar:
			depth++
		case tdcss.EndAtRuleGrammar, tdcss.EndRulesetGrammar:
			depth--
		}
	}
}

func joinTokens(lead []byte, values []tdcss.Token) string {
	var b strings.Builder
	b.Write(lead)
	for _, v := range values {
		b.Write(v.Data)
	}
	return b.String()
}

// joinDeclarationValue rebuilds a declaration's raw value text from its
// token stream, stripping a trailing "!important" and reporting it
// separately.
func joinDeclarationValue(values []tdcss.Token) (raw string, important bool) {
	var b strings.Builder
	for i, t := range values {
		if t.TokenType == tdcss.WhitespaceToken {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			continue
		}
		_ = i
		b.Write(t.Data)
		b.WriteByte(' ')
	}
	raw = strings.TrimSpace(b.String())
	lower := strings.ToLower(raw)
	// The tokenizer yields "!" and "important" as separate tokens, which the
	// loop above joins with a space, so both spellings are accepted here.
	if idx := strings.LastIndex(lower, "!"); idx >= 0 && strings.TrimSpace(lower[idx+1:]) == "important" {
		raw = strings.TrimSpace(raw[:idx])
		important = true
	}
	return raw, important
}

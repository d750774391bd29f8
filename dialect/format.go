package dialect

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// templateLexer splits a statement template into identifier placeholders,
// value placeholders and literal text.
var templateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `\?\?`},
	{Name: "Value", Pattern: `\?`},
	{Name: "Text", Pattern: `[^?]+`},
})

var (
	identToken = templateLexer.Symbols()["Ident"]
	valueToken = templateLexer.Symbols()["Value"]
)

// Format substitutes placeholders left to right: `??` takes an identifier,
// `?` takes a value. Substitution stops as soon as either placeholders or
// values run out; surplus values are ignored and surplus placeholders are
// left verbatim. When nothing was substituted the template is returned as is.
func Format(d *Dialect, template string, values ...any) string {
	if len(values) == 0 {
		return template
	}

	lex, err := templateLexer.LexString("", template)
	if err != nil {
		return template
	}

	var b strings.Builder
	consumed := 0
	for {
		tok, err := lex.Next()
		if err != nil {
			return template
		}
		if tok.EOF() {
			break
		}

		switch {
		case consumed < len(values) && tok.Type == identToken:
			b.WriteString(d.EscapeID(values[consumed], false))
			consumed++
		case consumed < len(values) && tok.Type == valueToken:
			b.WriteString(d.EscapeValue(values[consumed]))
			consumed++
		default:
			b.WriteString(tok.Value)
		}
	}

	if consumed == 0 {
		return template
	}
	return b.String()
}

// Format is a shorthand for Format(d, template, values...).
func (d *Dialect) Format(template string, values ...any) string {
	return Format(d, template, values...)
}

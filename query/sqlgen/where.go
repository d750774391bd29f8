// Package sqlgen provides the DML statement builders.
package sqlgen

import (
	"strings"

	"github.com/nxtgo/nxt-orm/dialect"
)

// Combinator joins a Where node to the node rendered before it.
type Combinator string

const (
	And Combinator = "AND"
	Or  Combinator = "OR"
)

// Where is a tree-structured predicate. Condition may contain `??` and `?`
// placeholders bound to Values.
type Where struct {
	Condition  string
	Values     []any
	Combinator Combinator
	Children   []*Where
}

// NewWhere creates a Where node joined with AND.
func NewWhere(condition string, values ...any) *Where {
	return &Where{
		Condition:  condition,
		Values:     values,
		Combinator: And,
	}
}

// NewOrWhere creates a Where node joined with OR.
func NewOrWhere(condition string, values ...any) *Where {
	w := NewWhere(condition, values...)
	w.Combinator = Or
	return w
}

// And nests child, joined with AND.
func (w *Where) And(child *Where) *Where {
	child.Combinator = And
	w.Children = append(w.Children, child)
	return w
}

// Or nests child, joined with OR.
func (w *Where) Or(child *Where) *Where {
	child.Combinator = Or
	w.Children = append(w.Children, child)
	return w
}

// Template renders the fully parenthesized predicate with placeholders intact.
func (w *Where) Template() string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(w.Condition)
	for _, child := range w.Children {
		b.WriteString(" ")
		b.WriteString(string(child.combinator()))
		b.WriteString(" ")
		b.WriteString(child.Template())
	}
	b.WriteString(")")
	return b.String()
}

// AllValues returns the node's values followed by its children's, depth first.
func (w *Where) AllValues() []any {
	values := append([]any{}, w.Values...)
	for _, child := range w.Children {
		values = append(values, child.AllValues()...)
	}
	return values
}

// ToSQL renders the predicate for d.
func (w *Where) ToSQL(d *dialect.Dialect) string {
	return dialect.Format(d, w.Template(), w.AllValues()...)
}

func (w *Where) combinator() Combinator {
	if w.Combinator == "" {
		return And
	}
	return w.Combinator
}

// renderWheres joins root nodes by their own combinator. The first node's
// combinator is ignored.
func renderWheres(d *dialect.Dialect, wheres []*Where) string {
	var b strings.Builder
	for i, w := range wheres {
		if i > 0 {
			b.WriteString(" ")
			b.WriteString(string(w.combinator()))
			b.WriteString(" ")
		}
		b.WriteString(w.ToSQL(d))
	}
	return b.String()
}

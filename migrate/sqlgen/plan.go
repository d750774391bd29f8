package sqlgen

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Plan is the ordered, append-only list of statements produced by one
// synchronization run. Later statements may depend on tables created by
// earlier ones.
type Plan struct {
	statements []Statement
}

// NewPlan creates an empty plan.
func NewPlan() *Plan {
	return &Plan{}
}

// Append adds a statement at the end of the plan.
func (p *Plan) Append(s Statement) {
	p.statements = append(p.statements, s)
}

// Statements returns the statements in order.
func (p *Plan) Statements() []Statement {
	return p.statements
}

// Len returns the number of statements.
func (p *Plan) Len() int {
	return len(p.statements)
}

// IsEmpty reports whether there is nothing to apply.
func (p *Plan) IsEmpty() bool {
	return len(p.statements) == 0
}

// HasCreateTable reports whether a CREATE TABLE for table is already queued.
func (p *Plan) HasCreateTable(table string) bool {
	for _, s := range p.statements {
		if ct, ok := s.(*CreateTable); ok && ct.Table() == table {
			return true
		}
	}
	return false
}

// HasAlterColumn reports whether an ALTER TABLE touching column of table is
// already queued.
func (p *Plan) HasAlterColumn(table, column string) bool {
	for _, s := range p.statements {
		if at, ok := s.(*AlterTable); ok && at.Table() == table && at.ColumnName() == column {
			return true
		}
	}
	return false
}

// SQL renders every statement, one per line.
func (p *Plan) SQL() (string, error) {
	parts := make([]string, 0, len(p.statements))
	for _, s := range p.statements {
		sql, err := s.ToSQL()
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, "\n"), nil
}

// Checksum returns the SHA-256 of the rendered plan.
func (p *Plan) Checksum() (string, error) {
	var b strings.Builder
	for _, s := range p.statements {
		sql, err := s.ToSQL()
		if err != nil {
			return "", err
		}
		b.WriteString(sql)
		b.WriteByte('\n')
	}
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:]), nil
}

// Describe returns a short kind/element summary of a statement.
func Describe(s Statement) (kind string, element string) {
	switch st := s.(type) {
	case *CreateTable:
		return "CREATE TABLE", ""
	case *AlterTable:
		switch e := st.Element().(type) {
		case Column:
			return "ALTER TABLE " + string(st.Action()), "column " + e.Name
		case Index:
			return "ALTER TABLE " + string(st.Action()), strings.ToLower(string(e.Kind)) + " (" + strings.Join(e.Columns, ", ") + ")"
		case ForeignKey:
			return "ALTER TABLE " + string(st.Action()), "foreign key " + e.Name
		}
		return "ALTER TABLE " + string(st.Action()), ""
	}
	return "", ""
}

package modelsql

import (
	"fmt"
	"strings"
)

// clauseBuilder accumulates the statement text of one conversion. A fresh
// value is created per call and threaded through the pass; nothing is shared
// between conversions.
//
// The accumulators keep their trailing separators until build(), which trims
// them. Column names are also kept as lists so that SQL(table) can render the
// same clauses with executable syntax.
type clauseBuilder struct {
	mode Mode

	names        strings.Builder // "(c1,c2,"
	placeholders strings.Builder // "VALUES (?,?,"
	set          strings.Builder // "c1= ?,c2= ?,"
	where        strings.Builder // "WHERE k1 = ?,"

	columns []string
	added   map[string]bool
	keys    []string
}

// beginInsert returns an accumulator for an INSERT statement.
func beginInsert() *clauseBuilder {
	cb := &clauseBuilder{mode: Insert, added: map[string]bool{}}
	cb.names.WriteByte('(')
	cb.placeholders.WriteString("VALUES (")
	return cb
}

// beginUpdate returns an accumulator for an UPDATE statement.
func beginUpdate() *clauseBuilder {
	cb := &clauseBuilder{mode: Update, added: map[string]bool{}}
	cb.where.WriteString("WHERE ")
	return cb
}

// addColumn appends an insert column and its placeholder and reports
// whether it was added. A column already present is ignored.
func (cb *clauseBuilder) addColumn(name string) bool {
	if cb.added[name] {
		return false
	}
	cb.added[name] = true
	cb.columns = append(cb.columns, name)
	cb.names.WriteString(name)
	cb.names.WriteByte(',')
	cb.placeholders.WriteString("?,")
	return true
}

// addSetClause appends "name= ?," to the SET text.
func (cb *clauseBuilder) addSetClause(name string) {
	cb.columns = append(cb.columns, name)
	cb.set.WriteString(name)
	cb.set.WriteString("= ?,")
}

// addCondition appends "name = ?," to the WHERE text.
func (cb *clauseBuilder) addCondition(name string) {
	cb.keys = append(cb.keys, name)
	cb.where.WriteString(name)
	cb.where.WriteString(" = ?,")
}

// build trims the trailing separator of every clause and assembles the text.
func (cb *clauseBuilder) build() (string, error) {
	if cb.mode == Insert {
		names, err := trimSeparator("column list", cb.names.String())
		if err != nil {
			return "", err
		}
		values, err := trimSeparator("placeholder list", cb.placeholders.String())
		if err != nil {
			return "", err
		}
		return names + ") " + values + ")", nil
	}

	set, err := trimSeparator("SET clause", cb.set.String())
	if err != nil {
		return "", err
	}
	where, err := trimSeparator("WHERE clause", cb.where.String())
	if err != nil {
		return "", err
	}
	return set + " " + where, nil
}

// trimSeparator removes everything from the last comma on. A clause without
// any separator has nothing to trim and is reported as ErrEmptyStatement.
func trimSeparator(clause, s string) (string, error) {
	i := strings.LastIndexByte(s, ',')
	if i < 0 {
		return "", fmt.Errorf("%w: %s has no entries", ErrEmptyStatement, clause)
	}
	return s[:i], nil
}

// renderSQL renders an executable statement for table from clause parts.
// Placeholder order matches the converted text: columns first, keys last.
func renderSQL(mode Mode, table string, columns, keys []string) string {
	var b strings.Builder
	if mode == Insert {
		b.WriteString("INSERT INTO ")
		b.WriteString(table)
		b.WriteString(" (")
		b.WriteString(strings.Join(columns, ","))
		b.WriteString(") VALUES (")
		for i := range columns {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('?')
		}
		b.WriteByte(')')
		return b.String()
	}

	b.WriteString("UPDATE ")
	b.WriteString(table)
	b.WriteString(" SET ")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c)
		b.WriteString(" = ?")
	}
	b.WriteString(" WHERE ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(k)
		b.WriteString(" = ?")
	}
	return b.String()
}

package modelsql

import (
	"fmt"
	"reflect"
)

// Statement is the result of converting one record. It is read-only; the
// accessors return copies.
type Statement struct {
	mode     Mode
	text     string
	params   []any
	columns  []string
	keys     []string
	warnings []error
}

// Batch is the result of converting a list of same-typed records: one
// statement text and one parameter row per record.
type Batch struct {
	mode      Mode
	text      string
	rows      [][]any
	columns   []string
	keys      []string
	warnings  []error
	fallbacks []Fallback
}

// Mode returns Insert or Update.
func (s *Statement) Mode() Mode { return s.mode }

// Text returns the statement fragment:
//
//	insert: (c1,c2) VALUES (?,?)
//	update: c1= ?,c2= ? WHERE k1 = ?
func (s *Statement) Text() string { return s.text }

// Params returns the bind values in placeholder order.
func (s *Statement) Params() []any { return append([]any(nil), s.params...) }

// Columns returns the insert columns or the SET columns.
func (s *Statement) Columns() []string { return append([]string(nil), s.columns...) }

// Keys returns the WHERE columns, in key-name order.
func (s *Statement) Keys() []string { return append([]string(nil), s.keys...) }

// Warnings returns the members that could not be read (*FieldError).
func (s *Statement) Warnings() []error { return append([]error(nil), s.warnings...) }

// SQL renders an executable INSERT or UPDATE for table with "?" placeholders
// in the same order as Params.
func (s *Statement) SQL(table string) string {
	return renderSQL(s.mode, table, s.columns, s.keys)
}

// Mode returns Insert or Update.
func (b *Batch) Mode() Mode { return b.mode }

// Text returns the statement fragment shared by every row, in the same
// format as Statement.Text.
func (b *Batch) Text() string { return b.text }

// Rows returns a copy of the parameter matrix, one row per record.
func (b *Batch) Rows() [][]any {
	out := make([][]any, len(b.rows))
	for i, r := range b.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// Columns returns the insert columns or the SET columns.
func (b *Batch) Columns() []string { return append([]string(nil), b.columns...) }

// Keys returns the WHERE columns, in key-name order.
func (b *Batch) Keys() []string { return append([]string(nil), b.keys...) }

// Warnings returns the members that could not be read (*FieldError), one
// per affected row.
func (b *Batch) Warnings() []error { return append([]error(nil), b.warnings...) }

// Fallbacks lists the cells that received a zero decimal default.
func (b *Batch) Fallbacks() []Fallback { return append([]Fallback(nil), b.fallbacks...) }

// SQL renders an executable INSERT or UPDATE for table with "?" placeholders
// in the same order as every row of Rows.
func (b *Batch) SQL(table string) string {
	return renderSQL(b.mode, table, b.columns, b.keys)
}

// Convert converts record into statement text and bind values. With no keys
// it produces an INSERT of every present member; with keys it produces an
// UPDATE whose WHERE clause holds the key members (matched case-insensitively)
// and whose SET clause holds the other present members. Absent members are
// skipped. Unreadable members are logged, reported in Warnings and skipped.
func (c *Converter) Convert(record any, keys ...string) (*Statement, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	keys = normalizeKeys(keys)
	mode := modeOf(keys)

	members, err := c.inspect(record)
	if err != nil {
		return nil, err
	}
	members = uniqueMembers(members)

	st := &Statement{mode: mode}
	cb := begin(mode)
	params := &paramList{}
	kb := newKeyBuffer(keys, members)

	for j, m := range members {
		if m.err != nil {
			st.warnings = append(st.warnings, c.memberError(record, -1, m))
			continue
		}
		if m.absent {
			continue
		}
		if mode == Insert {
			if cb.addColumn(m.name) {
				params.add(m.value)
			}
			continue
		}
		if i := kb.index(j); i >= 0 {
			kb.put(i, m)
			continue
		}
		cb.addSetClause(m.name)
		params.add(m.value)
	}
	kb.each(func(m member) {
		cb.addCondition(m.name)
		params.add(m.value)
	})

	text, err := cb.build()
	if err != nil {
		return nil, err
	}
	st.text = text
	st.params = params.values
	st.columns = cb.columns
	st.keys = cb.keys
	return st, nil
}

// ConvertBatch converts a slice of same-typed records into one statement
// text and a parameter matrix. The member list comes from the first record.
//
// Insert: every member of the first record is a column; absent and
// unreadable members are replaced by defaults (see Fallbacks) so every row
// is complete. The records themselves are not modified.
//
// Update: the SET and WHERE columns come from the members present in the
// first record. Every other row must have the same members present, or the
// call fails with ErrRaggedBatch. A member that cannot be read in some row
// is reported in Warnings and left out of the SET clause of every row; an
// unreadable key member fails the call with a *FieldError.
func (c *Converter) ConvertBatch(records any, keys ...string) (*Batch, error) {
	list, err := batchRecords(records)
	if err != nil {
		return nil, err
	}
	keys = normalizeKeys(keys)
	mode := modeOf(keys)

	first, err := c.inspect(list[0])
	if err != nil {
		return nil, fmt.Errorf("row 0: %w", err)
	}
	first = uniqueMembers(first)
	typ := recordType(list[0])

	rows := make([][]member, len(list))
	rows[0] = first
	for row := 1; row < len(list); row++ {
		if t := recordType(list[row]); t != typ {
			return nil, fmt.Errorf("%w: row %d is %v, row 0 is %v", ErrMixedRecords, row, t, typ)
		}
		got, err := c.inspect(list[row])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		rows[row] = alignMembers(first, got)
	}

	b := &Batch{mode: mode}
	kb := newKeyBuffer(keys, first)
	unreadable := make([]bool, len(first))
	for row, members := range rows {
		for j, m := range members {
			if m.err == nil {
				continue
			}
			b.warnings = append(b.warnings, c.memberError(list[row], row, m))
			if kb.index(j) >= 0 {
				return nil, fmt.Errorf("row %d: %w", row, &FieldError{Field: m.name, Err: m.err})
			}
			unreadable[j] = true
		}
	}

	cb := begin(mode)
	mx := newMatrix(len(list), len(first))
	pattern := make([]bool, len(first))

	for row, members := range rows {
		kb.reset()
		for j, m := range members {
			if mode == Insert {
				if row == 0 {
					cb.addColumn(m.name)
				}
				v := m.value
				if m.absent {
					v = c.normalize(b, row, m)
				}
				mx.put(row, v)
				continue
			}

			if unreadable[j] {
				continue
			}
			present := !m.absent
			if row == 0 {
				pattern[j] = present
			} else if pattern[j] != present {
				return nil, fmt.Errorf("%w: row %d member %q", ErrRaggedBatch, row, m.name)
			}
			if !present {
				continue
			}
			if i := kb.index(j); i >= 0 {
				kb.put(i, m)
				continue
			}
			if row == 0 {
				cb.addSetClause(m.name)
			}
			mx.put(row, m.value)
		}
		kb.each(func(m member) {
			if row == 0 {
				cb.addCondition(m.name)
			}
			mx.put(row, m.value)
		})
	}

	text, err := cb.build()
	if err != nil {
		return nil, err
	}
	b.text = text
	b.rows = mx.compact()
	b.columns = cb.columns
	b.keys = cb.keys
	return b, nil
}

func begin(mode Mode) *clauseBuilder {
	if mode == Update {
		return beginUpdate()
	}
	return beginInsert()
}

// alignMembers orders got by the members of the first batch record.
// Members missing from got are absent.
func alignMembers(first, got []member) []member {
	byName := make(map[string]member, len(got))
	for _, m := range got {
		if _, ok := byName[m.name]; !ok {
			byName[m.name] = m
		}
	}
	out := make([]member, len(first))
	for i, f := range first {
		m, ok := byName[f.name]
		if !ok {
			m = member{name: f.name, goName: f.goName, text: f.text, absent: true}
		}
		out[i] = m
	}
	return out
}

// uniqueMembers keeps the first member of every name.
func uniqueMembers(ms []member) []member {
	seen := make(map[string]bool, len(ms))
	out := ms[:0:0]
	for _, m := range ms {
		if seen[m.name] {
			continue
		}
		seen[m.name] = true
		out = append(out, m)
	}
	return out
}

// batchRecords flattens a slice or array (or a pointer to one) into its
// elements.
func batchRecords(records any) ([]any, error) {
	if list, ok := records.([]any); ok {
		if len(list) == 0 {
			return nil, ErrEmptyBatch
		}
		return list, nil
	}
	v := reflect.ValueOf(records)
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return nil, ErrEmptyBatch
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, ErrEmptyBatch
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: want slice of records, got %T", ErrInvalidRecord, records)
	}
	if v.Len() == 0 {
		return nil, ErrEmptyBatch
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out, nil
}

// memberError logs an unreadable member and returns it as a *FieldError.
// row is -1 for single-record conversions.
func (c *Converter) memberError(record any, row int, m member) error {
	fe := &FieldError{Field: m.name, Err: m.err}
	attrs := []any{"field", m.name, "type", fmt.Sprintf("%T", record), "err", m.err}
	if row >= 0 {
		attrs = append(attrs, "row", row)
	}
	c.log.Warn("modelsql: member not accessible", attrs...)
	return fe
}

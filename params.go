package modelsql

import "strings"

// paramList collects the bind values of a single-row conversion in the
// order their placeholders are emitted.
type paramList struct {
	values []any
}

func (p *paramList) add(v any) {
	p.values = append(p.values, v)
}

// keyBuffer holds key member values during a pass. Keys are emitted after
// all SET entries, in key-name order, so the WHERE placeholders and their
// values line up.
type keyBuffer struct {
	keys  []string
	owner []int // member index bound to each key, -1 when none
	slots []*member
}

// normalizeKeys drops empty and case-insensitively repeated key names,
// keeping the first spelling.
func normalizeKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		dup := false
		for _, o := range out {
			if strings.EqualFold(o, k) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, k)
		}
	}
	return out
}

// newKeyBuffer binds every key to at most one of members, and every member
// to at most one key. A column name match wins over a Go field name match;
// among equal matches the first member wins. Members left unbound are
// ordinary SET members.
func newKeyBuffer(keys []string, members []member) *keyBuffer {
	kb := &keyBuffer{
		keys:  keys,
		owner: make([]int, len(keys)),
		slots: make([]*member, len(keys)),
	}
	taken := make([]bool, len(members))
	bind := func(i int, match func(m member) bool) bool {
		for j, m := range members {
			if !taken[j] && match(m) {
				kb.owner[i] = j
				taken[j] = true
				return true
			}
		}
		return false
	}
	for i, k := range keys {
		kb.owner[i] = -1
		bind(i, func(m member) bool { return strings.EqualFold(k, m.name) })
	}
	for i, k := range keys {
		if kb.owner[i] < 0 {
			bind(i, func(m member) bool { return strings.EqualFold(k, m.goName) })
		}
	}
	return kb
}

// index returns the key position bound to member j, or -1 when member j is
// not a key.
func (kb *keyBuffer) index(j int) int {
	for i, o := range kb.owner {
		if o == j {
			return i
		}
	}
	return -1
}

// put stores m in slot i.
func (kb *keyBuffer) put(i int, m member) {
	kb.slots[i] = &m
}

// each calls fn for every filled slot in key-name order.
func (kb *keyBuffer) each(fn func(m member)) {
	for _, m := range kb.slots {
		if m != nil {
			fn(*m)
		}
	}
}

// reset empties every slot for the next batch row.
func (kb *keyBuffer) reset() {
	for i := range kb.slots {
		kb.slots[i] = nil
	}
}

// matrix is the batch parameter container: one row per record, each row as
// wide as the first record's member count. Cells are written sequentially
// per row; compact drops the cells that were never written.
type matrix struct {
	cells [][]any
	set   [][]bool
	next  []int
}

func newMatrix(rows, cols int) *matrix {
	m := &matrix{
		cells: make([][]any, rows),
		set:   make([][]bool, rows),
		next:  make([]int, rows),
	}
	for i := range m.cells {
		m.cells[i] = make([]any, cols)
		m.set[i] = make([]bool, cols)
	}
	return m
}

// put writes v at the next free column of row.
func (m *matrix) put(row int, v any) {
	col := m.next[row]
	m.cells[row][col] = v
	m.set[row][col] = true
	m.next[row]++
}

// width returns the number of cells written to row.
func (m *matrix) width(row int) int {
	return m.next[row]
}

// compact removes unset cells from every row and returns the rows.
func (m *matrix) compact() [][]any {
	out := make([][]any, len(m.cells))
	for i, row := range m.cells {
		kept := make([]any, 0, m.next[i])
		for j, v := range row {
			if m.set[i][j] {
				kept = append(kept, v)
			}
		}
		out[i] = kept
	}
	return out
}

package modelsql

import "github.com/shopspring/decimal"

// Fallback records a batch insert cell whose member rejected the text
// default, so a zero decimal was used instead.
type Fallback struct {
	Row   int
	Field string
	Value any
}

// defaultValue returns the value used in place of an absent member during
// batch inserts: an empty string for text members, otherwise a zero decimal.
// The second result reports the decimal fallback. Records are not modified.
func defaultValue(m member) (any, bool) {
	if m.text {
		return "", false
	}
	return decimal.Zero, true
}

// normalize returns the default for an absent member of the given batch
// row and records the decimal fallback on b.
func (c *Converter) normalize(b *Batch, row int, m member) any {
	v, fallback := defaultValue(m)
	if fallback {
		b.fallbacks = append(b.fallbacks, Fallback{Row: row, Field: m.name, Value: v})
		c.log.Debug("modelsql: zero decimal default", "row", row, "field", m.name)
	}
	return v
}

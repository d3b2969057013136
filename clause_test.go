package modelsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClauseBuilder_Insert(t *testing.T) {
	cb := beginInsert()
	assert.True(t, cb.addColumn("a"))
	assert.True(t, cb.addColumn("b"))
	assert.False(t, cb.addColumn("a"))

	got, err := cb.build()
	require.NoError(t, err)
	assert.Equal(t, "(a,b) VALUES (?,?)", got)
	assert.Equal(t, []string{"a", "b"}, cb.columns)
}

func TestClauseBuilder_Update(t *testing.T) {
	cb := beginUpdate()
	cb.addSetClause("a")
	cb.addSetClause("b")
	cb.addCondition("k1")
	cb.addCondition("k2")

	got, err := cb.build()
	require.NoError(t, err)
	assert.Equal(t, "a= ?,b= ? WHERE k1 = ?,k2 = ?", got)
	assert.Equal(t, []string{"a", "b"}, cb.columns)
	assert.Equal(t, []string{"k1", "k2"}, cb.keys)
}

// TestClauseBuilder_EmptyClauses ensures build fails rather than trimming
// into the clause keywords.
func TestClauseBuilder_EmptyClauses(t *testing.T) {
	_, err := beginInsert().build()
	assert.ErrorIs(t, err, ErrEmptyStatement)

	cb := beginUpdate()
	cb.addCondition("id")
	_, err = cb.build()
	assert.ErrorIs(t, err, ErrEmptyStatement)
	assert.Contains(t, err.Error(), "SET clause")

	cb = beginUpdate()
	cb.addSetClause("a")
	_, err = cb.build()
	assert.ErrorIs(t, err, ErrEmptyStatement)
	assert.Contains(t, err.Error(), "WHERE clause")
}

// TestClauseBuilder_Independent ensures builders share no state.
func TestClauseBuilder_Independent(t *testing.T) {
	a := beginInsert()
	b := beginInsert()
	a.addColumn("x")

	_, err := b.build()
	assert.ErrorIs(t, err, ErrEmptyStatement)
	got, err := a.build()
	require.NoError(t, err)
	assert.Equal(t, "(x) VALUES (?)", got)
}

func TestTrimSeparator(t *testing.T) {
	got, err := trimSeparator("list", "a,b,")
	require.NoError(t, err)
	assert.Equal(t, "a,b", got)

	_, err = trimSeparator("list", "WHERE ")
	assert.ErrorIs(t, err, ErrEmptyStatement)
}

func TestRenderSQL(t *testing.T) {
	assert.Equal(t,
		"INSERT INTO t (a,b) VALUES (?,?)",
		renderSQL(Insert, "t", []string{"a", "b"}, nil))
	assert.Equal(t,
		"UPDATE t SET a = ?, b = ? WHERE k1 = ? AND k2 = ?",
		renderSQL(Update, "t", []string{"a", "b"}, []string{"k1", "k2"}))
}

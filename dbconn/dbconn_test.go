package dbconn_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gandaldf/modelsql"
	"github.com/gandaldf/modelsql/dbconn"
)

func TestConnString(t *testing.T) {
	pg, err := dbconn.Config{
		Driver:   dbconn.DriverPgx,
		Host:     "db",
		Port:     "5433",
		Database: "shop",
		User:     "u",
		Password: "p",
		Params:   map[string]string{"application_name": "x"},
	}.ConnString()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5433/shop?application_name=x&sslmode=disable", pg)

	pg, err = dbconn.Config{Driver: dbconn.DriverPostgres, Database: "shop", User: "u"}.ConnString()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pg, "postgres://u:@localhost:5432/shop?"), pg)

	my, err := dbconn.Config{
		Driver:   dbconn.DriverMySQL,
		Host:     "db",
		Port:     "3307",
		Database: "shop",
		User:     "u",
		Password: "p",
	}.ConnString()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(my, "u:p@tcp(db:3307)/shop"), my)

	lite, err := dbconn.Config{Driver: dbconn.DriverSQLite}.ConnString()
	require.NoError(t, err)
	assert.Equal(t, ":memory:", lite)

	lite, err = dbconn.Config{
		Driver:   dbconn.DriverSQLite,
		Database: "app.db",
		Params:   map[string]string{"mode": "ro", "cache": "shared"},
	}.ConnString()
	require.NoError(t, err)
	assert.Equal(t, "file:app.db?cache=shared&mode=ro", lite)

	dsn, err := dbconn.Config{Driver: dbconn.DriverMySQL, DSN: "raw"}.ConnString()
	require.NoError(t, err)
	assert.Equal(t, "raw", dsn)
}

func TestUnknownDriver(t *testing.T) {
	c := dbconn.Config{Driver: "oracle", DSN: "x"}
	_, err := c.ConnString()
	assert.ErrorIs(t, err, dbconn.ErrUnknownDriver)
	_, err = c.Dialect()
	assert.ErrorIs(t, err, dbconn.ErrUnknownDriver)
	_, err = dbconn.Open(c)
	assert.ErrorIs(t, err, dbconn.ErrUnknownDriver)
}

func TestDialect(t *testing.T) {
	tests := map[string]modelsql.Dialect{
		dbconn.DriverPgx:      modelsql.Postgres,
		dbconn.DriverPostgres: modelsql.Postgres,
		dbconn.DriverMySQL:    modelsql.MySQL,
		dbconn.DriverSQLite:   modelsql.SQLite,
	}
	for driver, want := range tests {
		got, err := dbconn.Config{Driver: driver}.Dialect()
		require.NoError(t, err, driver)
		assert.Equal(t, want, got, driver)
	}
}

func TestLoad(t *testing.T) {
	c, err := dbconn.Load(strings.NewReader(`
driver: mysql
host: db
database: shop
params:
  parseTime: "true"
`))
	require.NoError(t, err)
	assert.Equal(t, dbconn.Config{
		Driver:   "mysql",
		Host:     "db",
		Database: "shop",
		Params:   map[string]string{"parseTime": "true"},
	}, c)

	_, err = dbconn.Load(strings.NewReader("drvier: mysql\n"))
	assert.Error(t, err)
}

// --------------------------------
// SQLite round trip
// --------------------------------

type account struct {
	ID      int     `db:"id"`
	Name    *string `db:"name"`
	Balance *int    `db:"balance"`
}

type accountRow struct {
	ID      int64  `db:"id"`
	Name    string `db:"name"`
	Balance int64  `db:"balance"`
}

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

// TestSQLite_RoundTrip executes converted statements against an in-memory
// SQLite database.
func TestSQLite_RoundTrip(t *testing.T) {
	cfg := dbconn.Config{Driver: dbconn.DriverSQLite}
	db, err := dbconn.Open(cfg)
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE accounts (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		balance NUMERIC NOT NULL DEFAULT 0
	)`)
	require.NoError(t, err)

	dialect, err := cfg.Dialect()
	require.NoError(t, err)
	c := modelsql.New(modelsql.Config{Dialect: dialect})

	// single insert
	st, err := c.Convert(account{ID: 1, Name: strp("a"), Balance: intp(10)})
	require.NoError(t, err)
	_, err = c.Exec(ctx, db, "accounts", st)
	require.NoError(t, err)

	// batch insert with defaults for absent members
	b, err := c.ConvertBatch([]account{
		{ID: 2, Name: strp("b")},
		{ID: 3, Balance: intp(5)},
	})
	require.NoError(t, err)
	n, err := c.ExecBatch(ctx, db, "accounts", b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// update
	st, err = c.Convert(account{ID: 1, Name: strp("z")}, "id")
	require.NoError(t, err)
	_, err = c.Exec(ctx, db, "accounts", st)
	require.NoError(t, err)

	var rows []accountRow
	require.NoError(t, db.SelectContext(ctx, &rows, "SELECT id, name, balance FROM accounts ORDER BY id"))
	assert.Equal(t, []accountRow{
		{ID: 1, Name: "z", Balance: 10},
		{ID: 2, Name: "b", Balance: 0},
		{ID: 3, Name: "", Balance: 5},
	}, rows)

	var one accountRow
	require.NoError(t, db.GetContext(ctx, &one, "SELECT id, name, balance FROM accounts WHERE id = ?", 3))
	assert.Equal(t, accountRow{ID: 3, Balance: 5}, one)
}

// TestSQLite_BatchUpdate updates several rows in one transaction.
func TestSQLite_BatchUpdate(t *testing.T) {
	db, err := dbconn.Open(dbconn.Config{Driver: dbconn.DriverSQLite})
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE accounts (id INTEGER PRIMARY KEY, name TEXT, balance NUMERIC)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO accounts (id, name, balance) VALUES (1, 'a', 1), (2, 'b', 2)`)
	require.NoError(t, err)

	c := modelsql.New()
	b, err := c.ConvertBatch([]*account{
		{ID: 1, Balance: intp(100)},
		{ID: 2, Balance: intp(200)},
	}, "id")
	require.NoError(t, err)
	n, err := c.ExecBatch(ctx, db, "accounts", b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var total int64
	require.NoError(t, db.GetContext(ctx, &total, "SELECT SUM(balance) FROM accounts"))
	assert.Equal(t, int64(300), total)
}

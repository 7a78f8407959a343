package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func TestParseDriver(t *testing.T) {
	for in, want := range map[string]Driver{"": DriverSQLite, "SQLite3": DriverSQLite, "pgx": DriverPostgres, " postgres ": DriverPostgres} {
		got, err := ParseDriver(in)
		if err != nil || got != want {
			t.Errorf("ParseDriver(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDriver("mysql"); err == nil {
		t.Error("mysql should be rejected")
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	dbh, err := Open(ctx, DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer dbh.Close()

	boom := errors.New("boom")
	err = WithTx(ctx, dbh, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO event_log (site_id, typ, key, data, created_at) VALUES ('a','t','k','{}',1)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	var n int
	if err := dbh.QueryRowContext(ctx, `SELECT COUNT(1) FROM event_log`).Scan(&n); err != nil || n != 0 {
		t.Fatalf("rows after rollback = %d, %v", n, err)
	}

	if err := WithTx(ctx, dbh, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO event_log (site_id, typ, key, data, created_at) VALUES ('a','t','k','{}',1)`)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if err := dbh.QueryRowContext(ctx, `SELECT COUNT(1) FROM event_log`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("rows after commit = %d, %v", n, err)
	}
}

package utils

import (
	"context"
	"database/sql"
	"testing"
)

func TestExec_FallsBackToDB(t *testing.T) {
	db := &sql.DB{}
	if got := Exec(context.Background(), db); got != DBTX(db) {
		t.Fatalf("expected plain db without a bound transaction")
	}
}

func TestExec_PrefersBoundTx(t *testing.T) {
	db := &sql.DB{}
	tx := &sql.Tx{}
	ctx := context.WithValue(context.Background(), txCtxKey{}, tx)
	if got := Exec(ctx, db); got != DBTX(tx) {
		t.Fatalf("expected the bound transaction")
	}
}

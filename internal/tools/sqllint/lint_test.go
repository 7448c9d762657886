package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSQLInlineQueriesAreMarked(t *testing.T) {
	l := &linter{}
	if err := l.walk(filepath.Join("..", "..", "sqlinline")); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if vs := l.finish(); len(vs) > 0 {
		t.Fatalf("unexpected violations: %+v", vs)
	}
	if len(l.queries) < 6 {
		t.Fatalf("expected the sqlinline queries to be found, got %d", len(l.queries))
	}
}

func TestLinterFlagsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	src := "package q\n\n" +
		"const QGood = `--sql 11111111-2222-4333-8444-555555555555\nselect 1;`\n" +
		"const QDup = `--sql 11111111-2222-4333-8444-555555555555\nselect 2;`\n" +
		"const QBare = `select 3;`\n" +
		"const Note = \"nothing to see\"\n"
	path := filepath.Join(dir, "q.go")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	l := &linter{}
	if err := l.walk(dir); err != nil {
		t.Fatalf("walk: %v", err)
	}
	vs := l.finish()
	if len(vs) != 2 {
		t.Fatalf("violations = %+v, want 2", vs)
	}
	if vs[0].name != "QDup" || !strings.Contains(vs[0].message, "duplicate") {
		t.Fatalf("first violation = %+v", vs[0])
	}
	if vs[1].name != "QBare" || !strings.Contains(vs[1].message, "missing") {
		t.Fatalf("second violation = %+v", vs[1])
	}
}

package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"spritegen/internal/domain"
	"spritegen/internal/pipeline"
	"spritegen/internal/sqlinline"
)

type stubExecutor struct {
	err   error
	execs []struct {
		query string
		args  []any
	}
	rows [][]string
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, struct {
		query string
		args  []any
	}{query, args})
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return nil
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &stubRows{rows: s.rows, idx: -1}, nil
}

type stubRows struct {
	rows [][]string
	idx  int
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *stubRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d dest for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		p, ok := d.(*string)
		if !ok {
			return errors.New("scan: expected *string")
		}
		*p = row[i]
	}
	return nil
}

func TestRecordResultFailed(t *testing.T) {
	db := &stubExecutor{}
	repo := NewRunRepository(db)
	runID := uuid.New()

	err := repo.RecordResult(context.Background(), runID, pipeline.AssetResult{
		Seq:      1,
		Name:     "relic",
		Stage:    pipeline.StageSubmit,
		Kind:     domain.KindSubmission,
		Err:      fmt.Errorf("%w: status 400", domain.ErrSubmission),
		Duration: 1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("RecordResult error: %v", err)
	}
	if len(db.execs) != 1 {
		t.Fatalf("expected one exec, got %d", len(db.execs))
	}
	call := db.execs[0]
	if call.query != sqlinline.QInsertAssetRun {
		t.Fatalf("unexpected query: %s", call.query)
	}
	if len(call.args) != 11 {
		t.Fatalf("expected 11 args, got %d", len(call.args))
	}
	if call.args[0] != runID.String() || call.args[1] != 1 || call.args[2] != "relic" {
		t.Fatalf("unexpected identity args: %v", call.args[:3])
	}
	if call.args[5] != "failed" || call.args[6] != "submit" || call.args[7] != "submission" {
		t.Fatalf("unexpected outcome args: %v", call.args[5:8])
	}
	if !strings.Contains(call.args[8].(string), "submission rejected") {
		t.Fatalf("unexpected error text: %v", call.args[8])
	}
	if string(call.args[9].([]byte)) != "[]" {
		t.Fatalf("outputs = %s, want []", call.args[9])
	}
	if call.args[10] != int64(1500) {
		t.Fatalf("duration = %v", call.args[10])
	}
}

func TestRecordResultSucceeded(t *testing.T) {
	db := &stubExecutor{}
	err := NewRunRepository(db).RecordResult(context.Background(), uuid.New(), pipeline.AssetResult{
		Name:    "coin",
		Stage:   pipeline.StageDone,
		Outputs: []string{"/srv/a/coin.png", "/srv/b/coin.png"},
	})
	if err != nil {
		t.Fatalf("RecordResult error: %v", err)
	}
	args := db.execs[0].args
	if args[5] != "succeeded" || args[8] != "" {
		t.Fatalf("unexpected args: %v", args)
	}
	if string(args[9].([]byte)) != `["/srv/a/coin.png","/srv/b/coin.png"]` {
		t.Fatalf("outputs = %s", args[9])
	}
}

func TestRecordResultError(t *testing.T) {
	repo := NewRunRepository(&stubExecutor{err: errors.New("db down")})
	err := repo.RecordResult(context.Background(), uuid.New(), pipeline.AssetResult{Name: "coin"})
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestEnsureSchema(t *testing.T) {
	db := &stubExecutor{}
	if err := NewRunRepository(db).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema error: %v", err)
	}
	if db.execs[0].query != sqlinline.QEnsureAssetRunsTable {
		t.Fatalf("unexpected query")
	}
}

func TestFailures(t *testing.T) {
	db := &stubExecutor{rows: [][]string{
		{"relic", "submission", "submission rejected: status 400"},
		{"wallet", "timed_out", "generation timed out"},
	}}
	got, err := NewRunRepository(db).Failures(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Failures error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "relic" || got[1].ErrorKind != "timed_out" {
		t.Fatalf("unexpected failures: %+v", got)
	}
}

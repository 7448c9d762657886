package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"spritegen/internal/sqlinline"
)

type stubExecutor struct {
	token string
	err   error
	exec  struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestLeonardoAPIKey(t *testing.T) {
	store := NewStore(&stubExecutor{token: " abc123 "})
	key, err := store.LeonardoAPIKey(context.Background())
	if err != nil {
		t.Fatalf("LeonardoAPIKey error: %v", err)
	}
	if key != "abc123" {
		t.Fatalf("expected abc123, got %q", key)
	}
}

func TestLeonardoAPIKey_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.LeonardoAPIKey(context.Background())
	if err != nil {
		t.Fatalf("LeonardoAPIKey error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestLeonardoAPIKey_Error(t *testing.T) {
	store := NewStore(&stubExecutor{err: errors.New("connection reset")})
	if _, err := store.LeonardoAPIKey(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSetLeonardoAPIKey(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetLeonardoAPIKey(context.Background(), " secret ", map[string]any{"source": "cli"}); err != nil {
		t.Fatalf("SetLeonardoAPIKey error: %v", err)
	}
	if exec.exec.query != sqlinline.QUpsertIntegrationToken {
		t.Fatalf("unexpected query: %q", exec.exec.query)
	}
	if len(exec.exec.args) != 3 || exec.exec.args[0] != ProviderLeonardo || exec.exec.args[1] != "secret" {
		t.Fatalf("unexpected args: %#v", exec.exec.args)
	}
	if raw, ok := exec.exec.args[2].([]byte); !ok || !strings.Contains(string(raw), `"source":"cli"`) {
		t.Fatalf("unexpected properties: %#v", exec.exec.args[2])
	}
}

func TestSetLeonardoAPIKeyRequiresValue(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetLeonardoAPIKey(context.Background(), "  ", nil); err == nil {
		t.Fatalf("expected error for blank key")
	}
}

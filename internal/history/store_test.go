package history_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tikunlabs/tikun/internal/history"
	"github.com/tikunlabs/tikun/internal/naturalize"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if TIKUN_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TIKUN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TIKUN_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore opens a [history.Store] on a freshly dropped schema.
func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS correction_runs CASCADE"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	pool.Close()

	store, err := history.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Record(ctx, history.Run{
		Mode:      "phrase",
		Original:  "הצדדים אשר מגיעים",
		Corrected: "הצדדים ש מגיעים",
		Corrections: []naturalize.Correction{
			{Original: "אשר", Corrected: "ש", Comment: "קיצור", Method: naturalize.MethodPhrase},
		},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	second, err := store.Record(ctx, history.Run{Mode: "llm", Style: "legal", Original: "a", Corrected: "a"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if second <= first {
		t.Errorf("ids %d, %d not increasing", first, second)
	}

	runs, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("runs not newest first: %d, %d", runs[0].ID, runs[1].ID)
	}
	if runs[0].Corrections == nil || len(runs[0].Corrections) != 0 {
		t.Errorf("empty corrections = %#v", runs[0].Corrections)
	}
	if got := runs[1].Corrections; len(got) != 1 || got[0].Comment != "קיצור" {
		t.Errorf("corrections = %+v", got)
	}
	if runs[1].CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	limited, err := store.Recent(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("Recent(1) = %d runs, %v", len(limited), err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

package history_test

import (
	"context"
	"testing"

	"github.com/oarkflow/migrator/dialect"
	"github.com/oarkflow/migrator/drivers"
	"github.com/oarkflow/migrator/history"
	"github.com/oarkflow/migrator/schema"
)

func openSQLite(t *testing.T) history.Store {
	t.Helper()
	d, err := dialect.Get(dialect.SQLite)
	if err != nil {
		t.Fatalf("dialect.Get: %v", err)
	}
	db, err := drivers.Open(dialect.SQLite, ":memory:")
	if err != nil {
		t.Fatalf("drivers.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return history.New(db, d)
}

func TestStoreCreateIsIdempotent(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()

	if exists, err := store.Exists(ctx); err != nil || exists {
		t.Fatalf("expected table not to exist yet, exists=%v err=%v", exists, err)
	}
	if err := store.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx); err != nil {
		t.Fatalf("second Create should be a no-op, got: %v", err)
	}
	exists, err := store.Exists(ctx)
	if err != nil || !exists {
		t.Fatalf("expected table to exist, exists=%v err=%v", exists, err)
	}
}

func TestInstalledRankStrictlyIncreasingNoGaps(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()
	if err := store.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	v1 := schema.MustVersion("1")
	v2 := schema.MustVersion("2")
	ranks := make([]int64, 0, 2)
	for _, m := range []schema.AppliedMigration{
		{Version: v1, Versioned: true, Description: "a", Type: schema.TypeSQL, Script: "V1__a.sql", Success: true},
		{Version: v2, Versioned: true, Description: "b", Type: schema.TypeSQL, Script: "V2__b.sql", Success: true},
	} {
		rank, err := store.AddAppliedMigration(ctx, m)
		if err != nil {
			t.Fatalf("AddAppliedMigration: %v", err)
		}
		ranks = append(ranks, rank)
	}
	if ranks[0] != 1 || ranks[1] != 2 {
		t.Fatalf("expected ranks [1 2], got %v", ranks)
	}

	rows, err := store.AllAppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AllAppliedMigrations: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].InstalledRank != 1 || rows[1].InstalledRank != 2 {
		t.Fatalf("rows not ordered by installed_rank: %+v", rows)
	}
	if !rows[0].Version.Equal(v1) || !rows[1].Version.Equal(v2) {
		t.Fatalf("versions did not round-trip: %+v", rows)
	}
}

func TestRemoveFailedMigrationDeletesOnlyFailedRow(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()
	if err := store.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	okRank, err := store.AddAppliedMigration(ctx, schema.AppliedMigration{
		Version: schema.MustVersion("1"), Versioned: true, Description: "a",
		Type: schema.TypeSQL, Script: "V1__a.sql", Success: true,
	})
	if err != nil {
		t.Fatalf("AddAppliedMigration: %v", err)
	}
	failedRank, err := store.AddAppliedMigration(ctx, schema.AppliedMigration{
		Version: schema.MustVersion("2"), Versioned: true, Description: "b",
		Type: schema.TypeSQL, Script: "V2__b.sql", Success: false,
	})
	if err != nil {
		t.Fatalf("AddAppliedMigration: %v", err)
	}

	if err := store.RemoveFailedMigration(ctx, okRank); err == nil {
		t.Fatalf("expected error removing a successful row")
	}
	if err := store.RemoveFailedMigration(ctx, failedRank); err != nil {
		t.Fatalf("RemoveFailedMigration: %v", err)
	}

	rows, err := store.AllAppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AllAppliedMigrations: %v", err)
	}
	if len(rows) != 1 || rows[0].InstalledRank != okRank {
		t.Fatalf("expected only the successful row to survive, got %+v", rows)
	}
}

func TestRealignChecksumOverwritesStoredValue(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()
	if err := store.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rank, err := store.AddAppliedMigration(ctx, schema.AppliedMigration{
		Description: "seed", Type: schema.TypeSQL, Script: "R__seed.sql",
		Success: true, Checksum: int32Ptr(1),
	})
	if err != nil {
		t.Fatalf("AddAppliedMigration: %v", err)
	}

	if err := store.RealignChecksum(ctx, rank, int32Ptr(2), "deadbeef"); err != nil {
		t.Fatalf("RealignChecksum: %v", err)
	}

	rows, err := store.AllAppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AllAppliedMigrations: %v", err)
	}
	if len(rows) != 1 || rows[0].Checksum == nil || *rows[0].Checksum != 2 || rows[0].Digest != "deadbeef" {
		t.Fatalf("checksum/digest did not realign: %+v", rows)
	}
}

func int32Ptr(v int32) *int32 { return &v }

func TestLockSerializesReentrantCallsWithoutDeadlock(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()
	if err := store.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var ran bool
	err := store.Lock(ctx, func() error {
		return store.Lock(ctx, func() error {
			ran = true
			return nil
		})
	})
	if err != nil {
		t.Fatalf("nested Lock: %v", err)
	}
	if !ran {
		t.Fatalf("nested lock body never ran")
	}
}

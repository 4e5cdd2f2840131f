package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"
)

var ctx = context.Background()

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent opens the same database twice and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("first OpenSQLite failed: %v", err)
	}
	if err := s1.Upsert(ctx, Products, "a|x", []byte(`{"title":"a"}`)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("second OpenSQLite failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}

	docs, err := s2.GetAll(ctx, Products)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("expected document to survive reopen, got %d", len(docs))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("007_add_index.sql")
	if err != nil {
		t.Fatalf("parseMigrationVersion: %v", err)
	}
	if v != 7 {
		t.Errorf("version = %d, want 7", v)
	}
	if _, err := parseMigrationVersion("add_index.sql"); err == nil {
		t.Error("expected error for unnumbered migration")
	}
}

// storeContract runs the shared Store behaviour checks against any implementation.
func storeContract(t *testing.T, open func(t *testing.T) Store) {
	t.Run("UpsertIsIdempotent", func(t *testing.T) {
		s := open(t)
		doc := []byte(`{"title":"Smart Watch","platform":"Daraz"}`)
		for range 3 {
			if err := s.Upsert(ctx, Products, "Smart Watch|Daraz", doc); err != nil {
				t.Fatalf("Upsert: %v", err)
			}
		}
		docs, err := s.GetAll(ctx, Products)
		if err != nil {
			t.Fatalf("GetAll: %v", err)
		}
		if len(docs) != 1 {
			t.Fatalf("expected exactly 1 document, got %d", len(docs))
		}
		if !sameJSON(docs[0], doc) {
			t.Errorf("body = %s, want %s", docs[0], doc)
		}
	})

	t.Run("GetAllKeepsFirstInsertOrder", func(t *testing.T) {
		s := open(t)
		for i := range 4 {
			key := fmt.Sprintf("k%d", i)
			if err := s.Upsert(ctx, Products, key, []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
				t.Fatalf("Upsert: %v", err)
			}
		}
		// Updating an early key must not move it to the end.
		if err := s.Upsert(ctx, Products, "k0", []byte(`{"n":99}`)); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		docs, err := s.GetAll(ctx, Products)
		if err != nil {
			t.Fatalf("GetAll: %v", err)
		}
		want := []string{`{"n":99}`, `{"n":1}`, `{"n":2}`, `{"n":3}`}
		if len(docs) != len(want) {
			t.Fatalf("expected %d docs, got %d", len(want), len(docs))
		}
		for i := range want {
			if !sameJSON(docs[i], []byte(want[i])) {
				t.Errorf("docs[%d] = %s, want %s", i, docs[i], want[i])
			}
		}
	})

	t.Run("CollectionsAreIsolated", func(t *testing.T) {
		s := open(t)
		s.Upsert(ctx, Products, "same", []byte(`{"c":"p"}`))
		s.Upsert(ctx, Trends, "same", []byte(`{"c":"t"}`))

		if err := s.Clear(ctx, Trends); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		trends, _ := s.GetAll(ctx, Trends)
		if len(trends) != 0 {
			t.Errorf("expected trends cleared, got %d", len(trends))
		}
		products, _ := s.GetAll(ctx, Products)
		if len(products) != 1 {
			t.Errorf("expected products untouched, got %d", len(products))
		}
	})

	t.Run("DeleteMissingReturnsNotFound", func(t *testing.T) {
		s := open(t)
		s.Upsert(ctx, Watchlist, "w1", []byte(`{}`))
		if err := s.Delete(ctx, Watchlist, "w1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := s.Delete(ctx, Watchlist, "w1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("GetByKey", func(t *testing.T) {
		s := open(t)
		s.Upsert(ctx, Cache, "gadget", []byte(`{"q":"gadget"}`))
		doc, err := s.Get(ctx, Cache, "gadget")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !sameJSON(doc, []byte(`{"q":"gadget"}`)) {
			t.Errorf("body = %s", doc)
		}
		if _, err := s.Get(ctx, Cache, "other"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get missing error = %v, want ErrNotFound", err)
		}
		if _, err := s.Get(ctx, Trends, "gadget"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get in other collection error = %v, want ErrNotFound", err)
		}
	})

	t.Run("KeysKeepFirstInsertOrder", func(t *testing.T) {
		s := open(t)
		for _, k := range []string{"b", "a", "c"} {
			s.Upsert(ctx, Products, k, []byte(`{}`))
		}
		s.Upsert(ctx, Products, "b", []byte(`{"v":2}`))
		keys, err := s.Keys(ctx, Products)
		if err != nil {
			t.Fatalf("Keys: %v", err)
		}
		if got := fmt.Sprint(keys); got != "[b a c]" {
			t.Errorf("keys = %s, want [b a c]", got)
		}
		if empty, _ := s.Keys(ctx, Watchlist); len(empty) != 0 {
			t.Errorf("empty collection keys = %v", empty)
		}
	})

	t.Run("MetaLastWriteWins", func(t *testing.T) {
		s := open(t)
		if _, err := s.GetMeta(ctx, MetaAutomationState); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetMeta on empty store error = %v, want ErrNotFound", err)
		}
		s.SetMeta(ctx, MetaAutomationState, "Healthy")
		s.SetMeta(ctx, MetaAutomationState, "Failed: boom")
		v, err := s.GetMeta(ctx, MetaAutomationState)
		if err != nil {
			t.Fatalf("GetMeta: %v", err)
		}
		if v != "Failed: boom" {
			t.Errorf("meta = %q, want %q", v, "Failed: boom")
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return openTestStore(t) })
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return NewMemory() })
}

// TestPostgresStore runs against the database in MARKETSCOUT_TEST_POSTGRES_DSN.
// Every subtest starts from empty tables.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("MARKETSCOUT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MARKETSCOUT_TEST_POSTGRES_DSN not set")
	}
	storeContract(t, func(t *testing.T) Store {
		p, err := OpenPostgres(ctx, dsn)
		if err != nil {
			t.Fatalf("OpenPostgres: %v", err)
		}
		t.Cleanup(func() { p.Close() })
		if _, err := p.db.ExecContext(ctx, `TRUNCATE documents, system_metadata RESTART IDENTITY`); err != nil {
			t.Fatalf("truncating: %v", err)
		}
		return p
	})
}

func TestOpenPostgresUnreachable(t *testing.T) {
	cctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if _, err := OpenPostgres(cctx, "postgres://user:pw@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"); err == nil {
		t.Fatal("expected error for unreachable database")
	}
}

// sameJSON compares documents by value; Postgres re-serializes JSONB bodies.
func sameJSON(a, b []byte) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

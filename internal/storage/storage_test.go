package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
)

var day = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

func expense(id, category string, amount int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		Amount:      core.NewMoney(amount),
		Category:    category,
		Description: "test " + id,
		Date:        day,
		CreatedAt:   day,
	}
}

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "tally.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKVImplementations(t *testing.T) {
	stores := map[string]func(t *testing.T) KV{
		"memory": func(t *testing.T) KV { return NewMemoryStore() },
		"sqlite": func(t *testing.T) KV { return newSQLite(t) },
		"cached": func(t *testing.T) KV {
			c, err := cache.NewRistretto[[]byte](1<<20, 0, cache.BytesCost)
			if err != nil {
				t.Fatalf("NewRistretto: %v", err)
			}
			t.Cleanup(c.Close)
			return Cached(NewMemoryStore(), c)
		},
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := mk(t)

			if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
				t.Fatalf("Get(missing) = ok %v, err %v; want absent", ok, err)
			}
			if err := kv.Set(ctx, "k", []byte(`[1]`)); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := kv.Set(ctx, "k", []byte(`[2]`)); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			v, ok, err := kv.Get(ctx, "k")
			if err != nil || !ok || string(v) != `[2]` {
				t.Fatalf("Get(k) = %q, %v, %v; want [2]", v, ok, err)
			}
			if err := kv.Remove(ctx, "k"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if _, ok, _ := kv.Get(ctx, "k"); ok {
				t.Fatalf("key still present after Remove")
			}

			bw, ok := kv.(BatchWriter)
			if !ok {
				t.Fatalf("%s does not implement BatchWriter", name)
			}
			if err := bw.SetMany(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}); err != nil {
				t.Fatalf("SetMany: %v", err)
			}
			for key, want := range map[string]string{"a": "1", "b": "2"} {
				if v, _, _ := kv.Get(ctx, key); string(v) != want {
					t.Errorf("Get(%s) = %q, want %q", key, v, want)
				}
			}
		})
	}
}

func TestMemoryStoreCopiesBlobs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := []byte("abc")
	_ = s.Set(ctx, "k", in)
	in[0] = 'x'
	out, _, _ := s.Get(ctx, "k")
	if string(out) != "abc" {
		t.Fatalf("stored blob aliased caller slice: %q", out)
	}
}

func TestMemoryStoreHonoursDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, _, err := NewMemoryStore().Get(ctx, "k")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Get() err = %v, want ErrTimeout", err)
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Close()
	if err := s.Set(context.Background(), "k", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("Set() after Close err = %v, want ErrClosed", err)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.Set(context.Background(), KeyBudgets, []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	keys, err := s.Keys(context.Background())
	if err != nil || len(keys) != 1 || keys[0] != KeyBudgets {
		t.Fatalf("Keys() = %v, %v; want [%s]", keys, err, KeyBudgets)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.db")
	v1, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	v2, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v1 != 1 || v2 != v1 {
		t.Fatalf("versions = %d, %d; want 1, 1", v1, v2)
	}
}

type countingKV struct {
	*MemoryStore
	gets int
}

func (c *countingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets++
	return c.MemoryStore.Get(ctx, key)
}

func TestCachedKVServesReadsFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingKV{MemoryStore: NewMemoryStore()}
	c, err := cache.NewRistretto[[]byte](1<<20, time.Minute, cache.BytesCost)
	if err != nil {
		t.Fatalf("NewRistretto: %v", err)
	}
	defer c.Close()
	kv := NewCachedKV(inner, c)

	_ = inner.MemoryStore.Set(ctx, "k", []byte("v1"))
	for i := 0; i < 3; i++ {
		if v, ok, err := kv.Get(ctx, "k"); err != nil || !ok || string(v) != "v1" {
			t.Fatalf("Get() = %q, %v, %v", v, ok, err)
		}
	}
	if inner.gets > 1 {
		t.Errorf("inner Get called %d times, want at most 1", inner.gets)
	}

	if err := kv.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _, _ := kv.Get(ctx, "k"); string(v) != "v2" {
		t.Errorf("Get() after Set = %q, want v2", v)
	}
}

func TestCachedKeepsInnerAtomicity(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewRistretto[[]byte](1<<20, time.Minute, cache.BytesCost)
	if err != nil {
		t.Fatalf("NewRistretto: %v", err)
	}
	defer c.Close()

	if _, ok := Cached(NewMemoryStore(), c).(BatchWriter); !ok {
		t.Error("Cached(batch store) is not a BatchWriter")
	}

	inner := &flakyKV{MemoryStore: NewMemoryStore(), failKey: KeyExpenses}
	kv := Cached(plainKV{kv: inner}, c)
	if _, ok := kv.(BatchWriter); ok {
		t.Fatal("Cached(plain store) is a BatchWriter")
	}

	l := NewLedger(kv, time.Second)
	cs := NewChangeset()
	_ = cs.PutBudgets([]core.Budget{})
	_ = cs.PutExpenses([]core.Transaction{expense("e1", "Food", 10)})
	if err := l.Commit(ctx, cs); err == nil {
		t.Fatal("Commit() error = nil, want write failure")
	}
	// sequential path: budgets landed before expenses failed
	if _, ok, _ := inner.Get(ctx, KeyBudgets); !ok {
		t.Errorf("budgets not written before failure")
	}
}

func TestCachedKVSeesWritesFromAnotherConnection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	open := func() *SQLiteStore {
		s, err := NewSQLiteStore(path)
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}
	mine, other := open(), open()

	c, err := cache.NewRistretto[[]byte](1<<20, time.Minute, cache.BytesCost)
	if err != nil {
		t.Fatalf("NewRistretto: %v", err)
	}
	t.Cleanup(c.Close)
	kv := NewCachedKV(mine, c)

	if err := kv.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _, _ := kv.Get(ctx, "k"); string(v) != "v1" {
		t.Fatalf("Get() = %q, want v1", v)
	}
	if err := other.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("other Set: %v", err)
	}
	if v, _, _ := kv.Get(ctx, "k"); string(v) != "v2" {
		t.Errorf("Get() after foreign write = %q, want v2", v)
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(NewMemoryStore(), time.Second)

	got, err := l.Expenses(ctx)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("Expenses() on empty store = %v, %v; want empty slice", got, err)
	}

	want := []core.Transaction{expense("e1", "Food", 95000)}
	if err := l.SaveExpenses(ctx, want); err != nil {
		t.Fatalf("SaveExpenses: %v", err)
	}
	got, err = l.Expenses(ctx)
	if err != nil {
		t.Fatalf("Expenses: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e1" || !got[0].Amount.Equal(core.NewMoney(95000)) || !got[0].Date.Equal(day) {
		t.Fatalf("Expenses() = %+v, want %+v", got, want)
	}

	s, err := l.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if s != core.DefaultNotificationSettings() {
		t.Errorf("Settings() = %+v, want defaults", s)
	}
}

func TestLedgerShortcuts(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(NewMemoryStore(), time.Second)

	sc := core.Shortcut{ID: "s1", Amount: core.NewMoney(3500), Description: "coffee", Category: "Food", UsageCount: 2}
	if err := l.SaveShortcuts(ctx, []core.Shortcut{sc}); err != nil {
		t.Fatalf("SaveShortcuts: %v", err)
	}
	got, err := l.Shortcuts(ctx)
	if err != nil {
		t.Fatalf("Shortcuts: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" || got[0].UsageCount != 2 || !got[0].Amount.Equal(sc.Amount) {
		t.Fatalf("Shortcuts() = %+v, want %+v", got, sc)
	}

	bad := sc
	bad.Category = ""
	if err := l.SaveShortcuts(ctx, []core.Shortcut{bad}); !IsValidation(err) {
		t.Errorf("SaveShortcuts(invalid) = %v, want validation error", err)
	}
}

func TestLedgerRejectsMalformedCollections(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		blob      string
		wantIndex int
		wantErr   error
	}{
		{"not json", KeyExpenses, `{oops`, -1, nil},
		{"negative amount", KeyExpenses, `[{"id":"a","amount":5,"category":"Food","description":"x","date":"2024-03-05T00:00:00Z"},{"id":"b","amount":-3,"category":"Food","description":"x","date":"2024-03-05T00:00:00Z"}]`, 1, core.ErrInvalidAmount},
		{"budget month out of range", KeyBudgets, `[{"id":"b","category":"Food","amount":10,"spent":0,"month":12,"year":2024}]`, 0, core.ErrInvalidMonth},
		{"unknown frequency", KeyRecurring, `[{"id":"r","amount":10,"description":"rent","category":"Home","frequency":"yearly","nextDue":"2024-03-01T00:00:00Z"}]`, 0, core.ErrInvalidFrequency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := NewMemoryStore()
			_ = kv.Set(ctx, tt.key, []byte(tt.blob))
			l := NewLedger(kv, time.Second)

			var err error
			switch tt.key {
			case KeyExpenses:
				_, err = l.Expenses(ctx)
			case KeyBudgets:
				_, err = l.Budgets(ctx)
			case KeyRecurring:
				_, err = l.RecurringRules(ctx)
			}

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if ve.Key != tt.key || ve.Index != tt.wantIndex {
				t.Errorf("ValidationError = {%s %d}, want {%s %d}", ve.Key, ve.Index, tt.key, tt.wantIndex)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want wrapping %v", err, tt.wantErr)
			}
		})
	}
}

func TestChangesetValidatesBeforeStaging(t *testing.T) {
	cs := NewChangeset()
	bad := expense("e1", "", 10)
	if err := cs.PutExpenses([]core.Transaction{bad}); !IsValidation(err) {
		t.Fatalf("PutExpenses() err = %v, want validation error", err)
	}
	if cs.Len() != 0 {
		t.Fatalf("invalid collection was staged")
	}
}

type flakyKV struct {
	*MemoryStore
	failKey string
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

// plainKV hides MemoryStore's SetMany so Commit takes the sequential path.
type plainKV struct{ kv KV }

func (p plainKV) Get(ctx context.Context, k string) ([]byte, bool, error) { return p.kv.Get(ctx, k) }
func (p plainKV) Set(ctx context.Context, k string, v []byte) error    { return p.kv.Set(ctx, k, v) }
func (p plainKV) Remove(ctx context.Context, k string) error            { return p.kv.Remove(ctx, k) }

func TestCommitBatchIsAllOrNothingOnSQLite(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	l := NewLedger(s, time.Second)

	cs := NewChangeset()
	if err := cs.PutExpenses([]core.Transaction{expense("e1", "Food", 10)}); err != nil {
		t.Fatal(err)
	}
	if err := cs.PutBudgets([]core.Budget{{ID: "b1", Category: "Food", Amount: core.NewMoney(100), Spent: core.NewMoney(10), Month: 2, Year: 2024}}); err != nil {
		t.Fatal(err)
	}
	if err := l.Commit(ctx, cs); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	budgets, err := l.Budgets(ctx)
	if err != nil || len(budgets) != 1 || !budgets[0].Spent.Equal(core.NewMoney(10)) {
		t.Fatalf("Budgets() = %+v, %v", budgets, err)
	}
}

func TestCommitSequentialStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	inner := &flakyKV{MemoryStore: NewMemoryStore(), failKey: KeyExpenses}
	l := NewLedger(plainKV{kv: inner}, time.Second)

	cs := NewChangeset()
	_ = cs.PutBudgets([]core.Budget{})
	_ = cs.PutExpenses([]core.Transaction{expense("e1", "Food", 10)})
	if err := l.Commit(ctx, cs); err == nil {
		t.Fatal("Commit() err = nil, want failure")
	}
	// keys are written in sorted order, so budgets landed before expenses failed
	if _, ok, _ := inner.Get(ctx, KeyBudgets); !ok {
		t.Errorf("budgets not written before failure")
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	l := NewLedger(kv, time.Second)
	_ = l.SaveExpenses(ctx, []core.Transaction{expense("e1", "Food", 10)})
	_ = l.SaveShortcuts(ctx, []core.Shortcut{{ID: "s1", Amount: core.NewMoney(10), Description: "tea", Category: "Food"}})
	if err := l.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	keys, _ := kv.Keys(ctx)
	if len(keys) != 0 {
		t.Fatalf("Keys() after Reset = %v, want none", keys)
	}
}

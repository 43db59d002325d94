package persistence

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"lexcase-backend/models"
	"lexcase-backend/remote"
	"lexcase-backend/storage"
)

// fakeRemote is an in-memory RemoteStore that can be told to fail
type fakeRemote struct {
	mu      sync.Mutex
	records map[string]remote.Record
	err     error
	calls   int
	block   bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: make(map[string]remote.Record)}
}

func (f *fakeRemote) Get(ctx context.Context, tenant, path string) (remote.Record, error) {
	if err := f.enter(ctx); err != nil {
		return remote.Record{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[tenant+path]
	if !ok {
		return remote.Record{}, remote.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRemote) Put(ctx context.Context, tenant, path string, rec remote.Record) error {
	if err := f.enter(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[tenant+path] = rec
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, tenant, path string) error {
	if err := f.enter(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, tenant+path)
	return nil
}

func (f *fakeRemote) enter(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	err, block := f.err, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func TestWriteReadWithFailingRemote(t *testing.T) {
	ctx := context.Background()
	local := storage.NewMemoryStorage()
	fr := newFakeRemote()
	fr.err = remote.ErrUnavailable
	c := NewCoordinator(WithLocalStore(local), WithRemote(fr))

	keys := []storage.Key{
		storage.CasesKey(),
		storage.DocumentsKey(),
		storage.ChatKey("case-1"),
		storage.SessionKey("case-1", "s1"),
		storage.SessionIndexKey("case-1"),
	}
	for i, key := range keys {
		payload := []byte(`[{"n":` + string(rune('0'+i)) + `}]`)
		if _, err := c.Write(ctx, key, payload); err != nil {
			t.Fatalf("Write(%s) error = %v", key, err)
		}
		rec, ok, err := c.Read(ctx, key)
		if err != nil || !ok {
			t.Fatalf("Read(%s) = ok %v, err %v", key, ok, err)
		}
		if string(rec.Data) != string(payload) {
			t.Errorf("Read(%s) = %s, want %s", key, rec.Data, payload)
		}
	}
	if fr.calls == 0 {
		t.Error("remote was never attempted")
	}
}

func TestWriteReadWithUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx := context.Background()
	c := NewCoordinator(
		WithLocalStore(storage.NewMemoryStorage()),
		WithRemote(remote.NewClient(srv.URL, remote.WithToken("tok"))),
	)

	if _, err := c.Write(ctx, storage.CasesKey(), []byte(`[{"id":"case-1"}]`)); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	rec, ok, err := c.Read(ctx, storage.CasesKey())
	if err != nil || !ok {
		t.Fatalf("Read = ok %v, err %v", ok, err)
	}
	if string(rec.Data) != `[{"id":"case-1"}]` {
		t.Errorf("Data = %s", rec.Data)
	}
}

func TestRevisionsIncrement(t *testing.T) {
	ctx := context.Background()
	fr := newFakeRemote()
	c := NewCoordinator(WithLocalStore(storage.NewMemoryStorage()), WithRemote(fr))

	for want := int64(1); want <= 3; want++ {
		rec, err := c.Write(ctx, storage.CasesKey(), []byte(`[]`))
		if err != nil {
			t.Fatalf("Write error = %v", err)
		}
		if rec.Revision != want {
			t.Errorf("Revision = %d, want %d", rec.Revision, want)
		}
	}
	if got := fr.records["/cases"].Revision; got != 3 {
		t.Errorf("remote revision = %d, want 3", got)
	}
}

func TestReadPrefersNewerSide(t *testing.T) {
	ctx := context.Background()

	t.Run("remote newer refreshes local", func(t *testing.T) {
		local := storage.NewMemoryStorage()
		fr := newFakeRemote()
		c := NewCoordinator(WithLocalStore(local), WithRemote(fr))

		if _, err := c.Write(ctx, storage.CasesKey(), []byte(`["old"]`)); err != nil {
			t.Fatal(err)
		}
		fr.records["/cases"] = remote.Record{Revision: 5, Data: []byte(`["new"]`)}

		rec, _, err := c.Read(ctx, storage.CasesKey())
		if err != nil {
			t.Fatal(err)
		}
		if string(rec.Data) != `["new"]` {
			t.Errorf("Data = %s, want remote copy", rec.Data)
		}

		fr.err = remote.ErrUnavailable
		rec, _, _ = c.Read(ctx, storage.CasesKey())
		if string(rec.Data) != `["new"]` || rec.Revision != 5 {
			t.Errorf("local mirror = rev %d %s, want rev 5 remote copy", rec.Revision, rec.Data)
		}
	})

	t.Run("local ahead wins", func(t *testing.T) {
		local := storage.NewMemoryStorage()
		fr := newFakeRemote()
		fr.err = remote.ErrUnavailable
		c := NewCoordinator(WithLocalStore(local), WithRemote(fr))

		for _, payload := range []string{`["a"]`, `["b"]`} {
			if _, err := c.Write(ctx, storage.CasesKey(), []byte(payload)); err != nil {
				t.Fatal(err)
			}
		}
		fr.err = nil
		fr.records["/cases"] = remote.Record{Revision: 1, Data: []byte(`["stale"]`)}

		rec, _, err := c.Read(ctx, storage.CasesKey())
		if err != nil {
			t.Fatal(err)
		}
		if string(rec.Data) != `["b"]` {
			t.Errorf("Data = %s, want local copy", rec.Data)
		}
	})

	t.Run("remote missing falls back to local", func(t *testing.T) {
		fr := newFakeRemote()
		fr.err = remote.ErrUnavailable
		c := NewCoordinator(WithLocalStore(storage.NewMemoryStorage()), WithRemote(fr))
		if _, err := c.Write(ctx, storage.DocumentsKey(), []byte(`["doc"]`)); err != nil {
			t.Fatal(err)
		}
		fr.err = nil

		rec, ok, err := c.Read(ctx, storage.DocumentsKey())
		if err != nil || !ok || string(rec.Data) != `["doc"]` {
			t.Errorf("Read = %s ok %v err %v", rec.Data, ok, err)
		}
	})
}

func TestReadMissing(t *testing.T) {
	c := NewCoordinator(WithLocalStore(storage.NewMemoryStorage()), WithRemote(newFakeRemote()))
	_, ok, err := c.Read(context.Background(), storage.SessionIndexKey("case-x"))
	if err != nil {
		t.Fatalf("Read error = %v", err)
	}
	if ok {
		t.Error("expected no record")
	}
}

func TestFeatureFlagDisablesRemote(t *testing.T) {
	fr := newFakeRemote()
	c := NewCoordinator(
		WithLocalStore(storage.NewMemoryStorage()),
		WithRemote(fr),
		WithFeatureFlag(func() bool { return false }),
	)
	if _, err := c.Write(context.Background(), storage.CasesKey(), []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Read(context.Background(), storage.CasesKey()); err != nil {
		t.Fatal(err)
	}
	if fr.calls != 0 {
		t.Errorf("remote calls = %d, want 0", fr.calls)
	}
}

func TestRemoteTimeout(t *testing.T) {
	fr := newFakeRemote()
	fr.block = true
	c := NewCoordinator(
		WithLocalStore(storage.NewMemoryStorage()),
		WithRemote(fr),
		WithRemoteTimeout(20*time.Millisecond),
	)

	start := time.Now()
	if _, err := c.Write(context.Background(), storage.CasesKey(), []byte(`["x"]`)); err != nil {
		t.Fatal(err)
	}
	rec, ok, err := c.Read(context.Background(), storage.CasesKey())
	if err != nil || !ok || string(rec.Data) != `["x"]` {
		t.Fatalf("Read = %s ok %v err %v", rec.Data, ok, err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("remote calls not bounded by timeout: %v", elapsed)
	}
}

func TestTenantNamespace(t *testing.T) {
	ctx := context.Background()
	local := storage.NewMemoryStorage()
	fr := newFakeRemote()
	alice := NewCoordinator(WithLocalStore(local), WithRemote(fr), WithTenant("alice"))
	bob := NewCoordinator(WithLocalStore(local), WithRemote(fr), WithTenant("bob"))

	if _, err := alice.Write(ctx, storage.ChatKey(models.CaseID("case-1")), []byte(`["hi"]`)); err != nil {
		t.Fatal(err)
	}
	if _, err := local.Get(ctx, "alice:chat_case-1"); err != nil {
		t.Errorf("tenant key missing: %v", err)
	}
	if _, ok := fr.records["alice/cases/case-1/messages"]; !ok {
		t.Error("remote write did not carry tenant")
	}
	if _, ok, _ := bob.Read(ctx, storage.ChatKey("case-1")); ok {
		t.Error("bob can read alice's record")
	}
}

func TestCorruptLocalRecordIsContained(t *testing.T) {
	ctx := context.Background()
	local := storage.NewMemoryStorage()
	if err := local.Put(ctx, "cases", []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	c := NewCoordinator(WithLocalStore(local))

	_, ok, err := c.Read(ctx, storage.CasesKey())
	if err != nil || ok {
		t.Fatalf("Read = ok %v err %v, want absent", ok, err)
	}
	rec, err := c.Write(ctx, storage.CasesKey(), []byte(`[]`))
	if err != nil {
		t.Fatalf("Write error = %v", err)
	}
	if rec.Revision != 1 {
		t.Errorf("Revision = %d, want 1", rec.Revision)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	fr := newFakeRemote()
	c := NewCoordinator(WithLocalStore(storage.NewMemoryStorage()), WithRemote(fr))
	key := storage.SessionKey("case-1", "s1")

	if _, err := c.Write(ctx, key, []byte(`[{"id":"m1"}]`)); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if len(fr.records) != 0 {
		t.Errorf("remote still holds %d records", len(fr.records))
	}
	if _, ok, _ := c.Read(ctx, key); ok {
		t.Error("record still present after delete")
	}
}

func TestDeleteSurvivesRemoteOutage(t *testing.T) {
	ctx := context.Background()
	local := storage.NewMemoryStorage()
	fr := newFakeRemote()
	c := NewCoordinator(WithLocalStore(local), WithRemote(fr))
	key := storage.SessionKey("case-1", "s1")

	if _, err := c.Write(ctx, key, []byte(`[{"id":"m1"}]`)); err != nil {
		t.Fatal(err)
	}
	fr.err = errors.New("network down")
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if _, ok, _ := c.Read(ctx, key); ok {
		t.Error("record visible while remote is down")
	}

	// the remote comes back still holding the stale copy
	fr.err = nil
	rec, ok, err := c.Read(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("deleted record came back: %s", rec.Data)
	}
	if _, held := fr.records["/cases/case-1/sessions/s1/messages"]; held {
		t.Error("delete was not replayed to the remote")
	}
	if _, err := local.Get(ctx, key.String()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("tombstone not dropped after replay, err = %v", err)
	}
}

func TestTombstoneWithFeatureFlagOff(t *testing.T) {
	ctx := context.Background()
	fr := newFakeRemote()
	on := true
	c := NewCoordinator(WithLocalStore(storage.NewMemoryStorage()), WithRemote(fr),
		WithFeatureFlag(func() bool { return on }))
	key := storage.ChatKey("case-1")

	if _, err := c.Write(ctx, key, []byte(`[{"id":"m1"}]`)); err != nil {
		t.Fatal(err)
	}
	on = false
	if err := c.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	on = true
	if _, ok, _ := c.Read(ctx, key); ok {
		t.Error("record deleted while the remote was switched off came back")
	}
}

func TestTombstoneYieldsToNewerWrites(t *testing.T) {
	ctx := context.Background()
	fr := newFakeRemote()
	c := NewCoordinator(WithLocalStore(storage.NewMemoryStorage()), WithRemote(fr))
	key := storage.SessionKey("case-1", "s1")
	path := "/cases/case-1/sessions/s1/messages"

	if _, err := c.Write(ctx, key, []byte(`[{"id":"m1"}]`)); err != nil {
		t.Fatal(err)
	}
	fr.err = errors.New("network down")
	if err := c.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}

	// a local write after the delete continues past the tombstone revision
	rec, err := c.Write(ctx, key, []byte(`[{"id":"m2"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Revision != 3 {
		t.Errorf("Revision = %d, want 3", rec.Revision)
	}
	got, ok, _ := c.Read(ctx, key)
	if !ok || string(got.Data) != `[{"id":"m2"}]` {
		t.Errorf("Read = %s ok %v", got.Data, ok)
	}

	// another writer moved the remote past a fresh tombstone
	if err := c.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	fr.err = nil
	fr.records[path] = remote.Record{Revision: 9, Data: []byte(`[{"id":"m9"}]`)}
	got, ok, _ = c.Read(ctx, key)
	if !ok || got.Revision != 9 {
		t.Errorf("Read = rev %d ok %v, want the newer remote record", got.Revision, ok)
	}
}

func TestLocalStoreRequired(t *testing.T) {
	c := NewCoordinator()
	if _, _, err := c.Read(context.Background(), storage.CasesKey()); err == nil {
		t.Error("expected error without local store")
	}
	if _, err := c.Write(context.Background(), storage.CasesKey(), []byte(`[]`)); err == nil {
		t.Error("expected error without local store")
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Owner string `json:"owner"`
	Body  string `json:"body"`
	Hits  int    `json:"hits"`
}

func validateNote(n note) error {
	if n.Owner == "" {
		return errors.New("owner is required")
	}
	return nil
}

func openNotes(t *testing.T, backend Backend) *Collection[note] {
	t.Helper()
	return Open[note](context.Background(), backend, "notes", validateNote, Options{})
}

func backends(t *testing.T) map[string]func() Backend {
	t.Helper()
	mem := NewMemoryBackend()
	docDir := t.TempDir()
	kvPath := filepath.Join(t.TempDir(), "store.db")

	var kv *KVBackend
	t.Cleanup(func() {
		if kv != nil {
			kv.Close()
		}
	})

	return map[string]func() Backend{
		"memory": func() Backend { return mem },
		"document": func() Backend {
			b, err := NewDocumentBackend(docDir)
			require.NoError(t, err)
			return b
		},
		"kv": func() Backend {
			if kv == nil {
				var err error
				kv, err = NewKVBackend(kvPath)
				require.NoError(t, err)
			}
			return kv
		},
	}
}

func TestCollectionCRUD(t *testing.T) {
	ctx := context.Background()
	c := openNotes(t, NewMemoryBackend())

	require.NoError(t, c.Upsert(ctx, "a", note{Owner: "u1", Body: "first"}))
	require.NoError(t, c.Upsert(ctx, "b", note{Owner: "u2", Body: "second"}))
	require.NoError(t, c.Upsert(ctx, "c", note{Owner: "u1", Body: "third"}))

	got, ok := c.FindByID("b")
	require.True(t, ok)
	assert.Equal(t, "second", got.Body)

	_, ok = c.FindByID("missing")
	assert.False(t, ok)

	owned := c.FindMany(func(n note) bool { return n.Owner == "u1" })
	assert.Equal(t, []note{{Owner: "u1", Body: "first"}, {Owner: "u1", Body: "third"}}, owned)
	assert.Equal(t, 3, c.Count(nil))
	assert.Equal(t, 2, c.Count(func(n note) bool { return n.Owner == "u1" }))

	updated, found, err := c.Update(ctx, "a", func(n *note) { n.Body = "edited" })
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "edited", updated.Body)

	_, found, err = c.Update(ctx, "missing", func(n *note) { n.Body = "x" })
	require.NoError(t, err)
	assert.False(t, found)

	removed, err := c.Delete(ctx, "b")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.Delete(ctx, "b")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Count(nil))
}

func TestCollectionKeepsInsertionOrderOnOverwrite(t *testing.T) {
	ctx := context.Background()
	c := openNotes(t, NewMemoryBackend())

	for _, id := range []string{"z", "a", "m"} {
		require.NoError(t, c.Upsert(ctx, id, note{Owner: "u", Body: id}))
	}
	require.NoError(t, c.Upsert(ctx, "z", note{Owner: "u", Body: "z2"}))

	snap := c.Load()
	assert.Equal(t, []string{"z", "a", "m"}, snap.Order)
	assert.Equal(t, "z2", snap.Data["z"].Body)
	assert.False(t, snap.LastModified.IsZero())
}

func TestCollectionRejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	c := openNotes(t, NewMemoryBackend())

	err := c.Upsert(ctx, "a", note{Body: "no owner"})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	err = c.Upsert(ctx, "", note{Owner: "u"})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	assert.Equal(t, 0, c.Count(nil))
}

func TestCollectionRoundTripThroughBackends(t *testing.T) {
	ctx := context.Background()

	for name, newBackend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first := openNotes(t, newBackend())
			require.NoError(t, first.Upsert(ctx, "n2", note{Owner: "u", Body: "two", Hits: 2}))
			require.NoError(t, first.Upsert(ctx, "n1", note{Owner: "u", Body: "one", Hits: 1}))
			require.NoError(t, first.Flush(ctx))

			second := openNotes(t, newBackend())
			snap := second.Load()
			assert.Equal(t, []string{"n2", "n1"}, snap.Order)
			assert.Equal(t, note{Owner: "u", Body: "two", Hits: 2}, snap.Data["n2"])
			assert.Equal(t, first.Load().LastModified.UnixMilli(), snap.LastModified.UnixMilli())

			// New inserts continue after the persisted sequence.
			require.NoError(t, second.Upsert(ctx, "n0", note{Owner: "u", Body: "zero"}))
			assert.Equal(t, []string{"n2", "n1", "n0"}, second.Load().Order)
		})
	}
}

func TestCollectionCorruptBlobLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := NewDocumentBackend(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(backend.Path("notes"), []byte("{not json"), 0o644))

	c := openNotes(t, backend)
	assert.Equal(t, 0, c.Count(nil))

	require.NoError(t, c.Upsert(ctx, "a", note{Owner: "u"}))
	assert.Equal(t, 1, c.Count(nil))
}

func TestCollectionSkipsMalformedRecords(t *testing.T) {
	backend := NewMemoryBackend()
	blob := `{"lastModified":1,"nextSeq":3,"records":{` +
		`"good":{"seq":1,"record":{"owner":"u","body":"ok"}},` +
		`"bad":{"seq":2,"record":{"owner":42}},` +
		`"invalid":{"seq":3,"record":{"owner":""}}}}`
	require.NoError(t, backend.Write(context.Background(), "notes", []byte(blob)))

	c := openNotes(t, backend)
	assert.Equal(t, 1, c.Count(nil))
	_, ok := c.FindByID("good")
	assert.True(t, ok)
}

type failingBackend struct {
	*MemoryBackend
	writes int
}

func (b *failingBackend) Write(context.Context, string, []byte) error {
	b.writes++
	return errors.New("disk full")
}

func TestCollectionSwallowsWriteFailures(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{MemoryBackend: NewMemoryBackend()}
	c := openNotes(t, backend)

	require.NoError(t, c.Upsert(ctx, "a", note{Owner: "u", Body: "kept in memory"}))
	got, ok := c.FindByID("a")
	require.True(t, ok)
	assert.Equal(t, "kept in memory", got.Body)
	assert.Equal(t, 1, backend.writes)
}

func TestCollectionConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	c := openNotes(t, NewMemoryBackend())
	require.NoError(t, c.Upsert(ctx, "counter", note{Owner: "u"}))

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Update(ctx, "counter", func(x *note) { x.Hits++ })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, _ := c.FindByID("counter")
	assert.Equal(t, n, got.Hits)
}

func TestCollectionMutatePersistsOnce(t *testing.T) {
	ctx := context.Background()
	backend := &countingBackend{MemoryBackend: NewMemoryBackend()}
	c := openNotes(t, backend)

	err := c.Mutate(ctx, func(tx *Tx[note]) error {
		for i := 0; i < 5; i++ {
			if err := tx.Put(fmt.Sprintf("n%d", i), note{Owner: "u"}); err != nil {
				return err
			}
		}
		tx.Delete("n0")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, c.Count(nil))
	assert.Equal(t, 1, backend.writes)

	// Read-only mutations do not touch the backend.
	require.NoError(t, c.Mutate(ctx, func(tx *Tx[note]) error {
		_ = tx.Items(nil)
		return nil
	}))
	assert.Equal(t, 1, backend.writes)
}

type countingBackend struct {
	*MemoryBackend
	writes int
}

func (b *countingBackend) Write(ctx context.Context, name string, data []byte) error {
	b.writes++
	return b.MemoryBackend.Write(ctx, name, data)
}

func TestKVBackendIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	first, err := NewKVBackend(path)
	require.NoError(t, err)
	defer first.Close()

	start := time.Now()
	_, err = NewKVBackend(path)
	assert.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{input: "kv", want: KindKV},
		{input: "document", want: KindDocument},
		{input: "memory", want: KindMemory},
		{input: "sqlite", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

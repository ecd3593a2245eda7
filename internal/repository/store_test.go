package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

func newTestStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	mem := NewMemoryStore(nil)
	t.Cleanup(func() {
		_ = sqlite.Close()
		_ = mem.Close()
	})
	return map[string]Store{"memory": mem, "sqlite": sqlite}
}

func TestStoreSetAndGet(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			thread := domain.Thread{ID: "t1", UserID: "u1", ChatbotID: "c1", CreatedAt: 1700000000123}
			require.NoError(t, s.Set(ctx, ThreadPath("t1"), thread))

			var got domain.Thread
			ok, err := GetInto(ctx, s, ThreadPath("t1"), &got)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, thread, got)

			raw, err := s.Get(ctx, Join(ThreadPath("t1"), "userId"))
			require.NoError(t, err)
			assert.JSONEq(t, `"u1"`, string(raw))

			raw, err = s.Get(ctx, ThreadPath("missing"))
			require.NoError(t, err)
			assert.Nil(t, raw)
		})
	}
}

func TestStoreSiblingPrefixesStayApart(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, ThreadPath("t1"), map[string]any{"id": "t1"}))
			require.NoError(t, s.Set(ctx, ThreadPath("t10"), map[string]any{"id": "t10"}))
			require.NoError(t, s.Set(ctx, ThreadPath("t1_a"), map[string]any{"id": "t1_a"}))

			raw, err := s.Get(ctx, ThreadPath("t1"))
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"t1"}`, string(raw))

			require.NoError(t, s.Remove(ctx, ThreadPath("t1")))
			raw, err = s.Get(ctx, ThreadsRoot)
			require.NoError(t, err)
			assert.JSONEq(t, `{"t10":{"id":"t10"},"t1_a":{"id":"t1_a"}}`, string(raw))
		})
	}
}

func TestStoreUpdateWritesAllPaths(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := s.Update(ctx, map[string]any{
				ThreadPath("t1"):              domain.Thread{ID: "t1", UserID: "u1", ChatbotID: "c1", CreatedAt: 5},
				UserThreadPath("u1", "t1"):    true,
				ChatbotThreadPath("c1", "t1"): true,
			})
			require.NoError(t, err)

			raw, err := s.Get(ctx, UserThreadsPath("u1"))
			require.NoError(t, err)
			assert.JSONEq(t, `{"t1":true}`, string(raw))
			raw, err = s.Get(ctx, ChatbotThreadsPath("c1"))
			require.NoError(t, err)
			assert.JSONEq(t, `{"t1":true}`, string(raw))
		})
	}
}

func TestStoreUpdateRejectsInvalidKeyWithoutWriting(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := s.Update(ctx, map[string]any{
				ThreadPath("t1"):           map[string]any{"id": "t1"},
				UserThreadPath("u1", "t1"): map[string]any{"a/b": true},
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))

			raw, err := s.Get(ctx, ThreadPath("t1"))
			require.NoError(t, err)
			assert.Nil(t, raw)
		})
	}
}

func TestStoreEmptyMapVanishes(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, UserThreadPath("u1", "t1"), true))
			require.NoError(t, s.Remove(ctx, UserThreadPath("u1", "t1")))

			raw, err := s.Get(ctx, UserThreadsPath("u1"))
			require.NoError(t, err)
			assert.Nil(t, raw)

			require.NoError(t, s.Set(ctx, ChatbotPath("c1"), map[string]any{}))
			raw, err = s.Get(ctx, ChatbotPath("c1"))
			require.NoError(t, err)
			assert.Nil(t, raw)
		})
	}
}

func TestStoreSetBelowLeafReplacesLeaf(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, "a", "scalar"))
			require.NoError(t, s.Set(ctx, "a/b/c", 1))

			raw, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.JSONEq(t, `{"b":{"c":1}}`, string(raw))
		})
	}
}

func TestStorePreservesLargeNumbers(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, "n", map[string]any{"v": int64(9007199254740993)}))
			raw, err := s.Get(ctx, "n/v")
			require.NoError(t, err)
			assert.Equal(t, "9007199254740993", string(raw))
		})
	}
}

type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) cb(v json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, string(v))
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func TestStoreSubscribe(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, MessagePath("t1", "m1"), map[string]any{"content": "hi"}))

			rec := &recorder{}
			unsubscribe, err := s.Subscribe(ctx, MessagesPath("t1"), rec.cb)
			require.NoError(t, err)

			require.NoError(t, s.Set(ctx, MessagePath("t1", "m2"), map[string]any{"content": "yo"}))
			require.NoError(t, s.Set(ctx, MessagePath("t2", "m1"), map[string]any{"content": "other"}))
			require.NoError(t, s.Remove(ctx, ThreadPath("t1")))

			unsubscribe()
			require.NoError(t, s.Set(ctx, MessagePath("t1", "m3"), map[string]any{"content": "late"}))

			got := rec.snapshot()
			require.Len(t, got, 3)
			assert.JSONEq(t, `{"m1":{"content":"hi"}}`, got[0])
			assert.JSONEq(t, `{"m1":{"content":"hi"},"m2":{"content":"yo"}}`, got[1])
			assert.Equal(t, "", got[2])
		})
	}
}

type failingBackend struct {
	memoryBackend
}

func (f *failingBackend) write(context.Context, []write) error {
	return errors.New("disk full")
}

func TestStoreWriteFailureIsReported(t *testing.T) {
	s := newTreeStore(&failingBackend{memoryBackend{rows: leaves{}}}, nil)
	ctx := context.Background()

	rec := &recorder{}
	_, err := s.Subscribe(ctx, ThreadsRoot, rec.cb)
	require.NoError(t, err)

	err = s.Set(ctx, ThreadPath("t1"), map[string]any{"id": "t1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreWriteFailed))
	assert.Len(t, rec.snapshot(), 1)
}

func TestSQLiteStoreConcurrentWriters(t *testing.T) {
	dsns := map[string]string{
		"wal":    "file:" + filepath.Join(t.TempDir(), "chatbot.db") + "?mode=rwc&_busy_timeout=5000&_journal_mode=WAL",
		"shared": "file:" + filepath.Join(t.TempDir(), "chatbot.db") + "?cache=shared&mode=rwc",
	}
	for name, dsn := range dsns {
		t.Run(name, func(t *testing.T) {
			s, err := NewSQLiteStore(dsn, nil)
			require.NoError(t, err)
			defer s.Close()

			ctx := context.Background()
			const writers, writes = 8, 50
			errs := make(chan error, writers*writes)
			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < writes; i++ {
						path := MessagePath(fmt.Sprintf("t%d", w), fmt.Sprintf("m%d", i))
						if err := s.Set(ctx, path, domain.Message{ID: fmt.Sprintf("m%d", i), Content: "x"}); err != nil {
							errs <- err
							continue
						}
						if _, err := s.Get(ctx, ThreadPath(fmt.Sprintf("t%d", w))); err != nil {
							errs <- err
						}
					}
				}(w)
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				t.Errorf("concurrent store operation failed: %v", err)
			}
			for w := 0; w < writers; w++ {
				msgs := map[string]domain.Message{}
				ok, err := GetInto(ctx, s, MessagesPath(fmt.Sprintf("t%d", w)), &msgs)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Len(t, msgs, writes)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mongo", "", nil)
	assert.Error(t, err)
}

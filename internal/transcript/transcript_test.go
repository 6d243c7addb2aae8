package transcript

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "transcript.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	at := time.UnixMilli(1700000000123)

	seq, err := store.Record(ctx, Entry{RunID: "r1", RequestID: "7", Binding: "core", Method: "SQMDGet", Payload: []byte(`{"path":"/a"}`), Response: []byte(`{"result":1}`), At: at})
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
	_, err = store.Record(ctx, Entry{RunID: "r2", RequestID: "8", Binding: "ctx", Method: "NewStream"})
	require.NoError(t, err)
	_, err = store.Record(ctx, Entry{RunID: "r1", RequestID: "7", Binding: "ext", Method: "ProxyHttp", Err: "refused"})
	require.NoError(t, err)

	r1, err := store.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, r1, 2)
	assert.Equal(t, "SQMDGet", r1[0].Method)
	assert.Equal(t, `{"path":"/a"}`, string(r1[0].Payload))
	assert.Equal(t, `{"result":1}`, string(r1[0].Response))
	assert.True(t, at.Equal(r1[0].At))
	assert.Equal(t, "refused", r1[1].Err)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.False(t, all[1].At.IsZero())
}

func TestInitIsIdempotent(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Init(context.Background()))
	assert.NotEmpty(t, store.Path())
}

func TestNilStore(t *testing.T) {
	var s *Store
	assert.Error(t, s.Init(context.Background()))
	assert.NoError(t, s.Close())
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	errDenied := errors.New("denied")

	call := store.Recorder("run-1", func(_ context.Context, binding, namespace, operation string, payload []byte) ([]byte, error) {
		if operation == "Deny" {
			return nil, errDenied
		}
		return []byte(`{"result":"ok"}`), nil
	})

	out, err := call(ctx, "req-1", "core", "SystemTime", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"result":"ok"}`, string(out))
	_, err = call(ctx, "req-1", "ext", "Deny", []byte("{}"))
	assert.ErrorIs(t, err, errDenied)

	entries, err := store.List(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Seq: 1, RunID: "run-1", RequestID: "req-1", Binding: "core", Method: "SystemTime", Response: []byte(`{"result":"ok"}`), At: entries[0].At}, entries[0])
	assert.Equal(t, "denied", entries[1].Err)
	assert.Equal(t, "{}", string(entries[1].Payload))
}

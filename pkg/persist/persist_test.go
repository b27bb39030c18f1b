package persist

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	redux "github.com/goliatone/go-redux"
	"github.com/goliatone/go-redux/internal/hydrate"
	"github.com/goliatone/go-redux/pkg/activity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	failGet error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	data, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mem, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	return map[string]Backend{
		"memory":        NewMemoryBackend(),
		"sqlite file":   db,
		"sqlite memory": mem,
		"s3":            NewS3Backend(newFakeS3(), "bucket", "redux/"),
	}
}

func TestBackendsRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := backend.Load(ctx, "system/cart")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, backend.Save(ctx, "system/cart", []byte(`{"count":1}`)))
			require.NoError(t, backend.Save(ctx, "system/cart", []byte(`{"count":2}`)))

			data, ok, err := backend.Load(ctx, "system/cart")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, `{"count":2}`, string(data))

			assert.ErrorIs(t, backend.Save(ctx, "", nil), ErrEmptyKey)
			_, _, err = backend.Load(ctx, "")
			assert.ErrorIs(t, err, ErrEmptyKey)
		})
	}
}

func TestMemoryBackendCopiesData(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	payload := []byte("abc")
	require.NoError(t, backend.Save(ctx, "k", payload))
	payload[0] = 'z'

	data, ok, err := backend.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(data))
	assert.Equal(t, []string{"k"}, backend.Keys())
}

func TestSQLBackendTracksUpdatedAt(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer backend.Close()

	_, ok, err := backend.UpdatedAt(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, backend.Save(ctx, "k", []byte("{}")))
	at, ok, err := backend.UpdatedAt(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, at.IsZero())
}

func TestS3BackendWrapsErrors(t *testing.T) {
	client := newFakeS3()
	client.failGet = errors.New("access denied")
	backend := NewS3Backend(client, "bucket", "")
	_, _, err := backend.Load(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestRefIdentifier(t *testing.T) {
	cases := []struct {
		ref     Ref
		want    string
		wantErr bool
	}{
		{ref: Ref{Domain: "cart"}, want: "system/cart"},
		{ref: Ref{Domain: "cart", Scope: "system"}, want: "system/cart"},
		{ref: Ref{Domain: "cart", Scope: "user", ID: "42"}, want: "user/42/cart"},
		{ref: Ref{Domain: "cart", Scope: "user"}, wantErr: true},
		{ref: Ref{Domain: "cart", Scope: "planet", ID: "x"}, wantErr: true},
		{ref: Ref{Scope: "system"}, wantErr: true},
	}
	for _, tc := range cases {
		got, err := tc.ref.Identifier()
		if tc.wantErr {
			assert.Error(t, err, "%+v", tc.ref)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

type cart struct {
	Owner string         `json:"owner"`
	Items map[string]int `json:"items"`
	Theme *string        `json:"theme,omitempty"`
}

func cartReducer(state cart, action redux.Action) cart {
	if action.Type != "add" {
		return state
	}
	items := make(map[string]int, len(state.Items)+1)
	for k, v := range state.Items {
		items[k] = v
	}
	items[action.Payload.(string)]++
	state.Items = items
	return state
}

func TestPersisterRehydrateMergesOverInitial(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Save(ctx, "system/cart", []byte(`{"owner":"ada","items":{"apple":2}}`)))

	capture := &activity.CaptureHook{}
	persister, err := NewPersister[cart](backend, "system/cart", WithActivityHooks[cart](activity.Hooks{capture}))
	require.NoError(t, err)

	dark := "dark"
	state, err := persister.Rehydrate(ctx, cart{Owner: "anon", Items: map[string]int{"pear": 1}, Theme: &dark})
	require.NoError(t, err)

	assert.Equal(t, "ada", state.Owner)
	assert.Equal(t, map[string]int{"apple": 2, "pear": 1}, state.Items)
	require.NotNil(t, state.Theme)
	assert.Equal(t, "dark", *state.Theme)
	assert.Equal(t, []string{activity.VerbStateRehydrated}, capture.Verbs())
}

func TestPersisterRehydrateWithoutStoredSnapshot(t *testing.T) {
	persister, err := NewPersister[cart](NewMemoryBackend(), "system/cart")
	require.NoError(t, err)
	initial := cart{Owner: "anon"}
	state, err := persister.Rehydrate(context.Background(), initial)
	require.NoError(t, err)
	assert.Equal(t, initial, state)
}

func TestPersisterDecoderHooksAndWithoutMerge(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Save(ctx, "k", []byte(`{"user":"grace"}`)))

	persister, err := NewPersister[cart](backend, "k",
		WithoutMerge[cart](),
		WithDecoderOptions[cart](hydrate.WithPreHook[cart](func(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
			payload["owner"] = payload["user"]
			delete(payload, "user")
			return payload, nil
		})),
	)
	require.NoError(t, err)

	state, err := persister.Rehydrate(ctx, cart{Items: map[string]int{"pear": 1}})
	require.NoError(t, err)
	assert.Equal(t, "grace", state.Owner)
	assert.Nil(t, state.Items)
}

func TestPersisterRehydrateRejectsCorruptPayload(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Save(ctx, "k", []byte(`{"owner":`)))
	persister, err := NewPersister[cart](backend, "k")
	require.NoError(t, err)

	initial := cart{Owner: "anon"}
	state, err := persister.Rehydrate(ctx, initial)
	require.Error(t, err)
	assert.Equal(t, initial, state)
}

func TestConfigureAndAttachSaveSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer backend.Close()
	require.NoError(t, backend.Save(ctx, "system/cart", []byte(`{"owner":"ada","items":{"apple":1}}`)))

	persister, err := NewPersister[cart](backend, "system/cart")
	require.NoError(t, err)

	proxy := redux.New[cart]()
	require.NoError(t, Configure(ctx, persister, proxy, cartReducer, cart{Owner: "anon"}, nil, nil))

	sub := persister.Attach(ctx, proxy)
	defer sub.Unsubscribe()

	_, err = proxy.Dispatch(redux.Action{Type: "add", Payload: "apple"})
	require.NoError(t, err)

	data, ok, err := backend.Load(ctx, "system/cart")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"owner":"ada","items":{"apple":2}}`, string(data))
}

func TestNewPersisterValidatesInput(t *testing.T) {
	_, err := NewPersister[cart](nil, "k")
	assert.ErrorIs(t, err, ErrNilBackend)
	_, err = NewPersister[cart](NewMemoryBackend(), "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

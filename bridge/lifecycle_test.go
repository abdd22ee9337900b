package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unreachableStore struct{ *MemoryStore }

func (unreachableStore) Ping(context.Context) error { return errors.New("database is locked") }

func TestLifecycle_ActivateCreatesDefaults(t *testing.T) {
	store := NewMemoryStore()
	lc := NewLifecycle(store, NewMemoryTransients(nil), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, lc.Activate(ctx))
	creds, err := store.GetCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, Credentials{}, creds)
}

func TestLifecycle_ActivateKeepsExisting(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SaveCredentials(ctx, testCredentials))

	require.NoError(t, NewLifecycle(store, nil, zerolog.Nop()).Activate(ctx))
	creds, err := store.GetCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, testCredentials, creds)
}

func TestLifecycle_ActivateUnreachableStore(t *testing.T) {
	lc := NewLifecycle(unreachableStore{NewMemoryStore()}, nil, zerolog.Nop())
	require.ErrorIs(t, lc.Activate(context.Background()), ErrMissingPrerequisite)

	require.ErrorIs(t, NewLifecycle(nil, nil, zerolog.Nop()).Activate(context.Background()), ErrMissingPrerequisite)
}

func TestLifecycle_DeactivateKeepsForms(t *testing.T) {
	store := NewMemoryStore()
	transients := NewMemoryTransients(nil)
	ctx := context.Background()
	require.NoError(t, store.SaveCredentials(ctx, testCredentials))
	require.NoError(t, store.SaveForm(ctx, FormSettings{FormID: 1, Enabled: true}))
	require.NoError(t, transients.SetTransient(ctx, TransientConnectionTest, Notice{Code: NoticeConnectionSuccess}, ConnectionTestTTL))

	require.NoError(t, NewLifecycle(store, transients, zerolog.Nop()).Deactivate(ctx))

	_, err := store.GetCredentials(ctx)
	require.ErrorIs(t, err, ErrNotFound)
	var n Notice
	ok, err := transients.GetTransient(ctx, TransientConnectionTest, &n)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.GetForm(ctx, 1)
	require.NoError(t, err)
}

func TestLifecycle_UninstallRemovesEverything(t *testing.T) {
	store, cleanup := setupSQLiteStore(t, nil)
	defer cleanup()
	ctx := context.Background()

	lc := NewLifecycle(store, store, zerolog.Nop())
	require.NoError(t, lc.Activate(ctx))
	require.NoError(t, store.SaveCredentials(ctx, testCredentials))
	for _, id := range []FormID{1, 2, 3} {
		require.NoError(t, store.SaveForm(ctx, FormSettings{FormID: id, Enabled: true, FieldMapping: DefaultFieldMappingLines}))
	}
	require.NoError(t, store.SetTransient(ctx, TransientNotices, []Notice{{Code: NoticeConnectionFailed}}, noticeTTL))

	removed, err := lc.Uninstall(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	_, err = store.GetCredentials(ctx)
	require.ErrorIs(t, err, ErrNotFound)
	forms, err := store.ListForms(ctx)
	require.NoError(t, err)
	assert.Empty(t, forms)

	var notices []Notice
	ok, err := store.GetTransient(ctx, TransientNotices, &notices)
	require.NoError(t, err)
	assert.False(t, ok)
}

package bridge

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func setupSQLiteStore(t *testing.T, now Clock) (*SQLiteStore, func()) {
	store, err := OpenSQLiteStore(":memory:", now)
	require.NoError(t, err)
	return store, func() { _ = store.Close() }
}

func TestMemoryStore(t *testing.T) {
	runSettingsStoreSuite(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, cleanup := setupSQLiteStore(t, nil)
	defer cleanup()
	runSettingsStoreSuite(t, store)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	dbName := "civicf7_test_" + time.Now().Format("150405")
	defer client.Database(dbName).Drop(context.Background())

	store, err := NewMongoStore(ctx, client, dbName)
	require.NoError(t, err)
	runSettingsStoreSuite(t, store)
}

func runSettingsStoreSuite(t *testing.T, store SettingsStore) {
	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	_, err := store.GetCredentials(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	creds := Credentials{Endpoint: "https://crm.example.org/civicrm/ajax/api4", APIKey: "key", SiteKey: "site"}
	require.NoError(t, store.SaveCredentials(ctx, creds))
	got, err := store.GetCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, got)

	creds.APIKey = "rotated"
	require.NoError(t, store.SaveCredentials(ctx, creds))
	got, err = store.GetCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.APIKey)

	_, err = store.GetForm(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.SaveForm(ctx, FormSettings{}), ErrInvalidFormID)

	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	first := FormSettings{FormID: 12, Enabled: true, Action: DefaultAction, FieldMapping: DefaultFieldMappingLines, UpdatedAt: updated}
	second := FormSettings{FormID: 7, Enabled: false, Action: DefaultAction, FieldMapping: "a = b", UpdatedAt: updated}
	require.NoError(t, store.SaveForm(ctx, first))
	require.NoError(t, store.SaveForm(ctx, second))

	gotForm, err := store.GetForm(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, first.FormID, gotForm.FormID)
	assert.True(t, gotForm.Enabled)
	assert.Equal(t, first.FieldMapping, gotForm.FieldMapping)
	assert.True(t, updated.Equal(gotForm.UpdatedAt))

	first.Enabled = false
	require.NoError(t, store.SaveForm(ctx, first))
	gotForm, err = store.GetForm(ctx, 12)
	require.NoError(t, err)
	assert.False(t, gotForm.Enabled)

	forms, err := store.ListForms(ctx)
	require.NoError(t, err)
	require.Len(t, forms, 2)
	assert.Equal(t, FormID(7), forms[0].FormID)
	assert.Equal(t, FormID(12), forms[1].FormID)

	n, err := store.DeleteAllForms(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	forms, err = store.ListForms(ctx)
	require.NoError(t, err)
	assert.Empty(t, forms)

	require.NoError(t, store.DeleteCredentials(ctx))
	_, err = store.GetCredentials(ctx)
	require.ErrorIs(t, err, ErrNotFound)
}

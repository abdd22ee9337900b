package bridge

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanel_LoadDefaults(t *testing.T) {
	panel := NewPanel(NewMemoryStore(), nil, zerolog.Nop())

	view, err := panel.Load(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, view.Stored)
	assert.False(t, view.Enabled)
	assert.Equal(t, DefaultAction, view.Action)
	assert.Equal(t, DefaultFieldMappingLines, view.FieldMapping)
	assert.Equal(t, RequiredContactFields, view.RequiredFields)
	require.NotEmpty(t, view.Actions)
	assert.Equal(t, DefaultAction, view.Actions[0].Value)
}

func TestPanel_SaveAndLoad(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	panel := NewPanel(store, clock.Now, zerolog.Nop())
	ctx := context.Background()

	saved, err := panel.Save(ctx, 4, PanelInput{
		Enabled:      true,
		Action:       " Contact.create ",
		FieldMapping: "  your-name = first_name  \r\nsurname = last_name\n\nyour-email = email",
	})
	require.NoError(t, err)
	assert.Equal(t, FormID(4), saved.FormID)
	assert.Equal(t, "your-name = first_name\nsurname = last_name\n\nyour-email = email", saved.FieldMapping)
	assert.Equal(t, clock.Now(), saved.UpdatedAt)

	view, err := panel.Load(ctx, 4)
	require.NoError(t, err)
	assert.True(t, view.Stored)
	assert.True(t, view.Enabled)
	assert.Equal(t, "Contact.create", view.Action)
	assert.Equal(t, saved.FieldMapping, view.FieldMapping)

	stored, err := store.GetForm(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, saved, stored)
}

func TestPanel_SaveEmptyActionUsesDefault(t *testing.T) {
	panel := NewPanel(NewMemoryStore(), nil, zerolog.Nop())
	saved, err := panel.Save(context.Background(), 1, PanelInput{FieldMapping: "a = b"})
	require.NoError(t, err)
	assert.Equal(t, DefaultAction, saved.Action)
	assert.False(t, saved.Enabled)
}

func TestPanel_SaveRejects(t *testing.T) {
	panel := NewPanel(NewMemoryStore(), nil, zerolog.Nop())
	ctx := context.Background()

	_, err := panel.Save(ctx, 0, PanelInput{})
	require.ErrorIs(t, err, ErrInvalidFormID)

	_, err = panel.Save(ctx, 2, PanelInput{Action: "Contact.create.extra"})
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestPanel_EmptyMappingIsKept(t *testing.T) {
	panel := NewPanel(NewMemoryStore(), nil, zerolog.Nop())
	ctx := context.Background()

	_, err := panel.Save(ctx, 8, PanelInput{Enabled: true})
	require.NoError(t, err)

	view, err := panel.Load(ctx, 8)
	require.NoError(t, err)
	assert.True(t, view.Stored)
	assert.Equal(t, "", view.FieldMapping)
}

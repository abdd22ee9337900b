package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"civicf7/bridge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeForms(t *testing.T) {
	forms := []bridge.FormSettings{
		{FormID: 3, Enabled: true, Action: bridge.DefaultAction, FieldMapping: "your-name = first_name\nyour-email = email", UpdatedAt: time.Now()},
		{FormID: 9, Enabled: false, Action: "Contact.save", FieldMapping: ""},
	}

	var buf bytes.Buffer
	require.NoError(t, encodeForms(&buf, forms))
	assert.Contains(t, buf.String(), "form_id: 3")
	assert.Contains(t, buf.String(), "field_mapping: |-")
	assert.NotContains(t, buf.String(), "updated_at")

	entries, err := decodeForms(&buf)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(3), entries[0].FormID)
	assert.True(t, entries[0].Enabled)
	assert.Equal(t, forms[0].FieldMapping, entries[0].FieldMapping)
	assert.Equal(t, "Contact.save", entries[1].Action)
}

func TestDecodeForms_RequiresFormID(t *testing.T) {
	_, err := decodeForms(strings.NewReader("forms:\n  - enabled: true\n"))
	require.ErrorIs(t, err, bridge.ErrInvalidFormID)

	_, err = decodeForms(strings.NewReader("forms: [unterminated"))
	require.Error(t, err)
}

func TestRenderForms(t *testing.T) {
	var buf bytes.Buffer
	renderForms(&buf, []bridge.FormSettings{
		{FormID: 4, Enabled: true, Action: bridge.DefaultAction, FieldMapping: bridge.DefaultFieldMappingLines},
	})
	out := strings.ToUpper(buf.String())
	assert.Contains(t, out, "MAPPED FIELDS")
	assert.Contains(t, out, "CONTACT.CREATE")
}

func TestReadPostedData(t *testing.T) {
	relayData, relayDataFile = `{"first_name":"Ada","email":"ada@example.org"}`, ""
	defer func() { relayData = "" }()

	data, err := readPostedData()
	require.NoError(t, err)
	assert.Equal(t, "Ada", data["first_name"])

	relayData = `["not","an","object"]`
	_, err = readPostedData()
	require.Error(t, err)

	relayData = ""
	_, err = readPostedData()
	require.Error(t, err)
}

package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldMapping(t *testing.T) {
	testcases := []struct {
		name     string
		text     string
		expected FieldMapping
	}{
		{
			name:     "drops blank and malformed lines",
			text:     "a = b\nc=d\n\nbad_line",
			expected: FieldMapping{{"a", "b"}, {"c", "d"}},
		},
		{
			name:     "last duplicate wins in first position",
			text:     "your-name = first_name\nemail = email\nyour-name = last_name",
			expected: FieldMapping{{"your-name", "last_name"}, {"email", "email"}},
		},
		{
			name:     "more than one equals sign is dropped",
			text:     "a = b = c\nx = y",
			expected: FieldMapping{{"x", "y"}},
		},
		{
			name:     "windows line endings and padding",
			text:     "  first = first_name \r\n\tlast=last_name\r\n",
			expected: FieldMapping{{"first", "first_name"}, {"last", "last_name"}},
		},
		{
			name: "default mapping",
			text: DefaultFieldMappingLines,
			expected: FieldMapping{
				{"first_name", "first_name"},
				{"last_name", "last_name"},
				{"email", "email"},
				{"contact_type", "Individual"},
			},
		},
		{
			name:     "empty text",
			text:     "",
			expected: FieldMapping{},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseFieldMapping(tc.text))
		})
	}
}

func TestBuildPayload(t *testing.T) {
	mapping := ParseFieldMapping("first_name = first_name\nlast_name = last_name\nemail = email")
	data := map[string]any{"first_name": "A", "last_name": "B", "email": "x@y.com"}

	payload, err := BuildPayload(data, mapping)
	require.NoError(t, err)
	assert.Equal(t, Payload{
		"contact_type": "Individual",
		"first_name":   "A",
		"last_name":    "B",
		"email": []map[string]any{{
			"email":            "x@y.com",
			"is_primary":       1,
			"location_type_id": 1,
		}},
	}, payload)
}

func TestBuildPayload_MissingLastName(t *testing.T) {
	mapping := ParseFieldMapping("first_name = first_name\nlast_name = last_name\nemail = email")
	data := map[string]any{"first_name": "A", "email": "x@y.com"}

	payload, err := BuildPayload(data, mapping)
	require.ErrorIs(t, err, ErrMissingRequiredFields)
	assert.Nil(t, payload)
	assert.Contains(t, err.Error(), "last_name")
}

func TestBuildPayload_RenamedFields(t *testing.T) {
	mapping := ParseFieldMapping("your-first = first_name\nyour-last = last_name\nyour-email = email\nyour-phone = phone")
	data := map[string]any{
		"your-first": "Ada",
		"your-last":  "Lovelace",
		"your-email": "ada@example.org",
		"unmapped":   "ignored",
	}

	payload, err := BuildPayload(data, mapping)
	require.NoError(t, err)
	assert.Equal(t, "Ada", payload["first_name"])
	assert.Equal(t, "Lovelace", payload["last_name"])
	assert.NotContains(t, payload, "phone")
	assert.NotContains(t, payload, "unmapped")
	assert.NotContains(t, payload, "your-first")
}

func TestBuildPayload_EmptyValuesRejected(t *testing.T) {
	mapping := ParseFieldMapping("first_name = first_name\nlast_name = last_name\nemail = email")

	testcases := []struct {
		name string
		data map[string]any
	}{
		{name: "blank email", data: map[string]any{"first_name": "A", "last_name": "B", "email": ""}},
		{name: "zero first name", data: map[string]any{"first_name": "0", "last_name": "B", "email": "x@y.com"}},
		{name: "nil last name", data: map[string]any{"first_name": "A", "last_name": nil, "email": "x@y.com"}},
		{name: "empty list", data: map[string]any{"first_name": []any{}, "last_name": "B", "email": "x@y.com"}},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildPayload(tc.data, mapping)
			require.ErrorIs(t, err, ErrMissingRequiredFields)
		})
	}
}

func TestBuildPayload_ContactTypeOnlyFromSubmission(t *testing.T) {
	mapping := ParseFieldMapping(DefaultFieldMappingLines)
	data := map[string]any{"first_name": "A", "last_name": "B", "email": "x@y.com"}

	payload, err := BuildPayload(data, mapping)
	require.NoError(t, err)
	assert.Equal(t, "Individual", payload["contact_type"])
	assert.NotContains(t, payload, "Individual")

	data["contact_type"] = "Ignored-Type"
	payload, err = BuildPayload(data, mapping)
	require.NoError(t, err)
	assert.Equal(t, "Ignored-Type", payload["Individual"])
	assert.Equal(t, "Individual", payload["contact_type"])
}

func TestBuildPayload_LaterPairWinsSharedTarget(t *testing.T) {
	mapping := ParseFieldMapping("fname = first_name\ngiven = first_name\nlast_name = last_name\nwork = email\nhome = email")
	data := map[string]any{
		"fname":     "Old",
		"given":     "New",
		"last_name": "B",
		"work":      "w@x.org",
		"home":      "h@x.org",
	}

	for i := 0; i < 50; i++ {
		payload, err := BuildPayload(data, mapping)
		require.NoError(t, err)
		assert.Equal(t, "New", payload["first_name"])
		assert.Equal(t, "h@x.org", payloadValue(payload, "email"))
	}
}

func TestBuildPayload_WhitespaceIsAValue(t *testing.T) {
	mapping := ParseFieldMapping(DefaultFieldMappingLines)
	data := map[string]any{"first_name": "  ", "last_name": " 0 ", "email": "x@y.com"}

	payload, err := BuildPayload(data, mapping)
	require.NoError(t, err)
	assert.Equal(t, "  ", payload["first_name"])
	assert.Equal(t, " 0 ", payload["last_name"])
}

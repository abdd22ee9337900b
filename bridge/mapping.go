package bridge

import (
	"fmt"
	"reflect"
	"strings"
)

// FieldPair maps one submitted form field to a CiviCRM field.
type FieldPair struct {
	Source string
	Target string
}

// FieldMapping holds pairs in the order their form field first appears.
type FieldMapping []FieldPair

// ParseFieldMapping reads "form_field = civicrm_field" lines. Blank lines and
// lines without exactly one "=" are dropped. A repeated form field keeps its
// first position and the target from its last line.
func ParseFieldMapping(text string) FieldMapping {
	mapping := FieldMapping{}
	index := make(map[string]int)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "=")
		if len(parts) != 2 {
			continue
		}
		source, target := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if i, ok := index[source]; ok {
			mapping[i].Target = target
			continue
		}
		index[source] = len(mapping)
		mapping = append(mapping, FieldPair{Source: source, Target: target})
	}
	return mapping
}

// BuildPayload projects posted data through the mapping into a contact
// record. Pairs apply in order, so a later pair overwrites an earlier one
// with the same target. It never performs I/O.
func BuildPayload(data map[string]any, mapping FieldMapping) (Payload, error) {
	payload := Payload{"contact_type": DefaultContactType}

	for _, pair := range mapping {
		target := pair.Target
		value, ok := data[pair.Source]
		if !ok || value == nil {
			continue
		}
		if target == "email" {
			payload["email"] = []map[string]any{{
				"email":            value,
				"is_primary":       1,
				"location_type_id": 1,
			}}
			continue
		}
		payload[target] = value
	}

	var missing []string
	for _, field := range []string{"first_name", "last_name", "email"} {
		if isBlank(payloadValue(payload, field)) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredFields, strings.Join(missing, ", "))
	}
	return payload, nil
}

// payloadValue unwraps the email list so the address itself is checked.
func payloadValue(p Payload, field string) any {
	v := p[field]
	if field != "email" {
		return v
	}
	if list, ok := v.([]map[string]any); ok && len(list) > 0 {
		return list[0]["email"]
	}
	return v
}

// isBlank follows the host platform's notion of an empty submitted value:
// nil, "", "0", false, zero numbers and empty collections. Whitespace is a
// value.
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || t == "0"
	case bool:
		return !t
	case []string:
		return len(t) == 0 || (len(t) == 1 && isBlank(t[0]))
	case []any:
		return len(t) == 0 || (len(t) == 1 && isBlank(t[0]))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return rv.IsZero()
}

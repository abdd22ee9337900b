package bridge

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// State represents what happened to a single form submission.
type State string

// String returns the string representation of the State.
func (s State) String() string { return string(s) }

const (
	// Skipped indicates the form has no enabled integration; nothing was sent.
	Skipped State = "SKIPPED"
	// Relayed indicates a record was created in CiviCRM.
	Relayed State = "RELAYED"
	// Failed indicates the relay was aborted; the error hook was notified.
	Failed State = "FAILED"
)

// NoticeType mirrors the dismissible admin notice levels.
type NoticeType string

const (
	NoticeSuccess NoticeType = "success"
	NoticeError   NoticeType = "error"
)

// Notice codes surfaced by the settings admin.
const (
	NoticeMissingCredentials = "missing_credentials"
	NoticeAPINotAvailable    = "api_not_available"
	NoticeConnectionSuccess  = "connection_success"
	NoticeConnectionFailed   = "connection_failed"
)

// Transient keys. The two legacy credential keys are only ever deleted.
const (
	TransientConnectionTest  = "cf7_civicrm_connection_test"
	TransientNotices         = "cf7_civicrm_notices"
	TransientAPICredentials  = "cf7_civicrm_api_credentials"
	TransientAPITest         = "cf7_civicrm_api_test"
	ConnectionTestTTL        = 45 * time.Second
	DefaultAction            = "Contact.create"
	DefaultGroup             = "Pending Applications"
	DefaultContactType       = "Individual"
	DefaultFieldMappingLines = "first_name = first_name\nlast_name = last_name\nemail = email\ncontact_type = Individual"
)

// FormID is the normalized identity of a contact form. Zero is never valid.
type FormID uint64

// ParseFormID normalizes an identifier arriving as text (route params, CLI
// flags, legacy posted values) into a FormID.
func ParseFormID(raw string) (FormID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormID, raw)
	}
	return FormID(v), nil
}

func (id FormID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Credentials hold the remote endpoint and both keys. They are passed
// explicitly to every remote call.
type Credentials struct {
	Endpoint string `json:"civicrm_url" bson:"civicrm_url" yaml:"civicrm_url"`
	APIKey   string `json:"api_key" bson:"api_key" yaml:"api_key"`
	SiteKey  string `json:"site_key" bson:"site_key" yaml:"site_key"`
}

// Complete reports whether all three values are present.
func (c Credentials) Complete() bool {
	return c.Endpoint != "" && c.APIKey != "" && c.SiteKey != ""
}

// Masked returns a copy safe to show in the admin UI.
func (c Credentials) Masked() Credentials {
	c.APIKey = mask(c.APIKey)
	c.SiteKey = mask(c.SiteKey)
	return c
}

// Unmask restores secrets the admin UI echoed back in masked form.
func (c Credentials) Unmask(current Credentials) Credentials {
	if current.APIKey != "" && c.APIKey == mask(current.APIKey) {
		c.APIKey = current.APIKey
	}
	if current.SiteKey != "" && c.SiteKey == mask(current.SiteKey) {
		c.SiteKey = current.SiteKey
	}
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return strings.Repeat("*", len(secret))
}

// FormSettings is the per-form integration configuration.
type FormSettings struct {
	FormID       FormID    `json:"form_id" bson:"form_id" yaml:"form_id"`
	Enabled      bool      `json:"enabled" bson:"enabled" yaml:"enabled"`
	Action       string    `json:"action" bson:"action" yaml:"action"`
	FieldMapping string    `json:"field_mapping" bson:"field_mapping" yaml:"field_mapping"`
	UpdatedAt    time.Time `json:"updated_at,omitzero" bson:"updated_at,omitzero" yaml:"updated_at,omitempty"`
}

// ActionOption is one selectable remote action in the form panel.
type ActionOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// SupportedActions lists the actions the panel offers.
var SupportedActions = []ActionOption{
	{Value: DefaultAction, Label: "Create Contact"},
}

// Action is a remote "Entity.operation" pair.
type Action struct {
	Entity    string
	Operation string
}

// ParseAction splits "Entity.operation". An empty value falls back to the
// default action.
func ParseAction(raw string) (Action, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultAction
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Action{}, fmt.Errorf("%w: %q", ErrInvalidAction, raw)
	}
	return Action{Entity: parts[0], Operation: parts[1]}, nil
}

func (a Action) String() string { return a.Entity + "." + a.Operation }

// IsContactCreate reports whether group enrollment follows this action.
func (a Action) IsContactCreate() bool {
	return a.Entity == "Contact" && a.Operation == "create"
}

// Payload is the record sent to the remote create call.
type Payload map[string]any

// Submission is the posted data of one successfully sent form.
type Submission struct {
	FormID     FormID         `json:"form_id"`
	Title      string         `json:"title,omitempty"`
	PostedData map[string]any `json:"posted_data"`
}

// Notice is an admin-facing message.
type Notice struct {
	Code    string     `json:"code"`
	Type    NoticeType `json:"type"`
	Message string     `json:"message"`
}

// OK reports whether the notice is a success.
func (n Notice) OK() bool { return n.Type == NoticeSuccess }

// ErrorEvent is dispatched to hooks whenever a relay fails.
type ErrorEvent struct {
	Message string `json:"message"`
	FormID  FormID `json:"form_id"`
	Title   string `json:"title,omitempty"`
}

// Outcome records the handling of one submission. It never carries the
// submitted values.
type Outcome struct {
	Id            string    `json:"id"`
	FormID        FormID    `json:"form_id"`
	State         State     `json:"state"`
	Action        string    `json:"action,omitempty"`
	ContactID     int64     `json:"contact_id,omitempty"`
	GroupEnrolled bool      `json:"group_enrolled,omitempty"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`

	// Result is the create response; kept out of serialized outcomes.
	Result *APIResult `json:"-"`
}

// APIResult is the decoded body of a successful remote call.
type APIResult struct {
	Entity string           `json:"entity,omitempty"`
	Action string           `json:"action,omitempty"`
	Count  int              `json:"count"`
	Values []map[string]any `json:"values"`
}

// First returns the first record, if any.
func (r *APIResult) First() (map[string]any, bool) {
	if r == nil || len(r.Values) == 0 {
		return nil, false
	}
	return r.Values[0], true
}

// ID extracts a numeric "id" from a result record.
func ID(record map[string]any) (int64, bool) {
	switch v := record["id"].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

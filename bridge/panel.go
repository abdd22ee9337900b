package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// RequiredContactFields must be mapped for a contact to be created.
var RequiredContactFields = []string{"first_name", "last_name", "email"}

// PanelView is what the per-form editor panel shows.
type PanelView struct {
	FormID         FormID         `json:"form_id"`
	Enabled        bool           `json:"enabled"`
	Action         string         `json:"action"`
	FieldMapping   string         `json:"field_mapping"`
	Actions        []ActionOption `json:"actions"`
	RequiredFields []string       `json:"required_fields"`
	Stored         bool           `json:"stored"`
}

// PanelInput is a submitted panel form.
type PanelInput struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	Action       string `json:"action" yaml:"action"`
	FieldMapping string `json:"field_mapping" yaml:"field_mapping"`
}

// Panel reads and writes per-form integration settings.
type Panel struct {
	store  SettingsStore
	now    Clock
	logger zerolog.Logger
}

func NewPanel(store SettingsStore, now Clock, logger zerolog.Logger) *Panel {
	if now == nil {
		now = time.Now
	}
	return &Panel{store: store, now: now, logger: logger}
}

// Load returns the stored settings, pre-filling the default mapping and
// action for forms that were never configured.
func (p *Panel) Load(ctx context.Context, id FormID) (PanelView, error) {
	view := PanelView{
		FormID:         id,
		Action:         DefaultAction,
		FieldMapping:   DefaultFieldMappingLines,
		Actions:        SupportedActions,
		RequiredFields: RequiredContactFields,
	}

	fs, err := p.store.GetForm(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return view, nil
	}
	if err != nil {
		return PanelView{}, err
	}

	view.Stored = true
	view.Enabled = fs.Enabled
	if fs.Action != "" {
		view.Action = fs.Action
	}
	view.FieldMapping = fs.FieldMapping
	return view, nil
}

// Save sanitizes and persists the panel. The mapping text is stored as
// entered; its lines are only interpreted at relay time.
func (p *Panel) Save(ctx context.Context, id FormID, in PanelInput) (FormSettings, error) {
	if id == 0 {
		return FormSettings{}, ErrInvalidFormID
	}

	action, err := ParseAction(SanitizeText(in.Action))
	if err != nil {
		return FormSettings{}, err
	}

	fs := FormSettings{
		FormID:       id,
		Enabled:      in.Enabled,
		Action:       action.String(),
		FieldMapping: SanitizeTextarea(in.FieldMapping),
		UpdatedAt:    p.now().UTC(),
	}
	if err := p.store.SaveForm(ctx, fs); err != nil {
		return FormSettings{}, err
	}
	p.logger.Info().
		Str("form_id", id.String()).
		Bool("enabled", fs.Enabled).
		Str("action", fs.Action).
		Msg("form CiviCRM settings saved")
	return fs, nil
}

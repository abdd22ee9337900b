package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RelayArgs wires a Relay.
type RelayArgs struct {
	Store    SettingsStore
	Caller   Caller
	Hooks    *Hooks
	Recorder *OutcomeRecorder
	Filter   *FieldFilter
	// Group is the name (or numeric id) new contacts are enrolled in.
	Group  string
	Now    Clock
	Logger zerolog.Logger
}

func checkAndDefaultRelayArgs(args RelayArgs) (RelayArgs, error) {
	if args.Store == nil {
		return args, fmt.Errorf("%w: relay requires a settings store", ErrMissingPrerequisite)
	}
	if args.Caller == nil {
		return args, fmt.Errorf("%w: relay requires a CiviCRM caller", ErrMissingPrerequisite)
	}
	if args.Group == "" {
		args.Group = DefaultGroup
	}
	if args.Now == nil {
		args.Now = time.Now
	}
	if args.Hooks == nil {
		args.Hooks = NewHooks()
	}
	return args, nil
}

// Relay turns sent form submissions into CiviCRM contacts. Every call runs
// to completion within the caller's request; nothing is queued or retried.
type Relay struct {
	store    SettingsStore
	caller   Caller
	hooks    *Hooks
	recorder *OutcomeRecorder
	filter   *FieldFilter
	group    string
	now      Clock
	logger   zerolog.Logger
}

func NewRelay(args RelayArgs) (*Relay, error) {
	args, err := checkAndDefaultRelayArgs(args)
	if err != nil {
		return nil, err
	}
	return &Relay{
		store:    args.Store,
		caller:   args.Caller,
		hooks:    args.Hooks,
		recorder: args.Recorder,
		filter:   args.Filter,
		group:    args.Group,
		now:      args.Now,
		logger:   args.Logger,
	}, nil
}

// Hooks exposes the registry so callers can subscribe to failures.
func (r *Relay) Hooks() *Hooks { return r.hooks }

// HandleMailSent runs the relay for one submission. Failures are logged and
// dispatched to the error hooks; they are reported in the outcome and never
// returned as an error.
func (r *Relay) HandleMailSent(ctx context.Context, formID FormID, sub *Submission) Outcome {
	outcome := Outcome{Id: uuid.NewString(), FormID: formID, State: Skipped, At: r.now()}
	logger := r.logger.With().Str("relay_id", outcome.Id).Str("form_id", formID.String()).Logger()

	settings, err := r.store.GetForm(ctx, formID)
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Debug().Msg("no CiviCRM settings for form, skipping")
		r.recorder.Record(ctx, outcome)
		return outcome
	case err != nil:
		return r.fail(ctx, logger, outcome, sub, fmt.Errorf("failed to load form settings: %w", err))
	case !settings.Enabled:
		logger.Debug().Msg("CiviCRM integration disabled for form, skipping")
		r.recorder.Record(ctx, outcome)
		return outcome
	}

	outcome.Action = settings.Action
	if outcome.Action == "" {
		outcome.Action = DefaultAction
	}

	result, enrolled, err := r.relay(ctx, logger, settings, sub)
	if err != nil {
		return r.fail(ctx, logger, outcome, sub, err)
	}

	outcome.State = Relayed
	outcome.GroupEnrolled = enrolled
	outcome.Result = result
	if first, ok := result.First(); ok {
		outcome.ContactID, _ = ID(first)
	}
	logger.Info().
		Int64("contact_id", outcome.ContactID).
		Bool("group_enrolled", enrolled).
		Msg("submission relayed to CiviCRM")
	r.recorder.Record(ctx, outcome)
	return outcome
}

// Relay runs the same pipeline as HandleMailSent but returns the failure to
// the caller. Error hooks still fire. An unknown or disabled form yields a
// nil result and a nil error.
func (r *Relay) Relay(ctx context.Context, formID FormID, sub *Submission) (*APIResult, error) {
	logger := r.logger.With().Str("form_id", formID.String()).Logger()

	settings, err := r.store.GetForm(ctx, formID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		err = fmt.Errorf("failed to load form settings: %w", err)
		r.dispatch(ctx, logger, formID, sub, err)
		return nil, err
	case !settings.Enabled:
		return nil, nil
	}

	result, _, err := r.relay(ctx, logger, settings, sub)
	if err != nil {
		r.dispatch(ctx, logger, formID, sub, err)
		return nil, err
	}
	return result, nil
}

func (r *Relay) relay(ctx context.Context, logger zerolog.Logger, settings FormSettings, sub *Submission) (*APIResult, bool, error) {
	if sub == nil || sub.PostedData == nil {
		return nil, false, ErrNoSubmissionData
	}

	mapping := ParseFieldMapping(settings.FieldMapping)
	payload, err := BuildPayload(r.filter.Clean(sub.PostedData), mapping)
	if err != nil {
		return nil, false, err
	}

	action, err := ParseAction(settings.Action)
	if err != nil {
		return nil, false, err
	}

	creds, err := r.store.GetCredentials(ctx)
	if errors.Is(err, ErrNotFound) || (err == nil && !creds.Complete()) {
		return nil, false, fmt.Errorf("%w: %w", ErrCreateFailed, ErrMissingCredentials)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load CiviCRM settings: %w", err)
	}

	result, err := r.caller.Call(ctx, creds, action.Entity, action.Operation, map[string]any{
		"values":           payload,
		"checkPermissions": false,
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	if action.Operation != "create" {
		return result, false, nil
	}
	first, ok := result.First()
	if !ok {
		return nil, false, fmt.Errorf("%w: no record returned by %s", ErrCreateFailed, action)
	}
	if !action.IsContactCreate() {
		return result, false, nil
	}

	contactID, ok := ID(first)
	if !ok {
		logger.Warn().Msg("created contact has no id, skipping group enrollment")
		return result, false, nil
	}
	return result, r.enroll(ctx, logger, creds, contactID), nil
}

// enroll adds the contact to the configured group. Failure is only logged.
func (r *Relay) enroll(ctx context.Context, logger zerolog.Logger, creds Credentials, contactID int64) bool {
	values := map[string]any{"contact_id": contactID, "status": "Added"}
	if id, err := strconv.ParseInt(r.group, 10, 64); err == nil {
		values["group_id"] = id
	} else {
		values["group_id:name"] = r.group
	}

	_, err := r.caller.Call(ctx, creds, "GroupContact", "create", map[string]any{
		"values":           values,
		"checkPermissions": false,
	})
	if err != nil {
		logger.Warn().Err(err).
			Int64("contact_id", contactID).
			Str("group", r.group).
			Msgf("Failed to add contact to %s group", r.group)
		return false
	}
	return true
}

func (r *Relay) fail(ctx context.Context, logger zerolog.Logger, outcome Outcome, sub *Submission, err error) Outcome {
	outcome.State = Failed
	outcome.Error = err.Error()
	r.dispatch(ctx, logger, outcome.FormID, sub, err)
	r.recorder.Record(ctx, outcome)
	return outcome
}

func (r *Relay) dispatch(ctx context.Context, logger zerolog.Logger, formID FormID, sub *Submission, err error) {
	logger.Error().Err(err).Msg("CF7 CiviCRM Integration Error")

	event := ErrorEvent{Message: err.Error(), FormID: formID}
	if sub != nil {
		event.Title = sub.Title
	}
	r.hooks.DispatchError(ctx, logger, event)
}

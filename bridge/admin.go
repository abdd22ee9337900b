package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const noticeTTL = 30 * time.Second

// AdminArgs wires an Admin.
type AdminArgs struct {
	Store       SettingsStore
	Transients  TransientCache
	Caller      Caller
	TestTimeout time.Duration
	Logger      zerolog.Logger
}

func checkAndDefaultAdminArgs(args AdminArgs) (AdminArgs, error) {
	if args.Store == nil {
		return args, fmt.Errorf("%w: admin requires a settings store", ErrMissingPrerequisite)
	}
	if args.Caller == nil {
		return args, fmt.Errorf("%w: admin requires a CiviCRM caller", ErrMissingPrerequisite)
	}
	if args.Transients == nil {
		args.Transients = NewMemoryTransients(nil)
	}
	if args.TestTimeout <= 0 {
		args.TestTimeout = 10 * time.Second
	}
	return args, nil
}

// Admin manages the global CiviCRM credentials and the connection test.
type Admin struct {
	store       SettingsStore
	transients  TransientCache
	caller      Caller
	testTimeout time.Duration
	logger      zerolog.Logger
}

func NewAdmin(args AdminArgs) (*Admin, error) {
	args, err := checkAndDefaultAdminArgs(args)
	if err != nil {
		return nil, err
	}
	return &Admin{
		store:       args.Store,
		transients:  args.Transients,
		caller:      args.Caller,
		testTimeout: args.TestTimeout,
		logger:      args.Logger,
	}, nil
}

// Settings returns the stored credentials, empty when none were saved.
func (a *Admin) Settings(ctx context.Context) (Credentials, error) {
	creds, err := a.store.GetCredentials(ctx)
	if errors.Is(err, ErrNotFound) {
		return Credentials{}, nil
	}
	return creds, err
}

// Save sanitizes and stores the credentials. Masked secrets echoed back by
// the UI keep their stored value. With test set, the connection is checked
// first and a failed check leaves the stored settings untouched.
func (a *Admin) Save(ctx context.Context, input Credentials, test bool) ([]Notice, error) {
	current, err := a.Settings(ctx)
	if err != nil {
		return nil, err
	}

	clean, err := SanitizeCredentials(input.Unmask(current))
	if err != nil {
		return nil, err
	}

	var notices []Notice
	if test {
		notice := a.TestConnection(ctx, clean)
		notices = append(notices, notice)
		if !notice.OK() {
			a.logger.Warn().Str("code", notice.Code).Msg("settings not saved, connection test failed")
			return notices, nil
		}
	}

	if err := a.store.SaveCredentials(ctx, clean); err != nil {
		return notices, err
	}
	a.logger.Info().Str("civicrm_url", clean.Endpoint).Msg("CiviCRM settings saved")
	return notices, nil
}

// TestConnection performs a single read call with the given credentials and
// reports the outcome as a notice. The result is cached briefly.
func (a *Admin) TestConnection(ctx context.Context, creds Credentials) Notice {
	notice := a.testConnection(ctx, creds)

	if err := a.transients.SetTransient(ctx, TransientConnectionTest, notice, ConnectionTestTTL); err != nil {
		a.logger.Warn().Err(err).Msg("failed to cache connection test result")
	}
	a.addNotice(ctx, notice)
	return notice
}

// TestStored tests the currently stored credentials.
func (a *Admin) TestStored(ctx context.Context) (Notice, error) {
	creds, err := a.Settings(ctx)
	if err != nil {
		return Notice{}, err
	}
	return a.TestConnection(ctx, creds), nil
}

func (a *Admin) testConnection(ctx context.Context, creds Credentials) Notice {
	if !creds.Complete() {
		return Notice{
			Code:    NoticeMissingCredentials,
			Type:    NoticeError,
			Message: "Please provide all required CiviCRM credentials.",
		}
	}

	tctx, cancel := context.WithTimeout(ctx, a.testTimeout)
	defer cancel()

	_, err := a.caller.Call(tctx, creds, "Contact", "get", map[string]any{
		"limit":            1,
		"checkPermissions": false,
	})
	switch {
	case err == nil:
		a.logger.Info().Str("civicrm_url", creds.Endpoint).Msg("CiviCRM connection test succeeded")
		return Notice{Code: NoticeConnectionSuccess, Type: NoticeSuccess, Message: "Successfully connected to CiviCRM."}
	case errors.Is(err, ErrAPINotAvailable):
		a.logger.Warn().Err(err).Msg("CiviCRM connection test failed")
		return Notice{Code: NoticeAPINotAvailable, Type: NoticeError, Message: "CiviCRM API v4 is not available."}
	default:
		a.logger.Warn().Err(err).Msg("CiviCRM connection test failed")
		return Notice{
			Code:    NoticeConnectionFailed,
			Type:    NoticeError,
			Message: "Failed to connect to CiviCRM: " + err.Error(),
		}
	}
}

// LastTest returns the cached connection test result, if still fresh.
func (a *Admin) LastTest(ctx context.Context) (*Notice, error) {
	var n Notice
	ok, err := a.transients.GetTransient(ctx, TransientConnectionTest, &n)
	if err != nil || !ok {
		return nil, err
	}
	return &n, nil
}

// Notices returns and clears the pending admin notices.
func (a *Admin) Notices(ctx context.Context) ([]Notice, error) {
	var notices []Notice
	if _, err := a.transients.GetTransient(ctx, TransientNotices, &notices); err != nil {
		return nil, err
	}
	if err := a.transients.DeleteTransient(ctx, TransientNotices); err != nil {
		return notices, err
	}
	return notices, nil
}

// Clear deletes the credentials and every cached test result or notice.
func (a *Admin) Clear(ctx context.Context) error {
	if err := a.store.DeleteCredentials(ctx); err != nil {
		return fmt.Errorf("failed to delete CiviCRM settings: %w", err)
	}
	return a.transients.DeleteTransient(ctx, allTransients...)
}

func (a *Admin) addNotice(ctx context.Context, n Notice) {
	var notices []Notice
	if _, err := a.transients.GetTransient(ctx, TransientNotices, &notices); err != nil {
		a.logger.Warn().Err(err).Msg("failed to read pending notices")
	}
	notices = append(notices, n)
	if err := a.transients.SetTransient(ctx, TransientNotices, notices, noticeTTL); err != nil {
		a.logger.Warn().Err(err).Msg("failed to store notice")
	}
}

var allTransients = []string{
	TransientConnectionTest,
	TransientNotices,
	TransientAPICredentials,
	TransientAPITest,
}

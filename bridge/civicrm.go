package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Caller issues a single CiviCRM API v4 call. Credentials travel with every
// call; implementations never keep them between calls.
type Caller interface {
	Call(ctx context.Context, creds Credentials, entity, operation string, params map[string]any) (*APIResult, error)
}

// HTTPCallerArgs configures an HTTPCaller.
type HTTPCallerArgs struct {
	Timeout     time.Duration
	MaxBodySize int64
	Client      *http.Client
	Logger      zerolog.Logger
}

func checkAndDefaultHTTPCallerArgs(args HTTPCallerArgs) HTTPCallerArgs {
	if args.Timeout <= 0 {
		args.Timeout = 30 * time.Second
	}
	if args.MaxBodySize <= 0 {
		args.MaxBodySize = 4 << 20
	}
	if args.Client == nil {
		args.Client = &http.Client{Timeout: args.Timeout}
	}
	return args
}

// HTTPCaller talks to the CiviCRM REST endpoint for API v4
// ({endpoint}/{Entity}/{action}).
type HTTPCaller struct {
	client      *http.Client
	maxBodySize int64
	logger      zerolog.Logger
}

func NewHTTPCaller(args HTTPCallerArgs) *HTTPCaller {
	args = checkAndDefaultHTTPCallerArgs(args)
	return &HTTPCaller{
		client:      args.Client,
		maxBodySize: args.MaxBodySize,
		logger:      args.Logger,
	}
}

func (h *HTTPCaller) Call(
	ctx context.Context,
	creds Credentials,
	entity, operation string,
	params map[string]any,
) (*APIResult, error) {
	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params for %s.%s: %w", entity, operation, err)
	}
	form := url.Values{"params": {string(encoded)}}
	endpoint := strings.TrimRight(creds.Endpoint, "/") + "/" + url.PathEscape(entity) + "/" + url.PathEscape(operation)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Civi-Auth", "Bearer "+creds.APIKey)
	req.Header.Set("X-Civi-Key", creds.SiteKey)

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Debug().Err(err).Str("entity", entity).Str("operation", operation).Msg("civicrm request failed")
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	h.logger.Debug().
		Str("entity", entity).
		Str("operation", operation).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("civicrm call completed")

	return decodeAPIResponse(resp.StatusCode, body)
}

func decodeAPIResponse(status int, body []byte) (*APIResult, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		switch {
		case status == http.StatusNotFound:
			return nil, ErrAPINotAvailable
		case status >= 300:
			return nil, &APIError{Status: status, Message: fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))}
		}
		return nil, ErrMalformedResponse
	}

	if apiErr := apiErrorFrom(status, doc); apiErr != nil {
		return nil, apiErr
	}

	result := &APIResult{}
	decodeField(doc, "entity", &result.Entity)
	decodeField(doc, "action", &result.Action)
	decodeField(doc, "count", &result.Count)

	if raw, ok := doc["values"]; ok && len(raw) > 0 && string(raw) != "null" {
		values, err := decodeValues(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: values: %v", ErrMalformedResponse, err)
		}
		result.Values = values
	}
	if result.Count == 0 {
		result.Count = len(result.Values)
	}
	return result, nil
}

func apiErrorFrom(status int, doc map[string]json.RawMessage) *APIError {
	var message string
	decodeField(doc, "error_message", &message)

	var isError any
	decodeField(doc, "is_error", &isError)
	flagged := isError != nil && fmt.Sprint(isError) != "0" && fmt.Sprint(isError) != "false"

	if message == "" && !flagged && status < 300 {
		return nil
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
	}

	var code any
	decodeField(doc, "error_code", &code)
	apiErr := &APIError{Status: status, Message: message}
	if code != nil {
		apiErr.Code = fmt.Sprint(code)
	}
	return apiErr
}

// decodeValues accepts both the list form and the id-keyed object form.
func decodeValues(raw json.RawMessage) ([]map[string]any, error) {
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var keyed map[string]map[string]any
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessRecordKey(keys[i], keys[j]) })

	out := make([]map[string]any, 0, len(keyed))
	for _, k := range keys {
		out = append(out, keyed[k])
	}
	return out, nil
}

// lessRecordKey orders numeric ids numerically and anything else after them.
func lessRecordKey(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	}
	return a < b
}

func decodeField(doc map[string]json.RawMessage, key string, dst any) {
	if raw, ok := doc[key]; ok {
		_ = json.Unmarshal(raw, dst)
	}
}

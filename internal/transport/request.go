package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/agentstation/orgsync/pkg/errors"
)

// readBody reads and closes the response body.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close() //nolint:errcheck
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapIO("read", "response body", err)
	}
	return raw, nil
}

// decodeEnvelope decodes the platform envelope field of raw into target.
func (c *Client) decodeEnvelope(raw []byte, path string, target any) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errors.WrapParse("json", path, err)
	}
	payload, ok := envelope[c.platform.Envelope]
	if !ok {
		return errors.NewParseError("json", path, "response has no "+c.platform.Envelope+" field", nil)
	}

	if c.platform.NormalizeKeys != nil {
		normalized, err := normalizeJSON(payload, c.platform.NormalizeKeys)
		if err != nil {
			return errors.WrapParse("json", path, err)
		}
		payload = normalized
	}

	if err := json.Unmarshal(payload, target); err != nil {
		return errors.WrapParse("json", path, err)
	}
	return nil
}

// normalizeJSON rewrites the keys of every object in payload, recursively.
func normalizeJSON(payload json.RawMessage, fn func(map[string]any) map[string]any) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return json.Marshal(walkKeys(v, fn))
}

func walkKeys(v any, fn func(map[string]any) map[string]any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = walkKeys(child, fn)
		}
		return fn(t)
	case []any:
		for i, child := range t {
			t[i] = walkKeys(child, fn)
		}
		return t
	default:
		return v
	}
}

// newAPIError builds an APIError from a non-success answer. Server errors
// carry plain text; anything else is searched for a message field and
// falls back to the raw body.
func newAPIError(system string, status int, endpoint string, raw []byte, fields []string) *errors.APIError {
	body := strings.TrimSpace(string(raw))
	apiErr := &errors.APIError{
		System:     system,
		StatusCode: status,
		Body:       body,
		Endpoint:   endpoint,
		Message:    body,
	}
	if body == "" {
		apiErr.Message = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		return apiErr
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return apiErr
	}
	for _, field := range fields {
		if msg, ok := doc[field].(string); ok && msg != "" {
			apiErr.Message = msg
			return apiErr
		}
	}
	return apiErr
}

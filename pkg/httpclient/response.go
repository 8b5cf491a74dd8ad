package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    *http.Request

	// Endpoint is the endpoint as passed to the client, before resolution
	// against the base URL.
	Endpoint string

	// Binary marks a download. Its body is file content, not API data, and
	// response middleware should not read it as JSON.
	Binary bool
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Data decodes the body into a generic value with numbers kept as
// json.Number. ok is false for empty or non-JSON bodies.
func (r *Response) Data() (any, bool) {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// Object returns the body as a top-level JSON object.
func (r *Response) Object() (map[string]any, bool) {
	v, ok := r.Data()
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

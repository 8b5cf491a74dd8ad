package httpclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/servkit/restsync/pkg/util"
)

// ErrCacheFresh is returned by Get when the cache ledger holds a fresh entry
// for the endpoint. No request was sent and there is nothing new to apply.
var ErrCacheFresh = errors.New("cached response is still fresh")

// TransportError is a failure with no HTTP response, e.g. a refused
// connection or DNS error. Response-error middleware does not run for it.
type TransportError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Response *Response
}

func (e *StatusError) Error() string {
	method, endpoint := "", e.Response.Endpoint
	if e.Response.Request != nil {
		method = e.Response.Request.Method
	}
	msg := fmt.Sprintf("%s %s: status %d", method, endpoint, e.Response.StatusCode)
	if len(e.Response.Body) > 0 {
		msg += ": " + util.TruncateBody(string(e.Response.Body), 256)
	}
	return msg
}

// StatusCode returns the HTTP status code of the failed response.
func (e *StatusError) StatusCode() int {
	return e.Response.StatusCode
}

// IsNotFound reports whether err is a StatusError carrying 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode() == http.StatusNotFound
}

// IsTransport reports whether err failed before any response arrived.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

package directory

import (
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// StatusError is returned for responses that retrying cannot fix.
type StatusError struct {
	Code   int
	Method string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
}

// StatusCode returns the HTTP status the server answered with.
func (e *StatusError) StatusCode() int { return e.Code }

// permanentStatus lists response codes that end a request without retry.
var permanentStatus = map[int]bool{
	http.StatusBadRequest:       true,
	http.StatusUnauthorized:     true,
	http.StatusForbidden:        true,
	http.StatusNotFound:         true,
	http.StatusMethodNotAllowed: true,
	http.StatusGone:             true,
}

// limitedClient waits on a token bucket before every request and turns
// permanent failure statuses into *StatusError.
type limitedClient struct {
	http    *http.Client
	limiter *rate.Limiter
}

func newLimitedClient(c *http.Client, perSecond float64, burst int) *limitedClient {
	if burst < 1 {
		burst = 1
	}
	return &limitedClient{
		http:    c,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Do implements webdav.HTTPClient.
func (c *limitedClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if permanentStatus[resp.StatusCode] {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Method: req.Method, URL: req.URL.Redacted()}
	}
	return resp, nil
}

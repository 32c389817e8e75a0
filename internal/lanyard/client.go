// Package lanyard is a client for the Lanyard presence API
// (GET /v1/users/{id}).
//
// Every call makes exactly one attempt. Failures come back as typed errors so
// callers can tell a missing user ([ErrNotFound]) from another non-success
// status ([*StatusError]), a bad body ([ErrMalformedPayload]), and a request
// that never completed ([*NetworkError]).
package lanyard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultBaseURL is the public Lanyard API.
const DefaultBaseURL = "https://api.lanyard.rest"

// maxResponseBytes caps the body read; presence payloads are a few KiB.
const maxResponseBytes = 1 << 20

// ///////////////////////////////////////////////
// Errors
// ///////////////////////////////////////////////

// ErrNotFound is returned when Lanyard answers 404 (the user is not monitored).
var ErrNotFound = errors.New("lanyard: user not found")

// ErrMalformedPayload is returned when a 2xx body fails the structural check:
// it is not JSON, success is not true, or the data envelope is missing.
var ErrMalformedPayload = errors.New("lanyard: malformed payload")

// StatusError reports a non-success, non-404 HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lanyard: unexpected status %d", e.Code)
}

// NetworkError wraps a transport-level failure: timeout, cancellation, DNS,
// refused connection, or a truncated body.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "lanyard: request failed: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Client fetches presence snapshots.
type Client struct {
	base      *url.URL
	http      *retryablehttp.Client
	userAgent string
}

// NewClient builds a Client for baseURL (empty uses [DefaultBaseURL]).
// Request deadlines come from the caller's context.
func NewClient(baseURL, userAgent string) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.Logger = nil
	// Hand back the response for every status; classification happens here,
	// not in retryablehttp's "giving up" error.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if userAgent == "" {
		userAgent = "badgecord"
	}
	return &Client{base: base, http: rc, userAgent: userAgent}, nil
}

// UserURL returns the endpoint for a user id.
func (c *Client) UserURL(id string) string {
	// Path holds the decoded form; RawPath keeps a "/" inside id escaped.
	rel := &url.URL{Path: "/v1/users/" + id, RawPath: "/v1/users/" + url.PathEscape(id)}
	return c.base.ResolveReference(rel).String()
}

// FetchUser performs one GET for the user's presence.
func (c *Client) FetchUser(ctx context.Context, id string) (*Presence, error) {
	if c == nil {
		return nil, fmt.Errorf("lanyard: client is nil")
	}
	endpoint := c.UserURL(id)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp == nil {
		return nil, &NetworkError{Err: errors.New("no response")}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read body: %w", err)}
	}
	return decode(body)
}

// decode applies the structural check to a 2xx body.
func decode(body []byte) (*Presence, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: success flag not set", ErrMalformedPayload)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: missing data envelope", ErrMalformedPayload)
	}
	return env.Data, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

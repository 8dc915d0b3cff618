// Package client talks to an agentloop HTTP server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/wire"
)

// DefaultURL is the address the server listens on by default.
const DefaultURL = "http://localhost:8001"

// Client calls the agent endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Streaming calls must not
// use a client with an overall timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-200 answer of the server.
type StatusError struct {
	Code int
	Body wire.ErrorResponse
}

func (e *StatusError) Error() string {
	if e.Body.Error != "" {
		return fmt.Sprintf("server returned %d: %s", e.Code, e.Body.Error)
	}
	return fmt.Sprintf("server returned %d", e.Code)
}

// Unwrap maps the reported error kind back onto the domain taxonomy, so
// errors.Is(err, domain.ErrSessionBusy) works across the wire.
func (e *StatusError) Unwrap() error {
	return kindError(e.Body.Kind)
}

var kinds = map[string]error{
	"session_busy":       domain.ErrSessionBusy,
	"timeout":            domain.ErrTimeout,
	"tool_not_found":     domain.ErrToolNotFound,
	"tool_execution":     domain.ErrToolExecution,
	"model_unavailable":  domain.ErrModelUnavailable,
	"malformed_response": domain.ErrMalformedResponse,
	"loop_limit":         domain.ErrLoopLimitExceeded,
	"invalid_state":      domain.ErrInvalidState,
	"abandoned":          domain.ErrAbandoned,
	"canceled":           context.Canceled,
}

func kindError(kind string) error {
	return kinds[kind]
}

// InvokeStream runs a query and yields the stream payloads until [DONE].
// Failures are yielded as a final payload of type "error": a non-200 status,
// a transport error, or an undecodable frame (after which reading goes on).
func (c *Client) InvokeStream(ctx context.Context, sessionID, query string) iter.Seq[wire.Payload] {
	return func(yield func(wire.Payload) bool) {
		fail := func(kind, format string, args ...any) {
			yield(wire.Payload{
				Type:      wire.TypeError,
				Content:   fmt.Sprintf(format, args...),
				SessionID: sessionID,
				Whole:     true,
				Kind:      kind,
			})
		}

		stream := true
		resp, err := c.post(ctx, sessionID, query, &stream, "text/event-stream")
		if err != nil {
			fail("", "request failed: %v", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			serr := decodeStatus(resp)
			fail(serr.Body.Kind, "request failed with status %d: %s", resp.StatusCode, serr.Body.Error)
			return
		}

		r := wire.NewReader(resp.Body)
		for {
			p, err := r.Next()
			switch {
			case errors.Is(err, io.EOF):
				return
			case errors.Is(err, wire.ErrBadFrame):
				if !yield(wire.Payload{Type: wire.TypeError, Content: err.Error(), SessionID: sessionID, Whole: true}) {
					return
				}
				continue
			case err != nil:
				fail("", "stream interrupted: %v", err)
				return
			}
			if !yield(p) {
				return
			}
		}
	}
}

// Invoke runs a query without streaming.
func (c *Client) Invoke(ctx context.Context, sessionID, query string) (wire.InvokeResponse, error) {
	stream := false
	resp, err := c.post(ctx, sessionID, query, &stream, "application/json")
	if err != nil {
		return wire.InvokeResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return wire.InvokeResponse{}, decodeStatus(resp)
	}
	var out wire.InvokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return wire.InvokeResponse{}, fmt.Errorf("decode invoke response: %w", err)
	}
	return out, nil
}

// History fetches the committed history of a session.
func (c *Client) History(ctx context.Context, sessionID string) (wire.HistoryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/agent/history/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return wire.HistoryResponse{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wire.HistoryResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return wire.HistoryResponse{}, decodeStatus(resp)
	}
	var out wire.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return wire.HistoryResponse{}, fmt.Errorf("decode history: %w", err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, sessionID, query string, stream *bool, accept string) (*http.Response, error) {
	body, err := json.Marshal(wire.InvokeRequest{SessionID: sessionID, Query: query, Stream: stream})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agent/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	return c.http.Do(req)
}

func decodeStatus(resp *http.Response) *StatusError {
	serr := &StatusError{Code: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(data, &serr.Body); err != nil {
		serr.Body.Error = strings.TrimSpace(string(data))
	}
	return serr
}

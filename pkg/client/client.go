// Package client is the typed Go client of the canteen menu REST API,
// plus the customer ordering flow and the admin correction tool built on
// top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"canteen-menu-service/pkg/response"
)

const fallbackMessage = "Something went wrong. Please try again."

// ErrVersionConflict matches an APIError for a save based on a stale copy
// of the booking.
var ErrVersionConflict = errors.New("booking was changed by someone else")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == ErrVersionConflict && e.Code == "VERSION_CONFLICT"
}

// Message returns the text to show a user for err: the backend message
// when there is one, the transport error for network failures, otherwise
// a generic fallback.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallbackMessage
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Error()
	}
	return fallbackMessage
}

// Session is the signed-in caller. It is created once by Login and handed
// to New.
type Session struct {
	UserID    int64     `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

func (s Session) IsAdmin() bool {
	return strings.EqualFold(s.Role, "ADMIN")
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

type Client struct {
	baseURL string
	http    *http.Client
	session Session
}

func New(baseURL string, session Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		session: session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() Session {
	return c.session
}

// Login exchanges credentials for a session.
func Login(ctx context.Context, baseURL, email, password string, opts ...Option) (Session, error) {
	anon := New(baseURL, Session{}, opts...)
	var out struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
		User      Session   `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if _, err := anon.do(ctx, http.MethodPost, "/auth/login", body, &out, nil); err != nil {
		return Session{}, err
	}
	session := out.User
	session.Token = out.Token
	session.ExpiresAt = out.ExpiresAt
	return session, nil
}

// do sends one request and decodes the envelope's data into out. Requests
// are never retried.
func (c *Client) do(ctx context.Context, method, path string, body any, out any, header http.Header) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}

	var env response.Envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	if resp.StatusCode >= 300 || (len(raw) > 0 && !env.Success) {
		code := env.Error
		if code == "" {
			code = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Code: code, Message: env.Message, Details: env.Details}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.Header, nil
}

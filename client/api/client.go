// Package api is the REST client for the chat backend.
package api

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
	"sync"
	"time"

	"enlechat/models"
)

// DefaultErrorMessage is shown when the backend error payload has no text.
const DefaultErrorMessage = "An error occurred"

// Error is a backend-reported failure. Message is the payload's "error"
// field, untouched.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// Message returns the text a view should show for err: the backend message
// when err carries one, fallback otherwise.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// Client talks to the backend. The bearer token, once set, is attached to
// every request.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) ClearToken() { c.SetToken("") }

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSettings(ctx context.Context, s models.Settings) (*models.Settings, error) {
	var out models.Settings
	if err := c.do(ctx, http.MethodPut, "/api/users/settings", s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Contacts(ctx context.Context) (*models.ContactsPayload, error) {
	var out models.ContactsPayload
	if err := c.do(ctx, http.MethodGet, "/api/users/contacts", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Requests(ctx context.Context) ([]models.ConnectionRequest, error) {
	var out []models.ConnectionRequest
	if err := c.do(ctx, http.MethodGet, "/api/users/requests", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendRequest(ctx context.Context, enleID string) error {
	return c.do(ctx, http.MethodPost, "/api/users/requests", models.SendRequestBody{EnleID: enleID}, nil)
}

func (c *Client) RespondRequest(ctx context.Context, senderID string, accept bool) error {
	return c.do(ctx, http.MethodPut, "/api/users/requests/"+url.PathEscape(senderID),
		models.RespondRequestBody{Accept: accept}, nil)
}

func (c *Client) Messages(ctx context.Context, contactID string) ([]models.Message, error) {
	var out []models.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(contactID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, msg models.OutgoingMessage) (*models.Message, error) {
	var out models.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", msg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkRead(ctx context.Context, senderID string) error {
	return c.do(ctx, http.MethodPut, "/api/messages/read/"+url.PathEscape(senderID), nil, nil)
}

func (c *Client) SendOTP(ctx context.Context, req models.OTPRequest) (*models.OTPResponse, error) {
	var out models.OTPResponse
	if err := c.do(ctx, http.MethodPost, "/api/send-otp", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var payload models.ErrorResponse
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		return &Error{Status: status, Message: DefaultErrorMessage}
	}
	return &Error{Status: status, Message: payload.Error}
}

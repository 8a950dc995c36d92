// Package client provides a Go client for the keygate API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var ErrAlreadyRegistered = errors.New("already registered")

// Client is a keygate API client. APIKey is sent as a bearer credential and
// AdminSecret as X-Admin-Secret when set.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	APIKey      string
	AdminSecret string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// IsRateLimited reports whether err is a 429 from the server.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}

type Issued struct {
	APIKey    string    `json:"api_key"`
	KeyPrefix string    `json:"key_prefix"`
	IssuedAt  time.Time `json:"issued_at"`
}

type Nonce struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Verification is the outcome of a verify call. A rejected proof is not an
// error: Verified is false and Reason says why.
type Verification struct {
	Verified bool   `json:"verified"`
	Via      string `json:"via"`
	Handle   string `json:"handle"`
	Reason   string `json:"error"`
}

type Account struct {
	AccountID   int64      `json:"account_id"`
	Email       string     `json:"email"`
	KeyPrefix   string     `json:"key_prefix"`
	KeyIssuedAt *time.Time `json:"key_issued_at"`
	Verified    bool       `json:"verified"`
	VerifiedVia string     `json:"verified_via"`
	Handle      string     `json:"handle"`
	VerifiedAt  *time.Time `json:"verified_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Stats struct {
	Accounts         int64 `json:"accounts"`
	VerifiedAccounts int64 `json:"verified_accounts"`
	IssuedKeys       int64 `json:"issued_keys"`
	PromoCodes       int   `json:"promo_codes"`
}

// Reissue asks for a fresh API key for email. On success the client adopts
// the new key.
func (c *Client) Reissue(ctx context.Context, email string) (*Issued, error) {
	var out Issued
	if err := c.do(ctx, http.MethodPost, "/api/keys/reissue", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	c.APIKey = out.APIKey
	return &out, nil
}

func (c *Client) RequestNonce(ctx context.Context, email string) (*Nonce, error) {
	var out Nonce
	if err := c.do(ctx, http.MethodPost, "/api/verify/nonce", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyPromo(ctx context.Context, email, code string) (*Verification, error) {
	return c.verify(ctx, "/api/verify/promo", map[string]string{"email": email, "code": code})
}

func (c *Client) VerifyTweet(ctx context.Context, email, tweetURL string) (*Verification, error) {
	return c.verify(ctx, "/api/verify/tweet", map[string]string{"email": email, "tweet_url": tweetURL})
}

func (c *Client) verify(ctx context.Context, path string, body any) (*Verification, error) {
	var out Verification
	err := c.do(ctx, http.MethodPost, path, body, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden {
		return &Verification{Verified: false, Reason: apiErr.Message}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Me describes the account bound to the client's API key.
func (c *Client) Me(ctx context.Context) (*Account, error) {
	if c.APIKey == "" {
		return nil, errors.New("no api key configured")
	}
	var out Account
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAccount provisions an account. Requires AdminSecret.
func (c *Client) CreateAccount(ctx context.Context, email string) (int64, error) {
	var out struct {
		AccountID int64 `json:"account_id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/admin/accounts", map[string]string{"email": email}, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return 0, ErrAlreadyRegistered
	}
	if err != nil {
		return 0, err
	}
	return out.AccountID, nil
}

// DeleteAccount removes an account and its key. Requires AdminSecret.
func (c *Client) DeleteAccount(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/admin/delete-account", map[string]string{"email": email}, nil)
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.AdminSecret != "" {
		req.Header.Set("X-Admin-Secret", c.AdminSecret)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response, body []byte) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Code = payload.Code
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}

// Package panel is the HTTP client for the VPN control plane. It owns
// authentication, token refresh and the translation between wire payloads
// and the structured account types the rest of the system consumes.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// Client defines the control-plane operations the provisioning and sweep
// flows depend on.
type Client interface {
	// CreateAccount provisions a remote account and returns its descriptor.
	CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error)

	// GetAccount fetches an account. A missing account returns (nil, nil).
	GetAccount(ctx context.Context, username string) (*Account, error)

	// DeleteAccount removes an account. Deleting a missing account succeeds.
	DeleteAccount(ctx context.Context, username string) error

	// GetUsage fetches the traffic consumed by an account.
	GetUsage(ctx context.Context, username string) (*Usage, error)

	// ListAccounts fetches every account the control plane knows about.
	ListAccounts(ctx context.Context) ([]*Account, error)
}

// HTTPClient talks to a Marzban-compatible panel over HTTP.
type HTTPClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     logger.Interface

	mu    sync.Mutex
	token string
}

// NewHTTPClient builds a panel client from configuration.
func NewHTTPClient(cfg config.PanelConfig, log logger.Interface) (*HTTPClient, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("panel host cannot be empty")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:  strings.TrimSuffix(cfg.Host, "/"),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.Named("panel"),
	}, nil
}

// authenticate obtains a fresh bearer token. The panel expects form-encoded
// credentials.
func (c *HTTPClient) authenticate(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/admin/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.NewUnavailableError("control plane unreachable", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Errorw("panel authentication failed", "status", resp.StatusCode, "body", string(body))
		return "", errors.NewUnauthorizedError("control plane rejected credentials")
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.NewUnauthorizedError("control plane returned an empty token")
	}
	return tok.AccessToken, nil
}

// currentToken returns the cached token, authenticating when none exists.
func (c *HTTPClient) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	token, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	return token, nil
}

// invalidateToken drops the cached token if it is still the one that failed.
func (c *HTTPClient) invalidateToken(stale string) {
	c.mu.Lock()
	if c.token == stale {
		c.token = ""
	}
	c.mu.Unlock()
}

// do performs an authenticated request. On 401 the cached token is
// invalidated, re-authentication happens once, and the request is retried
// exactly once.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	resp, token, err := c.doOnce(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	c.logger.Warnw("panel token rejected, re-authenticating", "method", method, "path", path)
	c.invalidateToken(token)

	resp, _, err = c.doOnce(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, errors.NewUnauthorizedError("control plane rejected fresh token")
	}
	return resp, nil
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, body any) (*http.Response, string, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, "", err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", errors.NewUnavailableError("control plane unreachable", err.Error())
	}
	return resp, token, nil
}

// CreateAccount provisions a remote account.
func (c *HTTPClient) CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error) {
	if params.Username == "" {
		return nil, fmt.Errorf("account username cannot be empty")
	}

	reqBody := createUserRequest{
		Username: params.Username,
		Proxies:  map[string]any{"vless": map[string]any{}},
	}
	if params.ExpireAt != nil {
		reqBody.Expire = params.ExpireAt.Unix()
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/user", reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict:
		// The account already exists from an earlier interrupted attempt.
		// Fetch it so retries converge instead of failing.
		c.logger.Infow("account already exists, fetching", "username", params.Username)
		return c.GetAccount(ctx, params.Username)
	default:
		return nil, c.unexpectedStatus("create account", resp)
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode create response: %w", err)
	}

	c.logger.Infow("account created", "username", user.Username)
	return user.toAccount(), nil
}

// GetAccount fetches an account, mapping 404 to (nil, nil).
func (c *HTTPClient) GetAccount(ctx context.Context, username string) (*Account, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/user/"+url.PathEscape(username), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, c.unexpectedStatus("get account", resp)
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode account response: %w", err)
	}
	return user.toAccount(), nil
}

// DeleteAccount removes an account. A 404 is treated as success so teardown
// is idempotent.
func (c *HTTPClient) DeleteAccount(ctx context.Context, username string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/user/"+url.PathEscape(username), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		c.logger.Infow("account deleted", "username", username)
		return nil
	case http.StatusNotFound:
		c.logger.Debugw("account already absent", "username", username)
		return nil
	default:
		return c.unexpectedStatus("delete account", resp)
	}
}

// GetUsage fetches the traffic consumed by an account.
func (c *HTTPClient) GetUsage(ctx context.Context, username string) (*Usage, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/user/"+url.PathEscape(username)+"/usage", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errors.NewNotFoundError("account")
	default:
		return nil, c.unexpectedStatus("get usage", resp)
	}

	var usage userUsageResponse
	if err := json.NewDecoder(resp.Body).Decode(&usage); err != nil {
		return nil, fmt.Errorf("failed to decode usage response: %w", err)
	}
	return &Usage{Username: usage.Username, UsedTraffic: usage.UsedTraffic}, nil
}

// ListAccounts fetches every account known to the control plane.
func (c *HTTPClient) ListAccounts(ctx context.Context) ([]*Account, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/users", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.unexpectedStatus("list accounts", resp)
	}

	var list usersListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode accounts list: %w", err)
	}

	accounts := make([]*Account, 0, len(list.Users))
	for i := range list.Users {
		accounts = append(accounts, list.Users[i].toAccount())
	}
	return accounts, nil
}

func (c *HTTPClient) unexpectedStatus(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	c.logger.Errorw("panel request failed", "operation", op, "status", resp.StatusCode, "body", string(body))
	return errors.NewProvisionError(
		fmt.Sprintf("control plane %s failed", op),
		fmt.Sprintf("status %d", resp.StatusCode),
	)
}

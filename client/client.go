// Package client speaks the credential service's wire protocol: stateless
// request/response translators for login, refresh, logout, fetch-self, and
// health. It holds no identity state of its own; deciding when to call and
// what to do on failure belongs to the fetch package.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/project-starfall/identity"
)

// RemoteError is the single failure value every remote problem normalizes
// to: transport errors, timeouts, non-JSON bodies, and success:false
// envelopes alike. Message carries the server's explanation when one was
// available.
type RemoteError struct {
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote identity call failed: %s: %v", e.Message, e.Err)
	}
	return "remote identity call failed: " + e.Message
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Config controls the client's transport behavior.
type Config struct {
	// RequestTimeout bounds every call end to end. A call that exceeds it
	// fails like any other transport error; there are no retries here.
	RequestTimeout time.Duration

	// LocalAddress is the host:port the local origin resolves to.
	LocalAddress string
}

// Client issues wire-protocol calls against a credential service.
// Safe for concurrent use.
type Client struct {
	http         *http.Client
	localAddress string
}

// New returns a Client with the given transport configuration.
func New(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:         &http.Client{Timeout: timeout},
		localAddress: cfg.LocalAddress,
	}
}

// BaseURL resolves an origin to an absolute URL: plain HTTP for the local
// process, HTTPS for named remote hosts.
func (c *Client) BaseURL(origin identity.Origin) string {
	if origin.IsLocal() {
		return "http://" + c.localAddress
	}
	return "https://" + origin.Host()
}

// LoginResult carries the token minted by a successful login.
type LoginResult struct {
	AccessToken string
	TokenType   string
}

// UserPayload is the /users/me body: the remote account as the server
// reports it.
type UserPayload struct {
	UID      uint32 `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"is_active"`
	Verified bool   `json:"is_verified"`
}

// envelope is the wire response shape shared by every endpoint. Servers put
// the explanation in either "message" or "error" depending on the endpoint.
type envelope struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	ErrorMsg    string          `json:"error"`
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	User        json.RawMessage `json:"user"`
	Status      string          `json:"status"`
}

func (env *envelope) failureMessage() string {
	if env.Message != "" {
		return env.Message
	}
	if env.ErrorMsg != "" {
		return env.ErrorMsg
	}
	return "request rejected by server"
}

// Login exchanges an identifier (uid, username, or email) and password for
// a bearer token at origin.
func (c *Client) Login(ctx context.Context, origin identity.Origin, identifier, password string) (LoginResult, error) {
	body := map[string]string{"id": identifier, "password": password}
	env, err := c.do(ctx, http.MethodPost, origin, "/auth/login", "", body)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{AccessToken: env.AccessToken, TokenType: env.TokenType}, nil
}

// FetchSelf retrieves the account bound to tok from origin.
func (c *Client) FetchSelf(ctx context.Context, origin identity.Origin, tok string) (UserPayload, error) {
	env, err := c.do(ctx, http.MethodGet, origin, "/users/me", tok, nil)
	if err != nil {
		return UserPayload{}, err
	}

	var user UserPayload
	if err := json.Unmarshal(env.User, &user); err != nil {
		return UserPayload{}, &RemoteError{Message: "malformed user object in response", Err: err}
	}
	return user, nil
}

// Refresh exchanges tok for a fresh token at origin. Whether the old token
// stays valid is the server's policy; this layer only reports the new one.
func (c *Client) Refresh(ctx context.Context, origin identity.Origin, tok string) (string, error) {
	env, err := c.do(ctx, http.MethodGet, origin, "/auth/refresh", tok, nil)
	if err != nil {
		return "", err
	}
	if env.AccessToken == "" {
		return "", &RemoteError{Message: "no access token in refresh response"}
	}
	return env.AccessToken, nil
}

// Logout revokes tok at origin.
func (c *Client) Logout(ctx context.Context, origin identity.Origin, tok string) error {
	_, err := c.do(ctx, http.MethodPost, origin, "/auth/logout", tok, nil)
	return err
}

// Health probes origin's /health endpoint. nil means the service reported
// itself healthy.
func (c *Client) Health(ctx context.Context, origin identity.Origin) error {
	env, err := c.doRaw(ctx, http.MethodGet, origin, "/health", "", nil)
	if err != nil {
		return err
	}
	if env.Status != "ok" {
		return &RemoteError{Message: "service reported status " + strconv.Quote(env.Status)}
	}
	return nil
}

// do issues one request and enforces the success envelope.
func (c *Client) do(ctx context.Context, method string, origin identity.Origin, path, tok string, body any) (*envelope, error) {
	env, err := c.doRaw(ctx, method, origin, path, tok, body)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &RemoteError{Message: env.failureMessage()}
	}
	return env, nil
}

// doRaw issues one request and decodes the JSON envelope without
// interpreting the success flag.
func (c *Client) doRaw(ctx context.Context, method string, origin identity.Origin, path, tok string, body any) (*envelope, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &RemoteError{Message: "encode request body", Err: err}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL(origin)+path, reader)
	if err != nil {
		return nil, &RemoteError{Message: "build request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteError{Message: "request to " + origin.Host() + " failed", Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &RemoteError{Message: "invalid response from server or no response", Err: err}
	}
	return &env, nil
}

// Package rest is the HTTP transport of the sync engine. It speaks the
// collection protocol of the backend: list, create and delete under
// <base><prefix>/<type>/.
package rest

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ella-cms/scribble/internal/core/domain"
	"github.com/ella-cms/scribble/internal/core/ports"
)

const (
	DefaultPrefix  = "/api/r1"
	defaultTimeout = 10 * time.Second

	headerRequestID = "X-Request-ID"
	maxErrorBody    = 4 << 10
)

// Options configures a Client. Only BaseURL is required.
type Options struct {
	BaseURL    string
	Prefix     string
	Timeout    time.Duration
	Signer     *TokenSigner // takes precedence over Token
	Token      string       // static bearer token, e.g. from Login
	HTTPClient *http.Client
}

// Client implements ports.Transport over net/http.
type Client struct {
	root   string
	base   string
	http   *http.Client
	signer *TokenSigner
	token  string
	log    zerolog.Logger
}

var _ ports.Transport = (*Client)(nil)

func NewClient(opts Options, log zerolog.Logger) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("rest client: invalid base url %q", opts.BaseURL)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	root := strings.TrimRight(u.String(), "/")
	return &Client{
		root:   root,
		base:   root + "/" + strings.Trim(prefix, "/"),
		http:   hc,
		signer: opts.Signer,
		token:  opts.Token,
		log:    log,
	}, nil
}

// CollectionURL returns <base><prefix>/<type>/.
func (c *Client) CollectionURL(typeName string) string {
	return c.base + "/" + url.PathEscape(typeName) + "/"
}

type listResponse struct {
	Objects []map[string]any `json:"objects"`
}

func (c *Client) List(ctx context.Context, typeName string, filter url.Values) ([]map[string]any, error) {
	u := c.CollectionURL(typeName)
	if len(filter) > 0 {
		u += "?" + filter.Encode()
	}

	var out listResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return out.Objects, nil
}

func (c *Client) Create(ctx context.Context, typeName string, body []byte) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodPost, c.CollectionURL(typeName), body, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, typeName string, id any) error {
	u := c.CollectionURL(typeName) + url.PathEscape(fmt.Sprint(id)) + "/"
	return c.do(ctx, http.MethodDelete, u, nil, nil)
}

// Login exchanges user credentials for a bearer token at <base>/auth/token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, c.root+"/auth/token", body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// do performs one request. out, when non-nil, receives the JSON body
// decoded with json.Number for numbers.
func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	fail := func(status int, err error) error {
		return &domain.TransportError{Op: method, URL: u, Status: status, Err: err}
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set(headerRequestID, reqID)
	switch {
	case c.signer != nil:
		token, err := c.signer.Sign()
		if err != nil {
			return fail(0, fmt.Errorf("sign token: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("url", u).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, errorFromBody(resp.Body))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// errorFromBody extracts {"error": msg} or falls back to the raw text.
func errorFromBody(r io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var env struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Error != "" {
		return errors.New(env.Error)
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return errors.New(s)
	}
	return errors.New("unexpected status")
}

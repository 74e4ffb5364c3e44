// Package supabase is the session.Provider backed by the hosted auth REST API.
package supabase

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/prabhakardwivedi/corpsite/internal/session"
	"github.com/prabhakardwivedi/corpsite/internal/xerrors"
)

const (
	defaultTimeout = 10 * time.Second
	maxBody        = 1 << 20
)

type Options struct {
	// BaseURL is the project URL, e.g. https://<ref>.supabase.co
	BaseURL string
	// AnonKey is sent as the apikey header on every call
	AnonKey string
	// JWTSecret enables local verification of access tokens before the
	// network round-trip; empty skips it
	JWTSecret  string
	HTTPClient *http.Client
	Now        func() time.Time
}

type Client struct {
	base     *url.URL
	anonKey  string
	verifier *verifier
	hc       *http.Client
	now      func() time.Time
}

func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, xerrors.Newf("invalid auth base url %q", opts.BaseURL)
	}
	if opts.AnonKey == "" {
		return nil, xerrors.New("auth anon key is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Client{base: u, anonKey: opts.AnonKey, hc: hc, now: opts.Now}
	if opts.JWTSecret != "" {
		c.verifier = newVerifier(opts.JWTSecret, opts.Now)
	}
	return c, nil
}

// apiError is the error body shape across auth server versions
type apiError struct {
	status    int
	Code      any    `json:"code"`
	ErrorCode string `json:"error_code"`
	Err       string `json:"error"`
	Desc      string `json:"error_description"`
	Msg       string `json:"msg"`
	Message   string `json:"message"`
}

func (e *apiError) Error() string {
	for _, s := range []string{e.Msg, e.Desc, e.Message, e.ErrorCode, e.Err} {
		if s != "" {
			return fmt.Sprintf("auth api %d: %s", e.status, s)
		}
	}
	return fmt.Sprintf("auth api %d", e.status)
}

func (c *Client) endpoint(p string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/auth/v1/" + p
	u.RawQuery = q.Encode()
	return u.String()
}

// do sends one request and decodes a 2xx JSON body into out when non-nil
func (c *Client) do(ctx context.Context, method, p string, q url.Values, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return xerrors.Wrap(err, "encode auth request")
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(p, q), body)
	if err != nil {
		return xerrors.Wrap(err, "build auth request")
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return xerrors.Wrapf(err, "%s %s", method, p)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return xerrors.Wrapf(err, "read %s response", p)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		ae := &apiError{status: res.StatusCode}
		_ = json.Unmarshal(raw, ae)
		return ae
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return xerrors.Wrapf(err, "decode %s response", p)
		}
	}
	return nil
}

func statusOf(err error) int {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status
	}
	return 0
}

// credentialError maps a failed call onto the AuthError taxonomy: 4xx is
// the caller's fault, anything else means the provider could not answer
func credentialError(err error, msg string) error {
	st := statusOf(err)
	if st >= 400 && st < 500 && st != http.StatusTooManyRequests {
		return &session.AuthError{Reason: session.ReasonInvalidCredentials, Msg: msg, Err: err}
	}
	return &session.AuthError{Reason: session.ReasonUnavailable, Msg: "authentication service unavailable", Err: err}
}

type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   int64   `json:"expires_in"`
	ExpiresAt   int64   `json:"expires_at"`
	User        apiUser `json:"user"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "token", url.Values{"grant_type": {"password"}}, "",
		map[string]string{"email": email, "password": password}, &tr)
	if err != nil {
		return nil, credentialError(err, "invalid email or password")
	}
	if tr.AccessToken == "" {
		return nil, &session.AuthError{Reason: session.ReasonUnavailable, Msg: "token response without access token"}
	}
	exp := time.Unix(tr.ExpiresAt, 0)
	if tr.ExpiresAt == 0 {
		exp = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return &session.Session{Token: tr.AccessToken, User: tr.User.toUser(), ExpiresAt: exp.UTC()}, nil
}

// SignOut revokes the session. A token the server no longer knows is
// already signed out.
func (c *Client) SignOut(ctx context.Context, token string) error {
	err := c.do(ctx, http.MethodPost, "logout", nil, token, nil, nil)
	switch statusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return nil
	}
	return err
}

// GetSession verifies token locally when a secret is configured, then asks
// the auth server whether the session behind it is still live
func (c *Client) GetSession(ctx context.Context, token string) (*session.Session, error) {
	var exp time.Time
	if c.verifier != nil {
		claims, ok := c.verifier.verify(token)
		if !ok {
			return nil, nil
		}
		exp = claims.expiresAt
	}

	var u apiUser
	err := c.do(ctx, http.MethodGet, "user", nil, token, nil, &u)
	switch st := statusOf(err); {
	case err == nil:
	case st == http.StatusUnauthorized || st == http.StatusForbidden || st == http.StatusNotFound:
		return nil, nil
	default:
		return nil, err
	}
	if u.ID == "" {
		return nil, nil
	}
	return &session.Session{Token: token, User: u.toUser(), ExpiresAt: exp}, nil
}

func (c *Client) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	var q url.Values
	if redirectTo != "" {
		q = url.Values{"redirect_to": {redirectTo}}
	}
	if err := c.do(ctx, http.MethodPost, "recover", q, "", map[string]string{"email": email}, nil); err != nil {
		return credentialError(err, "password reset rejected")
	}
	return nil
}

func (c *Client) SetPassword(ctx context.Context, token, newPassword string) error {
	err := c.do(ctx, http.MethodPut, "user", nil, token, map[string]string{"password": newPassword}, nil)
	if err != nil {
		return credentialError(err, "password change rejected")
	}
	return nil
}

var _ session.Provider = (*Client)(nil)

// Package manager is the HTTP client for the SOLARWATT Manager appliance's
// embedded web interface. The appliance speaks a cookie-based login protocol
// and serves its HTML shell instead of JSON when the session has expired,
// sometimes with a 200 status, so every request path here is prepared to
// re-authenticate exactly once.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	sessionCookieName = "kiwisessionid"
	defaultSessionTTL = 900 * time.Second
	// Local-network appliance: long waits mean a dead host, not slow load.
	requestTimeout = 5 * time.Second
	snippetLimit   = 300
)

// Config carries the connection settings for one Manager instance.
type Config struct {
	Host     string
	Username string
	Password string
	// SessionTTL overrides the 900s default, for tests.
	SessionTTL time.Duration
}

// Client owns one authenticated session to the appliance. It is not safe for
// unsynchronized concurrent use; the poller serializes access.
type Client struct {
	base      string
	loginURL  string
	itemsURL  string
	thingsURL string

	host     string
	username string
	password string

	httpClient *http.Client
	sessionTTL time.Duration

	// The appliance sometimes sets the session cookie with a non-IP domain
	// attribute (e.g. "karaf"), which keeps the cookie jar from re-sending
	// it when the device is addressed by bare IP. The credential is
	// therefore also tracked explicitly and attached as a Cookie header on
	// every request.
	sessionCookie string
	lastLogin     time.Time

	closeOnce sync.Once
	log       zerolog.Logger
}

// NewClient builds a Client for the given appliance. No network I/O happens
// until the first request.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("manager host is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("manager credentials are required")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	base := "http://" + cfg.Host
	return &Client{
		base:      base,
		loginURL:  base + "/auth/login",
		itemsURL:  base + "/rest/items",
		thingsURL: base + "/rest/things",
		host:      cfg.Host,
		username:  cfg.Username,
		password:  cfg.Password,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: requestTimeout,
			// The session credential arrives inside a redirect response;
			// redirects are never followed automatically.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		sessionTTL: ttl,
		log:        log.With().Str("component", "manager").Str("host", cfg.Host).Logger(),
	}, nil
}

// Login submits the form-encoded credentials and captures the session
// cookie. It succeeds only if a session credential was obtained; an HTML
// success page alone does not imply a valid login.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"username": {c.username},
		"password": {c.password},
		"url":      {"/"},
		"submit":   {"Login"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return newError(KindConnection, err, "build login request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newError(KindConnection, err, "login connection error")
	}
	defer resp.Body.Close()

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusSeeOther {
		snippet := readSnippet(resp.Body)
		c.log.Error().Int("status", resp.StatusCode).Str("snippet", snippet).Msg("login failed")
		kind := KindConnection
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = KindAuth
		case http.StatusNotFound:
			kind = KindNotManager
		}
		return &Error{
			Kind:        kind,
			Message:     "login failed",
			Status:      resp.StatusCode,
			ContentType: contentType,
			Snippet:     snippet,
		}
	}

	// Structured cookie first, raw Set-Cookie headers as fallback; the
	// domain attribute on the cookie can be unusable for IP hosts.
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			c.sessionCookie = sessionCookieName + "=" + cookie.Value
			break
		}
	}
	if c.sessionCookie == "" {
		for _, header := range resp.Header.Values("Set-Cookie") {
			if value := scanSetCookie(header); value != "" {
				c.sessionCookie = sessionCookieName + "=" + value
				break
			}
		}
	}

	// Best-effort warm-up: follow the redirect one hop. The session cookie
	// is what matters; failures here are ignored.
	if resp.StatusCode == http.StatusSeeOther {
		if location := resp.Header.Get("Location"); location != "" {
			c.warmUp(ctx, location)
		}
	}

	if c.sessionCookie == "" {
		return &Error{
			Kind:        KindAuth,
			Message:     fmt.Sprintf("login returned no %s cookie for host %s", sessionCookieName, c.host),
			Status:      resp.StatusCode,
			ContentType: contentType,
			CookieNames: c.cookieNames(),
		}
	}

	c.lastLogin = time.Now()
	c.log.Debug().Msg("logged in")
	return nil
}

func (c *Client) warmUp(ctx context.Context, location string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+location, nil)
	if err != nil {
		return
	}
	c.attachSession(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, snippetLimit))
	resp.Body.Close()
}

// SessionFresh reports whether the current session credential is within its
// TTL. The fetch paths consult this before every request.
func (c *Client) SessionFresh() bool {
	return c.sessionCookie != "" && time.Since(c.lastLogin) < c.sessionTTL
}

// Items fetches the flat list of raw items.
func (c *Client) Items(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := c.getJSON(ctx, c.itemsURL, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ItemByName fetches a single raw item.
func (c *Client) ItemByName(ctx context.Context, name string) (Item, error) {
	if name == "" {
		return Item{}, newError(KindProtocol, nil, "item name is required")
	}
	var item Item
	if err := c.getJSON(ctx, c.itemsURL+"/"+url.PathEscape(name), &item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Things fetches the device inventory.
func (c *Client) Things(ctx context.Context) ([]Thing, error) {
	var raw []rawThing
	if err := c.getJSON(ctx, c.thingsURL, &raw); err != nil {
		return nil, err
	}
	things := make([]Thing, 0, len(raw))
	for _, r := range raw {
		things = append(things, r.thing())
	}
	return things, nil
}

// Probe checks whether the host looks like a SOLARWATT Manager by testing
// for its login page.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/logon.html", nil)
	if err != nil {
		return newError(KindConnection, err, "build probe request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newError(KindNotManager, err, "probe failed for %s", c.host)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, snippetLimit))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Kind: KindNotManager, Message: "logon.html not found", Status: resp.StatusCode}
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		return nil
	default:
		return &Error{Kind: KindConnection, Message: "unexpected probe status", Status: resp.StatusCode}
	}
}

// Validate performs a login and a single item fetch to confirm reachability
// and credentials, without touching any ongoing polling state.
func (c *Client) Validate(ctx context.Context) error {
	if err := c.Login(ctx); err != nil {
		return err
	}
	_, err := c.Items(ctx)
	return err
}

// Close releases the underlying session resources. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.sessionCookie = ""
		c.lastLogin = time.Time{}
		c.httpClient.CloseIdleConnections()
	})
}

// getJSON issues an authenticated GET and decodes the JSON body. On a 401,
// or on a 200 whose content type is not JSON (the appliance serves its HTML
// shell when the session is invalid despite the status), it re-authenticates
// and retries exactly once. A second failure surfaces as a typed error.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if !c.SessionFresh() {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return newError(KindConnection, err, "GET %s", endpoint)
	}

	if resp.StatusCode == http.StatusUnauthorized || (resp.StatusCode == http.StatusOK && !isJSON(resp)) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, snippetLimit))
		resp.Body.Close()
		if err := c.Login(ctx); err != nil {
			return err
		}
		resp, err = c.get(ctx, endpoint)
		if err != nil {
			return newError(KindConnection, err, "GET %s (after re-login)", endpoint)
		}
	}
	defer resp.Body.Close()

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Kind: KindAuth, Message: fmt.Sprintf("GET %s rejected", endpoint), Status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Kind: KindNotManager, Message: fmt.Sprintf("endpoint %s not found", endpoint), Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &Error{
			Kind:    KindConnection,
			Message: fmt.Sprintf("GET %s failed", endpoint),
			Status:  resp.StatusCode,
			Snippet: readSnippet(resp.Body),
		}
	case !isJSON(resp):
		return &Error{
			Kind:        KindProtocol,
			Message:     fmt.Sprintf("GET %s returned no JSON", endpoint),
			Status:      resp.StatusCode,
			ContentType: contentType,
			CookieNames: c.cookieNames(),
			Snippet:     readSnippet(resp.Body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{
			Kind:        KindProtocol,
			Message:     fmt.Sprintf("GET %s: decode body", endpoint),
			Status:      resp.StatusCode,
			ContentType: contentType,
			CookieNames: c.cookieNames(),
			cause:       err,
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.attachSession(req)
	return c.httpClient.Do(req)
}

func (c *Client) attachSession(req *http.Request) {
	if c.sessionCookie != "" {
		req.Header.Set("Cookie", c.sessionCookie)
	}
}

func (c *Client) cookieNames() []string {
	base, err := url.Parse(c.base)
	if err != nil {
		return nil
	}
	cookies := c.httpClient.Jar.Cookies(base)
	names := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		names = append(names, cookie.Name)
	}
	return names
}

func isJSON(resp *http.Response) bool {
	return strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "json")
}

// scanSetCookie extracts the session credential value from one raw
// Set-Cookie header, or "" if the header carries a different cookie.
func scanSetCookie(header string) string {
	idx := strings.Index(header, sessionCookieName+"=")
	if idx < 0 {
		return ""
	}
	value := header[idx+len(sessionCookieName)+1:]
	if end := strings.Index(value, ";"); end >= 0 {
		value = value[:end]
	}
	return strings.TrimSpace(value)
}

func readSnippet(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, snippetLimit))
	if err != nil {
		return "<unreadable>"
	}
	snippet := strings.ReplaceAll(string(data), "\n", " ")
	return strings.TrimSpace(strings.ReplaceAll(snippet, "\r", " "))
}

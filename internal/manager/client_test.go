package manager

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSession = "deadbeef"

// fakeManager imitates the appliance: form login handing out a session
// cookie via redirect, and REST endpoints that serve the HTML shell whenever
// the session cookie is missing or wrong.
type fakeManager struct {
	srv *httptest.Server

	loginCount int
	itemsCount int

	// failLogins makes the first N logins return 401.
	failLogins int
	// htmlShellFirst makes the first N authenticated item responses serve
	// the HTML shell with status 200, imitating silent session expiry.
	htmlShellFirst int
	// cookieDomain, when set, is attached to the Set-Cookie header as a
	// Domain attribute the jar cannot use for an IP host.
	cookieDomain string

	items []Item
}

func newFakeManager(t *testing.T) *fakeManager {
	t.Helper()
	f := &fakeManager{
		items: []Item{
			{Name: "kiwigrid_location_standard_ABC_harmonized_power_in", State: strPtr("1500 W"), Type: "Number:Power"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", f.handleLogin)
	mux.HandleFunc("/rest/items", f.handleItems)
	mux.HandleFunc("/rest/items/", f.handleItem)
	mux.HandleFunc("/rest/things", f.handleThings)
	mux.HandleFunc("/logon.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>login</html>"))
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeManager) host() string {
	return strings.TrimPrefix(f.srv.URL, "http://")
}

func (f *fakeManager) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.loginCount++
	if err := r.ParseForm(); err != nil || r.PostFormValue("username") == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if f.failLogins > 0 {
		f.failLogins--
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("<html>bad credentials</html>"))
		return
	}

	cookie := "kiwisessionid=" + testSession + "; Path=/"
	if f.cookieDomain != "" {
		cookie += "; Domain=" + f.cookieDomain
	}
	w.Header().Set("Set-Cookie", cookie)
	w.Header().Set("Location", "/index.html")
	w.WriteHeader(http.StatusSeeOther)
}

func (f *fakeManager) authenticated(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Cookie"), "kiwisessionid="+testSession)
}

func (f *fakeManager) serveShell(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	w.Write([]byte("<html><body>SOLARWATT Manager</body></html>"))
}

func (f *fakeManager) handleItems(w http.ResponseWriter, r *http.Request) {
	f.itemsCount++
	if !f.authenticated(r) {
		f.serveShell(w)
		return
	}
	if f.htmlShellFirst > 0 {
		f.htmlShellFirst--
		f.serveShell(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(f.items)
}

func (f *fakeManager) handleItem(w http.ResponseWriter, r *http.Request) {
	if !f.authenticated(r) {
		f.serveShell(w)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/rest/items/")
	for _, item := range f.items {
		if item.Name == name {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(item)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (f *fakeManager) handleThings(w http.ResponseWriter, r *http.Request) {
	if !f.authenticated(r) {
		f.serveShell(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`[{"UID":"foxess:hybrid:abc","label":"Inverter","thingTypeUID":"foxess:hybrid","statusInfo":{"status":"ONLINE","statusDetail":"NONE"},"channels":[{},{}]}]`))
}

func newTestClient(t *testing.T, host string) *Client {
	t.Helper()
	client, err := NewClient(Config{Host: host, Username: "admin", Password: "secret"}, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresConfig(t *testing.T) {
	_, err := NewClient(Config{Username: "a", Password: "b"}, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewClient(Config{Host: "192.168.1.2"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestLoginCapturesSessionCookie(t *testing.T) {
	f := newFakeManager(t)
	client := newTestClient(t, f.host())

	require.NoError(t, client.Login(context.Background()))
	assert.True(t, client.SessionFresh())
	assert.Equal(t, 1, f.loginCount)
}

func TestLoginUsesRawSetCookieForOddDomain(t *testing.T) {
	// The real appliance sets Domain=karaf, which a cookie jar will not
	// replay toward an IP host. The raw header value must still be used.
	f := newFakeManager(t)
	f.cookieDomain = "karaf"
	client := newTestClient(t, f.host())

	require.NoError(t, client.Login(context.Background()))

	items, err := client.Items(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestLoginWithoutCookieIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>welcome anyway</html>"))
	}))
	defer srv.Close()

	client := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))
	err := client.Login(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.False(t, client.SessionFresh())
}

func TestLoginRejectedIsAuthError(t *testing.T) {
	f := newFakeManager(t)
	f.failLogins = 1
	client := newTestClient(t, f.host())

	err := client.Login(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuth(err))

	var typed *Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, http.StatusUnauthorized, typed.Status)
}

func TestItemsLogsInOnce(t *testing.T) {
	f := newFakeManager(t)
	client := newTestClient(t, f.host())

	items, err := client.Items(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "kiwigrid_location_standard_ABC_harmonized_power_in", items[0].Name)
	require.NotNil(t, items[0].State)
	assert.Equal(t, "1500 W", *items[0].State)

	// Second fetch reuses the session.
	_, err = client.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.loginCount)
}

func TestItemsRetriesOnceOnHTMLShell(t *testing.T) {
	f := newFakeManager(t)
	f.htmlShellFirst = 1
	client := newTestClient(t, f.host())

	items, err := client.Items(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, f.loginCount)
	assert.Equal(t, 2, f.itemsCount)
}

func TestItemsPersistentHTMLShellIsProtocolError(t *testing.T) {
	f := newFakeManager(t)
	f.htmlShellFirst = 2
	client := newTestClient(t, f.host())

	_, err := client.Items(context.Background())
	require.Error(t, err)

	var typed *Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, KindProtocol, typed.Kind)
	assert.Equal(t, http.StatusOK, typed.Status)
	assert.Contains(t, typed.ContentType, "text/html")
	assert.Contains(t, typed.Snippet, "SOLARWATT")
	// Exactly one retry: two item requests, two logins.
	assert.Equal(t, 2, f.itemsCount)
	assert.Equal(t, 2, f.loginCount)
}

func TestItemsEndpointMissingIsNotManager(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			w.Header().Set("Set-Cookie", "kiwisessionid="+testSession)
			w.WriteHeader(http.StatusSeeOther)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))
	_, err := client.Items(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotManager(err))
}

func TestItemsConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	client := newTestClient(t, host)
	_, err := client.Items(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindConnection, ErrKind(err))
}

func TestItemByName(t *testing.T) {
	f := newFakeManager(t)
	client := newTestClient(t, f.host())

	item, err := client.ItemByName(context.Background(), "kiwigrid_location_standard_ABC_harmonized_power_in")
	require.NoError(t, err)
	assert.Equal(t, "Number:Power", item.Type)

	_, err = client.ItemByName(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, KindProtocol, ErrKind(err))
}

func TestThingsDecodesStatusInfo(t *testing.T) {
	f := newFakeManager(t)
	client := newTestClient(t, f.host())

	things, err := client.Things(context.Background())
	require.NoError(t, err)
	require.Len(t, things, 1)
	assert.Equal(t, "foxess:hybrid:abc", things[0].UID)
	assert.Equal(t, "ONLINE", things[0].Status)
	assert.Equal(t, 2, things[0].ChannelCount)
}

func TestSessionExpiryTriggersRelogin(t *testing.T) {
	f := newFakeManager(t)
	client, err := NewClient(Config{
		Host:       f.host(),
		Username:   "admin",
		Password:   "secret",
		SessionTTL: 10 * time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.loginCount)

	time.Sleep(20 * time.Millisecond)

	_, err = client.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.loginCount)
}

func TestProbe(t *testing.T) {
	f := newFakeManager(t)
	client := newTestClient(t, f.host())
	assert.NoError(t, client.Probe(context.Background()))
}

func TestProbeMissingLoginPage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))
	err := client.Probe(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotManager(err))
}

func TestValidate(t *testing.T) {
	f := newFakeManager(t)
	client := newTestClient(t, f.host())
	assert.NoError(t, client.Validate(context.Background()))

	f.failLogins = 1
	client2 := newTestClient(t, f.host())
	assert.True(t, IsAuth(client2.Validate(context.Background())))
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFakeManager(t)
	client := newTestClient(t, f.host())
	require.NoError(t, client.Login(context.Background()))

	client.Close()
	client.Close()
	assert.False(t, client.SessionFresh())
}

func TestScanSetCookie(t *testing.T) {
	assert.Equal(t, "abc", scanSetCookie("kiwisessionid=abc; Path=/; Domain=karaf"))
	assert.Equal(t, "abc", scanSetCookie("kiwisessionid=abc"))
	assert.Empty(t, scanSetCookie("othersession=abc"))
}

func strPtr(s string) *string { return &s }

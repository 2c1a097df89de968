package app

import (
	"authpage/internal/config"
	"authpage/internal/constants"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

type backendCall struct {
	path string
	body string
}

type fakeBackend struct {
	mu    sync.Mutex
	calls []backendCall
}

func (b *fakeBackend) last(t *testing.T) backendCall {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.calls)
	return b.calls[len(b.calls)-1]
}

func newFakeBackend(t *testing.T, response string) (*fakeBackend, string) {
	t.Helper()
	b := &fakeBackend{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.calls = append(b.calls, backendCall{path: r.URL.Path, body: string(body)})
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return b, srv.URL
}

var csrfInput = regexp.MustCompile(`name="_csrf" value="([^"]+)"`)

// browser keeps cookies and the CSRF token between requests like htmx would.
type browser struct {
	t       *testing.T
	app     *fiber.App
	cookies map[string]string
	token   string
}

func newBrowser(t *testing.T, backendUrl string) *browser {
	return &browser{
		t:       t,
		app:     New(config.NewTestConfig(backendUrl)),
		cookies: map[string]string{},
	}
}

func (b *browser) request(method, path string, form url.Values) *http.Request {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if b.token != "" {
		req.Header.Set(constants.CsrfHeaderName, b.token)
	}
	req.Header.Set("HX-Request", "true")
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return req
}

func (b *browser) do(method, path string, form url.Values) (*http.Response, string) {
	b.t.Helper()

	resp, err := b.app.Test(b.request(method, path, form), -1)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		b.cookies[c.Name] = c.Value
	}

	raw, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	html := string(raw)

	if m := csrfInput.FindStringSubmatch(html); m != nil {
		b.token = m[1]
	}
	return resp, html
}

func (b *browser) open() string {
	b.t.Helper()
	resp, html := b.do(http.MethodGet, "/auth", nil)
	require.Equal(b.t, fiber.StatusOK, resp.StatusCode)
	require.NotEmpty(b.t, b.token)
	return html
}

func (b *browser) typeInto(field, value string) {
	b.t.Helper()
	resp, _ := b.do(http.MethodPatch, "/auth/fields/"+field, url.Values{field: {value}})
	require.Equal(b.t, fiber.StatusNoContent, resp.StatusCode)
}

func (b *browser) click(path string) string {
	b.t.Helper()
	resp, html := b.do(http.MethodPost, path, url.Values{})
	require.Equal(b.t, fiber.StatusOK, resp.StatusCode)
	return html
}

func TestRootRedirects(t *testing.T) {
	b := newBrowser(t, "http://127.0.0.1:1")
	resp, _ := b.do(http.MethodGet, "/", nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth", resp.Header.Get("Location"))
}

func TestHealth(t *testing.T) {
	b := newBrowser(t, "http://127.0.0.1:1")
	resp, body := b.do(http.MethodGet, "/health", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"up"}`, body)
}

func TestLoginPage(t *testing.T) {
	b := newBrowser(t, "http://127.0.0.1:1")
	html := b.open()

	assert.Contains(t, html, "<title>Login</title>")
	assert.Contains(t, html, `name="email"`)
	assert.Contains(t, html, `name="password"`)
	assert.NotContains(t, html, `name="name"`)
	assert.NotContains(t, html, `name="referal"`)
}

func TestMutationWithoutCsrfIsForbidden(t *testing.T) {
	b := newBrowser(t, "http://127.0.0.1:1")
	b.open()
	b.token = ""

	resp, _ := b.do(http.MethodPost, "/auth/mode", url.Values{})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestUnknownFieldIsRejected(t *testing.T) {
	b := newBrowser(t, "http://127.0.0.1:1")
	b.open()

	resp, _ := b.do(http.MethodPatch, "/auth/fields/points", url.Values{"points": {"10"}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestToggleModeKeepsValues(t *testing.T) {
	b := newBrowser(t, "http://127.0.0.1:1")
	b.open()
	b.typeInto("email", "ann@x.com")

	html := b.click("/auth/mode")
	assert.Contains(t, html, "<h2>Register</h2>")
	assert.Contains(t, html, `id="field-name" class="field slide" data-entering`)
	assert.Contains(t, html, `value="ann@x.com"`)

	html = b.click("/auth/mode")
	assert.Contains(t, html, "<h2>Login</h2>")
	assert.NotContains(t, html, `name="name"`)
	assert.Contains(t, html, `value="ann@x.com"`)
}

func TestPasswordStaysInBrowser(t *testing.T) {
	b := newBrowser(t, "http://127.0.0.1:1")
	b.open()

	resp, html := b.do(http.MethodPost, "/auth/mode", url.Values{
		"email":    {"ann@x.com"},
		"password": {"secret"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, html, `value="ann@x.com"`)
	assert.Contains(t, html, `name="password" hx-preserve="true"`)
	assert.NotContains(t, html, "secret")

	html = b.click("/auth/mode")
	assert.NotContains(t, html, "secret")
}

func TestToggleReferralKeepsValue(t *testing.T) {
	b := newBrowser(t, "http://127.0.0.1:1")
	b.open()
	b.click("/auth/mode")

	html := b.click("/auth/referral")
	assert.Contains(t, html, `id="field-referal" class="field slide" data-entering`)
	b.typeInto("referal", "R1")

	html = b.click("/auth/referral")
	assert.NotContains(t, html, `name="referal"`)
	assert.Contains(t, html, "I have a referral code")

	html = b.click("/auth/referral")
	assert.Contains(t, html, `value="R1"`)
}

func TestReloadStartsFresh(t *testing.T) {
	b := newBrowser(t, "http://127.0.0.1:1")
	b.open()
	b.typeInto("email", "ann@x.com")
	b.click("/auth/mode")

	html := b.open()
	assert.Contains(t, html, "<h2>Login</h2>")
	assert.NotContains(t, html, "ann@x.com")
}

func TestSubmitRegister(t *testing.T) {
	backend, backendUrl := newFakeBackend(t, `{"message":"Registeration successful","user_id":"1"}`)
	b := newBrowser(t, backendUrl)
	b.open()
	b.click("/auth/mode")
	b.click("/auth/referral")
	b.typeInto("name", "Ann")
	b.typeInto("email", "ann@x.com")
	b.typeInto("referal", "R1")

	resp, html := b.do(http.MethodPost, "/auth/submit", url.Values{"password": {"pw"}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, html, "Registered Successfully!")
	assert.JSONEq(t, `{"authform:notify":{"ok":true,"message":"Registered Successfully!"}}`, resp.Header.Get("HX-Trigger"))

	call := backend.last(t)
	assert.Equal(t, "/register", call.path)
	assert.Equal(t, `{"name":"Ann","email":"ann@x.com","password":"pw","referal":"R1"}`, call.body)
}

func TestSubmitLoginUsesPostedFields(t *testing.T) {
	backend, backendUrl := newFakeBackend(t, `{"message":"Login successful"}`)
	b := newBrowser(t, backendUrl)
	b.open()

	resp, html := b.do(http.MethodPost, "/auth/submit", url.Values{
		"email":    {"ann@x.com"},
		"password": {"pw"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, html, "Logged in Successfully!")

	call := backend.last(t)
	assert.Equal(t, "/login", call.path)
	assert.JSONEq(t, `{"name":"","email":"ann@x.com","password":"pw","referal":""}`, call.body)
}

func TestSubmitDoesNotResetForm(t *testing.T) {
	_, backendUrl := newFakeBackend(t, `{}`)
	b := newBrowser(t, backendUrl)
	b.open()
	b.typeInto("email", "ann@x.com")
	b.click("/auth/submit")

	html := b.click("/auth/mode")
	assert.Contains(t, html, `value="ann@x.com"`)
}

func TestEditsDuringSubmitAreKept(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(srv.Close)
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	b := newBrowser(t, srv.URL)
	b.open()
	b.click("/auth/mode")
	b.click("/auth/referral")
	b.typeInto("email", "ann@x.com")
	b.typeInto("referal", "R1")

	req := b.request(http.MethodPost, "/auth/submit", url.Values{
		"email":    {"ann@x.com"},
		"password": {"pw"},
		"referal":  {"R1"},
	})
	done := make(chan int, 1)
	go func() {
		resp, err := b.app.Test(req, -1)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("submission never reached the backend")
	}

	b.typeInto("email", "new@x.com")
	b.typeInto("referal", "R2")
	b.click("/auth/referral")

	unblock()
	assert.Equal(t, fiber.StatusOK, <-done)

	html := b.click("/auth/referral")
	assert.Contains(t, html, "<h2>Register</h2>")
	assert.Contains(t, html, `value="new@x.com"`)
	assert.Contains(t, html, `value="R2"`)
}

func TestSubmitNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	backendUrl := srv.URL
	srv.Close()

	b := newBrowser(t, backendUrl)
	b.open()
	b.typeInto("email", "ann@x.com")

	resp, html := b.do(http.MethodPost, "/auth/submit", url.Values{"password": {"pw"}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, html, "An error occurred. Please try again.")
	assert.Contains(t, html, "notice-error")
	assert.JSONEq(t, `{"authform:notify":{"ok":false,"message":"An error occurred. Please try again."}}`, resp.Header.Get("HX-Trigger"))
}

func TestSubmitNonJSONResponse(t *testing.T) {
	_, backendUrl := newFakeBackend(t, "<html>oops</html>")
	b := newBrowser(t, backendUrl)
	b.open()

	resp, html := b.do(http.MethodPost, "/auth/submit", url.Values{})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, html, "An error occurred. Please try again.")
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	b := newBrowser(t, "http://127.0.0.1:1")
	resp, html := b.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, html, "Not Found")
}

package promptsource

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sysdesign-assistant/backend/pkg/errors"
)

const requirementsPage = `<!DOCTYPE html>
<html>
<head>
  <title>Reels feature requirements</title>
  <style>body { color: red; }</style>
  <script>trackPageView();</script>
</head>
<body>
  <nav><a href="/">Home</a> <a href="/docs">Docs</a></nav>
  <main>
    <h1>Short-form video</h1>
    <p>Users upload clips of up to   60 seconds.</p>
    <ul>
      <li>10M daily active users</li>
      <li>p99 playback start under 300ms</li>
    </ul>
  </main>
  <footer>Copyright 2024</footer>
</body>
</html>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "SysDesignBot")
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchWebpage_ExtractsReadableText(t *testing.T) {
	srv := serve(t, http.StatusOK, requirementsPage)

	text, err := NewFetcher(srv.Client()).FetchWebpage(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"Reels feature requirements",
		"Short-form video",
		"Users upload clips of up to 60 seconds.",
		"10M daily active users",
		"p99 playback start under 300ms",
	}, "\n"), text)
	assert.NotContains(t, text, "trackPageView")
	assert.NotContains(t, text, "Copyright")
	assert.NotContains(t, text, "Docs")
}

func TestFetchWebpage_FallsBackToBodyText(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html><body><div>Build a   rate limiter</div></body></html>`)

	text, err := NewFetcher(srv.Client()).FetchWebpage(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Build a rate limiter", text)
}

func TestFetchWebpage_Truncates(t *testing.T) {
	srv := serve(t, http.StatusOK, "<html><body><p>"+strings.Repeat("é", 50)+"</p></body></html>")

	f := NewFetcher(srv.Client())
	f.maxChars = 10
	text, err := f.FetchWebpage(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 10), text)
}

func TestFetchWebpage_Errors(t *testing.T) {
	notFound := serve(t, http.StatusNotFound, "gone")
	empty := serve(t, http.StatusOK, "<html><body><script>x()</script></body></html>")

	_, err := NewFetcher(notFound.Client()).FetchWebpage(context.Background(), notFound.URL)
	require.Error(t, err)
	assert.True(t, apperrors.IsRemoteRequestError(err))

	_, err = NewFetcher(empty.Client()).FetchWebpage(context.Background(), empty.URL)
	assert.Error(t, err)

	_, err = FetchWebpage(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, apperrors.IsConfigurationError(err))
}

func TestFetchWebpage_RefusesNonPublicAddresses(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, "<html><body><p>SECRET_TOKEN=abc123</p></body></html>")
	}))
	t.Cleanup(srv.Close)

	for _, target := range []string{
		srv.URL,
		strings.Replace(srv.URL, "127.0.0.1", "localhost", 1),
	} {
		text, err := FetchWebpage(context.Background(), target)
		require.Error(t, err, target)
		assert.True(t, apperrors.IsConfigurationError(err), target)
		assert.Contains(t, err.Error(), ErrNonPublicAddress.Error())
		assert.Empty(t, text)
	}
	assert.Zero(t, hits)
}

func TestIsPublic(t *testing.T) {
	tests := map[string]bool{
		"93.184.216.34":   true,
		"2606:4700::1111": true,
		"127.0.0.1":       false,
		"::1":             false,
		"10.1.2.3":        false,
		"172.16.0.1":      false,
		"192.168.1.10":    false,
		"169.254.169.254": false,
		"fe80::1":         false,
		"fd00::1":         false,
		"0.0.0.0":         false,
		"100.64.0.1":      false,
	}
	for ip, want := range tests {
		assert.Equal(t, want, isPublic(net.ParseIP(ip)), ip)
	}
}

func TestNormalizeURL(t *testing.T) {
	got, err := normalizeURL("docs.example.com/reels")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com/reels", got)

	got, err = normalizeURL("http://docs.example.com")
	require.NoError(t, err)
	assert.Equal(t, "http://docs.example.com", got)

	for _, raw := range []string{"ftp://host/x", "file:///etc/passwd", "gopher://host", "https://"} {
		_, err := normalizeURL(raw)
		require.Error(t, err, raw)
		assert.True(t, apperrors.IsConfigurationError(err), raw)
	}

	_, err = FetchWebpage(context.Background(), "ftp://host/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported scheme "ftp"`)
}

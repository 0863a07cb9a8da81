package exchange

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileJarRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jar", "cookies.txt")
	u, _ := url.Parse("https://api.example.com/v1/items")

	jar, err := openJar(path, false)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{
		{Name: "token", Value: "t1", MaxAge: 600, Secure: true, HttpOnly: true},
		{Name: "wide", Value: "w", Domain: ".example.com", Path: "/", Expires: time.Now().Add(time.Hour)},
		{Name: "session", Value: "s"},
		{Name: "stale", Value: "x", Expires: time.Now().Add(-time.Hour)},
	})
	require.NoError(t, jar.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, netscapeHeader))
	assert.Contains(t, text, "#HttpOnly_api.example.com\tFALSE\t/v1\tTRUE\t")
	assert.Contains(t, text, ".example.com\tTRUE\t/\tFALSE\t")
	assert.NotContains(t, text, "session")
	assert.NotContains(t, text, "stale")

	reopened, err := openJar(path, false)
	require.NoError(t, err)
	names := map[string]string{}
	for _, c := range reopened.Cookies(u) {
		names[c.Name] = c.Value
	}
	assert.Equal(t, map[string]string{"token": "t1", "wide": "w"}, names)

	other, _ := url.Parse("http://www.example.com/")
	var otherNames []string
	for _, c := range reopened.Cookies(other) {
		otherNames = append(otherNames, c.Name)
	}
	assert.Equal(t, []string{"wide"}, otherNames)
}

func TestFileJarDeletesOnNegativeMaxAge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	u, _ := url.Parse("http://example.com/")

	jar, err := openJar(path, true)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "a", Value: "1"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "a", MaxAge: -1}})
	require.NoError(t, jar.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, netscapeHeader, string(data))
}

func TestFileJarRefusesForeignDomains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	u, _ := url.Parse("http://127.0.0.1:8080/login")

	jar, err := openJar(path, false)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{
		{Name: "evil", Value: "1", Domain: "bank.example", MaxAge: 3600},
		{Name: "ok", Value: "2", MaxAge: 3600},
	})
	require.NoError(t, jar.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "bank.example")
	assert.NotContains(t, string(data), "evil")
	assert.Contains(t, string(data), "127.0.0.1\tFALSE\t/\tFALSE\t")

	reopened, err := openJar(path, false)
	require.NoError(t, err)
	bank, _ := url.Parse("http://bank.example/")
	assert.Empty(t, reopened.Cookies(bank))
	require.Len(t, reopened.Cookies(u), 1)
	assert.Equal(t, "ok", reopened.Cookies(u)[0].Name)
}

func TestCookieDomain(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		attr     string
		domain   string
		hostOnly bool
		ok       bool
	}{
		{"no attribute", "api.example.com", "", "api.example.com", true, true},
		{"parent domain", "api.example.com", ".Example.com", "example.com", false, true},
		{"same domain", "example.com", "example.com", "example.com", false, true},
		{"foreign domain", "api.example.com", "bank.example", "", false, false},
		{"suffix but not a label", "badexample.com", "example.com", "", false, false},
		{"public suffix", "api.example.com", "com", "", false, false},
		{"public suffix host", "co.uk", "co.uk", "co.uk", true, true},
		{"ip host", "127.0.0.1", "127.0.0.1", "127.0.0.1", true, true},
		{"ip host foreign", "127.0.0.1", "example.com", "", false, false},
		{"trailing dot", "example.com", "example.com.", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain, hostOnly, ok := cookieDomain(tt.host, tt.attr)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.domain, domain)
				assert.Equal(t, tt.hostOnly, hostOnly)
			}
		})
	}
}

func TestParseCookieSkipsJunk(t *testing.T) {
	for _, line := range []string{
		"# comment",
		"",
		"too\tfew\tfields",
		"example.com\tFALSE\t/\tFALSE\tsoon\tname\tvalue",
	} {
		_, ok := parseCookie(line)
		assert.False(t, ok, line)
	}

	e, ok := parseCookie("example.com\tFALSE\t/\tFALSE\t0\tname\tvalue")
	require.True(t, ok)
	assert.True(t, e.HostOnly)
	assert.True(t, e.session())
}

func TestDefaultCookiePath(t *testing.T) {
	assert.Equal(t, "/", defaultCookiePath(""))
	assert.Equal(t, "/", defaultCookiePath("/file"))
	assert.Equal(t, "/a/b", defaultCookiePath("/a/b/c"))
}

package exchange

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	netscapeHeader = "# Netscape HTTP Cookie File\n"
	httpOnlyPrefix = "#HttpOnly_"
)

// cookieEntry is one cookie as stored in the jar file.
type cookieEntry struct {
	Domain   string
	HostOnly bool
	Path     string
	Secure   bool
	HTTPOnly bool
	Expires  time.Time
	Name     string
	Value    string
}

func (e cookieEntry) key() string { return e.Domain + "\x00" + e.Path + "\x00" + e.Name }

func (e cookieEntry) session() bool { return e.Expires.IsZero() }

// fileJar is an http.CookieJar backed by a Netscape format cookie file.
// Matching is delegated to net/http/cookiejar; fileJar only remembers what
// it has seen so the jar can be written back on Save.
type fileJar struct {
	mu          sync.Mutex
	inner       *cookiejar.Jar
	filename    string
	keepSession bool
	entries     map[string]cookieEntry
	now         func() time.Time
}

func openJar(filename string, keepSession bool) (*fileJar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	j := &fileJar{
		inner:       inner,
		filename:    filename,
		keepSession: keepSession,
		entries:     make(map[string]cookieEntry),
		now:         time.Now,
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *fileJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

func (j *fileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	host := strings.ToLower(u.Hostname())
	for _, c := range cookies {
		domain, hostOnly, ok := cookieDomain(host, c.Domain)
		if !ok {
			continue
		}
		e := cookieEntry{
			Domain:   domain,
			HostOnly: hostOnly,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			Name:     c.Name,
			Value:    c.Value,
		}
		if e.Path == "" || e.Path[0] != '/' {
			e.Path = defaultCookiePath(u.Path)
		}

		switch {
		case c.MaxAge < 0:
			delete(j.entries, e.key())
			continue
		case c.MaxAge > 0:
			e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			if !c.Expires.After(now) {
				delete(j.entries, e.key())
				continue
			}
			e.Expires = c.Expires
		}
		j.entries[e.key()] = e
	}
	j.inner.SetCookies(u, cookies)
}

// Save writes the jar back to its file. Session cookies are kept only when
// the jar was opened with keepSession.
func (j *fileJar) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	lines := make([]string, 0, len(j.entries))
	for _, e := range j.entries {
		if e.session() && !j.keepSession {
			continue
		}
		if !e.session() && !e.Expires.After(now) {
			continue
		}
		lines = append(lines, formatCookie(e))
	}
	sort.Strings(lines)

	if dir := filepath.Dir(j.filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cookie jar directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(j.filename), filepath.Base(j.filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("save cookie jar: %w", err)
	}
	w := bufio.NewWriter(tmp)
	w.WriteString(netscapeHeader)
	for _, l := range lines {
		w.WriteString(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save cookie jar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save cookie jar: %w", err)
	}
	return os.Rename(tmp.Name(), j.filename)
}

func (j *fileJar) load() error {
	f, err := os.Open(j.filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open cookie jar: %w", err)
	}
	defer f.Close()

	now := j.now()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		e, ok := parseCookie(scanner.Text())
		if !ok {
			continue
		}
		if !e.session() && !e.Expires.After(now) {
			continue
		}
		j.entries[e.key()] = e

		scheme := "http"
		if e.Secure {
			scheme = "https"
		}
		c := &http.Cookie{
			Name:     e.Name,
			Value:    e.Value,
			Path:     e.Path,
			Secure:   e.Secure,
			HttpOnly: e.HTTPOnly,
			Expires:  e.Expires,
		}
		if !e.HostOnly {
			c.Domain = e.Domain
		}
		j.inner.SetCookies(&url.URL{Scheme: scheme, Host: e.Domain, Path: e.Path}, []*http.Cookie{c})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read cookie jar: %w", err)
	}
	return nil
}

// cookieDomain applies the Domain attribute rules net/http/cookiejar uses,
// so the file never records a cookie the jar itself refused.
func cookieDomain(host, attr string) (domain string, hostOnly, ok bool) {
	if host == "" {
		return "", false, false
	}
	if attr == "" {
		return host, true, true
	}
	domain = strings.TrimPrefix(strings.ToLower(attr), ".")
	if domain == "" || strings.HasSuffix(domain, ".") {
		return "", false, false
	}
	if net.ParseIP(host) != nil {
		return host, true, domain == host
	}
	if ps, _ := publicsuffix.PublicSuffix(domain); ps == domain {
		// A public suffix may only name the host it came from.
		return host, true, domain == host
	}
	if host != domain && !strings.HasSuffix(host, "."+domain) {
		return "", false, false
	}
	return domain, false, true
}

func formatCookie(e cookieEntry) string {
	domain := e.Domain
	sub := "FALSE"
	if !e.HostOnly {
		domain = "." + domain
		sub = "TRUE"
	}
	if e.HTTPOnly {
		domain = httpOnlyPrefix + domain
	}
	var expires int64
	if !e.session() {
		expires = e.Expires.Unix()
	}
	return strings.Join([]string{
		domain,
		sub,
		e.Path,
		strings.ToUpper(strconv.FormatBool(e.Secure)),
		strconv.FormatInt(expires, 10),
		e.Name,
		e.Value,
	}, "\t")
}

func parseCookie(line string) (cookieEntry, bool) {
	var e cookieEntry
	if strings.HasPrefix(line, httpOnlyPrefix) {
		e.HTTPOnly = true
		line = strings.TrimPrefix(line, httpOnlyPrefix)
	} else if strings.HasPrefix(line, "#") {
		return e, false
	}
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return e, false
	}
	expires, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return e, false
	}
	e.Domain = strings.TrimPrefix(fields[0], ".")
	e.HostOnly = fields[1] != "TRUE"
	e.Path = fields[2]
	e.Secure = fields[3] == "TRUE"
	if expires > 0 {
		e.Expires = time.Unix(expires, 0)
	}
	e.Name = fields[5]
	e.Value = fields[6]
	return e, e.Domain != "" && e.Name != ""
}

func defaultCookiePath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	dir := path.Dir(p)
	if dir == "." {
		return "/"
	}
	return dir
}

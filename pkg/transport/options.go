package transport

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Key names one transport setting.
type Key string

const (
	KeyURL             Key = "url"
	KeyMethod          Key = "method"
	KeyRawBody         Key = "raw_body"
	KeyForm            Key = "form"
	KeyConnectTimeout  Key = "connect_timeout"
	KeyTimeout         Key = "timeout"
	KeyUserAgent       Key = "user_agent"
	KeyHeaders         Key = "headers"
	KeyBodySink        Key = "body_sink"
	KeyHeaderSink      Key = "header_sink"
	KeyVerboseSink     Key = "verbose_sink"
	KeyInsecure        Key = "insecure"
	KeyCookieJar       Key = "cookie_jar"
	KeyCookieSession   Key = "cookie_session"
	KeyFollowRedirects Key = "follow_redirects"
	KeyMaxRedirects    Key = "max_redirects"
	KeyAutoReferer     Key = "auto_referer"
	KeyProxy           Key = "proxy"
	KeyPreProxy        Key = "pre_proxy"
	KeyCompression     Key = "compression"
)

var (
	ErrUnknownOption   = errors.New("unknown transport option")
	ErrDuplicateOption = errors.New("duplicate transport option")
	ErrInvalidOption   = errors.New("invalid transport option value")
)

// Option is one key/value pair of the option list.
type Option struct {
	Key   Key
	Value interface{}
}

func (o Option) String() string {
	switch v := o.Value.(type) {
	case io.Writer:
		return fmt.Sprintf("%s=<%T>", o.Key, v)
	case []byte:
		return fmt.Sprintf("%s=<%d bytes>", o.Key, len(v))
	default:
		return fmt.Sprintf("%s=%v", o.Key, v)
	}
}

// Field is one part of a form payload. A field with a non-empty Path
// refers to a file and is sent as a file part.
type Field struct {
	Name        string
	Value       string
	Path        string
	FileName    string
	ContentType string
}

// IsFile reports whether the field references a file.
func (f Field) IsFile() bool { return f.Path != "" }

func URL(u string) Option                   { return Option{KeyURL, u} }
func Method(m string) Option                { return Option{KeyMethod, m} }
func RawBody(b []byte) Option               { return Option{KeyRawBody, b} }
func Form(fields []Field) Option            { return Option{KeyForm, fields} }
func ConnectTimeout(d time.Duration) Option { return Option{KeyConnectTimeout, d} }
func Timeout(d time.Duration) Option        { return Option{KeyTimeout, d} }
func UserAgent(ua string) Option            { return Option{KeyUserAgent, ua} }
func Headers(lines []string) Option         { return Option{KeyHeaders, lines} }
func BodySink(w io.Writer) Option           { return Option{KeyBodySink, w} }
func HeaderSink(w io.Writer) Option         { return Option{KeyHeaderSink, w} }
func VerboseSink(w io.Writer) Option        { return Option{KeyVerboseSink, w} }
func Insecure(on bool) Option               { return Option{KeyInsecure, on} }
func CookieJar(path string) Option          { return Option{KeyCookieJar, path} }
func CookieSession(on bool) Option          { return Option{KeyCookieSession, on} }
func FollowRedirects(on bool) Option        { return Option{KeyFollowRedirects, on} }
func MaxRedirects(n int) Option             { return Option{KeyMaxRedirects, n} }
func AutoReferer(on bool) Option            { return Option{KeyAutoReferer, on} }
func Proxy(u string) Option                 { return Option{KeyProxy, u} }
func PreProxy(u string) Option              { return Option{KeyPreProxy, u} }
func Compression(on bool) Option            { return Option{KeyCompression, on} }

// Settings is the compiled form of an option list.
type Settings struct {
	URL            string
	Method         string
	RawBody        []byte
	HasRawBody     bool
	Form           []Field
	HasForm        bool
	ConnectTimeout time.Duration
	Timeout        time.Duration
	UserAgent      string
	Headers        []string
	BodySink       io.Writer
	HeaderSink     io.Writer
	VerboseSink    io.Writer
	Insecure       bool
	CookieJar      string
	CookieSession  bool
	Follow         bool
	MaxRedirects   int
	AutoReferer    bool
	Proxy          string
	PreProxy       string
	Compression    bool
}

type setter func(s *Settings, v interface{}) bool

var setters = map[Key]setter{
	KeyURL:    func(s *Settings, v interface{}) (ok bool) { s.URL, ok = v.(string); return ok },
	KeyMethod: func(s *Settings, v interface{}) (ok bool) { s.Method, ok = v.(string); return ok },
	KeyRawBody: func(s *Settings, v interface{}) (ok bool) {
		s.RawBody, ok = v.([]byte)
		s.HasRawBody = ok
		return ok
	},
	KeyForm: func(s *Settings, v interface{}) (ok bool) {
		s.Form, ok = v.([]Field)
		s.HasForm = ok
		return ok
	},
	KeyConnectTimeout: func(s *Settings, v interface{}) (ok bool) {
		s.ConnectTimeout, ok = v.(time.Duration)
		return ok && s.ConnectTimeout >= 0
	},
	KeyTimeout: func(s *Settings, v interface{}) (ok bool) {
		s.Timeout, ok = v.(time.Duration)
		return ok && s.Timeout >= 0
	},
	KeyUserAgent:     func(s *Settings, v interface{}) (ok bool) { s.UserAgent, ok = v.(string); return ok },
	KeyHeaders:       func(s *Settings, v interface{}) (ok bool) { s.Headers, ok = v.([]string); return ok },
	KeyBodySink:      writerSetter(func(s *Settings) *io.Writer { return &s.BodySink }),
	KeyHeaderSink:    writerSetter(func(s *Settings) *io.Writer { return &s.HeaderSink }),
	KeyVerboseSink:   writerSetter(func(s *Settings) *io.Writer { return &s.VerboseSink }),
	KeyInsecure:      func(s *Settings, v interface{}) (ok bool) { s.Insecure, ok = v.(bool); return ok },
	KeyCookieJar:     func(s *Settings, v interface{}) (ok bool) { s.CookieJar, ok = v.(string); return ok },
	KeyCookieSession: func(s *Settings, v interface{}) (ok bool) { s.CookieSession, ok = v.(bool); return ok },
	KeyFollowRedirects: func(s *Settings, v interface{}) (ok bool) {
		s.Follow, ok = v.(bool)
		return ok
	},
	KeyMaxRedirects: func(s *Settings, v interface{}) (ok bool) {
		s.MaxRedirects, ok = v.(int)
		return ok && s.MaxRedirects >= 0
	},
	KeyAutoReferer: func(s *Settings, v interface{}) (ok bool) { s.AutoReferer, ok = v.(bool); return ok },
	KeyProxy:       func(s *Settings, v interface{}) (ok bool) { s.Proxy, ok = v.(string); return ok },
	KeyPreProxy:    func(s *Settings, v interface{}) (ok bool) { s.PreProxy, ok = v.(string); return ok },
	KeyCompression: func(s *Settings, v interface{}) (ok bool) { s.Compression, ok = v.(bool); return ok },
}

func writerSetter(field func(*Settings) *io.Writer) setter {
	return func(s *Settings, v interface{}) bool {
		w, ok := v.(io.Writer)
		if !ok || w == nil {
			return false
		}
		*field(s) = w
		return true
	}
}

// Compile folds opts into Settings. The result does not depend on option
// order; unknown keys, duplicates and mistyped values are rejected.
func Compile(opts []Option) (Settings, error) {
	s := Settings{Method: "GET"}
	seen := make(map[Key]bool, len(opts))
	for _, o := range opts {
		set, ok := setters[o.Key]
		if !ok {
			return Settings{}, fmt.Errorf("%w: %q", ErrUnknownOption, o.Key)
		}
		if seen[o.Key] {
			return Settings{}, fmt.Errorf("%w: %q", ErrDuplicateOption, o.Key)
		}
		seen[o.Key] = true
		if !set(&s, o.Value) {
			return Settings{}, fmt.Errorf("%w: %s", ErrInvalidOption, o)
		}
	}
	if s.HasRawBody && s.HasForm {
		return Settings{}, fmt.Errorf("%w: %q and %q are exclusive", ErrInvalidOption, KeyRawBody, KeyForm)
	}
	return s, nil
}

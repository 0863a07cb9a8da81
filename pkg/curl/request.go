package curl

import (
	"fmt"
	"io"
)

// Method is one of the supported HTTP verbs.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

func (m Method) valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete:
		return true
	}
	return false
}

// hasBody reports whether payloads are sent for m.
func (m Method) hasBody() bool {
	return m == MethodPost || m == MethodPut
}

// Payload is a request body: Raw or Form.
type Payload interface {
	isPayload()
}

// Raw is sent as-is, with no implicit Content-Type.
type Raw []byte

// Text is a Raw payload from a string.
func Text(s string) Raw { return Raw(s) }

func (Raw) isPayload() {}

// Form is a field-map payload, always encoded as multipart/form-data.
type Form map[string]FormValue

func (Form) isPayload() {}

// FormValue is a Form entry: Value or File.
type FormValue interface {
	isFormValue()
}

// Value is a plain text form field.
type Value string

func (Value) isFormValue() {}

// File references a file on disk to upload. Name defaults to the base of
// Path and ContentType is sniffed from the content when empty.
type File struct {
	Path        string
	Name        string
	ContentType string
}

func (File) isFormValue() {}

// Request describes one exchange.
type Request struct {
	Method Method
	URL    string
	// Payload is ignored for GET and DELETE.
	Payload Payload
	// Header is merged over Config.Headers.
	Header map[string]string
	// Sink, when set, receives the body instead of the Response.
	Sink io.Writer
}

func (r Request) validate() error {
	if r.URL == "" {
		return fmt.Errorf("%w: empty url", ErrInvalidRequest)
	}
	if !r.Method.valid() {
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, r.Method)
	}
	return nil
}

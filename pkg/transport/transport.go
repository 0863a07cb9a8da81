// Package transport defines the blocking HTTP exchange capability the curl
// executor drives, and the transport-neutral option list it is configured
// with.
package transport

import (
	"context"
	"errors"
)

// ErrTooManyRedirects is wrapped by exchange errors caused by hitting the
// redirect cap.
var ErrTooManyRedirects = errors.New("too many redirects")

// Transport hands out fresh handles, one per exchange.
type Transport interface {
	Open() (Handle, error)
}

// Handle performs a single exchange. Close must release everything the
// handle acquired and is safe to call after a failed Exchange.
type Handle interface {
	Exchange(ctx context.Context, opts []Option) (*Result, error)
	Close() error
}

// Result is what the handle learned about the exchange. Exchange returns a
// non-nil Result even when it fails, carrying whatever status and info
// were observed before the failure.
type Result struct {
	StatusCode int
	Info       map[string]interface{}
}

// Info keys reported by transports, named after their curl_getinfo
// counterparts.
const (
	InfoURL              = "url"
	InfoHTTPCode         = "http_code"
	InfoContentType      = "content_type"
	InfoHeaderSize       = "header_size"
	InfoSizeDownload     = "size_download"
	InfoSizeUpload       = "size_upload"
	InfoRedirectCount    = "redirect_count"
	InfoRedirectURL      = "redirect_url"
	InfoPrimaryIP        = "primary_ip"
	InfoPrimaryPort      = "primary_port"
	InfoTotalTime        = "total_time"
	InfoNameLookupTime   = "namelookup_time"
	InfoConnectTime      = "connect_time"
	InfoAppConnectTime   = "appconnect_time"
	InfoStartTransfer    = "starttransfer_time"
	InfoHTTPVersion      = "http_version"
	InfoConnectionReused = "conn_reused"
)

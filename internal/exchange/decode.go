package exchange

import (
	"bufio"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// acceptEncoding lists the content codings decodeBody understands.
const acceptEncoding = "gzip, deflate, zstd"

// decodeBody wraps body with a decoder for the response's Content-Encoding.
// Unknown codings pass through untouched, and so does an empty body:
// 204, 304 and unfollowed redirects may still carry a Content-Encoding.
func decodeBody(body io.Reader, contentEncoding string) (io.ReadCloser, error) {
	coding := strings.ToLower(strings.TrimSpace(contentEncoding))
	if coding == "" || coding == "identity" {
		return io.NopCloser(body), nil
	}
	br := bufio.NewReader(body)
	if _, err := br.Peek(1); err == io.EOF {
		return io.NopCloser(br), nil
	}

	switch coding {
	case "gzip", "x-gzip":
		return gzip.NewReader(br)
	case "deflate":
		if isZlib(br) {
			return zlib.NewReader(br)
		}
		return flate.NewReader(br), nil
	case "zstd":
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return io.NopCloser(br), nil
	}
}

// isZlib peeks for a zlib header. Servers disagree on whether "deflate"
// means zlib-wrapped or raw deflate.
func isZlib(br *bufio.Reader) bool {
	hdr, err := br.Peek(2)
	if err != nil {
		return false
	}
	return hdr[0]&0x0f == 8 && (uint16(hdr[0])<<8|uint16(hdr[1]))%31 == 0
}

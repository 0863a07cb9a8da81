package exchange

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, coding string, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch coding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "zlib":
		w = zlib.NewWriter(&buf)
	case "flate":
		w, err = flate.NewWriter(&buf, flate.DefaultCompression)
	case "zstd":
		w, err = zstd.NewWriter(&buf)
	}
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodeBody(t *testing.T) {
	payload := bytes.Repeat([]byte("curl client "), 64)

	tests := []struct {
		name     string
		coding   string
		encoding string
	}{
		{"gzip", "gzip", "gzip"},
		{"x-gzip alias", "gzip", "X-GZIP"},
		{"zlib wrapped deflate", "zlib", "deflate"},
		{"raw deflate", "flate", "deflate"},
		{"zstd", "zstd", "zstd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := decodeBody(bytes.NewReader(encode(t, tt.coding, payload)), tt.encoding)
			require.NoError(t, err)
			defer r.Close()

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}

	t.Run("identity passes through", func(t *testing.T) {
		r, err := decodeBody(bytes.NewReader(payload), "")
		require.NoError(t, err)
		got, _ := io.ReadAll(r)
		assert.Equal(t, payload, got)
	})

	for _, encoding := range []string{"gzip", "deflate", "zstd"} {
		t.Run("empty "+encoding+" body", func(t *testing.T) {
			r, err := decodeBody(bytes.NewReader(nil), encoding)
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}

	t.Run("corrupt gzip", func(t *testing.T) {
		_, err := decodeBody(bytes.NewReader([]byte("not gzip")), "gzip")
		assert.Error(t, err)
	})
}

package echo

import (
	"bytes"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// handleEncoded answers with a JSON document compressed with coding,
// whatever the client asked for.
func handleEncoded(coding string) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := describe(c)
		out[codingKey(coding)] = true
		doc, err := sonic.Marshal(out)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		compressed, err := compress(coding, doc)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Encoding", coding)
		c.Data(http.StatusOK, "application/json", compressed)
	}
}

func codingKey(coding string) string {
	switch coding {
	case "gzip":
		return "gzipped"
	case "deflate":
		return "deflated"
	default:
		return coding
	}
}

func compress(coding string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch coding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "deflate":
		w = zlib.NewWriter(&buf)
	default:
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		w = enc
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

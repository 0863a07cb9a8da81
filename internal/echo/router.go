// Package echo is an httpbin style server the CLI can start and the tests
// run exchanges against. Every endpoint reflects what it received.
package echo

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxMemory = 32 << 20

// Options configures the router.
type Options struct {
	// Gatherer is exposed on /metrics when set.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter builds the echo routes.
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Accept", "Origin"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/get", handleGet)
	router.GET("/headers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"headers": requestHeaders(c.Request)})
	})
	router.POST("/post", handleBody)
	router.PUT("/put", handleBody)
	router.DELETE("/delete", handleBody)
	router.Any("/anything", handleBody)

	router.GET("/status/:code", handleStatus)
	router.GET("/redirect/:n", handleRedirect)
	router.GET("/redirect-to", handleRedirectTo)
	router.GET("/response-headers", handleResponseHeaders)
	router.GET("/bytes/:n", handleBytes)
	router.GET("/delay/:seconds", handleDelay)

	router.GET("/cookies", handleCookies)
	router.GET("/cookies/set", handleSetCookies)
	router.GET("/cookies/delete", handleDeleteCookies)

	router.GET("/gzip", handleEncoded("gzip"))
	router.GET("/deflate", handleEncoded("deflate"))
	router.GET("/zstd", handleEncoded("zstd"))

	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("echo request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func requestHeaders(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.Header)+1)
	for k, v := range r.Header {
		out[k] = strings.Join(v, ", ")
	}
	out["Host"] = r.Host
	return out
}

func requestArgs(r *http.Request) map[string]string {
	out := make(map[string]string)
	for k, v := range r.URL.Query() {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func describe(c *gin.Context) gin.H {
	return gin.H{
		"args":    requestArgs(c.Request),
		"headers": requestHeaders(c.Request),
		"origin":  c.ClientIP(),
		"url":     requestURL(c.Request),
		"method":  c.Request.Method,
	}
}

func handleGet(c *gin.Context) {
	c.JSON(http.StatusOK, describe(c))
}

func handleBody(c *gin.Context) {
	out := describe(c)
	form := map[string]string{}
	files := map[string]string{}
	data := ""
	var parsed interface{}

	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := c.Request.ParseMultipartForm(maxMemory); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		for k, v := range c.Request.MultipartForm.Value {
			form[k] = strings.Join(v, ", ")
		}
		for k, fhs := range c.Request.MultipartForm.File {
			content, err := readFormFile(fhs[0])
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			files[k] = content
		}
	case "application/x-www-form-urlencoded":
		if err := c.Request.ParseForm(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		for k, v := range c.Request.PostForm {
			form[k] = strings.Join(v, ", ")
		}
	default:
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		data = string(raw)
		if mediaType == "application/json" {
			if err := sonic.Unmarshal(raw, &parsed); err != nil {
				parsed = nil
			}
		}
	}

	out["form"] = form
	out["files"] = files
	out["data"] = data
	out["json"] = parsed
	c.JSON(http.StatusOK, out)
}

func readFormFile(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	return string(raw), err
}

func handleStatus(c *gin.Context) {
	code, err := strconv.Atoi(c.Param("code"))
	if err != nil || code < 100 || code > 599 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status code"})
		return
	}
	c.Status(code)
}

func handleRedirect(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid redirect count"})
		return
	}
	target := "/get"
	if n > 1 {
		target = "/redirect/" + strconv.Itoa(n-1)
	}
	c.Redirect(http.StatusFound, target)
}

func handleRedirectTo(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing url"})
		return
	}
	code := http.StatusFound
	if s := c.Query("status_code"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 300 && v <= 308 {
			code = v
		}
	}
	c.Redirect(code, target)
}

func handleResponseHeaders(c *gin.Context) {
	out := gin.H{}
	for k, v := range c.Request.URL.Query() {
		for _, value := range v {
			c.Writer.Header().Add(k, value)
		}
		out[k] = strings.Join(v, ", ")
	}
	c.JSON(http.StatusOK, out)
}

func handleBytes(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 0 || n > maxMemory {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size"})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", []byte(strings.Repeat("x", n)))
}

func handleDelay(c *gin.Context) {
	seconds, err := strconv.ParseFloat(c.Param("seconds"), 64)
	if err != nil || seconds < 0 || seconds > 10 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delay"})
		return
	}
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	case <-c.Request.Context().Done():
		return
	}
	c.JSON(http.StatusOK, describe(c))
}

func handleCookies(c *gin.Context) {
	cookies := map[string]string{}
	for _, ck := range c.Request.Cookies() {
		cookies[ck.Name] = ck.Value
	}
	c.JSON(http.StatusOK, gin.H{"cookies": cookies})
}

func handleSetCookies(c *gin.Context) {
	for k, v := range c.Request.URL.Query() {
		http.SetCookie(c.Writer, &http.Cookie{Name: k, Value: v[0], Path: "/"})
	}
	c.Redirect(http.StatusFound, "/cookies")
}

func handleDeleteCookies(c *gin.Context) {
	for k := range c.Request.URL.Query() {
		http.SetCookie(c.Writer, &http.Cookie{Name: k, Path: "/", MaxAge: -1})
	}
	c.Redirect(http.StatusFound, "/cookies")
}

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompressionRouter(cm *CompressionMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(cm.Handler())
	r.GET("/large", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"items": strings.Repeat("eco ", 1000)})
	})
	r.GET("/small", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/text", func(c *gin.Context) {
		c.Data(http.StatusOK, "image/png", make([]byte, 4096))
	})
	return r
}

func TestCompressionCompressesLargeJSON(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	r := newCompressionRouter(cm)

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "br, gzip;q=0.8")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Contains(t, w.Header().Values("Vary"), "Accept-Encoding")

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"items":"eco eco`)

	stats := cm.GetStats()
	assert.EqualValues(t, 1, stats["compressed_requests"])
	assert.Less(t, stats["compression_ratio"].(float64), 0.5)
}

func TestCompressionSkipsSmallAndUnsupported(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	r := newCompressionRouter(cm)

	tests := []struct {
		name   string
		path   string
		accept string
		status int
	}{
		{"small body", "/small", "gzip", http.StatusCreated},
		{"no content", "/empty", "gzip", http.StatusNoContent},
		{"binary content", "/text", "gzip", http.StatusOK},
		{"client without gzip", "/large", "identity", http.StatusOK},
		{"gzip refused", "/large", "gzip;q=0", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Accept-Encoding", tt.accept)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Empty(t, w.Header().Get("Content-Encoding"))
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestClientAcceptsGzip(t *testing.T) {
	tests := map[string]bool{
		"":                  false,
		"gzip":              true,
		"GZIP":              true,
		"deflate, gzip":     true,
		"gzip;q=0.5":        true,
		"gzip; q=0":         false,
		"br;q=1, identity":  false,
		"x-gzip, deflate":   false,
		"gzip;q=notanumber": false,
	}

	for header, expected := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", header)
		assert.Equal(t, expected, clientAcceptsGzip(req), header)
	}
}

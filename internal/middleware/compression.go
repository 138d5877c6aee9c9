// Package middleware holds HTTP middleware shared by the API server.
package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum response size to compress (bytes)
	CompressionLevel int      // Gzip compression level (1-9, 9 is best compression)
	ContentTypes     []string // Content types to compress
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
		},
	}
}

// CompressionMiddleware provides gzip compression for HTTP responses
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	level := config.CompressionLevel
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
		config.CompressionLevel = level
	}

	return &CompressionMiddleware{
		config: config,
		stats:  NewCompressionStats(),
		pool: sync.Pool{
			New: func() interface{} {
				gz, _ := gzip.NewWriterLevel(io.Discard, level)
				return gz
			},
		},
	}
}

// Handler buffers the response of every request from a gzip-capable
// client and compresses it when it is large enough.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !clientAcceptsGzip(c.Request) || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		original := c.Writer
		bw := &bufferedWriter{ResponseWriter: original, status: original.Status()}
		c.Writer = bw
		defer func() { c.Writer = original }()

		c.Next()

		cm.flush(original, bw)
	}
}

func (cm *CompressionMiddleware) flush(w gin.ResponseWriter, bw *bufferedWriter) {
	body := bw.buf.Bytes()

	if !bw.written {
		w.WriteHeader(bw.status)
		w.WriteHeaderNow()
		return
	}

	if len(body) < cm.config.MinSize || !bodyAllowed(bw.status) ||
		w.Header().Get("Content-Encoding") != "" || !cm.shouldCompress(w.Header().Get("Content-Type")) {
		cm.stats.RecordRequest(int64(len(body)), int64(len(body)), false)
		w.WriteHeader(bw.status)
		if _, err := w.Write(body); err != nil {
			slog.Debug("Failed to write response", "error", err)
		}
		return
	}

	var compressed bytes.Buffer
	gz := cm.pool.Get().(*gzip.Writer)
	gz.Reset(&compressed)
	_, err := gz.Write(body)
	if err == nil {
		err = gz.Close()
	}
	cm.pool.Put(gz)

	if err != nil {
		slog.Warn("Gzip compression failed, sending identity response", "error", err)
		cm.stats.RecordRequest(int64(len(body)), int64(len(body)), false)
		w.WriteHeader(bw.status)
		_, _ = w.Write(body)
		return
	}

	h := w.Header()
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")
	h.Set("Content-Length", strconv.Itoa(compressed.Len()))
	cm.stats.RecordRequest(int64(len(body)), int64(compressed.Len()), true)

	w.WriteHeader(bw.status)
	if _, err := w.Write(compressed.Bytes()); err != nil {
		slog.Debug("Failed to write compressed response", "error", err)
	}
}

func bodyAllowed(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

// clientAcceptsGzip checks if the client accepts gzip compression
func clientAcceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, params, _ := strings.Cut(part, ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		q := strings.TrimPrefix(strings.TrimSpace(params), "q=")
		if q == "" {
			return true
		}
		weight, err := strconv.ParseFloat(q, 64)
		return err == nil && weight > 0
	}
	return false
}

// shouldCompress checks if the content type should be compressed
func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	contentType = strings.ToLower(contentType)
	for _, ct := range cm.config.ContentTypes {
		if strings.HasPrefix(contentType, ct) {
			return true
		}
	}
	return false
}

// bufferedWriter holds the status and body until the handler chain
// returns.
type bufferedWriter struct {
	gin.ResponseWriter
	buf     bytes.Buffer
	status  int
	written bool
}

func (w *bufferedWriter) WriteHeader(code int) {
	if code > 0 {
		w.status = code
	}
}

func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	w.written = true
	return w.buf.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	w.written = true
	return w.buf.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	return w.status
}

func (w *bufferedWriter) Size() int {
	if !w.written {
		return -1
	}
	return w.buf.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.written
}

func (w *bufferedWriter) Flush() {}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	mutex              sync.RWMutex
}

// NewCompressionStats creates new compression statistics
func NewCompressionStats() *CompressionStats {
	return &CompressionStats{}
}

// RecordRequest records a request's compression stats
func (cs *CompressionStats) RecordRequest(originalSize, compressedSize int64, compressed bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.TotalRequests++
	cs.TotalBytes += originalSize

	if compressed {
		cs.CompressedRequests++
		cs.CompressedBytes += compressedSize
	} else {
		cs.CompressedBytes += originalSize
	}
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	compressionRatio := float64(1)
	if cs.TotalBytes > 0 {
		compressionRatio = float64(cs.CompressedBytes) / float64(cs.TotalBytes)
	}

	return map[string]interface{}{
		"total_requests":      cs.TotalRequests,
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"compressed_bytes":    cs.CompressedBytes,
		"compression_ratio":   compressionRatio,
		"compression_savings": 1.0 - compressionRatio,
	}
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.GetStats()
}

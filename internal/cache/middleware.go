package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/ecoscan/internal/monitoring"
	"github.com/gin-gonic/gin"
)

const maxCachedBody = 1 << 20

// Middleware caches successful JSON responses of a POST route keyed by the
// request body. Scoring is deterministic, so an identical body always maps
// to an identical response.
func Middleware(store Store, ttl time.Duration, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost {
			ctx.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxCachedBody+1))
		if err != nil || len(body) > maxCachedBody {
			ctx.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), ctx.Request.Body))
			ctx.Next()
			return
		}
		ctx.Request.Body = io.NopCloser(bytes.NewReader(body))

		cacheKey := generateKey(ctx.FullPath(), body)

		cachedData, found, err := store.Get(ctx.Request.Context(), cacheKey)
		if err != nil {
			slog.Warn("Response cache unavailable", "error", err)
		}
		if found {
			metrics.IncrementCacheHit()
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", cachedData)
			ctx.Abort()
			return
		}

		metrics.IncrementCacheMiss()
		ctx.Header("X-Cache", "MISS")

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Next()

		if wrapper.Status() == http.StatusOK && wrapper.body.Len() > 0 {
			if err := store.Set(ctx.Request.Context(), cacheKey, wrapper.body.Bytes(), ttl); err != nil {
				slog.Warn("Failed to cache response", "error", err)
			}
		}
	}
}

// generateKey hashes the route and body into a fixed-size key.
func generateKey(route string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(route))
	h.Write([]byte{0})
	h.Write(body)
	return "response:" + hex.EncodeToString(h.Sum(nil))
}

// responseWriter wraps gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

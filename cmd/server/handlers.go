package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/ecoscan/internal/database"
	apperrors "github.com/ZanzyTHEbar/ecoscan/internal/errors"
	"github.com/ZanzyTHEbar/ecoscan/internal/history"
	"github.com/ZanzyTHEbar/ecoscan/internal/monitoring"
	"github.com/ZanzyTHEbar/ecoscan/internal/resilience"
	"github.com/ZanzyTHEbar/ecoscan/internal/types"
)

func (s *server) handleHealth(c *gin.Context) {
	services := s.degradation.GetAllServiceHealth()

	status, code := "ok", http.StatusOK
	for _, service := range services {
		if service.Level == resilience.LevelEmergency {
			status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, gin.H{
		"status":      status,
		"version":     version,
		"home_region": s.cfg.HomeRegion,
		"services":    services,
		"timestamp":   s.now().UTC().Format(time.RFC3339),
	})
}

func (s *server) handleServiceHealth(c *gin.Context) {
	pools := make(map[string]interface{}, len(s.pools))
	for name, stats := range s.pools {
		pools[name] = stats()
	}

	c.JSON(http.StatusOK, gin.H{
		"services": s.degradation.GetAllServiceHealth(),
		"circuit_breakers": gin.H{
			"openfoodfacts": gin.H{
				"state":    s.breaker.State(),
				"failures": s.breaker.Failures(),
			},
		},
		"pools":        pools,
		"cache":        s.store.Stats(),
		"rate_limiter": s.limiter.GetStats(),
		"retention":    s.retention.RetentionInfo(),
	})
}

func (s *server) handleMetrics(c *gin.Context) {
	stats := s.metrics.GetStats()
	stats["compression"] = s.compression.GetStats()
	c.JSON(http.StatusOK, stats)
}

func (s *server) handleRegions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"home":    s.cfg.HomeRegion,
		"regions": s.lookup.Tables().Regions(),
	})
}

func parseExplain(c *gin.Context) (bool, error) {
	raw := c.Query("explain")
	if raw == "" {
		return false, nil
	}
	explain, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.NewValidationError("explain must be a boolean", raw)
	}
	return explain, nil
}

func (s *server) handleProduct(c *gin.Context) {
	explain, err := parseExplain(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	result, err := s.lookup.Lookup(c.Request.Context(), c.Param("barcode"), c.Query("region"), explain)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *server) handleScore(c *gin.Context) {
	var req types.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidationError("Invalid request body", err.Error()))
		return
	}

	result, err := s.lookup.Score(req.Product, req.Region, req.Explain)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *server) handleRecordScan(c *gin.Context) {
	var req types.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidationError("Invalid request body", err.Error()))
		return
	}

	decision, err := history.ParseDecision(req.Decision)
	if err != nil {
		_ = c.Error(apperrors.NewValidationError("Unknown decision", req.Decision))
		return
	}

	result, err := s.lookup.Lookup(c.Request.Context(), req.Barcode, req.Region, false)
	if err != nil {
		_ = c.Error(err)
		return
	}

	scan := history.Freeze(result.Product, decision, s.id(), s.now())
	impact, err := s.repo.SaveScan(c.Request.Context(), scan, result.Region)
	if err != nil {
		_ = c.Error(apperrors.NewDatabaseError("save scan", err))
		return
	}
	s.metrics.IncrementScanRecorded()

	monitoring.GetLogger(c, s.logger).Info("Scan recorded",
		"scan_id", scan.ID,
		"product_id", scan.ProductID,
		"decision", string(decision),
		"source", string(result.Source))

	c.JSON(http.StatusCreated, gin.H{
		"scan":   scan,
		"source": result.Source,
		"impact": impact.Report(),
	})
}

func (s *server) id() string {
	if s.newID != nil {
		return s.newID()
	}
	return uuid.NewString()
}

// historyQuery reads search, decision and sort from the query string.
func (s *server) historyQuery(c *gin.Context) (history.Query, error) {
	var q history.Query

	if search := s.security.SanitizeInput(c.Query("search")); search != "" {
		if err := s.security.ValidateInput(search); err != nil {
			return q, apperrors.NewValidationError("Invalid search", err.Error())
		}
		q.Search = search
	}

	if raw := strings.TrimSpace(c.Query("decision")); raw != "" && !strings.EqualFold(raw, "all") {
		decision, err := history.ParseDecision(raw)
		if err != nil {
			return q, apperrors.NewValidationError("Unknown decision", raw)
		}
		q.Decision = decision
	}

	sort, err := history.ParseSortOrder(c.Query("sort"))
	if err != nil {
		return q, apperrors.NewValidationError("Unknown sort order", c.Query("sort"))
	}
	q.Sort = sort

	return q, nil
}

func (s *server) listScans(c *gin.Context) ([]history.ScanHistory, bool) {
	q, err := s.historyQuery(c)
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}

	scans, err := s.repo.ListScans(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(apperrors.NewDatabaseError("list scans", err))
		return nil, false
	}
	return scans, true
}

func (s *server) handleListHistory(c *gin.Context) {
	scans, ok := s.listScans(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scans": scans,
		"count": len(scans),
	})
}

func (s *server) handleHistorySummary(c *gin.Context) {
	scans, ok := s.listScans(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, history.Summarize(scans))
}

func scanError(op, id string, err error) error {
	if errors.Is(err, database.ErrScanNotFound) {
		return apperrors.NewNotFoundError("scan", id, err)
	}
	return apperrors.NewDatabaseError(op, err)
}

func (s *server) handleGetScan(c *gin.Context) {
	id := c.Param("id")

	scan, err := s.repo.GetScan(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(scanError("get scan", id, err))
		return
	}

	c.JSON(http.StatusOK, scan)
}

func (s *server) handleDeleteScan(c *gin.Context) {
	id := c.Param("id")

	if err := s.repo.DeleteScan(c.Request.Context(), id); err != nil {
		_ = c.Error(scanError("delete scan", id, err))
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *server) handleResetHistory(c *gin.Context) {
	deleted, err := s.repo.ResetHistory(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.NewDatabaseError("reset history", err))
		return
	}

	monitoring.GetLogger(c, s.logger).Warn("Scan history reset", "deleted", deleted)
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *server) handleImpact(c *gin.Context) {
	impact, err := s.repo.GetImpact(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.NewDatabaseError("get impact", err))
		return
	}

	c.JSON(http.StatusOK, impact.Report())
}

func (s *server) handleInvalidateProduct(c *gin.Context) {
	barcode := c.Param("barcode")
	if err := s.lookup.Invalidate(c.Request.Context(), barcode, c.Query("region")); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *server) handlePurge(c *gin.Context) {
	if !s.retention.Enabled() {
		_ = c.Error(apperrors.NewValidationError("History retention is disabled"))
		return
	}

	purged, err := s.retention.PurgeExpired(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.NewDatabaseError("purge scans", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"purged": purged,
		"cutoff": s.retention.Cutoff(),
	})
}

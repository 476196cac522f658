package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/gescon/internal/httpx"
	"github.com/diewo77/gescon/internal/services"
	"github.com/patrickmn/go-cache"
)

const dashboardCacheKey = "dashboard-stats"

// DashboardHandler serves the aggregator output in one payload. Results are
// cached briefly; every mutating handler flushes the cache, so the cached
// copy can never outlive the snapshot it was derived from.
type DashboardHandler struct {
	Reports *services.ReportingService
	Cache   *cache.Cache
}

func NewDashboardHandler(reports *services.ReportingService, c *cache.Cache) *DashboardHandler {
	return &DashboardHandler{Reports: reports, Cache: c}
}

// Stats: GET /api/dashboard-stats
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if cached, found := h.Cache.Get(dashboardCacheKey); found {
		httpx.JSON(w, http.StatusOK, cached)
		return
	}
	stats, err := h.Reports.Dashboard(time.Now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Cache.Set(dashboardCacheKey, stats, cache.DefaultExpiration)
	httpx.JSON(w, http.StatusOK, stats)
}

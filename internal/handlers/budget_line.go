package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/diewo77/gescon/internal/httpx"
	"github.com/diewo77/gescon/internal/services"
	"github.com/patrickmn/go-cache"
)

type BudgetLineHandler struct {
	Svc     *services.BudgetLineService
	Reports *services.ReportingService
	Cache   *cache.Cache
}

func NewBudgetLineHandler(svc *services.BudgetLineService, reports *services.ReportingService, c *cache.Cache) *BudgetLineHandler {
	return &BudgetLineHandler{Svc: svc, Reports: reports, Cache: c}
}

// List: GET /api/budget-lines. The derived fields come from the reporting
// aggregator; nothing is recomputed inline here.
func (h *BudgetLineHandler) List(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Reports.BudgetLineConsumption()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}

// Create: POST /api/budget-lines
func (h *BudgetLineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code          string   `json:"code"`
		Label         string   `json:"label"`
		Description   string   `json:"description"`
		InitialAmount *float64 `json:"initialAmount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	line, err := h.Svc.Create(services.BudgetLineInput{
		Code:          req.Code,
		Label:         req.Label,
		Description:   req.Description,
		InitialAmount: req.InitialAmount,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Cache.Flush()
	httpx.JSON(w, http.StatusCreated, line)
}

// Delete: DELETE /api/budget-lines/{id}
func (h *BudgetLineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.Delete(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Cache.Flush()
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

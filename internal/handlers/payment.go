package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/diewo77/gescon/internal/httpx"
	"github.com/diewo77/gescon/internal/models"
	"github.com/diewo77/gescon/internal/services"
	"github.com/patrickmn/go-cache"
)

type PaymentHandler struct {
	Svc   *services.PaymentService
	Cache *cache.Cache
}

func NewPaymentHandler(svc *services.PaymentService, c *cache.Cache) *PaymentHandler {
	return &PaymentHandler{Svc: svc, Cache: c}
}

// Create: POST /api/payments
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConventionID  uint    `json:"conventionId"`
		Percentage    float64 `json:"percentage"`
		ScheduledDate string  `json:"scheduledDate"`
		SettledDate   string  `json:"settledDate"`
		Status        string  `json:"status"`
		Note          string  `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	scheduled, ok := parseOptionalDate(req.ScheduledDate)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"scheduledDate": "invalid_date"})
		return
	}
	settled, ok := parseOptionalDate(req.SettledDate)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"settledDate": "invalid_date"})
		return
	}
	payment, err := h.Svc.Add(services.AddPaymentInput{
		ConventionID:  req.ConventionID,
		Percentage:    req.Percentage,
		ScheduledDate: scheduled,
		SettledDate:   settled,
		Status:        models.PaymentStatus(req.Status),
		Note:          req.Note,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Cache.Flush()
	httpx.JSON(w, http.StatusCreated, payment)
}

// List: GET /api/payments?conventionId=...
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	convID, err := strconv.ParseUint(r.URL.Query().Get("conventionId"), 10, 64)
	if err != nil || convID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "missing_convention_id", nil)
		return
	}
	payments, err := h.Svc.ListByConvention(uint(convID))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

// Cancel: POST /api/payments/{id}/cancel
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	payment, err := h.Svc.Cancel(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Cache.Flush()
	httpx.JSON(w, http.StatusOK, payment)
}

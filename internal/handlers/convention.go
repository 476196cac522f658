package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/diewo77/gescon/internal/auth"
	"github.com/diewo77/gescon/internal/gate"
	"github.com/diewo77/gescon/internal/httpx"
	"github.com/diewo77/gescon/internal/models"
	"github.com/diewo77/gescon/internal/services"
	"github.com/patrickmn/go-cache"
)

// PermReplacePayments gates wholesale payment replacement; only admin-level
// callers carry it.
var PermReplacePayments = gate.NewPermission("convention", gate.ActionReplacePayments)

type ConventionHandler struct {
	Svc   *services.ConventionService
	Gate  *gate.Gate
	Cache *cache.Cache
}

func NewConventionHandler(svc *services.ConventionService, g *gate.Gate, c *cache.Cache) *ConventionHandler {
	return &ConventionHandler{Svc: svc, Gate: g, Cache: c}
}

type paymentReq struct {
	Percentage    float64 `json:"percentage"`
	ScheduledDate string  `json:"scheduledDate"`
	SettledDate   string  `json:"settledDate"`
	Status        string  `json:"status"`
	Note          string  `json:"note"`
}

func (p paymentReq) toInput() (services.PaymentInput, bool) {
	scheduled, ok := parseOptionalDate(p.ScheduledDate)
	if !ok {
		return services.PaymentInput{}, false
	}
	settled, ok := parseOptionalDate(p.SettledDate)
	if !ok {
		return services.PaymentInput{}, false
	}
	return services.PaymentInput{
		Percentage:    p.Percentage,
		ScheduledDate: scheduled,
		SettledDate:   settled,
		Status:        models.PaymentStatus(p.Status),
		Note:          p.Note,
	}, true
}

// List: GET /api/conventions
func (h *ConventionHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.Svc.List()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

// Get: GET /api/conventions/{id}
func (h *ConventionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	view, err := h.Svc.Get(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

// Balance: GET /api/conventions/{id}/balance
func (h *ConventionHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	balance, err := h.Svc.Balance(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

// Create: POST /api/conventions
func (h *ConventionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number       string  `json:"number"`
		BudgetLineID uint    `json:"budgetLineId"`
		MandateID    uint    `json:"mandateId"`
		PartnerID    uint    `json:"partnerId"`
		Objective    string  `json:"objective"`
		Description  string  `json:"description"`
		StartDate    string  `json:"startDate"`
		EndDate      string  `json:"endDate"`
		TotalAmount  float64 `json:"totalAmount"`
		Status       string  `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	start, _ := parseDate(req.StartDate)
	end, _ := parseDate(req.EndDate)
	conv, err := h.Svc.Create(services.CreateConventionInput{
		Number:       req.Number,
		BudgetLineID: req.BudgetLineID,
		MandateID:    req.MandateID,
		PartnerID:    req.PartnerID,
		Objective:    req.Objective,
		Description:  req.Description,
		StartDate:    start,
		EndDate:      end,
		TotalAmount:  req.TotalAmount,
		Status:       models.ConventionStatus(req.Status),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Cache.Flush()
	httpx.JSON(w, http.StatusCreated, conv)
}

// Update: PUT/PATCH /api/conventions/{id} — partial update, with optional
// wholesale payment replacement for admin-level callers.
func (h *ConventionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req struct {
		Number       *string       `json:"number"`
		BudgetLineID *uint         `json:"budgetLineId"`
		MandateID    *uint         `json:"mandateId"`
		PartnerID    *uint         `json:"partnerId"`
		Objective    *string       `json:"objective"`
		Description  *string       `json:"description"`
		StartDate    *string       `json:"startDate"`
		EndDate      *string       `json:"endDate"`
		TotalAmount  *float64      `json:"totalAmount"`
		Status       *string       `json:"status"`
		Payments     *[]paymentReq `json:"payments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}

	in := services.UpdateConventionInput{
		Number:       req.Number,
		BudgetLineID: req.BudgetLineID,
		MandateID:    req.MandateID,
		PartnerID:    req.PartnerID,
		Objective:    req.Objective,
		Description:  req.Description,
		TotalAmount:  req.TotalAmount,
	}
	if req.StartDate != nil {
		t, ok := parseDate(*req.StartDate)
		if !ok {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"startDate": "invalid_date"})
			return
		}
		in.StartDate = &t
	}
	if req.EndDate != nil {
		t, ok := parseDate(*req.EndDate)
		if !ok {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"endDate": "invalid_date"})
			return
		}
		in.EndDate = &t
	}
	if req.Status != nil {
		st := models.ConventionStatus(*req.Status)
		in.Status = &st
	}
	if req.Payments != nil {
		role := auth.RoleFromContext(r.Context())
		if !h.Gate.Can(role, PermReplacePayments) {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
			return
		}
		inputs := make([]services.PaymentInput, 0, len(*req.Payments))
		for _, p := range *req.Payments {
			pi, ok := p.toInput()
			if !ok {
				httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"payments": "invalid_date"})
				return
			}
			inputs = append(inputs, pi)
		}
		in.Payments = &inputs
	}

	view, err := h.Svc.Update(id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Cache.Flush()
	httpx.JSON(w, http.StatusOK, view)
}

// Delete: DELETE /api/conventions/{id} — cascades to tranches.
func (h *ConventionHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

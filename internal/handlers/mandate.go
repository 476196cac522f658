package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/diewo77/gescon/internal/httpx"
	"github.com/diewo77/gescon/internal/models"
	"github.com/diewo77/gescon/internal/services"
	"github.com/patrickmn/go-cache"
)

type MandateHandler struct {
	Svc   *services.MandateService
	Cache *cache.Cache
}

func NewMandateHandler(svc *services.MandateService, c *cache.Cache) *MandateHandler {
	return &MandateHandler{Svc: svc, Cache: c}
}

type mandateReq struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	Regions     []string `json:"regions"`
	Status      string   `json:"status"`
	Description string   `json:"description"`
}

func (m mandateReq) toInput() services.MandateInput {
	start, _ := parseDate(m.StartDate)
	end, _ := parseDate(m.EndDate)
	return services.MandateInput{
		Name:        m.Name,
		Title:       m.Title,
		StartDate:   start,
		EndDate:     end,
		Regions:     m.Regions,
		Status:      models.MandateStatus(m.Status),
		Description: m.Description,
	}
}

func (h *MandateHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.Svc.List()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *MandateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req mandateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	view, err := h.Svc.Create(req.toInput())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Cache.Flush()
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *MandateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req mandateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	view, err := h.Svc.Update(id, req.toInput())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Cache.Flush()
	httpx.JSON(w, http.StatusOK, view)
}

func (h *MandateHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

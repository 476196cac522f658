package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/diewo77/gescon/internal/httpx"
	"github.com/diewo77/gescon/internal/services"
	"github.com/patrickmn/go-cache"
)

type PartnerHandler struct {
	Svc   *services.PartnerService
	Cache *cache.Cache
}

func NewPartnerHandler(svc *services.PartnerService, c *cache.Cache) *PartnerHandler {
	return &PartnerHandler{Svc: svc, Cache: c}
}

type partnerReq struct {
	Name                string `json:"name"`
	LegalStatus         string `json:"legalStatus"`
	LegalRepresentative string `json:"legalRepresentative"`
	Address             string `json:"address"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	Fax                 string `json:"fax"`
	Notes               string `json:"notes"`
}

func (p partnerReq) toInput() services.PartnerInput {
	return services.PartnerInput{
		Name:                p.Name,
		LegalStatus:         p.LegalStatus,
		LegalRepresentative: p.LegalRepresentative,
		Address:             p.Address,
		Email:               p.Email,
		Phone:               p.Phone,
		Fax:                 p.Fax,
		Notes:               p.Notes,
	}
}

func (h *PartnerHandler) List(w http.ResponseWriter, r *http.Request) {
	partners, err := h.Svc.List()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, partners)
}

func (h *PartnerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req partnerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	partner, err := h.Svc.Create(req.toInput())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Cache.Flush()
	httpx.JSON(w, http.StatusCreated, partner)
}

func (h *PartnerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req partnerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	partner, err := h.Svc.Update(id, req.toInput())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Cache.Flush()
	httpx.JSON(w, http.StatusOK, partner)
}

func (h *PartnerHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/gescon/internal/models"
	"github.com/diewo77/gescon/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupBudgetLineTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.BudgetLine{}, &models.Mandate{}, &models.Partner{}, &models.Convention{}, &models.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newBudgetLineTestRouter(t *testing.T, db *gorm.DB) *chi.Mux {
	t.Helper()
	h := NewBudgetLineHandler(services.NewBudgetLineService(db), services.NewReportingService(db), cache.New(time.Minute, time.Minute))
	r := chi.NewRouter()
	r.Get("/api/budget-lines", h.List)
	r.Post("/api/budget-lines", h.Create)
	r.Delete("/api/budget-lines/{id}", h.Delete)
	return r
}

func TestBudgetLineCreateAndListWithConsumption(t *testing.T) {
	db := setupBudgetLineTestDB(t)
	router := newBudgetLineTestRouter(t, db)

	w := postJSON(t, router, "/api/budget-lines", `{"code":"FON","label":"Fonctionnement","initialAmount":1000000}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var created models.BudgetLine
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// settled tranches on a convention of the line drive the derived fields
	mandate := models.Mandate{Number: "MAN-1", Name: "M", Title: "T", StartDate: time.Now(), EndDate: time.Now().AddDate(1, 0, 0), Regions: []string{"dakar"}, Status: models.MandateActive}
	if err := db.Create(&mandate).Error; err != nil {
		t.Fatalf("mandate: %v", err)
	}
	partner := models.Partner{Name: "P"}
	if err := db.Create(&partner).Error; err != nil {
		t.Fatalf("partner: %v", err)
	}
	conv := models.Convention{Number: "C1", BudgetLineID: created.ID, MandateID: mandate.ID, PartnerID: partner.ID, Objective: "O", StartDate: time.Now(), EndDate: time.Now().AddDate(0, 6, 0), TotalAmount: 400000, Status: models.ConventionActive}
	if err := db.Create(&conv).Error; err != nil {
		t.Fatalf("conv: %v", err)
	}
	if err := db.Create(&models.Payment{ConventionID: conv.ID, Percentage: 75, Status: models.PaymentSettled}).Error; err != nil {
		t.Fatalf("payment: %v", err)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/budget-lines", nil)
	listW := httptest.NewRecorder()
	router.ServeHTTP(listW, listReq)
	if listW.Code != http.StatusOK {
		t.Fatalf("list: %d", listW.Code)
	}
	var lines []services.BudgetLineConsumption
	if err := json.Unmarshal(listW.Body.Bytes(), &lines); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(lines) != 1 || lines[0].ConsumedAmount != 300000 || lines[0].ConsumptionRate != 30 {
		t.Fatalf("unexpected consumption: %#v", lines)
	}
}

func TestBudgetLineCreateValidationAndConflict(t *testing.T) {
	db := setupBudgetLineTestDB(t)
	router := newBudgetLineTestRouter(t, db)

	w := postJSON(t, router, "/api/budget-lines", `{"code":"","label":""}`)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "validation_failed") {
		t.Fatalf("expected validation_failed got %d body=%s", w.Code, w.Body.String())
	}

	if w := postJSON(t, router, "/api/budget-lines", `{"code":"FON","label":"Fonctionnement"}`); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	dup := postJSON(t, router, "/api/budget-lines", `{"code":"FON","label":"Autre"}`)
	if dup.Code != http.StatusConflict || !strings.Contains(dup.Body.String(), "duplicate_code") {
		t.Fatalf("expected duplicate_code got %d body=%s", dup.Code, dup.Body.String())
	}
}

func TestBudgetLineDeleteConflictWhileReferenced(t *testing.T) {
	db := setupBudgetLineTestDB(t)
	router := newBudgetLineTestRouter(t, db)

	w := postJSON(t, router, "/api/budget-lines", `{"code":"FON","label":"Fonctionnement"}`)
	var created models.BudgetLine
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	mandate := models.Mandate{Number: "MAN-1", Name: "M", Title: "T", StartDate: time.Now(), EndDate: time.Now().AddDate(1, 0, 0), Regions: []string{"dakar"}, Status: models.MandateActive}
	if err := db.Create(&mandate).Error; err != nil {
		t.Fatalf("mandate: %v", err)
	}
	partner := models.Partner{Name: "P"}
	if err := db.Create(&partner).Error; err != nil {
		t.Fatalf("partner: %v", err)
	}
	conv := models.Convention{Number: "C1", BudgetLineID: created.ID, MandateID: mandate.ID, PartnerID: partner.ID, Objective: "O", StartDate: time.Now(), EndDate: time.Now().AddDate(0, 1, 0), TotalAmount: 10, Status: models.ConventionActive}
	if err := db.Create(&conv).Error; err != nil {
		t.Fatalf("conv: %v", err)
	}

	id := strconv.Itoa(int(created.ID))
	delReq := httptest.NewRequest(http.MethodDelete, "/api/budget-lines/"+id, nil)
	delW := httptest.NewRecorder()
	router.ServeHTTP(delW, delReq)
	if delW.Code != http.StatusConflict || !strings.Contains(delW.Body.String(), "referenced_by_conventions") {
		t.Fatalf("expected 409 got %d body=%s", delW.Code, delW.Body.String())
	}
}

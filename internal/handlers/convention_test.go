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

	"github.com/diewo77/gescon/internal/auth"
	"github.com/diewo77/gescon/internal/gate"
	"github.com/diewo77/gescon/internal/models"
	"github.com/diewo77/gescon/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupConventionTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// unique in-memory DB per test name to avoid leakage via shared cache
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

func testGate() *gate.Gate {
	g := gate.New()
	g.Register(auth.RoleAdmin, gate.NewProfile(auth.RoleAdmin, gate.PermissionSuperAdmin))
	g.Register(auth.RoleStandard, gate.NewProfile(auth.RoleStandard,
		gate.NewPermission("convention", gate.ActionUpdate),
	))
	return g
}

func newConventionTestRouter(t *testing.T, db *gorm.DB) *chi.Mux {
	t.Helper()
	locks := services.NewConventionLocks()
	h := NewConventionHandler(services.NewConventionService(db, locks), testGate(), cache.New(time.Minute, time.Minute))
	r := chi.NewRouter()
	r.Get("/api/conventions", h.List)
	r.Post("/api/conventions", h.Create)
	r.Get("/api/conventions/{id}", h.Get)
	r.Put("/api/conventions/{id}", h.Update)
	r.Delete("/api/conventions/{id}", h.Delete)
	r.Get("/api/conventions/{id}/balance", h.Balance)
	return r
}

func seedConventionRefs(t *testing.T, db *gorm.DB) (models.BudgetLine, models.Mandate, models.Partner) {
	t.Helper()
	line := models.BudgetLine{Code: "FON", Label: "Fonctionnement", InitialAmount: 1000000}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("line: %v", err)
	}
	mandate := models.Mandate{Number: "MAN-1", Name: "Mandat 2025", Title: "Programme", StartDate: time.Now(), EndDate: time.Now().AddDate(1, 0, 0), Regions: []string{"dakar"}, Status: models.MandateActive}
	if err := db.Create(&mandate).Error; err != nil {
		t.Fatalf("mandate: %v", err)
	}
	partner := models.Partner{Name: "ONG Espoir"}
	if err := db.Create(&partner).Error; err != nil {
		t.Fatalf("partner: %v", err)
	}
	return line, mandate, partner
}

func conventionBody(number string, line models.BudgetLine, mandate models.Mandate, partner models.Partner) string {
	return fmt.Sprintf(`{"number":%q,"budgetLineId":%d,"mandateId":%d,"partnerId":%d,"objective":"Appui institutionnel","startDate":"2026-01-01","endDate":"2026-07-01","totalAmount":250000}`,
		number, line.ID, mandate.ID, partner.ID)
}

func doJSON(t *testing.T, router http.Handler, method, path, body, role string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req = req.WithContext(auth.WithRole(req.Context(), role))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestConventionCreateAndGet(t *testing.T) {
	db := setupConventionTestDB(t)
	router := newConventionTestRouter(t, db)
	line, mandate, partner := seedConventionRefs(t, db)

	w := doJSON(t, router, http.MethodPost, "/api/conventions", conventionBody("CONV-001", line, mandate, partner), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var created map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := int(created["id"].(float64))
	if created["status"] != "draft" {
		t.Fatalf("expected draft default got %v", created["status"])
	}

	get := doJSON(t, router, http.MethodGet, "/api/conventions/"+strconv.Itoa(id), "", "")
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", get.Code)
	}
	var view map[string]any
	if err := json.Unmarshal(get.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view["balancePercentage"] != 100.0 {
		t.Fatalf("expected untouched balance 100 got %v", view["balancePercentage"])
	}
}

func TestConventionCreateDuplicateNumber(t *testing.T) {
	db := setupConventionTestDB(t)
	router := newConventionTestRouter(t, db)
	line, mandate, partner := seedConventionRefs(t, db)

	if w := doJSON(t, router, http.MethodPost, "/api/conventions", conventionBody("CONV-001", line, mandate, partner), ""); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	w := doJSON(t, router, http.MethodPost, "/api/conventions", conventionBody("CONV-001", line, mandate, partner), "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "duplicate_number") {
		t.Fatalf("expected duplicate_number body=%s", w.Body.String())
	}
	// case differs, so the number is distinct
	if w := doJSON(t, router, http.MethodPost, "/api/conventions", conventionBody("conv-001", line, mandate, partner), ""); w.Code != http.StatusCreated {
		t.Fatalf("lowercase number should pass: %d body=%s", w.Code, w.Body.String())
	}
}

func TestConventionCreateUnknownReference(t *testing.T) {
	db := setupConventionTestDB(t)
	router := newConventionTestRouter(t, db)
	line, mandate, partner := seedConventionRefs(t, db)
	mandate.ID = 999

	w := doJSON(t, router, http.MethodPost, "/api/conventions", conventionBody("CONV-001", line, mandate, partner), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "mandate_not_found") {
		t.Fatalf("expected mandate_not_found body=%s", w.Body.String())
	}
}

func TestConventionPaymentReplacementRequiresPermission(t *testing.T) {
	db := setupConventionTestDB(t)
	router := newConventionTestRouter(t, db)
	line, mandate, partner := seedConventionRefs(t, db)

	w := doJSON(t, router, http.MethodPost, "/api/conventions", conventionBody("CONV-001", line, mandate, partner), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	var created map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	id := strconv.Itoa(int(created["id"].(float64)))

	body := `{"payments":[{"percentage":50,"status":"settled"},{"percentage":50}]}`
	// standard callers may update fields but not replace the tranche set
	forbidden := doJSON(t, router, http.MethodPut, "/api/conventions/"+id, body, auth.RoleStandard)
	if forbidden.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d body=%s", forbidden.Code, forbidden.Body.String())
	}

	allowed := doJSON(t, router, http.MethodPut, "/api/conventions/"+id, body, auth.RoleAdmin)
	if allowed.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", allowed.Code, allowed.Body.String())
	}
	var view struct {
		Payments          []models.Payment `json:"payments"`
		SettledPercentage float64          `json:"settledPercentage"`
	}
	if err := json.Unmarshal(allowed.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Payments) != 2 || view.SettledPercentage != 100 {
		t.Fatalf("replacement not applied: %#v", view)
	}
	// tranche amounts are derived from the convention total
	if view.Payments[0].Amount != 125000 {
		t.Fatalf("expected derived amount 125000 got %v", view.Payments[0].Amount)
	}

	// a field-only update stays open to standard callers
	fieldOnly := doJSON(t, router, http.MethodPut, "/api/conventions/"+id, `{"objective":"Nouvel objectif"}`, auth.RoleStandard)
	if fieldOnly.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", fieldOnly.Code, fieldOnly.Body.String())
	}
}

func TestConventionBalanceEndpoint(t *testing.T) {
	db := setupConventionTestDB(t)
	router := newConventionTestRouter(t, db)
	line, mandate, partner := seedConventionRefs(t, db)

	w := doJSON(t, router, http.MethodPost, "/api/conventions", conventionBody("CONV-001", line, mandate, partner), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	var created map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	id := strconv.Itoa(int(created["id"].(float64)))

	put := doJSON(t, router, http.MethodPut, "/api/conventions/"+id, `{"payments":[{"percentage":40,"status":"settled"}]}`, auth.RoleAdmin)
	if put.Code != http.StatusOK {
		t.Fatalf("replace: %d body=%s", put.Code, put.Body.String())
	}

	bal := doJSON(t, router, http.MethodGet, "/api/conventions/"+id+"/balance", "", "")
	if bal.Code != http.StatusOK {
		t.Fatalf("balance: %d", bal.Code)
	}
	var b struct {
		SettledPercentage float64 `json:"settledPercentage"`
		BalancePercentage float64 `json:"balancePercentage"`
		SettledAmount     float64 `json:"settledAmount"`
		RemainingAmount   float64 `json:"remainingAmount"`
	}
	if err := json.Unmarshal(bal.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.SettledPercentage != 40 || b.BalancePercentage != 60 {
		t.Fatalf("unexpected percentages: %#v", b)
	}
	if b.SettledAmount != 100000 || b.RemainingAmount != 150000 {
		t.Fatalf("unexpected amounts: %#v", b)
	}
}

func TestConventionDeleteAndInvalidID(t *testing.T) {
	db := setupConventionTestDB(t)
	router := newConventionTestRouter(t, db)
	line, mandate, partner := seedConventionRefs(t, db)

	w := doJSON(t, router, http.MethodPost, "/api/conventions", conventionBody("CONV-001", line, mandate, partner), "")
	var created map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	id := strconv.Itoa(int(created["id"].(float64)))

	if del := doJSON(t, router, http.MethodDelete, "/api/conventions/"+id, "", ""); del.Code != http.StatusOK {
		t.Fatalf("delete: %d", del.Code)
	}
	if get := doJSON(t, router, http.MethodGet, "/api/conventions/"+id, "", ""); get.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete got %d", get.Code)
	}
	if bad := doJSON(t, router, http.MethodGet, "/api/conventions/abc", "", ""); bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id got %d", bad.Code)
	}
}

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/diewo77/gescon/internal/auth"
	"github.com/diewo77/gescon/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRouterTestDB(t *testing.T) *gorm.DB {
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

func request(t *testing.T, h http.Handler, method, path, body, role string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set(auth.RoleHeader, role)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeID(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, w.Body.String())
	}
	v, ok := out["id"].(float64)
	if !ok {
		t.Fatalf("missing id in response: %s", w.Body.String())
	}
	return int(v)
}

func TestHealthEndpoints(t *testing.T) {
	db := setupRouterTestDB(t)
	h := New(db)

	if w := request(t, h, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	if w := request(t, h, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz: %d body=%s", w.Code, w.Body.String())
	}
}

func TestFullEngineFlow(t *testing.T) {
	db := setupRouterTestDB(t)
	h := New(db)

	// referentials
	lineW := request(t, h, http.MethodPost, "/api/budget-lines", `{"code":"FON","label":"Fonctionnement","initialAmount":1000000}`, "")
	if lineW.Code != http.StatusCreated {
		t.Fatalf("budget line: %d body=%s", lineW.Code, lineW.Body.String())
	}
	lineID := decodeID(t, lineW)

	mandateW := request(t, h, http.MethodPost, "/api/mandates", `{"name":"Mandat 2025","title":"Programme","startDate":"2025-01-01","endDate":"2025-12-31","regions":["dakar"]}`, "")
	if mandateW.Code != http.StatusCreated {
		t.Fatalf("mandate: %d body=%s", mandateW.Code, mandateW.Body.String())
	}
	mandateID := decodeID(t, mandateW)

	partnerW := request(t, h, http.MethodPost, "/api/partners", `{"name":"ONG Espoir","email":"contact@espoir.sn"}`, "")
	if partnerW.Code != http.StatusCreated {
		t.Fatalf("partner: %d body=%s", partnerW.Code, partnerW.Body.String())
	}
	partnerID := decodeID(t, partnerW)

	// commitment
	convBody := fmt.Sprintf(`{"number":"CONV-001","budgetLineId":%d,"mandateId":%d,"partnerId":%d,"objective":"Appui","startDate":"2025-02-01","endDate":"2025-08-01","totalAmount":400000,"status":"active"}`, lineID, mandateID, partnerID)
	convW := request(t, h, http.MethodPost, "/api/conventions", convBody, "")
	if convW.Code != http.StatusCreated {
		t.Fatalf("convention: %d body=%s", convW.Code, convW.Body.String())
	}
	convID := decodeID(t, convW)

	// settle half of it
	payW := request(t, h, http.MethodPost, "/api/payments", fmt.Sprintf(`{"conventionId":%d,"percentage":50,"status":"settled"}`, convID), "")
	if payW.Code != http.StatusCreated {
		t.Fatalf("payment: %d body=%s", payW.Code, payW.Body.String())
	}

	// the dashboard reflects the settlement
	dashW := request(t, h, http.MethodGet, "/api/dashboard-stats", "", "")
	if dashW.Code != http.StatusOK {
		t.Fatalf("dashboard: %d body=%s", dashW.Code, dashW.Body.String())
	}
	var dash struct {
		Totals struct {
			Conventions    int     `json:"conventions"`
			BudgetConsumed float64 `json:"budgetConsumed"`
			CommittedTotal float64 `json:"committedTotal"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(dashW.Body.Bytes(), &dash); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dash.Totals.Conventions != 1 || dash.Totals.BudgetConsumed != 200000 || dash.Totals.CommittedTotal != 400000 {
		t.Fatalf("unexpected totals: %#v", dash.Totals)
	}

	// tranche replacement is admin-only
	replBody := `{"payments":[{"percentage":60,"status":"settled"},{"percentage":40}]}`
	path := "/api/conventions/" + strconv.Itoa(convID)
	if w := request(t, h, http.MethodPut, path, replBody, ""); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for standard caller got %d body=%s", w.Code, w.Body.String())
	}
	if w := request(t, h, http.MethodPut, path, replBody, auth.RoleAdmin); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d body=%s", w.Code, w.Body.String())
	}

	// mutation flushed the report cache
	dash2 := request(t, h, http.MethodGet, "/api/dashboard-stats", "", "")
	var dashAfter struct {
		Totals struct {
			BudgetConsumed float64 `json:"budgetConsumed"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(dash2.Body.Bytes(), &dashAfter); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dashAfter.Totals.BudgetConsumed != 240000 {
		t.Fatalf("expected consumed 240000 after replacement got %v", dashAfter.Totals.BudgetConsumed)
	}
}

func TestUnknownRoleHasNoProfile(t *testing.T) {
	db := setupRouterTestDB(t)
	h := New(db)

	lineW := request(t, h, http.MethodPost, "/api/budget-lines", `{"code":"FON","label":"F","initialAmount":1000}`, "")
	if lineW.Code != http.StatusCreated {
		t.Fatalf("budget line: %d", lineW.Code)
	}
	// an unregistered role cannot replace tranches either
	w := request(t, h, http.MethodPut, "/api/conventions/1", `{"payments":[]}`, "auditor")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown role got %d body=%s", w.Code, w.Body.String())
	}
}

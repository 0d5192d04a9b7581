package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/model"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/service"
	"github.com/gin-gonic/gin"
)

func companyRouter(h *CompanyHandler) *gin.Engine {
	router := gin.New()
	router.GET("/api/companies", h.List)
	router.GET("/api/companies/:company", h.Get)
	router.GET("/api/companies/:company/history", h.History)
	router.GET("/api/companies/:company/claims", h.Claims)
	router.GET("/api/compare", h.Compare)
	return router
}

func newCompanyHandler() (*CompanyHandler, *service.MemoryStore) {
	store := service.NewMemoryStore(0)
	return NewCompanyHandler(store, service.NewMemoryBlobStore()), store
}

// seedAudited saves one ready document with an audit. Scope 1 total is
// rating*100 so compare tests get distinct values per company.
func seedAudited(t *testing.T, store *service.MemoryStore, id, company string, year, rating int) {
	t.Helper()
	ctx := context.Background()

	err := store.SaveDocument(ctx, &model.Document{
		ID:        id,
		Filename:  company + ".pdf",
		Company:   company,
		Year:      year,
		ObjectKey: "documents/" + id + ".pdf",
		Status:    model.StatusReady,
	})
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	scope1 := float64(rating * 100)
	err = store.SaveAuditResult(ctx, &model.AuditResult{
		DocumentID:  id,
		LeafRating:  &rating,
		AISummary:   "Summary for " + company,
		Scope1Total: &scope1,
		Claims: []model.Claim{
			{Claim: "net zero by 2040", Page: 2, TargetYear: 2040},
		},
	})
	if err != nil {
		t.Fatalf("SaveAuditResult failed: %v", err)
	}
}

func TestCompanyList(t *testing.T) {
	handler, store := newCompanyHandler()
	seedAudited(t, store, "d1", "Acme", 2024, 4)
	seedAudited(t, store, "d2", "Globex", 2023, 2)

	router := companyRouter(handler)
	req := httptest.NewRequest("GET", "/api/companies", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	response := parseBody(t, w)
	companies, _ := response["companies"].([]interface{})
	if len(companies) != 2 {
		t.Fatalf("Expected 2 companies, got %d", len(companies))
	}

	first, _ := companies[0].(map[string]interface{})
	if first["company"] != "Acme" {
		t.Errorf("Expected Acme first, got %v", first["company"])
	}
	if first["leaf_rating"] != float64(4) {
		t.Errorf("Expected leaf_rating 4, got %v", first["leaf_rating"])
	}
}

func TestCompanyDetail(t *testing.T) {
	handler, store := newCompanyHandler()
	seedAudited(t, store, "d1", "Acme", 2024, 4)

	router := companyRouter(handler)
	req := httptest.NewRequest("GET", "/api/companies/acme", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	response := parseBody(t, w)
	if response["company"] != "Acme" {
		t.Errorf("Expected canonical company name, got %v", response["company"])
	}
	if response["year"] != float64(2024) {
		t.Errorf("Expected year 2024, got %v", response["year"])
	}
	if response["leaf_rating"] != float64(4) {
		t.Errorf("Expected leaf_rating 4, got %v", response["leaf_rating"])
	}
	if summary, _ := response["ai_summary"].(string); !strings.Contains(summary, "Acme") {
		t.Errorf("Expected ai_summary, got %v", response["ai_summary"])
	}
	claims, _ := response["claims"].([]interface{})
	if len(claims) != 1 {
		t.Errorf("Expected 1 claim, got %d", len(claims))
	}
	// The memory blob store cannot presign, so no source link is exposed.
	if _, ok := response["source"]; ok {
		t.Error("Expected no source link without presigning")
	}
}

func TestCompanyDetailByYear(t *testing.T) {
	handler, store := newCompanyHandler()
	seedAudited(t, store, "d1", "Acme", 2022, 3)
	seedAudited(t, store, "d2", "Acme", 2024, 4)

	router := companyRouter(handler)
	req := httptest.NewRequest("GET", "/api/companies/Acme?year=2022", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	response := parseBody(t, w)
	if response["year"] != float64(2022) {
		t.Errorf("Expected year 2022, got %v", response["year"])
	}
	if response["leaf_rating"] != float64(3) {
		t.Errorf("Expected leaf_rating 3, got %v", response["leaf_rating"])
	}
}

func TestCompanyDetailNotFound(t *testing.T) {
	handler, store := newCompanyHandler()
	seedAudited(t, store, "d1", "Acme", 2024, 4)

	router := companyRouter(handler)

	tests := []struct {
		name string
		path string
	}{
		{name: "unknown company", path: "/api/companies/Initech"},
		{name: "year not audited", path: "/api/companies/Acme?year=2019"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Expected status 404, got %d", w.Code)
			}
		})
	}
}

func TestCompanyDetailBadYear(t *testing.T) {
	handler, _ := newCompanyHandler()
	router := companyRouter(handler)

	req := httptest.NewRequest("GET", "/api/companies/Acme?year=banana", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestCompanyHistory(t *testing.T) {
	handler, store := newCompanyHandler()
	seedAudited(t, store, "d1", "Acme", 2024, 4)
	seedAudited(t, store, "d2", "Acme", 2022, 3)

	router := companyRouter(handler)
	req := httptest.NewRequest("GET", "/api/companies/Acme/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	response := parseBody(t, w)
	history, _ := response["history"].([]interface{})
	if len(history) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(history))
	}
	first, _ := history[0].(map[string]interface{})
	if first["year"] != float64(2022) {
		t.Errorf("Expected oldest year first, got %v", first["year"])
	}
}

func TestCompanyHistoryNotFound(t *testing.T) {
	handler, _ := newCompanyHandler()
	router := companyRouter(handler)

	req := httptest.NewRequest("GET", "/api/companies/Initech/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCompanyClaims(t *testing.T) {
	handler, store := newCompanyHandler()
	seedAudited(t, store, "d1", "Acme", 2024, 4)

	router := companyRouter(handler)
	req := httptest.NewRequest("GET", "/api/companies/Acme/claims", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	response := parseBody(t, w)
	if response["count"] != float64(1) {
		t.Errorf("Expected count 1, got %v", response["count"])
	}
	claims, _ := response["claims"].([]interface{})
	if len(claims) != 1 {
		t.Fatalf("Expected 1 claim, got %d", len(claims))
	}
	claim, _ := claims[0].(map[string]interface{})
	if claim["claim"] != "net zero by 2040" {
		t.Errorf("Unexpected claim: %v", claim["claim"])
	}
	if claim["page"] != float64(2) {
		t.Errorf("Expected page 2, got %v", claim["page"])
	}
}

func TestCompare(t *testing.T) {
	handler, store := newCompanyHandler()
	seedAudited(t, store, "d1", "Acme", 2024, 4)
	seedAudited(t, store, "d2", "Globex", 2023, 2)

	router := companyRouter(handler)
	req := httptest.NewRequest("GET", "/api/compare?companies=acme,Globex,Missing&metric=leaf_rating", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	response := parseBody(t, w)
	if response["metric"] != "leaf_rating" {
		t.Errorf("Expected metric leaf_rating, got %v", response["metric"])
	}
	results, _ := response["results"].([]interface{})
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	first, _ := results[0].(map[string]interface{})
	if first["company"] != "Acme" || first["value"] != float64(4) {
		t.Errorf("Unexpected first result: %v", first)
	}
	second, _ := results[1].(map[string]interface{})
	if second["value"] != float64(2) {
		t.Errorf("Unexpected second result: %v", second)
	}
	third, _ := results[2].(map[string]interface{})
	if third["value"] != nil {
		t.Errorf("Expected null value for missing company, got %v", third["value"])
	}
}

func TestCompareScopeMetric(t *testing.T) {
	handler, store := newCompanyHandler()
	seedAudited(t, store, "d1", "Acme", 2024, 4)
	seedAudited(t, store, "d2", "Globex", 2023, 2)

	router := companyRouter(handler)
	req := httptest.NewRequest("GET", "/api/compare?companies=Acme,Globex&metric=scope1_total", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	response := parseBody(t, w)
	results, _ := response["results"].([]interface{})
	first, _ := results[0].(map[string]interface{})
	if first["value"] != float64(400) {
		t.Errorf("Expected scope1 400, got %v", first["value"])
	}
}

func TestCompareValidation(t *testing.T) {
	handler, _ := newCompanyHandler()
	router := companyRouter(handler)

	tests := []struct {
		name string
		path string
	}{
		{name: "one company", path: "/api/compare?companies=Acme"},
		{name: "no companies", path: "/api/compare"},
		{name: "unknown metric", path: "/api/compare?companies=Acme,Globex&metric=profit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

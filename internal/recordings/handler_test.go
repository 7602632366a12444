package recordings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meeting-copilot/server/internal/middleware"
	"github.com/meeting-copilot/server/internal/models"
)

func newAPIRouter(ledger Ledger, user *models.User) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextUser, user) })
	h := NewHandler(ledger, zap.NewNop())
	r.POST("/recordings/start", h.Start)
	r.POST("/recordings/:id/stop", h.Stop)
	r.GET("/recordings", h.List)
	r.GET("/recordings/:id", h.GetByID)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	var data map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err == nil && len(envelope.Data) > 0 {
		_ = json.Unmarshal(envelope.Data, &data)
	}
	return rr, data
}

func TestStartIsIdempotent(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	r := newAPIRouter(ledger, &models.User{ID: 7, APIKey: "key-7"})

	rr1, data1 := doJSON(t, r, http.MethodPost, "/recordings/start", `{"session_id":"cap-1"}`)
	if rr1.Code != http.StatusOK {
		t.Fatalf("first start: expected 200, got %d: %s", rr1.Code, rr1.Body.String())
	}
	rr2, data2 := doJSON(t, r, http.MethodPost, "/recordings/start", `{"session_id":"cap-1"}`)
	if rr2.Code != http.StatusOK {
		t.Fatalf("second start: expected 200, got %d", rr2.Code)
	}
	if data1["id"] != data2["id"] {
		t.Fatalf("expected same recording id, got %v and %v", data1["id"], data2["id"])
	}
	if data2["status"] != "recording" {
		t.Fatalf("expected status recording, got %v", data2["status"])
	}
	if list, _ := ledger.List(nil); len(list) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(list))
	}
}

func TestStartRequiresSessionID(t *testing.T) {
	t.Parallel()

	r := newAPIRouter(newMemLedger(), &models.User{ID: 1})
	rr, _ := doJSON(t, r, http.MethodPost, "/recordings/start", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestStopUnknownSessionReturnsNotFound(t *testing.T) {
	t.Parallel()

	r := newAPIRouter(newMemLedger(), &models.User{ID: 1})
	rr, _ := doJSON(t, r, http.MethodPost, "/recordings/cap-missing/stop", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestStopAdvancesToProcessing(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	r := newAPIRouter(ledger, &models.User{ID: 1})

	doJSON(t, r, http.MethodPost, "/recordings/start", `{"session_id":"cap-2"}`)
	rr, data := doJSON(t, r, http.MethodPost, "/recordings/cap-2/stop", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if data["status"] != "processing" {
		t.Fatalf("expected status processing, got %v", data["status"])
	}
}

func TestStopNeverRegressesAvailable(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	r := newAPIRouter(ledger, &models.User{ID: 1})

	// Webhook beat the stop call: the recording is already available.
	if _, _, err := ledger.MarkExported(nil, "cap-3", "m-3", "", ""); err != nil {
		t.Fatalf("mark exported: %v", err)
	}
	rr, data := doJSON(t, r, http.MethodPost, "/recordings/cap-3/stop", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if data["status"] != "available" {
		t.Fatalf("expected status to stay available, got %v", data["status"])
	}
}

func TestGetByIDReturnsParsedInsights(t *testing.T) {
	t.Parallel()

	ledger := newMemLedger()
	rec, _ := ledger.Start(nil, "cap-4", 1)
	if err := ledger.SaveInsights(nil, rec.ID, `["## Meeting Summary"]`); err != nil {
		t.Fatalf("save insights: %v", err)
	}
	r := newAPIRouter(ledger, &models.User{ID: 1})

	rr, data := doJSON(t, r, http.MethodGet, "/recordings/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	insights, ok := data["insights"].([]any)
	if !ok || len(insights) != 1 || insights[0] != "## Meeting Summary" {
		t.Fatalf("expected parsed insight array, got %v", data["insights"])
	}
	if data["insights_status"] != "ready" {
		t.Fatalf("expected insights_status ready, got %v", data["insights_status"])
	}
}

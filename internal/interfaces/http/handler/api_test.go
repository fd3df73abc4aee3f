package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	billingapp "github.com/faasbill/backend/internal/application/billing"
	pricingapp "github.com/faasbill/backend/internal/application/pricing"
	registryapp "github.com/faasbill/backend/internal/application/registry"
	usageapp "github.com/faasbill/backend/internal/application/usage"
	"github.com/faasbill/backend/internal/infrastructure/cache"
	"github.com/faasbill/backend/internal/infrastructure/config"
	"github.com/faasbill/backend/internal/infrastructure/persistence"
	"github.com/faasbill/backend/internal/infrastructure/persistence/models"
	"github.com/faasbill/backend/internal/infrastructure/storage"
	"github.com/faasbill/backend/internal/interfaces/http/handler"
	"github.com/faasbill/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type apiStack struct {
	engine *gin.Engine
	clock  *testClock
}

// newAPIStack wires the real services over in-memory sqlite, local artifact
// storage and in-memory cache stores
func newAPIStack(t *testing.T) *apiStack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
	log := zaptest.NewLogger(t)

	db, err := persistence.Open(sqlite.Open(":memory:"),
		&config.DatabaseConfig{MaxOpenConns: 1, MaxIdleConns: 1},
		func(c *gorm.Config) { c.PrepareStmt = false },
	)
	require.NoError(t, err)
	require.NoError(t, db.DB.AutoMigrate(models.AllModels()...))
	t.Cleanup(func() { _ = db.Close() })

	store, err := storage.NewLocalObjectStorage(t.TempDir(), "")
	require.NoError(t, err)
	stores := cache.NewFactory(config.RedisConfig{}).InMemory()
	t.Cleanup(func() { _ = stores.Close() })

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)}

	tenants := persistence.NewGormTenantRepository(db.DB)
	services := persistence.NewGormServiceRepository(db.DB)
	registrySvc := registryapp.NewService(tenants, services, store, clock, registryapp.Options{MaxUploadSize: 1 << 20}, log)
	pricingSvc := pricingapp.NewService(persistence.NewGormPricingPlanRepository(db.DB), tenants, clock, log)
	usageSvc, err := usageapp.NewService(persistence.NewGormUsageRepository(db.DB), services, stores.Idempotency, clock, usageapp.DefaultOptions(), log)
	require.NoError(t, err)
	billingSvc := billingapp.NewService(pricingSvc, usageSvc,
		persistence.NewGormBillRepository(db.DB), persistence.NewGormPaymentRepository(db.DB),
		stores.Locker, clock, billingapp.Options{}, log)

	tenantH := handler.NewTenantHandler(registrySvc, pricingSvc)
	serviceH := handler.NewServiceHandler(registrySvc)
	planH := handler.NewPricingPlanHandler(pricingSvc)
	usageH := handler.NewUsageHandler(usageSvc, clock)
	billingH := handler.NewBillingHandler(billingSvc)

	r := gin.New()
	r.Use(middleware.RequestID())
	v1 := r.Group("/api/v1")
	v1.POST("/tenants", tenantH.Create)
	v1.GET("/tenants/:id", tenantH.Get)
	v1.GET("/tenants/:id/pricing-plan", tenantH.GetPricingPlan)
	v1.POST("/services", serviceH.Create)
	v1.GET("/services", serviceH.List)
	v1.GET("/services/:id", serviceH.Get)
	v1.GET("/services/:id/artifact", serviceH.DownloadArtifact)
	v1.GET("/pricing-plans", planH.List)
	v1.POST("/pricing-plans", planH.Create)
	v1.POST("/usage-events", usageH.Ingest)
	v1.GET("/usage-aggregates", usageH.ListAggregates)
	v1.POST("/usage-aggregates/close", usageH.CloseWindows)
	v1.POST("/billing/calculate", billingH.Calculate)
	v1.POST("/billing/generate", billingH.Generate)
	v1.GET("/bills", billingH.ListBills)
	v1.GET("/bills/:id", billingH.GetBill)
	v1.POST("/bills/:id/payments", billingH.CreatePayment)
	v1.GET("/bills/:id/payment", billingH.GetPaymentForBill)
	v1.GET("/payments/:id", billingH.GetPayment)
	v1.POST("/payments/:id/pay", billingH.Pay)
	v1.POST("/payments/:id/reconcile", billingH.Reconcile)

	return &apiStack{engine: r, clock: clock}
}

func (s *apiStack) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return errObj["code"].(string)
}

// seed creates a tenant, a default plan charging 0.50 per cold start and one service
func (s *apiStack) seed(t *testing.T) (tenantID, serviceID string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/tenants", map[string]any{"name": "acme", "billing_email": "ops@acme.test"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tenantID = decode(t, w)["id"].(string)

	w = s.do(t, http.MethodPost, "/pricing-plans", map[string]any{
		"name":                 "standard",
		"is_default":           true,
		"currency":             "USD",
		"price_per_cold_start": "0.50",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/services", map[string]any{
		"tenant_id":       tenantID,
		"name":            "resize",
		"runtime":         "go1.22",
		"memory_limit_mb": 512,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	serviceID = decode(t, w)["id"].(string)
	return tenantID, serviceID
}

func event(id, tenantID, serviceID string, at time.Time, coldStart bool) map[string]any {
	return map[string]any{
		"event_id":    id,
		"tenant_id":   tenantID,
		"service_id":  serviceID,
		"timestamp":   at.Format(time.RFC3339),
		"duration_ms": 120,
		"mem_mb":      256,
		"cold_start":  coldStart,
	}
}

func TestAPI_UsageToPaidBill(t *testing.T) {
	s := newAPIStack(t)
	tenantID, serviceID := s.seed(t)
	noon := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w := s.do(t, http.MethodPost, "/usage-events", []any{
		event("evt-1", tenantID, serviceID, noon.Add(5*time.Minute), true),
		event("evt-2", tenantID, serviceID, noon.Add(10*time.Minute), false),
		event("evt-1", tenantID, serviceID, noon.Add(5*time.Minute), true),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"accepted":2,"duplicates":1,"late":0}`, w.Body.String())

	t.Run("open windows are hidden by default", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/usage-aggregates?tenant_id="+tenantID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode(t, w)["data"])

		w = s.do(t, http.MethodGet, "/usage-aggregates?tenant_id="+tenantID+"&include_open=true", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode(t, w)["data"], 1)
	})

	s.clock.Set(noon.Add(66 * time.Minute))
	w = s.do(t, http.MethodPost, "/usage-aggregates/close", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"closed":1}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/usage-events", map[string]any{"events": []any{
		event("evt-3", tenantID, serviceID, noon.Add(20*time.Minute), false),
	}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"accepted":0,"duplicates":0,"late":1}`, w.Body.String(), "closed window rejects the event")

	w = s.do(t, http.MethodGet, "/usage-aggregates?tenant_id="+tenantID+"&start_time=2026-03-01T00:00:00Z&end_time=2026-03-02T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].([]any)
	require.Len(t, data, 1)
	agg := data[0].(map[string]any)
	assert.EqualValues(t, 2, agg["invocations"])
	assert.EqualValues(t, 1, agg["cold_starts"])

	period := map[string]any{
		"tenant_id":  tenantID,
		"start_time": "2026-03-01T00:00:00Z",
		"end_time":   "2026-04-01T00:00:00Z",
	}

	w = s.do(t, http.MethodPost, "/billing/calculate", period)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 0.5, decode(t, w)["total_cost"])

	w = s.do(t, http.MethodPost, "/billing/generate", period)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bill := decode(t, w)
	billID := bill["id"].(string)
	assert.EqualValues(t, 0.5, bill["total_cost"])
	assert.Contains(t, w.Body.String(), `"total_cost":0.50`)

	w = s.do(t, http.MethodPost, "/billing/generate", period)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, billID, decode(t, w)["id"], "same period returns the stored bill")

	w = s.do(t, http.MethodGet, "/bills?tenant_id="+tenantID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), billID)

	w = s.do(t, http.MethodPost, "/bills/"+billID+"/payments", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	paymentID := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodPost, "/bills/"+billID+"/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, paymentID, decode(t, w)["id"])

	w = s.do(t, http.MethodPost, "/payments/"+paymentID+"/reconcile", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "pending payments cannot be reconciled")
	assert.Equal(t, "ERR_INVALID_STATE", errorCode(t, w))

	w = s.do(t, http.MethodPost, "/payments/"+paymentID+"/pay", map[string]any{"external_ref": "psp-42"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decode(t, w)
	assert.Equal(t, "paid", paid["status"])
	assert.Equal(t, "psp-42", paid["external_ref"])

	w = s.do(t, http.MethodPost, "/payments/"+paymentID+"/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "reconciled", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/bills/"+billID+"/payment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, paymentID, decode(t, w)["id"])

	w = s.do(t, http.MethodPost, "/billing/generate", map[string]any{
		"tenant_id":  tenantID,
		"start_time": "2026-03-01T00:00:00Z",
		"end_time":   "2026-04-01T00:00:00Z",
		"regenerate": true,
	})
	assert.Equal(t, http.StatusConflict, w.Code, "settled bills are frozen")
	assert.Equal(t, "ERR_CONFLICT", errorCode(t, w))
}

func TestAPI_IngestValidation(t *testing.T) {
	s := newAPIStack(t)
	tenantID, serviceID := s.seed(t)
	at := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)

	t.Run("invalid element rejects the batch with its index", func(t *testing.T) {
		bad := event("", tenantID, serviceID, at, false)
		w := s.do(t, http.MethodPost, "/usage-events", []any{
			event("ok-1", tenantID, serviceID, at, false),
			bad,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"[1].event_id"`)

		w = s.do(t, http.MethodGet, "/usage-aggregates?include_open=true&tenant_id="+tenantID, nil)
		assert.Empty(t, decode(t, w)["data"], "nothing recorded")
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/usage-events", strings.NewReader(`[{"event_id":`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "ERR_VALIDATION", errorCode(t, w))
	})

	t.Run("empty batch", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/usage-events", []any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown service", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/usage-events", []any{
			event("ok-2", tenantID, "9b6f0a84-5f7e-4a57-9a8e-1b0f5d0e6c11", at, false),
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "ERR_NOT_FOUND", errorCode(t, w))
	})

	t.Run("bad query parameters", func(t *testing.T) {
		for _, q := range []string{"tenant_id=nope", "start_time=yesterday", "include_open=maybe"} {
			w := s.do(t, http.MethodGet, "/usage-aggregates?"+q, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, q)
		}
	})
}

func TestAPI_ServiceArtifactUpload(t *testing.T) {
	s := newAPIStack(t)
	tenantID, _ := s.seed(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("tenant_id", tenantID))
	require.NoError(t, mw.WriteField("name", "thumbnailer"))
	require.NoError(t, mw.WriteField("memory_limit_mb", "128"))
	part, err := mw.CreateFormFile("file", "handler.zip")
	require.NoError(t, err)
	_, err = part.Write([]byte("zip-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/services", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	svc := decode(t, w)
	serviceID := svc["id"].(string)
	artifact := svc["artifact"].(map[string]any)
	assert.Equal(t, "handler.zip", artifact["name"])
	assert.EqualValues(t, 9, artifact["size_bytes"])
	assert.NotContains(t, w.Body.String(), "artifacts/", "storage key stays internal")

	w = s.do(t, http.MethodGet, "/services/"+serviceID+"/artifact", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.True(t, strings.HasSuffix(w.Header().Get("Location"), "/handler.zip"))

	w = s.do(t, http.MethodGet, "/services?tenant_id="+tenantID+"&page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestAPI_ErrorEnvelope(t *testing.T) {
	s := newAPIStack(t)
	tenantID, serviceID := s.seed(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"bad uuid", http.MethodGet, "/tenants/abc", nil, http.StatusBadRequest, "ERR_VALIDATION"},
		{"unknown tenant", http.MethodGet, "/tenants/9b6f0a84-5f7e-4a57-9a8e-1b0f5d0e6c11", nil, http.StatusNotFound, "ERR_NOT_FOUND"},
		{"service without artifact", http.MethodGet, "/services/" + serviceID + "/artifact", nil, http.StatusNotFound, "ERR_NOT_FOUND"},
		{"bills need a tenant", http.MethodGet, "/bills", nil, http.StatusBadRequest, "ERR_VALIDATION"},
		{"inverted period", http.MethodPost, "/billing/calculate", map[string]any{
			"tenant_id": tenantID, "start_time": "2026-04-01T00:00:00Z", "end_time": "2026-03-01T00:00:00Z",
		}, http.StatusBadRequest, "ERR_VALIDATION"},
		{"negative rate", http.MethodPost, "/pricing-plans", map[string]any{
			"name": "broken", "price_per_gb_second": "-1",
		}, http.StatusBadRequest, "ERR_VALIDATION"},
		{"unknown payment", http.MethodPost, "/payments/9b6f0a84-5f7e-4a57-9a8e-1b0f5d0e6c11/pay", nil, http.StatusNotFound, "ERR_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorCode(t, w))
			assert.NotEmpty(t, decode(t, w)["request_id"])
		})
	}
}

func TestAPI_TenantPlanAssignment(t *testing.T) {
	s := newAPIStack(t)
	tenantID, _ := s.seed(t)

	w := s.do(t, http.MethodGet, "/tenants/"+tenantID+"/pricing-plan", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "standard", decode(t, w)["name"], "falls back to the default plan")

	w = s.do(t, http.MethodGet, "/pricing-plans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var plans []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plans))
	require.Len(t, plans, 1)
	assert.EqualValues(t, 0.5, plans[0]["price_per_cold_start"])
}

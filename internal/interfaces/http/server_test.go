package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/doc-lifecycle/internal/container"
)

type apiClient struct {
	t      *testing.T
	router http.Handler
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()

	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yaml")
	policy, err := os.ReadFile(filepath.Join("..", "..", "..", "configs", "policy.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(policyPath, policy, 0644))

	cfg := container.DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "lifecycle.db")
	cfg.Policy.Path = policyPath
	cfg.Policy.ReloadInterval = 0

	c, err := container.NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	return &apiClient{t: t, router: c.HTTPServer().Router()}
}

// do sends a request as the given actor ("id:role1,role2", or "" for anonymous)
func (a *apiClient) do(method, path, actor string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		id, roles, _ := strings.Cut(actor, ":")
		req.Header.Set("X-Actor-ID", id)
		req.Header.Set("X-Actor-Roles", roles)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *apiClient) decode(w *httptest.ResponseRecorder, into interface{}) envelope {
	a.t.Helper()
	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if into != nil && len(env.Data) > 0 {
		require.NoError(a.t, json.Unmarshal(env.Data, into))
	}
	return env
}

const (
	salesUser     = "10:sales"
	financeUser   = "20:finance"
	collectorUser = "30:collector"
)

type quoteDTO struct {
	ID          int64  `json:"id"`
	QuoteNo     string `json:"quote_no"`
	Status      string `json:"status"`
	CollectorID *int64 `json:"collector_id"`
}

type transitionDTO struct {
	Action         string `json:"action"`
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	NoOp           bool   `json:"no_op"`
}

func (a *apiClient) confirmedQuote(quoteNo string) int64 {
	a.t.Helper()

	w := a.do(http.MethodPost, "/api/quotes", salesUser, map[string]interface{}{
		"quote_no": quoteNo, "customer_name": "ACME", "total_amount": 100,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var q quoteDTO
	a.decode(w, &q)

	w = a.do(http.MethodPost, fmt.Sprintf("/api/quotes/%d/submit", q.ID), salesUser, nil)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodPost, fmt.Sprintf("/api/quotes/%d/finance-audit", q.ID), financeUser,
		map[string]interface{}{"pass": true, "new_collector_id": 30})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return q.ID
}

func TestHealthAndMetrics(t *testing.T) {
	api := newAPI(t)

	w := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, api.decode(w, nil).Success)

	w = api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `lifecycle_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestWhoAmI_ResolvesRoles(t *testing.T) {
	api := newAPI(t)

	w := api.do(http.MethodGet, "/api/me", "40:admin, warehouse", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var me struct {
		ID           int64    `json:"id"`
		Roles        []string `json:"roles"`
		Capabilities []string `json:"capabilities"`
	}
	api.decode(w, &me)
	assert.Equal(t, int64(40), me.ID)
	assert.Equal(t, []string{"admin", "warehouse"}, me.Roles)
	assert.Contains(t, me.Capabilities, "permission.decide")
	assert.Contains(t, me.Capabilities, "damage.repair")

	w = api.do(http.MethodGet, "/api/me", "abc:sales", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuoteLifecycleOverHTTP(t *testing.T) {
	api := newAPI(t)
	id := api.confirmedQuote("Q-100")

	w := api.do(http.MethodGet, fmt.Sprintf("/api/quotes/%d", id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var q quoteDTO
	api.decode(w, &q)
	assert.Equal(t, "CONFIRMED", q.Status)
	require.NotNil(t, q.CollectorID)
	assert.Equal(t, int64(30), *q.CollectorID)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/subjects/quote/%d/history", id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []struct {
		Action string `json:"action"`
	}
	api.decode(w, &history)
	require.Len(t, history, 2)
	assert.Equal(t, "APPROVE", history[0].Action)
	assert.Equal(t, "SUBMIT", history[1].Action)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/subjects/QUOTE/%d/actions", id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var permitted struct {
		Actions []string `json:"actions"`
	}
	api.decode(w, &permitted)
	assert.NotEmpty(t, permitted.Actions)
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	api := newAPI(t)
	id := api.confirmedQuote("Q-200")

	// Already confirmed
	w := api.do(http.MethodPost, fmt.Sprintf("/api/quotes/%d/submit", id), salesUser, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", api.decode(w, nil).Kind)

	w = api.do(http.MethodPost, "/api/quotes", salesUser, map[string]interface{}{
		"quote_no": "Q-201", "customer_name": "ACME", "total_amount": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var draft quoteDTO
	api.decode(w, &draft)

	w = api.do(http.MethodPost, fmt.Sprintf("/api/quotes/%d/submit", draft.ID), collectorUser, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "UNAUTHORIZED", api.decode(w, nil).Kind)

	w = api.do(http.MethodGet, "/api/quotes/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SUBJECT_NOT_FOUND", api.decode(w, nil).Kind)

	w = api.do(http.MethodGet, "/api/quotes/zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/subjects/shipment/1/history", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE", api.decode(w, nil).Kind)
}

func TestQuoteVersionsOverHTTP(t *testing.T) {
	api := newAPI(t)

	for i := 0; i < 2; i++ {
		w := api.do(http.MethodPost, "/api/quote-versions/Q-300", salesUser, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	// No version is active until one is activated
	w := api.do(http.MethodGet, "/api/quote-versions/Q-300/active", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, api.decode(w, nil).Data)

	w = api.do(http.MethodPost, "/api/quote-versions/Q-300/activate", financeUser, map[string]int{"version_no": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var activation struct {
		Deactivated []int `json:"deactivated"`
		NoOp        bool  `json:"no_op"`
	}
	api.decode(w, &activation)
	assert.False(t, activation.NoOp)
	assert.Empty(t, activation.Deactivated)

	w = api.do(http.MethodPost, "/api/quote-versions/Q-300/activate", financeUser, map[string]int{"version_no": 1})
	require.Equal(t, http.StatusOK, w.Code)
	api.decode(w, &activation)
	assert.Equal(t, []int{2}, activation.Deactivated)

	w = api.do(http.MethodPost, "/api/quote-versions/Q-300/activate", financeUser, map[string]int{"version_no": 9})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "VERSION_NOT_FOUND", api.decode(w, nil).Kind)

	w = api.do(http.MethodPost, "/api/quote-versions/Q-300/activate", salesUser, map[string]int{"version_no": 2})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPaymentFlowOverHTTP(t *testing.T) {
	api := newAPI(t)
	id := api.confirmedQuote("Q-400")

	w := api.do(http.MethodPost, fmt.Sprintf("/api/quotes/%d/payments", id), collectorUser, map[string]float64{"amount": 100})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p struct {
		ID int64 `json:"id"`
	}
	api.decode(w, &p)

	w = api.do(http.MethodPost, fmt.Sprintf("/api/payments/%d/submit", p.ID), collectorUser, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.do(http.MethodPost, fmt.Sprintf("/api/payments/%d/confirm", p.ID), financeUser, map[string]string{"reason": "received"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res transitionDTO
	api.decode(w, &res)
	assert.Equal(t, "CONFIRMED", res.NewStatus)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/quotes/%d", id), "", nil)
	var q quoteDTO
	api.decode(w, &q)
	assert.Equal(t, "PAID", q.Status)
}

func TestPaymentCancelOverHTTP(t *testing.T) {
	api := newAPI(t)
	id := api.confirmedQuote("Q-401")

	w := api.do(http.MethodPost, fmt.Sprintf("/api/quotes/%d/payments", id), "", map[string]float64{"amount": 10})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w = api.do(http.MethodPost, fmt.Sprintf("/api/quotes/%d/payments", id), collectorUser, map[string]float64{"amount": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p struct {
		ID int64 `json:"id"`
	}
	api.decode(w, &p)

	w = api.do(http.MethodPost, fmt.Sprintf("/api/payments/%d/cancel", p.ID), "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	w = api.do(http.MethodPost, fmt.Sprintf("/api/payments/%d/cancel", p.ID), salesUser, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w = api.do(http.MethodPost, fmt.Sprintf("/api/payments/%d/cancel", p.ID), collectorUser, map[string]string{"reason": "duplicate"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res transitionDTO
	api.decode(w, &res)
	assert.Equal(t, "CANCELLED", res.NewStatus)
}

func TestHistoryExportOverHTTP(t *testing.T) {
	api := newAPI(t)
	id := api.confirmedQuote("Q-500")

	w := api.do(http.MethodGet, fmt.Sprintf("/api/subjects/quote/%d/history/export", id), "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), fmt.Sprintf("quote-%d-history.xlsx", id))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("History", "A1")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Transition history of QUOTE:%d", id), title)
}

func TestCarrierRecommendationOverHTTP(t *testing.T) {
	api := newAPI(t)

	w := api.do(http.MethodPost, "/api/carrier-rules", "", map[string]interface{}{
		"carrier_name": "SF Express", "keyword": "北京", "priority": 10, "enabled": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/api/carrier-recommendation?address="+url.QueryEscape("北京市朝阳区"), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rule struct {
		CarrierName string `json:"carrier_name"`
	}
	api.decode(w, &rule)
	assert.Equal(t, "SF Express", rule.CarrierName)

	w = api.do(http.MethodGet, "/api/carrier-recommendation?address=Shanghai", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := api.decode(w, nil)
	assert.True(t, env.Success)
	assert.Empty(t, env.Data)
}

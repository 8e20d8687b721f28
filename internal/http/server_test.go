package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelas/internal/cache"
	"parcelas/internal/core"
	applog "parcelas/internal/log"
	"parcelas/internal/services"
	"parcelas/internal/storage/memory"
)

const owner = "user-1"

func newTestServer(t *testing.T, rateLimit int) (*Server, *cache.Manager) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateCategory(ctx, core.Category{ID: "cat-tv", OwnerID: owner, Name: "Electronics", Icon: "tv", Type: core.Expense}))
	require.NoError(t, store.CreateCategory(ctx, core.Category{ID: "cat-salary", OwnerID: owner, Name: "Salary", Icon: "cash", Type: core.Income}))
	require.NoError(t, store.CreateResponsible(ctx, core.Responsible{ID: "resp-ana", Name: "Ana"}))

	caches := cache.NewManager(nil)
	agg := services.NewAggregator(store, store, store, services.WithCache(50, time.Minute, caches))
	ledger := services.NewLedgerService(store, services.WithAggregator(agg))

	srv := NewServer(":0", ledger, Options{
		RateLimitPerMinute: rateLimit,
		Logger:             applog.NewText(applog.ParseLevel("error"), "test"),
		Caches:             caches,
	})
	srv.now = func() time.Time { return time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, caches
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", owner)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

const tvMovement = `{"name":"TV","amount":"300.00","denominator":3,"categoryId":"cat-tv",
	"date":"2024-03-15","type":"expense","responsibles":["resp-ana"]}`

func TestHealthReadyAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	}

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total 3")
	assert.Contains(t, rr.Body.String(), "movements_created_total 0")
	assert.Contains(t, rr.Body.String(), "cache_entries 0")
}

func TestMiddlewareChain(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestMissingOwnerIsUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/overview", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateMovementAndListTransactions(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	rr := do(t, srv, http.MethodPost, "/api/movements", tvMovement)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		MovementID string `json:"movementId"`
		Entries    []struct {
			ID          string  `json:"id"`
			MovementID  string  `json:"movementId"`
			Amount      float64 `json:"amount"`
			PaymentDate string  `json:"paymentDate"`
		} `json:"entries"`
	}
	decode(t, rr, &created)
	require.Len(t, created.Entries, 3)
	assert.NotEmpty(t, created.MovementID)
	assert.Equal(t, created.MovementID, created.Entries[2].MovementID)
	assert.Equal(t, 100.0, created.Entries[0].Amount)
	assert.Equal(t, "2024-06-01", created.Entries[2].PaymentDate)

	rr = do(t, srv, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listed struct {
		From         string            `json:"from"`
		To           string            `json:"to"`
		Transactions []json.RawMessage `json:"transactions"`
	}
	decode(t, rr, &listed)
	assert.Equal(t, "2024-03-01", listed.From)
	assert.Equal(t, "2024-03-31", listed.To)
	assert.Len(t, listed.Transactions, 3)

	rr = do(t, srv, http.MethodDelete, "/api/transactions/"+created.Entries[0].ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, srv, http.MethodDelete, "/api/transactions/"+created.Entries[0].ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Contains(t, rr.Body.String(), "movements_created_total 1")
}

func TestCreateMovementErrors(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	cases := []struct {
		name  string
		body  string
		code  int
		field string
	}{
		{name: "malformed json", body: `{"name":`, code: http.StatusBadRequest},
		{name: "unknown field", body: `{"nome":"TV"}`, code: http.StatusBadRequest},
		{name: "bad date", body: strings.Replace(tvMovement, "2024-03-15", "15/03/2024", 1), code: http.StatusBadRequest},
		{name: "zero installments", body: strings.Replace(tvMovement, `"denominator":3`, `"denominator":0`, 1), code: http.StatusUnprocessableEntity, field: "denominator"},
		{name: "unknown category", body: strings.Replace(tvMovement, "cat-tv", "cat-nope", 1), code: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/movements", tc.body)
			require.Equal(t, tc.code, rr.Code, rr.Body.String())

			var body struct {
				Error string `json:"error"`
				Field string `json:"field"`
			}
			decode(t, rr, &body)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tc.field, body.Field)
		})
	}
}

func TestStatsEndpoints(t *testing.T) {
	srv, caches := newTestServer(t, 60)
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/movements", tvMovement).Code)

	rr := do(t, srv, http.MethodGet, "/api/stats/categories?from=2024-01-01&to=2024-12-31", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stats []core.CategoryStat
	decode(t, rr, &stats)
	require.Len(t, stats, 1)
	assert.Equal(t, "Electronics", stats[0].CategoryName)
	assert.Equal(t, int64(30000), stats[0].Total.Cents)
	assert.Equal(t, 1, caches.Entries())

	rr = do(t, srv, http.MethodGet, "/api/stats/balance?from=2024-01-01&to=2024-12-31", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var balance map[string]any
	decode(t, rr, &balance)
	assert.Equal(t, "BRL", balance["currency"])
	assert.Equal(t, 300.0, balance["expense"])
	assert.Equal(t, "R$ 300,00", balance["expenseFormatted"])

	rr = do(t, srv, http.MethodGet, "/api/overview?from=2024-01-01&to=2024-12-31", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var ov struct {
		Balance    map[string]any      `json:"balance"`
		Categories []core.CategoryStat `json:"categories"`
	}
	decode(t, rr, &ov)
	require.Len(t, ov.Categories, 1)
	assert.Equal(t, "BRL", ov.Balance["currency"])
	assert.Equal(t, -300.0, ov.Balance["balance"])
	assert.Equal(t, "R$ 300,00", ov.Balance["expenseFormatted"])

	rr = do(t, srv, http.MethodGet, "/api/overview?from=2024-12-31&to=2024-01-01", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/overview?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, 60)
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/movements", tvMovement).Code)

	rr := do(t, srv, http.MethodGet, "/api/history-data?timeframe=year&year=2024", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var year historyResponse
	decode(t, rr, &year)
	assert.Equal(t, core.TimeframeYear, year.Timeframe)
	require.Len(t, year.Data, 12)
	assert.Equal(t, int64(10000), year.Data[3].Expense.Cents)

	rr = do(t, srv, http.MethodGet, "/api/history-data?timeframe=month&year=2024&month=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var month historyResponse
	decode(t, rr, &month)
	assert.Equal(t, 2, month.Month)
	assert.Len(t, month.Data, 29)

	statuses := map[string]int{
		"timeframe=month&year=2024&month=13": http.StatusUnprocessableEntity,
		"timeframe=week":                     http.StatusUnprocessableEntity,
		"year=abc":                           http.StatusBadRequest,
	}
	for query, want := range statuses {
		rr := do(t, srv, http.MethodGet, "/api/history-data?"+query, "")
		assert.Equal(t, want, rr.Code, query)
	}

	rr = do(t, srv, http.MethodGet, "/api/history-periods", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var periods struct {
		Years []int `json:"years"`
	}
	decode(t, rr, &periods)
	assert.Equal(t, []int{2024}, periods.Years)
}

func TestCategoryEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	rr := do(t, srv, http.MethodPost, "/api/categories", `{"name":"Groceries","icon":"cart","type":"expense"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created core.Category
	decode(t, rr, &created)
	assert.NotEmpty(t, created.ID)

	rr = do(t, srv, http.MethodPost, "/api/categories", `{"name":"groceries","icon":"cart","type":"expense"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/categories?type=expense", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var cats []core.Category
	decode(t, rr, &cats)
	assert.Len(t, cats, 2)

	rr = do(t, srv, http.MethodGet, "/api/categories?type=transfer", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/categories/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/categories/"+created.ID, "").Code)
}

func TestResponsibleEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	rr := do(t, srv, http.MethodPost, "/api/responsibles", `{"name":"Carla","color":"#ff0000"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created core.Responsible
	decode(t, rr, &created)

	rr = do(t, srv, http.MethodPost, "/api/responsibles", `{"name":"Al"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/responsibles", "")
	var list []core.Responsible
	decode(t, rr, &list)
	assert.Len(t, list, 2)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/responsibles/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/responsibles/"+created.ID, "").Code)
}

func TestSettingsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	rr := do(t, srv, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got struct {
		Currency   string          `json:"currency"`
		Currencies []core.Currency `json:"currencies"`
	}
	decode(t, rr, &got)
	assert.Equal(t, "BRL", got.Currency)
	assert.NotEmpty(t, got.Currencies)

	rr = do(t, srv, http.MethodPut, "/api/settings", `{"currency":" usd"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var saved core.UserSettings
	decode(t, rr, &saved)
	assert.Equal(t, "USD", saved.Currency)

	rr = do(t, srv, http.MethodPut, "/api/settings", `{"currency":"DOGE"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRateLimitAppliesToWritesOnly(t *testing.T) {
	srv, _ := newTestServer(t, 2)

	body := `{"name":"Carla"}`
	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/responsibles", body).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, srv, http.MethodPost, "/api/responsibles", `{"name":"Al"}`).Code)

	rr := do(t, srv, http.MethodPost, "/api/responsibles", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/responsibles", "").Code)
	}

	rr = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Contains(t, rr.Body.String(), "rate_limit_rejected_total 1")
}

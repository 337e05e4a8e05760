package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func newTestRouter(t *testing.T, repo *MockRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewSettlementHandler(newTestUseCase(t, repo), otel.Tracer("settlement-test"))

	r := gin.New()
	r.POST("/api/orders/:id/settle", handler.SettleOrder)
	r.GET("/api/orders/:id/movements", handler.ListMovements)
	r.GET("/api/inventory/resources", handler.ListResources)
	r.GET("/health", handler.HealthCheck)
	return r
}

func settleRequest(orderID string) *http.Request {
	body, _ := json.Marshal(map[string]int64{"actor_user_id": 1})
	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID+"/settle", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSettleOrderEndpoint_Success(t *testing.T) {
	repo := new(MockRepository)
	tx := new(MockTx)

	product7 := ResourceRef{Kind: ResourceKindProduct, ID: 7}

	repo.On("BeginTx", mock.Anything).Return(tx, nil)
	repo.On("GetOrderForUpdate", mock.Anything, tx, int64(10)).
		Return(&Order{ID: 10, BranchID: 1, Status: OrderStatusOpen}, nil)
	repo.On("HasDeduction", mock.Anything, tx, int64(10)).Return(false, nil)
	repo.On("GetOrderItems", mock.Anything, tx, int64(10)).
		Return([]OrderItem{{ID: 1, OrderID: 10, MenuID: 5, Quantity: decimal.NewFromInt(2)}}, nil)
	repo.On("GetActiveMappings", mock.Anything, tx, []int64{5}).
		Return(map[int64][]MenuMapping{
			5: {{MenuID: 5, Ref: product7, QuantityPerUnit: decimal.NewFromInt(3), Active: true}},
		}, nil)
	repo.On("GetResourceForUpdate", mock.Anything, tx, product7).
		Return(&Resource{Ref: product7, Status: ResourceStatusActive, Active: true, Stock: decimal.NewFromInt(10)}, nil)
	repo.On("DecreaseResourceStock", mock.Anything, tx, product7, mock.Anything).Return(nil)
	repo.On("InsertMovement", mock.Anything, tx, mock.Anything).Return(nil)
	repo.On("InsertDeduction", mock.Anything, tx, int64(10), int64(1)).Return(nil)
	repo.On("SetOrderStatus", mock.Anything, tx, int64(10), OrderStatusSettled).Return(nil)
	tx.On("Commit").Return(nil)
	tx.On("Rollback").Return(nil)

	w := httptest.NewRecorder()
	newTestRouter(t, repo).ServeHTTP(w, settleRequest("10"))

	require.Equal(t, http.StatusOK, w.Code)

	var result SettleResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Deducted)
	assert.Equal(t, 1, result.Count)
	assert.Empty(t, result.Reason)
}

func TestSettleOrderEndpoint_OrderNotFound(t *testing.T) {
	repo := new(MockRepository)
	tx := new(MockTx)

	repo.On("BeginTx", mock.Anything).Return(tx, nil)
	repo.On("GetOrderForUpdate", mock.Anything, tx, int64(99)).Return(nil, ErrOrderNotFound)
	tx.On("Rollback").Return(nil)

	w := httptest.NewRecorder()
	newTestRouter(t, repo).ServeHTTP(w, settleRequest("99"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSettleOrderEndpoint_BadRequests(t *testing.T) {
	repo := new(MockRepository)
	router := newTestRouter(t, repo)

	t.Run("non-numeric order id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, settleRequest("abc"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing actor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/orders/10/settle", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSettlementStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"order not found", ErrOrderNotFound, http.StatusNotFound},
		{"empty order", ErrEmptyOrder, http.StatusUnprocessableEntity},
		{"missing mapping", &MissingMappingError{MenuID: 5}, http.StatusUnprocessableEntity},
		{"invalid mapping", &InvalidMappingError{MenuID: 5, Reason: "zero rate"}, http.StatusUnprocessableEntity},
		{"inactive resource", &InactiveResourceError{Ref: ResourceRef{Kind: ResourceKindProduct, ID: 7}}, http.StatusUnprocessableEntity},
		{"insufficient stock", &InsufficientStockError{Ref: ResourceRef{Kind: ResourceKindProduct, ID: 7}}, http.StatusConflict},
		{"unexpected", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, settlementStatusCode(tc.err))
		})
	}
}

func TestListMovementsEndpoint(t *testing.T) {
	repo := new(MockRepository)

	movements := []Movement{
		{
			ID:          "mv-1",
			OrderID:     10,
			MenuID:      5,
			Ref:         ResourceRef{Kind: ResourceKindProduct, ID: 7},
			QtyDeducted: decimal.NewFromInt(6),
			StockBefore: decimal.NewFromInt(10),
			StockAfter:  decimal.NewFromInt(4),
			Actor:       1,
		},
	}
	repo.On("GetMovementsByOrderID", mock.Anything, int64(10)).Return(movements, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/10/movements", nil)
	newTestRouter(t, repo).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Movements []Movement `json:"movements"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Movements, 1)
	assert.Equal(t, "mv-1", body.Movements[0].ID)
}

func TestListResourcesEndpoint(t *testing.T) {
	repo := new(MockRepository)

	repo.On("ListResources", mock.Anything, int64(1)).Return([]Resource{
		{Ref: ResourceRef{Kind: ResourceKindProduct, ID: 7}, BranchID: 1, Name: "Burger", Status: ResourceStatusActive, Active: true, Stock: decimal.NewFromInt(4)},
	}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/inventory/resources?branch_id=1", nil)
	newTestRouter(t, repo).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthCheckEndpoint(t *testing.T) {
	repo := new(MockRepository)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	newTestRouter(t, repo).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

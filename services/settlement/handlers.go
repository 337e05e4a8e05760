package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SettlementHandler contém os handlers HTTP da liquidação
type SettlementHandler struct {
	useCase *SettlementUseCase
	tracer  trace.Tracer
}

// NewSettlementHandler cria uma nova instância de SettlementHandler
func NewSettlementHandler(useCase *SettlementUseCase, tracer trace.Tracer) *SettlementHandler {
	return &SettlementHandler{
		useCase: useCase,
		tracer:  tracer,
	}
}

// SettleRequest representa a requisição de liquidação de um pedido
type SettleRequest struct {
	ActorUserID int64 `json:"actor_user_id" binding:"required"`
}

// SettleOrder é o endpoint invocado pelo fluxo de conclusão de pedido
func (h *SettlementHandler) SettleOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "settle_order_request")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.Int64("actor_user_id", req.ActorUserID),
	)

	result, err := h.useCase.Settle(ctx, orderID, req.ActorUserID)
	if err != nil {
		c.JSON(settlementStatusCode(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// settlementStatusCode mapeia a taxonomia de erros da liquidação para HTTP
func settlementStatusCode(err error) int {
	var (
		missingMapping    *MissingMappingError
		invalidMapping    *InvalidMappingError
		inactiveResource  *InactiveResourceError
		insufficientStock *InsufficientStockError
	)

	switch {
	case errors.Is(err, ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyOrder),
		errors.As(err, &missingMapping),
		errors.As(err, &invalidMapping),
		errors.As(err, &inactiveResource):
		return http.StatusUnprocessableEntity
	case errors.As(err, &insufficientStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ListMovements lista as movimentações de um pedido (colaboradores de relatório)
func (h *SettlementHandler) ListMovements(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	movements, err := h.useCase.Movements(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list movements"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

// ListResources lista os recursos de estoque de uma filial
func (h *SettlementHandler) ListResources(c *gin.Context) {
	branchID, err := strconv.ParseInt(c.Query("branch_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid branch id"})
		return
	}

	resources, err := h.useCase.Resources(c.Request.Context(), branchID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list resources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"resources": resources})
}

// HealthCheck é o endpoint de health check
func (h *SettlementHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

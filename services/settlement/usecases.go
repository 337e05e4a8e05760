package main

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// settlementMetrics agrupa os instrumentos de métrica da liquidação
type settlementMetrics struct {
	completed metric.Int64Counter
	duplicate metric.Int64Counter
	failed    metric.Int64Counter
	resources metric.Int64Histogram
}

func newSettlementMetrics(meter metric.Meter) (*settlementMetrics, error) {
	completed, err := meter.Int64Counter("settlement.completed",
		metric.WithDescription("Orders settled with stock deducted"))
	if err != nil {
		return nil, err
	}

	duplicate, err := meter.Int64Counter("settlement.duplicate",
		metric.WithDescription("Settlement calls answered as idempotent no-ops"))
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter("settlement.failed",
		metric.WithDescription("Settlement calls aborted and rolled back"))
	if err != nil {
		return nil, err
	}

	resources, err := meter.Int64Histogram("settlement.resources",
		metric.WithDescription("Distinct resources deducted per settlement"))
	if err != nil {
		return nil, err
	}

	return &settlementMetrics{
		completed: completed,
		duplicate: duplicate,
		failed:    failed,
		resources: resources,
	}, nil
}

// SettlementUseCase contém a lógica de negócio da liquidação de pedidos
type SettlementUseCase struct {
	repository Repository
	resolver   *MappingResolver
	tracer     trace.Tracer
	metrics    *settlementMetrics
}

// NewSettlementUseCase cria uma nova instância de SettlementUseCase
func NewSettlementUseCase(
	repository Repository,
	resolver *MappingResolver,
	tracer trace.Tracer,
	metrics *settlementMetrics,
) *SettlementUseCase {
	return &SettlementUseCase{
		repository: repository,
		resolver:   resolver,
		tracer:     tracer,
		metrics:    metrics,
	}
}

// Settle liquida um pedido: converte suas linhas em baixa proporcional de
// estoque, tudo ou nada, dentro de uma única transação.
//
// O lock na linha do pedido serializa chamadas concorrentes para o mesmo
// pedido; os locks de recurso são adquiridos em ordem total estável para
// impedir deadlock entre liquidações com recursos em comum. Qualquer falha
// entre a leitura das linhas e o commit desfaz a transação inteira: nenhum
// estado parcial fica visível fora dela.
func (uc *SettlementUseCase) Settle(ctx context.Context, orderID, actorUserID int64) (*SettleResult, error) {
	ctx, span := uc.tracer.Start(ctx, "settle_order")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.Int64("actor_user_id", actorUserID),
	)

	log.Printf("➡️ [SETTLE] OrderID=%d Actor=%d", orderID, actorUserID)

	result, err := uc.settle(ctx, orderID, actorUserID)
	if err != nil {
		uc.metrics.failed.Add(ctx, 1)
		log.Printf("❌ [SETTLE] FAILED for OrderID=%d : %s", orderID, err)
		return nil, err
	}

	if !result.Deducted {
		uc.metrics.duplicate.Add(ctx, 1)
		log.Printf("ℹ️  [IDEMPOTENCY] Deduction already applied for OrderID=%d", orderID)
		return result, nil
	}

	uc.metrics.completed.Add(ctx, 1)
	uc.metrics.resources.Record(ctx, int64(result.Count))
	log.Printf("✅ [SETTLE] Success: OrderID=%d Resources=%d", orderID, result.Count)
	return result, nil
}

func (uc *SettlementUseCase) settle(ctx context.Context, orderID, actorUserID int64) (*SettleResult, error) {
	// 1. Inicia a transação
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 2. Obtém o pedido com LOCK PESSIMISTA (SELECT FOR UPDATE)
	order, err := uc.repository.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	// 3. Verificar idempotência dentro da transação, sob o lock do pedido
	deducted, err := uc.repository.HasDeduction(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if deducted {
		// Reconciliação: marcador presente mas status ainda aberto
		if order.Status != OrderStatusSettled {
			if err := uc.repository.SetOrderStatus(ctx, tx, orderID, OrderStatusSettled); err != nil {
				return nil, err
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit no-op settlement: %w", err)
		}
		return &SettleResult{Deducted: false, Reason: ReasonAlreadyDeducted}, nil
	}

	// 4. Carrega as linhas do pedido
	items, err := uc.repository.GetOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	// 5. Resolve os mapeamentos por cardápio distinto (leitura em lote)
	resolveCtx, resolveSpan := uc.tracer.Start(ctx, "resolve_mappings")
	mappingsByMenu, err := uc.resolver.ResolveAll(resolveCtx, tx, distinctMenuIDs(items), order.BranchID)
	resolveSpan.End()
	if err != nil {
		return nil, err
	}

	// 6. Agrega os requisitos por recurso
	requirements, err := aggregateRequirements(items, mappingsByMenu)
	if err != nil {
		return nil, err
	}

	// 7. Trava e valida cada recurso na ordem total (tipo, id)
	lockCtx, lockSpan := uc.tracer.Start(ctx, "lock_and_validate_resources")
	refs := sortedRequirementRefs(requirements)
	resources := make(map[ResourceRef]*Resource, len(refs))
	for _, ref := range refs {
		resource, err := uc.repository.GetResourceForUpdate(lockCtx, tx, ref)
		if err != nil {
			lockSpan.End()
			return nil, err
		}
		if !resource.Usable() {
			lockSpan.End()
			return nil, &InactiveResourceError{Ref: ref}
		}
		if resource.Stock.LessThan(requirements[ref].Quantity) {
			lockSpan.End()
			return nil, &InsufficientStockError{
				Ref:       ref,
				Required:  requirements[ref].Quantity,
				Available: resource.Stock,
			}
		}
		resources[ref] = resource
	}
	lockSpan.End()

	// 8-9. Com tudo validado, aplica as baixas e registra as movimentações
	applyCtx, applySpan := uc.tracer.Start(ctx, "apply_deductions")
	for _, ref := range refs {
		req := requirements[ref]
		resource := resources[ref]

		if err := uc.repository.DecreaseResourceStock(applyCtx, tx, ref, req.Quantity); err != nil {
			applySpan.End()
			return nil, err
		}

		movement := NewMovement(
			"",
			orderID,
			req.AttributedMenuID(),
			ref,
			req.Quantity,
			resource.Stock,
			resource.Stock.Sub(req.Quantity),
			actorUserID,
		)
		if err := uc.repository.InsertMovement(applyCtx, tx, movement); err != nil {
			applySpan.End()
			return nil, err
		}
	}
	applySpan.End()

	// 10. Insere o marcador de idempotência
	if err := uc.repository.InsertDeduction(ctx, tx, orderID, actorUserID); err != nil {
		return nil, err
	}

	// 11. Marca o pedido como liquidado
	if err := order.Settle(); err != nil {
		return nil, err
	}
	if err := uc.repository.SetOrderStatus(ctx, tx, orderID, order.Status); err != nil {
		return nil, err
	}

	// 12. Commit da transação
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	return &SettleResult{Deducted: true, Count: len(refs)}, nil
}

// Movements lista as movimentações registradas para um pedido
func (uc *SettlementUseCase) Movements(ctx context.Context, orderID int64) ([]Movement, error) {
	return uc.repository.GetMovementsByOrderID(ctx, orderID)
}

// Resources lista os recursos de estoque de uma filial
func (uc *SettlementUseCase) Resources(ctx context.Context, branchID int64) ([]Resource, error) {
	return uc.repository.ListResources(ctx, branchID)
}

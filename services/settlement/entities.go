package main

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ResourceKind identifica o tipo de recurso de estoque
type ResourceKind string

const (
	ResourceKindProduct  ResourceKind = "product"
	ResourceKindMaterial ResourceKind = "material"
)

// rank define a ordem total de aquisição de locks entre tipos de recurso
func (k ResourceKind) rank() int {
	if k == ResourceKindProduct {
		return 0
	}
	return 1
}

// ResourceRef referencia exatamente um recurso (produto XOR insumo)
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   int64        `json:"id"`
}

// Less implementa a ordem total usada para travar recursos sem deadlock:
// tipo primeiro (product < material), depois id ascendente
func (r ResourceRef) Less(other ResourceRef) bool {
	if r.Kind != other.Kind {
		return r.Kind.rank() < other.Kind.rank()
	}
	return r.ID < other.ID
}

// Resource é a visão unificada de um recurso de estoque carregada para baixa
type Resource struct {
	Ref      ResourceRef     `json:"ref"`
	BranchID int64           `json:"branch_id"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	Status   string          `json:"status"`
	Stock    decimal.Decimal `json:"stock"`
	Active   bool            `json:"active"`
}

// ResourceStatus representa os possíveis status de um recurso
const (
	ResourceStatusActive   = "active"
	ResourceStatusInactive = "inactive"
)

// Usable indica se o recurso pode ser consumido por uma liquidação
func (r *Resource) Usable() bool {
	return r.Active && r.Status == ResourceStatusActive
}

// Product representa um produto acabado do catálogo de uma filial
type Product struct {
	ID        int64           `json:"id" db:"id"`
	BranchID  int64           `json:"branch_id" db:"branch_id"`
	Name      string          `json:"name" db:"name"`
	Unit      string          `json:"unit" db:"unit"`
	Status    string          `json:"status" db:"status"`
	Stock     decimal.Decimal `json:"stock" db:"stock"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Active    bool            `json:"active" db:"active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// MenuMapping liga um item de cardápio a um recurso com uma taxa de consumo
type MenuMapping struct {
	ID              int64           `json:"id" db:"id"`
	MenuID          int64           `json:"menu_id" db:"menu_id"`
	Ref             ResourceRef     `json:"ref"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit" db:"quantity_per_unit"`
	Active          bool            `json:"active" db:"active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// NewFallbackMapping cria o mapeamento implícito usado quando um cardápio não
// tem mapeamento explícito mas existe um produto ativo com o mesmo nome
func NewFallbackMapping(menuID, productID int64) *MenuMapping {
	return &MenuMapping{
		MenuID:          menuID,
		Ref:             ResourceRef{Kind: ResourceKindProduct, ID: productID},
		QuantityPerUnit: decimal.NewFromInt(1),
		Active:          true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

// Order representa um pedido no sistema
type Order struct {
	ID        int64     `json:"id" db:"id"`
	BranchID  int64     `json:"branch_id" db:"branch_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OrderStatus representa os possíveis status de um pedido
const (
	OrderStatusOpen    = "open"
	OrderStatusSettled = "settled"
)

// Settle marca o pedido como liquidado
func (o *Order) Settle() error {
	if o.Status != OrderStatusOpen {
		return errors.New("only open orders can be settled")
	}

	o.Status = OrderStatusSettled
	return nil
}

// OrderItem representa uma linha de um pedido
type OrderItem struct {
	ID       int64           `json:"id" db:"id"`
	OrderID  int64           `json:"order_id" db:"order_id"`
	MenuID   int64           `json:"menu_id" db:"menu_id"`
	Quantity decimal.Decimal `json:"quantity" db:"quantity"`
}

// Movement representa uma movimentação de estoque (registro imutável de auditoria)
type Movement struct {
	ID          string          `json:"id" db:"id"`
	OrderID     int64           `json:"order_id" db:"order_id"`
	MenuID      int64           `json:"menu_id" db:"menu_id"`
	Ref         ResourceRef     `json:"ref"`
	QtyDeducted decimal.Decimal `json:"qty_deducted" db:"qty_deducted"`
	StockBefore decimal.Decimal `json:"stock_before" db:"stock_before"`
	StockAfter  decimal.Decimal `json:"stock_after" db:"stock_after"`
	Actor       int64           `json:"actor" db:"actor"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// NewMovement cria uma nova instância de Movement
func NewMovement(id string, orderID, menuID int64, ref ResourceRef, qty, before, after decimal.Decimal, actor int64) *Movement {
	return &Movement{
		ID:          id,
		OrderID:     orderID,
		MenuID:      menuID,
		Ref:         ref,
		QtyDeducted: qty,
		StockBefore: before,
		StockAfter:  after,
		Actor:       actor,
		CreatedAt:   time.Now(),
	}
}

// Requirement acumula a quantidade total exigida de um recurso por um pedido,
// junto com os cardápios que contribuíram (para atribuição de auditoria)
type Requirement struct {
	Ref      ResourceRef
	Quantity decimal.Decimal
	MenuIDs  []int64
}

// Add acumula a contribuição de um cardápio ao requisito
func (r *Requirement) Add(menuID int64, qty decimal.Decimal) {
	r.Quantity = r.Quantity.Add(qty)
	for _, id := range r.MenuIDs {
		if id == menuID {
			return
		}
	}
	r.MenuIDs = append(r.MenuIDs, menuID)
}

// AttributedMenuID é o cardápio ao qual a movimentação do recurso é atribuída.
// Política: o primeiro cardápio encontrado durante a agregação.
func (r *Requirement) AttributedMenuID() int64 {
	if len(r.MenuIDs) == 0 {
		return 0
	}
	return r.MenuIDs[0]
}

// ReasonAlreadyDeducted sinaliza que a baixa já havia sido aplicada ao pedido
const ReasonAlreadyDeducted = "already_deducted"

// SettleResult é o resultado da liquidação de um pedido
type SettleResult struct {
	Deducted bool   `json:"deducted"`
	Count    int    `json:"count,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

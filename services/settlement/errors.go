package main

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound = errors.New("settlement: order not found")
	ErrEmptyOrder    = errors.New("settlement: order has no items")
)

// MissingMappingError indica que um cardápio não possui mapeamento de consumo
// e o fallback por nome não conseguiu resolver um
type MissingMappingError struct {
	MenuID int64
}

func (e *MissingMappingError) Error() string {
	return fmt.Sprintf("settlement: no inventory mapping for menu %d", e.MenuID)
}

// InvalidMappingError indica um mapeamento malformado
type InvalidMappingError struct {
	MenuID int64
	Reason string
}

func (e *InvalidMappingError) Error() string {
	return fmt.Sprintf("settlement: invalid mapping for menu %d: %s", e.MenuID, e.Reason)
}

// InactiveResourceError indica que um recurso mapeado está inativo ou não existe
type InactiveResourceError struct {
	Ref ResourceRef
}

func (e *InactiveResourceError) Error() string {
	return fmt.Sprintf("settlement: %s %d is inactive or missing", e.Ref.Kind, e.Ref.ID)
}

// InsufficientStockError indica estoque insuficiente para um recurso exigido
type InsufficientStockError struct {
	Ref       ResourceRef
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("settlement: insufficient stock for %s %d: required %s, available %s",
		e.Ref.Kind, e.Ref.ID, e.Required, e.Available)
}

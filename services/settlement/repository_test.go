package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockTx simula uma transação
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockRepository para testes que não precisam de banco real
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) BeginTx(ctx context.Context) (Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Tx), args.Error(1)
}

func (m *MockRepository) GetOrderForUpdate(ctx context.Context, tx Tx, orderID int64) (*Order, error) {
	args := m.Called(ctx, tx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) GetOrderItems(ctx context.Context, tx Tx, orderID int64) ([]OrderItem, error) {
	args := m.Called(ctx, tx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]OrderItem), args.Error(1)
}

func (m *MockRepository) SetOrderStatus(ctx context.Context, tx Tx, orderID int64, status string) error {
	args := m.Called(ctx, tx, orderID, status)
	return args.Error(0)
}

func (m *MockRepository) HasDeduction(ctx context.Context, tx Tx, orderID int64) (bool, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) InsertDeduction(ctx context.Context, tx Tx, orderID, actorUserID int64) error {
	args := m.Called(ctx, tx, orderID, actorUserID)
	return args.Error(0)
}

func (m *MockRepository) GetActiveMappings(ctx context.Context, tx Tx, menuIDs []int64) (map[int64][]MenuMapping, error) {
	args := m.Called(ctx, tx, menuIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64][]MenuMapping), args.Error(1)
}

func (m *MockRepository) GetMenuName(ctx context.Context, tx Tx, menuID int64) (string, error) {
	args := m.Called(ctx, tx, menuID)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) FindActiveProductByName(ctx context.Context, tx Tx, branchID int64, name string) (*Product, error) {
	args := m.Called(ctx, tx, branchID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Product), args.Error(1)
}

func (m *MockRepository) InsertMapping(ctx context.Context, tx Tx, mapping *MenuMapping) error {
	args := m.Called(ctx, tx, mapping)
	return args.Error(0)
}

func (m *MockRepository) GetResourceForUpdate(ctx context.Context, tx Tx, ref ResourceRef) (*Resource, error) {
	args := m.Called(ctx, tx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Resource), args.Error(1)
}

func (m *MockRepository) DecreaseResourceStock(ctx context.Context, tx Tx, ref ResourceRef, qty decimal.Decimal) error {
	args := m.Called(ctx, tx, ref, qty)
	return args.Error(0)
}

func (m *MockRepository) InsertMovement(ctx context.Context, tx Tx, movement *Movement) error {
	args := m.Called(ctx, tx, movement)
	return args.Error(0)
}

func (m *MockRepository) GetMovementsByOrderID(ctx context.Context, orderID int64) ([]Movement, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Movement), args.Error(1)
}

func (m *MockRepository) ListResources(ctx context.Context, branchID int64) ([]Resource, error) {
	args := m.Called(ctx, branchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Resource), args.Error(1)
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestFoldResourceRef(t *testing.T) {
	t.Run("product only", func(t *testing.T) {
		ref, err := foldResourceRef(5, int64Ptr(7), nil)

		assert.NoError(t, err)
		assert.Equal(t, ResourceRef{Kind: ResourceKindProduct, ID: 7}, ref)
	})

	t.Run("material only", func(t *testing.T) {
		ref, err := foldResourceRef(5, nil, int64Ptr(3))

		assert.NoError(t, err)
		assert.Equal(t, ResourceRef{Kind: ResourceKindMaterial, ID: 3}, ref)
	})

	t.Run("both set is invalid", func(t *testing.T) {
		_, err := foldResourceRef(5, int64Ptr(7), int64Ptr(3))

		var invalid *InvalidMappingError
		assert.ErrorAs(t, err, &invalid)
		assert.Equal(t, int64(5), invalid.MenuID)
	})

	t.Run("neither set is invalid", func(t *testing.T) {
		_, err := foldResourceRef(5, nil, nil)

		var invalid *InvalidMappingError
		assert.ErrorAs(t, err, &invalid)
	})
}

package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestResolveAll_ExplicitMappings(t *testing.T) {
	repo := new(MockRepository)
	tx := new(MockTx)
	resolver := NewMappingResolver(repo)

	mappings := map[int64][]MenuMapping{
		5: {{MenuID: 5, Ref: ResourceRef{Kind: ResourceKindProduct, ID: 7}, QuantityPerUnit: decimal.NewFromInt(3)}},
	}
	repo.On("GetActiveMappings", mock.Anything, tx, []int64{5}).Return(mappings, nil)

	resolved, err := resolver.ResolveAll(context.Background(), tx, []int64{5}, 1)

	require.NoError(t, err)
	assert.Equal(t, mappings, resolved)
	repo.AssertNotCalled(t, "GetMenuName", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveAll_FallbackCreatesMapping(t *testing.T) {
	repo := new(MockRepository)
	tx := new(MockTx)
	resolver := NewMappingResolver(repo)

	fallback := MenuMapping{
		ID:              42,
		MenuID:          5,
		Ref:             ResourceRef{Kind: ResourceKindProduct, ID: 7},
		QuantityPerUnit: decimal.NewFromInt(1),
		Active:          true,
	}

	// First read finds nothing, second read (after insert) finds the new row
	repo.On("GetActiveMappings", mock.Anything, tx, []int64{5}).
		Return(map[int64][]MenuMapping{}, nil).Once()
	repo.On("GetMenuName", mock.Anything, tx, int64(5)).Return("Burger", nil)
	repo.On("FindActiveProductByName", mock.Anything, tx, int64(1), "Burger").
		Return(&Product{ID: 7, BranchID: 1, Name: "Burger"}, nil)
	repo.On("InsertMapping", mock.Anything, tx, mock.MatchedBy(func(m *MenuMapping) bool {
		return m.MenuID == 5 &&
			m.Ref == (ResourceRef{Kind: ResourceKindProduct, ID: 7}) &&
			m.QuantityPerUnit.Equal(decimal.NewFromInt(1))
	})).Return(nil)
	repo.On("GetActiveMappings", mock.Anything, tx, []int64{5}).
		Return(map[int64][]MenuMapping{5: {fallback}}, nil).Once()

	resolved, err := resolver.ResolveAll(context.Background(), tx, []int64{5}, 1)

	require.NoError(t, err)
	require.Len(t, resolved[5], 1)
	assert.Equal(t, fallback, resolved[5][0])
	repo.AssertExpectations(t)
}

func TestResolveAll_MissingMapping(t *testing.T) {
	repo := new(MockRepository)
	tx := new(MockTx)
	resolver := NewMappingResolver(repo)

	repo.On("GetActiveMappings", mock.Anything, tx, []int64{5}).
		Return(map[int64][]MenuMapping{}, nil)
	repo.On("GetMenuName", mock.Anything, tx, int64(5)).Return("Burger", nil)
	repo.On("FindActiveProductByName", mock.Anything, tx, int64(1), "Burger").
		Return(nil, nil)

	_, err := resolver.ResolveAll(context.Background(), tx, []int64{5}, 1)

	var missing *MissingMappingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, int64(5), missing.MenuID)
	repo.AssertNotCalled(t, "InsertMapping", mock.Anything, mock.Anything, mock.Anything)
}

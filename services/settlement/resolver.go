package main

import (
	"context"
	"fmt"
	"log"
)

// MappingResolver resolve os mapeamentos de consumo de cada cardápio,
// com fallback por nome quando não existe mapeamento explícito
type MappingResolver struct {
	repository Repository
}

// NewMappingResolver cria uma nova instância de MappingResolver
func NewMappingResolver(repository Repository) *MappingResolver {
	return &MappingResolver{
		repository: repository,
	}
}

// ResolveAll resolve os mapeamentos ativos de todos os cardápios do pedido.
// A leitura é feita em lote; o fallback roda cardápio a cardápio apenas para
// os que ficaram sem mapeamento.
func (mr *MappingResolver) ResolveAll(ctx context.Context, tx Tx, menuIDs []int64, branchID int64) (map[int64][]MenuMapping, error) {
	mappings, err := mr.repository.GetActiveMappings(ctx, tx, menuIDs)
	if err != nil {
		return nil, err
	}

	for _, menuID := range menuIDs {
		if len(mappings[menuID]) > 0 {
			continue
		}

		fallback, err := mr.resolveFallback(ctx, tx, menuID, branchID)
		if err != nil {
			return nil, err
		}
		mappings[menuID] = fallback
	}

	return mappings, nil
}

// Resolve resolve os mapeamentos de um único cardápio
func (mr *MappingResolver) Resolve(ctx context.Context, tx Tx, menuID, branchID int64) ([]MenuMapping, error) {
	all, err := mr.ResolveAll(ctx, tx, []int64{menuID}, branchID)
	if err != nil {
		return nil, err
	}
	return all[menuID], nil
}

// resolveFallback tenta o auto-mapeamento: um produto ativo da filial com o
// mesmo nome do cardápio vira um mapeamento implícito com taxa 1, persistido.
// A inserção usa ON CONFLICT DO NOTHING, então liquidações concorrentes do
// mesmo cardápio convergem para uma única linha; depois da inserção o conjunto
// é relido para devolver a linha vencedora.
func (mr *MappingResolver) resolveFallback(ctx context.Context, tx Tx, menuID, branchID int64) ([]MenuMapping, error) {
	menuName, err := mr.repository.GetMenuName(ctx, tx, menuID)
	if err != nil {
		return nil, err
	}

	product, err := mr.repository.FindActiveProductByName(ctx, tx, branchID, menuName)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, &MissingMappingError{MenuID: menuID}
	}

	mapping := NewFallbackMapping(menuID, product.ID)
	if err := mr.repository.InsertMapping(ctx, tx, mapping); err != nil {
		return nil, fmt.Errorf("failed to persist fallback mapping: %w", err)
	}

	log.Printf("ℹ️  [FALLBACK] Auto-mapped menu %d to product %d (%s)", menuID, product.ID, product.Name)

	refreshed, err := mr.repository.GetActiveMappings(ctx, tx, []int64{menuID})
	if err != nil {
		return nil, err
	}
	if len(refreshed[menuID]) == 0 {
		return nil, &MissingMappingError{MenuID: menuID}
	}

	return refreshed[menuID], nil
}

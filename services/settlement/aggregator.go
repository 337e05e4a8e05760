package main

import (
	"sort"
)

// aggregateRequirements soma, entre todas as linhas do pedido, a quantidade
// total exigida por recurso distinto: required = item.quantity × quantity_per_unit
func aggregateRequirements(items []OrderItem, mappingsByMenu map[int64][]MenuMapping) (map[ResourceRef]*Requirement, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	requirements := make(map[ResourceRef]*Requirement)
	for _, item := range items {
		for _, mapping := range mappingsByMenu[item.MenuID] {
			if !mapping.QuantityPerUnit.IsPositive() {
				return nil, &InvalidMappingError{
					MenuID: item.MenuID,
					Reason: "quantity_per_unit must be positive",
				}
			}

			required := item.Quantity.Mul(mapping.QuantityPerUnit)

			req, ok := requirements[mapping.Ref]
			if !ok {
				req = &Requirement{Ref: mapping.Ref}
				requirements[mapping.Ref] = req
			}
			req.Add(item.MenuID, required)
		}
	}

	return requirements, nil
}

// sortedRequirementRefs devolve as chaves dos requisitos na ordem total de
// aquisição de locks (tipo, depois id ascendente), evitando ciclos de deadlock
// entre liquidações concorrentes com recursos em comum
func sortedRequirementRefs(requirements map[ResourceRef]*Requirement) []ResourceRef {
	refs := make([]ResourceRef, 0, len(requirements))
	for ref := range requirements {
		refs = append(refs, ref)
	}

	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Less(refs[j])
	})

	return refs
}

// distinctMenuIDs devolve os cardápios referenciados pelo pedido, na ordem do
// primeiro encontro (a mesma ordem usada na atribuição das movimentações)
func distinctMenuIDs(items []OrderItem) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, item := range items {
		if !seen[item.MenuID] {
			seen[item.MenuID] = true
			ids = append(ids, item.MenuID)
		}
	}
	return ids
}

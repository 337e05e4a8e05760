package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository define a interface para operações de banco de dados da liquidação.
// Toda operação transacional recebe o handle Tx explicitamente: nunca há
// transação ambiente ou opcional.
type Repository interface {
	BeginTx(ctx context.Context) (Tx, error)

	GetOrderForUpdate(ctx context.Context, tx Tx, orderID int64) (*Order, error)
	GetOrderItems(ctx context.Context, tx Tx, orderID int64) ([]OrderItem, error)
	SetOrderStatus(ctx context.Context, tx Tx, orderID int64, status string) error

	HasDeduction(ctx context.Context, tx Tx, orderID int64) (bool, error)
	InsertDeduction(ctx context.Context, tx Tx, orderID, actorUserID int64) error

	GetActiveMappings(ctx context.Context, tx Tx, menuIDs []int64) (map[int64][]MenuMapping, error)
	GetMenuName(ctx context.Context, tx Tx, menuID int64) (string, error)
	FindActiveProductByName(ctx context.Context, tx Tx, branchID int64, name string) (*Product, error)
	InsertMapping(ctx context.Context, tx Tx, mapping *MenuMapping) error

	GetResourceForUpdate(ctx context.Context, tx Tx, ref ResourceRef) (*Resource, error)
	DecreaseResourceStock(ctx context.Context, tx Tx, ref ResourceRef, qty decimal.Decimal) error
	InsertMovement(ctx context.Context, tx Tx, movement *Movement) error

	GetMovementsByOrderID(ctx context.Context, orderID int64) ([]Movement, error)
	ListResources(ctx context.Context, branchID int64) ([]Resource, error)
}

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit() error {
	return t.tx.Commit(context.Background())
}

func (t *PostgresTx) Rollback() error {
	return t.tx.Rollback(context.Background())
}

// PostgresRepository implementa Repository usando PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository cria uma nova instância de PostgresRepository
func NewRepository(db *pgxpool.Pool) Repository {
	return &PostgresRepository{
		db: db,
	}
}

// BeginTx inicia uma nova transação
func (r *PostgresRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PostgresTx{tx: tx}, nil
}

// GetOrderForUpdate obtém o pedido com lock pessimista (FOR UPDATE).
// O lock na linha do pedido serializa tentativas concorrentes de liquidação.
func (r *PostgresRepository) GetOrderForUpdate(ctx context.Context, tx Tx, orderID int64) (*Order, error) {
	pgTx := tx.(*PostgresTx).tx

	query := `
		SELECT id, branch_id, user_id, status, created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`

	var order Order
	err := pgTx.QueryRow(ctx, query, orderID).Scan(
		&order.ID,
		&order.BranchID,
		&order.UserID,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order with lock: %w", err)
	}

	return &order, nil
}

// GetOrderItems carrega as linhas do pedido em ordem de inserção
func (r *PostgresRepository) GetOrderItems(ctx context.Context, tx Tx, orderID int64) ([]OrderItem, error) {
	pgTx := tx.(*PostgresTx).tx

	query := `
		SELECT id, order_id, menu_id, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := pgTx.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// SetOrderStatus atualiza o status do pedido
func (r *PostgresRepository) SetOrderStatus(ctx context.Context, tx Tx, orderID int64, status string) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return nil
}

// HasDeduction verifica se já existe marcador de baixa para o pedido
func (r *PostgresRepository) HasDeduction(ctx context.Context, tx Tx, orderID int64) (bool, error) {
	pgTx := tx.(*PostgresTx).tx

	query := `
		SELECT EXISTS(
			SELECT 1 FROM order_inventory_deductions
			WHERE order_id = $1
		)
	`

	var exists bool
	err := pgTx.QueryRow(ctx, query, orderID).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// InsertDeduction insere o marcador de idempotência do pedido.
// A constraint UNIQUE em order_id garante no máximo um marcador por pedido.
func (r *PostgresRepository) InsertDeduction(ctx context.Context, tx Tx, orderID, actorUserID int64) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		INSERT INTO order_inventory_deductions (order_id, deducted_by, deducted_at)
		VALUES ($1, $2, NOW())
	`, orderID, actorUserID)
	if err != nil {
		return fmt.Errorf("failed to insert deduction marker: %w", err)
	}

	return nil
}

// GetActiveMappings carrega os mapeamentos ativos de todos os cardápios em uma
// única consulta, agrupados por menu_id
func (r *PostgresRepository) GetActiveMappings(ctx context.Context, tx Tx, menuIDs []int64) (map[int64][]MenuMapping, error) {
	pgTx := tx.(*PostgresTx).tx

	query := `
		SELECT id, menu_id, product_id, material_id, quantity_per_unit, active, created_at, updated_at
		FROM menu_inventory_map
		WHERE menu_id = ANY($1) AND active
		ORDER BY id
	`

	rows, err := pgTx.Query(ctx, query, menuIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	mappings := make(map[int64][]MenuMapping)
	for rows.Next() {
		var (
			m          MenuMapping
			productID  *int64
			materialID *int64
		)
		err := rows.Scan(&m.ID, &m.MenuID, &productID, &materialID, &m.QuantityPerUnit, &m.Active, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}

		ref, err := foldResourceRef(m.MenuID, productID, materialID)
		if err != nil {
			return nil, err
		}
		m.Ref = ref

		mappings[m.MenuID] = append(mappings[m.MenuID], m)
	}

	return mappings, rows.Err()
}

// foldResourceRef converte o par de colunas anuláveis na variante ResourceRef.
// Exatamente uma das duas colunas deve estar preenchida.
func foldResourceRef(menuID int64, productID, materialID *int64) (ResourceRef, error) {
	switch {
	case productID != nil && materialID != nil:
		return ResourceRef{}, &InvalidMappingError{MenuID: menuID, Reason: "references both product and material"}
	case productID != nil:
		return ResourceRef{Kind: ResourceKindProduct, ID: *productID}, nil
	case materialID != nil:
		return ResourceRef{Kind: ResourceKindMaterial, ID: *materialID}, nil
	default:
		return ResourceRef{}, &InvalidMappingError{MenuID: menuID, Reason: "references neither product nor material"}
	}
}

// GetMenuName busca o nome de exibição de um cardápio (usado só pelo fallback)
func (r *PostgresRepository) GetMenuName(ctx context.Context, tx Tx, menuID int64) (string, error) {
	pgTx := tx.(*PostgresTx).tx

	var name string
	err := pgTx.QueryRow(ctx, `
		SELECT name FROM menus WHERE id = $1
	`, menuID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &MissingMappingError{MenuID: menuID}
	}
	if err != nil {
		return "", fmt.Errorf("failed to get menu name: %w", err)
	}

	return name, nil
}

// FindActiveProductByName busca um produto ativo da filial com nome exato.
// Retorna nil quando não há correspondência.
func (r *PostgresRepository) FindActiveProductByName(ctx context.Context, tx Tx, branchID int64, name string) (*Product, error) {
	pgTx := tx.(*PostgresTx).tx

	query := `
		SELECT id, branch_id, name, unit, status, stock, price, active, created_at, updated_at
		FROM inventory_products
		WHERE branch_id = $1 AND name = $2 AND active AND status = 'active'
		ORDER BY id
		LIMIT 1
	`

	var p Product
	err := pgTx.QueryRow(ctx, query, branchID, name).Scan(
		&p.ID, &p.BranchID, &p.Name, &p.Unit, &p.Status, &p.Stock, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by name: %w", err)
	}

	return &p, nil
}

// InsertMapping persiste um mapeamento. Para mapeamentos de produto, o índice
// único em (menu_id, product_id) mais ON CONFLICT DO NOTHING torna a criação
// idempotente sob liquidações concorrentes do mesmo cardápio.
func (r *PostgresRepository) InsertMapping(ctx context.Context, tx Tx, mapping *MenuMapping) error {
	pgTx := tx.(*PostgresTx).tx

	var productID, materialID *int64
	switch mapping.Ref.Kind {
	case ResourceKindProduct:
		productID = &mapping.Ref.ID
	case ResourceKindMaterial:
		materialID = &mapping.Ref.ID
	}

	query := `
		INSERT INTO menu_inventory_map (menu_id, product_id, material_id, quantity_per_unit, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (menu_id, product_id) WHERE product_id IS NOT NULL DO NOTHING
	`

	_, err := pgTx.Exec(ctx, query, mapping.MenuID, productID, materialID, mapping.QuantityPerUnit, mapping.Active)
	if err != nil {
		return fmt.Errorf("failed to insert mapping: %w", err)
	}

	return nil
}

// GetResourceForUpdate obtém o recurso com lock pessimista (FOR UPDATE).
// Isso bloqueia a linha no banco até o Commit ou Rollback.
func (r *PostgresRepository) GetResourceForUpdate(ctx context.Context, tx Tx, ref ResourceRef) (*Resource, error) {
	pgTx := tx.(*PostgresTx).tx

	var query string
	switch ref.Kind {
	case ResourceKindProduct:
		query = `
			SELECT id, branch_id, name, unit, status, stock, active
			FROM inventory_products
			WHERE id = $1
			FOR UPDATE
		`
	case ResourceKindMaterial:
		query = `
			SELECT id, branch_id, name, unit, status, stock, active
			FROM inventory_materials
			WHERE id = $1
			FOR UPDATE
		`
	default:
		return nil, fmt.Errorf("unknown resource kind %q", ref.Kind)
	}

	res := Resource{Ref: ref}
	err := pgTx.QueryRow(ctx, query, ref.ID).Scan(
		&res.Ref.ID,
		&res.BranchID,
		&res.Name,
		&res.Unit,
		&res.Status,
		&res.Stock,
		&res.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &InactiveResourceError{Ref: ref}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource with lock: %w", err)
	}

	return &res, nil
}

// DecreaseResourceStock aplica a baixa no estoque do recurso.
// A linha já está travada por GetResourceForUpdate e o estoque validado.
func (r *PostgresRepository) DecreaseResourceStock(ctx context.Context, tx Tx, ref ResourceRef, qty decimal.Decimal) error {
	pgTx := tx.(*PostgresTx).tx

	var query string
	switch ref.Kind {
	case ResourceKindProduct:
		query = `
			UPDATE inventory_products
			SET stock = stock - $2,
			    updated_at = NOW()
			WHERE id = $1
		`
	case ResourceKindMaterial:
		query = `
			UPDATE inventory_materials
			SET stock = stock - $2,
			    updated_at = NOW()
			WHERE id = $1
		`
	default:
		return fmt.Errorf("unknown resource kind %q", ref.Kind)
	}

	_, err := pgTx.Exec(ctx, query, ref.ID, qty)
	if err != nil {
		return fmt.Errorf("failed to decrease stock: %w", err)
	}

	return nil
}

// InsertMovement insere o registro de movimentação (append-only)
func (r *PostgresRepository) InsertMovement(ctx context.Context, tx Tx, movement *Movement) error {
	pgTx := tx.(*PostgresTx).tx

	if movement.ID == "" {
		movement.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_movements (id, order_id, menu_id, resource_type, resource_id, qty_deducted, stock_before, stock_after, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`

	_, err := pgTx.Exec(ctx, query,
		movement.ID,
		movement.OrderID,
		movement.MenuID,
		string(movement.Ref.Kind),
		movement.Ref.ID,
		movement.QtyDeducted,
		movement.StockBefore,
		movement.StockAfter,
		movement.Actor,
	)
	if err != nil {
		return fmt.Errorf("failed to insert movement record: %w", err)
	}

	return nil
}

// GetMovementsByOrderID lista as movimentações de um pedido (leitura sem lock,
// consumida pelos colaboradores de relatório)
func (r *PostgresRepository) GetMovementsByOrderID(ctx context.Context, orderID int64) ([]Movement, error) {
	query := `
		SELECT id, order_id, menu_id, resource_type, resource_id, qty_deducted, stock_before, stock_after, actor, created_at
		FROM inventory_movements
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var (
			m    Movement
			kind string
		)
		err := rows.Scan(&m.ID, &m.OrderID, &m.MenuID, &kind, &m.Ref.ID, &m.QtyDeducted, &m.StockBefore, &m.StockAfter, &m.Actor, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.Ref.Kind = ResourceKind(kind)
		movements = append(movements, m)
	}

	return movements, rows.Err()
}

// ListResources lista produtos e insumos de uma filial (leitura sem lock,
// consumida pelas telas de gestão de catálogo)
func (r *PostgresRepository) ListResources(ctx context.Context, branchID int64) ([]Resource, error) {
	query := `
		SELECT 'product' AS kind, id, branch_id, name, unit, status, stock, active
		FROM inventory_products
		WHERE branch_id = $1
		UNION ALL
		SELECT 'material' AS kind, id, branch_id, name, unit, status, stock, active
		FROM inventory_materials
		WHERE branch_id = $1
		ORDER BY kind, id
	`

	rows, err := r.db.Query(ctx, query, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var resources []Resource
	for rows.Next() {
		var (
			res  Resource
			kind string
		)
		err := rows.Scan(&kind, &res.Ref.ID, &res.BranchID, &res.Name, &res.Unit, &res.Status, &res.Stock, &res.Active)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		res.Ref.Kind = ResourceKind(kind)
		resources = append(resources, res)
	}

	return resources, rows.Err()
}

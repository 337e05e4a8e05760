package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations são idempotentes e executadas uma única vez na subida do processo,
// nunca durante o atendimento de requisições
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS inventory_products (
		id BIGSERIAL PRIMARY KEY,
		branch_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		stock NUMERIC(20,4) NOT NULL DEFAULT 0 CHECK (stock >= 0),
		price NUMERIC(20,4) NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_products_branch_name
		ON inventory_products (branch_id, name)`,
	`CREATE TABLE IF NOT EXISTS inventory_materials (
		id BIGSERIAL PRIMARY KEY,
		branch_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		stock NUMERIC(20,4) NOT NULL DEFAULT 0 CHECK (stock >= 0),
		unit_cost NUMERIC(20,4) NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS menus (
		id BIGSERIAL PRIMARY KEY,
		branch_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS menu_inventory_map (
		id BIGSERIAL PRIMARY KEY,
		menu_id BIGINT NOT NULL,
		product_id BIGINT REFERENCES inventory_products(id),
		material_id BIGINT REFERENCES inventory_materials(id),
		quantity_per_unit NUMERIC(20,4) NOT NULL CHECK (quantity_per_unit > 0),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK ((product_id IS NULL) <> (material_id IS NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_menu_inventory_map_product
		ON menu_inventory_map (menu_id, product_id) WHERE product_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		branch_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id),
		menu_id BIGINT NOT NULL,
		quantity NUMERIC(20,4) NOT NULL CHECK (quantity > 0)
	)`,
	`CREATE TABLE IF NOT EXISTS order_inventory_deductions (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL UNIQUE,
		deducted_by BIGINT NOT NULL,
		deducted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_movements (
		id UUID PRIMARY KEY,
		order_id BIGINT NOT NULL,
		menu_id BIGINT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id BIGINT NOT NULL,
		qty_deducted NUMERIC(20,4) NOT NULL,
		stock_before NUMERIC(20,4) NOT NULL,
		stock_after NUMERIC(20,4) NOT NULL,
		actor BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_movements_order
		ON inventory_movements (order_id)`,
}

// runMigrations aplica o schema na subida do processo
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Printf("✅ Schema migrations applied (%d statements)", len(migrations))
	return nil
}

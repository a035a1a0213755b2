package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	if err := InitSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return pool, nil
}

// InitSchema creates the catalog, booking selection, user and audit tables.
// Foreign keys default to restrict so that deleting a referenced catalog
// row fails instead of leaving dangling links.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`
		create table if not exists menu_lists (
			id bigint generated by default as identity primary key,
			name text not null
		)`,
		`
		create table if not exists menu_types (
			id bigint generated by default as identity primary key,
			name text not null,
			price numeric(12,2) not null default 0,
			menu_list_id bigint not null references menu_lists(id)
		)`,
		`
		create table if not exists categories (
			id bigint generated by default as identity primary key,
			name text not null
		)`,
		`
		create table if not exists items (
			id bigint generated by default as identity primary key,
			name text not null
		)`,
		`create unique index if not exists items_name_key on items (lower(name))`,
		`
		create table if not exists category_menu_types (
			id bigint generated by default as identity primary key,
			menu_type_id bigint not null references menu_types(id),
			category_id bigint not null references categories(id),
			item_limit integer not null check (item_limit >= 1),
			unique (menu_type_id, category_id)
		)`,
		`
		create table if not exists item_category_menu_types (
			id bigint generated by default as identity primary key,
			item_id bigint not null references items(id),
			category_menu_type_id bigint not null references category_menu_types(id),
			unique (item_id, category_menu_type_id)
		)`,
		`
		create table if not exists bookings (
			id bigint primary key,
			customer_id bigint not null,
			menu_price numeric(12,2) not null default 0,
			selection_version bigint not null default 0,
			menu_confirmed_at timestamptz null
		)`,
		`
		create table if not exists customer_menu_selections (
			id bigint generated by default as identity primary key,
			booking_id bigint not null references bookings(id),
			icmt_id bigint not null references item_category_menu_types(id),
			unique (booking_id, icmt_id)
		)`,
		`
		create table if not exists users (
			id bigint generated by default as identity primary key,
			email text not null,
			name text not null default '',
			role text not null default 'CUSTOMER',
			password_hash text not null
		)`,
		`create unique index if not exists users_email_key on users (lower(email))`,
		`
		create table if not exists selection_audit (
			id bigint generated by default as identity primary key,
			event_id text not null unique,
			booking_id bigint not null,
			actor_id bigint not null,
			action text not null,
			added bigint[] not null default '{}',
			removed bigint[] not null default '{}',
			version bigint not null,
			created_at timestamptz not null default now()
		)`,
		`create index if not exists selection_audit_booking_idx on selection_audit (booking_id, id)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

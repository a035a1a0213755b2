package store

import (
	"context"
	"errors"
	"fmt"

	"canteen-menu-service/pkg/menu"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
)

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Postgres) LoadTables(ctx context.Context) (menu.Tables, error) {
	var (
		t   menu.Tables
		err error
	)

	t.MenuLists, err = collect(ctx, s.db, `select id, name from menu_lists order by id`, func(row pgx.CollectableRow) (menu.MenuList, error) {
		var v menu.MenuList
		err := row.Scan(&v.ID, &v.Name)
		return v, err
	})
	if err != nil {
		return t, err
	}

	t.MenuTypes, err = collect(ctx, s.db, `select id, name, price, menu_list_id from menu_types order by id`, func(row pgx.CollectableRow) (menu.MenuType, error) {
		var (
			v     menu.MenuType
			price pgtype.Numeric
		)
		err := row.Scan(&v.ID, &v.Name, &price, &v.MenuListID)
		v.Price = numericToFloat64(price)
		return v, err
	})
	if err != nil {
		return t, err
	}

	t.Categories, err = collect(ctx, s.db, `select id, name from categories order by id`, func(row pgx.CollectableRow) (menu.Category, error) {
		var v menu.Category
		err := row.Scan(&v.ID, &v.Name)
		return v, err
	})
	if err != nil {
		return t, err
	}

	t.Items, err = collect(ctx, s.db, `select id, name from items order by id`, func(row pgx.CollectableRow) (menu.Item, error) {
		var v menu.Item
		err := row.Scan(&v.ID, &v.Name)
		return v, err
	})
	if err != nil {
		return t, err
	}

	t.CategoryMenuTypes, err = collect(ctx, s.db, `select id, menu_type_id, category_id, item_limit from category_menu_types order by id`, func(row pgx.CollectableRow) (menu.CategoryMenuType, error) {
		var v menu.CategoryMenuType
		err := row.Scan(&v.ID, &v.MenuTypeID, &v.CategoryID, &v.ItemLimit)
		return v, err
	})
	if err != nil {
		return t, err
	}

	t.ItemCategoryMenuTypes, err = collect(ctx, s.db, `select id, item_id, category_menu_type_id from item_category_menu_types order by id`, func(row pgx.CollectableRow) (menu.ItemCategoryMenuType, error) {
		var v menu.ItemCategoryMenuType
		err := row.Scan(&v.ID, &v.ItemID, &v.CategoryMenuTypeID)
		return v, err
	})
	return t, err
}

func (s *Postgres) CreateMenuList(ctx context.Context, v menu.MenuList) (menu.MenuList, error) {
	err := s.db.QueryRow(ctx, `insert into menu_lists (name) values ($1) returning id`, v.Name).Scan(&v.ID)
	return v, mapWriteError(err)
}

func (s *Postgres) UpdateMenuList(ctx context.Context, v menu.MenuList) (menu.MenuList, error) {
	return v, s.update(ctx, `update menu_lists set name = $2 where id = $1`, v.ID, v.Name)
}

func (s *Postgres) DeleteMenuList(ctx context.Context, id int64) error {
	return s.delete(ctx, `delete from menu_lists where id = $1`, id)
}

func (s *Postgres) CreateMenuType(ctx context.Context, v menu.MenuType) (menu.MenuType, error) {
	err := s.db.QueryRow(ctx, `
		insert into menu_types (name, price, menu_list_id) values ($1, $2, $3) returning id
	`, v.Name, v.Price, v.MenuListID).Scan(&v.ID)
	return v, mapWriteError(err)
}

func (s *Postgres) UpdateMenuType(ctx context.Context, v menu.MenuType) (menu.MenuType, error) {
	return v, s.update(ctx, `
		update menu_types set name = $2, price = $3, menu_list_id = $4 where id = $1
	`, v.ID, v.Name, v.Price, v.MenuListID)
}

func (s *Postgres) DeleteMenuType(ctx context.Context, id int64) error {
	return s.delete(ctx, `delete from menu_types where id = $1`, id)
}

func (s *Postgres) CreateCategory(ctx context.Context, v menu.Category) (menu.Category, error) {
	err := s.db.QueryRow(ctx, `insert into categories (name) values ($1) returning id`, v.Name).Scan(&v.ID)
	return v, mapWriteError(err)
}

func (s *Postgres) UpdateCategory(ctx context.Context, v menu.Category) (menu.Category, error) {
	return v, s.update(ctx, `update categories set name = $2 where id = $1`, v.ID, v.Name)
}

func (s *Postgres) DeleteCategory(ctx context.Context, id int64) error {
	return s.delete(ctx, `delete from categories where id = $1`, id)
}

func (s *Postgres) CreateItem(ctx context.Context, v menu.Item) (menu.Item, error) {
	err := s.db.QueryRow(ctx, `insert into items (name) values ($1) returning id`, v.Name).Scan(&v.ID)
	return v, mapWriteError(err)
}

func (s *Postgres) UpdateItem(ctx context.Context, v menu.Item) (menu.Item, error) {
	return v, s.update(ctx, `update items set name = $2 where id = $1`, v.ID, v.Name)
}

func (s *Postgres) DeleteItem(ctx context.Context, id int64) error {
	return s.delete(ctx, `delete from items where id = $1`, id)
}

func (s *Postgres) CreateCategoryMenuType(ctx context.Context, v menu.CategoryMenuType) (menu.CategoryMenuType, error) {
	err := s.db.QueryRow(ctx, `
		insert into category_menu_types (menu_type_id, category_id, item_limit) values ($1, $2, $3) returning id
	`, v.MenuTypeID, v.CategoryID, v.ItemLimit).Scan(&v.ID)
	return v, mapWriteError(err)
}

func (s *Postgres) UpdateCategoryMenuType(ctx context.Context, v menu.CategoryMenuType) (menu.CategoryMenuType, error) {
	return v, s.update(ctx, `
		update category_menu_types set menu_type_id = $2, category_id = $3, item_limit = $4 where id = $1
	`, v.ID, v.MenuTypeID, v.CategoryID, v.ItemLimit)
}

func (s *Postgres) DeleteCategoryMenuType(ctx context.Context, id int64) error {
	return s.delete(ctx, `delete from category_menu_types where id = $1`, id)
}

func (s *Postgres) CreateItemCategoryMenuType(ctx context.Context, v menu.ItemCategoryMenuType) (menu.ItemCategoryMenuType, error) {
	err := s.db.QueryRow(ctx, `
		insert into item_category_menu_types (item_id, category_menu_type_id) values ($1, $2) returning id
	`, v.ItemID, v.CategoryMenuTypeID).Scan(&v.ID)
	return v, mapWriteError(err)
}

func (s *Postgres) UpdateItemCategoryMenuType(ctx context.Context, v menu.ItemCategoryMenuType) (menu.ItemCategoryMenuType, error) {
	return v, s.update(ctx, `
		update item_category_menu_types set item_id = $2, category_menu_type_id = $3 where id = $1
	`, v.ID, v.ItemID, v.CategoryMenuTypeID)
}

func (s *Postgres) DeleteItemCategoryMenuType(ctx context.Context, id int64) error {
	return s.delete(ctx, `delete from item_category_menu_types where id = $1`, id)
}

func (s *Postgres) update(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) delete(ctx context.Context, sql string, id int64) error {
	tag, err := s.db.Exec(ctx, sql, id)
	if err != nil {
		return mapDeleteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const bookingColumns = `id, customer_id, menu_price, selection_version, menu_confirmed_at`

func (s *Postgres) EnsureBooking(ctx context.Context, id int64, customerID int64) (Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `
		insert into bookings (id, customer_id) values ($1, $2)
		on conflict (id) do update set customer_id = excluded.customer_id
		returning `+bookingColumns, id, customerID))
	return b, mapWriteError(err)
}

func (s *Postgres) GetBooking(ctx context.Context, id int64) (Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `select `+bookingColumns+` from bookings where id = $1`, id))
	if err != nil {
		return Booking{}, mapReadError(err)
	}
	return b, nil
}

func (s *Postgres) ListSelections(ctx context.Context, bookingID int64) (Booking, []int64, error) {
	b, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, nil, err
	}
	ids, err := selectionIDs(ctx, s.db, bookingID)
	return b, ids, err
}

func (s *Postgres) ListBookingSelections(ctx context.Context) ([]BookingSelections, error) {
	return collect(ctx, s.db, `
		select b.id, b.customer_id, b.menu_price, b.selection_version, b.menu_confirmed_at,
			array_agg(s.icmt_id order by s.id)
		from bookings b
		join customer_menu_selections s on s.booking_id = b.id
		group by b.id
		order by b.id
	`, func(row pgx.CollectableRow) (BookingSelections, error) {
		var (
			out       BookingSelections
			price     pgtype.Numeric
			confirmed pgtype.Timestamptz
		)
		err := row.Scan(&out.ID, &out.CustomerID, &price, &out.Version, &confirmed, &out.ICMTIDs)
		out.MenuPrice = numericToFloat64(price)
		if confirmed.Valid {
			out.ConfirmedAt = &confirmed.Time
		}
		return out, err
	})
}

func (s *Postgres) MutateSelections(ctx context.Context, bookingID int64, fn MutateFunc) (Booking, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := scanBooking(tx.QueryRow(ctx, `select `+bookingColumns+` from bookings where id = $1 for update`, bookingID))
	if err != nil {
		return Booking{}, mapReadError(err)
	}

	current, err := selectionIDs(ctx, tx, bookingID)
	if err != nil {
		return Booking{}, err
	}

	change, err := fn(b, current)
	if err != nil {
		return Booking{}, err
	}

	if _, err := tx.Exec(ctx, `delete from customer_menu_selections where booking_id = $1`, bookingID); err != nil {
		return Booking{}, err
	}
	if len(change.ICMTIDs) > 0 {
		rows := make([][]any, 0, len(change.ICMTIDs))
		for _, id := range change.ICMTIDs {
			rows = append(rows, []any{bookingID, id})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"customer_menu_selections"}, []string{"booking_id", "icmt_id"}, pgx.CopyFromRows(rows)); err != nil {
			return Booking{}, mapWriteError(err)
		}
	}

	updated, err := scanBooking(tx.QueryRow(ctx, `
		update bookings set
			menu_price = $2,
			selection_version = selection_version + 1,
			menu_confirmed_at = case $3::int when 1 then now() when 2 then null else menu_confirmed_at end
		where id = $1
		returning `+bookingColumns, bookingID, change.MenuPrice, int(change.Confirmation)))
	if err != nil {
		return Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Booking{}, err
	}
	return updated, nil
}

func (s *Postgres) CreateUser(ctx context.Context, u User) (User, error) {
	err := s.db.QueryRow(ctx, `
		insert into users (email, name, role, password_hash) values ($1, $2, $3, $4) returning id
	`, u.Email, u.Name, u.Role, u.PasswordHash).Scan(&u.ID)
	return u, mapWriteError(err)
}

func (s *Postgres) FindUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRow(ctx, `
		select id, email, name, role, password_hash from users where lower(email) = lower($1)
	`, email).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash)
	if err != nil {
		return User{}, mapReadError(err)
	}
	return u, nil
}

func (s *Postgres) AppendAudit(ctx context.Context, e AuditEntry) error {
	_, err := s.db.Exec(ctx, `
		insert into selection_audit (event_id, booking_id, actor_id, action, added, removed, version)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (event_id) do nothing
	`, e.EventID, e.BookingID, e.ActorID, e.Action, nonNilIDs(e.Added), nonNilIDs(e.Removed), e.Version)
	return err
}

func (s *Postgres) ListAudit(ctx context.Context, bookingID int64) ([]AuditEntry, error) {
	return collect(ctx, s.db, `
		select id, event_id, booking_id, actor_id, action, added, removed, version, created_at
		from selection_audit
		where booking_id = $1
		order by id
	`, func(row pgx.CollectableRow) (AuditEntry, error) {
		var e AuditEntry
		err := row.Scan(&e.ID, &e.EventID, &e.BookingID, &e.ActorID, &e.Action, &e.Added, &e.Removed, &e.Version, &e.CreatedAt)
		return e, err
	}, bookingID)
}

func collect[T any](ctx context.Context, q querier, sql string, scan pgx.RowToFunc[T], args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

func selectionIDs(ctx context.Context, q querier, bookingID int64) ([]int64, error) {
	rows, err := q.Query(ctx, `select icmt_id from customer_menu_selections where booking_id = $1 order by id`, bookingID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func scanBooking(row pgx.Row) (Booking, error) {
	var (
		b         Booking
		price     pgtype.Numeric
		confirmed pgtype.Timestamptz
	)
	if err := row.Scan(&b.ID, &b.CustomerID, &price, &b.Version, &confirmed); err != nil {
		return Booking{}, err
	}
	b.MenuPrice = numericToFloat64(price)
	if confirmed.Valid {
		b.ConfirmedAt = &confirmed.Time
	}
	return b, nil
}

func numericToFloat64(value pgtype.Numeric) float64 {
	if !value.Valid {
		return 0
	}
	f, err := value.Float64Value()
	if err != nil {
		return 0
	}
	return f.Float64
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func mapReadError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrInvalidReference)
		case "23505":
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrDuplicate)
		}
	}
	return err
}

func mapDeleteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrInUse)
	}
	return err
}

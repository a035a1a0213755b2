package store

import (
	"context"
	"errors"
	"time"

	"canteen-menu-service/pkg/menu"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInUse            = errors.New("still referenced")
	ErrDuplicate        = errors.New("already exists")
	ErrInvalidReference = errors.New("referenced row does not exist")
	ErrVersionConflict  = errors.New("selection version conflict")
)

type Booking struct {
	ID          int64      `json:"id"`
	CustomerID  int64      `json:"customerId"`
	MenuPrice   float64    `json:"menuPrice"`
	Version     int64      `json:"version"`
	ConfirmedAt *time.Time `json:"confirmedAt"`
}

func (b Booking) Confirmed() bool {
	return b.ConfirmedAt != nil
}

type BookingSelections struct {
	Booking
	ICMTIDs []int64
}

type User struct {
	ID           int64
	Email        string
	Name         string
	Role         string
	PasswordHash string
}

type AuditEntry struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"eventId"`
	BookingID int64     `json:"bookingId"`
	ActorID   int64     `json:"actorId"`
	Action    string    `json:"action"`
	Added     []int64   `json:"added"`
	Removed   []int64   `json:"removed"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

type Confirmation int

const (
	ConfirmKeep Confirmation = iota
	ConfirmSet
	ConfirmClear
)

// Change is the state a booking's selection set is rewritten to.
type Change struct {
	ICMTIDs      []int64
	MenuPrice    float64
	Confirmation Confirmation
}

// MutateFunc receives the locked booking and its current selections and
// returns the replacement. Returning an error aborts without writing.
type MutateFunc func(b Booking, current []int64) (Change, error)

type CatalogStore interface {
	LoadTables(ctx context.Context) (menu.Tables, error)

	CreateMenuList(ctx context.Context, v menu.MenuList) (menu.MenuList, error)
	UpdateMenuList(ctx context.Context, v menu.MenuList) (menu.MenuList, error)
	DeleteMenuList(ctx context.Context, id int64) error

	CreateMenuType(ctx context.Context, v menu.MenuType) (menu.MenuType, error)
	UpdateMenuType(ctx context.Context, v menu.MenuType) (menu.MenuType, error)
	DeleteMenuType(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, v menu.Category) (menu.Category, error)
	UpdateCategory(ctx context.Context, v menu.Category) (menu.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	CreateItem(ctx context.Context, v menu.Item) (menu.Item, error)
	UpdateItem(ctx context.Context, v menu.Item) (menu.Item, error)
	DeleteItem(ctx context.Context, id int64) error

	CreateCategoryMenuType(ctx context.Context, v menu.CategoryMenuType) (menu.CategoryMenuType, error)
	UpdateCategoryMenuType(ctx context.Context, v menu.CategoryMenuType) (menu.CategoryMenuType, error)
	DeleteCategoryMenuType(ctx context.Context, id int64) error

	CreateItemCategoryMenuType(ctx context.Context, v menu.ItemCategoryMenuType) (menu.ItemCategoryMenuType, error)
	UpdateItemCategoryMenuType(ctx context.Context, v menu.ItemCategoryMenuType) (menu.ItemCategoryMenuType, error)
	DeleteItemCategoryMenuType(ctx context.Context, id int64) error
}

type BookingStore interface {
	EnsureBooking(ctx context.Context, id int64, customerID int64) (Booking, error)
	GetBooking(ctx context.Context, id int64) (Booking, error)
	ListSelections(ctx context.Context, bookingID int64) (Booking, []int64, error)
	ListBookingSelections(ctx context.Context) ([]BookingSelections, error)
	// MutateSelections serializes writers per booking, rewrites the whole
	// selection set and bumps the booking version in one transaction.
	MutateSelections(ctx context.Context, bookingID int64, fn MutateFunc) (Booking, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
}

type AuditStore interface {
	// AppendAudit ignores entries whose EventID was already stored.
	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, bookingID int64) ([]AuditEntry, error)
}

type Store interface {
	CatalogStore
	BookingStore
	UserStore
	AuditStore
}

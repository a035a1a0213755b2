package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"canteen-menu-service/pkg/menu"
)

// Memory is an in-process Store used by tests and by development runs
// without DATABASE_URL. It enforces the same reference rules as the
// Postgres schema.
type Memory struct {
	mu sync.Mutex

	seq        int64
	menuLists  map[int64]menu.MenuList
	menuTypes  map[int64]menu.MenuType
	categories map[int64]menu.Category
	items      map[int64]menu.Item
	links      map[int64]menu.CategoryMenuType
	icmts      map[int64]menu.ItemCategoryMenuType
	bookings   map[int64]Booking
	selections map[int64][]int64
	users      map[int64]User
	audit      []AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		menuLists:  make(map[int64]menu.MenuList),
		menuTypes:  make(map[int64]menu.MenuType),
		categories: make(map[int64]menu.Category),
		items:      make(map[int64]menu.Item),
		links:      make(map[int64]menu.CategoryMenuType),
		icmts:      make(map[int64]menu.ItemCategoryMenuType),
		bookings:   make(map[int64]Booking),
		selections: make(map[int64][]int64),
		users:      make(map[int64]User),
	}
}

func (m *Memory) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *Memory) LoadTables(ctx context.Context) (menu.Tables, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return menu.Tables{
		MenuLists:             sortedValues(m.menuLists, func(v menu.MenuList) int64 { return v.ID }),
		MenuTypes:             sortedValues(m.menuTypes, func(v menu.MenuType) int64 { return v.ID }),
		Categories:            sortedValues(m.categories, func(v menu.Category) int64 { return v.ID }),
		Items:                 sortedValues(m.items, func(v menu.Item) int64 { return v.ID }),
		CategoryMenuTypes:     sortedValues(m.links, func(v menu.CategoryMenuType) int64 { return v.ID }),
		ItemCategoryMenuTypes: sortedValues(m.icmts, func(v menu.ItemCategoryMenuType) int64 { return v.ID }),
	}, nil
}

// Menu lists

func (m *Memory) CreateMenuList(ctx context.Context, v menu.MenuList) (menu.MenuList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = m.nextID()
	m.menuLists[v.ID] = v
	return v, nil
}

func (m *Memory) UpdateMenuList(ctx context.Context, v menu.MenuList) (menu.MenuList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.menuLists[v.ID]; !ok {
		return menu.MenuList{}, ErrNotFound
	}
	m.menuLists[v.ID] = v
	return v, nil
}

func (m *Memory) DeleteMenuList(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.menuLists[id]; !ok {
		return ErrNotFound
	}
	for _, mt := range m.menuTypes {
		if mt.MenuListID == id {
			return fmt.Errorf("menu list %d: %w", id, ErrInUse)
		}
	}
	delete(m.menuLists, id)
	return nil
}

// Menu types

func (m *Memory) CreateMenuType(ctx context.Context, v menu.MenuType) (menu.MenuType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.menuLists[v.MenuListID]; !ok {
		return menu.MenuType{}, fmt.Errorf("menu list %d: %w", v.MenuListID, ErrInvalidReference)
	}
	v.ID = m.nextID()
	m.menuTypes[v.ID] = v
	return v, nil
}

func (m *Memory) UpdateMenuType(ctx context.Context, v menu.MenuType) (menu.MenuType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.menuTypes[v.ID]; !ok {
		return menu.MenuType{}, ErrNotFound
	}
	if _, ok := m.menuLists[v.MenuListID]; !ok {
		return menu.MenuType{}, fmt.Errorf("menu list %d: %w", v.MenuListID, ErrInvalidReference)
	}
	m.menuTypes[v.ID] = v
	return v, nil
}

func (m *Memory) DeleteMenuType(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.menuTypes[id]; !ok {
		return ErrNotFound
	}
	for _, link := range m.links {
		if link.MenuTypeID == id {
			return fmt.Errorf("menu type %d: %w", id, ErrInUse)
		}
	}
	delete(m.menuTypes, id)
	return nil
}

// Categories

func (m *Memory) CreateCategory(ctx context.Context, v menu.Category) (menu.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = m.nextID()
	m.categories[v.ID] = v
	return v, nil
}

func (m *Memory) UpdateCategory(ctx context.Context, v menu.Category) (menu.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[v.ID]; !ok {
		return menu.Category{}, ErrNotFound
	}
	m.categories[v.ID] = v
	return v, nil
}

func (m *Memory) DeleteCategory(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return ErrNotFound
	}
	for _, link := range m.links {
		if link.CategoryID == id {
			return fmt.Errorf("category %d: %w", id, ErrInUse)
		}
	}
	delete(m.categories, id)
	return nil
}

// Items

func (m *Memory) CreateItem(ctx context.Context, v menu.Item) (menu.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.itemNameTaken(v.Name, 0) {
		return menu.Item{}, fmt.Errorf("item %q: %w", v.Name, ErrDuplicate)
	}
	v.ID = m.nextID()
	m.items[v.ID] = v
	return v, nil
}

func (m *Memory) UpdateItem(ctx context.Context, v menu.Item) (menu.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[v.ID]; !ok {
		return menu.Item{}, ErrNotFound
	}
	if m.itemNameTaken(v.Name, v.ID) {
		return menu.Item{}, fmt.Errorf("item %q: %w", v.Name, ErrDuplicate)
	}
	m.items[v.ID] = v
	return v, nil
}

func (m *Memory) DeleteItem(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	for _, row := range m.icmts {
		if row.ItemID == id {
			return fmt.Errorf("item %d: %w", id, ErrInUse)
		}
	}
	delete(m.items, id)
	return nil
}

func (m *Memory) itemNameTaken(name string, except int64) bool {
	for id, it := range m.items {
		if id != except && strings.EqualFold(it.Name, name) {
			return true
		}
	}
	return false
}

// Category / menu type links

func (m *Memory) CreateCategoryMenuType(ctx context.Context, v menu.CategoryMenuType) (menu.CategoryMenuType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLink(v); err != nil {
		return menu.CategoryMenuType{}, err
	}
	v.ID = m.nextID()
	m.links[v.ID] = v
	return v, nil
}

func (m *Memory) UpdateCategoryMenuType(ctx context.Context, v menu.CategoryMenuType) (menu.CategoryMenuType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[v.ID]; !ok {
		return menu.CategoryMenuType{}, ErrNotFound
	}
	if err := m.checkLink(v); err != nil {
		return menu.CategoryMenuType{}, err
	}
	m.links[v.ID] = v
	return v, nil
}

func (m *Memory) DeleteCategoryMenuType(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[id]; !ok {
		return ErrNotFound
	}
	for _, row := range m.icmts {
		if row.CategoryMenuTypeID == id {
			return fmt.Errorf("category menu type %d: %w", id, ErrInUse)
		}
	}
	delete(m.links, id)
	return nil
}

func (m *Memory) checkLink(v menu.CategoryMenuType) error {
	if _, ok := m.menuTypes[v.MenuTypeID]; !ok {
		return fmt.Errorf("menu type %d: %w", v.MenuTypeID, ErrInvalidReference)
	}
	if _, ok := m.categories[v.CategoryID]; !ok {
		return fmt.Errorf("category %d: %w", v.CategoryID, ErrInvalidReference)
	}
	for id, link := range m.links {
		if id != v.ID && link.MenuTypeID == v.MenuTypeID && link.CategoryID == v.CategoryID {
			return fmt.Errorf("category %d on menu type %d: %w", v.CategoryID, v.MenuTypeID, ErrDuplicate)
		}
	}
	return nil
}

// Item / category / menu type links

func (m *Memory) CreateItemCategoryMenuType(ctx context.Context, v menu.ItemCategoryMenuType) (menu.ItemCategoryMenuType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkICMT(v); err != nil {
		return menu.ItemCategoryMenuType{}, err
	}
	v.ID = m.nextID()
	m.icmts[v.ID] = v
	return v, nil
}

func (m *Memory) UpdateItemCategoryMenuType(ctx context.Context, v menu.ItemCategoryMenuType) (menu.ItemCategoryMenuType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.icmts[v.ID]; !ok {
		return menu.ItemCategoryMenuType{}, ErrNotFound
	}
	if err := m.checkICMT(v); err != nil {
		return menu.ItemCategoryMenuType{}, err
	}
	m.icmts[v.ID] = v
	return v, nil
}

func (m *Memory) DeleteItemCategoryMenuType(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.icmts[id]; !ok {
		return ErrNotFound
	}
	for _, ids := range m.selections {
		for _, selected := range ids {
			if selected == id {
				return fmt.Errorf("item category menu type %d: %w", id, ErrInUse)
			}
		}
	}
	delete(m.icmts, id)
	return nil
}

func (m *Memory) checkICMT(v menu.ItemCategoryMenuType) error {
	if _, ok := m.items[v.ItemID]; !ok {
		return fmt.Errorf("item %d: %w", v.ItemID, ErrInvalidReference)
	}
	if _, ok := m.links[v.CategoryMenuTypeID]; !ok {
		return fmt.Errorf("category menu type %d: %w", v.CategoryMenuTypeID, ErrInvalidReference)
	}
	for id, row := range m.icmts {
		if id != v.ID && row.ItemID == v.ItemID && row.CategoryMenuTypeID == v.CategoryMenuTypeID {
			return fmt.Errorf("item %d in category menu type %d: %w", v.ItemID, v.CategoryMenuTypeID, ErrDuplicate)
		}
	}
	return nil
}

// Bookings

func (m *Memory) EnsureBooking(ctx context.Context, id int64, customerID int64) (Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		b = Booking{ID: id}
	}
	b.CustomerID = customerID
	m.bookings[id] = b
	return b, nil
}

func (m *Memory) GetBooking(ctx context.Context, id int64) (Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) ListSelections(ctx context.Context, bookingID int64) (Booking, []int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return Booking{}, nil, ErrNotFound
	}
	return b, copyIDs(m.selections[bookingID]), nil
}

func (m *Memory) ListBookingSelections(ctx context.Context) ([]BookingSelections, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BookingSelections, 0)
	for id, ids := range m.selections {
		if len(ids) == 0 {
			continue
		}
		out = append(out, BookingSelections{Booking: m.bookings[id], ICMTIDs: copyIDs(ids)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MutateSelections holds the store lock while fn runs; fn must not call
// back into the store.
func (m *Memory) MutateSelections(ctx context.Context, bookingID int64, fn MutateFunc) (Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return Booking{}, ErrNotFound
	}

	change, err := fn(b, copyIDs(m.selections[bookingID]))
	if err != nil {
		return Booking{}, err
	}
	for _, id := range change.ICMTIDs {
		if _, ok := m.icmts[id]; !ok {
			return Booking{}, fmt.Errorf("item category menu type %d: %w", id, ErrInvalidReference)
		}
	}

	m.selections[bookingID] = copyIDs(change.ICMTIDs)
	b.MenuPrice = change.MenuPrice
	b.Version++
	switch change.Confirmation {
	case ConfirmSet:
		now := time.Now()
		b.ConfirmedAt = &now
	case ConfirmClear:
		b.ConfirmedAt = nil
	}
	m.bookings[bookingID] = b
	return b, nil
}

// Users

func (m *Memory) CreateUser(ctx context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return User{}, fmt.Errorf("user %q: %w", u.Email, ErrDuplicate)
		}
	}
	u.ID = m.nextID()
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) FindUserByEmail(ctx context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// Audit

func (m *Memory) AppendAudit(ctx context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.audit {
		if e.EventID != "" && existing.EventID == e.EventID {
			return nil
		}
	}
	e.ID = m.nextID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) ListAudit(ctx context.Context, bookingID int64) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEntry, 0)
	for _, e := range m.audit {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func sortedValues[T any](rows map[int64]T, id func(T) int64) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func copyIDs(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

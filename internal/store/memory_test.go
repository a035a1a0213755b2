package store

import (
	"context"
	"errors"
	"testing"

	"canteen-menu-service/pkg/menu"
)

func TestMemoryReferenceRules(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	list, _ := m.CreateMenuList(ctx, menu.MenuList{Name: "Lunch"})
	mt, err := m.CreateMenuType(ctx, menu.MenuType{Name: "Set", Price: 10, MenuListID: list.ID})
	if err != nil {
		t.Fatalf("create menu type: %v", err)
	}
	cat, _ := m.CreateCategory(ctx, menu.Category{Name: "Soup"})
	link, err := m.CreateCategoryMenuType(ctx, menu.CategoryMenuType{MenuTypeID: mt.ID, CategoryID: cat.ID, ItemLimit: 1})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	item, _ := m.CreateItem(ctx, menu.Item{Name: "Tomato"})
	icmt, err := m.CreateItemCategoryMenuType(ctx, menu.ItemCategoryMenuType{ItemID: item.ID, CategoryMenuTypeID: link.ID})
	if err != nil {
		t.Fatalf("create icmt: %v", err)
	}

	tests := []struct {
		name     string
		run      func() error
		expected error
	}{
		{"menu type without list", func() error {
			_, err := m.CreateMenuType(ctx, menu.MenuType{Name: "X", MenuListID: 999})
			return err
		}, ErrInvalidReference},
		{"duplicate link", func() error {
			_, err := m.CreateCategoryMenuType(ctx, menu.CategoryMenuType{MenuTypeID: mt.ID, CategoryID: cat.ID, ItemLimit: 2})
			return err
		}, ErrDuplicate},
		{"duplicate item name", func() error {
			_, err := m.CreateItem(ctx, menu.Item{Name: "tomato"})
			return err
		}, ErrDuplicate},
		{"delete list in use", func() error { return m.DeleteMenuList(ctx, list.ID) }, ErrInUse},
		{"delete category in use", func() error { return m.DeleteCategory(ctx, cat.ID) }, ErrInUse},
		{"delete item in use", func() error { return m.DeleteItem(ctx, item.ID) }, ErrInUse},
		{"delete missing", func() error { return m.DeleteItem(ctx, 999) }, ErrNotFound},
		{"update missing", func() error {
			_, err := m.UpdateCategory(ctx, menu.Category{ID: 999, Name: "X"})
			return err
		}, ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, err)
			}
		})
	}

	if _, err := m.EnsureBooking(ctx, 1, 5); err != nil {
		t.Fatalf("ensure booking: %v", err)
	}
	if _, err := m.MutateSelections(ctx, 1, func(b Booking, current []int64) (Change, error) {
		return Change{ICMTIDs: []int64{icmt.ID}}, nil
	}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if err := m.DeleteItemCategoryMenuType(ctx, icmt.ID); !errors.Is(err, ErrInUse) {
		t.Fatalf("expected selected icmt to be in use, got %v", err)
	}
}

func TestMemoryMutateSelections(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.MutateSelections(ctx, 3, func(Booking, []int64) (Change, error) { return Change{}, nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected missing booking, got %v", err)
	}

	m.EnsureBooking(ctx, 3, 9)
	b, err := m.MutateSelections(ctx, 3, func(b Booking, current []int64) (Change, error) {
		return Change{MenuPrice: 12, Confirmation: ConfirmSet}, nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if b.Version != 1 || b.MenuPrice != 12 || !b.Confirmed() {
		t.Fatalf("unexpected booking %+v", b)
	}

	boom := errors.New("boom")
	if _, err := m.MutateSelections(ctx, 3, func(Booking, []int64) (Change, error) { return Change{}, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if _, err := m.MutateSelections(ctx, 3, func(Booking, []int64) (Change, error) {
		return Change{ICMTIDs: []int64{404}}, nil
	}); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected invalid reference, got %v", err)
	}

	b, _ = m.GetBooking(ctx, 3)
	if b.Version != 1 {
		t.Fatalf("expected failed mutations to keep version 1, got %d", b.Version)
	}

	b, _ = m.MutateSelections(ctx, 3, func(b Booking, current []int64) (Change, error) {
		return Change{MenuPrice: b.MenuPrice, Confirmation: ConfirmClear}, nil
	})
	if b.Confirmed() || b.Version != 2 || b.MenuPrice != 12 {
		t.Fatalf("expected cleared confirmation at version 2, got %+v", b)
	}
}

func TestMemoryAuditIgnoresRepeatedEvents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	entry := AuditEntry{EventID: "evt-1", BookingID: 4, Action: "add", Added: []int64{1}}
	for i := 0; i < 2; i++ {
		if err := m.AppendAudit(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	m.AppendAudit(ctx, AuditEntry{EventID: "evt-2", BookingID: 5, Action: "reset"})

	entries, _ := m.ListAudit(ctx, 4)
	if len(entries) != 1 || entries[0].CreatedAt.IsZero() {
		t.Fatalf("expected one stamped entry, got %+v", entries)
	}
}

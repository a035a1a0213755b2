package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"canteen-menu-service/internal/queue"
	"canteen-menu-service/internal/store"
	"canteen-menu-service/pkg/menu"
)

type fakePublisher struct {
	mu     sync.Mutex
	fail   bool
	events []string
}

func (p *fakePublisher) PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, routingKey)
	return nil
}

func (p *fakePublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, rk := range p.events {
		if rk == routingKey {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	messages map[int64][]any
}

func (n *fakeNotifier) BookingUpdated(bookingID int64, message any) {
	if n.messages == nil {
		n.messages = make(map[int64][]any)
	}
	n.messages[bookingID] = append(n.messages[bookingID], message)
}

type fakeCache struct {
	data        []byte
	sets        int
	invalidated int
}

func (c *fakeCache) GetOverview(ctx context.Context) ([]byte, bool, error) {
	return c.data, c.data != nil, nil
}

func (c *fakeCache) SetOverview(ctx context.Context, data []byte) error {
	c.data = data
	c.sets++
	return nil
}

func (c *fakeCache) InvalidateOverview(ctx context.Context) error {
	c.data = nil
	c.invalidated++
	return nil
}

type fakeObjects struct {
	objects map[string][]byte
}

func (o *fakeObjects) PutObject(ctx context.Context, key string, body []byte, contentType string, cacheControl string) (string, error) {
	if o.objects == nil {
		o.objects = make(map[string][]byte)
	}
	o.objects[key] = body
	return "https://cdn.example.com/" + key, nil
}

func (o *fakeObjects) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0, len(o.objects))
	for key := range o.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (o *fakeObjects) DeleteKey(ctx context.Context, key string) error {
	delete(o.objects, key)
	return nil
}

type fixture struct {
	store       *store.Memory
	dessertLink menu.CategoryMenuType
	desserts    []int64
	mains       []int64
}

// newFixture builds one menu list with a Standard type (desserts, limit 2,
// price 1500) and a Premium type (mains, limit 1, price 2500). Booking 7
// belongs to customer 42.
func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	list, _ := mem.CreateMenuList(ctx, menu.MenuList{Name: "Wedding"})
	standard, _ := mem.CreateMenuType(ctx, menu.MenuType{Name: "Standard", Price: 1500, MenuListID: list.ID})
	premium, _ := mem.CreateMenuType(ctx, menu.MenuType{Name: "Premium", Price: 2500, MenuListID: list.ID})
	desserts, _ := mem.CreateCategory(ctx, menu.Category{Name: "Desserts"})
	mains, _ := mem.CreateCategory(ctx, menu.Category{Name: "Mains"})
	dessertLink, _ := mem.CreateCategoryMenuType(ctx, menu.CategoryMenuType{MenuTypeID: standard.ID, CategoryID: desserts.ID, ItemLimit: 2})
	mainLink, _ := mem.CreateCategoryMenuType(ctx, menu.CategoryMenuType{MenuTypeID: premium.ID, CategoryID: mains.ID, ItemLimit: 1})

	f := fixture{store: mem, dessertLink: dessertLink}
	for _, name := range []string{"Cake", "Pudding", "Ice Cream"} {
		item, _ := mem.CreateItem(ctx, menu.Item{Name: name})
		icmt, err := mem.CreateItemCategoryMenuType(ctx, menu.ItemCategoryMenuType{ItemID: item.ID, CategoryMenuTypeID: dessertLink.ID})
		if err != nil {
			t.Fatalf("create icmt: %v", err)
		}
		f.desserts = append(f.desserts, icmt.ID)
	}
	for _, name := range []string{"Steak", "Salmon"} {
		item, _ := mem.CreateItem(ctx, menu.Item{Name: name})
		icmt, err := mem.CreateItemCategoryMenuType(ctx, menu.ItemCategoryMenuType{ItemID: item.ID, CategoryMenuTypeID: mainLink.ID})
		if err != nil {
			t.Fatalf("create icmt: %v", err)
		}
		f.mains = append(f.mains, icmt.ID)
	}
	if _, err := mem.EnsureBooking(ctx, 7, 42); err != nil {
		t.Fatalf("ensure booking: %v", err)
	}
	return f
}

var (
	admin    = Actor{UserID: 1, Admin: true}
	customer = Actor{UserID: 42}
)

func TestReplaceChecksVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := NewMenus(f.store, nil)

	v0 := int64(0)
	result, err := m.Replace(ctx, admin, 7, []int64{f.desserts[0], f.mains[0]}, &v0)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if result.Booking.Version != 1 || result.Booking.MenuPrice != 4000 {
		t.Fatalf("expected version 1 priced 4000, got %+v", result.Booking)
	}
	if len(result.Changes.Add) != 2 || len(result.Changes.Remove) != 0 {
		t.Fatalf("unexpected plan %+v", result.Changes)
	}

	if _, err := m.Replace(ctx, admin, 7, []int64{f.desserts[1]}, &v0); !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	_, ids, _ := f.store.ListSelections(ctx, 7)
	if len(ids) != 2 {
		t.Fatalf("expected stale replace to leave 2 selections, got %v", ids)
	}
}

func TestReplaceRejectsInvalidSets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := NewMenus(f.store, nil)

	tests := []struct {
		name string
		ids  []int64
		code menu.ErrorCode
	}{
		{"over limit", f.desserts, menu.ErrItemLimitReached},
		{"unknown", []int64{999}, menu.ErrUnknownChoice},
		{"duplicate", []int64{f.mains[0], f.mains[0]}, menu.ErrDuplicateChoice},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Replace(ctx, admin, 7, tc.ids, nil)
			if !menu.HasCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestCustomerAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := NewMenus(f.store, nil)

	if _, err := m.Choices(ctx, Actor{UserID: 99}, 7); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := m.Submit(ctx, customer, 7, []int64{f.desserts[0]}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := m.AddChoice(ctx, customer, 7, f.desserts[1]); !errors.Is(err, ErrBookingLocked) {
		t.Fatalf("expected locked booking, got %v", err)
	}
	if _, err := m.AddChoice(ctx, admin, 7, f.desserts[1]); err != nil {
		t.Fatalf("expected admin to edit a submitted booking, got %v", err)
	}

	choices, err := m.Choices(ctx, customer, 7)
	if err != nil {
		t.Fatalf("choices: %v", err)
	}
	if !choices.Confirmed || len(choices.Selected) != 2 {
		t.Fatalf("expected confirmed booking with 2 choices, got %+v", choices)
	}
}

func TestSwapInsideFullCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := NewMenus(f.store, nil)

	if _, err := m.AddChoice(ctx, customer, 7, f.mains[0]); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.AddChoice(ctx, customer, 7, f.mains[1]); !menu.HasCode(err, menu.ErrItemLimitReached) {
		t.Fatalf("expected limit reached, got %v", err)
	}
	result, err := m.SwapChoice(ctx, customer, 7, f.mains[0], f.mains[1])
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if len(result.Selected) != 1 || result.Selected[0] != f.mains[1] {
		t.Fatalf("expected only %d selected, got %v", f.mains[1], result.Selected)
	}
	if _, err := m.SwapChoice(ctx, customer, 7, f.mains[0], f.mains[1]); !menu.HasCode(err, menu.ErrChoiceNotSelected) {
		t.Fatalf("expected not selected, got %v", err)
	}
}

func TestLoweredLimitBlocksGrowth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := NewMenus(f.store, nil)

	if _, err := m.Replace(ctx, admin, 7, []int64{f.desserts[0], f.desserts[1]}, nil); err != nil {
		t.Fatalf("replace: %v", err)
	}
	lowered := f.dessertLink
	lowered.ItemLimit = 1
	if _, err := f.store.UpdateCategoryMenuType(ctx, lowered); err != nil {
		t.Fatalf("update link: %v", err)
	}

	if _, err := m.AddChoice(ctx, customer, 7, f.mains[0]); !menu.HasCode(err, menu.ErrItemLimitReached) {
		t.Fatalf("expected limit reached on add, got %v", err)
	}
	if _, err := m.SwapChoice(ctx, customer, 7, f.desserts[1], f.desserts[2]); !menu.HasCode(err, menu.ErrItemLimitReached) {
		t.Fatalf("expected limit reached on swap, got %v", err)
	}
	if _, err := m.Submit(ctx, customer, 7, []int64{f.desserts[0], f.desserts[1]}); !menu.HasCode(err, menu.ErrItemLimitReached) {
		t.Fatalf("expected limit reached on submit, got %v", err)
	}
	_, ids, _ := f.store.ListSelections(ctx, 7)
	if len(ids) != 2 {
		t.Fatalf("expected rejected writes to leave 2 selections, got %v", ids)
	}

	result, err := m.RemoveChoice(ctx, customer, 7, f.desserts[1])
	if err != nil {
		t.Fatalf("expected removal to bring the booking back under its limit, got %v", err)
	}
	if _, err := m.AddChoice(ctx, customer, 7, f.mains[0]); err != nil {
		t.Fatalf("add after removal: %v", err)
	}
	if len(result.Selected) != 1 {
		t.Fatalf("expected 1 selection after removal, got %v", result.Selected)
	}
}

func TestClearKeepsPriceUntilReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := NewMenus(f.store, nil)

	if _, err := m.Submit(ctx, customer, 7, []int64{f.mains[0]}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	cleared, err := m.ClearSelections(ctx, admin, 7)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(cleared.Selected) != 0 || cleared.Booking.MenuPrice != 2500 || cleared.Booking.Confirmed() {
		t.Fatalf("expected empty unconfirmed booking keeping price, got %+v", cleared)
	}
	reset, err := m.ResetPrice(ctx, admin, 7)
	if err != nil {
		t.Fatalf("reset price: %v", err)
	}
	if reset.Booking.MenuPrice != 0 || reset.Booking.Version != 3 {
		t.Fatalf("expected price 0 at version 3, got %+v", reset.Booking)
	}
}

func TestSelectionEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("published", func(t *testing.T) {
		pub := &fakePublisher{}
		notifier := &fakeNotifier{}
		m := NewMenus(f.store, nil, WithPublisher(pub), WithNotifier(notifier))

		if _, err := m.AddChoice(ctx, customer, 7, f.desserts[0]); err != nil {
			t.Fatalf("add: %v", err)
		}
		if pub.count(queue.SelectionChangedRK) != 1 {
			t.Fatalf("expected one selection event, got %v", pub.events)
		}
		if len(notifier.messages[7]) != 1 {
			t.Fatalf("expected one websocket message, got %d", len(notifier.messages[7]))
		}
		entries, _ := f.store.ListAudit(ctx, 7)
		if len(entries) != 0 {
			t.Fatalf("expected audit to be left to the worker, got %d entries", len(entries))
		}
	})

	t.Run("broker down", func(t *testing.T) {
		m := NewMenus(f.store, nil, WithPublisher(&fakePublisher{fail: true}))
		if _, err := m.RemoveChoice(ctx, customer, 7, f.desserts[0]); err != nil {
			t.Fatalf("remove: %v", err)
		}
		entries, _ := f.store.ListAudit(ctx, 7)
		if len(entries) != 1 || entries[0].Action != ActionRemove {
			t.Fatalf("expected inline remove audit, got %+v", entries)
		}
	})
}

func TestDriftReportedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// A link with an unusable limit is dropped from the tree.
	mt, _ := f.store.CreateMenuType(ctx, menu.MenuType{Name: "Kids", Price: 500, MenuListID: 1})
	cat, _ := f.store.CreateCategory(ctx, menu.Category{Name: "Snacks"})
	if _, err := f.store.CreateCategoryMenuType(ctx, menu.CategoryMenuType{MenuTypeID: mt.ID, CategoryID: cat.ID, ItemLimit: 0}); err != nil {
		t.Fatalf("create link: %v", err)
	}

	pub := &fakePublisher{}
	m := NewMenus(f.store, nil, WithPublisher(pub))
	for i := 0; i < 3; i++ {
		if _, err := m.Catalog(ctx); err != nil {
			t.Fatalf("catalog: %v", err)
		}
	}
	if got := pub.count(queue.CatalogDriftRK); got != 1 {
		t.Fatalf("expected one drift event, got %d", got)
	}
}

func TestOverviewCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cache := &fakeCache{}
	m := NewMenus(f.store, nil, WithOverviewCache(cache))

	first, err := m.Overview(ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if _, err := m.Overview(ctx); err != nil {
		t.Fatalf("overview: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache fill, got %d", cache.sets)
	}
	if !strings.Contains(string(first), "Ice Cream") {
		t.Fatalf("expected overview to list items, got %s", first)
	}

	m.CatalogChanged(ctx)
	if cache.invalidated != 1 || cache.data != nil {
		t.Fatalf("expected cache to be invalidated")
	}
}

func TestPublishOverview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := NewMenus(f.store, nil).PublishOverview(ctx); !errors.Is(err, ErrPublishingDisabled) {
		t.Fatalf("expected publishing disabled, got %v", err)
	}

	objects := &fakeObjects{}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMenus(f.store, nil, WithObjectStore(objects), WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	var last OverviewSnapshot
	for i := 0; i < snapshotsToKeep+3; i++ {
		snapshot, err := m.PublishOverview(ctx)
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		last = snapshot
	}

	keys, _ := objects.ListKeys(ctx, overviewPrefix)
	if len(keys) != snapshotsToKeep+1 {
		t.Fatalf("expected %d snapshots plus latest, got %d", snapshotsToKeep, len(keys))
	}
	if _, ok := objects.objects[last.Key]; !ok {
		t.Fatalf("expected newest snapshot %s to be kept", last.Key)
	}
	if last.LatestURL != fmt.Sprintf("https://cdn.example.com/%s", overviewLatestKey) {
		t.Fatalf("unexpected latest url %s", last.LatestURL)
	}
}

package services

import (
	"context"
	"errors"

	"canteen-menu-service/internal/queue"
	"canteen-menu-service/internal/store"
	"canteen-menu-service/pkg/menu"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrForbidden     = errors.New("booking belongs to another customer")
	ErrBookingLocked = errors.New("booking menu already submitted")
)

const (
	ActionReplace    = "replace"
	ActionSubmit     = "submit"
	ActionAdd        = "add"
	ActionRemove     = "remove"
	ActionReset      = "reset"
	ActionSwap       = "swap"
	ActionClear      = "clear"
	ActionPriceReset = "price_reset"
)

// Actor is the authenticated caller of a selection operation.
type Actor struct {
	UserID int64
	Admin  bool
}

// SelectionResult is the state of a booking after a mutation.
type SelectionResult struct {
	Booking  store.Booking    `json:"booking"`
	Selected []int64          `json:"ICMT_Ids"`
	Changes  menu.ReplacePlan `json:"changes"`
}

type BookingChoices struct {
	menu.BookingMenu
	Selected  []int64 `json:"ICMT_Ids"`
	Confirmed bool    `json:"confirmed"`
}

func canRead(actor Actor, b store.Booking) error {
	if actor.Admin || b.CustomerID == actor.UserID {
		return nil
	}
	return ErrForbidden
}

// canWrite lets customers edit their own booking until it is submitted;
// afterwards only admins may change it.
func canWrite(actor Actor, b store.Booking) error {
	if err := canRead(actor, b); err != nil {
		return err
	}
	if !actor.Admin && b.Confirmed() {
		return ErrBookingLocked
	}
	return nil
}

func (m *Menus) Choices(ctx context.Context, actor Actor, bookingID int64) (BookingChoices, error) {
	b, ids, err := m.store.ListSelections(ctx, bookingID)
	if err != nil {
		return BookingChoices{}, err
	}
	if err := canRead(actor, b); err != nil {
		return BookingChoices{}, err
	}
	catalog, err := m.Catalog(ctx)
	if err != nil {
		return BookingChoices{}, err
	}
	return BookingChoices{
		BookingMenu: bookingMenu(b, ids, catalog),
		Selected:    ids,
		Confirmed:   b.Confirmed(),
	}, nil
}

func (m *Menus) StructuredBooking(ctx context.Context, bookingID int64) (menu.BookingMenu, error) {
	b, ids, err := m.store.ListSelections(ctx, bookingID)
	if err != nil {
		return menu.BookingMenu{}, err
	}
	catalog, err := m.Catalog(ctx)
	if err != nil {
		return menu.BookingMenu{}, err
	}
	return bookingMenu(b, ids, catalog), nil
}

func (m *Menus) StructuredAll(ctx context.Context) ([]menu.BookingMenu, error) {
	rows, err := m.store.ListBookingSelections(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := m.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]menu.BookingMenu, 0, len(rows))
	for _, row := range rows {
		out = append(out, bookingMenu(row.Booking, row.ICMTIDs, catalog))
	}
	return out, nil
}

func bookingMenu(b store.Booking, ids []int64, catalog *menu.Catalog) menu.BookingMenu {
	return menu.BookingMenu{
		BookingID:  b.ID,
		CustomerID: b.CustomerID,
		MenuPrice:  b.MenuPrice,
		Version:    b.Version,
		MenuLists:  menu.StructureSelections(ids, catalog),
	}
}

// Replace swaps the booking's whole selection set in one transaction.
// A non-nil expectedVersion must match the stored version.
func (m *Menus) Replace(ctx context.Context, actor Actor, bookingID int64, ids []int64, expectedVersion *int64) (SelectionResult, error) {
	return m.mutate(ctx, actor, bookingID, ActionReplace, func(b store.Booking, current []int64, c *menu.Catalog) (store.Change, error) {
		if expectedVersion != nil && *expectedVersion != b.Version {
			return store.Change{}, store.ErrVersionConflict
		}
		return store.Change{ICMTIDs: ids, MenuPrice: menu.ComputeTotal(menu.NewWorkingSet(ids...), c)}, nil
	})
}

// Submit stores the customer's working set and marks the menu confirmed.
func (m *Menus) Submit(ctx context.Context, actor Actor, bookingID int64, ids []int64) (SelectionResult, error) {
	return m.mutate(ctx, actor, bookingID, ActionSubmit, func(b store.Booking, current []int64, c *menu.Catalog) (store.Change, error) {
		return store.Change{
			ICMTIDs:      ids,
			MenuPrice:    menu.ComputeTotal(menu.NewWorkingSet(ids...), c),
			Confirmation: store.ConfirmSet,
		}, nil
	})
}

func (m *Menus) AddChoice(ctx context.Context, actor Actor, bookingID int64, icmtID int64) (SelectionResult, error) {
	return m.mutate(ctx, actor, bookingID, ActionAdd, func(b store.Booking, current []int64, c *menu.Catalog) (store.Change, error) {
		sel := menu.NewSelector(c, current...)
		if sel.Selected().Contains(icmtID) {
			return store.Change{}, menu.ValidationError(menu.ErrDuplicateChoice, "Item is already selected", map[string]any{"ICMT_Id": icmtID})
		}
		if err := sel.Toggle(icmtID); err != nil {
			return store.Change{}, err
		}
		return selectorChange(sel), nil
	})
}

func (m *Menus) RemoveChoice(ctx context.Context, actor Actor, bookingID int64, icmtID int64) (SelectionResult, error) {
	return m.mutate(ctx, actor, bookingID, ActionRemove, func(b store.Booking, current []int64, c *menu.Catalog) (store.Change, error) {
		sel := menu.NewSelector(c, current...)
		if !sel.Selected().Contains(icmtID) {
			return store.Change{}, menu.NotSelected(icmtID)
		}
		if err := sel.Set(icmtID, false); err != nil {
			return store.Change{}, err
		}
		return selectorChange(sel), nil
	})
}

func (m *Menus) ResetChoices(ctx context.Context, actor Actor, bookingID int64) (SelectionResult, error) {
	return m.mutate(ctx, actor, bookingID, ActionReset, func(b store.Booking, current []int64, c *menu.Catalog) (store.Change, error) {
		return store.Change{}, nil
	})
}

// SwapChoice replaces oldID by newID; the limit check sees the set without
// oldID, so swapping inside a full category succeeds.
func (m *Menus) SwapChoice(ctx context.Context, actor Actor, bookingID int64, oldID int64, newID int64) (SelectionResult, error) {
	return m.mutate(ctx, actor, bookingID, ActionSwap, func(b store.Booking, current []int64, c *menu.Catalog) (store.Change, error) {
		sel := menu.NewSelector(c, current...)
		if !sel.Selected().Contains(oldID) {
			return store.Change{}, menu.NotSelected(oldID)
		}
		if oldID == newID {
			return selectorChange(sel), nil
		}
		if sel.Selected().Contains(newID) {
			return store.Change{}, menu.ValidationError(menu.ErrDuplicateChoice, "Item is already selected", map[string]any{"ICMT_Id": newID})
		}
		if err := sel.Set(oldID, false); err != nil {
			return store.Change{}, err
		}
		if err := sel.Set(newID, true); err != nil {
			return store.Change{}, err
		}
		return selectorChange(sel), nil
	})
}

// ClearSelections removes every selection but leaves the stored price for
// ResetPrice, and reopens the booking for the customer.
func (m *Menus) ClearSelections(ctx context.Context, actor Actor, bookingID int64) (SelectionResult, error) {
	return m.mutate(ctx, actor, bookingID, ActionClear, func(b store.Booking, current []int64, c *menu.Catalog) (store.Change, error) {
		return store.Change{MenuPrice: b.MenuPrice, Confirmation: store.ConfirmClear}, nil
	})
}

func (m *Menus) ResetPrice(ctx context.Context, actor Actor, bookingID int64) (SelectionResult, error) {
	return m.mutate(ctx, actor, bookingID, ActionPriceReset, func(b store.Booking, current []int64, c *menu.Catalog) (store.Change, error) {
		return store.Change{ICMTIDs: current}, nil
	})
}

func (m *Menus) Audit(ctx context.Context, bookingID int64) ([]store.AuditEntry, error) {
	if _, err := m.store.GetBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	return m.store.ListAudit(ctx, bookingID)
}

func selectorChange(sel *menu.Selector) store.Change {
	return store.Change{ICMTIDs: sel.Selected().IDs(), MenuPrice: sel.Total()}
}

type mutation func(b store.Booking, current []int64, c *menu.Catalog) (store.Change, error)

// shrinking actions only drop selections and skip catalog validation.
func shrinking(action string) bool {
	switch action {
	case ActionRemove, ActionReset, ActionClear, ActionPriceReset:
		return true
	}
	return false
}

func (m *Menus) mutate(ctx context.Context, actor Actor, bookingID int64, action string, fn mutation) (SelectionResult, error) {
	catalog, err := m.Catalog(ctx)
	if err != nil {
		return SelectionResult{}, err
	}

	var (
		plan  menu.ReplacePlan
		final []int64
	)
	b, err := m.store.MutateSelections(ctx, bookingID, func(b store.Booking, current []int64) (store.Change, error) {
		if err := canWrite(actor, b); err != nil {
			return store.Change{}, err
		}
		change, err := fn(b, current, catalog)
		if err != nil {
			return store.Change{}, err
		}
		if change.ICMTIDs == nil {
			change.ICMTIDs = []int64{}
		}
		if !shrinking(action) {
			if err := menu.Validate(change.ICMTIDs, catalog); err != nil {
				return store.Change{}, err
			}
		}
		plan = menu.PlanReplace(current, change.ICMTIDs)
		final = change.ICMTIDs
		return change, nil
	})
	if err != nil {
		return SelectionResult{}, err
	}

	m.selectionChanged(ctx, actor, action, b, plan)
	return SelectionResult{Booking: b, Selected: final, Changes: plan}, nil
}

// selectionChanged fans a committed mutation out to the audit trail and to
// websocket subscribers. Without a broker the audit row is written inline.
func (m *Menus) selectionChanged(ctx context.Context, actor Actor, action string, b store.Booking, plan menu.ReplacePlan) {
	event := queue.SelectionChangedEvent{
		Type:       queue.SelectionChangedRK,
		EventID:    uuid.NewString(),
		BookingID:  b.ID,
		ActorID:    actor.UserID,
		Action:     action,
		Added:      nonNil(plan.Add),
		Removed:    nonNil(plan.Remove),
		Version:    b.Version,
		MenuPrice:  b.MenuPrice,
		OccurredAt: m.now().UTC(),
	}

	published := false
	if m.publisher != nil {
		if err := m.publisher.PublishJSON(ctx, queue.EventsExchange, queue.SelectionChangedRK, event); err != nil {
			m.logger.Warn("publish selection event failed; writing audit inline",
				zap.Int64("bookingId", b.ID),
				zap.Error(err),
			)
		} else {
			published = true
		}
	}
	if !published {
		if err := m.store.AppendAudit(ctx, event.AuditEntry()); err != nil {
			m.logger.Error("append selection audit failed", zap.Int64("bookingId", b.ID), zap.Error(err))
		}
	}

	if m.notifier != nil {
		m.notifier.BookingUpdated(b.ID, map[string]any{
			"type":      "selection.updated",
			"bookingId": b.ID,
			"version":   b.Version,
			"menuPrice": b.MenuPrice,
		})
	}
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

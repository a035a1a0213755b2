package client

import (
	"context"

	"canteen-menu-service/pkg/menu"
)

// Correction is an admin's editable copy of one booking's selections.
type Correction struct {
	client    *Client
	bookingID int64
	catalog   *menu.Catalog

	loaded   []int64
	version  int64
	price    float64
	selector *menu.Selector
}

// LoadCorrection fetches the flat catalog tables, assembles the catalog,
// and loads the booking's current selections.
func (c *Client) LoadCorrection(ctx context.Context, bookingID int64) (*Correction, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return nil, err
	}
	catalog := menu.BuildCatalog(tables, nil)

	booking, err := c.StructuredBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	ids := menu.ICMTIDs(menu.Flatten(booking))

	return &Correction{
		client:    c,
		bookingID: bookingID,
		catalog:   catalog,
		loaded:    ids,
		version:   booking.Version,
		price:     booking.MenuPrice,
		selector:  menu.NewSelector(catalog, ids...),
	}, nil
}

func (c *Correction) BookingID() int64 {
	return c.bookingID
}

func (c *Correction) Catalog() *menu.Catalog {
	return c.catalog
}

// Version is the booking version the edits are based on.
func (c *Correction) Version() int64 {
	return c.version
}

// StoredPrice is the menu price the backend holds for the booking.
func (c *Correction) StoredPrice() float64 {
	return c.price
}

func (c *Correction) Rows() []menu.FlatSelection {
	return menu.FlattenSelected(c.bookingID, c.selector.Selected(), c.catalog)
}

func (c *Correction) Toggle(icmtID int64, selected bool) error {
	return c.selector.Set(icmtID, selected)
}

func (c *Correction) Selected() []int64 {
	return c.selector.Selected().IDs()
}

func (c *Correction) Total() float64 {
	return c.selector.Total()
}

// Dirty reports whether Save would send anything.
func (c *Correction) Dirty() bool {
	return !menu.PlanReplace(c.loaded, c.Selected()).Empty()
}

// Save replaces the booking's selections with the edited set in one
// request. Nothing is sent when the set is unchanged. A booking changed
// since load fails with an error matching ErrVersionConflict; reload and
// reapply the edits.
func (c *Correction) Save(ctx context.Context) (SelectionResult, error) {
	ids := c.Selected()
	if !c.Dirty() {
		return SelectionResult{
			Booking: Booking{ID: c.bookingID, MenuPrice: c.price, Version: c.version},
			ICMTIDs: ids,
			Changes: Changes{Added: []int64{}, Removed: []int64{}},
		}, nil
	}

	result, err := c.client.ReplaceMenu(ctx, c.bookingID, ids, c.version)
	if err != nil {
		return SelectionResult{}, err
	}
	c.loaded = result.ICMTIDs
	c.version = result.Booking.Version
	c.price = result.Booking.MenuPrice
	return result, nil
}

// DeleteMenu removes every selection and then zeroes the stored price. The
// local copy follows the server after each step.
func (c *Correction) DeleteMenu(ctx context.Context) error {
	cleared, err := c.client.DeleteMenu(ctx, c.bookingID)
	if err != nil {
		return err
	}
	c.apply(cleared)

	reset, err := c.client.ResetBookingPrice(ctx, c.bookingID)
	if err != nil {
		return err
	}
	c.apply(reset)
	return nil
}

func (c *Correction) apply(result SelectionResult) {
	c.loaded = result.ICMTIDs
	c.version = result.Booking.Version
	c.price = result.Booking.MenuPrice
	c.selector = menu.NewSelector(c.catalog, result.ICMTIDs...)
}

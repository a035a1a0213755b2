package client

import (
	"context"
	"errors"
	"sync"

	"canteen-menu-service/pkg/menu"
)

type OrderState string

const (
	StateBrowsing   OrderState = "browsing"
	StateSelecting  OrderState = "selecting"
	StateSubmitting OrderState = "submitting"
	StateConfirmed  OrderState = "confirmed"
	StateFailed     OrderState = "failed"
)

var (
	ErrSubmitInFlight = errors.New("a submit for this booking is already in progress")
	ErrOrderConfirmed = errors.New("the menu for this booking has already been submitted")
)

// Ordering is a customer's menu selection for one booking. The working set
// lives on the client until Submit; limits are checked locally as items
// are toggled and again by the server on submit.
type Ordering struct {
	client    *Client
	bookingID int64

	mu       sync.Mutex
	state    OrderState
	selector *menu.Selector
	result   SelectionResult
	err      error
}

// StartOrdering loads the browsing tree and the booking's stored choices.
// A booking that was already submitted starts confirmed.
func (c *Client) StartOrdering(ctx context.Context, bookingID int64) (*Ordering, error) {
	lists, err := c.Overview(ctx)
	if err != nil {
		return nil, err
	}
	choices, err := c.Choices(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	o := &Ordering{
		client:    c,
		bookingID: bookingID,
		state:     StateBrowsing,
		selector:  menu.NewSelector(menu.CatalogFromTree(lists), choices.ICMTIDs...),
	}
	if choices.Confirmed {
		o.state = StateConfirmed
	}
	return o, nil
}

func (o *Ordering) State() OrderState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Ordering) Catalog() *menu.Catalog {
	return o.selector.Catalog()
}

// Err is the error of the last failed submit.
func (o *Ordering) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Result is the booking state returned by the last successful submit.
func (o *Ordering) Result() SelectionResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

func (o *Ordering) Toggle(icmtID int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case StateConfirmed:
		return ErrOrderConfirmed
	case StateSubmitting:
		return ErrSubmitInFlight
	}
	if err := o.selector.Toggle(icmtID); err != nil {
		return err
	}
	o.state = StateSelecting
	o.err = nil
	return nil
}

func (o *Ordering) Selected() []int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selector.Selected().IDs()
}

func (o *Ordering) Total() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selector.Total()
}

// Submit sends the working set. On failure the working set is kept and
// the flow may toggle further or submit again.
func (o *Ordering) Submit(ctx context.Context) (SelectionResult, error) {
	o.mu.Lock()
	switch o.state {
	case StateConfirmed:
		o.mu.Unlock()
		return SelectionResult{}, ErrOrderConfirmed
	case StateSubmitting:
		o.mu.Unlock()
		return SelectionResult{}, ErrSubmitInFlight
	}
	o.state = StateSubmitting
	ids := o.selector.Selected().IDs()
	o.mu.Unlock()

	result, err := o.client.Submit(ctx, o.bookingID, ids)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.state = StateFailed
		o.err = err
		return SelectionResult{}, err
	}
	o.state = StateConfirmed
	o.err = nil
	o.result = result
	return result, nil
}

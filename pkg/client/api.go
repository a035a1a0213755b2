package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"canteen-menu-service/pkg/menu"

	"golang.org/x/sync/errgroup"
)

// Table is the REST path of one flat catalog table.
type Table string

const (
	TableMenuLists             Table = "/menuListType"
	TableMenuTypes             Table = "/menutypes"
	TableCategories            Table = "/categories"
	TableItems                 Table = "/items"
	TableCategoryMenuTypes     Table = "/categoryMenuTypes"
	TableItemCategoryMenuTypes Table = "/ItemCategoryMenuType"
)

type Booking struct {
	ID          int64      `json:"id"`
	CustomerID  int64      `json:"customerId"`
	MenuPrice   float64    `json:"menuPrice"`
	Version     int64      `json:"version"`
	ConfirmedAt *time.Time `json:"confirmedAt"`
}

type Changes struct {
	Added   []int64 `json:"added"`
	Removed []int64 `json:"removed"`
}

// SelectionResult is the booking state returned by every selection write.
type SelectionResult struct {
	Booking Booking `json:"booking"`
	ICMTIDs []int64 `json:"ICMT_Ids"`
	Changes Changes `json:"changes"`
}

type Choices struct {
	menu.BookingMenu
	ICMTIDs   []int64 `json:"ICMT_Ids"`
	Confirmed bool    `json:"confirmed"`
}

type AuditEntry struct {
	ID        int64     `json:"id"`
	ActorID   int64     `json:"actorId"`
	Action    string    `json:"action"`
	Added     []int64   `json:"added"`
	Removed   []int64   `json:"removed"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

func bookingPath(format string, bookingID int64, args ...any) string {
	return fmt.Sprintf(format, append([]any{bookingID}, args...)...)
}

// List fetches every row of one catalog table.
func List[T any](ctx context.Context, c *Client, table Table) ([]T, error) {
	var rows []T
	if _, err := c.do(ctx, http.MethodGet, string(table), nil, &rows, nil); err != nil {
		return nil, err
	}
	return rows, nil
}

func Create[T any](ctx context.Context, c *Client, table Table, row T) (T, error) {
	var out T
	_, err := c.do(ctx, http.MethodPost, string(table), row, &out, nil)
	return out, err
}

func Update[T any](ctx context.Context, c *Client, table Table, id int64, row T) (T, error) {
	var out T
	_, err := c.do(ctx, http.MethodPut, string(table)+"/"+strconv.FormatInt(id, 10), row, &out, nil)
	return out, err
}

func (c *Client) Delete(ctx context.Context, table Table, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, string(table)+"/"+strconv.FormatInt(id, 10), nil, nil, nil)
	return err
}

// Tables fetches the six flat catalog tables concurrently. Any failure
// fails the whole load.
func (c *Client) Tables(ctx context.Context) (menu.Tables, error) {
	var t menu.Tables
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		t.MenuLists, err = List[menu.MenuList](gctx, c, TableMenuLists)
		return err
	})
	g.Go(func() (err error) {
		t.MenuTypes, err = List[menu.MenuType](gctx, c, TableMenuTypes)
		return err
	})
	g.Go(func() (err error) {
		t.Categories, err = List[menu.Category](gctx, c, TableCategories)
		return err
	})
	g.Go(func() (err error) {
		t.Items, err = List[menu.Item](gctx, c, TableItems)
		return err
	})
	g.Go(func() (err error) {
		t.CategoryMenuTypes, err = List[menu.CategoryMenuType](gctx, c, TableCategoryMenuTypes)
		return err
	})
	g.Go(func() (err error) {
		t.ItemCategoryMenuTypes, err = List[menu.ItemCategoryMenuType](gctx, c, TableItemCategoryMenuTypes)
		return err
	})
	if err := g.Wait(); err != nil {
		return menu.Tables{}, err
	}
	return t, nil
}

// Overview fetches the public browsing tree.
func (c *Client) Overview(ctx context.Context) ([]menu.ListNode, error) {
	var lists []menu.ListNode
	if _, err := c.do(ctx, http.MethodGet, "/advanceMenu/overview", nil, &lists, nil); err != nil {
		return nil, err
	}
	return lists, nil
}

func (c *Client) StructuredBooking(ctx context.Context, bookingID int64) (menu.BookingMenu, error) {
	var out menu.BookingMenu
	_, err := c.do(ctx, http.MethodGet, bookingPath("/AdminCorrectMenus/structured/booking/%d", bookingID), nil, &out, nil)
	return out, err
}

func (c *Client) StructuredAll(ctx context.Context) ([]menu.BookingMenu, error) {
	var out []menu.BookingMenu
	_, err := c.do(ctx, http.MethodGet, "/AdminCorrectMenus/structured", nil, &out, nil)
	return out, err
}

// ReplaceMenu atomically replaces a booking's selections, guarded by the
// version the caller loaded.
func (c *Client) ReplaceMenu(ctx context.Context, bookingID int64, ids []int64, version int64) (SelectionResult, error) {
	body := map[string]any{"ICMT_Ids": nonNil(ids), "version": version}
	header := http.Header{}
	header.Set("If-Match", strconv.Quote(strconv.FormatInt(version, 10)))

	var out SelectionResult
	_, err := c.do(ctx, http.MethodPut, bookingPath("/AdminCorrectMenus/%d", bookingID), body, &out, header)
	return out, err
}

func (c *Client) DeleteMenu(ctx context.Context, bookingID int64) (SelectionResult, error) {
	var out SelectionResult
	_, err := c.do(ctx, http.MethodDelete, bookingPath("/AdminCorrectMenus/%d", bookingID), nil, &out, nil)
	return out, err
}

func (c *Client) ResetBookingPrice(ctx context.Context, bookingID int64) (SelectionResult, error) {
	var out SelectionResult
	_, err := c.do(ctx, http.MethodPut, bookingPath("/AdminCorrectMenus/bookingPrice/%d", bookingID), nil, &out, nil)
	return out, err
}

func (c *Client) Audit(ctx context.Context, bookingID int64) ([]AuditEntry, error) {
	var out []AuditEntry
	_, err := c.do(ctx, http.MethodGet, bookingPath("/AdminCorrectMenus/%d/audit", bookingID), nil, &out, nil)
	return out, err
}

func (c *Client) Choices(ctx context.Context, bookingID int64) (Choices, error) {
	var out Choices
	_, err := c.do(ctx, http.MethodGet, bookingPath("/orders/%d/choices", bookingID), nil, &out, nil)
	return out, err
}

func (c *Client) Submit(ctx context.Context, bookingID int64, ids []int64) (SelectionResult, error) {
	var out SelectionResult
	_, err := c.do(ctx, http.MethodPost, bookingPath("/orders/submit/%d", bookingID), map[string]any{"ICMT_Ids": nonNil(ids)}, &out, nil)
	return out, err
}

func (c *Client) AddChoice(ctx context.Context, bookingID int64, icmtID int64) (SelectionResult, error) {
	var out SelectionResult
	_, err := c.do(ctx, http.MethodPost, bookingPath("/orders/add-choice/%d", bookingID), map[string]any{"ICMT_Id": icmtID}, &out, nil)
	return out, err
}

func (c *Client) RemoveChoice(ctx context.Context, bookingID int64, icmtID int64) (SelectionResult, error) {
	var out SelectionResult
	_, err := c.do(ctx, http.MethodDelete, bookingPath("/orders/%d/remove-choice/%d", bookingID, icmtID), nil, &out, nil)
	return out, err
}

func (c *Client) ResetChoices(ctx context.Context, bookingID int64) (SelectionResult, error) {
	var out SelectionResult
	_, err := c.do(ctx, http.MethodDelete, bookingPath("/orders/reset-choices/%d", bookingID), nil, &out, nil)
	return out, err
}

func (c *Client) SwapChoice(ctx context.Context, bookingID int64, oldID int64, newID int64) (SelectionResult, error) {
	var out SelectionResult
	_, err := c.do(ctx, http.MethodPatch, bookingPath("/orders/%d/swap-choice/%d", bookingID, oldID), map[string]any{"newICMT_Id": newID}, &out, nil)
	return out, err
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

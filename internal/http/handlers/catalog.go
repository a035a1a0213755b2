package handlers

import (
	"context"
	"net/http"
	"strings"

	"canteen-menu-service/pkg/menu"
	"canteen-menu-service/pkg/response"

	"github.com/go-chi/chi/v5"
)

// catalogResource serves list/create/update/delete for one flat catalog
// table. Every successful write invalidates the cached overview.
type catalogResource[T any] struct {
	h        *Handler
	rows     func(menu.Tables) []T
	validate func(*T) error
	setID    func(*T, int64)
	create   func(context.Context, T) (T, error)
	update   func(context.Context, T) (T, error)
	remove   func(context.Context, int64) error
}

func (c catalogResource[T]) mount(r chi.Router) {
	r.Get("/", c.list)
	r.Post("/", c.createRow)
	r.Put("/{id}", c.updateRow)
	r.Delete("/{id}", c.deleteRow)
}

func (c catalogResource[T]) list(w http.ResponseWriter, r *http.Request) {
	tables, err := c.h.Store.LoadTables(r.Context())
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	rows := c.rows(tables)
	if rows == nil {
		rows = make([]T, 0)
	}
	response.Success(w, rows)
}

func (c catalogResource[T]) createRow(w http.ResponseWriter, r *http.Request) {
	var payload T
	if err := decodeJSON(r, &payload); err != nil {
		c.h.writeError(w, r, err)
		return
	}
	c.setID(&payload, 0)
	if err := c.validate(&payload); err != nil {
		c.h.writeError(w, r, err)
		return
	}

	created, err := c.create(r.Context(), payload)
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	c.h.Menus.CatalogChanged(r.Context())
	response.Created(w, created)
}

func (c catalogResource[T]) updateRow(w http.ResponseWriter, r *http.Request) {
	id, err := readPathInt64(r, "id")
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	var payload T
	if err := decodeJSON(r, &payload); err != nil {
		c.h.writeError(w, r, err)
		return
	}
	c.setID(&payload, id)
	if err := c.validate(&payload); err != nil {
		c.h.writeError(w, r, err)
		return
	}

	updated, err := c.update(r.Context(), payload)
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	c.h.Menus.CatalogChanged(r.Context())
	response.Success(w, updated)
}

func (c catalogResource[T]) deleteRow(w http.ResponseWriter, r *http.Request) {
	id, err := readPathInt64(r, "id")
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	if err := c.remove(r.Context(), id); err != nil {
		c.h.writeError(w, r, err)
		return
	}
	c.h.Menus.CatalogChanged(r.Context())
	response.SuccessWithStatus(w, http.StatusOK, map[string]any{"id": id}, "Deleted")
}

func requireName(name *string) error {
	*name = strings.TrimSpace(*name)
	if *name == "" {
		return inputError("Name is required")
	}
	return nil
}

func requireID(id int64, field string) error {
	if id <= 0 {
		return inputError(field + " is required")
	}
	return nil
}

// MountCatalog registers the six catalog tables under their legacy paths.
func (h *Handler) MountCatalog(r chi.Router) {
	st := h.Store

	r.Route("/menuListType", catalogResource[menu.MenuList]{
		h:    h,
		rows: func(t menu.Tables) []menu.MenuList { return t.MenuLists },
		validate: func(v *menu.MenuList) error {
			return requireName(&v.Name)
		},
		setID:  func(v *menu.MenuList, id int64) { v.ID = id },
		create: st.CreateMenuList,
		update: st.UpdateMenuList,
		remove: st.DeleteMenuList,
	}.mount)

	r.Route("/menutypes", catalogResource[menu.MenuType]{
		h:    h,
		rows: func(t menu.Tables) []menu.MenuType { return t.MenuTypes },
		validate: func(v *menu.MenuType) error {
			if err := requireName(&v.Name); err != nil {
				return err
			}
			if v.Price < 0 {
				return inputError("Price cannot be negative")
			}
			return requireID(v.MenuListID, "menuListId")
		},
		setID:  func(v *menu.MenuType, id int64) { v.ID = id },
		create: st.CreateMenuType,
		update: st.UpdateMenuType,
		remove: st.DeleteMenuType,
	}.mount)

	r.Route("/categories", catalogResource[menu.Category]{
		h:    h,
		rows: func(t menu.Tables) []menu.Category { return t.Categories },
		validate: func(v *menu.Category) error {
			return requireName(&v.Name)
		},
		setID:  func(v *menu.Category, id int64) { v.ID = id },
		create: st.CreateCategory,
		update: st.UpdateCategory,
		remove: st.DeleteCategory,
	}.mount)

	r.Route("/items", catalogResource[menu.Item]{
		h:    h,
		rows: func(t menu.Tables) []menu.Item { return t.Items },
		validate: func(v *menu.Item) error {
			return requireName(&v.Name)
		},
		setID:  func(v *menu.Item, id int64) { v.ID = id },
		create: st.CreateItem,
		update: st.UpdateItem,
		remove: st.DeleteItem,
	}.mount)

	r.Route("/categoryMenuTypes", catalogResource[menu.CategoryMenuType]{
		h:    h,
		rows: func(t menu.Tables) []menu.CategoryMenuType { return t.CategoryMenuTypes },
		validate: func(v *menu.CategoryMenuType) error {
			if err := requireID(v.MenuTypeID, "menuTypeId"); err != nil {
				return err
			}
			if err := requireID(v.CategoryID, "categoryId"); err != nil {
				return err
			}
			if v.ItemLimit < 1 {
				return menu.ValidationError(menu.ErrInvalidItemLimit, "Item limit must be at least 1", map[string]any{"itemLimit": v.ItemLimit})
			}
			return nil
		},
		setID:  func(v *menu.CategoryMenuType, id int64) { v.ID = id },
		create: st.CreateCategoryMenuType,
		update: st.UpdateCategoryMenuType,
		remove: st.DeleteCategoryMenuType,
	}.mount)

	r.Route("/ItemCategoryMenuType", catalogResource[menu.ItemCategoryMenuType]{
		h:    h,
		rows: func(t menu.Tables) []menu.ItemCategoryMenuType { return t.ItemCategoryMenuTypes },
		validate: func(v *menu.ItemCategoryMenuType) error {
			if err := requireID(v.ItemID, "itemId"); err != nil {
				return err
			}
			return requireID(v.CategoryMenuTypeID, "categoryMenuTypeId")
		},
		setID:  func(v *menu.ItemCategoryMenuType, id int64) { v.ID = id },
		create: st.CreateItemCategoryMenuType,
		update: st.UpdateItemCategoryMenuType,
		remove: st.DeleteItemCategoryMenuType,
	}.mount)
}

package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"canteen-menu-service/internal/auth"
	"canteen-menu-service/internal/store"
	"canteen-menu-service/pkg/menu"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File is the YAML fixture format. Catalog rows are nested and matched by
// name, so applying the same file twice creates nothing new.
type File struct {
	MenuLists []MenuList `yaml:"menuLists"`
	Users     []User     `yaml:"users"`
	Bookings  []Booking  `yaml:"bookings"`
}

type MenuList struct {
	Name      string     `yaml:"name"`
	MenuTypes []MenuType `yaml:"menuTypes"`
}

type MenuType struct {
	Name       string     `yaml:"name"`
	Price      float64    `yaml:"price"`
	Categories []Category `yaml:"categories"`
}

type Category struct {
	Name      string   `yaml:"name"`
	ItemLimit int      `yaml:"itemLimit"`
	Items     []string `yaml:"items"`
}

type User struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type Booking struct {
	ID       int64  `yaml:"id"`
	Customer string `yaml:"customer"`
}

type Result struct {
	Created int
	Reused  int
}

func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("parse seed file: %w", err)
	}
	return f, f.validate()
}

func (f File) validate() error {
	for _, l := range f.MenuLists {
		if strings.TrimSpace(l.Name) == "" {
			return errors.New("menu list name is required")
		}
		for _, mt := range l.MenuTypes {
			if strings.TrimSpace(mt.Name) == "" {
				return fmt.Errorf("menu type name is required in %q", l.Name)
			}
			for _, cat := range mt.Categories {
				if cat.ItemLimit < 1 {
					return fmt.Errorf("category %q under %q: itemLimit must be at least 1", cat.Name, mt.Name)
				}
			}
		}
	}
	for _, u := range f.Users {
		if _, ok := auth.ParseRole(u.Role); !ok {
			return fmt.Errorf("user %q: unknown role %q", u.Email, u.Role)
		}
	}
	for _, b := range f.Bookings {
		if b.ID <= 0 {
			return errors.New("booking id must be positive")
		}
	}
	return nil
}

type applier struct {
	st     store.Store
	tables menu.Tables
	result Result
}

// Apply creates whatever in f does not exist yet. Users come before
// bookings so that bookings can reference customers by email.
func Apply(ctx context.Context, st store.Store, f File, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tables, err := st.LoadTables(ctx)
	if err != nil {
		return Result{}, err
	}
	a := &applier{st: st, tables: tables}

	for _, l := range f.MenuLists {
		if err := a.menuList(ctx, l); err != nil {
			return a.result, err
		}
	}
	for _, u := range f.Users {
		if err := a.user(ctx, u); err != nil {
			return a.result, err
		}
	}
	for _, b := range f.Bookings {
		if err := a.booking(ctx, b); err != nil {
			return a.result, err
		}
	}

	logger.Info("seed applied", zap.Int("created", a.result.Created), zap.Int("reused", a.result.Reused))
	return a.result, nil
}

func (a *applier) menuList(ctx context.Context, in MenuList) error {
	var list menu.MenuList
	found := false
	for _, existing := range a.tables.MenuLists {
		if strings.EqualFold(existing.Name, in.Name) {
			list, found = existing, true
			break
		}
	}
	if found {
		a.result.Reused++
	} else {
		created, err := a.st.CreateMenuList(ctx, menu.MenuList{Name: in.Name})
		if err != nil {
			return fmt.Errorf("menu list %q: %w", in.Name, err)
		}
		list = created
		a.tables.MenuLists = append(a.tables.MenuLists, created)
		a.result.Created++
	}

	for _, mt := range in.MenuTypes {
		if err := a.menuType(ctx, list.ID, mt); err != nil {
			return err
		}
	}
	return nil
}

func (a *applier) menuType(ctx context.Context, listID int64, in MenuType) error {
	var mt menu.MenuType
	found := false
	for _, existing := range a.tables.MenuTypes {
		if existing.MenuListID == listID && strings.EqualFold(existing.Name, in.Name) {
			mt, found = existing, true
			break
		}
	}
	if found {
		a.result.Reused++
	} else {
		created, err := a.st.CreateMenuType(ctx, menu.MenuType{Name: in.Name, Price: in.Price, MenuListID: listID})
		if err != nil {
			return fmt.Errorf("menu type %q: %w", in.Name, err)
		}
		mt = created
		a.tables.MenuTypes = append(a.tables.MenuTypes, created)
		a.result.Created++
	}

	for _, cat := range in.Categories {
		if err := a.category(ctx, mt.ID, cat); err != nil {
			return err
		}
	}
	return nil
}

func (a *applier) category(ctx context.Context, menuTypeID int64, in Category) error {
	var category menu.Category
	found := false
	for _, existing := range a.tables.Categories {
		if strings.EqualFold(existing.Name, in.Name) {
			category, found = existing, true
			break
		}
	}
	if !found {
		created, err := a.st.CreateCategory(ctx, menu.Category{Name: in.Name})
		if err != nil {
			return fmt.Errorf("category %q: %w", in.Name, err)
		}
		category = created
		a.tables.Categories = append(a.tables.Categories, created)
		a.result.Created++
	}

	var link menu.CategoryMenuType
	found = false
	for _, existing := range a.tables.CategoryMenuTypes {
		if existing.MenuTypeID == menuTypeID && existing.CategoryID == category.ID {
			link, found = existing, true
			break
		}
	}
	if found {
		a.result.Reused++
	} else {
		created, err := a.st.CreateCategoryMenuType(ctx, menu.CategoryMenuType{MenuTypeID: menuTypeID, CategoryID: category.ID, ItemLimit: in.ItemLimit})
		if err != nil {
			return fmt.Errorf("category %q on menu type %d: %w", in.Name, menuTypeID, err)
		}
		link = created
		a.tables.CategoryMenuTypes = append(a.tables.CategoryMenuTypes, created)
		a.result.Created++
	}

	for _, name := range in.Items {
		if err := a.item(ctx, link.ID, name); err != nil {
			return err
		}
	}
	return nil
}

func (a *applier) item(ctx context.Context, linkID int64, name string) error {
	var item menu.Item
	found := false
	for _, existing := range a.tables.Items {
		if strings.EqualFold(existing.Name, name) {
			item, found = existing, true
			break
		}
	}
	if !found {
		created, err := a.st.CreateItem(ctx, menu.Item{Name: name})
		if err != nil {
			return fmt.Errorf("item %q: %w", name, err)
		}
		item = created
		a.tables.Items = append(a.tables.Items, created)
		a.result.Created++
	}

	for _, existing := range a.tables.ItemCategoryMenuTypes {
		if existing.ItemID == item.ID && existing.CategoryMenuTypeID == linkID {
			a.result.Reused++
			return nil
		}
	}
	created, err := a.st.CreateItemCategoryMenuType(ctx, menu.ItemCategoryMenuType{ItemID: item.ID, CategoryMenuTypeID: linkID})
	if err != nil {
		return fmt.Errorf("item %q in category menu type %d: %w", name, linkID, err)
	}
	a.tables.ItemCategoryMenuTypes = append(a.tables.ItemCategoryMenuTypes, created)
	a.result.Created++
	return nil
}

func (a *applier) user(ctx context.Context, in User) error {
	if _, err := a.st.FindUserByEmail(ctx, in.Email); err == nil {
		a.result.Reused++
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return fmt.Errorf("user %q: %w", in.Email, err)
	}
	role, _ := auth.ParseRole(in.Role)
	if _, err := a.st.CreateUser(ctx, store.User{
		Email:        strings.TrimSpace(in.Email),
		Name:         in.Name,
		Role:         string(role),
		PasswordHash: hash,
	}); err != nil {
		return fmt.Errorf("user %q: %w", in.Email, err)
	}
	a.result.Created++
	return nil
}

func (a *applier) booking(ctx context.Context, in Booking) error {
	customer, err := a.st.FindUserByEmail(ctx, in.Customer)
	if err != nil {
		return fmt.Errorf("booking %d customer %q: %w", in.ID, in.Customer, err)
	}
	if existing, err := a.st.GetBooking(ctx, in.ID); err == nil && existing.CustomerID == customer.ID {
		a.result.Reused++
		return nil
	}
	if _, err := a.st.EnsureBooking(ctx, in.ID, customer.ID); err != nil {
		return fmt.Errorf("booking %d: %w", in.ID, err)
	}
	a.result.Created++
	return nil
}

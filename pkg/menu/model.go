package menu

type MenuList struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type MenuType struct {
	ID         int64   `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	Price      float64 `json:"price" yaml:"price"`
	MenuListID int64   `json:"menuListId" yaml:"menuListId"`
}

type Category struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// CategoryMenuType attaches a category to a menu type and caps how many
// items a booking may pick from it under that menu type.
type CategoryMenuType struct {
	ID         int64 `json:"id" yaml:"id"`
	MenuTypeID int64 `json:"menuTypeId" yaml:"menuTypeId"`
	CategoryID int64 `json:"categoryId" yaml:"categoryId"`
	ItemLimit  int   `json:"itemLimit" yaml:"itemLimit"`
}

type Item struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ItemCategoryMenuType is the selectable unit: an item offered in one
// category link. Customer selections reference it by id.
type ItemCategoryMenuType struct {
	ID                 int64 `json:"id" yaml:"id"`
	ItemID             int64 `json:"itemId" yaml:"itemId"`
	CategoryMenuTypeID int64 `json:"categoryMenuTypeId" yaml:"categoryMenuTypeId"`
}

type Selection struct {
	BookingID int64 `json:"bookingId"`
	ICMTID    int64 `json:"ICMT_Id"`
}

// Tables is the flat catalog as the backend stores it.
type Tables struct {
	MenuLists             []MenuList             `json:"menuLists" yaml:"menuLists"`
	MenuTypes             []MenuType             `json:"menuTypes" yaml:"menuTypes"`
	Categories            []Category             `json:"categories" yaml:"categories"`
	Items                 []Item                 `json:"items" yaml:"items"`
	CategoryMenuTypes     []CategoryMenuType     `json:"categoryMenuTypes" yaml:"categoryMenuTypes"`
	ItemCategoryMenuTypes []ItemCategoryMenuType `json:"itemCategoryMenuTypes" yaml:"itemCategoryMenuTypes"`
}

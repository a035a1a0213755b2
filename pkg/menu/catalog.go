package menu

import "sort"

type DriftKind string

const (
	DriftMenuListMissing     DriftKind = "menu_list_missing"
	DriftMenuTypeMissing     DriftKind = "menu_type_missing"
	DriftCategoryMissing     DriftKind = "category_missing"
	DriftCategoryLinkMissing DriftKind = "category_link_missing"
	DriftItemMissing         DriftKind = "item_missing"
	DriftInvalidItemLimit    DriftKind = "invalid_item_limit"
)

// Drift describes a catalog row left out of the tree because a row it
// references is missing or unusable. ID is the skipped row, RefID the
// reference that did not resolve (the offending limit for
// DriftInvalidItemLimit).
type Drift struct {
	Kind  DriftKind `json:"kind"`
	ID    int64     `json:"id"`
	RefID int64     `json:"refId"`
}

type DriftFunc func(Drift)

type ItemNode struct {
	ICMTID int64  `json:"ICMT_Id"`
	ID     int64  `json:"id"`
	Name   string `json:"name"`
}

type CategoryNode struct {
	ID        int64      `json:"id"`
	LinkID    int64      `json:"categoryMenuTypeId"`
	Name      string     `json:"name"`
	ItemLimit int        `json:"itemLimit"`
	Items     []ItemNode `json:"items"`
}

type TypeNode struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Price      float64        `json:"price"`
	Categories []CategoryNode `json:"categories"`
}

type ListNode struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	MenuTypes []TypeNode `json:"menuTypes"`
}

// Placement is the full ancestry of one selectable ICMT.
type Placement struct {
	ICMTID             int64   `json:"ICMT_Id"`
	MenuListID         int64   `json:"menuListId"`
	MenuTypeID         int64   `json:"menuTypeId"`
	CategoryMenuTypeID int64   `json:"categoryMenuTypeId"`
	CategoryID         int64   `json:"categoryId"`
	ItemID             int64   `json:"itemId"`
	Price              float64 `json:"price"`
	ItemLimit          int     `json:"itemLimit"`
}

// Catalog is the nested MenuList -> MenuType -> Category -> Item view plus
// lookup indexes. Nodes returned from it are shared and must not be
// modified.
type Catalog struct {
	lists      []ListNode
	placements map[int64]Placement
	links      map[int64]CategoryNode
	types      map[int64]TypeNode
}

// BuildCatalog joins the flat tables into the nested tree. Rows whose parent
// cannot be resolved are skipped and passed to report.
func BuildCatalog(t Tables, report DriftFunc) *Catalog {
	if report == nil {
		report = func(Drift) {}
	}

	listIndex := make(map[int64]MenuList, len(t.MenuLists))
	lists := firstByID(t.MenuLists, func(v MenuList) int64 { return v.ID })
	for _, l := range lists {
		listIndex[l.ID] = l
	}

	categoryIndex := make(map[int64]Category, len(t.Categories))
	for _, c := range firstByID(t.Categories, func(v Category) int64 { return v.ID }) {
		categoryIndex[c.ID] = c
	}

	itemIndex := make(map[int64]Item, len(t.Items))
	for _, it := range firstByID(t.Items, func(v Item) int64 { return v.ID }) {
		itemIndex[it.ID] = it
	}

	typeIndex := make(map[int64]MenuType, len(t.MenuTypes))
	typesByList := make(map[int64][]MenuType)
	for _, mt := range firstByID(t.MenuTypes, func(v MenuType) int64 { return v.ID }) {
		if _, ok := listIndex[mt.MenuListID]; !ok {
			report(Drift{Kind: DriftMenuListMissing, ID: mt.ID, RefID: mt.MenuListID})
			continue
		}
		typeIndex[mt.ID] = mt
		typesByList[mt.MenuListID] = append(typesByList[mt.MenuListID], mt)
	}

	linkIndex := make(map[int64]CategoryMenuType, len(t.CategoryMenuTypes))
	linksByType := make(map[int64][]CategoryMenuType)
	for _, link := range firstByID(t.CategoryMenuTypes, func(v CategoryMenuType) int64 { return v.ID }) {
		if _, ok := typeIndex[link.MenuTypeID]; !ok {
			report(Drift{Kind: DriftMenuTypeMissing, ID: link.ID, RefID: link.MenuTypeID})
			continue
		}
		if _, ok := categoryIndex[link.CategoryID]; !ok {
			report(Drift{Kind: DriftCategoryMissing, ID: link.ID, RefID: link.CategoryID})
			continue
		}
		if link.ItemLimit < 1 {
			report(Drift{Kind: DriftInvalidItemLimit, ID: link.ID, RefID: int64(link.ItemLimit)})
			continue
		}
		linkIndex[link.ID] = link
		linksByType[link.MenuTypeID] = append(linksByType[link.MenuTypeID], link)
	}

	icmtsByLink := make(map[int64][]ItemCategoryMenuType)
	for _, row := range firstByID(t.ItemCategoryMenuTypes, func(v ItemCategoryMenuType) int64 { return v.ID }) {
		if _, ok := linkIndex[row.CategoryMenuTypeID]; !ok {
			report(Drift{Kind: DriftCategoryLinkMissing, ID: row.ID, RefID: row.CategoryMenuTypeID})
			continue
		}
		if _, ok := itemIndex[row.ItemID]; !ok {
			report(Drift{Kind: DriftItemMissing, ID: row.ID, RefID: row.ItemID})
			continue
		}
		icmtsByLink[row.CategoryMenuTypeID] = append(icmtsByLink[row.CategoryMenuTypeID], row)
	}

	sort.Slice(lists, func(i, j int) bool { return lists[i].ID < lists[j].ID })

	tree := make([]ListNode, 0, len(lists))
	for _, l := range lists {
		listNode := ListNode{ID: l.ID, Name: l.Name, MenuTypes: make([]TypeNode, 0)}

		types := typesByList[l.ID]
		sort.Slice(types, func(i, j int) bool { return types[i].ID < types[j].ID })
		for _, mt := range types {
			typeNode := TypeNode{ID: mt.ID, Name: mt.Name, Price: mt.Price, Categories: make([]CategoryNode, 0)}

			links := linksByType[mt.ID]
			sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
			for _, link := range links {
				category := categoryIndex[link.CategoryID]
				categoryNode := CategoryNode{
					ID:        category.ID,
					LinkID:    link.ID,
					Name:      category.Name,
					ItemLimit: link.ItemLimit,
					Items:     make([]ItemNode, 0),
				}

				rows := icmtsByLink[link.ID]
				sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
				for _, row := range rows {
					item := itemIndex[row.ItemID]
					categoryNode.Items = append(categoryNode.Items, ItemNode{ICMTID: row.ID, ID: item.ID, Name: item.Name})
				}
				typeNode.Categories = append(typeNode.Categories, categoryNode)
			}
			listNode.MenuTypes = append(listNode.MenuTypes, typeNode)
		}
		tree = append(tree, listNode)
	}

	return indexTree(tree)
}

// CatalogFromTree indexes an already nested tree, such as the browsing
// overview returned by the backend.
func CatalogFromTree(lists []ListNode) *Catalog {
	tree := make([]ListNode, len(lists))
	copy(tree, lists)
	return indexTree(tree)
}

func indexTree(tree []ListNode) *Catalog {
	c := &Catalog{
		lists:      tree,
		placements: make(map[int64]Placement),
		links:      make(map[int64]CategoryNode),
		types:      make(map[int64]TypeNode),
	}
	for _, l := range tree {
		for _, mt := range l.MenuTypes {
			if _, ok := c.types[mt.ID]; !ok {
				c.types[mt.ID] = mt
			}
			for _, cat := range mt.Categories {
				if _, ok := c.links[cat.LinkID]; !ok {
					c.links[cat.LinkID] = cat
				}
				for _, it := range cat.Items {
					if _, ok := c.placements[it.ICMTID]; ok {
						continue
					}
					c.placements[it.ICMTID] = Placement{
						ICMTID:             it.ICMTID,
						MenuListID:         l.ID,
						MenuTypeID:         mt.ID,
						CategoryMenuTypeID: cat.LinkID,
						CategoryID:         cat.ID,
						ItemID:             it.ID,
						Price:              mt.Price,
						ItemLimit:          cat.ItemLimit,
					}
				}
			}
		}
	}
	return c
}

func (c *Catalog) Lists() []ListNode {
	if c == nil {
		return nil
	}
	return c.lists
}

func (c *Catalog) Lookup(icmtID int64) (Placement, bool) {
	if c == nil {
		return Placement{}, false
	}
	p, ok := c.placements[icmtID]
	return p, ok
}

// Link returns the category node of a category/menu-type link.
func (c *Catalog) Link(linkID int64) (CategoryNode, bool) {
	if c == nil {
		return CategoryNode{}, false
	}
	node, ok := c.links[linkID]
	return node, ok
}

func (c *Catalog) MenuType(id int64) (TypeNode, bool) {
	if c == nil {
		return TypeNode{}, false
	}
	node, ok := c.types[id]
	return node, ok
}

// Size is the number of selectable ICMTs in the tree.
func (c *Catalog) Size() int {
	if c == nil {
		return 0
	}
	return len(c.placements)
}

func firstByID[T any](rows []T, id func(T) int64) []T {
	seen := make(map[int64]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		key := id(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}

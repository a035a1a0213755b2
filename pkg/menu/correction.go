package menu

// BookingMenu is one booking's selections nested the same way as the
// catalog.
type BookingMenu struct {
	BookingID  int64      `json:"bookingId"`
	CustomerID int64      `json:"customerId"`
	MenuPrice  float64    `json:"menuPrice"`
	Version    int64      `json:"version"`
	MenuLists  []ListNode `json:"menuLists"`
}

// FlatSelection is the editable row form of one selected item.
type FlatSelection struct {
	BookingID  int64   `json:"bookingId"`
	MenuListID int64   `json:"menuListId"`
	MenuTypeID int64   `json:"menuTypeId"`
	CategoryID int64   `json:"categoryId"`
	ItemID     int64   `json:"itemId"`
	ICMTID     int64   `json:"ICMT_Id"`
	Price      float64 `json:"price"`
}

// StructureSelections prunes the catalog tree down to the selected ICMTs.
// Ids unknown to the catalog are dropped.
func StructureSelections(ids []int64, c *Catalog) []ListNode {
	selected := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		selected[id] = struct{}{}
	}

	out := make([]ListNode, 0)
	for _, l := range c.Lists() {
		listNode := ListNode{ID: l.ID, Name: l.Name, MenuTypes: make([]TypeNode, 0)}
		for _, mt := range l.MenuTypes {
			typeNode := TypeNode{ID: mt.ID, Name: mt.Name, Price: mt.Price, Categories: make([]CategoryNode, 0)}
			for _, cat := range mt.Categories {
				catNode := CategoryNode{ID: cat.ID, LinkID: cat.LinkID, Name: cat.Name, ItemLimit: cat.ItemLimit, Items: make([]ItemNode, 0)}
				for _, it := range cat.Items {
					if _, ok := selected[it.ICMTID]; ok {
						catNode.Items = append(catNode.Items, it)
					}
				}
				if len(catNode.Items) > 0 {
					typeNode.Categories = append(typeNode.Categories, catNode)
				}
			}
			if len(typeNode.Categories) > 0 {
				listNode.MenuTypes = append(listNode.MenuTypes, typeNode)
			}
		}
		if len(listNode.MenuTypes) > 0 {
			out = append(out, listNode)
		}
	}
	return out
}

func Flatten(m BookingMenu) []FlatSelection {
	rows := make([]FlatSelection, 0)
	for _, l := range m.MenuLists {
		for _, mt := range l.MenuTypes {
			for _, cat := range mt.Categories {
				for _, it := range cat.Items {
					rows = append(rows, FlatSelection{
						BookingID:  m.BookingID,
						MenuListID: l.ID,
						MenuTypeID: mt.ID,
						CategoryID: cat.ID,
						ItemID:     it.ID,
						ICMTID:     it.ICMTID,
						Price:      mt.Price,
					})
				}
			}
		}
	}
	return rows
}

// FlattenSelected builds rows for a working set straight from the catalog,
// skipping ids that no longer resolve.
func FlattenSelected(bookingID int64, ws WorkingSet, c *Catalog) []FlatSelection {
	rows := make([]FlatSelection, 0, ws.Len())
	for _, id := range ws.ids {
		p, ok := c.Lookup(id)
		if !ok {
			continue
		}
		rows = append(rows, FlatSelection{
			BookingID:  bookingID,
			MenuListID: p.MenuListID,
			MenuTypeID: p.MenuTypeID,
			CategoryID: p.CategoryID,
			ItemID:     p.ItemID,
			ICMTID:     p.ICMTID,
			Price:      p.Price,
		})
	}
	return rows
}

func ICMTIDs(rows []FlatSelection) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ICMTID)
	}
	return ids
}

type ReplacePlan struct {
	Add    []int64 `json:"added"`
	Remove []int64 `json:"removed"`
}

func (p ReplacePlan) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0
}

// PlanReplace lists what replacing current with final adds and removes.
func PlanReplace(current, final []int64) ReplacePlan {
	before := NewWorkingSet(current...)
	after := NewWorkingSet(final...)

	plan := ReplacePlan{Add: make([]int64, 0), Remove: make([]int64, 0)}
	for _, id := range before.ids {
		if !after.Contains(id) {
			plan.Remove = append(plan.Remove, id)
		}
	}
	for _, id := range after.ids {
		if !before.Contains(id) {
			plan.Add = append(plan.Add, id)
		}
	}
	return plan
}

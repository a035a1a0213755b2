package menu

import (
	"encoding/json"
	"testing"
)

// sampleTables: Standard (1500) offers Desserts limit 2 (ICMT 10, 11, 12);
// Premium (2500) offers Mains limit 3 (ICMT 20, 21) and Desserts limit 1
// (ICMT 30).
func sampleTables() Tables {
	return Tables{
		MenuLists: []MenuList{{ID: 1, Name: "Wedding Package"}},
		MenuTypes: []MenuType{
			{ID: 2, Name: "Premium", Price: 2500, MenuListID: 1},
			{ID: 1, Name: "Standard", Price: 1500, MenuListID: 1},
		},
		Categories: []Category{{ID: 1, Name: "Desserts"}, {ID: 2, Name: "Mains"}},
		Items: []Item{
			{ID: 1, Name: "Gulab Jamun"},
			{ID: 2, Name: "Rasmalai"},
			{ID: 3, Name: "Kheer"},
			{ID: 4, Name: "Paneer Tikka"},
			{ID: 5, Name: "Dal Makhani"},
		},
		CategoryMenuTypes: []CategoryMenuType{
			{ID: 100, MenuTypeID: 1, CategoryID: 1, ItemLimit: 2},
			{ID: 101, MenuTypeID: 2, CategoryID: 2, ItemLimit: 3},
			{ID: 102, MenuTypeID: 2, CategoryID: 1, ItemLimit: 1},
		},
		ItemCategoryMenuTypes: []ItemCategoryMenuType{
			{ID: 12, ItemID: 3, CategoryMenuTypeID: 100},
			{ID: 10, ItemID: 1, CategoryMenuTypeID: 100},
			{ID: 11, ItemID: 2, CategoryMenuTypeID: 100},
			{ID: 20, ItemID: 4, CategoryMenuTypeID: 101},
			{ID: 21, ItemID: 5, CategoryMenuTypeID: 101},
			{ID: 30, ItemID: 1, CategoryMenuTypeID: 102},
		},
	}
}

func TestBuildCatalogNestsEveryICMTOnce(t *testing.T) {
	tables := sampleTables()
	catalog := BuildCatalog(tables, func(d Drift) {
		t.Fatalf("unexpected drift %+v", d)
	})

	if catalog.Size() != len(tables.ItemCategoryMenuTypes) {
		t.Fatalf("expected %d placements, got %d", len(tables.ItemCategoryMenuTypes), catalog.Size())
	}

	seen := make(map[int64]int)
	for _, l := range catalog.Lists() {
		for _, mt := range l.MenuTypes {
			for _, cat := range mt.Categories {
				for _, it := range cat.Items {
					seen[it.ICMTID]++
				}
			}
		}
	}
	for _, row := range tables.ItemCategoryMenuTypes {
		if seen[row.ID] != 1 {
			t.Fatalf("expected ICMT %d exactly once, got %d", row.ID, seen[row.ID])
		}
	}

	types := catalog.Lists()[0].MenuTypes
	if types[0].Name != "Standard" || types[1].Name != "Premium" {
		t.Fatalf("expected menu types ordered by id, got %s, %s", types[0].Name, types[1].Name)
	}
	desserts := types[0].Categories[0]
	if desserts.ItemLimit != 2 || len(desserts.Items) != 3 || desserts.Items[0].ICMTID != 10 {
		t.Fatalf("unexpected desserts node %+v", desserts)
	}
}

func TestBuildCatalogPlacement(t *testing.T) {
	catalog := BuildCatalog(sampleTables(), nil)

	p, ok := catalog.Lookup(30)
	if !ok {
		t.Fatalf("expected ICMT 30 to resolve")
	}
	expected := Placement{
		ICMTID:             30,
		MenuListID:         1,
		MenuTypeID:         2,
		CategoryMenuTypeID: 102,
		CategoryID:         1,
		ItemID:             1,
		Price:              2500,
		ItemLimit:          1,
	}
	if p != expected {
		t.Fatalf("expected %+v, got %+v", expected, p)
	}

	if _, ok := catalog.Lookup(999); ok {
		t.Fatalf("expected unknown ICMT to miss")
	}
	if link, ok := catalog.Link(101); !ok || link.Name != "Mains" {
		t.Fatalf("expected link 101 to be Mains, got %+v", link)
	}
	if mt, ok := catalog.MenuType(1); !ok || mt.Price != 1500 {
		t.Fatalf("expected Standard menu type, got %+v", mt)
	}
}

func TestBuildCatalogSkipsDanglingRows(t *testing.T) {
	tables := sampleTables()
	tables.MenuTypes = append(tables.MenuTypes, MenuType{ID: 3, Name: "Orphan", Price: 900, MenuListID: 8})
	tables.CategoryMenuTypes = append(tables.CategoryMenuTypes,
		CategoryMenuType{ID: 103, MenuTypeID: 1, CategoryID: 9, ItemLimit: 1},
		CategoryMenuType{ID: 104, MenuTypeID: 1, CategoryID: 2, ItemLimit: 0},
		CategoryMenuType{ID: 105, MenuTypeID: 3, CategoryID: 2, ItemLimit: 1},
	)
	tables.ItemCategoryMenuTypes = append(tables.ItemCategoryMenuTypes,
		ItemCategoryMenuType{ID: 98, ItemID: 77, CategoryMenuTypeID: 100},
		ItemCategoryMenuType{ID: 99, ItemID: 1, CategoryMenuTypeID: 555},
	)

	var drifts []Drift
	catalog := BuildCatalog(tables, func(d Drift) { drifts = append(drifts, d) })

	expected := map[Drift]bool{
		{Kind: DriftMenuListMissing, ID: 3, RefID: 8}:        true,
		{Kind: DriftCategoryMissing, ID: 103, RefID: 9}:      true,
		{Kind: DriftInvalidItemLimit, ID: 104, RefID: 0}:     true,
		{Kind: DriftMenuTypeMissing, ID: 105, RefID: 3}:      true,
		{Kind: DriftItemMissing, ID: 98, RefID: 77}:          true,
		{Kind: DriftCategoryLinkMissing, ID: 99, RefID: 555}: true,
	}
	if len(drifts) != len(expected) {
		t.Fatalf("expected %d drifts, got %d: %+v", len(expected), len(drifts), drifts)
	}
	for _, d := range drifts {
		if !expected[d] {
			t.Fatalf("unexpected drift %+v", d)
		}
	}

	if catalog.Size() != 6 {
		t.Fatalf("expected dangling rows to be omitted, got %d placements", catalog.Size())
	}
	if _, ok := catalog.Lookup(98); ok {
		t.Fatalf("expected ICMT 98 to be skipped")
	}
}

func TestBuildCatalogKeepsFirstDuplicate(t *testing.T) {
	tables := sampleTables()
	tables.ItemCategoryMenuTypes = append(tables.ItemCategoryMenuTypes, ItemCategoryMenuType{ID: 10, ItemID: 5, CategoryMenuTypeID: 101})

	catalog := BuildCatalog(tables, nil)
	p, _ := catalog.Lookup(10)
	if p.CategoryMenuTypeID != 100 {
		t.Fatalf("expected first row for ICMT 10 to win, got link %d", p.CategoryMenuTypeID)
	}
	if catalog.Size() != 6 {
		t.Fatalf("expected 6 placements, got %d", catalog.Size())
	}
}

func TestCatalogFromTreeMatchesBuild(t *testing.T) {
	built := BuildCatalog(sampleTables(), nil)

	raw, err := json.Marshal(built.Lists())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var lists []ListNode
	if err := json.Unmarshal(raw, &lists); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	rebuilt := CatalogFromTree(lists)
	if rebuilt.Size() != built.Size() {
		t.Fatalf("expected %d placements, got %d", built.Size(), rebuilt.Size())
	}
	for _, id := range []int64{10, 11, 12, 20, 21, 30} {
		a, _ := built.Lookup(id)
		b, ok := rebuilt.Lookup(id)
		if !ok || a != b {
			t.Fatalf("placement mismatch for %d: %+v vs %+v", id, a, b)
		}
	}
}

func TestNilCatalogIsEmpty(t *testing.T) {
	var catalog *Catalog
	if catalog.Size() != 0 || catalog.Lists() != nil {
		t.Fatalf("expected nil catalog to be empty")
	}
	if _, ok := catalog.Lookup(1); ok {
		t.Fatalf("expected nil catalog lookup to miss")
	}
}

package menu

// WorkingSet is an insertion-ordered set of selected ICMT ids. Methods never
// modify the receiver.
type WorkingSet struct {
	ids []int64
}

func NewWorkingSet(ids ...int64) WorkingSet {
	var ws WorkingSet
	for _, id := range ids {
		if !ws.Contains(id) {
			ws.ids = append(ws.ids, id)
		}
	}
	return ws
}

func (ws WorkingSet) Contains(icmtID int64) bool {
	for _, id := range ws.ids {
		if id == icmtID {
			return true
		}
	}
	return false
}

func (ws WorkingSet) Len() int {
	return len(ws.ids)
}

func (ws WorkingSet) IDs() []int64 {
	out := make([]int64, len(ws.ids))
	copy(out, ws.ids)
	return out
}

func (ws WorkingSet) With(icmtID int64) WorkingSet {
	if ws.Contains(icmtID) {
		return ws
	}
	out := make([]int64, len(ws.ids), len(ws.ids)+1)
	copy(out, ws.ids)
	return WorkingSet{ids: append(out, icmtID)}
}

func (ws WorkingSet) Without(icmtID int64) WorkingSet {
	out := make([]int64, 0, len(ws.ids))
	for _, id := range ws.ids {
		if id != icmtID {
			out = append(out, id)
		}
	}
	return WorkingSet{ids: out}
}

// ToggleItem deselects icmtID when it is already in ws, otherwise selects it
// unless the category already holds categoryLimit items. On rejection ws is
// returned unchanged together with an ITEM_LIMIT_REACHED error.
func ToggleItem(ws WorkingSet, icmtID int64, categoryLimit int, currentCountInCategory int) (WorkingSet, error) {
	if ws.Contains(icmtID) {
		return ws.Without(icmtID), nil
	}
	if currentCountInCategory >= categoryLimit {
		return ws, limitReached(0, categoryLimit)
	}
	return ws.With(icmtID), nil
}

// ComputeTotal sums the price of every distinct menu type the selection
// touches. Ids missing from the catalog contribute nothing.
func ComputeTotal(ws WorkingSet, c *Catalog) float64 {
	seen := make(map[int64]struct{})
	total := 0.0
	for _, id := range ws.ids {
		p, ok := c.Lookup(id)
		if !ok {
			continue
		}
		if _, dup := seen[p.MenuTypeID]; dup {
			continue
		}
		seen[p.MenuTypeID] = struct{}{}
		total += p.Price
	}
	return total
}

// Validate checks a complete selection list against the catalog.
func Validate(ids []int64, c *Catalog) error {
	seen := make(map[int64]struct{}, len(ids))
	counts := make(map[int64]int)
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return ValidationError(ErrDuplicateChoice, "Item is selected more than once", map[string]any{"ICMT_Id": id})
		}
		seen[id] = struct{}{}

		p, ok := c.Lookup(id)
		if !ok {
			return unknownChoice(id)
		}
		counts[p.CategoryMenuTypeID]++
		if counts[p.CategoryMenuTypeID] > p.ItemLimit {
			return limitReached(p.CategoryMenuTypeID, p.ItemLimit)
		}
	}
	return nil
}

// Selector is a working set bound to a catalog.
type Selector struct {
	catalog *Catalog
	set     WorkingSet
}

// NewSelector seeds the working set as given; ids that no longer resolve
// stay selected until toggled off.
func NewSelector(c *Catalog, selected ...int64) *Selector {
	return &Selector{catalog: c, set: NewWorkingSet(selected...)}
}

func (s *Selector) Toggle(icmtID int64) error {
	if s.set.Contains(icmtID) {
		s.set = s.set.Without(icmtID)
		return nil
	}

	p, ok := s.catalog.Lookup(icmtID)
	if !ok {
		return unknownChoice(icmtID)
	}

	next, err := ToggleItem(s.set, icmtID, p.ItemLimit, s.CountInCategory(p.CategoryMenuTypeID))
	if err != nil {
		return limitReached(p.CategoryMenuTypeID, p.ItemLimit)
	}
	s.set = next
	return nil
}

// Set forces icmtID into the requested state, with the same limit rule as
// Toggle.
func (s *Selector) Set(icmtID int64, selected bool) error {
	if s.set.Contains(icmtID) == selected {
		return nil
	}
	return s.Toggle(icmtID)
}

func (s *Selector) CountInCategory(linkID int64) int {
	count := 0
	for _, id := range s.set.ids {
		if p, ok := s.catalog.Lookup(id); ok && p.CategoryMenuTypeID == linkID {
			count++
		}
	}
	return count
}

func (s *Selector) Selected() WorkingSet {
	return s.set
}

func (s *Selector) Total() float64 {
	return ComputeTotal(s.set, s.catalog)
}

func (s *Selector) Catalog() *Catalog {
	return s.catalog
}

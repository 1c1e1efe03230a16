package projection

import "sort"

// Selection is the set of course ids a student has ticked for a bulk action.
type Selection map[string]struct{}

// NewSelection builds a selection from ids.
func NewSelection(ids ...string) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is selected.
func (s Selection) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the selected ids in ascending order.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Scope drops ids that are not visible and selectable under filter.
func Scope(rows []Row, filter Filter, selection Selection) Selection {
	scoped := make(Selection)
	for _, id := range eligibleIDs(rows, filter) {
		if selection.Has(id) {
			scoped[id] = struct{}{}
		}
	}
	return scoped
}

// Toggle flips a single row, ignoring rows that are hidden or not selectable.
func Toggle(rows []Row, filter Filter, selection Selection, id string) Selection {
	next := Scope(rows, filter, selection)
	eligible := false
	for _, candidate := range eligibleIDs(rows, filter) {
		if candidate == id {
			eligible = true
			break
		}
	}
	if !eligible {
		return next
	}
	if next.Has(id) {
		delete(next, id)
	} else {
		next[id] = struct{}{}
	}
	return next
}

// ToggleSelectAll selects every visible selectable row, or clears them when all
// of them are already selected.
func ToggleSelectAll(rows []Row, filter Filter, selection Selection) Selection {
	eligible := eligibleIDs(rows, filter)
	allSelected := len(eligible) > 0
	for _, id := range eligible {
		if !selection.Has(id) {
			allSelected = false
			break
		}
	}
	if allSelected {
		return make(Selection)
	}
	return NewSelection(eligible...)
}

func eligibleIDs(rows []Row, filter Filter) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Selectable && filter.Match(row) {
			ids = append(ids, row.Course.ID)
		}
	}
	return ids
}

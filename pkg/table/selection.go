package table

import "sort"

// Selection is a set of selected record ids. Operations return new sets.
type Selection map[string]struct{}

// NewSelection builds a selection from ids, ignoring blanks.
func NewSelection(ids ...string) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Has reports whether id is selected.
func (s Selection) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Toggle returns the symmetric difference of s and {id}.
func (s Selection) Toggle(id string) Selection {
	out := s.clone()
	if id == "" {
		return out
	}
	if out.Has(id) {
		delete(out, id)
	} else {
		out[id] = struct{}{}
	}
	return out
}

// ToggleAll clears the selection when every visible id is already selected,
// otherwise selects exactly the visible ids.
func (s Selection) ToggleAll(visible []string) Selection {
	if s.AllSelected(visible) {
		return Selection{}
	}
	return NewSelection(visible...)
}

// AllSelected reports whether visible is non-empty and fully selected.
func (s Selection) AllSelected(visible []string) bool {
	if len(visible) == 0 {
		return false
	}
	for _, id := range visible {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// Prune drops ids that are not in present.
func (s Selection) Prune(present []string) Selection {
	index := make(map[string]struct{}, len(present))
	for _, id := range present {
		index[id] = struct{}{}
	}
	out := make(Selection, len(s))
	for id := range s {
		if _, ok := index[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// IDs returns the selected ids sorted.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s Selection) clone() Selection {
	out := make(Selection, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

package grid

// Selection tracks which row identities the operator has marked, per tab.
// Identities keep their toggle order so a commit payload lists codes the
// way the operator picked them, which is not necessarily display order.
// Selection survives same-invoice reloads; the session clears it when the
// invoice changes.
type Selection struct {
	order  map[Tab][]string
	member map[Tab]map[string]bool
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{
		order:  make(map[Tab][]string),
		member: make(map[Tab]map[string]bool),
	}
}

// Toggle marks or unmarks one identity. Empty identities are ignored:
// rows without a resolvable key are not selectable.
func (s *Selection) Toggle(tab Tab, identity string, on bool) {
	if identity == "" {
		return
	}
	set := s.member[tab]
	if on {
		if set == nil {
			set = make(map[string]bool)
			s.member[tab] = set
		}
		if !set[identity] {
			set[identity] = true
			s.order[tab] = append(s.order[tab], identity)
		}
		return
	}
	if !set[identity] {
		return
	}
	delete(set, identity)
	kept := s.order[tab][:0]
	for _, id := range s.order[tab] {
		if id != identity {
			kept = append(kept, id)
		}
	}
	s.order[tab] = kept
}

// SetPage bulk-applies a mark over exactly the given page of identities.
// Unresolvable rows were already excluded by the caller via
// Dataset.Identities.
func (s *Selection) SetPage(tab Tab, identities []string, on bool) {
	for _, id := range identities {
		s.Toggle(tab, id, on)
	}
}

// Has reports whether one identity is selected on a tab.
func (s *Selection) Has(tab Tab, identity string) bool {
	return s.member[tab][identity]
}

// Selected returns the tab's selected identities in toggle order.
func (s *Selection) Selected(tab Tab) []string {
	ids := s.order[tab]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Count returns how many identities are selected on a tab.
func (s *Selection) Count(tab Tab) int { return len(s.order[tab]) }

// AllSelected reports whether every identity visible on the current page
// is selected. Other pages never influence the answer. An empty page is
// never "all selected".
func (s *Selection) AllSelected(tab Tab, visible []string) bool {
	if len(visible) == 0 {
		return false
	}
	for _, id := range visible {
		if !s.member[tab][id] {
			return false
		}
	}
	return true
}

// PartiallySelected reports whether the current page has some but not all
// of its identities selected, driving the indeterminate checkbox state.
func (s *Selection) PartiallySelected(tab Tab, visible []string) bool {
	seen := 0
	for _, id := range visible {
		if s.member[tab][id] {
			seen++
		}
	}
	return seen > 0 && seen < len(visible)
}

// ClearTab drops one tab's selection.
func (s *Selection) ClearTab(tab Tab) {
	delete(s.order, tab)
	delete(s.member, tab)
}

// ClearAll drops every tab's selection, as on an invoice change.
func (s *Selection) ClearAll() {
	s.order = make(map[Tab][]string)
	s.member = make(map[Tab]map[string]bool)
}

package table

// State is the committed UI state of one table.
type State struct {
	Criteria Criteria
	Sort     SortSpec
	Page     int
	PageSize int
	Selected Selection
}

// View is everything needed to render one table page.
type View[R Record] struct {
	Items         []R
	Page          int
	PageSize      int
	TotalPages    int
	FilteredCount int
	TotalCount    int
	Sort          SortSpec
	Selection     Selection
	AllSelected   bool
}

// Derive filters, sorts and paginates records and reconciles the selection
// against the unfiltered list. Sort keys the schema does not allow are dropped.
func Derive[R Record](records []R, schema Schema, st State) View[R] {
	filtered := ApplyFilters(records, schema, st.Criteria)

	spec := st.Sort
	if !schema.Sortable(spec.Key) {
		spec = SortSpec{}
	}
	if spec.Key != "" && spec.Dir != Desc {
		spec.Dir = Asc
	}
	sorted := ApplySort(filtered, spec)
	page := Paginate(sorted, st.Page, st.PageSize)

	selection := st.Selected.Prune(IDs(records))
	return View[R]{
		Items:         page.Items,
		Page:          page.Page,
		PageSize:      page.PageSize,
		TotalPages:    page.TotalPages,
		FilteredCount: len(filtered),
		TotalCount:    len(records),
		Sort:          spec,
		Selection:     selection,
		AllSelected:   selection.AllSelected(IDs(page.Items)),
	}
}

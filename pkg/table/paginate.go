package table

// DefaultPageSize is the page size used when none is given.
const DefaultPageSize = 10

// Page is one contiguous window of a sorted list.
type Page[R any] struct {
	Items      []R
	Page       int
	PageSize   int
	TotalPages int
	Total      int
}

// TotalPages returns max(1, ceil(count/pageSize)).
func TotalPages(count, pageSize int) int {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	pages := (count + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// ClampPage moves page into [1, TotalPages(count, pageSize)].
func ClampPage(page, count, pageSize int) int {
	last := TotalPages(count, pageSize)
	if page > last {
		page = last
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Paginate slices items into the requested page after clamping it, so the
// page is never empty while items is not.
func Paginate[R any](items []R, page, pageSize int) Page[R] {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	total := len(items)
	page = ClampPage(page, total, pageSize)
	start := (page - 1) * pageSize
	end := min(start+pageSize, total)

	window := make([]R, 0, end-start)
	window = append(window, items[start:end]...)
	return Page[R]{
		Items:      window,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: TotalPages(total, pageSize),
		Total:      total,
	}
}

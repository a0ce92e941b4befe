package availability

// Page is one screen of a navigation list.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

// Paginate returns page number page (0-based, clamped to the valid range) of items.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = len(items)
	}
	if size == 0 {
		return Page[T]{Items: []T{}, Pages: 0}
	}
	pages := (len(items) + size - 1) / size
	if page >= pages {
		page = pages - 1
	}
	if page < 0 {
		page = 0
	}
	end := min((page+1)*size, len(items))
	return Page[T]{Items: items[page*size : end], Page: page, Pages: pages}
}

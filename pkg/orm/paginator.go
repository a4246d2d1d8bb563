package orm

import (
	"net/url"
	"strconv"
)

// Paginator is a page of a larger result set
type Paginator interface {
	Items() *Collection
	CurrentPage() int
	LastPage() int
	Total() int
	Count() int
	PerPage() int
	URL(page int) string
}

// LengthAwarePaginator is a Paginator that knows the total result count
type LengthAwarePaginator struct {
	items       *Collection
	total       int
	perPage     int
	currentPage int
	path        string
}

// NewPaginator creates a paginator over items. perPage and currentPage
// are clamped to at least 1.
func NewPaginator(items *Collection, total, perPage, currentPage int, path string) *LengthAwarePaginator {
	if items == nil {
		items = NewCollection()
	}
	if perPage < 1 {
		perPage = 1
	}
	if currentPage < 1 {
		currentPage = 1
	}
	return &LengthAwarePaginator{
		items:       items,
		total:       total,
		perPage:     perPage,
		currentPage: currentPage,
		path:        path,
	}
}

func (p *LengthAwarePaginator) Items() *Collection { return p.items }
func (p *LengthAwarePaginator) CurrentPage() int   { return p.currentPage }
func (p *LengthAwarePaginator) Total() int         { return p.total }
func (p *LengthAwarePaginator) Count() int         { return p.items.Len() }
func (p *LengthAwarePaginator) PerPage() int       { return p.perPage }

// LastPage returns the number of the last page (at least 1)
func (p *LengthAwarePaginator) LastPage() int {
	last := (p.total + p.perPage - 1) / p.perPage
	if last < 1 {
		return 1
	}
	return last
}

// URL returns the URL for the given page
func (p *LengthAwarePaginator) URL(page int) string {
	if page < 1 {
		page = 1
	}

	u, err := url.Parse(p.path)
	if err != nil {
		return p.path + "?page=" + strconv.Itoa(page)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

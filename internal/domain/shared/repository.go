package shared

// Page selects a window of an ordered result set.
// A zero Page means "everything".
type Page struct {
	Page     int
	PageSize int
}

// MaxPageSize caps the page size a caller may request
const MaxPageSize = 500

// Normalize clamps the page into a valid range
func (p Page) Normalize() Page {
	if p.PageSize <= 0 {
		return Page{}
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return p
}

// Limit returns the SQL limit, or -1 when the page is unbounded
func (p Page) Limit() int {
	if p.PageSize <= 0 {
		return -1
	}
	return p.PageSize
}

// Offset returns the SQL offset
func (p Page) Offset() int {
	if p.PageSize <= 0 || p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

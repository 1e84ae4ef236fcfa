package pagination

const (
	// DefaultPageSize is the page size used when a caller does not provide one.
	DefaultPageSize = 20
	// MaxPageSize caps how many rows any list query can request.
	MaxPageSize = 100
)

// Params holds offset pagination inputs from handlers or services.
type Params struct {
	Page     int
	PageSize int
}

// Normalize returns params with page >= 1 and page size within bounds.
func Normalize(page, pageSize int) Params {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Params{Page: page, PageSize: pageSize}
}

// Offset is the number of rows to skip for the current page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit is the number of rows to fetch for the current page.
func (p Params) Limit() int {
	return p.PageSize
}

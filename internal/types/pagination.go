package types

// PaginationResponse echoes the page that was served. Count is the number of
// items on this page; a page shorter than Limit is the last one.
type PaginationResponse struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// ListResponse represents a paginated response with items
type ListResponse[T any] struct {
	Items      []T                `json:"items"`
	Pagination PaginationResponse `json:"pagination"`
}

// NewListResponse wraps items with the pagination of filter
func NewListResponse[T any](items []T, filter BaseFilter) *ListResponse[T] {
	if items == nil {
		items = make([]T, 0)
	}
	resp := &ListResponse[T]{
		Items:      items,
		Pagination: PaginationResponse{Count: len(items)},
	}
	if filter != nil {
		resp.Pagination.Limit = filter.GetLimit()
		resp.Pagination.Offset = filter.GetOffset()
	}
	return resp
}

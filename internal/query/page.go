package query

import (
	"fmt"
	"math"

	"github.com/paymentrecon/payment-service/internal/domain"
)

const DefaultPageSize = 25

// PageRequest selects a zero-based page. Unpaged requests return everything.
type PageRequest struct {
	Number  int
	Size    int
	Unpaged bool
}

func Unpaged() PageRequest { return PageRequest{Unpaged: true} }

func NewPageRequest(number, size int) (PageRequest, error) {
	if number < 0 {
		return PageRequest{}, fmt.Errorf("NewPageRequest: page number %d: %w", number, domain.ErrInvalidPageRequest)
	}
	if size < 1 {
		return PageRequest{}, fmt.Errorf("NewPageRequest: page size %d: %w", size, domain.ErrInvalidPageRequest)
	}
	// Offset must stay representable.
	if number > math.MaxInt/size {
		return PageRequest{}, fmt.Errorf("NewPageRequest: page %d of size %d out of range: %w", number, size, domain.ErrInvalidPageRequest)
	}
	return PageRequest{Number: number, Size: size}, nil
}

func (p PageRequest) Offset() int {
	if p.Unpaged {
		return 0
	}
	return p.Number * p.Size
}

// Page is one slice of a result set.
type Page[T any] struct {
	Items      []T
	Number     int
	Size       int
	TotalItems int
	TotalPages int
}

func NewPage[T any](items []T, req PageRequest, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	page := Page[T]{Items: items, Number: req.Number, Size: req.Size, TotalItems: total}
	if req.Unpaged {
		page.Size = len(items)
		page.TotalPages = 1
		return page
	}
	page.TotalPages = (total + req.Size - 1) / req.Size
	return page
}

// Map converts the items of a page, keeping its position.
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(p.Items))
	for i, item := range p.Items {
		out[i] = fn(item)
	}
	return Page[U]{Items: out, Number: p.Number, Size: p.Size, TotalItems: p.TotalItems, TotalPages: p.TotalPages}
}

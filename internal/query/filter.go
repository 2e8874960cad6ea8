package query

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paymentrecon/payment-service/internal/domain"
)

// FilterSpec is a sparse set of search, sort and paging criteria. Every field
// is optional; a nil or empty field contributes nothing.
type FilterSpec struct {
	InquiryRefIDs     []uuid.UUID
	TransactionRefIDs []uuid.UUID
	Currencies        []domain.Currency
	Status            *domain.PaymentStatus
	MinAmount         *decimal.Decimal
	MaxAmount         *decimal.Decimal
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
	UpdatedFrom       *time.Time
	UpdatedTo         *time.Time

	DirectionAmount    *Direction
	DirectionStatus    *Direction
	DirectionCreatedAt *Direction
	DirectionUpdatedAt *Direction

	PageNumber *int
	PageSize   *int
}

// Query is what the storage layer needs to run a search.
type Query struct {
	Where Predicate
	Sort  Sort
	Page  PageRequest
}

// MatchAll returns a query selecting every payment, unordered and unpaged.
func MatchAll() Query {
	return Query{Where: True{}, Sort: Unsorted(), Page: Unpaged()}
}

type clause func(FilterSpec) Predicate

// clauses is folded in order over True{}. Each entry returns nil when its
// criterion is absent.
var clauses = []clause{
	func(f FilterSpec) Predicate { return inUUIDs(FieldInquiryRefID, f.InquiryRefIDs) },
	func(f FilterSpec) Predicate { return inUUIDs(FieldTransactionRefID, f.TransactionRefIDs) },
	func(f FilterSpec) Predicate {
		if len(f.Currencies) == 0 {
			return nil
		}
		values := make([]any, len(f.Currencies))
		for i, c := range f.Currencies {
			values[i] = c
		}
		return In{Field: FieldCurrency, Values: values}
	},
	func(f FilterSpec) Predicate {
		if f.Status == nil {
			return nil
		}
		return Eq{Field: FieldStatus, Value: *f.Status}
	},
	func(f FilterSpec) Predicate { return rangeOf(FieldAmount, f.MinAmount, f.MaxAmount) },
	func(f FilterSpec) Predicate { return rangeOf(FieldCreatedAt, f.CreatedFrom, f.CreatedTo) },
	func(f FilterSpec) Predicate { return rangeOf(FieldUpdatedAt, f.UpdatedFrom, f.UpdatedTo) },
}

// Build turns a filter into a predicate, an ordering and a page request.
// Paging input is rejected, never clamped.
func Build(f FilterSpec) (Query, error) {
	page, err := f.pageRequest()
	if err != nil {
		return Query{}, fmt.Errorf("Build: %w", err)
	}
	return Query{Where: f.Predicate(), Sort: f.Sort(), Page: page}, nil
}

func (f FilterSpec) Predicate() Predicate {
	var p Predicate = True{}
	for _, c := range clauses {
		if next := c(f); next != nil {
			p = AndOf(p, next)
		}
	}
	return p
}

// Sort appends one key per populated direction in a fixed field order:
// amount, status, created_at, updated_at.
func (f FilterSpec) Sort() Sort {
	sort := Unsorted()
	for _, d := range []struct {
		field Field
		dir   *Direction
	}{
		{FieldAmount, f.DirectionAmount},
		{FieldStatus, f.DirectionStatus},
		{FieldCreatedAt, f.DirectionCreatedAt},
		{FieldUpdatedAt, f.DirectionUpdatedAt},
	} {
		if d.dir != nil {
			sort = sort.And(d.field, *d.dir)
		}
	}
	return sort
}

func (f FilterSpec) pageRequest() (PageRequest, error) {
	number, size := 0, DefaultPageSize
	if f.PageNumber != nil {
		number = *f.PageNumber
	}
	if f.PageSize != nil {
		size = *f.PageSize
	}
	return NewPageRequest(number, size)
}

func inUUIDs(field Field, ids []uuid.UUID) Predicate {
	if len(ids) == 0 {
		return nil
	}
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return In{Field: field, Values: values}
}

func rangeOf[T any](field Field, lower, upper *T) Predicate {
	if lower == nil && upper == nil {
		return nil
	}
	r := Range{Field: field}
	if lower != nil {
		r.Lower = *lower
	}
	if upper != nil {
		r.Upper = *upper
	}
	return r
}
